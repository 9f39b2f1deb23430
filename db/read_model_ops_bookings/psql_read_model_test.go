package read_model_ops_bookings_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/db"
	"bookings/db/read_model_ops_bookings"
	"bookings/entity"
)

func TestOpsBookingReadModel(t *testing.T) {
	ctx := context.Background()
	readModel := read_model_ops_bookings.NewOpsBookingReadModel(db.SetupPostgres(t))

	bookingID := uuid.NewString()
	requestedAt := time.Now().UTC().Add(-time.Hour)

	requested := &entity.BookingRequested_v1{
		Header:           entity.EventHeader{ID: uuid.NewString(), PublishedAt: requestedAt},
		BookingID:        bookingID,
		CustomerUsername: "alice",
		ProviderUsername: "bob",
		ServiceName:      "Plumbing",
		RequestedDate:    "2026-11-02",
	}
	require.NoError(t, readModel.OnBookingRequested(ctx, requested))
	// redelivery must not reset the model
	require.NoError(t, readModel.OnBookingRequested(ctx, requested))

	accepted := &entity.BookingStatusChanged_v1{
		Header:    entity.EventHeader{ID: uuid.NewString(), PublishedAt: requestedAt.Add(time.Minute)},
		BookingID: bookingID,
		Action:    entity.ActionAccept,
		From:      entity.BookingStatusPending,
		To:        entity.BookingStatusConfirm,
		ChangedBy: "bob",
	}
	completed := &entity.BookingStatusChanged_v1{
		Header:    entity.EventHeader{ID: uuid.NewString(), PublishedAt: requestedAt.Add(time.Hour)},
		BookingID: bookingID,
		Action:    entity.ActionVerifyCode,
		From:      entity.BookingStatusConfirm,
		To:        entity.BookingStatusCompleted,
		ChangedBy: "alice",
	}

	// out of order, with a duplicate
	require.NoError(t, readModel.OnBookingStatusChanged(ctx, completed))
	require.NoError(t, readModel.OnBookingStatusChanged(ctx, accepted))
	require.NoError(t, readModel.OnBookingStatusChanged(ctx, accepted))

	issued := &entity.CompletionCodeIssued_v1{
		Header:      entity.EventHeader{ID: uuid.NewString(), PublishedAt: requestedAt.Add(30 * time.Minute)},
		BookingID:   bookingID,
		ChallengeID: uuid.NewString(),
		ExpiresAt:   requestedAt.Add(40 * time.Minute),
	}
	require.NoError(t, readModel.OnCompletionCodeIssued(ctx, issued))
	require.NoError(t, readModel.OnCompletionCodeIssued(ctx, issued))

	feedbackAt := requestedAt.Add(2 * time.Hour)
	require.NoError(t, readModel.OnFeedbackSubmitted(ctx, &entity.FeedbackSubmitted_v1{
		Header:           entity.EventHeader{ID: uuid.NewString(), PublishedAt: feedbackAt},
		BookingID:        bookingID,
		CustomerUsername: "alice",
	}))

	rm, err := readModel.BookingReadModel(ctx, bookingID)
	require.NoError(t, err)

	assert.Equal(t, bookingID, rm.BookingID)
	assert.Equal(t, "alice", rm.CustomerUsername)
	assert.Equal(t, "bob", rm.ProviderUsername)
	assert.Equal(t, entity.BookingStatusCompleted, rm.Status)
	require.Len(t, rm.Timeline, 2)
	assert.Equal(t, entity.ActionAccept, rm.Timeline[0].Action)
	assert.Equal(t, entity.ActionVerifyCode, rm.Timeline[1].Action)
	assert.Equal(t, 1, rm.CompletionCodesIssued)
	assert.True(t, issued.Header.PublishedAt.Equal(rm.LastCompletionCodeAt))
	assert.True(t, feedbackAt.Equal(rm.FeedbackSubmittedAt))

	completedOnly, err := readModel.AllBookings(ctx, string(entity.BookingStatusCompleted))
	require.NoError(t, err)
	assert.Contains(t, bookingIDs(completedOnly), bookingID)

	pendingOnly, err := readModel.AllBookings(ctx, string(entity.BookingStatusPending))
	require.NoError(t, err)
	assert.NotContains(t, bookingIDs(pendingOnly), bookingID)
}

func TestOpsBookingReadModel_updateBeforeCreate(t *testing.T) {
	ctx := context.Background()
	readModel := read_model_ops_bookings.NewOpsBookingReadModel(db.SetupPostgres(t))

	err := readModel.OnFeedbackSubmitted(ctx, &entity.FeedbackSubmitted_v1{
		Header:    entity.NewEventHeader(),
		BookingID: uuid.NewString(),
	})
	assert.Error(t, err, "handler should fail so the message is redelivered")
}

func TestOpsBookingReadModel_notFound(t *testing.T) {
	ctx := context.Background()
	readModel := read_model_ops_bookings.NewOpsBookingReadModel(db.SetupPostgres(t))

	_, err := readModel.BookingReadModel(ctx, uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = readModel.BookingReadModel(ctx, "garbage")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func bookingIDs(bookings []entity.OpsBooking) []string {
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.BookingID)
	}
	return ids
}
