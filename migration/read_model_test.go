package migrations

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/entity"
)

type dataLakeStub struct {
	events []entity.DataLakeEvent
	err    error
}

func (d dataLakeStub) GetEvents(_ context.Context, names ...string) ([]entity.DataLakeEvent, error) {
	if len(names) == 0 {
		return d.events, d.err
	}

	var filtered []entity.DataLakeEvent
	for _, e := range d.events {
		for _, name := range names {
			if e.Name == name {
				filtered = append(filtered, e)
			}
		}
	}
	return filtered, d.err
}

type recordingReadModel struct {
	calls []string
}

func (r *recordingReadModel) OnBookingRequested(_ context.Context, e *entity.BookingRequested_v1) error {
	r.calls = append(r.calls, "requested:"+e.BookingID)
	return nil
}

func (r *recordingReadModel) OnBookingStatusChanged(_ context.Context, e *entity.BookingStatusChanged_v1) error {
	r.calls = append(r.calls, "status:"+string(e.To))
	return nil
}

func (r *recordingReadModel) OnCompletionCodeIssued(_ context.Context, e *entity.CompletionCodeIssued_v1) error {
	r.calls = append(r.calls, "code:"+e.ChallengeID)
	return nil
}

func (r *recordingReadModel) OnFeedbackSubmitted(_ context.Context, e *entity.FeedbackSubmitted_v1) error {
	r.calls = append(r.calls, "feedback:"+e.CustomerUsername)
	return nil
}

func dataLakeEvent(t *testing.T, name string, payload any) entity.DataLakeEvent {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return entity.DataLakeEvent{
		ID:          uuid.NewString(),
		PublishedAt: time.Now(),
		Name:        name,
		Payload:     data,
	}
}

func TestMigrateReadModel(t *testing.T) {
	ctx := context.Background()

	dl := dataLakeStub{events: []entity.DataLakeEvent{
		dataLakeEvent(t, "BookingRequested_v1", entity.BookingRequested_v1{BookingID: "b1"}),
		dataLakeEvent(t, "BookingStatusChanged_v1", entity.BookingStatusChanged_v1{BookingID: "b1", To: entity.BookingStatusConfirm}),
		dataLakeEvent(t, "CompletionCodeIssued_v1", entity.CompletionCodeIssued_v1{BookingID: "b1", ChallengeID: "c1"}),
		dataLakeEvent(t, "BookingStatusChanged_v1", entity.BookingStatusChanged_v1{BookingID: "b1", To: entity.BookingStatusCompleted}),
		dataLakeEvent(t, "FeedbackSubmitted_v1", entity.FeedbackSubmitted_v1{BookingID: "b1", CustomerUsername: "alice"}),
	}}

	rm := &recordingReadModel{}
	require.NoError(t, MigrateReadModel(ctx, dl, rm))

	assert.Equal(t, []string{
		"requested:b1",
		"status:confirm",
		"code:c1",
		"status:completed",
		"feedback:alice",
	}, rm.calls)
}

func TestMigrateReadModel_skipsUnrelatedEvents(t *testing.T) {
	dl := dataLakeStub{events: []entity.DataLakeEvent{
		dataLakeEvent(t, "ProviderRated_v1", map[string]string{"provider": "bob"}),
		dataLakeEvent(t, "BookingRequested_v1", entity.BookingRequested_v1{BookingID: "b1"}),
	}}

	rm := &recordingReadModel{}
	require.NoError(t, MigrateReadModel(context.Background(), dl, rm))
	assert.Equal(t, []string{"requested:b1"}, rm.calls)
}

func TestMigrateReadModel_empty(t *testing.T) {
	rm := &recordingReadModel{}
	require.NoError(t, MigrateReadModel(context.Background(), dataLakeStub{}, rm))
	assert.Empty(t, rm.calls)
}

func TestMigrateReadModel_errors(t *testing.T) {
	ctx := context.Background()

	err := MigrateReadModel(ctx, dataLakeStub{err: errors.New("connection refused")}, &recordingReadModel{})
	assert.Error(t, err)

	err = migrateEvent(ctx, dataLakeEvent(t, "ProviderRated_v1", map[string]string{"provider": "bob"}), &recordingReadModel{})
	assert.ErrorContains(t, err, "unknown event ProviderRated_v1")

	broken := dataLakeStub{events: []entity.DataLakeEvent{
		{ID: uuid.NewString(), Name: "BookingRequested_v1", Payload: []byte("{")},
	}}
	err = MigrateReadModel(ctx, broken, &recordingReadModel{})
	assert.Error(t, err)
}
