package data_lake_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/db"
	"bookings/db/data_lake"
	"bookings/entity"
)

func archivedEvent(name, bookingID string, publishedAt time.Time) entity.DataLakeEvent {
	return entity.DataLakeEvent{
		ID:          uuid.NewString(),
		PublishedAt: publishedAt.UTC().Truncate(time.Microsecond),
		Name:        name,
		Payload:     []byte(`{"booking_id": "` + bookingID + `"}`),
	}
}

func TestDataLake_StoreEvent(t *testing.T) {
	ctx := context.Background()
	dataLake := data_lake.NewDataLake(db.SetupPostgres(t))

	event := archivedEvent("BookingRequested_v1", "b1", time.Now())

	require.NoError(t, dataLake.StoreEvent(ctx, event))
	// re-delivery is ignored
	require.NoError(t, dataLake.StoreEvent(ctx, event))

	events, err := dataLake.GetEvents(ctx)
	require.NoError(t, err)

	stored := lo.Filter(events, func(e entity.DataLakeEvent, _ int) bool { return e.ID == event.ID })
	require.Len(t, stored, 1)
	assert.Equal(t, event.Name, stored[0].Name)
	assert.JSONEq(t, string(event.Payload), string(stored[0].Payload))
}

func TestDataLake_GetEvents_order(t *testing.T) {
	ctx := context.Background()
	dataLake := data_lake.NewDataLake(db.SetupPostgres(t))

	bookingID := uuid.NewString()
	sameInstant := time.Now().Add(-time.Hour)

	later := archivedEvent("BookingStatusChanged_v1", bookingID, sameInstant.Add(time.Second))
	tied := []entity.DataLakeEvent{
		archivedEvent("BookingRequested_v1", bookingID, sameInstant),
		archivedEvent("CompletionCodeIssued_v1", bookingID, sameInstant),
		archivedEvent("FeedbackSubmitted_v1", bookingID, sameInstant),
	}

	// stored out of order on purpose
	require.NoError(t, dataLake.StoreEvent(ctx, later))
	for i := len(tied) - 1; i >= 0; i-- {
		require.NoError(t, dataLake.StoreEvent(ctx, tied[i]))
	}

	events, err := dataLake.GetEvents(ctx)
	require.NoError(t, err)

	expected := lo.Map(tied, eventID)
	sort.Strings(expected)
	expected = append(expected, later.ID)

	ids := lo.FilterMap(events, func(e entity.DataLakeEvent, _ int) (string, bool) {
		return e.ID, lo.Contains(expected, e.ID)
	})

	assert.Equal(t, expected, ids)

	again, err := dataLake.GetEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, lo.Map(events, eventID), lo.Map(again, eventID))
}

func TestDataLake_GetEvents_byName(t *testing.T) {
	ctx := context.Background()
	dataLake := data_lake.NewDataLake(db.SetupPostgres(t))

	bookingID := uuid.NewString()
	requested := archivedEvent("BookingRequested_v1", bookingID, time.Now())
	legacy := archivedEvent("TicketBookingConfirmed_v0", bookingID, time.Now())
	require.NoError(t, dataLake.StoreEvent(ctx, requested))
	require.NoError(t, dataLake.StoreEvent(ctx, legacy))

	events, err := dataLake.GetEvents(ctx, "BookingRequested_v1", "FeedbackSubmitted_v1")
	require.NoError(t, err)

	ids := lo.Map(events, eventID)
	assert.Contains(t, ids, requested.ID)
	assert.NotContains(t, ids, legacy.ID)
	for _, e := range events {
		assert.Contains(t, []string{"BookingRequested_v1", "FeedbackSubmitted_v1"}, e.Name)
	}
}

func eventID(e entity.DataLakeEvent, _ int) string {
	return e.ID
}
