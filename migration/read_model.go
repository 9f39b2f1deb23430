package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"bookings/entity"
)

type DataLake interface {
	GetEvents(ctx context.Context, names ...string) ([]entity.DataLakeEvent, error)
}

// replayedEvents are the archived events the ops read model is built from.
var replayedEvents = []string{
	"BookingRequested_v1",
	"BookingStatusChanged_v1",
	"CompletionCodeIssued_v1",
	"FeedbackSubmitted_v1",
}

type OpsReadModel interface {
	OnBookingRequested(ctx context.Context, event *entity.BookingRequested_v1) error
	OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error
	OnCompletionCodeIssued(ctx context.Context, event *entity.CompletionCodeIssued_v1) error
	OnFeedbackSubmitted(ctx context.Context, event *entity.FeedbackSubmitted_v1) error
}

// MigrateReadModel rebuilds the ops read model by replaying the data lake.
// Read model handlers are idempotent, so replaying over an existing model is safe.
func MigrateReadModel(ctx context.Context, dl DataLake, rm OpsReadModel) error {
	logger := log.FromContext(ctx)
	logger.Info("Migrating read model")

	events, err := dl.GetEvents(ctx, replayedEvents...)
	if err != nil {
		return fmt.Errorf("could not get events from data lake: %w", err)
	}
	if len(events) == 0 {
		logger.Info("No events to migrate")
		return nil
	}

	logger.WithField("events_count", len(events)).Info("Has events to migrate")

	for _, event := range events {
		start := time.Now()

		logger := logger.WithFields(logrus.Fields{
			"event_name": event.Name,
			"event_id":   event.ID,
		})
		logger.Debug("Migrating event")

		err := migrateEvent(ctx, event, rm)
		if err != nil {
			return fmt.Errorf("could not migrate event %s (%s): %w", event.ID, event.Name, err)
		}

		logger.WithField("duration", time.Since(start)).Debug("Event migrated")
	}

	return nil
}

func migrateEvent(ctx context.Context, event entity.DataLakeEvent, rm OpsReadModel) error {
	switch event.Name {
	case "BookingRequested_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingRequested_v1](event)
		if err != nil {
			return err
		}
		return rm.OnBookingRequested(ctx, e)
	case "BookingStatusChanged_v1":
		e, err := unmarshalDataLakeEvent[entity.BookingStatusChanged_v1](event)
		if err != nil {
			return err
		}
		return rm.OnBookingStatusChanged(ctx, e)
	case "CompletionCodeIssued_v1":
		e, err := unmarshalDataLakeEvent[entity.CompletionCodeIssued_v1](event)
		if err != nil {
			return err
		}
		return rm.OnCompletionCodeIssued(ctx, e)
	case "FeedbackSubmitted_v1":
		e, err := unmarshalDataLakeEvent[entity.FeedbackSubmitted_v1](event)
		if err != nil {
			return err
		}
		return rm.OnFeedbackSubmitted(ctx, e)
	default:
		return fmt.Errorf("unknown event %s", event.Name)
	}
}

func unmarshalDataLakeEvent[T any](event entity.DataLakeEvent) (*T, error) {
	eventInstance := new(T)

	err := json.Unmarshal(event.Payload, eventInstance)
	if err != nil {
		return nil, fmt.Errorf("could not unmarshal event %s: %w", event.Name, err)
	}

	return eventInstance, nil
}
