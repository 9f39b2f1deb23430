package data_lake

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookings/entity"
)

// DataLake is the append-only archive of every published booking event. Read models are
// rebuilt from it.
type DataLake struct {
	db *sqlx.DB
}

func NewDataLake(db *sqlx.DB) DataLake {
	if db == nil {
		panic("db is nil")
	}

	return DataLake{db: db}
}

// StoreEvent archives the event once, redelivered copies are dropped.
func (s DataLake) StoreEvent(ctx context.Context, event entity.DataLakeEvent) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO events (event_id, published_at, event_name, event_payload)
		VALUES (:event_id, :published_at, :event_name, :event_payload)
		ON CONFLICT (event_id) DO NOTHING`,
		event,
	)
	if err != nil {
		return fmt.Errorf("could not archive %s event %s: %w", event.Name, event.ID, err)
	}

	return nil
}

// GetEvents returns archived events in publication order. Events published in the same
// instant come back in event_id order, so every replay sees the same sequence. With names
// given, only events of those names are returned.
func (s DataLake) GetEvents(ctx context.Context, names ...string) ([]entity.DataLakeEvent, error) {
	query := `
		SELECT event_id, published_at, event_name, event_payload
		FROM events`
	var args []any
	if len(names) > 0 {
		query += ` WHERE event_name = ANY($1)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY published_at, event_id`

	var events []entity.DataLakeEvent
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("could not read archived events: %w", err)
	}

	return events, nil
}
