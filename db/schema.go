package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"bookings/pubsub/outbox"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bookings (
			booking_id UUID PRIMARY KEY,

			customer_username VARCHAR(255) NOT NULL,
			customer_name VARCHAR(255) NOT NULL,
			customer_email VARCHAR(255) NOT NULL,
			customer_phone VARCHAR(64) NOT NULL,
			customer_address TEXT NOT NULL,

			provider_username VARCHAR(255) NOT NULL,
			provider_name VARCHAR(255) NOT NULL,
			provider_phone VARCHAR(64) NOT NULL,
			provider_description TEXT NOT NULL,
			provider_location TEXT NOT NULL,
			provider_experience TEXT NOT NULL,

			service_name VARCHAR(255) NOT NULL,
			service_description TEXT NOT NULL,
			visiting_price NUMERIC NOT NULL,
			max_price NUMERIC NOT NULL,
			image_data BYTEA,
			image_content_type VARCHAR(255),

			requested_date VARCHAR(64) NOT NULL,
			description TEXT NOT NULL,

			status VARCHAR(16) NOT NULL,
			feedback_status BOOLEAN NOT NULL DEFAULT FALSE,
			feedback TEXT,

			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS bookings_customer_username_idx ON bookings (customer_username);
		CREATE INDEX IF NOT EXISTS bookings_provider_username_idx ON bookings (provider_username);

		CREATE TABLE IF NOT EXISTS read_model_ops_bookings (
			booking_id UUID PRIMARY KEY,
			payload JSONB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMP NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS events_name_published_at_idx ON events (event_name, published_at);
	`)
	if err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}

	if err := outbox.InitializeSchema(db.DB); err != nil {
		return err
	}

	return nil
}
