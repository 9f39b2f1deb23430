package read_model_ops_bookings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"bookings/entity"
)

type OpsBookingReadModel struct {
	db *sqlx.DB
}

func NewOpsBookingReadModel(db *sqlx.DB) OpsBookingReadModel {
	if db == nil {
		panic("db is nil")
	}

	return OpsBookingReadModel{db: db}
}

// AllBookings returns every read model, optionally only those currently in status.
func (r OpsBookingReadModel) AllBookings(ctx context.Context, status string) ([]entity.OpsBooking, error) {
	query := "SELECT payload FROM read_model_ops_bookings"
	var queryArgs []any

	if status != "" {
		query += " WHERE payload->>'status' = $1"
		queryArgs = append(queryArgs, status)
	}
	query += " ORDER BY (payload->>'requested_at')::timestamptz DESC"

	var payloads [][]byte
	if err := r.db.SelectContext(ctx, &payloads, query, queryArgs...); err != nil {
		return nil, fmt.Errorf("could not get booking read models: %w", err)
	}

	result := make([]entity.OpsBooking, 0, len(payloads))
	for _, payload := range payloads {
		rm, err := r.unmarshalReadModelFromDB(payload)
		if err != nil {
			return nil, err
		}
		result = append(result, rm)
	}

	return result, nil
}

func (r OpsBookingReadModel) BookingReadModel(ctx context.Context, bookingID string) (entity.OpsBooking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return entity.OpsBooking{}, fmt.Errorf("ops booking %q: %w", bookingID, entity.ErrNotFound)
	}

	rm, err := r.findReadModelByBookingID(ctx, bookingID, r.db)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.OpsBooking{}, fmt.Errorf("ops booking %s: %w", bookingID, entity.ErrNotFound)
	}

	return rm, err
}

func (r OpsBookingReadModel) OnBookingRequested(ctx context.Context, event *entity.BookingRequested_v1) error {
	// this is the first event that should arrive, so we create the read model
	err := r.createReadModel(ctx, entity.OpsBooking{
		BookingID:        event.BookingID,
		CustomerUsername: event.CustomerUsername,
		ProviderUsername: event.ProviderUsername,
		ServiceName:      event.ServiceName,
		Status:           entity.BookingStatusPending,
		RequestedAt:      event.Header.PublishedAt,
		LastUpdate:       time.Now(),
	})
	if err != nil {
		return fmt.Errorf("could not create read model: %w", err)
	}

	return nil
}

func (r OpsBookingReadModel) OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error {
	return r.updateBookingReadModel(
		ctx,
		event.BookingID,
		func(rm entity.OpsBooking) (entity.OpsBooking, error) {
			if lo.ContainsBy(rm.Timeline, func(c entity.OpsStatusChange) bool { return c.EventID == event.Header.ID }) {
				log.FromContext(ctx).WithField("event_id", event.Header.ID).Debug("Status change already applied")
				return rm, nil
			}

			rm.Timeline = append(rm.Timeline, entity.OpsStatusChange{
				EventID:   event.Header.ID,
				Action:    event.Action,
				From:      event.From,
				To:        event.To,
				ChangedBy: event.ChangedBy,
				ChangedAt: event.Header.PublishedAt,
			})
			sort.SliceStable(rm.Timeline, func(i, j int) bool {
				return rm.Timeline[i].ChangedAt.Before(rm.Timeline[j].ChangedAt)
			})
			rm.Status = rm.Timeline[len(rm.Timeline)-1].To

			return rm, nil
		},
	)
}

func (r OpsBookingReadModel) OnCompletionCodeIssued(ctx context.Context, event *entity.CompletionCodeIssued_v1) error {
	return r.updateBookingReadModel(
		ctx,
		event.BookingID,
		func(rm entity.OpsBooking) (entity.OpsBooking, error) {
			if lo.Contains(rm.ChallengeIDs, event.ChallengeID) {
				return rm, nil
			}
			rm.ChallengeIDs = append(rm.ChallengeIDs, event.ChallengeID)
			rm.CompletionCodesIssued = len(rm.ChallengeIDs)
			if event.Header.PublishedAt.After(rm.LastCompletionCodeAt) {
				rm.LastCompletionCodeAt = event.Header.PublishedAt
			}

			return rm, nil
		},
	)
}

func (r OpsBookingReadModel) OnFeedbackSubmitted(ctx context.Context, event *entity.FeedbackSubmitted_v1) error {
	return r.updateBookingReadModel(
		ctx,
		event.BookingID,
		func(rm entity.OpsBooking) (entity.OpsBooking, error) {
			rm.FeedbackSubmittedAt = event.Header.PublishedAt

			return rm, nil
		},
	)
}

func (r OpsBookingReadModel) createReadModel(
	ctx context.Context,
	booking entity.OpsBooking,
) (err error) {
	payload, err := json.Marshal(booking)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO
		    read_model_ops_bookings (payload, booking_id)
		VALUES
			($1, $2)
		ON CONFLICT (booking_id) DO NOTHING; -- read model may be already updated by another event - we don't want to override
`, payload, booking.BookingID)

	if err != nil {
		return fmt.Errorf("could not create read model: %w", err)
	}

	return nil
}

func (r OpsBookingReadModel) updateBookingReadModel(
	ctx context.Context,
	bookingID string,
	updateFunc func(rm entity.OpsBooking) (entity.OpsBooking, error),
) (err error) {
	return updateInTx(
		ctx,
		r.db,
		sql.LevelRepeatableRead,
		func(ctx context.Context, tx *sqlx.Tx) error {
			rm, err := r.findReadModelByBookingID(ctx, bookingID, tx)
			if errors.Is(err, sql.ErrNoRows) {
				// events arrived out of order - it should spin until the read model is created
				return fmt.Errorf("read model for booking %s not exist yet", bookingID)
			} else if err != nil {
				return fmt.Errorf("could not find read model: %w", err)
			}

			updatedRm, err := updateFunc(rm)
			if err != nil {
				return err
			}

			return r.updateReadModel(ctx, tx, updatedRm)
		},
	)
}

func (r OpsBookingReadModel) updateReadModel(
	ctx context.Context,
	tx *sqlx.Tx,
	rm entity.OpsBooking,
) error {
	rm.LastUpdate = time.Now()

	payload, err := json.Marshal(rm)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO
			read_model_ops_bookings (payload, booking_id)
		VALUES
			($1, $2)
		ON CONFLICT (booking_id) DO UPDATE SET payload = excluded.payload;
		`, payload, rm.BookingID)
	if err != nil {
		return fmt.Errorf("could not update read model: %w", err)
	}

	return nil
}

func (r OpsBookingReadModel) findReadModelByBookingID(
	ctx context.Context,
	bookingID string,
	db dbExecutor,
) (entity.OpsBooking, error) {
	var payload []byte

	err := db.QueryRowContext(
		ctx,
		"SELECT payload FROM read_model_ops_bookings WHERE booking_id = $1",
		bookingID,
	).Scan(&payload)
	if err != nil {
		return entity.OpsBooking{}, err
	}

	return r.unmarshalReadModelFromDB(payload)
}

func (r OpsBookingReadModel) unmarshalReadModelFromDB(payload []byte) (entity.OpsBooking, error) {
	var dbReadModel entity.OpsBooking
	if err := json.Unmarshal(payload, &dbReadModel); err != nil {
		return entity.OpsBooking{}, err
	}

	if dbReadModel.Timeline == nil {
		dbReadModel.Timeline = []entity.OpsStatusChange{}
	}

	return dbReadModel, nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateInTx(
	ctx context.Context,
	db *sqlx.DB,
	isolation sql.IsolationLevel,
	fn func(ctx context.Context, tx *sqlx.Tx) error,
) (err error) {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, rollbackErr)
			}
			return
		}

		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
