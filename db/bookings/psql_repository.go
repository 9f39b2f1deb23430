package bookings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bookings/entity"
	"bookings/pubsub/bus"
	"bookings/pubsub/outbox"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return &PostgresRepository{db: db}
}

type bookingRow struct {
	BookingID string `db:"booking_id"`

	CustomerUsername string `db:"customer_username"`
	CustomerName     string `db:"customer_name"`
	CustomerEmail    string `db:"customer_email"`
	CustomerPhone    string `db:"customer_phone"`
	CustomerAddress  string `db:"customer_address"`

	ProviderUsername    string `db:"provider_username"`
	ProviderName        string `db:"provider_name"`
	ProviderPhone       string `db:"provider_phone"`
	ProviderDescription string `db:"provider_description"`
	ProviderLocation    string `db:"provider_location"`
	ProviderExperience  string `db:"provider_experience"`

	ServiceName        string          `db:"service_name"`
	ServiceDescription string          `db:"service_description"`
	VisitingPrice      decimal.Decimal `db:"visiting_price"`
	MaxPrice           decimal.Decimal `db:"max_price"`
	ImageData          []byte          `db:"image_data"`
	ImageContentType   sql.NullString  `db:"image_content_type"`

	RequestedDate string `db:"requested_date"`
	Description   string `db:"description"`

	Status         string         `db:"status"`
	FeedbackStatus bool           `db:"feedback_status"`
	Feedback       sql.NullString `db:"feedback"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toRow(b entity.Booking) bookingRow {
	row := bookingRow{
		BookingID:           b.BookingID,
		CustomerUsername:    b.Customer.Username,
		CustomerName:        b.Customer.Name,
		CustomerEmail:       b.Customer.Email,
		CustomerPhone:       b.Customer.Phone,
		CustomerAddress:     b.Customer.Address,
		ProviderUsername:    b.Provider.Username,
		ProviderName:        b.Provider.Name,
		ProviderPhone:       b.Provider.Phone,
		ProviderDescription: b.Provider.Description,
		ProviderLocation:    b.Provider.Location,
		ProviderExperience:  b.Provider.Experience,
		ServiceName:         b.Service.Name,
		ServiceDescription:  b.Service.Description,
		VisitingPrice:       b.Service.VisitingPrice,
		MaxPrice:            b.Service.MaxPrice,
		RequestedDate:       b.RequestedDate,
		Description:         b.Description,
		Status:              string(b.Status),
		FeedbackStatus:      b.FeedbackStatus,
		Feedback:            sql.NullString{String: b.Feedback, Valid: b.Feedback != ""},
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
	if b.Service.Image != nil {
		row.ImageData = b.Service.Image.Data
		row.ImageContentType = sql.NullString{String: b.Service.Image.ContentType, Valid: true}
	}

	return row
}

func (r bookingRow) toEntity() entity.Booking {
	b := entity.Booking{
		BookingID: r.BookingID,
		Customer: entity.CustomerSnapshot{
			Username: r.CustomerUsername,
			Name:     r.CustomerName,
			Email:    r.CustomerEmail,
			Phone:    r.CustomerPhone,
			Address:  r.CustomerAddress,
		},
		Provider: entity.ProviderSnapshot{
			Username:    r.ProviderUsername,
			Name:        r.ProviderName,
			Phone:       r.ProviderPhone,
			Description: r.ProviderDescription,
			Location:    r.ProviderLocation,
			Experience:  r.ProviderExperience,
		},
		Service: entity.ServiceDescriptor{
			Name:          r.ServiceName,
			Description:   r.ServiceDescription,
			VisitingPrice: r.VisitingPrice,
			MaxPrice:      r.MaxPrice,
		},
		RequestedDate:  r.RequestedDate,
		Description:    r.Description,
		Status:         entity.BookingStatus(r.Status),
		FeedbackStatus: r.FeedbackStatus,
		Feedback:       r.Feedback.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.ImageContentType.Valid {
		b.Service.Image = &entity.Image{Data: r.ImageData, ContentType: r.ImageContentType.String}
	}

	return b
}

// Create stores the booking and its BookingRequested_v1 event in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, booking entity.Booking) error {
	return updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO bookings (
				booking_id,
				customer_username, customer_name, customer_email, customer_phone, customer_address,
				provider_username, provider_name, provider_phone, provider_description, provider_location, provider_experience,
				service_name, service_description, visiting_price, max_price, image_data, image_content_type,
				requested_date, description,
				status, feedback_status, feedback,
				created_at, updated_at
			) VALUES (
				:booking_id,
				:customer_username, :customer_name, :customer_email, :customer_phone, :customer_address,
				:provider_username, :provider_name, :provider_phone, :provider_description, :provider_location, :provider_experience,
				:service_name, :service_description, :visiting_price, :max_price, :image_data, :image_content_type,
				:requested_date, :description,
				:status, :feedback_status, :feedback,
				:created_at, :updated_at
			)`, toRow(booking))
		if err != nil {
			return fmt.Errorf("could not add booking: %w", err)
		}

		return publishInTx(ctx, tx, entity.BookingRequested_v1{
			Header:           entity.NewEventHeaderWithIdempotencyKey(booking.BookingID),
			BookingID:        booking.BookingID,
			CustomerUsername: booking.Customer.Username,
			ProviderUsername: booking.Provider.Username,
			ServiceName:      booking.Service.Name,
			RequestedDate:    booking.RequestedDate,
		})
	})
}

func (r *PostgresRepository) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	if _, err := uuid.Parse(bookingID); err != nil {
		return entity.Booking{}, fmt.Errorf("booking %q: %w", bookingID, entity.ErrNotFound)
	}

	var row bookingRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM bookings WHERE booking_id = $1`, bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Booking{}, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not get booking %s: %w", bookingID, err)
	}

	return row.toEntity(), nil
}

// CompareAndSetStatus updates the status only while it still equals change.Expected.
// Concurrent writers serialize on the row lock, the loser sees zero affected rows.
func (r *PostgresRepository) CompareAndSetStatus(ctx context.Context, change entity.StatusChange) (changed bool, err error) {
	err = updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET status = $1, updated_at = $2
			WHERE booking_id = $3 AND status = $4`,
			change.Next, time.Now().UTC(), change.BookingID, change.Expected,
		)
		if err != nil {
			return fmt.Errorf("could not update booking status: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		changed = true

		return publishInTx(ctx, tx, entity.BookingStatusChanged_v1{
			Header:    entity.NewEventHeader(),
			BookingID: change.BookingID,
			Action:    change.Action,
			From:      change.Expected,
			To:        change.Next,
			ChangedBy: change.ChangedBy,
		})
	})
	if err != nil {
		return false, err
	}

	return changed, nil
}

func (r *PostgresRepository) SetFeedback(ctx context.Context, bookingID, feedback, submittedBy string) (written bool, err error) {
	err = updateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET feedback = $1, feedback_status = TRUE, updated_at = $2
			WHERE booking_id = $3 AND status = $4 AND feedback_status = FALSE`,
			feedback, time.Now().UTC(), bookingID, entity.BookingStatusCompleted,
		)
		if err != nil {
			return fmt.Errorf("could not store feedback: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		written = true

		return publishInTx(ctx, tx, entity.FeedbackSubmitted_v1{
			Header:           entity.NewEventHeaderWithIdempotencyKey(bookingID),
			BookingID:        bookingID,
			CustomerUsername: submittedBy,
		})
	})
	if err != nil {
		return false, err
	}

	return written, nil
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, username string) ([]entity.Booking, error) {
	return r.list(ctx, `SELECT * FROM bookings WHERE customer_username = $1 ORDER BY created_at DESC`, username)
}

func (r *PostgresRepository) ListByProvider(ctx context.Context, username string) ([]entity.Booking, error) {
	return r.list(ctx, `SELECT * FROM bookings WHERE provider_username = $1 ORDER BY created_at DESC`, username)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]entity.Booking, error) {
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("could not list bookings: %w", err)
	}

	result := make([]entity.Booking, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toEntity())
	}

	return result, nil
}

func publishInTx(ctx context.Context, tx *sqlx.Tx, event any) error {
	outboxPublisher, err := outbox.NewPublisherForDb(ctx, tx)
	if err != nil {
		return fmt.Errorf("could not create outbox publisher: %w", err)
	}

	eventBus, err := bus.NewEventBus(outboxPublisher)
	if err != nil {
		return fmt.Errorf("could not create event bus: %w", err)
	}

	if err := eventBus.Publish(ctx, event); err != nil {
		return fmt.Errorf("could not publish event: %w", err)
	}

	return nil
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
