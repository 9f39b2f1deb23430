package bookings_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookings/db"
	"bookings/db/bookings"
	"bookings/entity"
)

func newBooking(customer, provider string) entity.Booking {
	now := time.Now().UTC().Truncate(time.Microsecond)

	return entity.Booking{
		BookingID: uuid.NewString(),
		Customer: entity.CustomerSnapshot{
			Username: customer,
			Name:     "Customer " + customer,
			Email:    customer + "@example.com",
			Phone:    "555-0100",
			Address:  "1 Main St",
		},
		Provider: entity.ProviderSnapshot{
			Username:    provider,
			Name:        "Provider " + provider,
			Phone:       "555-0101",
			Description: "electrician",
			Location:    "Springfield",
			Experience:  "5 years",
		},
		Service: entity.ServiceDescriptor{
			Name:          "Wiring",
			Description:   "house wiring",
			VisitingPrice: decimal.RequireFromString("19.99"),
			MaxPrice:      decimal.RequireFromString("250.125"),
			Image:         &entity.Image{Data: []byte{0xff, 0xd8, 0xff, 0x00, 0x01}, ContentType: "image/jpeg"},
		},
		RequestedDate: "2026-11-02",
		Description:   "new sockets",
		Status:        entity.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestPostgresRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := bookings.NewPostgresRepository(db.SetupPostgres(t))

	booking := newBooking(uuid.NewString(), uuid.NewString())
	require.NoError(t, repo.Create(ctx, booking))

	stored, err := repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)

	assert.Equal(t, booking.Customer, stored.Customer)
	assert.Equal(t, booking.Provider, stored.Provider)
	assert.Equal(t, booking.Service.Image, stored.Service.Image)
	assert.True(t, booking.Service.VisitingPrice.Equal(stored.Service.VisitingPrice))
	assert.True(t, booking.Service.MaxPrice.Equal(stored.Service.MaxPrice))
	assert.Equal(t, entity.BookingStatusPending, stored.Status)
	assert.False(t, stored.FeedbackStatus)
	assert.Empty(t, stored.Feedback)
	assert.True(t, booking.CreatedAt.Equal(stored.CreatedAt))

	withoutImage := newBooking(uuid.NewString(), uuid.NewString())
	withoutImage.Service.Image = nil
	require.NoError(t, repo.Create(ctx, withoutImage))

	stored, err = repo.Get(ctx, withoutImage.BookingID)
	require.NoError(t, err)
	assert.Nil(t, stored.Service.Image)
}

func TestPostgresRepository_Get_notFound(t *testing.T) {
	ctx := context.Background()
	repo := bookings.NewPostgresRepository(db.SetupPostgres(t))

	_, err := repo.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = repo.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPostgresRepository_CompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	repo := bookings.NewPostgresRepository(db.SetupPostgres(t))

	booking := newBooking(uuid.NewString(), uuid.NewString())
	require.NoError(t, repo.Create(ctx, booking))

	changed, err := repo.CompareAndSetStatus(ctx, entity.StatusChange{
		BookingID: booking.BookingID,
		Action:    entity.ActionAccept,
		Expected:  entity.BookingStatusConfirm,
		Next:      entity.BookingStatusCompleted,
		ChangedBy: booking.Provider.Username,
	})
	require.NoError(t, err)
	assert.False(t, changed, "expected status doesn't match")

	changed, err = repo.CompareAndSetStatus(ctx, entity.StatusChange{
		BookingID: booking.BookingID,
		Action:    entity.ActionAccept,
		Expected:  entity.BookingStatusPending,
		Next:      entity.BookingStatusConfirm,
		ChangedBy: booking.Provider.Username,
	})
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirm, stored.Status)
}

func TestPostgresRepository_CompareAndSetStatus_concurrent(t *testing.T) {
	ctx := context.Background()
	repo := bookings.NewPostgresRepository(db.SetupPostgres(t))

	booking := newBooking(uuid.NewString(), uuid.NewString())
	require.NoError(t, repo.Create(ctx, booking))

	nexts := []entity.BookingStatus{
		entity.BookingStatusConfirm,
		entity.BookingStatusRejected,
		entity.BookingStatusCancel,
		entity.BookingStatusConfirm,
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []entity.BookingStatus
	)
	for _, next := range nexts {
		next := next
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := repo.CompareAndSetStatus(ctx, entity.StatusChange{
				BookingID: booking.BookingID,
				Action:    entity.ActionAccept,
				Expected:  entity.BookingStatusPending,
				Next:      next,
			})
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				winners = append(winners, next)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)

	stored, err := repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], stored.Status)
}

func TestPostgresRepository_SetFeedback(t *testing.T) {
	ctx := context.Background()
	repo := bookings.NewPostgresRepository(db.SetupPostgres(t))

	booking := newBooking(uuid.NewString(), uuid.NewString())
	require.NoError(t, repo.Create(ctx, booking))

	written, err := repo.SetFeedback(ctx, booking.BookingID, "too early", booking.Customer.Username)
	require.NoError(t, err)
	assert.False(t, written, "pending booking can't take feedback")

	for _, step := range []entity.StatusChange{
		{BookingID: booking.BookingID, Expected: entity.BookingStatusPending, Next: entity.BookingStatusConfirm},
		{BookingID: booking.BookingID, Expected: entity.BookingStatusConfirm, Next: entity.BookingStatusCompleted},
	} {
		changed, err := repo.CompareAndSetStatus(ctx, step)
		require.NoError(t, err)
		require.True(t, changed)
	}

	written, err = repo.SetFeedback(ctx, booking.BookingID, "Great job", booking.Customer.Username)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = repo.SetFeedback(ctx, booking.BookingID, "edit", booking.Customer.Username)
	require.NoError(t, err)
	assert.False(t, written)

	stored, err := repo.Get(ctx, booking.BookingID)
	require.NoError(t, err)
	assert.True(t, stored.FeedbackStatus)
	assert.Equal(t, "Great job", stored.Feedback)
}

func TestPostgresRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := bookings.NewPostgresRepository(db.SetupPostgres(t))

	customer := uuid.NewString()
	provider := uuid.NewString()

	first := newBooking(customer, provider)
	second := newBooking(customer, uuid.NewString())
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	other := newBooking(uuid.NewString(), provider)

	for _, b := range []entity.Booking{first, second, other} {
		require.NoError(t, repo.Create(ctx, b))
	}

	byCustomer, err := repo.ListByCustomer(ctx, customer)
	require.NoError(t, err)
	require.Len(t, byCustomer, 2)
	assert.Equal(t, second.BookingID, byCustomer[0].BookingID, "newest first")

	byProvider, err := repo.ListByProvider(ctx, provider)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.BookingID, other.BookingID}, []string{byProvider[0].BookingID, byProvider[1].BookingID})

	none, err := repo.ListByProvider(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, none)
}
