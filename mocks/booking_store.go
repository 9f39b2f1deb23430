package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookings/entity"
)

// BookingStore keeps bookings in memory with the same compare-and-set semantics as the
// Postgres repository. Events it would have written to the outbox are kept in Events.
type BookingStore struct {
	mu       sync.Mutex
	bookings map[string]entity.Booking

	Events []any
}

func NewBookingStore() *BookingStore {
	return &BookingStore{bookings: map[string]entity.Booking{}}
}

func (s *BookingStore) Create(ctx context.Context, booking entity.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bookings[booking.BookingID] = booking
	s.Events = append(s.Events, entity.BookingRequested_v1{
		Header:           entity.NewEventHeader(),
		BookingID:        booking.BookingID,
		CustomerUsername: booking.Customer.Username,
		ProviderUsername: booking.Provider.Username,
		ServiceName:      booking.Service.Name,
		RequestedDate:    booking.RequestedDate,
	})

	return nil
}

func (s *BookingStore) Get(ctx context.Context, bookingID string) (entity.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingID]
	if !ok {
		return entity.Booking{}, entity.ErrNotFound
	}

	return booking, nil
}

func (s *BookingStore) CompareAndSetStatus(ctx context.Context, change entity.StatusChange) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[change.BookingID]
	if !ok || booking.Status != change.Expected {
		return false, nil
	}

	booking.Status = change.Next
	booking.UpdatedAt = time.Now().UTC()
	s.bookings[change.BookingID] = booking

	s.Events = append(s.Events, entity.BookingStatusChanged_v1{
		Header:    entity.NewEventHeader(),
		BookingID: change.BookingID,
		Action:    change.Action,
		From:      change.Expected,
		To:        change.Next,
		ChangedBy: change.ChangedBy,
	})

	return true, nil
}

func (s *BookingStore) SetFeedback(ctx context.Context, bookingID, feedback, submittedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingID]
	if !ok || booking.Status != entity.BookingStatusCompleted || booking.FeedbackStatus {
		return false, nil
	}

	booking.Feedback = feedback
	booking.FeedbackStatus = true
	booking.UpdatedAt = time.Now().UTC()
	s.bookings[bookingID] = booking

	s.Events = append(s.Events, entity.FeedbackSubmitted_v1{
		Header:           entity.NewEventHeader(),
		BookingID:        bookingID,
		CustomerUsername: submittedBy,
	})

	return true, nil
}

func (s *BookingStore) ListByCustomer(ctx context.Context, username string) ([]entity.Booking, error) {
	return s.list(func(b entity.Booking) bool { return b.Customer.Username == username }), nil
}

func (s *BookingStore) ListByProvider(ctx context.Context, username string) ([]entity.Booking, error) {
	return s.list(func(b entity.Booking) bool { return b.Provider.Username == username }), nil
}

func (s *BookingStore) list(filter func(entity.Booking) bool) []entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []entity.Booking
	for _, b := range s.bookings {
		if filter(b) {
			result = append(result, b)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

func (s *BookingStore) EventsOfType(match func(any) bool) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []any
	for _, e := range s.Events {
		if match(e) {
			result = append(result, e)
		}
	}
	return result
}
