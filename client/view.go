package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"bookings/entity"
	"bookings/lifecycle"
)

var ErrOperationInFlight = errors.New("another operation on this booking is in flight")

type Backend interface {
	List(ctx context.Context) ([]Booking, error)
	Book(ctx context.Context, req entity.BookingRequest) (Booking, error)
	Accept(ctx context.Context, bookingID string) (Booking, error)
	Decline(ctx context.Context, bookingID string) (Booking, error)
	Cancel(ctx context.Context, bookingID string) (Booking, error)
	RequestCompletionCode(ctx context.Context, bookingID string) (CompletionCode, error)
	VerifyCompletionCode(ctx context.Context, bookingID, code string) (Booking, error)
	SubmitFeedback(ctx context.Context, bookingID, feedback string) (Booking, error)
}

// Row is one booking as the viewer should see it right now.
type Row struct {
	Booking entity.Booking
	Actions []entity.BookingAction
	// Pending is set while an optimistic change waits for the server.
	Pending bool
}

// View caches the viewer's bookings. The server-confirmed copy is only ever replaced by
// a server response; optimistic changes live in a separate overlay that is dropped once
// the server answers, whatever the answer is.
type View struct {
	backend Backend
	role    entity.Role

	mu         sync.Mutex
	confirmed  map[string]entity.Booking
	optimistic map[string]entity.Booking
}

func NewView(backend Backend, role entity.Role) *View {
	if backend == nil {
		panic("missing backend")
	}

	return &View{
		backend:    backend,
		role:       role,
		confirmed:  map[string]entity.Booking{},
		optimistic: map[string]entity.Booking{},
	}
}

// Refresh replaces the confirmed copy with the server's list.
func (v *View) Refresh(ctx context.Context) error {
	bookings, err := v.backend.List(ctx)
	if err != nil {
		return err
	}

	confirmed := make(map[string]entity.Booking, len(bookings))
	for _, b := range bookings {
		confirmed[b.BookingID] = b.Booking
	}

	v.mu.Lock()
	v.confirmed = confirmed
	v.mu.Unlock()

	return nil
}

func (v *View) Book(ctx context.Context, req entity.BookingRequest) (entity.Booking, error) {
	booking, err := v.backend.Book(ctx, req)
	if err != nil {
		return entity.Booking{}, err
	}

	v.mu.Lock()
	v.confirmed[booking.BookingID] = booking.Booking
	v.mu.Unlock()

	return booking.Booking, nil
}

func (v *View) Accept(ctx context.Context, bookingID string) (entity.Booking, error) {
	return v.apply(ctx, bookingID, setStatus(entity.BookingStatusConfirm), v.backend.Accept)
}

func (v *View) Decline(ctx context.Context, bookingID string) (entity.Booking, error) {
	return v.apply(ctx, bookingID, setStatus(entity.BookingStatusRejected), v.backend.Decline)
}

func (v *View) Cancel(ctx context.Context, bookingID string) (entity.Booking, error) {
	return v.apply(ctx, bookingID, setStatus(entity.BookingStatusCancel), v.backend.Cancel)
}

// RequestCompletionCode leaves the status as it is, the row is only marked pending.
func (v *View) RequestCompletionCode(ctx context.Context, bookingID string) (CompletionCode, error) {
	var issued CompletionCode
	_, err := v.apply(ctx, bookingID, func(*entity.Booking) {}, func(ctx context.Context, id string) (Booking, error) {
		var err error
		issued, err = v.backend.RequestCompletionCode(ctx, id)
		return issued.Booking, err
	})
	if err != nil {
		return CompletionCode{}, err
	}

	return issued, nil
}

func (v *View) VerifyCompletionCode(ctx context.Context, bookingID, code string) (entity.Booking, error) {
	return v.apply(ctx, bookingID, setStatus(entity.BookingStatusCompleted), func(ctx context.Context, id string) (Booking, error) {
		return v.backend.VerifyCompletionCode(ctx, id, code)
	})
}

func (v *View) SubmitFeedback(ctx context.Context, bookingID, feedback string) (entity.Booking, error) {
	return v.apply(
		ctx,
		bookingID,
		func(b *entity.Booking) {
			b.FeedbackStatus = true
			b.Feedback = feedback
		},
		func(ctx context.Context, id string) (Booking, error) {
			return v.backend.SubmitFeedback(ctx, id, feedback)
		},
	)
}

// Booking returns what the viewer currently sees for the booking.
func (v *View) Booking(bookingID string) (Row, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, pending := v.optimistic[bookingID]
	if !pending {
		var ok bool
		if b, ok = v.confirmed[bookingID]; !ok {
			return Row{}, false
		}
	}

	return v.row(b, pending), true
}

// Rows renders every booking, newest first.
func (v *View) Rows() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()

	rows := make([]Row, 0, len(v.confirmed))
	for id, b := range v.confirmed {
		o, pending := v.optimistic[id]
		if pending {
			b = o
		}
		rows = append(rows, v.row(b, pending))
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Booking.CreatedAt.Equal(rows[j].Booking.CreatedAt) {
			return rows[i].Booking.BookingID < rows[j].Booking.BookingID
		}
		return rows[i].Booking.CreatedAt.After(rows[j].Booking.CreatedAt)
	})

	return rows
}

func (v *View) row(b entity.Booking, pending bool) Row {
	return Row{
		Booking: b,
		Actions: lifecycle.AvailableActions(b.Status, b.FeedbackStatus, v.role),
		Pending: pending,
	}
}

func (v *View) apply(
	ctx context.Context,
	bookingID string,
	mutate func(*entity.Booking),
	call func(ctx context.Context, bookingID string) (Booking, error),
) (entity.Booking, error) {
	v.mu.Lock()
	if _, inFlight := v.optimistic[bookingID]; inFlight {
		v.mu.Unlock()
		return entity.Booking{}, ErrOperationInFlight
	}
	base, ok := v.confirmed[bookingID]
	if !ok {
		v.mu.Unlock()
		return entity.Booking{}, fmt.Errorf("booking %s is not in the view: %w", bookingID, entity.ErrNotFound)
	}
	optimistic := base
	mutate(&optimistic)
	v.optimistic[bookingID] = optimistic
	v.mu.Unlock()

	confirmed, err := call(ctx, bookingID)

	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.optimistic, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	v.confirmed[bookingID] = confirmed.Booking

	return confirmed.Booking, nil
}

func setStatus(status entity.BookingStatus) func(*entity.Booking) {
	return func(b *entity.Booking) {
		b.Status = status
	}
}
