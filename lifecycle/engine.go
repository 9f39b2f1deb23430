package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"

	"bookings/entity"
	"bookings/metrics"
)

type BookingStore interface {
	Create(ctx context.Context, booking entity.Booking) error
	Get(ctx context.Context, bookingID string) (entity.Booking, error)
	// CompareAndSetStatus applies change only while the booking is in change.Expected.
	CompareAndSetStatus(ctx context.Context, change entity.StatusChange) (bool, error)
	// SetFeedback writes feedback only to a completed booking without feedback.
	SetFeedback(ctx context.Context, bookingID, feedback, submittedBy string) (bool, error)
	ListByCustomer(ctx context.Context, username string) ([]entity.Booking, error)
	ListByProvider(ctx context.Context, username string) ([]entity.Booking, error)
}

type CompletionCodes interface {
	Issue(ctx context.Context, booking entity.Booking) (entity.IssuedChallenge, error)
	Verify(ctx context.Context, bookingID, code string) (entity.VerifyResult, error)
}

type Config struct {
	FeedbackMaxLength int
}

// Engine is the only writer of booking status. Every operation checks the actor and the
// source state first and lets the store re-check the state atomically with the write.
type Engine struct {
	store  BookingStore
	codes  CompletionCodes
	config Config
	now    func() time.Time
}

func NewEngine(store BookingStore, codes CompletionCodes, config Config) *Engine {
	if store == nil {
		panic("missing store")
	}
	if codes == nil {
		panic("missing codes")
	}
	if config.FeedbackMaxLength <= 0 {
		config.FeedbackMaxLength = 2000
	}

	return &Engine{
		store:  store,
		codes:  codes,
		config: config,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (e *Engine) Get(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error) {
	booking, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}

	if actor.Role != entity.RoleAdmin && !booking.IsParty(actor) {
		return entity.Booking{}, entity.ErrNotFound
	}

	return booking, nil
}

// List returns only the viewer's own bookings.
func (e *Engine) List(ctx context.Context, actor entity.Actor) ([]entity.Booking, error) {
	switch actor.Role {
	case entity.RoleCustomer:
		return e.store.ListByCustomer(ctx, actor.Username)
	case entity.RoleProvider:
		return e.store.ListByProvider(ctx, actor.Username)
	default:
		return nil, fmt.Errorf("%w: role %q has no own bookings", entity.ErrInvalidInput, actor.Role)
	}
}

func (e *Engine) Accept(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error) {
	return e.transition(ctx, actor, bookingID, entity.ActionAccept)
}

func (e *Engine) Decline(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error) {
	return e.transition(ctx, actor, bookingID, entity.ActionDecline)
}

func (e *Engine) Cancel(ctx context.Context, actor entity.Actor, bookingID string) (entity.Booking, error) {
	return e.transition(ctx, actor, bookingID, entity.ActionCancel)
}

// RequestCompletion issues a new completion code for a confirmed booking. Status does
// not change; the booking completes only once the code is verified.
func (e *Engine) RequestCompletion(
	ctx context.Context,
	actor entity.Actor,
	bookingID string,
) (booking entity.Booking, issued entity.IssuedChallenge, err error) {
	action := entity.ActionRequestCompletion
	defer func() { recordOutcome(action, err) }()

	booking, err = e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, entity.IssuedChallenge{}, err
	}
	if err := e.checkPrecondition(booking, actor, action); err != nil {
		return entity.Booking{}, entity.IssuedChallenge{}, err
	}

	issued, err = e.codes.Issue(ctx, booking)
	if err != nil {
		return entity.Booking{}, entity.IssuedChallenge{}, err
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id":   bookingID,
		"challenge_id": issued.ChallengeID,
		"actor":        actor.Username,
	}).Info("Completion requested")

	return booking, issued, nil
}

// VerifyCompletionCode completes a confirmed booking when code matches its live challenge.
// Submitting the consumed code again returns the completed booking without side effects.
func (e *Engine) VerifyCompletionCode(
	ctx context.Context,
	actor entity.Actor,
	bookingID string,
	code string,
) (result entity.Booking, err error) {
	action := entity.ActionVerifyCode
	defer func() { recordOutcome(action, err) }()

	if strings.TrimSpace(code) == "" {
		return entity.Booking{}, entity.NewInvalidInputError("code is required")
	}

	booking, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	if err := e.authorize(booking, actor, action, edges[action].role); err != nil {
		return entity.Booking{}, err
	}

	if booking.Status == entity.BookingStatusCompleted {
		verified, err := e.codes.Verify(ctx, bookingID, code)
		if err != nil {
			return entity.Booking{}, err
		}
		if verified == entity.VerifyMatched || verified == entity.VerifyReplayed {
			return booking, nil
		}
		return entity.Booking{}, rejection(booking, action, "booking is already completed")
	}

	if err := e.checkPrecondition(booking, actor, action); err != nil {
		return entity.Booking{}, err
	}

	verified, err := e.codes.Verify(ctx, bookingID, code)
	if err != nil {
		return entity.Booking{}, err
	}

	switch verified {
	case entity.VerifyMatched, entity.VerifyReplayed:
		// a replay reaches here when the previous match was not persisted
	case entity.VerifyMismatch:
		return entity.Booking{}, entity.ErrInvalidCode
	case entity.VerifyExhausted:
		return entity.Booking{}, fmt.Errorf("%w: too many attempts, request a new code", entity.ErrInvalidCode)
	case entity.VerifyNoChallenge:
		return entity.Booking{}, entity.ErrNoActiveChallenge
	default:
		return entity.Booking{}, fmt.Errorf("unexpected verification result %q", verified)
	}

	changed, err := e.store.CompareAndSetStatus(ctx, entity.StatusChange{
		BookingID: bookingID,
		Action:    action,
		Expected:  entity.BookingStatusConfirm,
		Next:      entity.BookingStatusCompleted,
		ChangedBy: actor.Username,
	})
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not complete booking: %w", err)
	}

	current, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	if !changed && current.Status != entity.BookingStatusCompleted {
		return entity.Booking{}, rejection(current, action, "booking changed concurrently")
	}

	if changed {
		logTransition(ctx, actor, action, entity.BookingStatusConfirm, current)
	}

	return current, nil
}

func (e *Engine) transition(
	ctx context.Context,
	actor entity.Actor,
	bookingID string,
	action entity.BookingAction,
) (result entity.Booking, err error) {
	defer func() { recordOutcome(action, err) }()

	booking, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	if err := e.checkPrecondition(booking, actor, action); err != nil {
		return entity.Booking{}, err
	}

	next := edges[action].to
	changed, err := e.store.CompareAndSetStatus(ctx, entity.StatusChange{
		BookingID: bookingID,
		Action:    action,
		Expected:  booking.Status,
		Next:      next,
		ChangedBy: actor.Username,
	})
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not %s booking: %w", action, err)
	}

	current, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	if !changed {
		return entity.Booking{}, rejection(current, action, "booking changed concurrently")
	}

	logTransition(ctx, actor, action, booking.Status, current)

	return current, nil
}

func (e *Engine) checkPrecondition(booking entity.Booking, actor entity.Actor, action entity.BookingAction) error {
	ed, ok := edges[action]
	if !ok {
		return rejection(booking, action, "unknown action")
	}

	if err := e.authorize(booking, actor, action, ed.role); err != nil {
		return err
	}

	if booking.Status != ed.from {
		return rejection(booking, action, fmt.Sprintf("requires status %s", ed.from))
	}

	return nil
}

func (e *Engine) authorize(booking entity.Booking, actor entity.Actor, action entity.BookingAction, role entity.Role) error {
	if !roleMayAct(role, actor.Role) || !booking.IsParty(actor) {
		return rejection(booking, action, fmt.Sprintf("%s %q is not allowed to %s this booking", actor.Role, actor.Username, action))
	}
	return nil
}

func rejection(booking entity.Booking, action entity.BookingAction, reason string) error {
	return &entity.TransitionError{
		BookingID: booking.BookingID,
		Action:    action,
		Status:    booking.Status,
		Reason:    reason,
	}
}

func logTransition(ctx context.Context, actor entity.Actor, action entity.BookingAction, from entity.BookingStatus, booking entity.Booking) {
	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"action":     action,
		"from":       from,
		"to":         booking.Status,
		"actor":      actor.Username,
	}).Info("Booking transitioned")
}

func recordOutcome(action entity.BookingAction, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrInvalidTransition),
		errors.Is(err, entity.ErrInvalidCode),
		errors.Is(err, entity.ErrNoActiveChallenge),
		errors.Is(err, entity.ErrAlreadySubmitted),
		errors.Is(err, entity.ErrInvalidInput),
		errors.Is(err, entity.ErrNotFound):
		outcome = "rejected"
	default:
		outcome = "error"
	}

	metrics.BookingTransitions.WithLabelValues(string(action), outcome).Inc()
}
