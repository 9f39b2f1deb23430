package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"bookings/entity"
)

// SubmitFeedback stores the customer's feedback on a completed booking. Feedback is
// written once; later submissions fail with ErrAlreadySubmitted.
func (e *Engine) SubmitFeedback(
	ctx context.Context,
	actor entity.Actor,
	bookingID string,
	text string,
) (result entity.Booking, err error) {
	action := entity.ActionSubmitFeedback
	defer func() { recordOutcome(action, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return entity.Booking{}, entity.NewInvalidInputError("feedback is empty")
	}
	if utf8.RuneCountInString(text) > e.config.FeedbackMaxLength {
		return entity.Booking{}, entity.NewInvalidInputError("feedback is longer than %d characters", e.config.FeedbackMaxLength)
	}

	booking, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	if err := e.authorize(booking, actor, action, entity.RoleCustomer); err != nil {
		return entity.Booking{}, err
	}
	if booking.Status != entity.BookingStatusCompleted {
		return entity.Booking{}, rejection(booking, action, fmt.Sprintf("requires status %s", entity.BookingStatusCompleted))
	}
	if booking.FeedbackStatus {
		return entity.Booking{}, entity.ErrAlreadySubmitted
	}

	written, err := e.store.SetFeedback(ctx, bookingID, text, actor.Username)
	if err != nil {
		return entity.Booking{}, fmt.Errorf("could not store feedback: %w", err)
	}

	current, err := e.store.Get(ctx, bookingID)
	if err != nil {
		return entity.Booking{}, err
	}
	if !written {
		if current.FeedbackStatus {
			return entity.Booking{}, entity.ErrAlreadySubmitted
		}
		return entity.Booking{}, rejection(current, action, "booking changed concurrently")
	}

	log.FromContext(ctx).WithField("booking_id", bookingID).Info("Feedback submitted")

	return current, nil
}
