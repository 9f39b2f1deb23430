package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNoActiveChallenge = errors.New("no active completion code")
	ErrInvalidCode       = errors.New("invalid code")
	ErrAlreadySubmitted  = errors.New("feedback already submitted")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDispatchFailure   = errors.New("completion code dispatch failed")
	ErrNotFound          = errors.New("not found")
)

// TransitionError is returned when a booking is not in the source state of an action
// or the actor may not perform it. It leaves the booking untouched.
type TransitionError struct {
	BookingID string
	Action    BookingAction
	Status    BookingStatus
	Reason    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s booking %s in status %s: %s", e.Action, e.BookingID, e.Status, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// Unrecoverable is true when the booking is terminal and no retry can succeed.
func (e *TransitionError) Unrecoverable() bool {
	return e.Status.IsTerminal()
}

func IsUnrecoverable(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Unrecoverable()
}

func NewInvalidInputError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
