package command

import (
	"context"

	"bookings/entity"
)

type Mailer interface {
	SendCompletionCode(ctx context.Context, command entity.SendCompletionCode) error
}

type ChallengeStore interface {
	Get(ctx context.Context, bookingID string) (entity.Challenge, error)
}

type Handler struct {
	mailer     Mailer
	challenges ChallengeStore
}

func NewHandler(mailer Mailer, challenges ChallengeStore) Handler {
	if mailer == nil {
		panic("missing mailer")
	}
	if challenges == nil {
		panic("missing challenges")
	}

	return Handler{
		mailer:     mailer,
		challenges: challenges,
	}
}
