package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/sirupsen/logrus"

	"bookings/entity"
)

// SendCompletionCodeHandler mails the code unless the challenge it belongs to is gone,
// superseded or already used. Mailer failures are retried by the router.
func (h Handler) SendCompletionCodeHandler() cqrs.CommandHandler {
	return cqrs.NewCommandHandler(
		"SendCompletionCodeHandler",
		func(ctx context.Context, cmd *entity.SendCompletionCode) error {
			logger := log.FromContext(ctx).WithFields(logrus.Fields{
				"booking_id":   cmd.BookingID,
				"challenge_id": cmd.ChallengeID,
			})

			challenge, err := h.challenges.Get(ctx, cmd.BookingID)
			if errors.Is(err, entity.ErrNoActiveChallenge) {
				logger.Info("Challenge expired or invalidated, skipping completion code")
				return nil
			}
			if err != nil {
				return fmt.Errorf("could not get challenge: %w", err)
			}
			if challenge.ChallengeID != cmd.ChallengeID || challenge.Consumed {
				logger.Info("Challenge superseded, skipping completion code")
				return nil
			}

			if err := h.mailer.SendCompletionCode(ctx, *cmd); err != nil {
				return fmt.Errorf("could not send completion code: %w", err)
			}

			logger.Info("Completion code sent")

			return nil
		},
	)
}
