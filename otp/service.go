package otp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bookings/entity"
	"bookings/metrics"
)

const maxReserveAttempts = 20

type ChallengeStore interface {
	// ReserveCode records codeHash as used for the booking, false if it was used before.
	ReserveCode(ctx context.Context, bookingID, codeHash string) (bool, error)
	// Replace atomically drops any challenge of the booking and stores the new one.
	Replace(ctx context.Context, challenge entity.Challenge) error
	// Invalidate drops the booking challenge only if it is still challengeID.
	Invalidate(ctx context.Context, bookingID, challengeID string) error
	Verify(ctx context.Context, bookingID, codeHash string, now time.Time, maxAttempts int) (entity.VerifyResult, error)
	Get(ctx context.Context, bookingID string) (entity.Challenge, error)
}

type CommandBus interface {
	Send(ctx context.Context, cmd any) error
}

type EventBus interface {
	Publish(ctx context.Context, event any) error
}

type Config struct {
	// Secret keys the stored code hashes.
	Secret []byte
	// TTL of zero disables expiry.
	TTL time.Duration
	// MaxAttempts of zero allows unlimited mismatches.
	MaxAttempts int
	Digits      int
}

type Service struct {
	store      ChallengeStore
	commandBus CommandBus
	eventBus   EventBus
	config     Config
	hasher     CodeHasher
	now        func() time.Time
}

func NewService(store ChallengeStore, commandBus CommandBus, eventBus EventBus, config Config) *Service {
	if store == nil {
		panic("missing store")
	}
	if commandBus == nil {
		panic("missing commandBus")
	}
	if eventBus == nil {
		panic("missing eventBus")
	}
	if config.Digits <= 0 {
		config.Digits = 6
	}

	return &Service{
		store:      store,
		commandBus: commandBus,
		eventBus:   eventBus,
		config:     config,
		hasher:     NewCodeHasher(config.Secret),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Issue mints a fresh code for the booking, replacing the live one, and hands it to the
// delivery channel. A challenge that could not be dispatched is dropped again.
func (s *Service) Issue(ctx context.Context, booking entity.Booking) (entity.IssuedChallenge, error) {
	if booking.Customer.Email == "" {
		return entity.IssuedChallenge{}, entity.NewInvalidInputError("booking %s has no customer email", booking.BookingID)
	}

	code, codeHash, err := s.reserveCode(ctx, booking.BookingID)
	if err != nil {
		return entity.IssuedChallenge{}, err
	}

	now := s.now()
	challenge := entity.Challenge{
		ChallengeID: uuid.NewString(),
		BookingID:   booking.BookingID,
		CodeHash:    codeHash,
		CreatedAt:   now,
	}
	if s.config.TTL > 0 {
		challenge.ExpiresAt = now.Add(s.config.TTL)
	}

	if err := s.store.Replace(ctx, challenge); err != nil {
		return entity.IssuedChallenge{}, fmt.Errorf("could not store challenge: %w", err)
	}

	logger := log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id":   booking.BookingID,
		"challenge_id": challenge.ChallengeID,
	})

	err = s.commandBus.Send(ctx, entity.SendCompletionCode{
		Header:       entity.NewEventHeaderWithIdempotencyKey(challenge.ChallengeID),
		BookingID:    booking.BookingID,
		ChallengeID:  challenge.ChallengeID,
		Email:        booking.Customer.Email,
		CustomerName: booking.Customer.Name,
		ServiceName:  booking.Service.Name,
		Code:         code,
		ExpiresAt:    challenge.ExpiresAt,
	})
	if err != nil {
		logger.WithError(err).Error("Could not dispatch completion code")

		dispatchErr := fmt.Errorf("%w: %w", entity.ErrDispatchFailure, err)
		if invalidateErr := s.store.Invalidate(ctx, booking.BookingID, challenge.ChallengeID); invalidateErr != nil {
			return entity.IssuedChallenge{}, errors.Join(dispatchErr, invalidateErr)
		}
		return entity.IssuedChallenge{}, dispatchErr
	}

	metrics.CompletionCodesIssued.Inc()
	logger.Info("Completion code issued")

	err = s.eventBus.Publish(ctx, entity.CompletionCodeIssued_v1{
		Header:      entity.NewEventHeaderWithIdempotencyKey(challenge.ChallengeID),
		BookingID:   booking.BookingID,
		ChallengeID: challenge.ChallengeID,
		ExpiresAt:   challenge.ExpiresAt,
	})
	if err != nil {
		// the code is already on its way, the event only feeds projections
		logger.WithError(err).Error("Could not publish CompletionCodeIssued_v1")
	}

	return entity.IssuedChallenge{
		ChallengeID: challenge.ChallengeID,
		ExpiresAt:   challenge.ExpiresAt,
	}, nil
}

func (s *Service) Verify(ctx context.Context, bookingID, code string) (entity.VerifyResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", entity.NewInvalidInputError("code is empty")
	}

	result, err := s.store.Verify(ctx, bookingID, s.hasher.Hash(bookingID, code), s.now(), s.config.MaxAttempts)
	if err != nil {
		return "", fmt.Errorf("could not verify code: %w", err)
	}

	metrics.CompletionCodeVerifications.WithLabelValues(string(result)).Inc()

	return result, nil
}

func (s *Service) reserveCode(ctx context.Context, bookingID string) (code, codeHash string, err error) {
	for i := 0; i < maxReserveAttempts; i++ {
		code, err = GenerateCode(s.config.Digits)
		if err != nil {
			return "", "", err
		}
		codeHash = s.hasher.Hash(bookingID, code)

		reserved, err := s.store.ReserveCode(ctx, bookingID, codeHash)
		if err != nil {
			return "", "", fmt.Errorf("could not reserve code: %w", err)
		}
		if reserved {
			return code, codeHash, nil
		}
	}

	return "", "", fmt.Errorf("no unused code left for booking %s after %d attempts", bookingID, maxReserveAttempts)
}
