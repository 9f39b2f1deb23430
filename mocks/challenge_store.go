package mocks

import (
	"context"
	"sync"
	"time"

	"bookings/entity"
)

type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]entity.Challenge
	usedCodes  map[string]map[string]struct{}
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		challenges: map[string]entity.Challenge{},
		usedCodes:  map[string]map[string]struct{}{},
	}
}

func (s *ChallengeStore) ReserveCode(ctx context.Context, bookingID, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	used, ok := s.usedCodes[bookingID]
	if !ok {
		used = map[string]struct{}{}
		s.usedCodes[bookingID] = used
	}
	if _, ok := used[codeHash]; ok {
		return false, nil
	}
	used[codeHash] = struct{}{}

	return true, nil
}

func (s *ChallengeStore) Replace(ctx context.Context, challenge entity.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge.Consumed = false
	challenge.Attempts = 0
	s.challenges[challenge.BookingID] = challenge

	return nil
}

func (s *ChallengeStore) Invalidate(ctx context.Context, bookingID, challengeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.challenges[bookingID]; ok && c.ChallengeID == challengeID {
		delete(s.challenges, bookingID)
	}

	return nil
}

func (s *ChallengeStore) Verify(
	ctx context.Context,
	bookingID string,
	codeHash string,
	now time.Time,
	maxAttempts int,
) (entity.VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[bookingID]
	if !ok {
		return entity.VerifyNoChallenge, nil
	}

	if c.Consumed {
		if c.CodeHash == codeHash {
			return entity.VerifyReplayed, nil
		}
		return entity.VerifyMismatch, nil
	}

	if !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt) {
		delete(s.challenges, bookingID)
		return entity.VerifyNoChallenge, nil
	}

	if c.CodeHash == codeHash {
		c.Consumed = true
		s.challenges[bookingID] = c
		return entity.VerifyMatched, nil
	}

	c.Attempts++
	if maxAttempts > 0 && c.Attempts >= maxAttempts {
		delete(s.challenges, bookingID)
		return entity.VerifyExhausted, nil
	}
	s.challenges[bookingID] = c

	return entity.VerifyMismatch, nil
}

func (s *ChallengeStore) Get(ctx context.Context, bookingID string) (entity.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[bookingID]
	if !ok {
		return entity.Challenge{}, entity.ErrNoActiveChallenge
	}

	return c, nil
}
