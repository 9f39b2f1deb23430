package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bookings/entity"
)

// consumedRetention keeps a consumed challenge around, so a replayed correct code is
// recognized instead of reported as missing.
const consumedRetention = 24 * time.Hour

// ReservedCodesRetention bounds how long the codes handed out for a booking are remembered.
// Every reservation extends it, so only bookings idle for longer lose their history.
const ReservedCodesRetention = 90 * 24 * time.Hour

var verifyScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
	return 'none'
end

local fields = redis.call('HMGET', key, 'code_hash', 'expires_at', 'consumed')
local codeHash = fields[1]
local expiresAt = tonumber(fields[2]) or 0

if fields[3] == '1' then
	if codeHash == ARGV[1] then
		return 'replayed'
	end
	return 'mismatch'
end

if expiresAt > 0 and tonumber(ARGV[2]) >= expiresAt then
	redis.call('DEL', key)
	return 'none'
end

if codeHash == ARGV[1] then
	redis.call('HSET', key, 'consumed', '1')
	redis.call('PEXPIRE', key, ARGV[4])
	return 'matched'
end

local attempts = redis.call('HINCRBY', key, 'attempts', 1)
local maxAttempts = tonumber(ARGV[3])
if maxAttempts > 0 and attempts >= maxAttempts then
	redis.call('DEL', key)
	return 'exhausted'
end

return 'mismatch'
`)

var invalidateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'challenge_id') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type RedisChallengeStore struct {
	rdb *redis.Client
}

func NewRedisChallengeStore(rdb *redis.Client) *RedisChallengeStore {
	if rdb == nil {
		panic("missing redis client")
	}

	return &RedisChallengeStore{rdb: rdb}
}

func challengeKey(bookingID string) string {
	return "otp:challenge:" + bookingID
}

func usedCodesKey(bookingID string) string {
	return "otp:codes:" + bookingID
}

func (s *RedisChallengeStore) ReserveCode(ctx context.Context, bookingID, codeHash string) (bool, error) {
	key := usedCodesKey(bookingID)

	var added *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, key, codeHash)
		pipe.Expire(ctx, key, ReservedCodesRetention)
		return nil
	})
	if err != nil {
		return false, err
	}

	return added.Val() == 1, nil
}

func (s *RedisChallengeStore) Replace(ctx context.Context, challenge entity.Challenge) error {
	key := challengeKey(challenge.BookingID)

	var expiresAt int64
	if !challenge.ExpiresAt.IsZero() {
		expiresAt = challenge.ExpiresAt.UnixMilli()
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"challenge_id", challenge.ChallengeID,
			"booking_id", challenge.BookingID,
			"code_hash", challenge.CodeHash,
			"created_at", challenge.CreatedAt.UnixMilli(),
			"expires_at", expiresAt,
			"consumed", "0",
			"attempts", 0,
		)
		if expiresAt > 0 {
			pipe.PExpireAt(ctx, key, challenge.ExpiresAt)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not replace challenge for booking %s: %w", challenge.BookingID, err)
	}

	return nil
}

func (s *RedisChallengeStore) Invalidate(ctx context.Context, bookingID, challengeID string) error {
	err := invalidateScript.Run(ctx, s.rdb, []string{challengeKey(bookingID)}, challengeID).Err()
	if err != nil {
		return fmt.Errorf("could not invalidate challenge %s: %w", challengeID, err)
	}

	return nil
}

func (s *RedisChallengeStore) Verify(
	ctx context.Context,
	bookingID string,
	codeHash string,
	now time.Time,
	maxAttempts int,
) (entity.VerifyResult, error) {
	result, err := verifyScript.Run(
		ctx,
		s.rdb,
		[]string{challengeKey(bookingID)},
		codeHash,
		now.UnixMilli(),
		maxAttempts,
		consumedRetention.Milliseconds(),
	).Text()
	if err != nil {
		return "", fmt.Errorf("could not run verify script: %w", err)
	}

	return entity.VerifyResult(result), nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, bookingID string) (entity.Challenge, error) {
	fields, err := s.rdb.HGetAll(ctx, challengeKey(bookingID)).Result()
	if err != nil {
		return entity.Challenge{}, err
	}
	if len(fields) == 0 {
		return entity.Challenge{}, entity.ErrNoActiveChallenge
	}

	challenge := entity.Challenge{
		ChallengeID: fields["challenge_id"],
		BookingID:   fields["booking_id"],
		CodeHash:    fields["code_hash"],
		Consumed:    fields["consumed"] == "1",
	}

	var errs []error
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	errs = append(errs, err)
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	errs = append(errs, err)
	challenge.Attempts, err = strconv.Atoi(fields["attempts"])
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return entity.Challenge{}, fmt.Errorf("malformed challenge for booking %s: %w", bookingID, err)
	}

	challenge.CreatedAt = time.UnixMilli(createdAt).UTC()
	if expiresAt > 0 {
		challenge.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	}

	return challenge, nil
}
