package entity

import "time"

// Challenge is the live completion code for a booking. Only the hash of the code is kept.
type Challenge struct {
	ChallengeID string    `json:"challenge_id"`
	BookingID   string    `json:"booking_id"`
	CodeHash    string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Consumed    bool      `json:"consumed"`
	Attempts    int       `json:"attempts"`
}

type VerifyResult string

const (
	VerifyMatched     VerifyResult = "matched"
	VerifyMismatch    VerifyResult = "mismatch"
	VerifyNoChallenge VerifyResult = "none"
	// VerifyReplayed is the correct code submitted again after it was consumed.
	VerifyReplayed  VerifyResult = "replayed"
	VerifyExhausted VerifyResult = "exhausted"
)

type IssuedChallenge struct {
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}
