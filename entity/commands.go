package entity

import "time"

// SendCompletionCode is the only message that carries a plaintext completion code.
type SendCompletionCode struct {
	Header EventHeader `json:"header"`

	BookingID    string    `json:"booking_id"`
	ChallengeID  string    `json:"challenge_id"`
	Email        string    `json:"email"`
	CustomerName string    `json:"customer_name"`
	ServiceName  string    `json:"service_name"`
	Code         string    `json:"code"`
	ExpiresAt    time.Time `json:"expires_at"`
}
