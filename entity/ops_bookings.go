package entity

import (
	"time"
)

type OpsBooking struct {
	BookingID        string        `json:"booking_id"`
	CustomerUsername string        `json:"customer_username"`
	ProviderUsername string        `json:"provider_username"`
	ServiceName      string        `json:"service_name"`
	Status           BookingStatus `json:"status"`
	RequestedAt      time.Time     `json:"requested_at"`

	Timeline []OpsStatusChange `json:"timeline"`

	CompletionCodesIssued int       `json:"completion_codes_issued"`
	LastCompletionCodeAt  time.Time `json:"last_completion_code_at"`
	ChallengeIDs          []string  `json:"challenge_ids"`

	FeedbackSubmittedAt time.Time `json:"feedback_submitted_at"`

	LastUpdate time.Time `json:"last_update"`
}

type OpsStatusChange struct {
	EventID   string        `json:"event_id"`
	Action    BookingAction `json:"action"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	ChangedBy string        `json:"changed_by"`
	ChangedAt time.Time     `json:"changed_at"`
}
