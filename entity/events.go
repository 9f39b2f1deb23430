package entity

import (
	"time"

	"github.com/google/uuid"
)

type Event interface {
	IsInternal() bool
}

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return EventHeader{
		ID:          uuid.NewString(),
		PublishedAt: time.Now().UTC(),
	}
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type BookingRequested_v1 struct {
	Header EventHeader `json:"header"`

	BookingID        string `json:"booking_id"`
	CustomerUsername string `json:"customer_username"`
	ProviderUsername string `json:"provider_username"`
	ServiceName      string `json:"service_name"`
	RequestedDate    string `json:"requested_date"`
}

func (e BookingRequested_v1) IsInternal() bool {
	return false
}

type BookingStatusChanged_v1 struct {
	Header EventHeader `json:"header"`

	BookingID string        `json:"booking_id"`
	Action    BookingAction `json:"action"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	ChangedBy string        `json:"changed_by"`
}

func (e BookingStatusChanged_v1) IsInternal() bool {
	return false
}

// CompletionCodeIssued_v1 never carries the code itself.
type CompletionCodeIssued_v1 struct {
	Header EventHeader `json:"header"`

	BookingID   string    `json:"booking_id"`
	ChallengeID string    `json:"challenge_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (e CompletionCodeIssued_v1) IsInternal() bool {
	return false
}

type FeedbackSubmitted_v1 struct {
	Header EventHeader `json:"header"`

	BookingID        string `json:"booking_id"`
	CustomerUsername string `json:"customer_username"`
}

func (e FeedbackSubmitted_v1) IsInternal() bool {
	return false
}

type DataLakeEvent struct {
	ID          string    `db:"event_id"`
	PublishedAt time.Time `db:"published_at"`
	Name        string    `db:"event_name"`
	Payload     []byte    `db:"event_payload"`
}
