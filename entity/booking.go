package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirm   BookingStatus = "confirm"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancel    BookingStatus = "cancel"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirm, BookingStatusRejected, BookingStatusCompleted, BookingStatusCancel:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusRejected || s == BookingStatusCompleted || s == BookingStatusCancel
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider || r == RoleAdmin
}

// Actor is the caller identity as asserted by the identity collaborator.
type Actor struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Role        Role   `json:"role"`
}

type CustomerSnapshot struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type ProviderSnapshot struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Experience  string `json:"experience"`
}

// Image is passed through untouched; Data is base64 on the JSON wire.
type Image struct {
	Data        []byte `json:"data"`
	ContentType string `json:"content_type"`
}

type ServiceDescriptor struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	VisitingPrice decimal.Decimal `json:"visiting_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	Image         *Image          `json:"image,omitempty"`
}

type Booking struct {
	BookingID string `json:"booking_id"`

	Customer CustomerSnapshot  `json:"customer"`
	Provider ProviderSnapshot  `json:"provider"`
	Service  ServiceDescriptor `json:"service"`

	RequestedDate string `json:"requested_date"`
	Description   string `json:"description"`

	Status         BookingStatus `json:"status"`
	FeedbackStatus bool          `json:"feedback_status"`
	Feedback       string        `json:"feedback,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParty reports whether the actor is the customer or the provider of the booking.
func (b Booking) IsParty(actor Actor) bool {
	switch actor.Role {
	case RoleCustomer:
		return b.Customer.Username == actor.Username
	case RoleProvider:
		return b.Provider.Username == actor.Username
	}
	return false
}

// BookingRequest is what a customer submits; customer identity comes from the actor.
type BookingRequest struct {
	CustomerAddress string            `json:"customer_address"`
	CustomerPhone   string            `json:"customer_phone,omitempty"` // overrides the profile phone
	RequestedDate   string            `json:"requested_date"`
	Description     string            `json:"description"`
	Provider        ProviderSnapshot  `json:"provider"`
	Service         ServiceDescriptor `json:"service"`
}

type BookingAction string

const (
	ActionAccept            BookingAction = "accept"
	ActionDecline           BookingAction = "decline"
	ActionCancel            BookingAction = "cancel"
	ActionRequestCompletion BookingAction = "request-completion"
	ActionVerifyCode        BookingAction = "verify-otp"
	ActionSubmitFeedback    BookingAction = "submit-feedback"
)

// StatusChange is a compare-and-set request: it applies only while the booking is in Expected.
type StatusChange struct {
	BookingID string
	Action    BookingAction
	Expected  BookingStatus
	Next      BookingStatus
	ChangedBy string
}
