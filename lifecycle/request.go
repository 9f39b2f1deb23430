package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bookings/entity"
)

const requestAction entity.BookingAction = "request"

// Request creates a pending booking. Customer and provider details are copied into the
// booking and never change afterwards.
func (e *Engine) Request(ctx context.Context, actor entity.Actor, req entity.BookingRequest) (booking entity.Booking, err error) {
	defer func() { recordOutcome(requestAction, err) }()

	if actor.Role != entity.RoleCustomer {
		return entity.Booking{}, fmt.Errorf("%w: only customers can request a booking", entity.ErrInvalidTransition)
	}
	req.Provider.Username = strings.TrimSpace(req.Provider.Username)
	if err := validateRequest(actor, req); err != nil {
		return entity.Booking{}, err
	}

	image := req.Service.Image
	if image != nil && len(image.Data) == 0 {
		image = nil
	}

	phone := strings.TrimSpace(req.CustomerPhone)
	if phone == "" {
		phone = actor.Phone
	}

	now := e.now()
	booking = entity.Booking{
		BookingID: uuid.NewString(),
		Customer: entity.CustomerSnapshot{
			Username: actor.Username,
			Name:     actor.DisplayName,
			Email:    actor.Email,
			Phone:    phone,
			Address:  strings.TrimSpace(req.CustomerAddress),
		},
		Provider: req.Provider,
		Service: entity.ServiceDescriptor{
			Name:          strings.TrimSpace(req.Service.Name),
			Description:   req.Service.Description,
			VisitingPrice: req.Service.VisitingPrice,
			MaxPrice:      req.Service.MaxPrice,
			Image:         image,
		},
		RequestedDate:  strings.TrimSpace(req.RequestedDate),
		Description:    req.Description,
		Status:         entity.BookingStatusPending,
		FeedbackStatus: false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.Create(ctx, booking); err != nil {
		return entity.Booking{}, fmt.Errorf("could not create booking: %w", err)
	}

	log.FromContext(ctx).WithFields(logrus.Fields{
		"booking_id": booking.BookingID,
		"customer":   booking.Customer.Username,
		"provider":   booking.Provider.Username,
	}).Info("Booking requested")

	return booking, nil
}

func validateRequest(actor entity.Actor, req entity.BookingRequest) error {
	switch {
	case actor.Username == "":
		return entity.NewInvalidInputError("customer username is unknown")
	case actor.Email == "":
		return entity.NewInvalidInputError("customer email is unknown")
	case req.Provider.Username == "":
		return entity.NewInvalidInputError("provider username is required")
	case req.Provider.Username == actor.Username:
		return entity.NewInvalidInputError("provider and customer must differ")
	case strings.TrimSpace(req.Service.Name) == "":
		return entity.NewInvalidInputError("service name is required")
	case strings.TrimSpace(req.RequestedDate) == "":
		return entity.NewInvalidInputError("requested date is required")
	case req.Service.VisitingPrice.IsNegative() || req.Service.MaxPrice.IsNegative():
		return entity.NewInvalidInputError("prices can't be negative")
	case !req.Service.MaxPrice.IsZero() && req.Service.VisitingPrice.GreaterThan(req.Service.MaxPrice):
		return entity.NewInvalidInputError("visiting price can't exceed max price")
	case req.Service.Image != nil && len(req.Service.Image.Data) > 0 && req.Service.Image.ContentType == "":
		return entity.NewInvalidInputError("image content type is required")
	}

	return nil
}
