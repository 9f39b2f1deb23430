package event

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"bookings/entity"
)

type OpsReadModel interface {
	OnBookingRequested(ctx context.Context, event *entity.BookingRequested_v1) error
	OnBookingStatusChanged(ctx context.Context, event *entity.BookingStatusChanged_v1) error
	OnCompletionCodeIssued(ctx context.Context, event *entity.CompletionCodeIssued_v1) error
	OnFeedbackSubmitted(ctx context.Context, event *entity.FeedbackSubmitted_v1) error
}

type Handler struct {
	opsReadModel OpsReadModel
}

func NewHandler(opsReadModel OpsReadModel) Handler {
	if opsReadModel == nil {
		panic("missing opsReadModel")
	}

	return Handler{opsReadModel: opsReadModel}
}

// Handlers lists every event handler of the service.
func (h Handler) Handlers() []cqrs.EventHandler {
	return []cqrs.EventHandler{
		cqrs.NewEventHandler(
			"ops_read_model.OnBookingRequested",
			h.opsReadModel.OnBookingRequested,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnBookingStatusChanged",
			h.opsReadModel.OnBookingStatusChanged,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnCompletionCodeIssued",
			h.opsReadModel.OnCompletionCodeIssued,
		),
		cqrs.NewEventHandler(
			"ops_read_model.OnFeedbackSubmitted",
			h.opsReadModel.OnFeedbackSubmitted,
		),
	}
}
