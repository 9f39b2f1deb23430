package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"

	"bookings/entity"
)

var Marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return EventTopic(params.EventName, params.Event)
		},
		Marshaler: Marshaler,
	})
}

// EventTopic routes internal events straight to their own topic. Everything else goes
// through "events", so it lands in the data lake before it is split per event name.
func EventTopic(eventName string, event any) (string, error) {
	e, ok := event.(entity.Event)
	if !ok {
		return "", fmt.Errorf("invalid event type: %T doesn't implement entity.Event", event)
	}

	if e.IsInternal() {
		return "internal-events.svc-bookings." + eventName, nil
	}

	return "events", nil
}

// SubscribeTopic is the topic a handler of the event has to consume.
func SubscribeTopic(eventName string, event any) string {
	if e, ok := event.(entity.Event); ok && e.IsInternal() {
		return "internal-events.svc-bookings." + eventName
	}

	return "events." + eventName
}
