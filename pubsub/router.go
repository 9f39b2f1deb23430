package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"bookings/entity"
	"bookings/pubsub/bus"
	"bookings/pubsub/command"
	"bookings/pubsub/event"
)

type DataLake interface {
	StoreEvent(ctx context.Context, dataLakeEvent entity.DataLakeEvent) error
}

func NewWatermillRouter(
	redisClient *redis.Client,
	redisPublisher message.Publisher,
	eventProcessorConfig cqrs.EventProcessorConfig,
	eventHandler event.Handler,
	commandProcessorConfig cqrs.CommandProcessorConfig,
	commandsHandler command.Handler,
	dataLake DataLake,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router, watermillLogger)

	eventProcessor, err := cqrs.NewEventProcessorWithConfig(router, eventProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create event processor: %w", err)
	}

	if err := eventProcessor.AddHandlers(eventHandler.Handlers()...); err != nil {
		return nil, fmt.Errorf("could not add handlers to event processor: %w", err)
	}

	commandProcessor, err := cqrs.NewCommandProcessorWithConfig(router, commandProcessorConfig)
	if err != nil {
		return nil, fmt.Errorf("could not create command processor: %w", err)
	}

	if err := commandProcessor.AddHandlers(commandsHandler.SendCompletionCodeHandler()); err != nil {
		return nil, fmt.Errorf("could not add handlers to command processor: %w", err)
	}

	// each handler of the "events" topic needs its own consumer group to see every message
	newEventsSubscriber := func(handlerName string) (message.Subscriber, error) {
		return redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        redisClient,
			ConsumerGroup: "svc-bookings." + handlerName,
		}, watermillLogger)
	}

	splitterSubscriber, err := newEventsSubscriber("events_splitter")
	if err != nil {
		return nil, fmt.Errorf("could not create events splitter subscriber: %w", err)
	}

	router.AddNoPublisherHandler(
		"events_splitter",
		"events",
		splitterSubscriber,
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			return redisPublisher.Publish("events."+eventName, msg)
		},
	)

	dataLakeSubscriber, err := newEventsSubscriber("store_to_data_lake")
	if err != nil {
		return nil, fmt.Errorf("could not create data lake subscriber: %w", err)
	}

	router.AddNoPublisherHandler(
		"store_to_data_lake",
		"events",
		dataLakeSubscriber,
		func(msg *message.Message) error {
			eventName := bus.Marshaler.NameFromMessage(msg)
			if eventName == "" {
				return fmt.Errorf("could not get event name from message")
			}

			// we just need to unmarshal event header, rest is stored as is
			type Event struct {
				Header entity.EventHeader `json:"header"`
			}

			var event Event
			if err := bus.Marshaler.Unmarshal(msg, &event); err != nil {
				return fmt.Errorf("could not unmarshal event: %w", err)
			}

			return dataLake.StoreEvent(
				msg.Context(),
				entity.DataLakeEvent{
					ID:          event.Header.ID,
					PublishedAt: event.Header.PublishedAt,
					Name:        eventName,
					Payload:     msg.Payload,
				},
			)
		},
	)

	return router, nil
}
