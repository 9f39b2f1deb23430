package service

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"bookings/auth"
	"bookings/config"
	"bookings/db"
	"bookings/db/bookings"
	"bookings/db/data_lake"
	"bookings/db/read_model_ops_bookings"
	"bookings/gateway"
	"bookings/http"
	"bookings/lifecycle"
	migrations "bookings/migration"
	"bookings/otp"
	"bookings/pubsub"
	"bookings/pubsub/bus"
	"bookings/pubsub/command"
	"bookings/pubsub/event"
	"bookings/pubsub/outbox"
)

type Service struct {
	db              *sqlx.DB
	watermillRouter *message.Router
	forwarder       *forwarder.Forwarder
	httpServer      *http.Server
	opsReadModel    read_model_ops_bookings.OpsBookingReadModel
	dataLake        data_lake.DataLake
	traceProvider   *tracesdk.TracerProvider
}

func New(
	cfg config.Config,
	db *sqlx.DB,
	redisClient *redis.Client,
	mailer gateway.Mailer,
	traceProvider *tracesdk.TracerProvider,
) Service {
	watermillLogger := log.NewWatermill(log.FromContext(context.Background()))

	redisPublisher := pubsub.NewRedisPublisher(redisClient, watermillLogger)

	eventBus, err := bus.NewEventBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create event bus: %w", err))
	}

	commandBus, err := bus.NewCommandBus(redisPublisher)
	if err != nil {
		panic(fmt.Errorf("failed to create command bus: %w", err))
	}

	bookingsRepo := bookings.NewPostgresRepository(db)
	opsReadModel := read_model_ops_bookings.NewOpsBookingReadModel(db)
	dataLake := data_lake.NewDataLake(db)
	challengeStore := otp.NewRedisChallengeStore(redisClient)

	otpSecret := cfg.OTP.Secret
	if otpSecret == "" {
		otpSecret = cfg.JWTSecret
	}
	completionCodes := otp.NewService(challengeStore, commandBus, eventBus, otp.Config{
		Secret:      []byte(otpSecret),
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Digits:      cfg.OTP.Digits,
	})
	engine := lifecycle.NewEngine(bookingsRepo, completionCodes, lifecycle.Config{
		FeedbackMaxLength: cfg.FeedbackMaxLength,
	})

	eventsHandler := event.NewHandler(opsReadModel)
	commandsHandler := command.NewHandler(mailer, challengeStore)

	watermillRouter, err := pubsub.NewWatermillRouter(
		redisClient,
		redisPublisher,
		event.NewProcessorConfig(redisClient, watermillLogger),
		eventsHandler,
		command.NewProcessorConfig(redisClient, watermillLogger),
		commandsHandler,
		dataLake,
		watermillLogger,
	)
	if err != nil {
		panic(fmt.Errorf("failed to create watermill router: %w", err))
	}

	fwd, err := outbox.NewForwarder(
		outbox.NewPostgresSubscriber(db.DB, watermillLogger),
		pubsub.NewForwarderPublisher(redisClient, watermillLogger),
		watermillLogger,
	)
	if err != nil {
		panic(fmt.Errorf("failed to create outbox forwarder: %w", err))
	}

	httpServer := http.NewServer(
		cfg.HTTPAddr,
		engine,
		opsReadModel,
		auth.NewAuthenticator(cfg.JWTSecret),
	)

	return Service{
		db:              db,
		watermillRouter: watermillRouter,
		forwarder:       fwd,
		httpServer:      httpServer,
		opsReadModel:    opsReadModel,
		dataLake:        dataLake,
		traceProvider:   traceProvider,
	}
}

func (s Service) Run(ctx context.Context) error {
	if err := db.InitializeDatabaseSchema(s.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := migrations.MigrateReadModel(ctx, s.dataLake, s.opsReadModel)
		if err != nil {
			log.FromContext(ctx).WithError(err).Error("failed to migrate read model")
		}
		return nil
	})

	if s.traceProvider != nil {
		g.Go(func() error {
			<-ctx.Done()
			return s.traceProvider.Shutdown(context.Background())
		})
	}

	g.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	g.Go(func() error {
		return s.forwarder.Run(ctx)
	})

	g.Go(func() error {
		// the service shouldn't report healthy before messages are consumed
		<-s.watermillRouter.Running()

		return s.httpServer.Run(ctx)
	})

	return g.Wait()
}
