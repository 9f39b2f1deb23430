package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"bookings/config"
	"bookings/gateway"
	"bookings/pubsub"
	"bookings/service"
	"bookings/tracing"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			// already printed by the parser
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log.Init(cfg.Level())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	traceProvider, err := tracing.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure trace provider")
	}

	db, err := tracing.OpenDB(cfg.PostgresURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	redisClient := pubsub.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	err = service.New(
		cfg,
		db,
		redisClient,
		gateway.NewMailer(cfg.SMTP),
		traceProvider,
	).Run(ctx)
	if err != nil {
		logrus.WithError(err).Error("service stopped with error")
		os.Exit(1)
	}
}
