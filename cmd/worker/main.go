// Command worker consumes domain events and raises follow-up notifications.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/internal/users"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/vendorflow-backend/pkg/pubsub"
	"github.com/angelmondragon/vendorflow-backend/pkg/redis"
)

const serviceName = "worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return err
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return err
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		return err
	}
	defer closeQuietly(ctx, logg, "pubsub", pubsubClient.Close)

	userDirectory, err := users.NewService(users.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create user directory", err)
		return err
	}
	channels := []notifications.Channel{notifications.NewInAppChannel(notifications.NewRepository(dbClient.DB()))}
	if cfg.FeatureFlags.PubSubNotices {
		channels = append(channels, notifications.NewPubSubChannel(pubsub.NewPublisher(pubsubClient.NotificationPublisher())))
	}
	notifier, err := notifications.NewDispatcher(userDirectory, channels...)
	if err != nil {
		logg.Error(ctx, "failed to create notification dispatcher", err)
		return err
	}

	manager, err := idempotency.NewManager(redisClient, cfg.PubSub.ProcessedTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency manager", err)
		return err
	}
	subscription := pubsubClient.DomainSubscription()
	if subscription == nil {
		err := errors.New("domain subscription not configured")
		logg.Error(ctx, "failed to open domain subscription", err)
		return err
	}
	consumer, err := notifications.NewConsumer(notifier, subscription, manager, logg)
	if err != nil {
		logg.Error(ctx, "failed to create domain consumer", err)
		return err
	}

	service, err := NewService(ServiceParams{
		Logger:    logg,
		Consumers: []Runner{consumer},
		Checks: map[string]func(context.Context) error{
			"database":     dbClient.Ping,
			"redis":        redisClient.Ping,
			"pubsub":       pubsubClient.Ping,
			"subscription": pubsubClient.PingSubscription,
		},
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		return err
	}

	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "worker shutting down gracefully")
	return nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.WarnErr(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}
