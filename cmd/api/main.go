package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/vendorflow-backend/api/controllers"
	"github.com/angelmondragon/vendorflow-backend/api/routes"
	"github.com/angelmondragon/vendorflow-backend/internal/assignments"
	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/dispatches"
	"github.com/angelmondragon/vendorflow-backend/internal/grn"
	"github.com/angelmondragon/vendorflow-backend/internal/imports"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/internal/users"
	"github.com/angelmondragon/vendorflow-backend/internal/vendors"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/metrics"
	"github.com/angelmondragon/vendorflow-backend/pkg/migrate"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox"
	"github.com/angelmondragon/vendorflow-backend/pkg/pubsub"
	"github.com/angelmondragon/vendorflow-backend/pkg/redis"
	"github.com/angelmondragon/vendorflow-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	ready := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
		"gcs":   gcsClient,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	workflowMetrics := metrics.NewWorkflowMetrics(registry)

	userDirectory, err := users.NewService(users.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create user directory", err)
		os.Exit(1)
	}
	notificationRepo := notifications.NewRepository(dbClient.DB())
	channels := []notifications.Channel{notifications.NewInAppChannel(notificationRepo)}
	if cfg.FeatureFlags.PubSubNotices {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		ready["pubsub"] = psClient
		channels = append(channels, notifications.NewPubSubChannel(pubsub.NewPublisher(psClient.NotificationPublisher())))
	}
	notifier, err := notifications.NewDispatcher(userDirectory, channels...)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}
	notificationService, err := notifications.NewService(notificationRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	vendorDirectory, err := vendors.NewService(vendors.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create vendor directory", err)
		os.Exit(1)
	}
	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	orderService, err := orders.NewService(
		dbClient,
		orders.NewRepository(dbClient.DB()),
		vendorDirectory,
		auditService,
		outboxService,
		notifier,
		workflowMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	assignmentService, err := assignments.NewService(assignments.ServiceParams{
		Tx:             dbClient,
		Repo:           assignments.NewRepository(dbClient.DB()),
		Orders:         orderService,
		Vendors:        vendorDirectory,
		Audit:          auditService,
		Outbox:         outboxService,
		Notifier:       notifier,
		Files:          gcsClient,
		Metrics:        workflowMetrics,
		Logger:         logg,
		Workflow:       cfg.Workflow,
		MaxUploadBytes: cfg.Media.MaxUploadBytes(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignment service", err)
		os.Exit(1)
	}

	dispatchService, err := dispatches.NewService(dispatches.ServiceParams{
		Tx:             dbClient,
		Repo:           dispatches.NewRepository(dbClient.DB()),
		Vendors:        vendorDirectory,
		Audit:          auditService,
		Outbox:         outboxService,
		Notifier:       notifier,
		Files:          gcsClient,
		Metrics:        workflowMetrics,
		Logger:         logg,
		MaxUploadBytes: cfg.Media.MaxUploadBytes(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}

	grnService, err := grn.NewService(grn.ServiceParams{
		Tx:         dbClient,
		Repo:       grn.NewRepository(dbClient.DB()),
		Dispatches: dispatchService,
		Orders:     orderService,
		Audit:      auditService,
		Outbox:     outboxService,
		Notifier:   notifier,
		Metrics:    workflowMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create grn service", err)
		os.Exit(1)
	}

	importer, err := imports.NewImporter(orderService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order importer", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Orders:        orderService,
			Assignments:   assignmentService,
			Dispatches:    dispatchService,
			GRN:           grnService,
			Audit:         auditService,
			Notifications: notificationService,
			Importer:      importer,
		}, routes.Infra{
			Redis:    redisClient,
			Ready:    ready,
			Gatherer: registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
