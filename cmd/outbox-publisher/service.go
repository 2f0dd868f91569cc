package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/metrics"
	"github.com/angelmondragon/vendorflow-backend/pkg/outbox/registry"
	pkgpubsub "github.com/angelmondragon/vendorflow-backend/pkg/pubsub"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxBackoff         = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) pkgpubsub.Publisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	Metrics          *metrics.OutboxMetrics
}

// Service relays outbox_events rows to Pub/Sub. Each batch is claimed and
// settled inside one transaction, so a crash between publish and bookkeeping
// republishes rather than loses events; consumers dedupe on event_id.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	publisherFactory publisherFactory
	metrics          *metrics.OutboxMetrics

	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = cachedPublishers(params.PubSub)
	}
	cfg := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		publisherFactory: factory,
		metrics:          params.Metrics,
		batchSize:        positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		poll:             durationOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, defaultPoll),
	}, nil
}

// cachedPublishers opens one Pub/Sub publisher per topic on first use.
func cachedPublishers(client pubSubClient) publisherFactory {
	var (
		mu    sync.Mutex
		cache = map[string]pkgpubsub.Publisher{}
	)
	return func(topic string) pkgpubsub.Publisher {
		mu.Lock()
		defer mu.Unlock()
		if pub, ok := cache[topic]; ok {
			return pub
		}
		pub := pkgpubsub.NewPublisher(client.Publisher(topic))
		cache[topic] = pub
		return pub
	}
}

func (s *Service) ready(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", name), "dependency ping failed", err)
			return fmt.Errorf("%s ping: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx is canceled. Full batches are followed immediately by
// the next fetch; an empty fetch waits one poll interval. Batch failures back
// off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	backoff := s.poll
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		handled, err := s.processBatch(ctx)
		wait := s.poll
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = nextBackoff(backoff, s.poll, maxBackoff)
			wait = backoff
		case handled > 0:
			backoff = s.poll
			continue
		default:
			backoff = s.poll
		}
		if err := sleepCtx(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

// Drain publishes until a fetch comes back empty and reports how many events
// were handled. Rows that keep failing are retried until they are parked, so
// the loop ends once every pending row is published or parked.
func (s *Service) Drain(ctx context.Context) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		handled, err := s.processBatch(ctx)
		if err != nil {
			return total, err
		}
		if handled == 0 {
			return total, nil
		}
		total += handled
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	return min(current*2, max)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
