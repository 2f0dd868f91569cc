package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

// Runner is a long-lived consumer loop.
type Runner interface {
	Run(ctx context.Context) error
}

type ServiceParams struct {
	Logger    *logger.Logger
	Consumers []Runner
	// Checks are dependency pings that must pass before consumers start.
	Checks map[string]func(context.Context) error
}

type Service struct {
	logg      *logger.Logger
	consumers []Runner
	checks    map[string]func(context.Context) error
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for i, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %d is nil", i)
		}
	}
	return &Service{
		logg:      params.Logger,
		consumers: params.Consumers,
		checks:    params.Checks,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until ctx ends or the first consumer stops. The remaining
// consumers are canceled before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, len(s.consumers))
	for _, c := range s.consumers {
		go func(c Runner) {
			errCh <- c.Run(ctx)
		}(c)
	}

	var first error
	pending := len(s.consumers)
	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		first = ctx.Err()
	case first = <-errCh:
		pending--
		if first != nil && !errors.Is(first, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", first)
		}
	}
	cancel()
	for ; pending > 0; pending-- {
		<-errCh
	}
	return first
}
