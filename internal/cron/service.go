package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/metrics"
)

const (
	defaultInterval   = time.Hour
	defaultJobTimeout = 10 * time.Minute
	releaseTimeout    = 5 * time.Second
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger     *logger.Logger
	Registry   *Registry
	Lock       Lock
	Metrics    *metrics.CronJobMetrics
	Interval   time.Duration
	JobTimeout time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide lock. A failing or panicking job is logged and counted; the
// rest of the cycle still runs.
type Service struct {
	logg       *logger.Logger
	jobs       []Job
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

// Summary reports what a cycle did.
type Summary struct {
	Skipped  bool
	Ran      []string
	Failed   []string
	Duration time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	var jobs []Job
	if params.Registry != nil {
		jobs = params.Registry.Jobs()
	}
	return &Service{
		logg:       params.Logger,
		jobs:       jobs,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   orDefault(params.Interval, defaultInterval),
		jobTimeout: orDefault(params.JobTimeout, defaultJobTimeout),
	}, nil
}

// Run executes a cycle immediately and then once per interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes a single locked cycle. It also backs the worker's one-shot
// mode for deployments where an external scheduler owns the cadence.
func (s *Service) RunOnce(ctx context.Context) (Summary, error) {
	var summary Summary
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return summary, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.IncSkipped()
		s.logg.Info(ctx, "another cron instance holds the lock; skipping cycle")
		summary.Skipped = true
		return summary, nil
	}
	defer s.release(ctx)

	start := time.Now()
	for _, job := range s.jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Ran = append(summary.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			summary.Failed = append(summary.Failed, job.Name())
		}
	}
	summary.Duration = time.Since(start)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(summary.Ran),
		"failed":      len(summary.Failed),
		"duration_ms": summary.Duration.Milliseconds(),
	}), "cron cycle complete")
	return summary, nil
}

// release runs on a detached context so a shutdown signal still frees the key.
func (s *Service) release(ctx context.Context) {
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.lock.Release(relCtx); err != nil {
		s.logg.WarnErr(ctx, "failed to release cron lock", err)
	}
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	start := time.Now()
	err := s.invoke(jobCtx, job)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}

func (s *Service) invoke(ctx context.Context, job Job) (err error) {
	runCtx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(runCtx)
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
