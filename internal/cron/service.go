package cron

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/multierr"

	"github.com/artisancrate/billing-engine/pkg/logger"
)

const defaultInterval = 24 * time.Hour

// JobMetrics records per-job run outcomes.
type JobMetrics interface {
	ObserveDuration(job string, duration time.Duration)
	IncSuccess(job string)
	IncFailure(job string)
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  JobMetrics
	// Interval between cycles. Zero means daily.
	Interval time.Duration
}

// Service runs every registered job once per interval while it holds the
// worker lock. A cycle whose lock is held elsewhere is skipped, not queued.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  JobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if params.Registry != nil {
		s.jobs = params.Registry.Jobs()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run starts with an immediate cycle and then ticks until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run finished with failures", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one cycle. Every job runs even when an earlier one
// fails; the failures come back combined.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held by another worker, skipping cycle")
		return nil
	}
	defer func() {
		// Release must outlive a canceled cycle context.
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, job := range s.jobs {
		if jobErr := s.runJob(ctx, job); jobErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", job.Name(), jobErr))
		}
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			ctx = s.logg.WithField(ctx, "stack", string(debug.Stack()))
		}
		elapsed := time.Since(start)
		ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if s.metrics != nil {
			s.metrics.ObserveDuration(name, elapsed)
		}
		if err != nil {
			s.logg.Error(ctx, "job failed", err)
			if s.metrics != nil {
				s.metrics.IncFailure(name)
			}
			return
		}
		s.logg.Info(ctx, "job completed")
		if s.metrics != nil {
			s.metrics.IncSuccess(name)
		}
	}()

	return job.Run(ctx)
}
