// Package sweeper repairs jobs the normal intake/worker flow left behind.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ankemong/newsnexus-sub000/internal/job"
	"github.com/ankemong/newsnexus-sub000/internal/metrics"
)

// Config controls the sweep cadence and thresholds.
type Config struct {
	// Interval between sweep passes.
	Interval time.Duration
	// QueuedStaleAfter is how long a job may sit queued before it is
	// considered orphaned (persisted but never enqueued, or its message
	// lost) and re-enqueued.
	QueuedStaleAfter time.Duration
	// ProcessingTimeout, when non-zero, fails jobs stuck processing
	// longer than this. Zero disables the watchdog: a crashed worker
	// then leaves its job processing forever, matching the base
	// contract where liveness detection is out of scope.
	ProcessingTimeout time.Duration
}

// Sweeper periodically re-enqueues stale queued jobs and, optionally,
// fails jobs whose worker went silent.
type Sweeper struct {
	store   job.Store
	queue   job.Queue
	clock   job.Clock
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New constructs a Sweeper.
func New(
	store job.Store,
	queue job.Queue,
	clock job.Clock,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.QueuedStaleAfter <= 0 {
		cfg.QueuedStaleAfter = 5 * time.Minute
	}
	return &Sweeper{
		store:   store,
		queue:   queue,
		clock:   clock,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Run blocks, sweeping on each tick until the context finishes.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Exported so tests and operators can trigger a
// pass without waiting for the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.requeueStaleQueued(ctx)
	if s.cfg.ProcessingTimeout > 0 {
		s.failStaleProcessing(ctx)
	}
}

// requeueStaleQueued repairs the persist-without-enqueue gap: a job that
// stayed queued past the staleness threshold either never reached the
// broker or its message was lost, so it is published again. Re-enqueueing
// a job whose message is merely slow produces a duplicate delivery, which
// the worker contract already tolerates.
func (s *Sweeper) requeueStaleQueued(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.QueuedStaleAfter)
	stale, err := s.store.ListByStatusBefore(ctx, job.StatusQueued, cutoff)
	if err != nil {
		s.logger.Error("list stale queued jobs failed", zap.Error(err))
		return
	}
	for _, j := range stale {
		if err := s.queue.Enqueue(ctx, job.Message{JobID: j.ID, Request: j.Request}); err != nil {
			s.logger.Error("re-enqueue failed", zap.String("job_id", j.ID), zap.Error(err))
			continue
		}
		// Bump updatedAt so the job is not re-enqueued on every tick
		// while it waits for a consumer. Status stays queued.
		now := s.clock.Now()
		if err := s.store.UpdateFields(ctx, j.ID, job.Fields{UpdatedAt: &now}); err != nil {
			s.logger.Error("touch requeued job failed", zap.String("job_id", j.ID), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.SweepRequeues.Inc()
		}
		s.logger.Info("re-enqueued stale job",
			zap.String("job_id", j.ID),
			zap.Time("updated_at", j.UpdatedAt),
		)
	}
}

func (s *Sweeper) failStaleProcessing(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.cfg.ProcessingTimeout)
	stuck, err := s.store.ListByStatusBefore(ctx, job.StatusProcessing, cutoff)
	if err != nil {
		s.logger.Error("list stale processing jobs failed", zap.Error(err))
		return
	}
	for _, j := range stuck {
		status := job.StatusFailed
		errText := "processing timed out"
		now := s.clock.Now()
		fields := job.Fields{Status: &status, Error: &errText, UpdatedAt: &now}
		if err := s.store.UpdateFields(ctx, j.ID, fields); err != nil {
			s.logger.Error("fail stuck job failed", zap.String("job_id", j.ID), zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.WatchdogTimeouts.Inc()
		}
		s.logger.Warn("failed stuck job",
			zap.String("job_id", j.ID),
			zap.Duration("timeout", s.cfg.ProcessingTimeout),
		)
	}
}
