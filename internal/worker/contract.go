// Package worker implements the store-side contract every queue consumer
// must honor. The crawl/extraction pipeline itself runs out of process;
// only its lifecycle writes live here so that all workers transition jobs
// the same defensive way.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

// Contract performs job lifecycle writes against the shared store.
//
// The dispatch queue is at-least-once, so the same message can reach two
// consumers. Every transition therefore reads the current status first and
// silently no-ops when the job already moved past the target state. The
// read-then-write pair is not transactional, but a lost race only means
// both writers set the same forward state; field-level updates make the
// overlap harmless.
type Contract struct {
	store  job.Store
	clock  job.Clock
	logger *zap.Logger
}

// NewContract constructs a Contract.
func NewContract(store job.Store, clock job.Clock, logger *zap.Logger) *Contract {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Contract{store: store, clock: clock, logger: logger}
}

// Begin transitions a job to processing. A duplicate delivery for a job
// that is already processing or terminal is detected and skipped; the
// second consumer must not re-run the work, signalled by the false return.
func (c *Contract) Begin(ctx context.Context, jobID string) (bool, error) {
	current, err := c.store.Get(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if !current.Status.CanTransition(job.StatusProcessing) {
		c.logger.Info("skipping duplicate delivery",
			zap.String("job_id", jobID),
			zap.String("status", string(current.Status)),
		)
		return false, nil
	}
	status := job.StatusProcessing
	now := c.clock.Now()
	if err := c.store.UpdateFields(ctx, jobID, job.Fields{Status: &status, UpdatedAt: &now}); err != nil {
		return false, fmt.Errorf("mark job %s processing: %w", jobID, err)
	}
	return true, nil
}

// Complete terminates a job with its artifact path. No-ops unless the job
// is processing: a redelivered message cannot overwrite an outcome, and a
// consumer that skipped Begin cannot complete a job it never started.
func (c *Contract) Complete(ctx context.Context, jobID, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path is required to complete job %s", jobID)
	}
	return c.finish(ctx, jobID, job.Fields{
		Status:   statusPtr(job.StatusCompleted),
		FilePath: &filePath,
	})
}

// Fail terminates a job with a human-readable error. Same lifecycle
// guard as Complete; filePath and error stay mutually exclusive because
// each terminal write sets exactly one of them.
func (c *Contract) Fail(ctx context.Context, jobID, errText string) error {
	if errText == "" {
		errText = "crawl failed"
	}
	return c.finish(ctx, jobID, job.Fields{
		Status: statusPtr(job.StatusFailed),
		Error:  &errText,
	})
}

func (c *Contract) finish(ctx context.Context, jobID string, fields job.Fields) error {
	current, err := c.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	// Rejects both a second terminal write (first outcome wins) and a
	// terminal write on a job still queued: a consumer that skipped
	// Begin must not jump the job past processing.
	if !current.Status.CanTransition(*fields.Status) {
		c.logger.Info("skipping out-of-order transition",
			zap.String("job_id", jobID),
			zap.String("status", string(current.Status)),
			zap.String("target", string(*fields.Status)),
		)
		return nil
	}
	now := c.clock.Now()
	fields.UpdatedAt = &now
	if err := c.store.UpdateFields(ctx, jobID, fields); err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	return nil
}

func statusPtr(s job.Status) *job.Status {
	return &s
}
