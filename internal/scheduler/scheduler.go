// Package scheduler keeps the deferred auto-confirmation of delivered orders
// in a database table, one job per order, so schedules survive restarts.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/util"

	"go.uber.org/zap"
)

// JobStore persists auto-confirm jobs keyed by order id.
type JobStore interface {
	UpsertAutoConfirmJob(ctx context.Context, orderID int64, runAt, now time.Time) error
	DeleteAutoConfirmJob(ctx context.Context, orderID int64) error
	DueAutoConfirmJobs(ctx context.Context, now time.Time, limit int) ([]models.AutoConfirmJob, error)
	RecordAutoConfirmFailure(ctx context.Context, orderID int64, reason string, retryAt time.Time) error
	BackfillAutoConfirmJobs(ctx context.Context, delay time.Duration, now time.Time) (int64, error)
	CountAutoConfirmJobs(ctx context.Context) (int64, error)
}

// Scheduler is the timer registry for auto-confirmation.
type Scheduler struct {
	jobs       JobStore
	clock      util.Clock
	delay      time.Duration
	retryDelay time.Duration
	logger     *zap.Logger
}

// New creates a scheduler. delay is the confirmation timeout used when
// reconciling orders without a job; retryDelay postpones failed jobs.
func New(jobs JobStore, clock util.Clock, delay, retryDelay time.Duration) *Scheduler {
	if clock == nil {
		clock = util.NewClock(time.UTC)
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Minute
	}
	return &Scheduler{
		jobs:       jobs,
		clock:      clock,
		delay:      delay,
		retryDelay: retryDelay,
		logger:     util.GetLogger(),
	}
}

// Schedule registers the job for orderID, replacing any existing one.
func (s *Scheduler) Schedule(ctx context.Context, orderID int64, runAt time.Time) error {
	if err := s.jobs.UpsertAutoConfirmJob(ctx, orderID, runAt, s.clock()); err != nil {
		return fmt.Errorf("failed to schedule auto-confirm for order %d: %w", orderID, err)
	}
	s.logger.Info("Auto-confirm scheduled",
		zap.Int64("order_id", orderID),
		zap.Time("run_at", runAt))
	return nil
}

// Cancel removes the job for orderID. Cancelling a missing job is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, orderID int64) error {
	if err := s.jobs.DeleteAutoConfirmJob(ctx, orderID); err != nil {
		return fmt.Errorf("failed to cancel auto-confirm for order %d: %w", orderID, err)
	}
	return nil
}

// Due returns up to limit jobs whose run time has passed.
func (s *Scheduler) Due(ctx context.Context, limit int) ([]models.AutoConfirmJob, error) {
	return s.jobs.DueAutoConfirmJobs(ctx, s.clock(), limit)
}

// RecordFailure keeps the job and pushes it back by the retry delay.
func (s *Scheduler) RecordFailure(ctx context.Context, orderID int64, cause error) error {
	retryAt := s.clock().Add(s.retryDelay)
	return s.jobs.RecordAutoConfirmFailure(ctx, orderID, cause.Error(), retryAt)
}

// Reconcile creates jobs for delivered, unconfirmed orders that have none
// and refreshes the pending gauge.
func (s *Scheduler) Reconcile(ctx context.Context) (int64, error) {
	created, err := s.jobs.BackfillAutoConfirmJobs(ctx, s.delay, s.clock())
	if err != nil {
		return 0, fmt.Errorf("failed to backfill auto-confirm jobs: %w", err)
	}
	if created > 0 {
		s.logger.Info("Backfilled auto-confirm jobs", zap.Int64("count", created))
	}

	if pending, err := s.jobs.CountAutoConfirmJobs(ctx); err == nil {
		util.AutoConfirmJobsPending.Set(float64(pending))
	} else {
		s.logger.Warn("Failed to count auto-confirm jobs", zap.Error(err))
	}
	return created, nil
}
