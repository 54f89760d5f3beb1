package worker

import (
	"context"
	"sync"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/util"

	"go.uber.org/zap"
)

const sweepLockKey = "auto-confirm-sweep"

// Confirmer runs the confirmation of a single order.
type Confirmer interface {
	AutoConfirm(ctx context.Context, orderID int64) error
}

// JobQueue is the persistent auto-confirm schedule.
type JobQueue interface {
	Reconcile(ctx context.Context) (int64, error)
	Due(ctx context.Context, limit int) ([]models.AutoConfirmJob, error)
	RecordFailure(ctx context.Context, orderID int64, cause error) error
}

// Locker is a distributed mutex; an empty token means the lock is held elsewhere.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// AutoConfirmWorker periodically confirms delivered orders whose timeout
// has elapsed. Only one replica sweeps at a time when a Locker is set.
type AutoConfirmWorker struct {
	confirmer Confirmer
	jobs      JobQueue
	locker    Locker
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewAutoConfirmWorker constructs the sweep worker. locker may be nil.
func NewAutoConfirmWorker(confirmer Confirmer, jobs JobQueue, locker Locker, interval time.Duration, batchSize int) *AutoConfirmWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &AutoConfirmWorker{
		confirmer: confirmer,
		jobs:      jobs,
		locker:    locker,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
	}
}

// Start sweeps once immediately and then on every tick.
func (w *AutoConfirmWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.run(runCtx)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (w *AutoConfirmWorker) Stop() {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *AutoConfirmWorker) run(ctx context.Context) {
	defer w.wg.Done()
	w.logger.Info("Starting auto-confirm worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("Auto-confirm sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Stopping auto-confirm worker")
			return
		case <-ticker.C:
		}
	}
}

// Sweep confirms every due order and returns how many jobs it attempted.
// A failing order is recorded on its job and does not stop the sweep.
func (w *AutoConfirmWorker) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		token, err := w.locker.AcquireLock(ctx, sweepLockKey, w.interval)
		if err != nil {
			return 0, err
		}
		if token == "" {
			w.logger.Debug("Auto-confirm sweep running elsewhere")
			return 0, nil
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := w.locker.ReleaseLock(releaseCtx, sweepLockKey, token); err != nil {
				w.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	start := time.Now()
	defer func() {
		util.AutoConfirmSweepDuration.Observe(time.Since(start).Seconds())
	}()

	if _, err := w.jobs.Reconcile(ctx); err != nil {
		w.logger.Warn("Auto-confirm reconcile failed", zap.Error(err))
	}

	processed, failed := 0, 0
	seen := make(map[int64]bool)
	for {
		batch, err := w.jobs.Due(ctx, w.batchSize)
		if err != nil {
			return processed, err
		}

		fresh := 0
		for _, job := range batch {
			if seen[job.OrderID] {
				continue
			}
			seen[job.OrderID] = true
			fresh++

			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			processed++
			if err := w.confirmer.AutoConfirm(ctx, job.OrderID); err != nil {
				failed++
				w.fail(ctx, job, err)
			}
		}

		if len(batch) < w.batchSize || fresh == 0 {
			break
		}
	}

	if processed > 0 {
		w.logger.Info("Auto-confirm sweep finished",
			zap.Int("processed", processed),
			zap.Int("failed", failed),
			zap.Duration("took", time.Since(start)))
	}
	return processed, nil
}

func (w *AutoConfirmWorker) fail(ctx context.Context, job models.AutoConfirmJob, cause error) {
	util.AutoConfirmFailuresTotal.Inc()
	w.logger.Error("Auto-confirm failed",
		zap.Int64("order_id", job.OrderID),
		zap.Int("attempts", job.Attempts+1),
		zap.Error(cause))

	if err := w.jobs.RecordFailure(ctx, job.OrderID, cause); err != nil {
		w.logger.Error("Failed to record auto-confirm failure",
			zap.Int64("order_id", job.OrderID),
			zap.Error(err))
	}
}
