package store

import (
	"context"
	"time"

	"order-lifecycle/internal/models"
)

// UpsertAutoConfirmJob registers the deferred confirmation for an order,
// replacing the run time of an existing job.
func (s *Store) UpsertAutoConfirmJob(ctx context.Context, orderID int64, runAt, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_confirm_jobs (order_id, run_at, attempts, last_error, created_at)
		VALUES ($1, $2, 0, '', $3)
		ON CONFLICT (order_id) DO UPDATE SET run_at = EXCLUDED.run_at, attempts = 0, last_error = ''`,
		orderID, runAt, now)
	return err
}

// DeleteAutoConfirmJob removes the job for an order. Missing jobs are not an error.
func (s *Store) DeleteAutoConfirmJob(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM auto_confirm_jobs WHERE order_id = $1", orderID)
	return err
}

// DueAutoConfirmJobs lists jobs whose run time has passed, oldest first.
func (s *Store) DueAutoConfirmJobs(ctx context.Context, now time.Time, limit int) ([]models.AutoConfirmJob, error) {
	var jobs []models.AutoConfirmJob
	err := s.db.SelectContext(ctx, &jobs, `
		SELECT order_id, run_at, attempts, last_error, created_at
		FROM auto_confirm_jobs
		WHERE run_at <= $1
		ORDER BY run_at, order_id
		LIMIT $2`, now, limit)
	return jobs, err
}

// RecordAutoConfirmFailure stores the failure and postpones the job.
func (s *Store) RecordAutoConfirmFailure(ctx context.Context, orderID int64, reason string, retryAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auto_confirm_jobs SET attempts = attempts + 1, last_error = $1, run_at = $2
		WHERE order_id = $3`, reason, retryAt, orderID)
	return err
}

// BackfillAutoConfirmJobs creates jobs for delivered orders that have none
// and still need work: unconfirmed orders are due delay after their last
// update, confirmed orders without a sold credit are due now. Existing jobs
// are kept.
func (s *Store) BackfillAutoConfirmJobs(ctx context.Context, delay time.Duration, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO auto_confirm_jobs (order_id, run_at, attempts, last_error, created_at)
		SELECT o.id,
			CASE WHEN o.seller_confirmed THEN $2 ELSE o.updated_at + ($1 * INTERVAL '1 second') END,
			0, '', $2
		FROM orders o
		WHERE o.status = $3
			AND (o.seller_confirmed = FALSE
				OR NOT EXISTS (SELECT 1 FROM sold_credits c WHERE c.order_id = o.id))
		ON CONFLICT (order_id) DO NOTHING`,
		delay.Seconds(), now, models.OrderStatusDelivered)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountAutoConfirmJobs returns the number of pending jobs.
func (s *Store) CountAutoConfirmJobs(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM auto_confirm_jobs")
	return n, err
}
