package store

import (
	"context"
	"time"

	"order-lifecycle/internal/models"
)

// InsertNotification stores an inbox entry; a duplicate event id is ignored.
func (s *Store) InsertNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (event_id, user_id, kind, message, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		n.EventID, n.UserID, n.Kind, n.Message, n.OrderID, n.CreatedAt)
	return err
}

// ListNotifications retrieves the newest notifications of a user.
func (s *Store) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, event_id, user_id, kind, message, order_id, read_at, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT $2"

	var list []models.Notification
	err := s.db.SelectContext(ctx, &list, query, userID, limit)
	return list, err
}

// MarkNotificationsRead marks all unread notifications of a user as read.
func (s *Store) MarkNotificationsRead(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL", at, userID)
	return err
}
