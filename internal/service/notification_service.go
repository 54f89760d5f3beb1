package service

import (
	"context"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/util"

	"go.uber.org/zap"
)

const defaultNotificationLimit = 50

// NotificationStore persists the user inbox.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID int64, at time.Time) error
}

// NotificationService records consumed notification events and serves the inbox.
type NotificationService struct {
	store  NotificationStore
	clock  util.Clock
	logger *zap.Logger
}

func NewNotificationService(store NotificationStore, clock util.Clock) *NotificationService {
	if clock == nil {
		clock = util.NewClock(time.UTC)
	}
	return &NotificationService{store: store, clock: clock, logger: util.GetLogger()}
}

// Record persists a notification event. Redelivered events are ignored by
// the store on their event id.
func (ns *NotificationService) Record(ctx context.Context, event *models.NotificationEvent) error {
	if event.EventID == "" || event.UserID == 0 {
		ns.logger.Warn("Skipping incomplete notification event",
			zap.String("event_id", event.EventID),
			zap.Int64("user_id", event.UserID))
		return nil
	}

	n := &models.Notification{
		EventID:   event.EventID,
		UserID:    event.UserID,
		Kind:      event.Kind,
		Message:   event.Message,
		CreatedAt: event.Timestamp,
	}
	if event.OrderID != 0 {
		orderID := event.OrderID
		n.OrderID = &orderID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = ns.clock()
	}

	if err := ns.store.InsertNotification(ctx, n); err != nil {
		util.NotificationsFailedTotal.WithLabelValues("persist").Inc()
		return storeError("insert notification", err)
	}
	return nil
}

// List returns a user's newest notifications.
func (ns *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool) ([]models.Notification, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	list, err := ns.store.ListNotifications(ctx, userID, unreadOnly, defaultNotificationLimit)
	if err != nil {
		return nil, storeError("list notifications", err)
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

// MarkRead marks all of a user's notifications read.
func (ns *NotificationService) MarkRead(ctx context.Context, userID int64) error {
	if userID == 0 {
		return ErrUnauthorized
	}
	if err := ns.store.MarkNotificationsRead(ctx, userID, ns.clock()); err != nil {
		return storeError("mark notifications read", err)
	}
	return nil
}
