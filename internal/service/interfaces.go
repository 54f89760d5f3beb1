package service

import (
	"context"
	"time"

	"order-lifecycle/internal/models"
)

// OrderStore is the durable record of orders and stores.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	TransitionOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus, at time.Time) error
	CancelOrder(ctx context.Context, id int64, from models.OrderStatus, at time.Time) error
	ConfirmOrder(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkReviewed(ctx context.Context, id int64, at time.Time) (bool, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	GetStoreByID(ctx context.Context, id int64) (*models.Store, error)
}

// Inventory credits product sold counters for a confirmed order. Crediting
// the same order twice must be a no-op reporting false.
type Inventory interface {
	CreditSold(ctx context.Context, orderID int64, items []models.OrderItem) (bool, error)
}

// Scheduler owns the deferred auto-confirmation of delivered orders.
type Scheduler interface {
	Schedule(ctx context.Context, orderID int64, runAt time.Time) error
	Cancel(ctx context.Context, orderID int64) error
}

// Notifier delivers user-facing notifications; it must not block or fail the caller.
type Notifier interface {
	Emit(ctx context.Context, userID int64, kind models.NotificationKind, message string, orderID int64)
}

// EventPublisher publishes order lifecycle events.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}
