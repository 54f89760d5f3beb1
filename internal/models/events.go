package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated   = "ORDER_CREATED"
	EventTypeOrderShipped   = "ORDER_SHIPPED"
	EventTypeOrderDelivered = "ORDER_DELIVERED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypeOrderConfirmed = "ORDER_CONFIRMED"
	EventTypeNotification   = "NOTIFICATION"
)

// Confirmation triggers carried on ORDER_CONFIRMED.
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is published on every lifecycle change of an order.
type OrderEvent struct {
	BaseEvent
	OrderID         int64           `json:"order_id"`
	BuyerID         int64           `json:"buyer_id"`
	StoreID         int64           `json:"store_id"`
	Status          OrderStatus     `json:"status"`
	SellerConfirmed bool            `json:"seller_confirmed"`
	Trigger         string          `json:"trigger,omitempty"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	Items           []OrderItemData `json:"items,omitempty"`
}

// NotificationEvent carries a user-facing message to the notification store.
type NotificationEvent struct {
	BaseEvent
	UserID  int64            `json:"user_id"`
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	OrderID int64            `json:"order_id,omitempty"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
