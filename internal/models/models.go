package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a checkout of one or more products from a single store.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	BuyerID         int64           `db:"buyer_id" json:"buyer_id"`
	StoreID         int64           `db:"store_id" json:"store_id"`
	TotalPrice      decimal.Decimal `db:"total_price" json:"total_price"`
	ContactName     string          `db:"contact_name" json:"contact_name"`
	ContactPhone    string          `db:"contact_phone" json:"contact_phone"`
	ContactEmail    string          `db:"contact_email" json:"contact_email,omitempty"`
	DeliveryAddress string          `db:"delivery_address" json:"delivery_address"`
	IsPaid          bool            `db:"is_paid" json:"is_paid"`
	Status          OrderStatus     `db:"status" json:"status"`
	SellerConfirmed bool            `db:"seller_confirmed" json:"seller_confirmed"`
	Reviewed        bool            `db:"reviewed" json:"reviewed"`
	IdempotencyKey  string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	CancelledAt     *time.Time      `db:"cancelled_at" json:"cancelled_at,omitempty"`

	Items []OrderItem `db:"-" json:"items"`
}

// OrderItem is a line item captured at order time.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Name      string          `db:"name" json:"name"`
	ImageURL  string          `db:"image_url" json:"image_url,omitempty"`
}

// Subtotal returns quantity * unit price.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Product carries the sold counter credited on seller confirmation.
type Product struct {
	ID        int64           `db:"id" json:"id"`
	StoreID   int64           `db:"store_id" json:"store_id"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	SoldCount int64           `db:"sold_count" json:"sold_count"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Store is a seller's shop.
type Store struct {
	ID        int64     `db:"id" json:"id"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	AddressID *int64    `db:"address_id" json:"address_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Address *StoreAddress `db:"-" json:"address,omitempty"`
}

type StoreAddress struct {
	ID         int64    `db:"id" json:"id"`
	Line1      string   `db:"line1" json:"line1"`
	Line2      string   `db:"line2" json:"line2,omitempty"`
	City       string   `db:"city" json:"city"`
	State      string   `db:"state" json:"state"`
	PostalCode string   `db:"postal_code" json:"postal_code"`
	Country    string   `db:"country" json:"country"`
	Latitude   *float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude  *float64 `db:"longitude" json:"longitude,omitempty"`
}

// AutoConfirmJob is the persisted deferred confirmation for one delivered order.
type AutoConfirmJob struct {
	OrderID   int64     `db:"order_id" json:"order_id"`
	RunAt     time.Time `db:"run_at" json:"run_at"`
	Attempts  int       `db:"attempts" json:"attempts"`
	LastError string    `db:"last_error" json:"last_error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NotificationKind classifies user-facing notifications.
type NotificationKind string

const (
	NotificationOrderCreated   NotificationKind = "order_created"
	NotificationOrderReceived  NotificationKind = "order_received"
	NotificationOrderShipped   NotificationKind = "order_shipped"
	NotificationOrderDelivered NotificationKind = "order_delivered"
	NotificationOrderCancelled NotificationKind = "order_cancelled"
	NotificationOrderConfirmed NotificationKind = "order_confirmed"
)

// Notification is an inbox entry persisted by the notification worker.
type Notification struct {
	ID        int64            `db:"id" json:"id"`
	EventID   string           `db:"event_id" json:"-"`
	UserID    int64            `db:"user_id" json:"user_id"`
	Kind      NotificationKind `db:"kind" json:"kind"`
	Message   string           `db:"message" json:"message"`
	OrderID   *int64           `db:"order_id" json:"order_id,omitempty"`
	ReadAt    *time.Time       `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// OrderFilter scopes list queries to a buyer or to a store owner.
type OrderFilter struct {
	BuyerID      int64
	StoreOwnerID int64
	Status       OrderStatus
	Limit        int
}
