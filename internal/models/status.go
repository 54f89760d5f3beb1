package models

import "fmt"

// OrderStatus is the delivery status of an order. Seller confirmation is
// tracked separately on Order.SellerConfirmed.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusShipped:   1,
	OrderStatusDelivered: 2,
}

// ParseOrderStatus validates a status received from a client.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(s); st {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// CanTransitionTo reports whether a status change from s to next is allowed.
// Moves are forward-only; strict additionally forbids skipping shipped.
// Cancellation is only reachable from pending or shipped.
func (s OrderStatus) CanTransitionTo(next OrderStatus, strict bool) bool {
	if next == OrderStatusCancelled {
		return s.Cancellable()
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok || to <= from {
		return false
	}
	if strict {
		return to == from+1
	}
	return true
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusShipped
}
