package testutil

import (
	"context"
	"sync"

	"order-lifecycle/internal/models"
)

// SentNotification is one captured Emit call.
type SentNotification struct {
	UserID  int64
	Kind    models.NotificationKind
	Message string
	OrderID int64
}

// RecordingNotifier captures notifications synchronously.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentNotification
}

func (r *RecordingNotifier) Emit(_ context.Context, userID int64, kind models.NotificationKind, message string, orderID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, SentNotification{UserID: userID, Kind: kind, Message: message, OrderID: orderID})
}

func (r *RecordingNotifier) Sent() []SentNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentNotification(nil), r.sent...)
}

// Kinds returns the kinds sent to userID, in order.
func (r *RecordingNotifier) Kinds(userID int64) []models.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []models.NotificationKind
	for _, n := range r.sent {
		if n.UserID == userID {
			kinds = append(kinds, n.Kind)
		}
	}
	return kinds
}

// RecordingPublisher captures order events; Err is returned from every publish.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderEvent
	Err    error
}

func (r *RecordingPublisher) PublishOrderEvent(_ context.Context, event *models.OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return r.Err
}

func (r *RecordingPublisher) Events() []models.OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderEvent(nil), r.events...)
}

// Types returns the published event types, in order.
func (r *RecordingPublisher) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType
	}
	return types
}
