package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// EventPublisher handles publishing order lifecycle events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

// PublishOrderEvent stamps and publishes an order event keyed by order id.
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := ep.writer.PublishEvent(ctx, orderKey(event.OrderID), event); err != nil {
		util.EventsPublishFailedTotal.WithLabelValues(event.EventType).Inc()
		return err
	}
	return nil
}

// NotificationEmitter publishes notifications without blocking the caller.
type NotificationEmitter struct {
	writer  EventWriter
	timeout time.Duration
	clock   util.Clock
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewNotificationEmitter creates an emitter; each publish gets its own timeout.
func NewNotificationEmitter(writer EventWriter, timeout time.Duration, clock util.Clock) *NotificationEmitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if clock == nil {
		clock = util.NewClock(time.UTC)
	}
	return &NotificationEmitter{
		writer:  writer,
		timeout: timeout,
		clock:   clock,
		logger:  util.GetLogger(),
	}
}

// Emit sends a notification in the background. Failures are logged only.
func (e *NotificationEmitter) Emit(ctx context.Context, userID int64, kind models.NotificationKind, message string, orderID int64) {
	event := &models.NotificationEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeNotification,
			Timestamp: e.clock(),
		},
		UserID:  userID,
		Kind:    kind,
		Message: message,
		OrderID: orderID,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()

		if err := e.writer.PublishEvent(pubCtx, fmt.Sprintf("user-%d", userID), event); err != nil {
			util.NotificationsFailedTotal.WithLabelValues("emit").Inc()
			e.logger.Error("Failed to emit notification",
				zap.Int64("user_id", userID),
				zap.Int64("order_id", orderID),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight notifications are published.
func (e *NotificationEmitter) Wait() {
	e.wg.Wait()
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onNotification func(context.Context, *models.NotificationEvent) error
	logger         *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnNotification registers a handler for NOTIFICATION events
func (eh *EventHandler) OnNotification(handler func(context.Context, *models.NotificationEvent) error) {
	eh.onNotification = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		// A malformed message can never succeed; drop it so the partition moves on.
		eh.logger.Error("Dropping undecodable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	switch baseEvent.EventType {
	case models.EventTypeNotification:
		if eh.onNotification != nil {
			var event models.NotificationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				eh.logger.Error("Dropping undecodable notification", zap.String("event_id", baseEvent.EventID), zap.Error(err))
				return nil
			}
			return eh.onNotification(ctx, &event)
		}

	default:
		eh.logger.Debug("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
