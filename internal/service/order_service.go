package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/store"
	"order-lifecycle/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Role selects which side of an order a list query is scoped to.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

const listLimit = 200

// Options tunes the lifecycle manager.
type Options struct {
	Clock             util.Clock
	AutoConfirmAfter  time.Duration
	StrictTransitions bool
}

// OrderService owns order state transitions, seller confirmation and the
// side effects coupled to them.
type OrderService struct {
	orders    OrderStore
	inventory Inventory
	scheduler Scheduler
	notifier  Notifier
	events    EventPublisher

	clock            util.Clock
	autoConfirmAfter time.Duration
	strict           bool
	logger           *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderStore,
	inventory Inventory,
	scheduler Scheduler,
	notifier Notifier,
	events EventPublisher,
	opts Options,
) *OrderService {
	if opts.Clock == nil {
		opts.Clock = util.NewClock(time.UTC)
	}
	return &OrderService{
		orders:           orders,
		inventory:        inventory,
		scheduler:        scheduler,
		notifier:         notifier,
		events:           events,
		clock:            opts.Clock,
		autoConfirmAfter: opts.AutoConfirmAfter,
		strict:           opts.StrictTransitions,
		logger:           util.GetLogger(),
	}
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	BuyerID         int64              `json:"-"`
	StoreID         int64              `json:"store_id"`
	Items           []OrderItemRequest `json:"items"`
	TotalPrice      decimal.Decimal    `json:"total_price"`
	ContactName     string             `json:"contact_name"`
	ContactPhone    string             `json:"contact_phone"`
	ContactEmail    string             `json:"contact_email,omitempty"`
	DeliveryAddress string             `json:"delivery_address"`
	IsPaid          bool               `json:"is_paid"`
	IdempotencyKey  string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url,omitempty"`
}

// OrderDetails is an order together with the store it was placed at.
type OrderDetails struct {
	Order *models.Order `json:"order"`
	Store *models.Store `json:"store"`
}

func (r *CreateOrderRequest) validate() error {
	switch {
	case r.BuyerID <= 0:
		return validationError("buyer is required")
	case r.StoreID <= 0:
		return validationError("store_id is required")
	case len(r.Items) == 0:
		return validationError("at least one item is required")
	case strings.TrimSpace(r.ContactName) == "":
		return validationError("contact_name is required")
	case strings.TrimSpace(r.ContactPhone) == "":
		return validationError("contact_phone is required")
	case strings.TrimSpace(r.DeliveryAddress) == "":
		return validationError("delivery_address is required")
	}

	total := decimal.Zero
	for i, item := range r.Items {
		switch {
		case item.ProductID <= 0:
			return validationError("items[%d]: product_id is required", i)
		case item.Quantity <= 0:
			return validationError("items[%d]: quantity must be positive", i)
		case item.UnitPrice.IsNegative():
			return validationError("items[%d]: unit_price must not be negative", i)
		case strings.TrimSpace(item.Name) == "":
			return validationError("items[%d]: name is required", i)
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !total.Equal(r.TotalPrice) {
		return validationError("total_price %s does not match items total %s", r.TotalPrice, total)
	}
	return nil
}

// CreateOrder persists a new pending order and notifies buyer and seller.
// A repeated idempotency key returns the order created by the first request.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	} else {
		existing, err := s.existingOrder(ctx, req)
		if existing != nil || err != nil {
			return existing, err
		}
	}

	shop, err := s.orders.GetStoreByID(ctx, req.StoreID)
	if isStoreNotFound(err) {
		return nil, validationError("store %d does not exist", req.StoreID)
	}
	if err != nil {
		return nil, storeError("get store", err)
	}

	now := s.clock()
	order := &models.Order{
		BuyerID:         req.BuyerID,
		StoreID:         req.StoreID,
		TotalPrice:      req.TotalPrice,
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		DeliveryAddress: req.DeliveryAddress,
		IsPaid:          req.IsPaid,
		Status:          models.OrderStatusPending,
		IdempotencyKey:  req.IdempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]models.OrderItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
		})
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent request with the same key won the insert.
			existing, lookupErr := s.existingOrder(ctx, req)
			if existing != nil || lookupErr != nil {
				return existing, lookupErr
			}
		}
		util.RecordError(span, err)
		return nil, storeError("create order", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("buyer_id", order.BuyerID),
		zap.Int64("store_id", order.StoreID))

	s.notifier.Emit(ctx, order.BuyerID, models.NotificationOrderCreated,
		fmt.Sprintf("Your order #%d has been placed", order.ID), order.ID)
	s.notifier.Emit(ctx, shop.OwnerID, models.NotificationOrderReceived,
		fmt.Sprintf("New order #%d received", order.ID), order.ID)
	s.publish(ctx, models.EventTypeOrderCreated, order, "")

	return order, nil
}

// existingOrder returns the order already created under the request's
// idempotency key, or nil when there is none.
func (s *OrderService) existingOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	existing, err := s.orders.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, storeError("check idempotency", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.BuyerID != req.BuyerID {
		return nil, validationError("idempotency_key already used")
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", req.IdempotencyKey),
		zap.Int64("order_id", existing.ID))
	return existing, nil
}

// ChangeStatus moves an order forward. Only the store owner may do this.
// Delivering an unconfirmed order schedules its automatic confirmation.
func (s *OrderService) ChangeStatus(ctx context.Context, actorID, orderID int64, status models.OrderStatus) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.ChangeStatus", orderID)
	defer span.End()

	order, shop, err := s.loadOrderAndStore(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID == 0 || shop.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the store owner may change order status", ErrUnauthorized)
	}

	if status == models.OrderStatusCancelled {
		return s.cancel(ctx, order, shop, actorID)
	}

	from := order.Status
	if !from.CanTransitionTo(status, s.strict) {
		util.OrderTransitionsRejected.WithLabelValues(string(from), string(status)).Inc()
		return nil, transitionError("order %d cannot move from %s to %s", orderID, from, status)
	}

	now := s.clock()
	if err := s.orders.TransitionOrderStatus(ctx, orderID, from, status, now); err != nil {
		util.RecordError(span, err)
		return nil, storeError("transition order", err)
	}
	order.Status = status
	order.UpdatedAt = now

	util.OrderTransitionsTotal.WithLabelValues(string(from), string(status)).Inc()
	s.logger.Info("Order status changed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)))

	switch status {
	case models.OrderStatusShipped:
		s.notifier.Emit(ctx, order.BuyerID, models.NotificationOrderShipped,
			fmt.Sprintf("Your order #%d has been shipped", orderID), orderID)
		s.publish(ctx, models.EventTypeOrderShipped, order, "")

	case models.OrderStatusDelivered:
		s.notifier.Emit(ctx, order.BuyerID, models.NotificationOrderDelivered,
			fmt.Sprintf("Your order #%d has been delivered", orderID), orderID)
		if !order.SellerConfirmed {
			runAt := now.Add(s.autoConfirmAfter)
			if err := s.scheduler.Schedule(ctx, orderID, runAt); err != nil {
				// The sweep's reconcile pass recreates missing jobs.
				s.logger.Error("Failed to schedule auto-confirm",
					zap.Int64("order_id", orderID),
					zap.Error(err))
			}
		}
		s.publish(ctx, models.EventTypeOrderDelivered, order, "")
	}

	return order, nil
}

// CancelOrder cancels a pending or shipped order on behalf of its buyer or
// store owner. Inventory is not touched.
func (s *OrderService) CancelOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.CancelOrder", orderID)
	defer span.End()

	order, shop, err := s.loadOrderAndStore(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID == 0 || (order.BuyerID != actorID && shop.OwnerID != actorID) {
		return nil, fmt.Errorf("%w: only the buyer or the store owner may cancel", ErrUnauthorized)
	}
	return s.cancel(ctx, order, shop, actorID)
}

func (s *OrderService) cancel(ctx context.Context, order *models.Order, shop *models.Store, actorID int64) (*models.Order, error) {
	from := order.Status
	if !from.Cancellable() {
		util.OrderTransitionsRejected.WithLabelValues(string(from), string(models.OrderStatusCancelled)).Inc()
		return nil, transitionError("order %d cannot be cancelled from %s", order.ID, from)
	}

	now := s.clock()
	if err := s.orders.CancelOrder(ctx, order.ID, from, now); err != nil {
		return nil, storeError("cancel order", err)
	}
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = now
	order.CancelledAt = &now

	util.OrdersCancelledTotal.Inc()
	util.OrderTransitionsTotal.WithLabelValues(string(from), string(models.OrderStatusCancelled)).Inc()
	s.logger.Info("Order cancelled",
		zap.Int64("order_id", order.ID),
		zap.Int64("actor_id", actorID),
		zap.String("from", string(from)))

	s.notifier.Emit(ctx, order.BuyerID, models.NotificationOrderCancelled,
		fmt.Sprintf("Your order #%d has been cancelled", order.ID), order.ID)
	if actorID == order.BuyerID && shop.OwnerID != order.BuyerID {
		s.notifier.Emit(ctx, shop.OwnerID, models.NotificationOrderCancelled,
			fmt.Sprintf("Order #%d was cancelled by the buyer", order.ID), order.ID)
	}
	s.publish(ctx, models.EventTypeOrderCancelled, order, "")

	return order, nil
}

// ConfirmOrder records the seller's confirmation of a delivered order and
// credits sold counters. Confirming twice is a no-op.
func (s *OrderService) ConfirmOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.ConfirmOrder", orderID)
	defer span.End()

	order, shop, err := s.loadOrderAndStore(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID == 0 || shop.OwnerID != actorID {
		return nil, fmt.Errorf("%w: only the store owner may confirm", ErrUnauthorized)
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, transitionError("order %d is %s, not delivered", orderID, order.Status)
	}

	if err := s.confirm(ctx, order, models.TriggerManual); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return order, nil
}

// AutoConfirm is the scheduled confirmation of one order. Orders that no
// longer qualify only have their job retired.
func (s *OrderService) AutoConfirm(ctx context.Context, orderID int64) error {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.AutoConfirm", orderID)
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if isStoreNotFound(err) {
		s.logger.Warn("Auto-confirm job for missing order", zap.Int64("order_id", orderID))
		return s.retire(ctx, orderID)
	}
	if err != nil {
		util.RecordError(span, err)
		return storeError("get order", err)
	}

	if order.Status != models.OrderStatusDelivered {
		s.logger.Info("Order no longer delivered, retiring auto-confirm",
			zap.Int64("order_id", orderID),
			zap.String("status", string(order.Status)))
		return s.retire(ctx, orderID)
	}

	if err := s.confirm(ctx, order, models.TriggerAuto); err != nil {
		util.RecordError(span, err)
		return err
	}
	return nil
}

// confirm flips seller_confirmed if still unset, credits sold counters and
// retires the job. Crediting is idempotent per order, so running this on an
// already confirmed order completes a credit that failed earlier.
func (s *OrderService) confirm(ctx context.Context, order *models.Order, trigger string) error {
	if !order.SellerConfirmed {
		now := s.clock()
		ok, err := s.orders.ConfirmOrder(ctx, order.ID, now)
		if err != nil {
			return storeError("confirm order", err)
		}
		if ok {
			order.SellerConfirmed = true
			order.UpdatedAt = now
			s.confirmed(ctx, order, trigger)
		} else {
			fresh, err := s.orders.GetOrderByID(ctx, order.ID)
			if err != nil {
				return storeError("reload order", err)
			}
			*order = *fresh
			if !order.SellerConfirmed {
				// Lost a race with a status change.
				return transitionError("order %d is %s, not delivered", order.ID, order.Status)
			}
		}
	}

	credited, err := s.inventory.CreditSold(ctx, order.ID, order.Items)
	if err != nil {
		s.logger.Error("Failed to credit sold counters",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return storeError("credit sold", err)
	}
	if credited {
		units := 0
		for _, item := range order.Items {
			units += item.Quantity
		}
		util.SoldUnitsCreditedTotal.Add(float64(units))
	}

	return s.retire(ctx, order.ID)
}

// confirmed announces a confirmation once the flip is durable.
func (s *OrderService) confirmed(ctx context.Context, order *models.Order, trigger string) {
	util.OrdersConfirmedTotal.WithLabelValues(trigger).Inc()
	s.logger.Info("Order confirmed",
		zap.Int64("order_id", order.ID),
		zap.String("trigger", trigger))

	message := fmt.Sprintf("Order #%d has been confirmed by the seller", order.ID)
	if trigger == models.TriggerAuto {
		message = fmt.Sprintf("Order #%d has been confirmed automatically", order.ID)
	}
	s.notifier.Emit(ctx, order.BuyerID, models.NotificationOrderConfirmed, message, order.ID)
	s.publish(ctx, models.EventTypeOrderConfirmed, order, trigger)
}

func (s *OrderService) retire(ctx context.Context, orderID int64) error {
	if err := s.scheduler.Cancel(ctx, orderID); err != nil {
		return storeError("retire auto-confirm job", err)
	}
	return nil
}

// GetOrderDetails returns the order with its store and the store's address.
func (s *OrderService) GetOrderDetails(ctx context.Context, actorID, orderID int64) (*OrderDetails, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.GetOrderDetails", orderID)
	defer span.End()

	order, shop, err := s.loadOrderAndStore(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorID == 0 || (order.BuyerID != actorID && shop.OwnerID != actorID) {
		return nil, fmt.Errorf("%w: order %d belongs to another user", ErrUnauthorized, orderID)
	}
	return &OrderDetails{Order: order, Store: shop}, nil
}

// ListOrders lists the actor's orders as buyer or as store owner, newest
// first, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, actorID int64, role Role, status string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	if actorID == 0 {
		return nil, fmt.Errorf("%w: actor is required", ErrUnauthorized)
	}

	filter := models.OrderFilter{Limit: listLimit}
	switch role {
	case RoleBuyer, "":
		filter.BuyerID = actorID
	case RoleSeller:
		filter.StoreOwnerID = actorID
	default:
		return nil, validationError("unknown role %q", role)
	}

	if status != "" {
		st, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, validationError("%v", err)
		}
		filter.Status = st
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, storeError("list orders", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// MarkReviewed records that the buyer reviewed a delivered order.
func (s *OrderService) MarkReviewed(ctx context.Context, actorID, orderID int64) (*models.Order, error) {
	ctx, span := util.StartOrderSpan(ctx, "OrderService.MarkReviewed", orderID)
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, storeError("get order", err)
	}
	if actorID == 0 || order.BuyerID != actorID {
		return nil, fmt.Errorf("%w: only the buyer may review", ErrUnauthorized)
	}
	if order.Status != models.OrderStatusDelivered {
		return nil, transitionError("order %d is %s, not delivered", orderID, order.Status)
	}
	if order.Reviewed {
		return order, nil
	}

	now := s.clock()
	changed, err := s.orders.MarkReviewed(ctx, orderID, now)
	if err != nil {
		return nil, storeError("mark reviewed", err)
	}
	if changed {
		order.Reviewed = true
		order.UpdatedAt = now
	}
	return order, nil
}

func (s *OrderService) loadOrderAndStore(ctx context.Context, orderID int64) (*models.Order, *models.Store, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, storeError("get order", err)
	}
	shop, err := s.orders.GetStoreByID(ctx, order.StoreID)
	if err != nil {
		return nil, nil, storeError("get store", err)
	}
	return order, shop, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, trigger string) {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.clock(),
		},
		OrderID:         order.ID,
		BuyerID:         order.BuyerID,
		StoreID:         order.StoreID,
		Status:          order.Status,
		SellerConfirmed: order.SellerConfirmed,
		Trigger:         trigger,
		TotalPrice:      order.TotalPrice,
		Items:           items,
	}

	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}
