package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/scheduler"
	"order-lifecycle/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerID   int64 = 10
	ownerID   int64 = 20
	strangeID int64 = 30
	storeID   int64 = 1
	productA  int64 = 100
	productB  int64 = 200
)

type harness struct {
	mu        sync.Mutex
	now       time.Time
	store     *testutil.MemoryStore
	notifier  *testutil.RecordingNotifier
	publisher *testutil.RecordingPublisher
	svc       *OrderService
}

func newHarness(t *testing.T, strict bool) *harness {
	t.Helper()

	h := &harness{
		now:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("WIB", 7*60*60)),
		store:     testutil.NewMemoryStore(),
		notifier:  &testutil.RecordingNotifier{},
		publisher: &testutil.RecordingPublisher{},
	}
	addressID := int64(7)
	h.store.AddStore(models.Store{
		ID:        storeID,
		OwnerID:   ownerID,
		Name:      "Corner Shop",
		AddressID: &addressID,
		Address:   &models.StoreAddress{ID: addressID, Line1: "Jl. Sudirman 1", City: "Jakarta"},
	})
	h.store.AddProduct(models.Product{ID: productA, StoreID: storeID, Name: "Mug"})
	h.store.AddProduct(models.Product{ID: productB, StoreID: storeID, Name: "Teapot"})

	clock := h.clock
	sched := scheduler.New(h.store, clock, time.Hour, 5*time.Minute)
	inventory := NewInventoryClient(h.store, nil, clock)
	h.svc = NewOrderService(h.store, inventory, sched, h.notifier, h.publisher, Options{
		Clock:             clock,
		AutoConfirmAfter:  time.Hour,
		StrictTransitions: strict,
	})
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
	return h.now
}

func usd(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func checkoutRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		BuyerID: buyerID,
		StoreID: storeID,
		Items: []OrderItemRequest{
			{ProductID: productA, Quantity: 2, UnitPrice: usd(5), Name: "Mug"},
			{ProductID: productB, Quantity: 1, UnitPrice: usd(10), Name: "Teapot"},
		},
		TotalPrice:      usd(20),
		ContactName:     "Budi",
		ContactPhone:    "+62 812 0000",
		DeliveryAddress: "Jl. Thamrin 5, Jakarta",
		IsPaid:          true,
	}
}

func (h *harness) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := h.svc.CreateOrder(context.Background(), checkoutRequest())
	require.NoError(t, err)
	return order
}

func (h *harness) deliveredOrder(t *testing.T) *models.Order {
	t.Helper()
	order := h.createOrder(t)
	order, err := h.svc.ChangeStatus(context.Background(), ownerID, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	return order
}

func TestCreateOrderPersistsPendingOrder(t *testing.T) {
	h := newHarness(t, false)

	order := h.createOrder(t)

	stored := h.store.Order(order.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.False(t, stored.SellerConfirmed)
	assert.False(t, stored.Reviewed)
	assert.Nil(t, stored.CancelledAt)
	assert.True(t, stored.TotalPrice.Equal(usd(20)))
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, h.clock(), stored.CreatedAt)
	assert.NotEmpty(t, stored.IdempotencyKey)

	assert.Equal(t, []models.NotificationKind{models.NotificationOrderCreated}, h.notifier.Kinds(buyerID))
	assert.Equal(t, []models.NotificationKind{models.NotificationOrderReceived}, h.notifier.Kinds(ownerID))
	assert.Equal(t, []string{models.EventTypeOrderCreated}, h.publisher.Types())
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"missing buyer", func(r *CreateOrderRequest) { r.BuyerID = 0 }},
		{"missing store", func(r *CreateOrderRequest) { r.StoreID = 0 }},
		{"no items", func(r *CreateOrderRequest) { r.Items = nil }},
		{"missing contact name", func(r *CreateOrderRequest) { r.ContactName = " " }},
		{"missing phone", func(r *CreateOrderRequest) { r.ContactPhone = "" }},
		{"missing address", func(r *CreateOrderRequest) { r.DeliveryAddress = "" }},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"negative price", func(r *CreateOrderRequest) { r.Items[1].UnitPrice = usd(-1) }},
		{"missing item name", func(r *CreateOrderRequest) { r.Items[0].Name = "" }},
		{"total mismatch", func(r *CreateOrderRequest) { r.TotalPrice = usd(19) }},
		{"unknown store", func(r *CreateOrderRequest) { r.StoreID = 99 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			req := checkoutRequest()
			tt.mutate(req)

			_, err := h.svc.CreateOrder(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, h.notifier.Sent())
		})
	}
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	req := checkoutRequest()
	req.IdempotencyKey = "checkout-1"
	first, err := h.svc.CreateOrder(ctx, req)
	require.NoError(t, err)

	again := checkoutRequest()
	again.IdempotencyKey = "checkout-1"
	second, err := h.svc.CreateOrder(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other := checkoutRequest()
	other.BuyerID = strangeID
	other.IdempotencyKey = "checkout-1"
	_, err = h.svc.CreateOrder(ctx, other)
	assert.ErrorIs(t, err, ErrValidation)

	orders, err := h.svc.ListOrders(ctx, buyerID, RoleBuyer, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

// staleKeyLookup misses the first idempotency lookup, as a request does
// when another request with the same key commits right after it.
type staleKeyLookup struct {
	*testutil.MemoryStore
	mu     sync.Mutex
	missed bool
}

func (s *staleKeyLookup) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	miss := !s.missed
	s.missed = true
	s.mu.Unlock()
	if miss {
		return nil, nil
	}
	return s.MemoryStore.GetOrderByIdempotencyKey(ctx, key)
}

func TestCreateOrderDuplicateKeyRaceReturnsExistingOrder(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	req := checkoutRequest()
	req.IdempotencyKey = "checkout-race"
	first, err := h.svc.CreateOrder(ctx, req)
	require.NoError(t, err)
	sent := len(h.notifier.Sent())

	racing := &staleKeyLookup{MemoryStore: h.store}
	svc := NewOrderService(racing,
		NewInventoryClient(h.store, nil, h.clock),
		scheduler.New(h.store, h.clock, time.Hour, 5*time.Minute),
		h.notifier, h.publisher,
		Options{Clock: h.clock, AutoConfirmAfter: time.Hour})

	again := checkoutRequest()
	again.IdempotencyKey = "checkout-race"
	second, err := svc.CreateOrder(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, h.notifier.Sent(), sent, "the losing request must not notify")

	racing.mu.Lock()
	racing.missed = false
	racing.mu.Unlock()
	other := checkoutRequest()
	other.BuyerID = strangeID
	other.IdempotencyKey = "checkout-race"
	_, err = svc.CreateOrder(ctx, other)
	assert.ErrorIs(t, err, ErrValidation)

	orders, err := h.svc.ListOrders(ctx, buyerID, RoleBuyer, "")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestManualConfirmCreditsInventoryOnce(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	order := h.deliveredOrder(t)
	job := h.store.Job(order.ID)
	require.NotNil(t, job)
	assert.Equal(t, h.clock().Add(time.Hour), job.RunAt)

	confirmedAt := h.advance(10 * time.Minute)
	confirmed, err := h.svc.ConfirmOrder(ctx, ownerID, order.ID)
	require.NoError(t, err)

	assert.True(t, confirmed.SellerConfirmed)
	assert.Equal(t, confirmedAt, h.store.Order(order.ID).UpdatedAt)
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))
	assert.Nil(t, h.store.Job(order.ID))

	// Second confirmation is a no-op.
	h.advance(time.Minute)
	again, err := h.svc.ConfirmOrder(ctx, ownerID, order.ID)
	require.NoError(t, err)
	assert.True(t, again.SellerConfirmed)
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))
	assert.Equal(t, confirmedAt, h.store.Order(order.ID).UpdatedAt)

	var confirmations int
	for _, e := range h.publisher.Events() {
		if e.EventType == models.EventTypeOrderConfirmed {
			confirmations++
			assert.Equal(t, models.TriggerManual, e.Trigger)
		}
	}
	assert.Equal(t, 1, confirmations)
}

func TestAutoConfirmAfterTimeout(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	order := h.deliveredOrder(t)
	h.advance(time.Hour)

	require.NoError(t, h.svc.AutoConfirm(ctx, order.ID))

	stored := h.store.Order(order.ID)
	assert.True(t, stored.SellerConfirmed)
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))
	assert.Nil(t, h.store.Job(order.ID), "job must be retired")

	events := h.publisher.Events()
	last := events[len(events)-1]
	assert.Equal(t, models.EventTypeOrderConfirmed, last.EventType)
	assert.Equal(t, models.TriggerAuto, last.Trigger)

	// A stray second run changes nothing.
	require.NoError(t, h.svc.AutoConfirm(ctx, order.ID))
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Len(t, h.publisher.Events(), len(events))
}

func TestAutoConfirmAfterManualConfirmIsNoop(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	order := h.deliveredOrder(t)
	_, err := h.svc.ConfirmOrder(ctx, ownerID, order.ID)
	require.NoError(t, err)
	published := len(h.publisher.Events())

	h.advance(2 * time.Hour)
	require.NoError(t, h.svc.AutoConfirm(ctx, order.ID))

	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))
	assert.Len(t, h.publisher.Events(), published)
}

func TestAutoConfirmRetiresJobsThatNoLongerQualify(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	order := h.createOrder(t)
	_, err := h.svc.CancelOrder(ctx, buyerID, order.ID)
	require.NoError(t, err)
	require.NoError(t, h.store.UpsertAutoConfirmJob(ctx, order.ID, h.clock(), h.clock()))

	require.NoError(t, h.svc.AutoConfirm(ctx, order.ID))
	assert.Nil(t, h.store.Job(order.ID))
	assert.False(t, h.store.Order(order.ID).SellerConfirmed)
	assert.Zero(t, h.store.SoldCount(productA))

	require.NoError(t, h.store.UpsertAutoConfirmJob(ctx, 404, h.clock(), h.clock()))
	require.NoError(t, h.svc.AutoConfirm(ctx, 404))
	assert.Nil(t, h.store.Job(404))
}

func TestConfirmCreditFailureIsCompletedBySweep(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	order := h.deliveredOrder(t)
	h.store.FailOn("CreditSold", errors.New("connection reset"))

	_, err := h.svc.ConfirmOrder(ctx, ownerID, order.ID)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.True(t, h.store.Order(order.ID).SellerConfirmed)
	assert.Zero(t, h.store.SoldCount(productA))
	assert.NotNil(t, h.store.Job(order.ID), "job stays until the credit lands")

	h.store.FailOn("CreditSold", nil)
	require.NoError(t, h.svc.AutoConfirm(ctx, order.ID))
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))
	assert.Nil(t, h.store.Job(order.ID))
}

func TestConfirmedOrderWithoutJobIsCreditedAfterReconcile(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	sched := scheduler.New(h.store, h.clock, time.Hour, 5*time.Minute)

	order := h.createOrder(t)
	h.store.FailOn("UpsertAutoConfirmJob", errors.New("db down"))
	_, err := h.svc.ChangeStatus(ctx, ownerID, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	h.store.FailOn("UpsertAutoConfirmJob", nil)
	require.Nil(t, h.store.Job(order.ID))

	h.store.FailOn("CreditSold", errors.New("connection reset"))
	_, err = h.svc.ConfirmOrder(ctx, ownerID, order.ID)
	assert.ErrorIs(t, err, ErrStoreFailure)
	h.store.FailOn("CreditSold", nil)
	assert.True(t, h.store.Order(order.ID).SellerConfirmed)
	assert.Contains(t, h.notifier.Kinds(buyerID), models.NotificationOrderConfirmed)

	created, err := sched.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created)

	due, err := sched.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "confirmed but uncredited order is due immediately")
	assert.Equal(t, order.ID, due[0].OrderID)

	require.NoError(t, h.svc.AutoConfirm(ctx, order.ID))
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))
	assert.Nil(t, h.store.Job(order.ID))

	created, err = sched.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, created, "credited orders need no job")
}

func TestConcurrentConfirmationCreditsOnce(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	order := h.deliveredOrder(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.svc.ConfirmOrder(ctx, ownerID, order.ID)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			errs <- h.svc.AutoConfirm(ctx, order.ID)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(2), h.store.SoldCount(productA))
	assert.Equal(t, int64(1), h.store.SoldCount(productB))

	var confirmations int
	for _, e := range h.publisher.Events() {
		if e.EventType == models.EventTypeOrderConfirmed {
			confirmations++
		}
	}
	assert.Equal(t, 1, confirmations)
}

func TestCancelPendingOrder(t *testing.T) {
	h := newHarness(t, false)

	order := h.createOrder(t)
	cancelledAt := h.advance(5 * time.Minute)

	cancelled, err := h.svc.CancelOrder(context.Background(), buyerID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	stored := h.store.Order(order.ID)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledAt)
	assert.Equal(t, cancelledAt, *stored.CancelledAt)
	assert.Zero(t, h.store.SoldCount(productA))
	assert.Zero(t, h.store.SoldCount(productB))

	assert.Contains(t, h.notifier.Kinds(buyerID), models.NotificationOrderCancelled)
	assert.Contains(t, h.notifier.Kinds(ownerID), models.NotificationOrderCancelled)
}

func TestCancelOrderRules(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	order := h.createOrder(t)
	_, err := h.svc.CancelOrder(ctx, strangeID, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.svc.CancelOrder(ctx, ownerID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	delivered := h.deliveredOrder(t)
	_, err = h.svc.CancelOrder(ctx, buyerID, delivered.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.svc.ChangeStatus(ctx, ownerID, order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = h.svc.CancelOrder(ctx, buyerID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestChangeStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		path    []models.OrderStatus
		wantErr error
	}{
		{"ship then deliver", false, []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusDelivered}, nil},
		{"deliver directly", false, []models.OrderStatus{models.OrderStatusDelivered}, nil},
		{"deliver directly in strict mode", true, []models.OrderStatus{models.OrderStatusDelivered}, ErrInvalidTransition},
		{"same state", false, []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusShipped}, ErrInvalidTransition},
		{"backwards", false, []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusPending}, ErrInvalidTransition},
		{"leave delivered", false, []models.OrderStatus{models.OrderStatusDelivered, models.OrderStatusShipped}, ErrInvalidTransition},
		{"leave cancelled", false, []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusShipped}, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.strict)
			order := h.createOrder(t)

			var err error
			for _, st := range tt.path {
				_, err = h.svc.ChangeStatus(context.Background(), ownerID, order.ID, st)
				if err != nil {
					break
				}
			}
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestChangeStatusNotifiesAndSchedules(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.svc.ChangeStatus(ctx, buyerID, order.ID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.svc.ChangeStatus(ctx, ownerID, order.ID, models.OrderStatusShipped)
	require.NoError(t, err)
	assert.Nil(t, h.store.Job(order.ID))

	h.advance(time.Hour)
	_, err = h.svc.ChangeStatus(ctx, ownerID, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)

	job := h.store.Job(order.ID)
	require.NotNil(t, job)
	assert.Equal(t, h.clock().Add(time.Hour), job.RunAt)

	assert.Equal(t, []models.NotificationKind{
		models.NotificationOrderCreated,
		models.NotificationOrderShipped,
		models.NotificationOrderDelivered,
	}, h.notifier.Kinds(buyerID))
	assert.Equal(t, []string{
		models.EventTypeOrderCreated,
		models.EventTypeOrderShipped,
		models.EventTypeOrderDelivered,
	}, h.publisher.Types())
}

func TestScheduleFailureDoesNotFailDelivery(t *testing.T) {
	h := newHarness(t, false)
	order := h.createOrder(t)
	h.store.FailOn("UpsertAutoConfirmJob", errors.New("db down"))

	delivered, err := h.svc.ChangeStatus(context.Background(), ownerID, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.Nil(t, h.store.Job(order.ID))
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	h := newHarness(t, false)
	h.publisher.Err = errors.New("broker down")

	order := h.createOrder(t)
	_, err := h.svc.ChangeStatus(context.Background(), ownerID, order.ID, models.OrderStatusShipped)
	assert.NoError(t, err)
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	h := newHarness(t, false)
	order := h.createOrder(t)
	h.store.FailOn("TransitionOrderStatus", errors.New("connection reset"))

	_, err := h.svc.ChangeStatus(context.Background(), ownerID, order.ID, models.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.Equal(t, models.OrderStatusPending, h.store.Order(order.ID).Status)
}

func TestConfirmOrderRules(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.svc.ConfirmOrder(ctx, ownerID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.svc.ChangeStatus(ctx, ownerID, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)

	_, err = h.svc.ConfirmOrder(ctx, buyerID, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, h.store.Order(order.ID).SellerConfirmed)
}

func TestGetOrderDetails(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	order := h.createOrder(t)

	for _, actor := range []int64{buyerID, ownerID} {
		details, err := h.svc.GetOrderDetails(ctx, actor, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.ID, details.Order.ID)
		assert.Len(t, details.Order.Items, 2)
		assert.Equal(t, "Corner Shop", details.Store.Name)
		require.NotNil(t, details.Store.Address)
		assert.Equal(t, "Jakarta", details.Store.Address.City)
	}

	_, err := h.svc.GetOrderDetails(ctx, strangeID, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.svc.GetOrderDetails(ctx, buyerID, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	first := h.createOrder(t)
	h.advance(time.Minute)
	second := h.createOrder(t)
	_, err := h.svc.ChangeStatus(ctx, ownerID, second.ID, models.OrderStatusShipped)
	require.NoError(t, err)

	asBuyer, err := h.svc.ListOrders(ctx, buyerID, RoleBuyer, "")
	require.NoError(t, err)
	require.Len(t, asBuyer, 2)
	assert.Equal(t, second.ID, asBuyer[0].ID, "newest first")
	assert.Equal(t, first.ID, asBuyer[1].ID)

	shipped, err := h.svc.ListOrders(ctx, ownerID, RoleSeller, "shipped")
	require.NoError(t, err)
	require.Len(t, shipped, 1)
	assert.Equal(t, second.ID, shipped[0].ID)

	none, err := h.svc.ListOrders(ctx, strangeID, RoleSeller, "")
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)

	_, err = h.svc.ListOrders(ctx, buyerID, RoleBuyer, "lost")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.svc.ListOrders(ctx, buyerID, Role("courier"), "")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = h.svc.ListOrders(ctx, 0, RoleBuyer, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMarkReviewed(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	order := h.createOrder(t)

	_, err := h.svc.MarkReviewed(ctx, buyerID, order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.svc.ChangeStatus(ctx, ownerID, order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)

	_, err = h.svc.MarkReviewed(ctx, ownerID, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	reviewed, err := h.svc.MarkReviewed(ctx, buyerID, order.ID)
	require.NoError(t, err)
	assert.True(t, reviewed.Reviewed)

	again, err := h.svc.MarkReviewed(ctx, buyerID, order.ID)
	require.NoError(t, err)
	assert.True(t, again.Reviewed)
	assert.True(t, h.store.Order(order.ID).Reviewed)
}
