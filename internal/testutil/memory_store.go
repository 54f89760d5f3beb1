// Package testutil provides in-memory stand-ins for the Postgres store and
// the Kafka-backed emitters, used by service, scheduler, worker and api tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/store"
)

// MemoryStore mirrors the conditional-update semantics of store.Store.
type MemoryStore struct {
	mu            sync.Mutex
	nextID        int64
	orders        map[int64]*models.Order
	stores        map[int64]*models.Store
	products      map[int64]*models.Product
	credited      map[int64]bool
	jobs          map[int64]*models.AutoConfirmJob
	notifications map[string]models.Notification
	errs          map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:        make(map[int64]*models.Order),
		stores:        make(map[int64]*models.Store),
		products:      make(map[int64]*models.Product),
		credited:      make(map[int64]bool),
		jobs:          make(map[int64]*models.AutoConfirmJob),
		notifications: make(map[string]models.Notification),
		errs:          make(map[string]error),
	}
}

// FailOn makes every call to method return err until cleared with a nil err.
func (m *MemoryStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, method)
		return
	}
	m.errs[method] = err
}

func (m *MemoryStore) fail(method string) error {
	return m.errs[method]
}

func (m *MemoryStore) AddStore(st models.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[st.ID] = &st
}

func (m *MemoryStore) AddProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = &p
}

// PutOrder stores a copy of o as is, assigning an id when missing.
func (m *MemoryStore) PutOrder(o models.Order) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		m.nextID++
		o.ID = m.nextID
	} else if o.ID > m.nextID {
		m.nextID = o.ID
	}
	m.orders[o.ID] = copyOrder(&o)
	return o.ID
}

// Order returns a snapshot of an order, or nil.
func (m *MemoryStore) Order(id int64) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		return copyOrder(o)
	}
	return nil
}

// SoldCount returns the sold counter of a product.
func (m *MemoryStore) SoldCount(productID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[productID]; ok {
		return p.SoldCount
	}
	return 0
}

// Job returns a snapshot of the job for an order, or nil.
func (m *MemoryStore) Job(orderID int64) *models.AutoConfirmJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[orderID]; ok {
		cp := *j
		return &cp
	}
	return nil
}

func (m *MemoryStore) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func copyOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

func notFound(id int64) error {
	return fmt.Errorf("order %d: %w", id, store.ErrNotFound)
}

func (m *MemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateOrder"); err != nil {
		return err
	}
	for _, o := range m.orders {
		if o.IdempotencyKey == order.IdempotencyKey {
			return fmt.Errorf("idempotency key %q: %w", order.IdempotencyKey, store.ErrDuplicate)
		}
	}
	m.nextID++
	order.ID = m.nextID
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	m.orders[order.ID] = copyOrder(order)
	return nil
}

func (m *MemoryStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("GetOrderByID"); err != nil {
		return nil, err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, notFound(id)
	}
	return copyOrder(o), nil
}

func (m *MemoryStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			return copyOrder(o), nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) conditional(id int64, ok func(*models.Order) bool, apply func(*models.Order)) error {
	o, exists := m.orders[id]
	if !exists {
		return notFound(id)
	}
	if !ok(o) {
		return fmt.Errorf("order %d: %w", id, store.ErrConflict)
	}
	apply(o)
	return nil
}

func (m *MemoryStore) TransitionOrderStatus(_ context.Context, id int64, from, to models.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("TransitionOrderStatus"); err != nil {
		return err
	}
	return m.conditional(id,
		func(o *models.Order) bool { return o.Status == from },
		func(o *models.Order) {
			o.Status = to
			o.UpdatedAt = at
		})
}

func (m *MemoryStore) CancelOrder(_ context.Context, id int64, from models.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CancelOrder"); err != nil {
		return err
	}
	return m.conditional(id,
		func(o *models.Order) bool { return o.Status == from },
		func(o *models.Order) {
			o.Status = models.OrderStatusCancelled
			o.CancelledAt = &at
			o.UpdatedAt = at
		})
}

func (m *MemoryStore) ConfirmOrder(_ context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ConfirmOrder"); err != nil {
		return false, err
	}
	o, ok := m.orders[id]
	if !ok || o.Status != models.OrderStatusDelivered || o.SellerConfirmed {
		return false, nil
	}
	o.SellerConfirmed = true
	o.UpdatedAt = at
	return true, nil
}

func (m *MemoryStore) MarkReviewed(_ context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != models.OrderStatusDelivered || o.Reviewed {
		return false, nil
	}
	o.Reviewed = true
	o.UpdatedAt = at
	return true, nil
}

func (m *MemoryStore) ListOrders(_ context.Context, filter models.OrderFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("ListOrders"); err != nil {
		return nil, err
	}

	var list []models.Order
	for _, o := range m.orders {
		if filter.BuyerID != 0 && o.BuyerID != filter.BuyerID {
			continue
		}
		if filter.StoreOwnerID != 0 {
			st, ok := m.stores[o.StoreID]
			if !ok || st.OwnerID != filter.StoreOwnerID {
				continue
			}
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		list = append(list, *copyOrder(o))
	}

	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if filter.Limit > 0 && len(list) > filter.Limit {
		list = list[:filter.Limit]
	}
	return list, nil
}

func (m *MemoryStore) GetStoreByID(_ context.Context, id int64) (*models.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stores[id]
	if !ok {
		return nil, fmt.Errorf("store %d: %w", id, store.ErrNotFound)
	}
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) GetProducts(_ context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		list = append(list, *p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (m *MemoryStore) CreditSold(_ context.Context, orderID int64, items []models.OrderItem, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreditSold"); err != nil {
		return false, err
	}
	if m.credited[orderID] {
		return false, nil
	}
	m.credited[orderID] = true
	for _, item := range items {
		p, ok := m.products[item.ProductID]
		if !ok {
			p = &models.Product{ID: item.ProductID}
			m.products[item.ProductID] = p
		}
		p.SoldCount += int64(item.Quantity)
	}
	return true, nil
}

func (m *MemoryStore) UpsertAutoConfirmJob(_ context.Context, orderID int64, runAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UpsertAutoConfirmJob"); err != nil {
		return err
	}
	if j, ok := m.jobs[orderID]; ok {
		j.RunAt = runAt
		j.Attempts = 0
		j.LastError = ""
		return nil
	}
	m.jobs[orderID] = &models.AutoConfirmJob{OrderID: orderID, RunAt: runAt, CreatedAt: now}
	return nil
}

func (m *MemoryStore) DeleteAutoConfirmJob(_ context.Context, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteAutoConfirmJob"); err != nil {
		return err
	}
	delete(m.jobs, orderID)
	return nil
}

func (m *MemoryStore) DueAutoConfirmJobs(_ context.Context, now time.Time, limit int) ([]models.AutoConfirmJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DueAutoConfirmJobs"); err != nil {
		return nil, err
	}
	var due []models.AutoConfirmJob
	for _, j := range m.jobs {
		if !j.RunAt.After(now) {
			due = append(due, *j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		if !due[i].RunAt.Equal(due[k].RunAt) {
			return due[i].RunAt.Before(due[k].RunAt)
		}
		return due[i].OrderID < due[k].OrderID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryStore) RecordAutoConfirmFailure(_ context.Context, orderID int64, reason string, retryAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RecordAutoConfirmFailure"); err != nil {
		return err
	}
	if j, ok := m.jobs[orderID]; ok {
		j.Attempts++
		j.LastError = reason
		j.RunAt = retryAt
	}
	return nil
}

func (m *MemoryStore) BackfillAutoConfirmJobs(_ context.Context, delay time.Duration, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("BackfillAutoConfirmJobs"); err != nil {
		return 0, err
	}
	var created int64
	for id, o := range m.orders {
		if o.Status != models.OrderStatusDelivered || (o.SellerConfirmed && m.credited[id]) {
			continue
		}
		if _, ok := m.jobs[id]; ok {
			continue
		}
		runAt := o.UpdatedAt.Add(delay)
		if o.SellerConfirmed {
			runAt = now
		}
		m.jobs[id] = &models.AutoConfirmJob{OrderID: id, RunAt: runAt, CreatedAt: now}
		created++
	}
	return created, nil
}

func (m *MemoryStore) CountAutoConfirmJobs(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.jobs)), nil
}

func (m *MemoryStore) InsertNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("InsertNotification"); err != nil {
		return err
	}
	if _, ok := m.notifications[n.EventID]; ok {
		return nil
	}
	cp := *n
	cp.ID = int64(len(m.notifications) + 1)
	m.notifications[n.EventID] = cp
	return nil
}

func (m *MemoryStore) ListNotifications(_ context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Notification
	for _, n := range m.notifications {
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemoryStore) MarkNotificationsRead(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			t := at
			n.ReadAt = &t
			m.notifications[id] = n
		}
	}
	return nil
}
