package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-lifecycle/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `id, buyer_id, store_id, total_price, contact_name, contact_phone, contact_email,
	delivery_address, is_paid, status, seller_confirmed, reviewed, idempotency_key,
	created_at, updated_at, cancelled_at`

const itemColumns = `id, order_id, product_id, quantity, unit_price, name, image_url`

// CreateOrder inserts an order and its line items in one transaction.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (buyer_id, store_id, total_price, contact_name, contact_phone, contact_email,
			delivery_address, is_paid, status, seller_confirmed, reviewed, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	err = tx.GetContext(ctx, &order.ID, query,
		order.BuyerID, order.StoreID, order.TotalPrice, order.ContactName, order.ContactPhone,
		order.ContactEmail, order.DeliveryAddress, order.IsPaid, order.Status, order.SellerConfirmed,
		order.Reviewed, order.IdempotencyKey, order.CreatedAt, order.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("idempotency key %q: %w", order.IdempotencyKey, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, name, image_url)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.Name, item.ImageURL)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order and its items.
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key; nil when absent.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionOrderStatus moves an order from one status to another only if
// it is still in the expected status.
func (s *Store) TransitionOrderStatus(ctx context.Context, id int64, from, to models.OrderStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4",
		to, at, id, from)
	if err != nil {
		return err
	}
	return s.checkConditional(ctx, res, id)
}

// CancelOrder marks an order cancelled if it is still in the expected status.
func (s *Store) CancelOrder(ctx context.Context, id int64, from models.OrderStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, cancelled_at = $2, updated_at = $2 WHERE id = $3 AND status = $4",
		models.OrderStatusCancelled, at, id, from)
	if err != nil {
		return err
	}
	return s.checkConditional(ctx, res, id)
}

// ConfirmOrder sets seller_confirmed only while the order is delivered and
// not yet confirmed. It reports whether this call performed the flip.
func (s *Store) ConfirmOrder(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET seller_confirmed = TRUE, updated_at = $1
		WHERE id = $2 AND status = $3 AND seller_confirmed = FALSE`,
		at, id, models.OrderStatusDelivered)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkReviewed sets reviewed on a delivered order. It reports whether this
// call performed the change.
func (s *Store) MarkReviewed(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET reviewed = TRUE, updated_at = $1
		WHERE id = $2 AND status = $3 AND reviewed = FALSE`,
		at, id, models.OrderStatusDelivered)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOrders retrieves orders for a buyer or a store owner, newest first.
func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	from := "orders o"

	if filter.BuyerID != 0 {
		args = append(args, filter.BuyerID)
		where = append(where, fmt.Sprintf("o.buyer_id = $%d", len(args)))
	}
	if filter.StoreOwnerID != 0 {
		from = "orders o JOIN stores s ON s.id = o.store_id"
		args = append(args, filter.StoreOwnerID)
		where = append(where, fmt.Sprintf("s.owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if len(where) == 0 {
		return nil, fmt.Errorf("order filter requires a buyer or a store owner")
	}

	query := "SELECT " + prefixed("o", orderColumns) + " FROM " + from +
		" WHERE " + strings.Join(where, " AND ") + " ORDER BY o.created_at DESC, o.id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var orders []models.Order
	if err := s.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, err
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.attachItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems loads items for all given orders with a single IN query.
func (s *Store) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In("SELECT "+itemColumns+" FROM order_items WHERE order_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}
	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}

// checkConditional turns a zero-row conditional update into ErrNotFound or ErrConflict.
func (s *Store) checkConditional(ctx context.Context, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", id); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("order %d: %w", id, ErrConflict)
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
