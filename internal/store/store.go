package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-lifecycle/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already opened connection.
func NewStoreWithDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT id, store_id, name, price, sold_count, created_at FROM products ORDER BY id")
	return products, err
}

// CreditSold adds each item's quantity to its product sold counter. The
// sold_credits ledger row makes the credit happen at most once per order;
// it returns false when the order had already been credited.
func (s *Store) CreditSold(ctx context.Context, orderID int64, items []models.OrderItem, at time.Time) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO sold_credits (order_id, credited_at) VALUES ($1, $2) ON CONFLICT (order_id) DO NOTHING",
		orderID, at)
	if err != nil {
		return false, fmt.Errorf("failed to write sold credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx,
			"UPDATE products SET sold_count = sold_count + $1 WHERE id = $2",
			item.Quantity, item.ProductID)
		if err != nil {
			return false, fmt.Errorf("failed to credit product %d: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// GetStoreByID retrieves a store together with its address, if any.
func (s *Store) GetStoreByID(ctx context.Context, id int64) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st,
		"SELECT id, owner_id, name, address_id, created_at FROM stores WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if st.AddressID != nil {
		var addr models.StoreAddress
		err := s.db.GetContext(ctx, &addr,
			`SELECT id, line1, line2, city, state, postal_code, country, latitude, longitude
			 FROM store_addresses WHERE id = $1`, *st.AddressID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, err
		default:
			st.Address = &addr
		}
	}

	return &st, nil
}
