package service

import (
	"context"
	"fmt"
	"time"

	"order-lifecycle/internal/models"
	"order-lifecycle/internal/util"

	"go.uber.org/zap"
)

// SoldLedger is the durable, exactly-once sold-counter credit.
type SoldLedger interface {
	CreditSold(ctx context.Context, orderID int64, items []models.OrderItem, at time.Time) (bool, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// SoldCache mirrors sold counters for fast reads.
type SoldCache interface {
	IncrementSold(ctx context.Context, productID int64, quantity int) error
	SetSold(ctx context.Context, productID int64, sold int64) error
	GetSold(ctx context.Context, productID int64) (int64, error)
}

// InventoryClient handles sold-counter accounting
type InventoryClient struct {
	ledger SoldLedger
	cache  SoldCache
	clock  util.Clock
	logger *zap.Logger
}

// NewInventoryClient creates a new inventory client. cache may be nil.
func NewInventoryClient(ledger SoldLedger, cache SoldCache, clock util.Clock) *InventoryClient {
	if clock == nil {
		clock = util.NewClock(time.UTC)
	}
	return &InventoryClient{
		ledger: ledger,
		cache:  cache,
		clock:  clock,
		logger: util.GetLogger(),
	}
}

// CreditSold increments every line item's product sold counter by its
// quantity, once per order. It reports whether this call did the credit.
func (ic *InventoryClient) CreditSold(ctx context.Context, orderID int64, items []models.OrderItem) (bool, error) {
	ctx, span := util.StartOrderSpan(ctx, "InventoryClient.CreditSold", orderID)
	defer span.End()

	credited, err := ic.ledger.CreditSold(ctx, orderID, items, ic.clock())
	if err != nil {
		util.RecordError(span, err)
		return false, err
	}
	if !credited {
		ic.logger.Debug("Order already credited", zap.Int64("order_id", orderID))
		return false, nil
	}

	if ic.cache != nil {
		for _, item := range items {
			if err := ic.cache.IncrementSold(ctx, item.ProductID, item.Quantity); err != nil {
				ic.logger.Error("Failed to mirror sold counter to Redis",
					zap.Int64("order_id", orderID),
					zap.Int64("product_id", item.ProductID),
					zap.Error(err))
			}
		}
	}

	ic.logger.Info("Sold counters credited",
		zap.Int64("order_id", orderID),
		zap.Int("items", len(items)))
	return true, nil
}

// SyncSoldCountersToRedis rewrites cached counters that drifted from the
// database values.
func (ic *InventoryClient) SyncSoldCountersToRedis(ctx context.Context) error {
	if ic.cache == nil {
		return nil
	}
	ic.logger.Info("Starting sold counter sync to Redis")

	products, err := ic.ledger.GetProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to get products: %w", err)
	}

	repaired := 0
	for _, product := range products {
		cached, err := ic.cache.GetSold(ctx, product.ID)
		if err == nil && cached == product.SoldCount {
			continue
		}
		if err != nil {
			ic.logger.Warn("Failed to read Redis sold counter",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		} else if cached != 0 {
			ic.logger.Warn("Redis sold counter drifted",
				zap.Int64("product_id", product.ID),
				zap.Int64("cached", cached),
				zap.Int64("stored", product.SoldCount))
		}

		if err := ic.cache.SetSold(ctx, product.ID, product.SoldCount); err != nil {
			ic.logger.Error("Failed to init Redis sold counter",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
			continue
		}
		repaired++
	}

	ic.logger.Info("Sold counter sync completed",
		zap.Int("count", len(products)),
		zap.Int("repaired", repaired))
	return nil
}
