package integration

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Gateway Ports
// ---------------------------------------------------------------------------

// InventoryGateway is the outbound port to the upstream inventory system.
type InventoryGateway interface {
	// GetStock returns the current stock level for an internal product id.
	GetStock(ctx context.Context, internalID string) (StockLevel, error)

	// CreateOrder creates an order from the translated draft, reserving the
	// ordered quantities, and returns the new internal order id.
	CreateOrder(ctx context.Context, draft OrderDraft) (string, error)

	// CreateShipment records a shipment for a previously created order.
	CreateShipment(ctx context.Context, internalOrderID string) error
}

// MarketplaceGateway is the outbound port to the downstream marketplace.
type MarketplaceGateway interface {
	// FetchOrders returns all orders currently in the given status.
	FetchOrders(ctx context.Context, status OrderStatus) ([]MarketplaceOrder, error)

	// PushStock pushes stock updates to the marketplace. Implementations
	// batch large slices transparently.
	PushStock(ctx context.Context, updates []StockUpdate) error
}

// ---------------------------------------------------------------------------
// Processed-Order Store
// ---------------------------------------------------------------------------

// ProcessedOrderStore remembers which external orders have already been
// handled so a poll does not recreate them. The default implementation is
// in-memory, so this de-dup is best effort across restarts; the order
// mapping store remains the authoritative record.
type ProcessedOrderStore interface {
	// MarkProcessed marks an order as handled with a TTL. It returns true
	// if the order was newly marked, false if it was already present.
	MarkProcessed(ctx context.Context, externalOrderID string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether an order has already been handled.
	IsProcessed(ctx context.Context, externalOrderID string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}
