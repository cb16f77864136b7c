package integration

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/infrastructure/store"
)

// newTestMapper builds a Mapper over real file stores in a temp dir, loaded
// with the given product mapping table.
func newTestMapper(t *testing.T, mappings map[string]string) *Mapper {
	t.Helper()
	dir := t.TempDir()
	products := store.NewMappingStore(store.MappingStoreConfig{
		Path: filepath.Join(dir, "mappings.json"),
	}, zap.NewNop())
	orders := store.NewOrderMappingStore(store.OrderMappingStoreConfig{
		Path: filepath.Join(dir, "order-mappings.json"),
	}, zap.NewNop())

	if mappings == nil {
		mappings = map[string]string{}
	}
	require.NoError(t, products.Save(context.Background(), mappings))

	return NewMapper(products, orders, nil, zap.NewNop())
}

// fakeInventory is a scriptable InventoryGateway.
type fakeInventory struct {
	mu        sync.Mutex
	stock     map[string]domain.StockLevel
	stockErr  map[string]error
	orders    []domain.OrderDraft
	orderErr  error
	nextID    string
	shipments []string
	shipErr   error
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{
		stock:    make(map[string]domain.StockLevel),
		stockErr: make(map[string]error),
		nextID:   "SO-1",
	}
}

func (f *fakeInventory) GetStock(ctx context.Context, internalID string) (domain.StockLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.stockErr[internalID]; err != nil {
		return domain.StockLevel{}, err
	}
	level, ok := f.stock[internalID]
	if !ok {
		return domain.StockLevel{}, errors.New("unknown product " + internalID)
	}
	return level, nil
}

func (f *fakeInventory) CreateOrder(ctx context.Context, draft domain.OrderDraft) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return "", f.orderErr
	}
	f.orders = append(f.orders, draft)
	return f.nextID, nil
}

func (f *fakeInventory) CreateShipment(ctx context.Context, internalOrderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shipErr != nil {
		return f.shipErr
	}
	f.shipments = append(f.shipments, internalOrderID)
	return nil
}

// fakeMarketplace is a scriptable MarketplaceGateway recording pushes.
type fakeMarketplace struct {
	mu       sync.Mutex
	pushes   [][]domain.StockUpdate
	pushErr  error
	orders   map[domain.OrderStatus][]domain.MarketplaceOrder
	fetchErr error
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{orders: make(map[domain.OrderStatus][]domain.MarketplaceOrder)}
}

func (f *fakeMarketplace) FetchOrders(ctx context.Context, status domain.OrderStatus) ([]domain.MarketplaceOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.orders[status], nil
}

func (f *fakeMarketplace) PushStock(ctx context.Context, updates []domain.StockUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushErr != nil {
		return f.pushErr
	}
	f.pushes = append(f.pushes, updates)
	return nil
}

func (f *fakeMarketplace) allPushes() []domain.StockUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []domain.StockUpdate
	for _, batch := range f.pushes {
		all = append(all, batch...)
	}
	return all
}

// fakeProcessedStore is a map-backed ProcessedOrderStore without TTL decay.
type fakeProcessedStore struct {
	mu      sync.Mutex
	entries map[string]bool
}

func newFakeProcessedStore() *fakeProcessedStore {
	return &fakeProcessedStore{entries: make(map[string]bool)}
}

func (f *fakeProcessedStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entries[id] {
		return false, nil
	}
	f.entries[id] = true
	return true, nil
}

func (f *fakeProcessedStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[id], nil
}

func (f *fakeProcessedStore) Close() error { return nil }
