// Package integration contains the application services of the
// synchronization engine: the mapping facade and the stock and order
// synchronizers.
package integration

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/infrastructure/store"
	"github.com/erp/channelsync/internal/infrastructure/telemetry"
)

// Lookup direction attribute values.
const (
	directionInternalToExternal = "internal_to_external"
	directionExternalToInternal = "external_to_internal"
)

// Mapper is the facade over the product and order mapping stores. Lookups of
// absent or malformed ids are not error conditions: they return a miss and
// are logged at debug level, with a hit/miss counter emitted for both
// outcomes.
type Mapper struct {
	products *store.MappingStore
	orders   *store.OrderMappingStore
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
}

// NewMapper creates a Mapper. metrics may be nil.
func NewMapper(
	products *store.MappingStore,
	orders *store.OrderMappingStore,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{
		products: products,
		orders:   orders,
		metrics:  metrics,
		logger:   logger,
	}
}

// LoadMappings loads the product mapping table from disk and returns the
// number of valid mappings. Load failures propagate to the caller; on the
// startup path they are fatal.
func (m *Mapper) LoadMappings(ctx context.Context) (int, error) {
	count, err := m.products.Load(ctx)
	if err != nil {
		return 0, err
	}
	m.metrics.RecordMappingCount(ctx, count)
	return count, nil
}

// MapInternalToExternal resolves an internal product id to its external one.
func (m *Mapper) MapInternalToExternal(ctx context.Context, internalID string) (string, bool) {
	if strings.TrimSpace(internalID) == "" {
		m.logger.Debug("Mapping lookup with empty internal id")
		m.metrics.RecordLookup(ctx, directionInternalToExternal, false)
		return "", false
	}
	externalID, ok, err := m.products.ExternalID(internalID)
	if err != nil {
		m.logger.Error("Mapping lookup before load", zap.Error(err))
		m.metrics.RecordLookup(ctx, directionInternalToExternal, false)
		return "", false
	}
	if !ok {
		m.logger.Debug("No external id for internal id", zap.String("internal_id", internalID))
	}
	m.metrics.RecordLookup(ctx, directionInternalToExternal, ok)
	return externalID, ok
}

// MapExternalToInternal resolves an external product id to its internal one.
func (m *Mapper) MapExternalToInternal(ctx context.Context, externalID string) (string, bool) {
	if strings.TrimSpace(externalID) == "" {
		m.logger.Debug("Mapping lookup with empty external id")
		m.metrics.RecordLookup(ctx, directionExternalToInternal, false)
		return "", false
	}
	internalID, ok, err := m.products.InternalID(externalID)
	if err != nil {
		m.logger.Error("Mapping lookup before load", zap.Error(err))
		m.metrics.RecordLookup(ctx, directionExternalToInternal, false)
		return "", false
	}
	if !ok {
		m.logger.Debug("No internal id for external id", zap.String("external_id", externalID))
	}
	m.metrics.RecordLookup(ctx, directionExternalToInternal, ok)
	return internalID, ok
}

// SaveOrderMapping persists an external-to-internal order id mapping.
func (m *Mapper) SaveOrderMapping(ctx context.Context, externalOrderID, internalOrderID string) error {
	return m.orders.Save(ctx, externalOrderID, internalOrderID)
}

// InternalOrderID resolves a previously persisted order mapping.
func (m *Mapper) InternalOrderID(ctx context.Context, externalOrderID string) (string, bool, error) {
	return m.orders.Get(ctx, externalOrderID)
}

// ListInternalIDs returns all mapped internal product ids.
func (m *Mapper) ListInternalIDs() ([]string, error) {
	return m.products.InternalIDs()
}

// ListExternalIDs returns all mapped external product ids.
func (m *Mapper) ListExternalIDs() ([]string, error) {
	return m.products.ExternalIDs()
}

// MappingCount returns the number of loaded product mappings.
func (m *Mapper) MappingCount() int {
	return m.products.Count()
}
