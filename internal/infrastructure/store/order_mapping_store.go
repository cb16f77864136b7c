package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
)

// orderMappingDocument is the on-disk shape of the order mapping log. It is
// an array rather than a map so upserts scan in insertion order.
type orderMappingDocument struct {
	Mappings []integration.OrderMapping `json:"mappings"`
}

// OrderMappingStoreConfig holds the tunables of an OrderMappingStore.
type OrderMappingStoreConfig struct {
	Path             string
	LockPollInterval time.Duration
	LockTimeout      time.Duration
}

// OrderMappingStore persists external-order-id -> internal-order-id records.
// Volumes are small, so reads go straight to disk and no index is kept; if
// throughput grew this would need the cached-index design of MappingStore.
type OrderMappingStore struct {
	path   string
	lock   *fileLock
	logger *zap.Logger
}

// NewOrderMappingStore creates an OrderMappingStore for the given file path.
func NewOrderMappingStore(cfg OrderMappingStoreConfig, logger *zap.Logger) *OrderMappingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderMappingStore{
		path:   cfg.Path,
		lock:   newFileLock(cfg.Path, cfg.LockPollInterval, cfg.LockTimeout),
		logger: logger,
	}
}

// Save upserts a record keyed by externalOrderID under the file lock. An
// existing record gets its internal order id and UpdatedAt refreshed; a new
// one is appended with CreatedAt set.
func (s *OrderMappingStore) Save(ctx context.Context, externalOrderID, internalOrderID string) error {
	mapping := integration.OrderMapping{
		ExternalOrderID: externalOrderID,
		InternalOrderID: internalOrderID,
	}
	if err := mapping.Validate(); err != nil {
		return fmt.Errorf("invalid order mapping %q -> %q: %w", externalOrderID, internalOrderID, err)
	}

	if err := s.lock.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("Failed to release order mapping file lock", zap.Error(err))
		}
	}()

	doc, err := s.read()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updated := false
	for i := range doc.Mappings {
		if doc.Mappings[i].ExternalOrderID == externalOrderID {
			doc.Mappings[i].InternalOrderID = internalOrderID
			doc.Mappings[i].UpdatedAt = &now
			updated = true
			break
		}
	}
	if !updated {
		doc.Mappings = append(doc.Mappings, integration.OrderMapping{
			ExternalOrderID: externalOrderID,
			InternalOrderID: internalOrderID,
			CreatedAt:       now,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal order mapping document: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	s.logger.Debug("Order mapping saved",
		zap.String("external_order_id", externalOrderID),
		zap.String("internal_order_id", internalOrderID),
		zap.Bool("updated", updated),
	)
	return nil
}

// Get returns the internal order id for an external one. The second return
// is false when no record exists.
func (s *OrderMappingStore) Get(ctx context.Context, externalOrderID string) (string, bool, error) {
	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	for _, m := range doc.Mappings {
		if m.ExternalOrderID == externalOrderID {
			return m.InternalOrderID, true, nil
		}
	}
	return "", false, nil
}

// Exists reports whether a record for the external order id is present.
func (s *OrderMappingStore) Exists(ctx context.Context, externalOrderID string) (bool, error) {
	_, ok, err := s.Get(ctx, externalOrderID)
	return ok, err
}

// List returns all persisted order mappings in insertion order.
func (s *OrderMappingStore) List(ctx context.Context) ([]integration.OrderMapping, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Mappings, nil
}

func (s *OrderMappingStore) read() (orderMappingDocument, error) {
	doc := orderMappingDocument{Mappings: []integration.OrderMapping{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("read order mapping file %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("%w: %s: %v", integration.ErrMappingFileCorrupt, s.path, err)
	}
	if doc.Mappings == nil {
		doc.Mappings = []integration.OrderMapping{}
	}
	return doc, nil
}
