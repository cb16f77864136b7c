package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
)

// mappingFileVersion is written into every persisted mapping document.
const mappingFileVersion = "1.0"

// mappingDocument is the on-disk shape of the product mapping table.
type mappingDocument struct {
	Version     string            `json:"version"`
	LastUpdated time.Time         `json:"lastUpdated"`
	Mappings    map[string]string `json:"mappings"`
}

// MappingStoreConfig holds the tunables of a MappingStore.
type MappingStoreConfig struct {
	Path             string
	LockPollInterval time.Duration
	LockTimeout      time.Duration
}

// MappingStore is the durable bidirectional internal<->external product id
// table. Load populates two in-memory indices wholesale; lookups are pure
// in-memory reads. Save rewrites the file under an exclusive file lock and
// never merges with prior contents.
type MappingStore struct {
	path   string
	lock   *fileLock
	logger *zap.Logger

	mu       sync.RWMutex
	loaded   bool
	forward  map[string]string // internal -> external
	backward map[string]string // external -> internal
}

// NewMappingStore creates a MappingStore for the given file path.
func NewMappingStore(cfg MappingStoreConfig, logger *zap.Logger) *MappingStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingStore{
		path:   cfg.Path,
		lock:   newFileLock(cfg.Path, cfg.LockPollInterval, cfg.LockTimeout),
		logger: logger,
	}
}

// Load reads the persisted table and rebuilds both indices. A missing file is
// not an error: an empty, schema-valid file is created and 0 is returned.
// Invalid records are skipped with a warning; records violating the bijection
// are skipped in favor of the first occurrence. Malformed top-level JSON and
// missing required fields are fatal.
func (s *MappingStore) Load(ctx context.Context) (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("read mapping file %s: %w", s.path, err)
		}
		if err := s.initEmptyFile(ctx); err != nil {
			return 0, err
		}
		s.replaceIndices(nil)
		s.logger.Info("Mapping file absent, created empty table", zap.String("path", s.path))
		return 0, nil
	}

	var doc mappingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", integration.ErrMappingFileCorrupt, s.path, err)
	}
	if doc.Version == "" {
		return 0, fmt.Errorf("%w: missing version field", integration.ErrMappingFileStructure)
	}
	if doc.Mappings == nil {
		return 0, fmt.Errorf("%w: missing mappings field", integration.ErrMappingFileStructure)
	}

	forward := make(map[string]string, len(doc.Mappings))
	backward := make(map[string]string, len(doc.Mappings))
	skipped := 0
	for internalID, externalID := range doc.Mappings {
		mapping := integration.ProductMapping{InternalID: internalID, ExternalID: externalID}
		if !mapping.IsValid() {
			skipped++
			s.logger.Warn("Skipping invalid mapping record",
				zap.String("internal_id", internalID),
				zap.String("external_id", externalID),
			)
			continue
		}
		if existing, ok := backward[externalID]; ok {
			skipped++
			s.logger.Warn("Skipping mapping that breaks bijection",
				zap.String("internal_id", internalID),
				zap.String("external_id", externalID),
				zap.String("mapped_internal_id", existing),
			)
			continue
		}
		forward[internalID] = externalID
		backward[externalID] = internalID
	}

	s.mu.Lock()
	s.forward = forward
	s.backward = backward
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("Mapping table loaded",
		zap.String("path", s.path),
		zap.Int("count", len(forward)),
		zap.Int("skipped", skipped),
	)
	return len(forward), nil
}

// Save atomically replaces the persisted table with the given one and
// refreshes the in-memory indices. The write happens under the exclusive
// file lock; on integration.ErrLockTimeout nothing was written.
func (s *MappingStore) Save(ctx context.Context, mappings map[string]string) error {
	for internalID, externalID := range mappings {
		m := integration.ProductMapping{InternalID: internalID, ExternalID: externalID}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("invalid mapping %q -> %q: %w", internalID, externalID, err)
		}
	}

	doc := mappingDocument{
		Version:     mappingFileVersion,
		LastUpdated: time.Now().UTC(),
		Mappings:    mappings,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mapping document: %w", err)
	}

	if err := s.lock.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("Failed to release mapping file lock", zap.Error(err))
		}
	}()

	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}

	forward := make(map[string]string, len(mappings))
	backward := make(map[string]string, len(mappings))
	for internalID, externalID := range mappings {
		forward[internalID] = externalID
		backward[externalID] = internalID
	}
	s.mu.Lock()
	s.forward = forward
	s.backward = backward
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("Mapping table saved", zap.String("path", s.path), zap.Int("count", len(mappings)))
	return nil
}

// ExternalID looks up the external id for an internal one. The second return
// is false for a miss. Calling before Load is a programming error surfaced
// as integration.ErrStoreNotLoaded.
func (s *MappingStore) ExternalID(internalID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return "", false, integration.ErrStoreNotLoaded
	}
	externalID, ok := s.forward[internalID]
	return externalID, ok, nil
}

// InternalID looks up the internal id for an external one.
func (s *MappingStore) InternalID(externalID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return "", false, integration.ErrStoreNotLoaded
	}
	internalID, ok := s.backward[externalID]
	return internalID, ok, nil
}

// InternalIDs returns a snapshot of all mapped internal ids.
func (s *MappingStore) InternalIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, integration.ErrStoreNotLoaded
	}
	ids := make([]string, 0, len(s.forward))
	for id := range s.forward {
		ids = append(ids, id)
	}
	return ids, nil
}

// ExternalIDs returns a snapshot of all mapped external ids.
func (s *MappingStore) ExternalIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, integration.ErrStoreNotLoaded
	}
	ids := make([]string, 0, len(s.backward))
	for id := range s.backward {
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of loaded mappings.
func (s *MappingStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forward)
}

func (s *MappingStore) initEmptyFile(ctx context.Context) error {
	if err := s.lock.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Error("Failed to release mapping file lock", zap.Error(err))
		}
	}()

	doc := mappingDocument{
		Version:     mappingFileVersion,
		LastUpdated: time.Now().UTC(),
		Mappings:    map[string]string{},
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal empty mapping document: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *MappingStore) replaceIndices(mappings map[string]string) {
	forward := make(map[string]string, len(mappings))
	backward := make(map[string]string, len(mappings))
	for internalID, externalID := range mappings {
		forward[internalID] = externalID
		backward[externalID] = internalID
	}
	s.mu.Lock()
	s.forward = forward
	s.backward = backward
	s.loaded = true
	s.mu.Unlock()
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over the destination, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}
