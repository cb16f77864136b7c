// Package cache provides the processed-order de-duplication stores. The
// in-memory store suits a single instance; the Redis store shares state
// across instances.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/channelsync/internal/domain/integration"
)

// cleanupInterval is how often expired markers are swept.
const cleanupInterval = 5 * time.Minute

// entry represents a stored marker with expiration.
type entry struct {
	expiresAt time.Time
}

// InMemoryProcessedOrderStore implements ProcessedOrderStore with a TTL map.
// Markers do not survive a restart; the order mapping store remains the
// durable record, so a restart at worst re-offers already-created orders.
type InMemoryProcessedOrderStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryProcessedOrderStore creates the store and starts a background
// cleanup goroutine for expired markers.
func NewInMemoryProcessedOrderStore() *InMemoryProcessedOrderStore {
	store := &InMemoryProcessedOrderStore{
		entries:  make(map[string]entry),
		stopChan: make(chan struct{}),
	}
	store.wg.Add(1)
	go store.cleanupLoop()
	return store
}

// MarkProcessed marks an order as handled with a TTL. Returns true if the
// marker was newly set, false if it was already present and unexpired.
func (s *InMemoryProcessedOrderStore) MarkProcessed(ctx context.Context, externalOrderID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[externalOrderID]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	s.entries[externalOrderID] = entry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed checks whether an order has an unexpired marker.
func (s *InMemoryProcessedOrderStore) IsProcessed(ctx context.Context, externalOrderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[externalOrderID]
	if !exists {
		return false, nil
	}
	return time.Now().Before(e.expiresAt), nil
}

// Reset drops all markers. Used by the administrative reset endpoint.
func (s *InMemoryProcessedOrderStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryProcessedOrderStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryProcessedOrderStore) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *InMemoryProcessedOrderStore) removeExpired() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}

// Ensure InMemoryProcessedOrderStore implements ProcessedOrderStore.
var _ integration.ProcessedOrderStore = (*InMemoryProcessedOrderStore)(nil)
