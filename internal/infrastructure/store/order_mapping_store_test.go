package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/domain/integration"
)

func newTestOrderStore(t *testing.T) *OrderMappingStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order-mappings.json")
	return NewOrderMappingStore(OrderMappingStoreConfig{Path: path}, zap.NewNop())
}

func TestOrderMappingStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Save then get", func(t *testing.T) {
		s := newTestOrderStore(t)
		require.NoError(t, s.Save(ctx, "EXT-1", "INT-1"))

		internalID, ok, err := s.Get(ctx, "EXT-1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "INT-1", internalID)
	})

	t.Run("Get on missing file returns miss", func(t *testing.T) {
		s := newTestOrderStore(t)
		internalID, ok, err := s.Get(ctx, "EXT-404")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, internalID)
	})

	t.Run("Exists", func(t *testing.T) {
		s := newTestOrderStore(t)
		require.NoError(t, s.Save(ctx, "EXT-1", "INT-1"))

		ok, err := s.Exists(ctx, "EXT-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Exists(ctx, "EXT-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Invalid ids rejected", func(t *testing.T) {
		s := newTestOrderStore(t)
		assert.Error(t, s.Save(ctx, "", "INT-1"))
		assert.Error(t, s.Save(ctx, "EXT-1", " "))
	})
}

func TestOrderMappingStore_UpsertSemantics(t *testing.T) {
	ctx := context.Background()
	s := newTestOrderStore(t)

	require.NoError(t, s.Save(ctx, "EXT-1", "INT-1"))
	require.NoError(t, s.Save(ctx, "EXT-2", "INT-2"))
	require.NoError(t, s.Save(ctx, "EXT-1", "INT-1b"))

	// No duplicate record was appended.
	mappings, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	// First record updated in place, with UpdatedAt set.
	var first integration.OrderMapping
	for _, m := range mappings {
		if m.ExternalOrderID == "EXT-1" {
			first = m
		}
	}
	assert.Equal(t, "INT-1b", first.InternalOrderID)
	require.NotNil(t, first.UpdatedAt)
	assert.False(t, first.CreatedAt.IsZero())
	assert.True(t, first.UpdatedAt.After(first.CreatedAt) || first.UpdatedAt.Equal(first.CreatedAt))
}

func TestOrderMappingStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "order-mappings.json")
	s := NewOrderMappingStore(OrderMappingStoreConfig{Path: path}, zap.NewNop())
	require.NoError(t, os.WriteFile(path, []byte("[broken"), 0o644))

	_, _, err := s.Get(ctx, "EXT-1")
	assert.ErrorIs(t, err, integration.ErrMappingFileCorrupt)
}

func TestOrderMappingStore_LockContention(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "order-mappings.json")
	s := NewOrderMappingStore(OrderMappingStoreConfig{
		Path:             path,
		LockPollInterval: 5 * time.Millisecond,
		LockTimeout:      50 * time.Millisecond,
	}, zap.NewNop())

	require.NoError(t, os.WriteFile(path+".lock", []byte("held"), 0o644))
	defer os.Remove(path + ".lock")

	err := s.Save(ctx, "EXT-1", "INT-1")
	assert.ErrorIs(t, err, integration.ErrLockTimeout)
}
