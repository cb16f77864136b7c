package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/channelsync/internal/domain/integration"
)

func TestFileLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	lock := newFileLock(path, 5*time.Millisecond, 100*time.Millisecond)

	require.NoError(t, lock.Acquire(ctx))

	// Lock file exists while held.
	_, err := os.Stat(path + ".lock")
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestFileLock_TimesOutWhenHeld(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	holder := newFileLock(path, 5*time.Millisecond, 100*time.Millisecond)
	require.NoError(t, holder.Acquire(ctx))
	defer holder.Release()

	waiter := newFileLock(path, 5*time.Millisecond, 50*time.Millisecond)
	start := time.Now()
	err := waiter.Acquire(ctx)
	assert.ErrorIs(t, err, integration.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFileLock_AcquireAfterRelease(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")

	first := newFileLock(path, 5*time.Millisecond, 100*time.Millisecond)
	require.NoError(t, first.Acquire(ctx))
	require.NoError(t, first.Release())

	second := newFileLock(path, 5*time.Millisecond, 100*time.Millisecond)
	require.NoError(t, second.Acquire(ctx))
	require.NoError(t, second.Release())
}

func TestFileLock_ContextCancellation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")

	holder := newFileLock(path, 5*time.Millisecond, time.Second)
	require.NoError(t, holder.Acquire(context.Background()))
	defer holder.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	waiter := newFileLock(path, 5*time.Millisecond, time.Second)
	err := waiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileLock_ReleaseWithoutAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	lock := newFileLock(path, 0, 0)
	assert.NoError(t, lock.Release())
}
