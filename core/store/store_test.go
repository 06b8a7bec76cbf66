package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgforge/pkgforge/core/store"
)

func TestLocalStore_PutThenGet(t *testing.T) {
	s := store.NewLocalStore("staging", t.TempDir())
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "libfoo-1.0.tar.zst")
	require.NoError(t, err)
	assert.False(t, ok)

	path, err := s.Put(ctx, "libfoo-1.0.tar.zst", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "libfoo-1.0.tar.zst", path.Name())
	assert.True(t, path.InStore("staging"))
	assert.False(t, path.InStore("release"))

	got, ok, err := s.Get(ctx, "libfoo-1.0.tar.zst")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "libfoo-1.0.tar.zst", got.Name())
}

func TestLocalStore_DedupByContent(t *testing.T) {
	s := store.NewLocalStore("staging", t.TempDir())
	ctx := context.Background()

	_, err := s.Put(ctx, "a", strings.NewReader("same bytes"))
	require.NoError(t, err)
	_, err = s.Put(ctx, "b", strings.NewReader("same bytes"))
	require.NoError(t, err)

	a, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	b, ok, err := s.Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "a", a.Name())
	assert.Equal(t, "b", b.Name())
}

// TestLocalStore_GetLockedUnderHeldRLock guards against the recursive-RLock deadlock: a caller
// bracketing a multi-step query with RLock/RUnlock (as the reuse oracle does) must be able to
// look up entries via GetLocked without Get's own RLock ever entering the picture.
func TestLocalStore_GetLockedUnderHeldRLock(t *testing.T) {
	s := store.NewLocalStore("staging", t.TempDir())
	ctx := context.Background()

	_, err := s.Put(ctx, "libfoo-1.0.tar.zst", strings.NewReader("payload"))
	require.NoError(t, err)

	s.RLock()
	defer s.RUnlock()

	got, ok, err := s.GetLocked(ctx, "libfoo-1.0.tar.zst")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "libfoo-1.0.tar.zst", got.Name())

	_, ok, err = s.GetLocked(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
