package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBlobStore(t *testing.T, bs BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, bs.Put(ctx, "snap.bin", strings.NewReader("payload")))

		rc, err := bs.Get(ctx, "snap.bin")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, bs.Put(ctx, "snap.bin", strings.NewReader("v2")))

		rc, err := bs.Get(ctx, "snap.bin")
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("NestedName", func(t *testing.T) {
		require.NoError(t, bs.Put(ctx, "snapshots/2026/latest.bin", strings.NewReader("x")))

		rc, err := bs.Get(ctx, "snapshots/2026/latest.bin")
		require.NoError(t, err)
		rc.Close()
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := bs.Get(ctx, "missing.bin")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, bs.Put(ctx, "gone.bin", strings.NewReader("x")))
		require.NoError(t, bs.Delete(ctx, "gone.bin"))

		_, err := bs.Get(ctx, "gone.bin")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := bs.Delete(ctx, "missing.bin")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		assert.Error(t, bs.Put(cancelled, "x", strings.NewReader("x")))
		_, err := bs.Get(cancelled, "x")
		assert.Error(t, err)
	})
}

func TestMemory(t *testing.T) {
	bs := NewMemory()
	testBlobStore(t, bs)

	assert.Equal(t, 2, bs.Len())
}

func TestLocal(t *testing.T) {
	bs, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	testBlobStore(t, bs)
}

func TestLocal_PathTraversal(t *testing.T) {
	root := t.TempDir()
	bs, err := NewLocal(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bs.Put(ctx, "../escape.bin", strings.NewReader("x")))

	// The name is confined to the root; the traversal is stripped.
	rc, err := bs.Get(ctx, "escape.bin")
	require.NoError(t, err)
	rc.Close()
}
