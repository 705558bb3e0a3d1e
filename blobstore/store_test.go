package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]BlobStore {
	return map[string]BlobStore{
		"local":  NewLocalStore(t.TempDir()),
		"memory": NewMemoryStore(),
	}
}

func TestBlobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	data := []byte("VendorID,total_amount\n1,12.5\n")

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, Put(ctx, store, "raw/trips.csv", data))

			blob, err := store.Open(ctx, "raw/trips.csv")
			require.NoError(t, err)
			defer blob.Close()
			assert.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err := blob.ReadAt(ctx, buf, 9)
			require.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "total", string(buf))

			rr, err := blob.ReadRange(ctx, 22, 1000)
			require.NoError(t, err)
			part, err := io.ReadAll(rr)
			require.NoError(t, err)
			require.NoError(t, rr.Close())
			assert.Equal(t, "1,12.5\n", string(part))

			r, err := NewReader(ctx, blob)
			require.NoError(t, err)
			all, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, data, all)

			require.NoError(t, Put(ctx, store, "raw/other.csv", nil))
			require.NoError(t, Put(ctx, store, "out.csv", []byte("x")))

			names, err := store.List(ctx, "raw/")
			require.NoError(t, err)
			assert.Equal(t, []string{"raw/other.csv", "raw/trips.csv"}, names)

			require.NoError(t, store.Delete(ctx, "raw/other.csv"))
			require.NoError(t, store.Delete(ctx, "raw/other.csv"))
			_, err = store.Open(ctx, "raw/other.csv")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBlobStore_EmptyBlob(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, Put(ctx, store, "empty.csv", nil))

			blob, err := store.Open(ctx, "empty.csv")
			require.NoError(t, err)
			defer blob.Close()

			r, err := NewReader(ctx, blob)
			require.NoError(t, err)
			all, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestLocalStore_CreateIsAtomic(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store := NewLocalStore(root)

	w, err := store.Create(ctx, "result.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	_, err = os.Stat(filepath.Join(root, "result.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, w.Close())
	got, err := os.ReadFile(filepath.Join(root, "result.csv"))
	require.NoError(t, err)
	assert.Equal(t, "partial", string(got))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"result.csv"}, names)
}

func TestLocalStore_Mappable(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, Put(ctx, store, "a", []byte("abc")))

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer blob.Close()

	m, ok := blob.(Mappable)
	require.True(t, ok)
	b, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "missing"))
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemoryStore_SetGet(t *testing.T) {
	m := NewMemoryStore()
	src := []byte("abc")
	m.Set("k", src)
	src[0] = 'z'

	got, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemoryStore_Snapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set("trips.csv", []byte("v1"))

	blob, err := store.Open(ctx, "trips.csv")
	require.NoError(t, err)

	w, err := store.Create(ctx, "trips.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("v2"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)

	b, err := blob.(Mappable).Bytes()
	require.NoError(t, err)
	assert.Equal(t, "v1", string(b), "open blobs keep their content")

	got, ok := store.Get("trips.csv")
	require.True(t, ok)
	assert.Equal(t, "v2", string(got))

	_, err = store.Open(ctx, "missing.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
