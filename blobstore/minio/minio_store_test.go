package minio

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripdb/blobstore"
)

func TestStore_Keys(t *testing.T) {
	s := NewStore(nil, "trips", "/datasets/")
	assert.Equal(t, "datasets/2020/jan.csv", s.key("2020/jan.csv"))
	assert.Equal(t, "2020/jan.csv", s.name("datasets/2020/jan.csv"))

	bare := NewStore(nil, "trips", "")
	assert.Equal(t, "jan.csv", bare.key("jan.csv"))
	assert.Equal(t, "jan.csv", bare.name("jan.csv"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("out/result.csv"))
	assert.Equal(t, "application/zstd", contentType("trips.csv.zst"))
	assert.Equal(t, "application/octet-stream", contentType("trips"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.ErrorIs(t, NewStore(nil, "b", "").wrap("open", "x", minio.ErrorResponse{Code: "NotFound"}), blobstore.ErrNotFound)
}

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	const bucket = "test-tripdb"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")
	data := []byte("index,total_amount\n1,12.50\n")
	require.NoError(t, store.Put(ctx, "trips.csv", data))

	blob, err := store.Open(ctx, "trips.csv")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, len(data))
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "total", string(part))
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, names, "trips.csv")

	wb, err := store.Create(ctx, "out/result.csv")
	require.NoError(t, err)
	_, err = wb.Write([]byte("streamed"))
	require.NoError(t, err)
	require.NoError(t, wb.Close())
	require.NoError(t, wb.Close())

	blob, err = store.Open(ctx, "out/result.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(8), blob.Size())

	for _, name := range []string{"trips.csv", "out/result.csv"} {
		require.NoError(t, store.Delete(ctx, name))
		_, err = store.Open(ctx, name)
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	}
}
