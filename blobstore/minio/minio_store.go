package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/tripdb/blobstore"
)

// Store implements blobstore.BlobStore for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore creates a Store on bucket. rootPrefix is prepended to every
// object key (e.g. "datasets/").
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(rootPrefix, "/"),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// name maps an object key back to a blob name.
func (s *Store) name(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/")
}

// contentType labels uploads so exported results open correctly in
// browsers and object consoles.
func contentType(name string) string {
	switch path.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".gz":
		return "application/gzip"
	case ".zst":
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func (s *Store) wrap(op, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("minio %s %s: %w", op, name, blobstore.ErrNotFound)
	}
	return fmt.Errorf("minio %s %s: %w", op, name, err)
}

// Open implements blobstore.BlobStore.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.wrap("open", name, err)
	}
	return &minioBlob{
		store: s,
		name:  name,
		key:   key,
		etag:  info.ETag,
		size:  info.Size,
	}, nil
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType(name)})
	if err != nil {
		return s.wrap("put", name, err)
	}
	return nil
}

// Create implements blobstore.BlobStore. The upload streams while the blob
// is written and the object appears once Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	w := &minioWritableBlob{
		pw:     pw,
		cancel: cancel,
		done:   make(chan error, 1),
	}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, s.key(name), pr, -1,
			minio.PutObjectOptions{ContentType: contentType(name)})
		if err != nil {
			err = s.wrap("upload", name, err)
		}
		_ = pr.CloseWithError(err)
		w.done <- err
	}()

	return w, nil
}

// Delete implements blobstore.BlobStore.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return s.wrap("delete", name, err)
	}
	return nil
}

// List implements blobstore.BlobStore.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	if strings.HasSuffix(prefix, "/") {
		full += "/"
	}

	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    full,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, s.wrap("list", prefix, obj.Err)
		}
		if n := s.name(obj.Key); n != "" {
			names = append(names, n)
		}
	}

	slices.Sort(names)
	return names, nil
}

// minioBlob reads one object version. Range requests are pinned to the
// ETag seen at Open, so a concurrent overwrite fails the read instead of
// mixing two versions of a dataset.
type minioBlob struct {
	store *Store
	name  string
	key   string
	etag  string
	size  int64
}

func (b *minioBlob) Size() int64  { return b.size }
func (b *minioBlob) Close() error { return nil }

func (b *minioBlob) get(ctx context.Context, off, end int64) (*minio.Object, error) {
	opts := minio.GetObjectOptions{}
	if b.etag != "" {
		if err := opts.SetMatchETag(b.etag); err != nil {
			return nil, err
		}
	}
	if err := opts.SetRange(off, end); err != nil {
		return nil, err
	}
	obj, err := b.store.client.GetObject(ctx, b.store.bucket, b.key, opts)
	if err != nil {
		return nil, b.store.wrap("read", b.name, err)
	}
	return obj, nil
}

func (b *minioBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := min(off+int64(len(p)), b.size) - 1

	obj, err := b.get(ctx, off, end)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:end-off+1])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

func (b *minioBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= b.size || length <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	end := min(off+length, b.size) - 1
	obj, err := b.get(ctx, off, end)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

type minioWritableBlob struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	done   chan error

	once sync.Once
	err  error
}

var errAborted = errors.New("minio: upload aborted")

func (w *minioWritableBlob) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close finishes the upload and reports its result. Later calls return the
// same result.
func (w *minioWritableBlob) Close() error {
	w.once.Do(func() {
		_ = w.pw.Close()
		w.err = <-w.done
		w.cancel()
	})
	return w.err
}

// Abort cancels the upload. No object is created.
func (w *minioWritableBlob) Abort() error {
	w.once.Do(func() {
		_ = w.pw.CloseWithError(errAborted)
		w.cancel()
		<-w.done
		w.err = errAborted
	})
	return nil
}

// Sync is a no-op; data is committed on Close.
func (w *minioWritableBlob) Sync() error { return nil }
