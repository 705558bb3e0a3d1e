package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
)

// errBlobClosed is returned by writes to a committed memory blob.
var errBlobClosed = errors.New("blobstore: write to closed blob")

// MemoryStore keeps blobs in memory. Stored slices are never mutated after
// they are committed, so readers share them without copying. Tests use it
// to serve generated datasets. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

var _ BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

func (m *MemoryStore) lookup(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	return data, ok
}

func (m *MemoryStore) commit(name string, data []byte) {
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
}

// Open implements BlobStore. The returned blob is a snapshot; later writes
// to name do not affect it.
func (m *MemoryStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.lookup(name)
	if !ok {
		return nil, ErrNotFound
	}
	return &memoryBlob{data: data}, nil
}

// Create implements BlobStore. The blob becomes visible on Close.
func (m *MemoryStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryWritableBlob{store: m, name: name}, nil
}

// Set stores a copy of data under name.
func (m *MemoryStore) Set(name string, data []byte) {
	m.commit(name, bytes.Clone(data))
}

// Get returns a copy of the content of name.
func (m *MemoryStore) Get(name string) ([]byte, bool) {
	data, ok := m.lookup(name)
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// Delete implements BlobStore.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List implements BlobStore.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	var names []string
	for name := range m.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	slices.Sort(names)
	return names, nil
}

type memoryBlob struct {
	data []byte
}

var _ Mappable = (*memoryBlob)(nil)

func (b *memoryBlob) Size() int64            { return int64(len(b.data)) }
func (b *memoryBlob) Close() error           { return nil }
func (b *memoryBlob) Bytes() ([]byte, error) { return b.data, nil }

func (b *memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return bytes.NewReader(b.data).ReadAt(p, off)
}

func (b *memoryBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	size := int64(len(b.data))
	off = min(max(off, 0), size)
	end := min(off+max(length, 0), size)
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

type memoryWritableBlob struct {
	store  *MemoryStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *memoryWritableBlob) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errBlobClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWritableBlob) Sync() error { return nil }

// Abort drops the buffered content without committing it.
func (w *memoryWritableBlob) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}

// Close commits the buffered content. Closing twice is a no-op.
func (w *memoryWritableBlob) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.store.commit(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}
