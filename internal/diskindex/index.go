package diskindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/hupe1980/tripdb/internal/fs"
	"github.com/hupe1980/tripdb/internal/hash"
	"github.com/hupe1980/tripdb/internal/recordstore"
	"github.com/hupe1980/tripdb/model"
)

// File names inside an index directory.
const (
	TableFile    = "index.tbl"
	StoreFile    = "records.log"
	tmpTableFile = "table.tmp"
)

// Source yields records until io.EOF.
type Source interface {
	Next() (model.Record, error)
}

// Stats describes the index for logging and metrics.
type Stats struct {
	Count      int
	Capacity   uint64
	Damaged    uint64
	StoreBytes int64
}

// Index maps record keys to record store offsets.
//
// A writable Index has a single writer; Get may run concurrently with
// Insert. An Index opened with OpenReadOnly is immutable and serves
// concurrent readers from memory mappings.
type Index struct {
	mu       sync.RWMutex
	dir      string
	opts     Options
	tbl      *table
	store    *recordstore.Store
	readOnly bool
	dirty    bool
	pending  int
	closed   bool
}

// Exists reports whether dir contains both index files.
func Exists(fsys fs.FileSystem, dir string) bool {
	if fsys == nil {
		fsys = fs.Default
	}
	for _, name := range []string{TableFile, StoreFile} {
		if _, err := fsys.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Create creates an empty index in dir, replacing any existing files.
func Create(dir string, opts Options) (*Index, error) {
	opts.normalize()
	ix := &Index{dir: dir, opts: opts}
	if err := ix.createFiles(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) createFiles() error {
	fsys := ix.opts.FS
	if err := fsys.MkdirAll(ix.dir, 0o755); err != nil {
		return err
	}

	store, err := recordstore.Create(fsys, filepath.Join(ix.dir, StoreFile), recordstore.Options{
		Codec:       ix.opts.Codec,
		Compression: ix.opts.Compression,
	})
	if err != nil {
		return fmt.Errorf("diskindex: create store: %w", err)
	}

	tbl, err := createTableFile(fsys, filepath.Join(ix.dir, TableFile), capacityFor(ix.opts.InitialCapacity))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("diskindex: create table: %w", err)
	}
	if err := tbl.sync(); err != nil {
		_ = tbl.close()
		_ = store.Close()
		return err
	}
	if err := fsys.SyncDir(ix.dir); err != nil {
		_ = tbl.close()
		_ = store.Close()
		return err
	}

	ix.tbl = tbl
	ix.store = store
	ix.dirty = true
	ix.pending = 0
	return nil
}

// Open opens an existing index for reading and inserting. After an unclean
// shutdown the store's torn tail is truncated and entries that point past
// it are dropped.
func Open(dir string, opts Options) (*Index, error) {
	opts.normalize()
	fsys := opts.FS

	tbl, hdr, err := openTableFile(fsys, filepath.Join(dir, TableFile))
	if err != nil {
		return nil, err
	}
	store, err := recordstore.Open(fsys, filepath.Join(dir, StoreFile), recordstore.Options{
		SkipRecovery: hdr.clean,
	})
	if err != nil {
		_ = tbl.close()
		return nil, err
	}

	ix := &Index{dir: dir, opts: opts, tbl: tbl, store: store}
	if !hdr.clean || !tbl.damaged.IsEmpty() {
		if err := ix.recover(hdr); err != nil {
			_ = ix.tbl.close()
			_ = store.Close()
			return nil, err
		}
	}
	return ix, nil
}

// OpenReadOnly memory-maps an existing index.
func OpenReadOnly(dir string, opts Options) (*Index, error) {
	opts.normalize()

	tbl, hdr, err := mapTableFile(filepath.Join(dir, TableFile))
	if err != nil {
		return nil, err
	}
	store, err := recordstore.OpenReadOnly(filepath.Join(dir, StoreFile), recordstore.Options{})
	if err != nil {
		_ = tbl.close()
		return nil, err
	}

	ix := &Index{dir: dir, opts: opts, tbl: tbl, store: store, readOnly: true}
	if !hdr.clean {
		dropped, err := ix.dropDangling(false)
		if err != nil {
			_ = ix.Close()
			return nil, err
		}
		opts.Logger.Warn("index was not closed cleanly; serving read-only",
			slog.String("dir", dir),
			slog.Int("dropped", dropped),
		)
	}
	return ix, nil
}

// recover repairs an index after an unclean shutdown or slot damage.
func (ix *Index) recover(hdr tableHeader) error {
	dropped, err := ix.dropDangling(true)
	if err != nil {
		return err
	}
	damaged := ix.tbl.damaged.GetCardinality()

	ix.opts.Logger.Warn("recovering index",
		slog.String("dir", ix.dir),
		slog.Bool("clean", hdr.clean),
		slog.Uint64("header_count", hdr.count),
		slog.Int("count", ix.tbl.count()),
		slog.Int("dropped", dropped),
		slog.Uint64("damaged", damaged),
	)

	// Damaged or cleared slots may sit inside probe chains; rehash to restore them.
	if damaged > 0 || dropped > 0 {
		if err := ix.rehash(ix.tbl.capacity); err != nil {
			return err
		}
	}
	if err := ix.tbl.writeHeader(tableHeader{count: uint64(ix.tbl.count())}); err != nil {
		return err
	}
	ix.dirty = true
	return ix.tbl.sync()
}

// dropDangling removes entries whose offset lies outside the record store.
// With clear set the slots are also zeroed on disk.
func (ix *Index) dropDangling(clear bool) (int, error) {
	lo, hi := ix.store.DataOffset(), ix.store.Size()

	var dangling []uint64
	it := ix.tbl.occupied.Iterator()
	for it.HasNext() {
		i := uint64(it.Next())
		s, st, err := ix.tbl.readSlot(i)
		if err != nil {
			return 0, err
		}
		if st != slotOccupied || s.offset < lo || s.offset >= hi {
			dangling = append(dangling, i)
		}
	}

	for _, i := range dangling {
		if clear {
			if err := ix.tbl.clearSlot(i); err != nil {
				return 0, err
			}
			continue
		}
		ix.tbl.occupied.Remove(uint32(i))
		ix.tbl.damaged.Add(uint32(i))
	}
	return len(dangling), nil
}

// Dir returns the index directory.
func (ix *Index) Dir() string { return ix.dir }

// Count returns the number of distinct keys.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0
	}
	return ix.tbl.count()
}

// Stats returns a snapshot of index statistics.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return Stats{}
	}
	return Stats{
		Count:      ix.tbl.count(),
		Capacity:   ix.tbl.capacity,
		Damaged:    ix.tbl.damaged.GetCardinality(),
		StoreBytes: ix.store.Size(),
	}
}

// Get returns the record stored under key. A missing key is not an error.
// A frame that fails verification is.
func (ix *Index) Get(key string) (model.Record, bool, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.closed {
		return model.Record{}, false, ErrClosed
	}

	var rec model.Record
	_, found, err := ix.tbl.probe(hash.Key(key), func(s slot) (bool, error) {
		r, err := ix.store.Read(s.offset)
		if err != nil {
			return false, err
		}
		if r.Key() != key {
			return false, nil
		}
		rec = r
		return true, nil
	})
	if err != nil {
		if errors.Is(err, ErrFull) {
			return model.Record{}, false, nil
		}
		return model.Record{}, false, err
	}
	return rec, found, nil
}

// Insert appends rec to the store and points key at it. An existing entry
// for key is replaced. key must equal rec.Key().
func (ix *Index) Insert(key string, rec *model.Record) error {
	if key != rec.Key() {
		return fmt.Errorf("diskindex: key %q does not match record key %q", key, rec.Key())
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.writable(); err != nil {
		return err
	}
	return ix.insertLocked(key, rec, ix.opts.Durability)
}

func (ix *Index) writable() error {
	if ix.closed {
		return ErrClosed
	}
	if ix.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (ix *Index) insertLocked(key string, rec *model.Record, d Durability) error {
	if err := ix.markDirty(); err != nil {
		return err
	}

	if float64(ix.tbl.used()+1) > float64(ix.tbl.capacity)*maxLoadFactor {
		if ix.tbl.capacity >= maxCapacity {
			return ErrFull
		}
		if err := ix.rehash(ix.tbl.capacity * 2); err != nil {
			return fmt.Errorf("diskindex: grow: %w", err)
		}
	}

	off, err := ix.store.Append(rec)
	if err != nil {
		return err
	}
	if d == DurabilitySync {
		if err := ix.store.Sync(); err != nil {
			return err
		}
	}

	h := hash.Key(key)
	idx, _, err := ix.tbl.probe(h, func(s slot) (bool, error) {
		r, err := ix.store.Read(s.offset)
		if err != nil {
			return false, err
		}
		return r.Key() == key, nil
	})
	if err != nil {
		return err
	}
	if err := ix.tbl.writeSlot(idx, slot{hash: h, offset: off}); err != nil {
		return err
	}

	switch d {
	case DurabilitySync:
		return ix.tbl.sync()
	case DurabilityBatch:
		ix.pending++
		if ix.pending >= ix.opts.SyncEvery {
			return ix.syncLocked()
		}
	}
	return nil
}

// markDirty clears the clean flag on disk before the first mutation.
func (ix *Index) markDirty() error {
	if ix.dirty {
		return nil
	}
	if err := ix.tbl.writeHeader(tableHeader{count: uint64(ix.tbl.count())}); err != nil {
		return err
	}
	if err := ix.tbl.sync(); err != nil {
		return err
	}
	ix.dirty = true
	return nil
}

// rehash rewrites every live slot into a fresh table of the given capacity
// and atomically replaces the table file.
func (ix *Index) rehash(capacity uint64) error {
	fsys := ix.opts.FS
	tmpPath := filepath.Join(ix.dir, tmpTableFile)

	// Frames referenced by the new table must be durable before it is.
	if err := ix.store.Sync(); err != nil {
		return err
	}

	nt, err := createTableFile(fsys, tmpPath, capacity)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = nt.close()
		_ = fsys.Remove(tmpPath)
		return err
	}

	it := ix.tbl.occupied.Iterator()
	for it.HasNext() {
		s, st, err := ix.tbl.readSlot(uint64(it.Next()))
		if err != nil {
			return fail(err)
		}
		if st != slotOccupied {
			continue
		}
		idx, _, err := nt.probe(s.hash, func(slot) (bool, error) { return false, nil })
		if err != nil {
			return fail(err)
		}
		if err := nt.writeSlot(idx, s); err != nil {
			return fail(err)
		}
	}

	if err := nt.writeHeader(tableHeader{count: uint64(nt.count())}); err != nil {
		return fail(err)
	}
	if err := nt.sync(); err != nil {
		return fail(err)
	}
	if err := fsys.Rename(tmpPath, filepath.Join(ix.dir, TableFile)); err != nil {
		return fail(err)
	}
	if err := fsys.SyncDir(ix.dir); err != nil {
		return fail(err)
	}

	_ = ix.tbl.close()
	ix.tbl = nt
	ix.opts.Logger.Debug("index table rehashed",
		slog.String("dir", ix.dir),
		slog.Uint64("capacity", capacity),
		slog.Int("count", nt.count()),
	)
	return nil
}

// Build replaces the index contents with every record from src and returns
// the number of records consumed. Duplicate keys keep the last record.
func (ix *Index) Build(ctx context.Context, src Source) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.writable(); err != nil {
		return 0, err
	}

	if ix.tbl.count() > 0 || ix.store.Size() > ix.store.DataOffset() {
		_ = ix.tbl.close()
		_ = ix.store.Close()
		if err := ix.createFiles(); err != nil {
			ix.closed = true
			return 0, err
		}
	}

	n := 0
	for {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}

		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}

		if err := ix.insertLocked(rec.Key(), &rec, DurabilityBatch); err != nil {
			return n, err
		}
		n++

		if every := ix.opts.ProgressEvery; every > 0 && n%every == 0 {
			ix.opts.Logger.Info("building index",
				slog.String("dir", ix.dir),
				slog.Int("records", n),
				slog.Int("keys", ix.tbl.count()),
			)
		}
	}

	if err := ix.syncLocked(); err != nil {
		return n, err
	}
	return n, nil
}

// Sync makes all inserted entries durable.
func (ix *Index) Sync() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return ErrClosed
	}
	if ix.readOnly {
		return nil
	}
	return ix.syncLocked()
}

func (ix *Index) syncLocked() error {
	if err := ix.store.Sync(); err != nil {
		return err
	}
	if err := ix.tbl.sync(); err != nil {
		return err
	}
	ix.pending = 0
	return nil
}

// Close syncs a writable index, marks it clean, and releases all files.
// It is idempotent.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true

	var errs []error
	if !ix.readOnly {
		if err := ix.syncLocked(); err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, ix.tbl.writeHeader(tableHeader{count: uint64(ix.tbl.count()), clean: true}))
			errs = append(errs, ix.tbl.sync())
		}
	}
	errs = append(errs, ix.tbl.close(), ix.store.Close())
	return errors.Join(errs...)
}
