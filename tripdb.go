package tripdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/tripdb/blobstore"
	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/internal/diskindex"
	"github.com/hupe1980/tripdb/internal/fs"
	"github.com/hupe1980/tripdb/internal/lock"
	"github.com/hupe1980/tripdb/internal/planner"
	"github.com/hupe1980/tripdb/internal/recordstore"
	"github.com/hupe1980/tripdb/internal/resource"
	"github.com/hupe1980/tripdb/internal/sink"
	"github.com/hupe1980/tripdb/internal/stream"
	"github.com/hupe1980/tripdb/model"
)

// Bucket is a field value with its number of occurrences.
type Bucket = sink.Bucket

// DB answers queries over one source dataset.
//
// The index is built or reused on first use. All query methods are safe for
// concurrent use and read from an immutable snapshot; Reinitialize swaps in
// a freshly built snapshot without disturbing running queries.
type DB struct {
	source blobstore.BlobStore
	name   string
	opts   options
	fsys   fs.FileSystem
	logger *Logger
	lock   *lock.Lock
	ctrl   *resource.Controller

	init    singleflight.Group
	writeMu sync.Mutex // serializes generation changes
	current atomic.Pointer[snapshot]
	closed  atomic.Bool
}

// Open returns a DB over the dataset name in source. It only takes the
// directory lock; the index is built or opened by the first query.
func Open(_ context.Context, source blobstore.BlobStore, name string, optFns ...Option) (*DB, error) {
	if source == nil {
		return nil, errors.New("tripdb: nil source")
	}
	o := applyOptions(optFns)

	l, err := lock.Acquire(o.dir)
	if err != nil {
		return nil, translateError("open", o.dir, err)
	}

	return &DB{
		source: source,
		name:   name,
		opts:   o,
		fsys:   fs.Default,
		logger: o.logger.WithDataset(name),
		lock:   l,
		ctrl: resource.NewController(resource.Config{
			MaxConcurrentScans: o.maxConcurrentScans,
			IOLimitBytesPerSec: o.ioLimit,
		}),
	}, nil
}

// Dir returns the index directory.
func (db *DB) Dir() string { return db.opts.dir }

// Generation returns the active index generation, or "" before the first query.
func (db *DB) Generation() string {
	if s := db.current.Load(); s != nil {
		return s.gen
	}
	return ""
}

// acquire returns the current snapshot with a reference held, initializing
// the DB if needed.
func (db *DB) acquire(ctx context.Context) (*snapshot, error) {
	for {
		if db.closed.Load() {
			return nil, ErrClosed
		}
		if s := db.current.Load(); s != nil {
			if s.tryAcquire() {
				return s, nil
			}
			continue
		}
		if err := db.initialize(ctx); err != nil {
			return nil, err
		}
	}
}

// initialize runs openOrBuild once for all concurrent callers. A failure is
// returned to every waiter and the next call tries again.
func (db *DB) initialize(ctx context.Context) error {
	ch := db.init.DoChan("init", func() (any, error) {
		return nil, db.openOrBuild(context.WithoutCancel(ctx))
	})
	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (db *DB) openOrBuild(ctx context.Context) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if db.closed.Load() {
		return ErrClosed
	}
	if db.current.Load() != nil {
		return nil
	}

	gen, err := readCurrent(db.fsys, db.opts.dir)
	if err != nil {
		return translateError("read current", db.opts.dir, err)
	}

	if gen != "" && diskindex.Exists(db.fsys, filepath.Join(db.opts.dir, gen)) {
		s, err := openSnapshot(db.fsys, db.opts.dir, gen, db.indexOptions(), db.logger)
		if err == nil {
			db.logger.LogOpen(ctx, s.dir, s.index.Count())
			removeStaleGenerations(ctx, db.fsys, db.opts.dir, map[string]bool{gen: true}, db.logger)
			db.current.Store(s)
			return nil
		}
		if !rebuildable(err) {
			return translateError("open index", filepath.Join(db.opts.dir, gen), err)
		}
		db.logger.WarnContext(ctx, "index generation unusable; rebuilding", "gen", gen, "error", err)
	}

	s, _, err := db.build(ctx)
	if err != nil {
		return err
	}
	if err := writeCurrent(db.fsys, db.opts.dir, s.gen); err != nil {
		s.retire()
		return translateError("write current", db.opts.dir, err)
	}
	removeStaleGenerations(ctx, db.fsys, db.opts.dir, map[string]bool{s.gen: true}, db.logger)
	db.current.Store(s)
	return nil
}

func rebuildable(err error) bool {
	return errors.Is(err, diskindex.ErrCorrupt) ||
		errors.Is(err, recordstore.ErrCorrupt) ||
		errors.Is(err, recordstore.ErrIncompatibleVersion) ||
		errors.Is(err, os.ErrNotExist)
}

// build indexes the source into a new generation directory and opens it.
// A failed build leaves no directory behind.
func (db *DB) build(ctx context.Context) (*snapshot, int, error) {
	start := time.Now()
	gen := newGeneration()
	dir := filepath.Join(db.opts.dir, gen)

	n, skipped, err := db.buildInto(ctx, dir)
	if err == nil {
		var s *snapshot
		s, err = openSnapshot(db.fsys, db.opts.dir, gen, db.indexOptions(), db.logger)
		if err == nil {
			db.logger.LogBuild(ctx, dir, n, skipped, time.Since(start), nil)
			db.opts.metricsCollector.RecordBuild(n, time.Since(start), nil)
			return s, n, nil
		}
		err = translateError("open index", dir, err)
	}

	_ = db.fsys.RemoveAll(dir)
	db.logger.LogBuild(ctx, dir, n, skipped, time.Since(start), err)
	db.opts.metricsCollector.RecordBuild(n, time.Since(start), err)
	return nil, n, err
}

func (db *DB) buildInto(ctx context.Context, dir string) (int, int64, error) {
	st, err := stream.OpenSource(ctx, db.source, db.name, db.streamOptions()...)
	if err != nil {
		return 0, 0, translateError("open source", db.name, err)
	}
	defer st.Close()

	ix, err := diskindex.Create(dir, db.indexOptions())
	if err != nil {
		return 0, 0, translateError("create index", dir, err)
	}
	n, err := ix.Build(ctx, st)
	if cerr := ix.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, st.Skipped(), translateError("build index", dir, err)
	}
	return n, st.Skipped(), nil
}

// Reinitialize builds a new index generation from the source and makes it
// current. Queries already running finish on the previous generation, which
// is deleted once they release it. It returns the number of records indexed.
func (db *DB) Reinitialize(ctx context.Context) (int, error) {
	start := time.Now()

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if db.closed.Load() {
		return 0, ErrClosed
	}

	s, n, err := db.build(ctx)
	if err == nil {
		if werr := writeCurrent(db.fsys, db.opts.dir, s.gen); werr != nil {
			s.retire()
			err = translateError("write current", db.opts.dir, werr)
		}
	}
	if err != nil {
		db.logger.LogReinitialize(ctx, db.Generation(), "", 0, err)
		db.opts.metricsCollector.RecordReinitialize(time.Since(start), err)
		return 0, err
	}

	keep := map[string]bool{s.gen: true}
	old := db.current.Swap(s)
	oldGen := ""
	if old != nil {
		oldGen = old.gen
		keep[oldGen] = true
		old.retire()
	}
	removeStaleGenerations(ctx, db.fsys, db.opts.dir, keep, db.logger)

	db.logger.LogReinitialize(ctx, oldGen, s.gen, n, nil)
	db.opts.metricsCollector.RecordReinitialize(time.Since(start), nil)
	return n, nil
}

// Close releases the index and the directory lock. Running queries finish
// on their snapshot. Close is idempotent.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if s := db.current.Swap(nil); s != nil {
		s.release()
	}
	return db.lock.Release()
}

func (db *DB) indexOptions() diskindex.Options {
	return diskindex.Options{
		FS:            db.fsys,
		Durability:    db.opts.durability,
		SyncEvery:     db.opts.syncEvery,
		Codec:         db.opts.codec,
		Compression:   db.opts.compression,
		ProgressEvery: db.opts.progressEvery,
		Logger:        db.logger.Logger,
	}
}

func (db *DB) streamOptions() []stream.Option {
	return []stream.Option{
		stream.WithLogger(db.logger.Logger),
		stream.WithController(db.ctrl),
	}
}

func (db *DB) openStream(ctx context.Context) (planner.Stream, error) {
	st, err := stream.OpenSource(ctx, db.source, db.name, db.streamOptions()...)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (db *DB) newPlanner(idx planner.Index) *planner.Planner {
	return planner.New(idx, planner.SourceFunc(db.openStream), planner.Options{
		Workers:    db.opts.workers,
		BatchSize:  db.opts.batchSize,
		Controller: db.ctrl,
		Logger:     db.logger.Logger,
	})
}

// execute runs f through the planner on the current snapshot.
func (db *DB) execute(ctx context.Context, op string, f filter.Filter, s sink.Sink) error {
	snap, err := db.acquire(ctx)
	if err != nil {
		return translateError(op, db.name, err)
	}
	defer snap.release()

	res, err := db.newPlanner(snap.index).Execute(ctx, f, s)
	db.observe(ctx, op, f, res, err)
	return translateError(op, db.name, err)
}

// scan streams the whole source into s without touching the index.
func (db *DB) scan(ctx context.Context, op string, f filter.Filter, s sink.Sink) error {
	if db.closed.Load() {
		return ErrClosed
	}
	res, err := db.newPlanner(nil).Scan(ctx, f, s)
	db.observe(ctx, op, f, res, err)
	return translateError(op, db.name, err)
}

func (db *DB) observe(ctx context.Context, op string, f filter.Filter, res planner.Result, err error) {
	desc := "*"
	if f != nil {
		desc = f.String()
	}
	strategy := res.Strategy.String()
	db.logger.LogQuery(ctx, op, desc, strategy, res.Scanned, res.Matched, res.Duration, err)
	db.opts.metricsCollector.RecordQuery(op, strategy, res.Scanned, res.Matched, res.Duration, err)
}

// Get returns the record with the given key. It returns an error matching
// ErrNotFound when no record has that key.
func (db *DB) Get(ctx context.Context, key string) (model.Record, error) {
	c := sink.NewCollector(1)
	if err := db.execute(ctx, "get", filter.Key(key), c); err != nil {
		return model.Record{}, err
	}
	if len(c.Records) == 0 {
		return model.Record{}, &Error{Kind: KindNotFound, Op: "get", Err: fmt.Errorf("key %q", key)}
	}
	return c.Records[0], nil
}

// Query returns up to limit records matching f, in source order. A negative
// limit returns every match. A nil f matches every record.
func (db *DB) Query(ctx context.Context, f filter.Filter, limit int) ([]model.Record, error) {
	c := sink.NewCollector(limit)
	if err := db.execute(ctx, "query", f, c); err != nil {
		return nil, err
	}
	return c.Records, nil
}

// Filter returns one page of the records matching f together with the total
// number of matches.
func (db *DB) Filter(ctx context.Context, f filter.Filter, p Pagination) (*PagedResult, error) {
	start := time.Now()
	p = p.normalize()

	pager := sink.NewPager(p.Page, p.PerPage)
	if err := db.execute(ctx, "filter", f, pager); err != nil {
		return nil, err
	}
	return newPagedResult(pager.Items, pager.Total, p, time.Since(start)), nil
}

// FilterByPrice pages through records whose total amount lies in [minAmount, maxAmount].
func (db *DB) FilterByPrice(ctx context.Context, minAmount, maxAmount float64, p Pagination) (*PagedResult, error) {
	return db.Filter(ctx, filter.Price(&minAmount, &maxAmount), p)
}

// FilterByDestination pages through records with the given drop-off location.
func (db *DB) FilterByDestination(ctx context.Context, dest string, p Pagination) (*PagedResult, error) {
	return db.Filter(ctx, filter.Destination(dest), p)
}

// Stats aggregates the records matching f. The result always has "count";
// "avg_distance", "avg_amount", "avg_passengers" and "total_amount" are
// present only when count > 0.
func (db *DB) Stats(ctx context.Context, f filter.Filter) (map[string]float64, error) {
	var agg sink.Aggregator
	if err := db.execute(ctx, "stats", f, &agg); err != nil {
		return nil, err
	}
	return agg.Stats(), nil
}

// PopularDestinations returns up to limit drop-off locations by descending
// trip count. Ties keep the order of first appearance in the source. A
// negative limit returns every location.
func (db *DB) PopularDestinations(ctx context.Context, limit int) ([]Bucket, error) {
	freq := sink.NewFrequency(model.FieldDOLocationID)
	if err := db.scan(ctx, "popular_destinations", nil, freq); err != nil {
		return nil, err
	}
	return freq.Top(limit), nil
}

// FilterToFile writes the records matching f to a CSV file at path,
// creating parent directories. At most maxResults rows are written and a
// negative maxResults is unbounded; the header is always written. It returns
// the row count.
func (db *DB) FilterToFile(ctx context.Context, path string, f filter.Filter, maxResults int) (int, error) {
	if err := db.fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, translateError("filter_to_file", path, err)
	}
	file, err := db.fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, translateError("filter_to_file", path, err)
	}

	n, err := db.writeCSV(ctx, "filter_to_file", file, f, maxResults)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = translateError("filter_to_file", path, cerr)
	}
	return n, err
}

// FilterToBlob is FilterToFile for a blob store, such as S3 or MinIO.
// When the query fails the upload is aborted, or the blob deleted where
// the store cannot abort, so no partial result is left behind.
func (db *DB) FilterToBlob(ctx context.Context, store blobstore.BlobStore, name string, f filter.Filter, maxResults int) (int, error) {
	wb, err := store.Create(ctx, name)
	if err != nil {
		return 0, translateError("filter_to_blob", name, err)
	}

	n, err := db.writeCSV(ctx, "filter_to_blob", wb, f, maxResults)
	if err != nil {
		if !blobstore.Discard(wb) {
			_ = store.Delete(ctx, name)
		}
		return 0, err
	}
	if err := wb.Close(); err != nil {
		_ = store.Delete(ctx, name)
		return 0, translateError("filter_to_blob", name, err)
	}
	return n, nil
}

func (db *DB) writeCSV(ctx context.Context, op string, w io.Writer, f filter.Filter, maxResults int) (int, error) {
	cw, err := sink.NewCSVWriter(w, maxResults)
	if err != nil {
		return 0, translateError(op, "", err)
	}
	err = db.execute(ctx, op, f, cw)
	if ferr := cw.Flush(); err == nil && ferr != nil {
		err = translateError(op, "", ferr)
	}
	return cw.Written(), err
}

// Count returns the number of distinct keys in the index.
func (db *DB) Count(ctx context.Context) (int, error) {
	snap, err := db.acquire(ctx)
	if err != nil {
		return 0, translateError("count", db.name, err)
	}
	defer snap.release()
	return snap.index.Count(), nil
}
