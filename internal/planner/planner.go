package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/internal/resource"
	"github.com/hupe1980/tripdb/internal/sink"
	"github.com/hupe1980/tripdb/model"
)

// DefaultBatchSize is the number of records per batch in sharded scans.
const DefaultBatchSize = 1024

// Index looks up records by key.
type Index interface {
	Get(key string) (model.Record, bool, error)
}

// Stream yields source records until io.EOF.
type Stream interface {
	Next() (model.Record, error)
	Close() error
}

// Source opens a new stream over the source dataset for every scan.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// SourceFunc adapts a function to a Source.
type SourceFunc func(ctx context.Context) (Stream, error)

// Open calls f(ctx).
func (f SourceFunc) Open(ctx context.Context) (Stream, error) { return f(ctx) }

// Options configures a Planner.
type Options struct {
	// Workers filters scan batches in parallel when greater than 1.
	Workers int
	// BatchSize is the number of records per sharded batch.
	BatchSize  int
	Controller *resource.Controller
	Logger     *slog.Logger
}

// Result describes one execution.
type Result struct {
	Strategy Kind
	// Fallback is set when an index lookup missed and a scan ran instead.
	Fallback bool
	Scanned  int64
	Matched  int64
	// Stopped is set when the sink ended the scan early.
	Stopped  bool
	Duration time.Duration
}

// Planner executes filters against an index and a source.
type Planner struct {
	index  Index
	source Source
	opts   Options
}

// New returns a Planner. index may be nil, in which case every query scans.
func New(index Index, source Source, opts Options) *Planner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{index: index, source: source, opts: opts}
}

// Execute emits every record matching f into s, using the index when the
// plan allows it.
func (p *Planner) Execute(ctx context.Context, f filter.Filter, s sink.Sink) (Result, error) {
	start := time.Now()

	choice := Plan(f)
	if choice.Kind == IndexLookup && p.index != nil {
		rec, found, err := p.index.Get(choice.Key)
		if err != nil {
			return Result{Strategy: IndexLookup}, fmt.Errorf("index lookup %q: %w", choice.Key, err)
		}
		if found && filter.Matches(f, &rec) {
			if _, err := s.Emit(rec); err != nil {
				return Result{Strategy: IndexLookup}, err
			}
			return Result{Strategy: IndexLookup, Scanned: 1, Matched: 1, Duration: time.Since(start)}, nil
		}
		p.opts.Logger.Debug("index lookup missed; scanning",
			slog.String("key", choice.Key),
			slog.Bool("found", found),
		)
		res, err := p.Scan(ctx, f, s)
		res.Fallback = true
		res.Duration = time.Since(start)
		return res, err
	}

	res, err := p.Scan(ctx, f, s)
	res.Duration = time.Since(start)
	return res, err
}

// Scan streams the whole source and emits records matching f. A nil f
// matches every record.
func (p *Planner) Scan(ctx context.Context, f filter.Filter, s sink.Sink) (Result, error) {
	start := time.Now()

	if err := p.opts.Controller.AcquireScan(ctx); err != nil {
		return Result{}, err
	}
	defer p.opts.Controller.ReleaseScan()

	st, err := p.source.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer st.Close()

	var res Result
	if p.opts.Workers > 1 {
		res, err = p.scanSharded(ctx, st, f, s)
	} else {
		res, err = p.scanSequential(ctx, st, f, s)
	}
	res.Strategy = FullScan
	res.Duration = time.Since(start)
	return res, err
}

func (p *Planner) scanSequential(ctx context.Context, st Stream, f filter.Filter, s sink.Sink) (Result, error) {
	var res Result
	for {
		if res.Scanned%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		rec, err := st.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Scanned++

		if !filter.Matches(f, &rec) {
			continue
		}
		res.Matched++
		more, err := s.Emit(rec)
		if err != nil {
			return res, err
		}
		if !more {
			res.Stopped = true
			return res, nil
		}
	}
}
