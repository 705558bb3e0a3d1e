package planner

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tripdb/filter"
	"github.com/hupe1980/tripdb/internal/sink"
	"github.com/hupe1980/tripdb/model"
)

type batch struct {
	seq     int
	recs    []model.Record
	matches []int
}

// scanSharded reads batches on one goroutine, filters them on Workers
// goroutines and emits matches from the calling goroutine in batch order.
func (p *Planner) scanSharded(ctx context.Context, st Stream, f filter.Filter, s sink.Sink) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	todo := make(chan *batch, p.opts.Workers)
	done := make(chan *batch, p.opts.Workers)

	g.Go(func() error {
		defer close(todo)
		for seq := 0; ; seq++ {
			b := &batch{seq: seq, recs: make([]model.Record, 0, p.opts.BatchSize)}
			var readErr error
			for len(b.recs) < p.opts.BatchSize {
				rec, err := st.Next()
				if err != nil {
					readErr = err
					break
				}
				b.recs = append(b.recs, rec)
			}
			if len(b.recs) > 0 {
				select {
				case todo <- b:
				case <-gctx.Done():
					return nil
				}
			}
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			if readErr != nil {
				return readErr
			}
		}
	})

	var wg sync.WaitGroup
	for w := 0; w < p.opts.Workers; w++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for b := range todo {
				for i := range b.recs {
					if filter.Matches(f, &b.recs[i]) {
						b.matches = append(b.matches, i)
					}
				}
				select {
				case done <- b:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	var (
		res     Result
		emitErr error
		next    int
		pending = make(map[int]*batch)
	)

	for b := range done {
		if res.Stopped || emitErr != nil {
			continue
		}
		pending[b.seq] = b
		for {
			cur, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			last := len(cur.recs) - 1
			for _, i := range cur.matches {
				res.Matched++
				more, err := s.Emit(cur.recs[i])
				if err != nil {
					emitErr = err
				} else if !more {
					res.Stopped = true
				}
				if emitErr != nil || res.Stopped {
					last = i
					break
				}
			}
			res.Scanned += int64(last + 1)

			if emitErr != nil || res.Stopped {
				cancel()
				break
			}
		}
	}

	if err := g.Wait(); err != nil && emitErr == nil && !res.Stopped {
		return res, err
	}
	if emitErr != nil {
		return res, emitErr
	}
	if !res.Stopped {
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	return res, nil
}
