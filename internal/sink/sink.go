package sink

import (
	"github.com/hupe1980/tripdb/model"
)

// Sink consumes matched records.
type Sink interface {
	// Emit consumes rec. It returns false when no further records are wanted.
	Emit(rec model.Record) (more bool, err error)
}

// Func adapts a function to a Sink.
type Func func(rec model.Record) (bool, error)

// Emit calls f(rec).
func (f Func) Emit(rec model.Record) (bool, error) { return f(rec) }

// Collector retains matched records up to an optional bound.
type Collector struct {
	Records []model.Record
	limit   int
}

// NewCollector returns a Collector that keeps at most limit records.
// A negative limit keeps everything.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

// Emit appends rec and stops once the bound is reached.
func (c *Collector) Emit(rec model.Record) (bool, error) {
	if c.limit >= 0 && len(c.Records) >= c.limit {
		return false, nil
	}
	c.Records = append(c.Records, rec)
	return c.limit < 0 || len(c.Records) < c.limit, nil
}

// Pager counts every match while keeping only the records of one page.
// It never stops the producer because Total needs a full pass.
type Pager struct {
	Items []model.Record
	Total int

	start, end int
}

// NewPager returns a Pager for the 1-based page of size perPage.
// Page numbers below 1 are treated as 1.
func NewPager(page, perPage int) *Pager {
	if page < 1 {
		page = 1
	}
	if perPage < 0 {
		perPage = 0
	}
	start := (page - 1) * perPage
	return &Pager{start: start, end: start + perPage}
}

// Emit counts rec and keeps it if it falls inside the page window.
func (p *Pager) Emit(rec model.Record) (bool, error) {
	if p.Total >= p.start && p.Total < p.end {
		p.Items = append(p.Items, rec)
	}
	p.Total++
	return true, nil
}

// Counter counts matches.
type Counter struct {
	N int
}

// Emit counts rec.
func (c *Counter) Emit(model.Record) (bool, error) {
	c.N++
	return true, nil
}
