package tripdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; package
// metric provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each index build with the number of
	// records indexed.
	RecordBuild(records int, duration time.Duration, err error)

	// RecordQuery is called after each query. strategy is "index_lookup"
	// or "full_scan"; scanned and matched count source records.
	RecordQuery(op, strategy string, scanned, matched int64, duration time.Duration, err error)

	// RecordReinitialize is called after each Reinitialize.
	RecordReinitialize(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, time.Duration, error)                          {}
func (NoopMetricsCollector) RecordQuery(string, string, int64, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordReinitialize(time.Duration, error)                       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount         atomic.Int64
	BuildErrors        atomic.Int64
	BuildRecords       atomic.Int64
	QueryCount         atomic.Int64
	QueryErrors        atomic.Int64
	QueryTotalNanos    atomic.Int64
	IndexLookups       atomic.Int64
	FullScans          atomic.Int64
	RecordsScanned     atomic.Int64
	RecordsMatched     atomic.Int64
	ReinitializeCount  atomic.Int64
	ReinitializeErrors atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(records int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildRecords.Add(int64(records))
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(_, strategy string, scanned, matched int64, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
	if strategy == "index_lookup" {
		b.IndexLookups.Add(1)
	} else {
		b.FullScans.Add(1)
	}
	b.RecordsScanned.Add(scanned)
	b.RecordsMatched.Add(matched)
}

// RecordReinitialize implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReinitialize(_ time.Duration, err error) {
	b.ReinitializeCount.Add(1)
	if err != nil {
		b.ReinitializeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		BuildCount:         b.BuildCount.Load(),
		BuildErrors:        b.BuildErrors.Load(),
		BuildRecords:       b.BuildRecords.Load(),
		QueryCount:         b.QueryCount.Load(),
		QueryErrors:        b.QueryErrors.Load(),
		QueryAvgNanos:      b.getAvgQueryNanos(),
		IndexLookups:       b.IndexLookups.Load(),
		FullScans:          b.FullScans.Load(),
		RecordsScanned:     b.RecordsScanned.Load(),
		RecordsMatched:     b.RecordsMatched.Load(),
		ReinitializeCount:  b.ReinitializeCount.Load(),
		ReinitializeErrors: b.ReinitializeErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	BuildCount         int64
	BuildErrors        int64
	BuildRecords       int64
	QueryCount         int64
	QueryErrors        int64
	QueryAvgNanos      int64
	IndexLookups       int64
	FullScans          int64
	RecordsScanned     int64
	RecordsMatched     int64
	ReinitializeCount  int64
	ReinitializeErrors int64
}
