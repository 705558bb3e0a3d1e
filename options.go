package tripdb

import (
	"log/slog"

	"github.com/hupe1980/tripdb/codec"
	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/internal/diskindex"
)

// DefaultDir is the index directory used when WithDir is not given.
const DefaultDir = "tmp/tripdb"

// Durability controls when index inserts reach stable storage.
type Durability = diskindex.Durability

const (
	DurabilitySync  = diskindex.DurabilitySync
	DurabilityBatch = diskindex.DurabilityBatch
	DurabilityAsync = diskindex.DurabilityAsync
)

// Compression selects the block compression of stored records.
type Compression = compress.Type

const (
	CompressionNone = compress.None
	CompressionLZ4  = compress.LZ4
	CompressionZSTD = compress.ZSTD
)

type options struct {
	dir                string
	logger             *Logger
	metricsCollector   MetricsCollector
	workers            int
	batchSize          int
	durability         Durability
	syncEvery          int
	codec              codec.Codec
	compression        Compression
	maxConcurrentScans int64
	ioLimit            int64
	progressEvery      int
}

// Option configures Open.
type Option func(*options)

// WithDir sets the directory that holds the index generations.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := tripdb.NewJSONLogger(slog.LevelInfo)
//	db, _ := tripdb.Open(ctx, store, "trips.csv", tripdb.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to disable metrics.
//
//	metrics := &tripdb.BasicMetricsCollector{}
//	db, _ := tripdb.Open(ctx, store, "trips.csv", tripdb.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithWorkers filters full-scan batches on n goroutines. Results keep source
// order. n <= 1 scans sequentially.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithBatchSize sets the number of records per batch in sharded scans.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

// WithDurability sets the fsync policy used while building the index.
// syncEvery applies to DurabilityBatch; zero keeps the default.
func WithDurability(d Durability, syncEvery int) Option {
	return func(o *options) {
		o.durability = d
		o.syncEvery = syncEvery
	}
}

// WithCodec sets the record payload codec. If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression sets the block compression of stored records.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMaxConcurrentScans bounds the number of full scans running at once.
func WithMaxConcurrentScans(n int64) Option {
	return func(o *options) {
		o.maxConcurrentScans = n
	}
}

// WithIOLimit bounds source read throughput per scan, in bytes per second.
// Zero is unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithProgressEvery logs build progress every n records. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(o *options) {
		o.progressEvery = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		dir:                DefaultDir,
		logger:             NoopLogger(),
		metricsCollector:   NoopMetricsCollector{},
		durability:         DurabilityBatch,
		codec:              codec.Default,
		compression:        CompressionNone,
		maxConcurrentScans: 4,
		progressEvery:      100_000,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	return o
}
