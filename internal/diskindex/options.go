package diskindex

import (
	"log/slog"

	"github.com/hupe1980/tripdb/codec"
	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/internal/fs"
)

// Durability controls when inserts are fsync'd.
type Durability int

const (
	// DurabilitySync fsyncs the store and the table after every insert.
	DurabilitySync Durability = iota
	// DurabilityBatch fsyncs every SyncEvery inserts and on Close.
	DurabilityBatch
	// DurabilityAsync leaves flushing to the OS until Sync or Close.
	DurabilityAsync
)

func (d Durability) String() string {
	switch d {
	case DurabilitySync:
		return "sync"
	case DurabilityBatch:
		return "batch"
	case DurabilityAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Options configures an Index.
type Options struct {
	FS fs.FileSystem
	// Durability applies to Insert. Build always syncs in batches.
	Durability Durability
	// SyncEvery is the batch size for DurabilityBatch and Build.
	SyncEvery int
	// InitialCapacity is a hint for the expected number of entries.
	InitialCapacity int
	// Codec and Compression apply to newly created record stores.
	Codec       codec.Codec
	Compression compress.Type
	// ProgressEvery controls how often Build logs progress. Zero disables it.
	ProgressEvery int
	Logger        *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		FS:            fs.Default,
		Durability:    DurabilityBatch,
		SyncEvery:     4096,
		Codec:         codec.Default,
		Compression:   compress.None,
		ProgressEvery: 100_000,
		Logger:        slog.New(slog.DiscardHandler),
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.FS == nil {
		o.FS = d.FS
	}
	if o.SyncEvery <= 0 {
		o.SyncEvery = d.SyncEvery
	}
	if o.Codec == nil {
		o.Codec = d.Codec
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
}
