package resource

import (
	"context"
	"io"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentScans is the maximum number of full scans running at once.
	// If 0, defaults to 1.
	MaxConcurrentScans int64

	// IOLimitBytesPerSec is the maximum read throughput of a single scan over
	// the source dataset. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller bounds full scans (concurrency and source bandwidth).
type Controller struct {
	cfg Config

	scanSem   *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentScans <= 0 {
		cfg.MaxConcurrentScans = 1
	}

	c := &Controller{
		cfg:     cfg,
		scanSem: semaphore.NewWeighted(cfg.MaxConcurrentScans),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireScan reserves a scan slot. Blocks until a slot is free or ctx is done.
func (c *Controller) AcquireScan(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.scanSem.Acquire(ctx, 1)
}

// TryAcquireScan reserves a scan slot without blocking.
func (c *Controller) TryAcquireScan() bool {
	if c == nil {
		return true
	}
	return c.scanSem.TryAcquire(1)
}

// ReleaseScan releases a scan slot.
func (c *Controller) ReleaseScan() {
	if c == nil {
		return
	}
	c.scanSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}

// LimitReader wraps r so that reads are throttled by the IO limit.
// Without a limit r is returned unchanged.
func (c *Controller) LimitReader(ctx context.Context, r io.Reader) io.Reader {
	if c == nil || c.ioLimiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, c: c, burst: c.ioLimiter.Burst()}
}

type limitedReader struct {
	ctx   context.Context
	r     io.Reader
	c     *Controller
	burst int
}

func (l *limitedReader) Read(p []byte) (int, error) {
	// WaitN rejects requests larger than the burst.
	if len(p) > l.burst {
		p = p[:l.burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.c.AcquireIO(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
