// Package stream decodes ride records from delimited text one row at a time
// with bounded memory.
package stream

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/tripdb/blobstore"
	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/internal/resource"
	"github.com/hupe1980/tripdb/model"
)

// DefaultBufferSize is the read buffer in front of the CSV tokenizer.
const DefaultBufferSize = 64 * 1024

type options struct {
	logger     *slog.Logger
	bufferSize int
	controller *resource.Controller
}

// Option configures a Stream.
type Option func(*options)

// WithLogger sets the logger used for skipped-row warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBufferSize overrides DefaultBufferSize.
func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithController throttles source reads through the IO budget of c.
// Only OpenSource applies it.
func WithController(c *resource.Controller) Option {
	return func(o *options) { o.controller = c }
}

// Stream is a forward-only record reader. It is not safe for concurrent use.
type Stream struct {
	r       *csv.Reader
	src     *countingReader
	logger  *slog.Logger
	closers []io.Closer

	header  bool
	err     error
	rows    atomic.Int64
	skipped atomic.Int64
}

// New creates a Stream over r. The first row is treated as a header and discarded.
func New(r io.Reader, optFns ...Option) *Stream {
	opts := options{
		logger:     slog.New(slog.DiscardHandler),
		bufferSize: DefaultBufferSize,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	src := &countingReader{r: r}
	cr := csv.NewReader(bufio.NewReaderSize(src, opts.bufferSize))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	return &Stream{
		r:      cr,
		src:    src,
		logger: opts.logger,
	}
}

// OpenSource opens name in store and returns a Stream over its decompressed
// content. The compression format is inferred from the name's extension.
func OpenSource(ctx context.Context, store blobstore.BlobStore, name string, optFns ...Option) (*Stream, error) {
	var opts options
	for _, fn := range optFns {
		fn(&opts)
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("stream: open %s: %w", name, err)
	}
	raw, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		_ = blob.Close()
		return nil, fmt.Errorf("stream: read %s: %w", name, err)
	}

	var r io.Reader = raw
	if opts.controller != nil {
		r = opts.controller.LimitReader(ctx, r)
	}

	dec, err := compress.NewReader(r, compress.DetectFormat(name))
	if err != nil {
		_ = raw.Close()
		_ = blob.Close()
		return nil, fmt.Errorf("stream: decompress %s: %w", name, err)
	}

	s := New(dec, optFns...)
	s.closers = []io.Closer{dec, raw, blob}
	return s, nil
}

// Next returns the next well-formed record, or io.EOF when the input is
// exhausted. Malformed rows are skipped. Any other error is sticky.
func (s *Stream) Next() (model.Record, error) {
	if s.err != nil {
		return model.Record{}, s.err
	}

	for {
		row, err := s.r.Read()
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if !s.header {
					s.header = true
					continue
				}
				s.rows.Add(1)
				s.skip(perr.StartLine, 0, err)
				continue
			}
			s.err = err
			return model.Record{}, err
		}

		if !s.header {
			s.header = true
			continue
		}

		s.rows.Add(1)
		rec, err := model.FromRow(row)
		if err != nil {
			line, _ := s.r.FieldPos(0)
			s.skip(line, len(row), err)
			continue
		}
		return rec, nil
	}
}

func (s *Stream) skip(line, fields int, err error) {
	s.skipped.Add(1)
	s.logger.Warn("skipping malformed row",
		slog.Int("line", line),
		slog.Int("fields", fields),
		slog.String("error", err.Error()),
	)
}

// Rows returns the number of data rows read so far, including skipped ones.
func (s *Stream) Rows() int64 { return s.rows.Load() }

// Skipped returns the number of malformed rows skipped so far.
func (s *Stream) Skipped() int64 { return s.skipped.Load() }

// BytesRead returns the number of (decompressed) bytes consumed so far.
func (s *Stream) BytesRead() int64 { return s.src.n.Load() }

// Close releases the underlying source, if the Stream owns one.
func (s *Stream) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
