package compress

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format is the container format of a source file.
type Format int

const (
	FormatRaw Format = iota
	FormatGzip
	FormatZstd
	FormatLZ4
)

// DetectFormat infers the container format from the file extension.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return FormatGzip
	case ".zst", ".zstd":
		return FormatZstd
	case ".lz4":
		return FormatLZ4
	default:
		return FormatRaw
	}
}

// NewReader wraps r with a decompressor for f. Closing the returned reader
// releases decoder resources but does not close r.
func NewReader(r io.Reader, f Format) (io.ReadCloser, error) {
	switch f {
	case FormatGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case FormatZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	case FormatLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
