// Package compress provides block compression for record frames and
// decompressing readers for source datasets.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm. The value is persisted in the
// record store header.
type Type uint8

const (
	// None stores blocks as-is.
	None Type = 0
	// LZ4 is fast block compression.
	LZ4 Type = 1
	// ZSTD trades speed for ratio.
	ZSTD Type = 2
)

// ErrCorrupt is returned when a block cannot be decoded.
var ErrCorrupt = errors.New("compress: corrupt block")

// String returns the algorithm name.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known algorithm.
func (t Type) Valid() bool { return t <= ZSTD }

// ParseType resolves an algorithm name.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("compress: unknown type %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block format: [uncompressed size u32][compressed size u32][data].
// A compressed size of 0 marks a block stored uncompressed.
const blockHeaderSize = 8

// AppendBlock compresses data with t and appends the framed block to dst.
// With None, data is appended without a block header.
func AppendBlock(dst, data []byte, t Type) ([]byte, error) {
	if t == None {
		return append(dst, data...), nil
	}

	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(data)))

	// Incompressible input is stored raw.
	if len(compressed) == 0 || len(compressed) >= len(data) {
		dst = append(dst, hdr[:]...)
		return append(dst, data...), nil
	}
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(compressed)))
	dst = append(dst, hdr[:]...)
	return append(dst, compressed...), nil
}

// DecodeBlock reverses AppendBlock. With None, block is returned unchanged.
func DecodeBlock(block []byte, t Type) ([]byte, error) {
	if t == None {
		return block, nil
	}
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorrupt, len(block))
	}

	rawSize := binary.LittleEndian.Uint32(block[0:])
	compSize := binary.LittleEndian.Uint32(block[4:])
	body := block[blockHeaderSize:]

	if compSize == 0 {
		if uint32(len(body)) != rawSize {
			return nil, fmt.Errorf("%w: raw size mismatch", ErrCorrupt)
		}
		return body, nil
	}
	if uint32(len(body)) != compSize {
		return nil, fmt.Errorf("%w: compressed size mismatch", ErrCorrupt)
	}

	out := make([]byte, rawSize)
	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return out, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		decoded, err := dec.DecodeAll(body, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}
}
