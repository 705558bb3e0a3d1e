package recordstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/tripdb/codec"
	"github.com/hupe1980/tripdb/internal/compress"
)

const (
	magic   = "TRIPRECS" // 8 bytes
	version = 1

	// magic + version + compression + codec name length
	fixedHeaderSize = 8 + 4 + 1 + 1

	// frame: [payload length u32][crc32c u32][body]
	frameLenSize = 4
	crcSize      = 4

	// DefaultMaxFrameSize bounds a single frame payload.
	DefaultMaxFrameSize = 1 << 20
)

var (
	// ErrCorrupt is returned when a header or frame does not verify.
	ErrCorrupt = errors.New("recordstore: corrupt data")
	// ErrReadOnly is returned by mutating calls on a read-only store.
	ErrReadOnly = errors.New("recordstore: read-only")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("recordstore: closed")
	// ErrIncompatibleVersion is returned for stores written by a newer format.
	ErrIncompatibleVersion = errors.New("recordstore: incompatible version")
)

type header struct {
	compression compress.Type
	codec       codec.Codec
}

func (h header) size() int64 {
	return int64(fixedHeaderSize + len(h.codec.Name()))
}

func (h header) encode() []byte {
	name := h.codec.Name()
	buf := make([]byte, fixedHeaderSize+len(name))
	copy(buf[0:8], magic)
	binary.LittleEndian.PutUint32(buf[8:12], version)
	buf[12] = byte(h.compression)
	buf[13] = byte(len(name))
	copy(buf[fixedHeaderSize:], name)
	return buf
}

// decodeHeader parses a header from the start of data. data may be longer
// than the header.
func decodeHeader(data []byte) (header, error) {
	if len(data) < fixedHeaderSize {
		return header{}, fmt.Errorf("%w: header truncated (%d bytes)", ErrCorrupt, len(data))
	}
	if string(data[0:8]) != magic {
		return header{}, fmt.Errorf("%w: invalid magic %q", ErrCorrupt, data[0:8])
	}
	if v := binary.LittleEndian.Uint32(data[8:12]); v != version {
		return header{}, fmt.Errorf("%w: version %d (expected %d)", ErrIncompatibleVersion, v, version)
	}
	comp := compress.Type(data[12])
	if !comp.Valid() {
		return header{}, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, data[12])
	}
	n := int(data[13])
	if len(data) < fixedHeaderSize+n {
		return header{}, fmt.Errorf("%w: header truncated", ErrCorrupt)
	}
	name := string(data[fixedHeaderSize : fixedHeaderSize+n])
	c, ok := codec.ByName(name)
	if !ok {
		return header{}, fmt.Errorf("%w: unknown codec %q", ErrCorrupt, name)
	}
	return header{compression: comp, codec: c}, nil
}
