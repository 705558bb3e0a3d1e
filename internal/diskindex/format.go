package diskindex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/tripdb/internal/hash"
)

const (
	tableMagic   = "TRIPIDX1"
	tableVersion = 1

	headerSize = 64
	slotSize   = 24

	flagClean = 1 << 0

	minCapacity   = 1024
	maxCapacity   = 1 << 31 // slot numbers must fit the uint32 bitmaps
	maxLoadFactor = 0.7
)

var (
	// ErrCorrupt is returned when the table file is malformed.
	ErrCorrupt = errors.New("diskindex: corrupt table")
	// ErrReadOnly is returned by Insert on an index opened with OpenReadOnly.
	ErrReadOnly = errors.New("diskindex: read-only")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("diskindex: closed")
	// ErrFull is returned when the table cannot grow any further.
	ErrFull = errors.New("diskindex: table full")
)

// tableHeader layout (little endian):
//
//	[0:8]   magic
//	[8:12]  version
//	[12:16] slot size
//	[16:24] capacity
//	[24:32] count
//	[32:36] flags
//	[60:64] crc32c of [0:60]
type tableHeader struct {
	capacity uint64
	count    uint64
	clean    bool
}

func (h tableHeader) encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:8], tableMagic)
	binary.LittleEndian.PutUint32(buf[8:12], tableVersion)
	binary.LittleEndian.PutUint32(buf[12:16], slotSize)
	binary.LittleEndian.PutUint64(buf[16:24], h.capacity)
	binary.LittleEndian.PutUint64(buf[24:32], h.count)
	var flags uint32
	if h.clean {
		flags |= flagClean
	}
	binary.LittleEndian.PutUint32(buf[32:36], flags)
	binary.LittleEndian.PutUint32(buf[60:64], hash.CRC32C(buf[:60]))
	return buf
}

func decodeHeader(buf []byte, fileSize int64) (tableHeader, error) {
	if len(buf) < headerSize {
		return tableHeader{}, fmt.Errorf("%w: header truncated (%d bytes)", ErrCorrupt, len(buf))
	}
	if string(buf[0:8]) != tableMagic {
		return tableHeader{}, fmt.Errorf("%w: invalid magic %q", ErrCorrupt, buf[0:8])
	}
	if hash.CRC32C(buf[:60]) != binary.LittleEndian.Uint32(buf[60:64]) {
		return tableHeader{}, fmt.Errorf("%w: header checksum mismatch", ErrCorrupt)
	}
	if v := binary.LittleEndian.Uint32(buf[8:12]); v != tableVersion {
		return tableHeader{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	if s := binary.LittleEndian.Uint32(buf[12:16]); s != slotSize {
		return tableHeader{}, fmt.Errorf("%w: slot size %d", ErrCorrupt, s)
	}

	h := tableHeader{
		capacity: binary.LittleEndian.Uint64(buf[16:24]),
		count:    binary.LittleEndian.Uint64(buf[24:32]),
		clean:    binary.LittleEndian.Uint32(buf[32:36])&flagClean != 0,
	}
	if h.capacity == 0 || h.capacity&(h.capacity-1) != 0 || h.capacity > maxCapacity {
		return tableHeader{}, fmt.Errorf("%w: capacity %d is not a power of two", ErrCorrupt, h.capacity)
	}
	if want := tableSize(h.capacity); fileSize != want {
		return tableHeader{}, fmt.Errorf("%w: file size %d, expected %d", ErrCorrupt, fileSize, want)
	}
	return h, nil
}

func tableSize(capacity uint64) int64 {
	return headerSize + int64(capacity)*slotSize
}

func slotOffset(i uint64) int64 {
	return headerSize + int64(i)*slotSize
}

type slotState int

const (
	slotEmpty slotState = iota
	slotOccupied
	slotDamaged
)

// slot layout: [0:8] key hash | [8:16] store offset | [16:20] reserved | [20:24] crc32c of [0:20].
// An all-zero slot is empty.
type slot struct {
	hash   uint64
	offset int64
}

func (s slot) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], s.hash)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(s.offset))
	binary.LittleEndian.PutUint32(buf[16:20], 0)
	binary.LittleEndian.PutUint32(buf[20:24], hash.CRC32C(buf[:20]))
}

func decodeSlot(buf []byte) (slot, slotState) {
	s := slot{
		hash:   binary.LittleEndian.Uint64(buf[0:8]),
		offset: int64(binary.LittleEndian.Uint64(buf[8:16])),
	}
	crc := binary.LittleEndian.Uint32(buf[20:24])
	if s.hash == 0 && s.offset == 0 && crc == 0 && binary.LittleEndian.Uint32(buf[16:20]) == 0 {
		return slot{}, slotEmpty
	}
	if s.hash == 0 || s.offset <= 0 || hash.CRC32C(buf[:20]) != crc {
		return slot{}, slotDamaged
	}
	return s, slotOccupied
}

// capacityFor returns the smallest power-of-two capacity that holds n
// entries under the load factor.
func capacityFor(n int) uint64 {
	c := uint64(minCapacity)
	for float64(n) > float64(c)*maxLoadFactor && c < maxCapacity {
		c <<= 1
	}
	return c
}
