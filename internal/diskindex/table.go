package diskindex

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/tripdb/internal/fs"
	"github.com/hupe1980/tripdb/internal/mmap"
)

// table is the open-addressed slot array, backed by a file (writable) or a
// memory mapping (read-only). Occupied and damaged slots are tracked in
// bitmaps so probing touches storage only for live slots.
type table struct {
	capacity uint64
	mask     uint64

	f fs.File
	m *mmap.Mapping

	occupied *roaring.Bitmap
	damaged  *roaring.Bitmap
}

func newTable(capacity uint64) *table {
	return &table{
		capacity: capacity,
		mask:     capacity - 1,
		occupied: roaring.New(),
		damaged:  roaring.New(),
	}
}

// createTableFile writes an empty table of the given capacity to path.
func createTableFile(fsys fs.FileSystem, path string, capacity uint64) (*table, error) {
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(tableSize(capacity)); err != nil {
		_ = f.Close()
		return nil, err
	}
	hdr := tableHeader{capacity: capacity}
	if _, err := f.WriteAt(hdr.encode(), 0); err != nil {
		_ = f.Close()
		return nil, err
	}
	t := newTable(capacity)
	t.f = f
	return t, nil
}

// openTableFile opens and validates an existing table for writing and loads
// the slot bitmaps.
func openTableFile(fsys fs.FileSystem, path string) (*table, tableHeader, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, tableHeader{}, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, tableHeader{}, err
	}
	buf := make([]byte, headerSize)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		_ = f.Close()
		return nil, tableHeader{}, err
	}
	hdr, err := decodeHeader(buf, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, tableHeader{}, err
	}

	t := newTable(hdr.capacity)
	t.f = f

	r := bufio.NewReaderSize(io.NewSectionReader(f, headerSize, int64(hdr.capacity)*slotSize), 256*1024)
	var sb [slotSize]byte
	for i := uint64(0); i < hdr.capacity; i++ {
		if _, err := io.ReadFull(r, sb[:]); err != nil {
			_ = f.Close()
			return nil, tableHeader{}, fmt.Errorf("diskindex: scan slots: %w", err)
		}
		t.classify(i, sb[:])
	}
	return t, hdr, nil
}

// mapTableFile memory-maps an existing table read-only.
func mapTableFile(path string) (*table, tableHeader, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, tableHeader{}, err
	}
	hdr, err := decodeHeader(m.Bytes(), m.Size())
	if err != nil {
		_ = m.Close()
		return nil, tableHeader{}, err
	}

	t := newTable(hdr.capacity)
	t.m = m
	data := m.Bytes()
	for i := uint64(0); i < hdr.capacity; i++ {
		off := slotOffset(i)
		t.classify(i, data[off:off+slotSize])
	}
	_ = m.Advise(mmap.AccessRandom)
	return t, hdr, nil
}

func (t *table) classify(i uint64, b []byte) {
	switch _, st := decodeSlot(b); st {
	case slotOccupied:
		t.occupied.Add(uint32(i))
	case slotDamaged:
		t.damaged.Add(uint32(i))
	}
}

func (t *table) count() int {
	return int(t.occupied.GetCardinality())
}

// used counts slots unavailable to new keys without a probe.
func (t *table) used() uint64 {
	return t.occupied.GetCardinality() + t.damaged.GetCardinality()
}

func (t *table) readSlot(i uint64) (slot, slotState, error) {
	off := slotOffset(i)
	if t.m != nil {
		b, err := t.m.Slice(off, slotSize)
		if err != nil {
			return slot{}, slotEmpty, err
		}
		s, st := decodeSlot(b)
		return s, st, nil
	}
	var b [slotSize]byte
	if _, err := t.f.ReadAt(b[:], off); err != nil {
		return slot{}, slotEmpty, err
	}
	s, st := decodeSlot(b[:])
	return s, st, nil
}

func (t *table) writeSlot(i uint64, s slot) error {
	var b [slotSize]byte
	s.encode(b[:])
	if _, err := t.f.WriteAt(b[:], slotOffset(i)); err != nil {
		return err
	}
	t.occupied.Add(uint32(i))
	t.damaged.Remove(uint32(i))
	return nil
}

func (t *table) clearSlot(i uint64) error {
	var b [slotSize]byte
	if _, err := t.f.WriteAt(b[:], slotOffset(i)); err != nil {
		return err
	}
	t.occupied.Remove(uint32(i))
	t.damaged.Remove(uint32(i))
	return nil
}

func (t *table) writeHeader(h tableHeader) error {
	h.capacity = t.capacity
	_, err := t.f.WriteAt(h.encode(), 0)
	return err
}

// probe walks the chain for h and calls match for each occupied slot with
// the same hash. It returns the matching slot index, or the first free slot
// when no match was found.
func (t *table) probe(h uint64, match func(s slot) (bool, error)) (idx uint64, found bool, err error) {
	free := int64(-1)
	i := h & t.mask
	for n := uint64(0); n < t.capacity; n++ {
		switch {
		case t.occupied.Contains(uint32(i)):
			s, st, err := t.readSlot(i)
			if err != nil {
				return 0, false, err
			}
			if st == slotOccupied && s.hash == h {
				ok, err := match(s)
				if err != nil {
					return 0, false, err
				}
				if ok {
					return i, true, nil
				}
			}
		case t.damaged.Contains(uint32(i)):
			if free < 0 {
				free = int64(i)
			}
		default:
			if free < 0 {
				free = int64(i)
			}
			return uint64(free), false, nil
		}
		i = (i + 1) & t.mask
	}
	if free >= 0 {
		return uint64(free), false, nil
	}
	return 0, false, ErrFull
}

func (t *table) sync() error {
	if t.f == nil {
		return nil
	}
	return t.f.Sync()
}

func (t *table) close() error {
	if t.m != nil {
		return t.m.Close()
	}
	if t.f != nil {
		return t.f.Close()
	}
	return nil
}
