package recordstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/tripdb/codec"
	"github.com/hupe1980/tripdb/internal/compress"
	"github.com/hupe1980/tripdb/internal/fs"
	"github.com/hupe1980/tripdb/internal/hash"
	"github.com/hupe1980/tripdb/internal/mmap"
	"github.com/hupe1980/tripdb/model"
)

// Options configures a Store.
type Options struct {
	// Codec encodes records. Only used by Create; Open reads it from the header.
	Codec codec.Codec
	// Compression is applied to every frame body. Only used by Create.
	Compression compress.Type
	// MaxFrameSize bounds a frame payload. Default: DefaultMaxFrameSize.
	MaxFrameSize int
	// SkipRecovery trusts the file length on Open instead of scanning for a
	// torn tail. Set it only when the store is known to be cleanly closed.
	SkipRecovery bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Codec:        codec.Default,
		Compression:  compress.None,
		MaxFrameSize: DefaultMaxFrameSize,
	}
}

func (o *Options) normalize() {
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
}

// Store is an append-only file of record frames.
//
// A writable Store has a single writer; Read is safe to call concurrently
// with Append. A read-only Store serves reads from a memory mapping without
// locking.
type Store struct {
	mu   sync.Mutex
	path string
	hdr  header
	max  int

	file fs.File
	bw   *bufio.Writer
	size int64 // logical end including buffered bytes

	m      *mmap.Mapping
	closed bool

	scratch []byte
}

// Create creates or truncates the store at path and writes a fresh header.
func Create(fsys fs.FileSystem, path string, opts Options) (*Store, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	opts.normalize()
	if !opts.Compression.Valid() {
		return nil, fmt.Errorf("recordstore: unknown compression %d", opts.Compression)
	}

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	hdr := header{compression: opts.Compression, codec: opts.Codec}
	buf := hdr.encode()
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return nil, err
	}

	return newWritable(path, f, hdr, opts.MaxFrameSize, int64(len(buf))), nil
}

// Open opens an existing store for appending. Unless SkipRecovery is set,
// the frames are scanned and any torn tail is truncated.
func Open(fsys fs.FileSystem, path string, opts Options) (*Store, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	opts.normalize()

	f, err := fsys.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	hdr, size, err := readHeader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	s := newWritable(path, f, hdr, opts.MaxFrameSize, size)
	if !opts.SkipRecovery {
		if err := s.recover(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return s, nil
}

// OpenReadOnly memory-maps the store at path.
func OpenReadOnly(path string, opts Options) (*Store, error) {
	opts.normalize()

	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(m.Bytes())
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)

	return &Store{
		path: path,
		hdr:  hdr,
		max:  opts.MaxFrameSize,
		m:    m,
		size: m.Size(),
	}, nil
}

func newWritable(path string, f fs.File, hdr header, maxFrame int, size int64) *Store {
	return &Store{
		path: path,
		hdr:  hdr,
		max:  maxFrame,
		file: f,
		bw:   bufio.NewWriterSize(&offsetWriter{f: f, off: size}, 64*1024),
		size: size,
	}
}

func readHeader(f fs.File) (header, int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return header{}, 0, err
	}
	buf := make([]byte, fixedHeaderSize+255)
	n, err := f.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return header{}, 0, err
	}
	hdr, err := decodeHeader(buf[:n])
	if err != nil {
		return header{}, 0, err
	}
	return hdr, fi.Size(), nil
}

// offsetWriter writes sequentially at an explicit offset, so appends do not
// depend on the file's seek position.
type offsetWriter struct {
	f   fs.File
	off int64
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, w.off)
	w.off += int64(n)
	return n, err
}

// Path returns the file path.
func (s *Store) Path() string { return s.path }

// Codec returns the record codec recorded in the header.
func (s *Store) Codec() codec.Codec { return s.hdr.codec }

// Compression returns the frame compression recorded in the header.
func (s *Store) Compression() compress.Type { return s.hdr.compression }

// DataOffset is the offset of the first frame.
func (s *Store) DataOffset() int64 { return s.hdr.size() }

// Size returns the logical size in bytes, including unflushed appends.
func (s *Store) Size() int64 {
	if s.m != nil {
		return s.size
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// ReadOnly reports whether the store was opened with OpenReadOnly.
func (s *Store) ReadOnly() bool { return s.m != nil }

// Append encodes rec as a new frame and returns its offset. The frame is
// buffered; call Sync to make it durable.
func (s *Store) Append(rec *model.Record) (int64, error) {
	if s.m != nil {
		return 0, ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	frame, err := s.encodeFrame(rec)
	if err != nil {
		return 0, err
	}

	off := s.size
	if _, err := s.bw.Write(frame); err != nil {
		return 0, err
	}
	s.size += int64(len(frame))
	return off, nil
}

func (s *Store) encodeFrame(rec *model.Record) ([]byte, error) {
	body, err := codec.AppendMarshal(s.hdr.codec, s.scratch[:0], rec)
	if err != nil {
		return nil, fmt.Errorf("recordstore: encode: %w", err)
	}
	s.scratch = body

	frame := make([]byte, frameLenSize+crcSize, frameLenSize+crcSize+len(body)+16)
	frame, err = compress.AppendBlock(frame, body, s.hdr.compression)
	if err != nil {
		return nil, err
	}

	payloadLen := len(frame) - frameLenSize
	if payloadLen > s.max {
		return nil, fmt.Errorf("recordstore: frame of %d bytes exceeds limit %d", payloadLen, s.max)
	}
	binary.LittleEndian.PutUint32(frame[0:4], uint32(payloadLen))
	binary.LittleEndian.PutUint32(frame[4:8], hash.CRC32C(frame[frameLenSize+crcSize:]))
	return frame, nil
}

// Read decodes the record stored at off.
func (s *Store) Read(off int64) (model.Record, error) {
	payload, err := s.readPayload(off)
	if err != nil {
		return model.Record{}, err
	}
	return s.decodePayload(off, payload)
}

func (s *Store) decodePayload(off int64, payload []byte) (model.Record, error) {
	body := payload[crcSize:]
	if hash.CRC32C(body) != binary.LittleEndian.Uint32(payload[:crcSize]) {
		return model.Record{}, fmt.Errorf("%w: checksum mismatch at offset %d", ErrCorrupt, off)
	}
	raw, err := compress.DecodeBlock(body, s.hdr.compression)
	if err != nil {
		return model.Record{}, fmt.Errorf("%w: offset %d: %v", ErrCorrupt, off, err)
	}
	var rec model.Record
	if err := s.hdr.codec.Unmarshal(raw, &rec); err != nil {
		return model.Record{}, fmt.Errorf("%w: decode at offset %d: %v", ErrCorrupt, off, err)
	}
	return rec, nil
}

// readPayload returns the checksum and body of the frame at off. The result
// aliases the mapping for read-only stores.
func (s *Store) readPayload(off int64) ([]byte, error) {
	if s.m != nil {
		return s.readMapped(off)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if off < s.hdr.size() || off+frameLenSize > s.size {
		return nil, fmt.Errorf("%w: offset %d out of range", ErrCorrupt, off)
	}
	if s.bw.Buffered() > 0 {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
	}

	var lenBuf [frameLenSize]byte
	if _, err := s.file.ReadAt(lenBuf[:], off); err != nil {
		return nil, err
	}
	n, err := s.checkLen(off, binary.LittleEndian.Uint32(lenBuf[:]))
	if err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if _, err := s.file.ReadAt(payload, off+frameLenSize); err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Store) readMapped(off int64) ([]byte, error) {
	lenBuf, err := s.m.Slice(off, frameLenSize)
	if errors.Is(err, mmap.ErrClosed) {
		return nil, ErrClosed
	}
	if err != nil || off < s.hdr.size() {
		return nil, fmt.Errorf("%w: offset %d out of range", ErrCorrupt, off)
	}
	n, err := s.checkLen(off, binary.LittleEndian.Uint32(lenBuf))
	if err != nil {
		return nil, err
	}
	return s.m.Slice(off+frameLenSize, n)
}

func (s *Store) checkLen(off int64, n uint32) (int, error) {
	if n < crcSize || int(n) > s.max || off+frameLenSize+int64(n) > s.size {
		return 0, fmt.Errorf("%w: bad frame length %d at offset %d", ErrCorrupt, n, off)
	}
	return int(n), nil
}

// scan calls fn for every frame in file order. Scanning stops at the first
// error, which is returned.
func (s *Store) scan(fn func(off int64, rec model.Record) error) error {
	end := s.Size()
	for off := s.hdr.size(); off < end; {
		payload, err := s.readPayload(off)
		if err != nil {
			return err
		}
		rec, err := s.decodePayload(off, payload)
		if err != nil {
			return err
		}
		if err := fn(off, rec); err != nil {
			return err
		}
		off += frameLenSize + int64(len(payload))
	}
	return nil
}

// recover truncates the file after the last frame that verifies.
func (s *Store) recover() error {
	good := s.hdr.size()
	var lenBuf [frameLenSize]byte
	for good < s.size {
		if _, err := s.file.ReadAt(lenBuf[:], good); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n < crcSize || int(n) > s.max || good+frameLenSize+int64(n) > s.size {
			break
		}
		payload := make([]byte, n)
		if _, err := s.file.ReadAt(payload, good+frameLenSize); err != nil {
			break
		}
		if hash.CRC32C(payload[crcSize:]) != binary.LittleEndian.Uint32(payload[:crcSize]) {
			break
		}
		good += frameLenSize + int64(n)
	}

	if good == s.size {
		return nil
	}
	if err := s.file.Truncate(good); err != nil {
		return fmt.Errorf("recordstore: truncate torn tail: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	s.size = good
	s.bw.Reset(&offsetWriter{f: s.file, off: good})
	return nil
}

func (s *Store) flushLocked() error {
	return s.bw.Flush()
}

// Flush hands buffered frames to the OS without fsync.
func (s *Store) Flush() error {
	if s.m != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

// Sync flushes buffered frames and fsyncs the file.
func (s *Store) Sync() error {
	if s.m != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close syncs (when writable) and releases the store. It is idempotent.
func (s *Store) Close() error {
	if s.m != nil {
		return s.m.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.flushLocked(); err != nil {
		errs = append(errs, err)
	} else if err := s.file.Sync(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, s.file.Close())
	return errors.Join(errs...)
}
