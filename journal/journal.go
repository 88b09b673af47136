// Package journal implements append-only commit journals split into segment
// files.
//
// Records are appended by one writer and become visible to readers once a
// commit marker follows them. Several records written before one Commit form
// a single atomic batch. Segments rotate when they grow past MaxFileSize.
//
// # File format
//
//   - segment = header (record* commit)*
//   - header = magic:64 version:8 pad:8 flags:16 pad:32 ordinal:32 timestamp:32
//     prevChecksum:64 journalInvariant:256 reserved:64*7 checksum:64
//   - record = (size<<1):uvarint timestampDelta:uvarint bytes*
//   - commit = checksum:64, with the lowest bit set
//
// All integers are little-endian. The header checksum covers the header; the
// commit checksum is a running xxhash64 of everything before it in the
// segment. Readers deliver committed records only and stop reading a segment
// at the first byte that fails to verify.
//
// Segment files are named <prefix><ordinal>-<time>-<first record><suffix>.
package journal

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andreyvit/griddb/mmap"
	"github.com/cespare/xxhash/v2"
)

var (
	ErrIncompatible       = errors.New("incompatible journal")
	ErrUnsupportedVersion = errors.New("unsupported journal version")
	ErrClosed             = errors.New("journal is closed")
	errCorruptedFile      = errors.New("corrupted journal segment file")
)

type Options struct {
	Context     context.Context
	FileName    string // e.g. "mydb-*.wal"
	MaxFileSize int64  // new segment after this size
	DebugName   string
	Now         func() time.Time

	// JournalInvariant is stored in every segment header. Readers and
	// writers refuse segments carrying a different value.
	JournalInvariant [32]byte

	Logger  *slog.Logger
	Verbose bool
}

const DefaultMaxFileSize = 4 * 1024 * 1024

const (
	magic          = 0x54414c4e52554f4a // "JOURNLAT" as little-endian uint64
	version0 uint8 = 0
)

const segmentHeaderSize = 16 * 8

type segmentHeader struct {
	Magic            uint64
	Version          uint8
	_                uint8
	Flags            uint16
	_                uint32
	SegmentOrdinal   uint32
	Timestamp        uint32
	PrevChecksum     uint64
	JournalInvariant [32]byte
	_                [7]uint64
	Checksum         uint64
}

const (
	recordFlagCommit byte = 1
	recordFlagShift       = 1
	timestampFmt          = "20060102T150405"
)

func (o *Options) setDefaults() {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.FileName == "" {
		o.FileName = "*"
	}
	if o.DebugName == "" {
		o.DebugName = "journal"
	}
	if o.MaxFileSize == 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Journal is the writing side of a journal directory.
type Journal struct {
	opt    Options
	dir    string
	prefix string
	suffix string

	mu      sync.Mutex
	err     error
	closed  bool
	seg     uint32
	rec     uint64
	prevSum uint64
	sw      *segmentWriter
}

// Open prepares dir for appending, creating it if needed. A segment whose
// header is damaged is deleted. Writing always starts a new segment, so a
// torn tail left by a crash is never appended to.
func Open(dir string, o Options) (*Journal, error) {
	o.setDefaults()
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, fmt.Errorf("%s: %w", o.DebugName, err)
	}
	prefix, suffix, _ := strings.Cut(o.FileName, "*")
	j := &Journal{opt: o, dir: dir, prefix: prefix, suffix: suffix}

	for {
		segs, err := listSegments(dir, prefix, suffix)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.DebugName, err)
		}
		if len(segs) == 0 {
			break
		}
		last := segs[len(segs)-1]
		st, err := readSegmentFile(dir, last, o.JournalInvariant, nil)
		if err == errCorruptedFile {
			o.Logger.LogAttrs(o.Context, slog.LevelWarn, "journal: deleting corrupted file", slog.String("jrnl", o.DebugName), slog.String("file", last.name))
			if err := os.Remove(filepath.Join(dir, last.name)); err != nil {
				return nil, fmt.Errorf("%s: failed to delete corrupted file: %w", o.DebugName, err)
			}
			continue
		} else if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", o.DebugName, last.name, err)
		}
		j.seg = last.seq
		j.rec = last.firstRec + st.records - 1
		j.prevSum = st.lastSum
		break
	}
	j.logf("journal: OPEN %s segment=%d record=%d", dir, j.seg, j.rec)
	return j, nil
}

func (j *Journal) String() string {
	return j.opt.DebugName
}

// Now returns the current time as journal timestamps store it.
func (j *Journal) Now() uint32 {
	v := j.opt.Now().Unix()
	if v < 0 || uint64(v)&0xFFFF_FFFF_0000_0000 != 0 {
		panic(fmt.Sprintf("journal: time %d out of range", v))
	}
	return uint32(v)
}

// LastRecord returns the number of the last record written.
func (j *Journal) LastRecord() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rec
}

func (j *Journal) logf(format string, args ...any) {
	if j.opt.Verbose {
		j.opt.Logger.Log(j.opt.Context, slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}

// fail makes the first write error sticky: once a segment write fails, the
// state of the file is unknown.
func (j *Journal) fail(err error) error {
	if err == nil {
		return nil
	}
	j.opt.Logger.LogAttrs(j.opt.Context, slog.LevelError, "journal: failed", slog.String("jrnl", j.opt.DebugName), slog.Any("err", err))
	j.closeSegment()
	if j.err == nil {
		j.err = err
	}
	return err
}

func (j *Journal) usable() error {
	if j.closed {
		return ErrClosed
	}
	return j.err
}

// WriteRecord appends a record. A zero timestamp means now. The record is
// not visible to readers until Commit.
func (j *Journal) WriteRecord(timestamp uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.usable(); err != nil {
		return err
	}
	if timestamp == 0 {
		timestamp = j.Now()
	}

	j.rec++
	if j.sw == nil {
		j.seg++
		sw, err := startSegment(j, j.seg, timestamp, j.rec)
		if err != nil {
			return j.fail(err)
		}
		j.sw = sw
	}
	return j.fail(j.sw.writeRecord(timestamp, data))
}

// Commit appends a commit marker covering the records written since the
// previous one. The segment is rotated once it exceeds MaxFileSize.
func (j *Journal) Commit() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.usable(); err != nil {
		return err
	}
	if j.sw == nil {
		return nil
	}
	if err := j.sw.commit(); err != nil {
		return j.fail(err)
	}
	if j.sw.size >= j.opt.MaxFileSize {
		return j.fail(j.rotate())
	}
	return nil
}

// Sync commits and makes everything committed so far durable.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.usable(); err != nil {
		return err
	}
	if j.sw == nil {
		return nil
	}
	if err := j.sw.commit(); err != nil {
		return j.fail(err)
	}
	return j.fail(mmap.Fdatasync(j.sw.f))
}

// Rotate closes the current segment; the next record starts a new one.
func (j *Journal) Rotate() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.usable(); err != nil {
		return err
	}
	return j.fail(j.rotate())
}

func (j *Journal) rotate() error {
	if j.sw == nil {
		return nil
	}
	if err := j.sw.commit(); err != nil {
		return err
	}
	if err := mmap.Fdatasync(j.sw.f); err != nil {
		return err
	}
	j.logf("journal: ROTATE %s segment=%d size=%d", j.opt.DebugName, j.sw.seg, j.sw.size)
	j.prevSum = j.sw.lastSum
	j.closeSegment()
	return nil
}

func (j *Journal) closeSegment() {
	if j.sw != nil {
		j.sw.close()
		j.sw = nil
	}
}

// Close syncs the current segment and closes it. Records written after the
// last Commit are discarded by readers.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	var err error
	if j.sw != nil && j.err == nil {
		err = mmap.Fdatasync(j.sw.f)
	}
	j.closeSegment()
	return err
}

type segmentWriter struct {
	f           *os.File
	seg         uint32
	ts          uint32
	size        int64
	hash        xxhash.Digest
	uncommitted bool
	lastSum     uint64
}

func startSegment(j *Journal, seg, ts uint32, rec uint64) (*segmentWriter, error) {
	name := formatSegmentName(j.prefix, j.suffix, seg, ts, rec)

	f, err := os.OpenFile(filepath.Join(j.dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, err
	}

	var ok bool
	defer closeAndDeleteUnlessOK(f, &ok)

	sw := &segmentWriter{
		f:    f,
		seg:  seg,
		ts:   ts,
		size: segmentHeaderSize,
	}
	sw.hash.Reset()

	var hbuf [segmentHeaderSize]byte
	fillSegmentHeader(hbuf[:], j, seg, ts, &sw.hash)

	if _, err := f.Write(hbuf[:]); err != nil {
		return nil, err
	}

	j.logf("journal: SEGMENT %s", name)
	ok = true
	return sw, nil
}

const maxRecHeaderLen = binary.MaxVarintLen64 + binary.MaxVarintLen32

func (sw *segmentWriter) writeRecord(ts uint32, data []byte) error {
	var tsDelta uint32
	if ts > sw.ts {
		tsDelta = ts - sw.ts
		sw.ts = ts
	}
	sw.uncommitted = true

	var hbuf [maxRecHeaderLen]byte
	h := appendRecordHeader(hbuf[:0], len(data), tsDelta)

	sw.hash.Write(h)
	if _, err := sw.f.Write(h); err != nil {
		return err
	}
	sw.hash.Write(data)
	if _, err := sw.f.Write(data); err != nil {
		return err
	}
	sw.size += int64(len(h) + len(data))
	return nil
}

func (sw *segmentWriter) commit() error {
	if !sw.uncommitted {
		return nil
	}
	sw.uncommitted = false

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sw.hash.Sum64())
	buf[0] |= recordFlagCommit

	sw.hash.Write(buf[:])
	if _, err := sw.f.Write(buf[:]); err != nil {
		return err
	}
	sw.size += int64(len(buf))
	sw.lastSum = binary.LittleEndian.Uint64(buf[:])
	return nil
}

func (sw *segmentWriter) close() {
	if sw.f == nil {
		return
	}
	sw.f.Close()
	sw.f = nil
}

func closeAndDeleteUnlessOK(f *os.File, ok *bool) {
	if *ok {
		return
	}
	f.Close()
	os.Remove(f.Name())
}

func fillSegmentHeader(buf []byte, j *Journal, seg, ts uint32, hash *xxhash.Digest) {
	h := segmentHeader{
		Magic:            magic,
		Version:          version0,
		SegmentOrdinal:   seg,
		Timestamp:        ts,
		PrevChecksum:     j.prevSum,
		JournalInvariant: j.opt.JournalInvariant,
	}

	n, err := binary.Encode(buf, binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != len(buf) {
		panic("internal size mismatch")
	}

	hash.Write(buf[:segmentHeaderSize-8])
	binary.LittleEndian.PutUint64(buf[segmentHeaderSize-8:], hash.Sum64())
	hash.Write(buf[segmentHeaderSize-8 : segmentHeaderSize])
}

func appendRecordHeader(b []byte, size int, tsDelta uint32) []byte {
	b = binary.AppendUvarint(b, uint64(size)<<recordFlagShift)
	b = binary.AppendUvarint(b, uint64(tsDelta))
	return b
}

func formatSegmentName(prefix, suffix string, seq, ts uint32, id uint64) string {
	t := time.Unix(int64(uint64(ts)), 0).UTC()
	return fmt.Sprintf("%s%012d-%s-%016x%s", prefix, seq, t.Format(timestampFmt), id, suffix)
}

func parseSegmentName(name string) (seq, ts uint32, id uint64, err error) {
	seqStr, rem, ok := strings.Cut(name, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	v, err := strconv.ParseUint(seqStr, 10, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q (invalid segment number)", name)
	}
	seq = uint32(v)

	tsStr, idStr, ok := strings.Cut(rem, "-")
	if !ok {
		return 0, 0, 0, fmt.Errorf("invalid segment file name %q", name)
	}
	t, err := time.ParseInLocation(timestampFmt, tsStr, time.UTC)
	if err != nil {
		return seq, 0, 0, fmt.Errorf("invalid segment file name %q (invalid timestamp)", name)
	}
	ts = uint32(t.Unix())

	id, err = strconv.ParseUint(idStr, 16, 64)
	if err != nil {
		return seq, 0, 0, fmt.Errorf("invalid segment file name %q (invalid record identifier)", name)
	}
	return
}

type segmentFile struct {
	name     string
	seq      uint32
	ts       uint32
	firstRec uint64
}

// listSegments returns the segments of a journal in ordinal order. Files not
// matching the name pattern are ignored.
func listSegments(dir, prefix, suffix string) ([]segmentFile, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var segs []segmentFile
	for _, ent := range ents {
		if !ent.Type().IsRegular() {
			continue
		}
		name := ent.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) || len(name) < len(prefix)+len(suffix) {
			continue
		}
		seq, ts, id, err := parseSegmentName(name[len(prefix) : len(name)-len(suffix)])
		if err != nil {
			continue
		}
		segs = append(segs, segmentFile{name: name, seq: seq, ts: ts, firstRec: id})
	}
	slices.SortFunc(segs, func(a, b segmentFile) int {
		return cmp.Compare(a.seq, b.seq)
	})
	return segs, nil
}
