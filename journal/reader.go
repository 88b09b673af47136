package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/andreyvit/griddb/mmap"
	"github.com/cespare/xxhash/v2"
)

// Record is a committed journal record.
type Record struct {
	Segment uint32
	// Seq numbers records across the journal, starting at 1.
	Seq       uint64
	Timestamp uint32
	Data      []byte
}

// Replay calls fn for every committed record of the journal in dir, in the
// order they were written. Only FileName and JournalInvariant of o are used.
//
// A segment with a damaged header is skipped; a segment with a damaged or
// uncommitted tail is read up to its last good commit. An error returned by
// fn stops the replay and is returned as is. A missing dir holds no records.
func Replay(dir string, o Options, fn func(Record) error) error {
	o.setDefaults()
	prefix, suffix, _ := strings.Cut(o.FileName, "*")
	segs, err := listSegments(dir, prefix, suffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("%s: %w", o.DebugName, err)
	}
	for _, seg := range segs {
		st, err := readSegmentFile(dir, seg, o.JournalInvariant, fn)
		if err == errCorruptedFile {
			continue
		} else if err != nil {
			return err
		}
		if st.torn {
			o.Logger.LogAttrs(o.Context, slog.LevelWarn, "journal: ignoring damaged tail", slog.String("jrnl", o.DebugName), slog.String("file", seg.name), slog.Int("offset", st.size))
		}
	}
	return nil
}

type segmentStats struct {
	records uint64
	lastSum uint64
	// size is the length of the verified part of the segment.
	size int
	// torn is set when bytes past the last commit failed to verify or were
	// never committed.
	torn bool
}

func readSegmentFile(dir string, seg segmentFile, inv [32]byte, fn func(Record) error) (segmentStats, error) {
	f, err := os.Open(filepath.Join(dir, seg.name))
	if err != nil {
		return segmentStats{}, err
	}
	defer f.Close()

	data, err := mmap.Map(f, mmap.Sequential)
	if err != nil {
		return segmentStats{}, err
	}
	defer mmap.Unmap(data)

	return readSegment(data, seg, inv, fn)
}

func readSegment(data []byte, seg segmentFile, inv [32]byte, fn func(Record) error) (segmentStats, error) {
	var st segmentStats
	var h segmentHeader
	if err := decodeHeader(data, &h, seg.seq, inv); err != nil {
		return st, err
	}

	var hash xxhash.Digest
	hash.Reset()
	hash.Write(data[:segmentHeaderSize])
	pos := segmentHeaderSize
	st.size = pos

	ts := h.Timestamp
	var pending []Record
	for pos < len(data) {
		if data[pos]&recordFlagCommit != 0 {
			if len(data)-pos < 8 {
				break
			}
			marker := data[pos : pos+8]
			hash.Write(data[st.size:pos])
			want := hash.Sum64() | uint64(recordFlagCommit)
			if binary.LittleEndian.Uint64(marker) != want {
				break
			}
			hash.Write(marker)
			pos += 8
			st.size = pos
			st.lastSum = want
			for _, r := range pending {
				r.Seq = seg.firstRec + st.records
				st.records++
				if fn != nil {
					if err := fn(r); err != nil {
						return st, err
					}
				}
			}
			pending = pending[:0]
			continue
		}

		v, n := binary.Uvarint(data[pos:])
		if n <= 0 {
			break
		}
		size := v >> recordFlagShift
		p := pos + n
		delta, n := binary.Uvarint(data[p:])
		if n <= 0 || delta > math.MaxUint32 {
			break
		}
		p += n
		if size > uint64(len(data)-p) {
			break
		}
		ts += uint32(delta)
		r := Record{Segment: seg.seq, Timestamp: ts}
		if fn != nil {
			// the mapping goes away once the segment is read
			r.Data = bytes.Clone(data[p : p+int(size)])
		}
		pending = append(pending, r)
		pos = p + int(size)
	}
	st.torn = st.size < len(data)
	return st, nil
}

func decodeHeader(data []byte, h *segmentHeader, expectedSeq uint32, inv [32]byte) error {
	if len(data) < segmentHeaderSize {
		return errCorruptedFile
	}
	n, err := binary.Decode(data[:segmentHeaderSize], binary.LittleEndian, h)
	if err != nil {
		panic(err)
	}
	if n != segmentHeaderSize {
		panic("internal size mismatch")
	}

	if h.Magic != magic {
		return errCorruptedFile
	}
	if xxhash.Sum64(data[:segmentHeaderSize-8]) != h.Checksum {
		return errCorruptedFile
	}
	if expectedSeq != h.SegmentOrdinal {
		return errCorruptedFile
	}
	if h.Version > version0 {
		return ErrUnsupportedVersion
	}
	if h.JournalInvariant != inv {
		return ErrIncompatible
	}
	return nil
}
