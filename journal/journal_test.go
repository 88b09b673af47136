package journal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func setup(t testing.TB, o Options) (string, Options, *testClock) {
	clock := &testClock{now: testStart}
	o.FileName = "j*.wal"
	o.Now = clock.Now
	return t.TempDir(), o, clock
}

func replayAll(t testing.TB, dir string, o Options) []Record {
	t.Helper()
	var recs []Record
	err := Replay(dir, o, func(r Record) error {
		recs = append(recs, r)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	return recs
}

func datas(recs []Record) []string {
	var r []string
	for _, rec := range recs {
		r = append(r, string(rec.Data))
	}
	return r
}

func seqs(recs []Record) []uint64 {
	var r []uint64
	for _, rec := range recs {
		r = append(r, rec.Seq)
	}
	return r
}

func fileNames(t testing.TB, dir string) []string {
	var names []string
	for _, ent := range must(os.ReadDir(dir)) {
		names = append(names, ent.Name())
	}
	return names
}

func TestJournal_trivial(t *testing.T) {
	dir, o, clock := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("hello")))
	ensure(j.WriteRecord(0, []byte("w")))
	clock.Advance(1000 * time.Second)
	ensure(j.WriteRecord(0, []byte("orld")))
	ensure(j.Commit())
	ensure(j.Close())

	deepEq(t, fileNames(t, dir), []string{"j000000000001-20240101T000000-0000000000000001.wal"})

	recs := replayAll(t, dir, o)
	deepEq(t, datas(recs), []string{"hello", "w", "orld"})
	deepEq(t, seqs(recs), []uint64{1, 2, 3})
	ts := uint32(testStart.Unix())
	deepEq(t, []uint32{recs[0].Timestamp, recs[1].Timestamp, recs[2].Timestamp}, []uint32{ts, ts, ts + 1000})
	deepEq(t, recs[2].Segment, uint32(1))
}

func TestJournal_recordLayout(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("abc")))
	ensure(j.Commit())
	ensure(j.Close())

	data := must(os.ReadFile(filepath.Join(dir, fileNames(t, dir)[0])))
	deepEq(t, len(data), segmentHeaderSize+2+3+8)
	deepEq(t, string(data[:8]), "JOURNLAT")
	deepEq(t, data[segmentHeaderSize:segmentHeaderSize+5], []byte{6, 0, 'a', 'b', 'c'})
	deepEq(t, data[segmentHeaderSize+5]&recordFlagCommit, recordFlagCommit)
}

func TestJournal_uncommittedTailDropped(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.Commit())
	ensure(j.WriteRecord(0, []byte("b")))
	ensure(j.WriteRecord(0, []byte("c")))
	ensure(j.Close())

	deepEq(t, datas(replayAll(t, dir, o)), []string{"a"})
}

func TestJournal_corruptionStopsSegment(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("first")))
	ensure(j.Commit())
	ensure(j.WriteRecord(0, []byte("second")))
	ensure(j.Commit())
	ensure(j.WriteRecord(0, []byte("third")))
	ensure(j.Commit())
	ensure(j.Close())

	fn := filepath.Join(dir, fileNames(t, dir)[0])
	data := must(os.ReadFile(fn))
	i := bytes.Index(data, []byte("second"))
	data[i] ^= 0xFF
	ensure(os.WriteFile(fn, data, 0o644))

	deepEq(t, datas(replayAll(t, dir, o)), []string{"first"})
}

func TestJournal_truncatedTail(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("first")))
	ensure(j.Commit())
	ensure(j.WriteRecord(0, []byte("second")))
	ensure(j.Commit())
	ensure(j.Close())

	fn := filepath.Join(dir, fileNames(t, dir)[0])
	data := must(os.ReadFile(fn))
	ensure(os.WriteFile(fn, data[:len(data)-3], 0o644))

	deepEq(t, datas(replayAll(t, dir, o)), []string{"first"})
}

func TestJournal_rotation(t *testing.T) {
	dir, o, _ := setup(t, Options{MaxFileSize: 200})
	j := must(Open(dir, o))
	var want []string
	for i := range 10 {
		s := strings.Repeat(string(rune('a'+i)), 50)
		want = append(want, s)
		ensure(j.WriteRecord(0, []byte(s)))
		ensure(j.Commit())
	}
	ensure(j.Close())

	names := fileNames(t, dir)
	deepEq(t, len(names), 5)
	deepEq(t, names[1], "j000000000002-20240101T000000-0000000000000003.wal")

	recs := replayAll(t, dir, o)
	deepEq(t, datas(recs), want)
	deepEq(t, seqs(recs), []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	deepEq(t, recs[9].Segment, uint32(5))
}

func TestJournal_reopenContinues(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.WriteRecord(0, []byte("b")))
	ensure(j.Commit())
	ensure(j.Close())

	j = must(Open(dir, o))
	deepEq(t, j.LastRecord(), uint64(2))
	ensure(j.WriteRecord(0, []byte("c")))
	ensure(j.Commit())
	ensure(j.Close())

	recs := replayAll(t, dir, o)
	deepEq(t, datas(recs), []string{"a", "b", "c"})
	deepEq(t, seqs(recs), []uint64{1, 2, 3})
	deepEq(t, []uint32{recs[0].Segment, recs[2].Segment}, []uint32{1, 2})
}

func TestJournal_reopenDeletesDamagedSegment(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.Commit())
	ensure(j.Close())

	bad := formatSegmentName("j", ".wal", 2, uint32(testStart.Unix()), 2)
	ensure(os.WriteFile(filepath.Join(dir, bad), []byte("garbage"), 0o644))

	j = must(Open(dir, o))
	deepEq(t, j.LastRecord(), uint64(1))
	ensure(j.Close())
	deepEq(t, len(fileNames(t, dir)), 1)
}

func TestJournal_incompatible(t *testing.T) {
	dir, o, _ := setup(t, Options{JournalInvariant: [32]byte{1}})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.Commit())
	ensure(j.Close())

	o.JournalInvariant = [32]byte{2}
	_, err := Open(dir, o)
	if !errors.Is(err, ErrIncompatible) {
		t.Errorf("** Open: got %v, wanted %v", err, ErrIncompatible)
	}
	err = Replay(dir, o, func(Record) error { return nil })
	if !errors.Is(err, ErrIncompatible) {
		t.Errorf("** Replay: got %v, wanted %v", err, ErrIncompatible)
	}
}

func TestJournal_closed(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.Close())
	ensure(j.Close())
	if err := j.WriteRecord(0, []byte("a")); err != ErrClosed {
		t.Errorf("** WriteRecord: got %v, wanted %v", err, ErrClosed)
	}
	if err := j.Commit(); err != ErrClosed {
		t.Errorf("** Commit: got %v, wanted %v", err, ErrClosed)
	}
}

func TestJournal_syncAndEmptyRecords(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.Sync())
	ensure(j.WriteRecord(0, nil))
	deepEq(t, len(fileNames(t, dir)), 0)
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.Sync())
	deepEq(t, datas(replayAll(t, dir, o)), []string{"a"})
	ensure(j.Close())
}

func TestReplay_callbackError(t *testing.T) {
	dir, o, _ := setup(t, Options{})
	j := must(Open(dir, o))
	ensure(j.WriteRecord(0, []byte("a")))
	ensure(j.WriteRecord(0, []byte("b")))
	ensure(j.Commit())
	ensure(j.Close())

	stop := errors.New("stop")
	var n int
	err := Replay(dir, o, func(Record) error {
		n++
		return stop
	})
	deepEq(t, err, stop)
	deepEq(t, n, 1)
}

func TestReplay_missingDir(t *testing.T) {
	_, o, _ := setup(t, Options{})
	deepEq(t, len(replayAll(t, filepath.Join(t.TempDir(), "none"), o)), 0)
}

func TestSegmentName(t *testing.T) {
	ts := uint32(testStart.Add(90 * time.Second).Unix())
	name := formatSegmentName("db-", ".wal", 42, ts, 0x1F)
	deepEq(t, name, "db-000000000042-20240101T000130-000000000000001f.wal")

	seq, ts2, id, err := parseSegmentName(strings.TrimSuffix(strings.TrimPrefix(name, "db-"), ".wal"))
	ensure(err)
	deepEq(t, []uint64{uint64(seq), uint64(ts2), id}, []uint64{42, uint64(ts), 0x1F})

	for _, bad := range []string{"", "x", "12-x-1", "12-20240101T000000-zz", "a-20240101T000000-1"} {
		if _, _, _, err := parseSegmentName(bad); err == nil {
			t.Errorf("** parseSegmentName(%q): got nil error", bad)
		}
	}
}

func deepEq[T any](t testing.TB, a, e T) bool {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
		return false
	}
	return true
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
