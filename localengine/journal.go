package localengine

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/griddb/journal"
)

// JournalOp is the kind of a journaled storage change.
type JournalOp uint8

const (
	JournalPut JournalOp = iota + 1
	JournalDelete
	// JournalDrop removes the rows of a container.
	JournalDrop
)

func (op JournalOp) String() string {
	switch op {
	case JournalPut:
		return "PUT"
	case JournalDelete:
		return "DELETE"
	case JournalDrop:
		return "DROP"
	default:
		return fmt.Sprintf("JournalOp(%d)", uint8(op))
	}
}

// JournalRecord is one committed write transaction.
type JournalRecord struct {
	Seq     uint64
	Time    time.Time
	Changes []JournalChange
}

// JournalChange describes a change for inspection. Container names are
// lowercased.
type JournalChange struct {
	Op        JournalOp
	Container string
	// Meta is set for changes to a container definition.
	Meta bool
	// Key is the row key as text, empty for Meta changes and drops.
	Key  string
	Size int
}

const journalFileName = "griddb-*.wal"

var journalInvariant = [32]byte{'g', 'r', 'i', 'd', 'd', 'b', '/', 'k', 'v', '1'}

// journalChange is the stored form of one storage change. A journal record
// holds the snappy-compressed msgpack array of a transaction's changes.
type journalChange struct {
	Op     JournalOp `msgpack:"o"`
	Bucket string    `msgpack:"b"`
	Sub    string    `msgpack:"s,omitempty"`
	Key    []byte    `msgpack:"k,omitempty"`
	Value  []byte    `msgpack:"v,omitempty"`
}

func (c *journalChange) public() JournalChange {
	jc := JournalChange{Op: c.Op, Size: len(c.Value)}
	switch c.Bucket {
	case metaBucket:
		jc.Container = string(c.Key)
		jc.Meta = true
	case rowsBucket:
		jc.Container = c.Sub
		if c.Op != JournalDrop {
			jc.Key = decodeKeyString(c.Key)
		}
	default:
		jc.Container = c.Bucket
	}
	return jc
}

// journalDirName turns a database path into a directory name.
func journalDirName(path string) string {
	name := filepath.Base(path)
	if strings.HasPrefix(path, memPrefix) {
		name = "mem-" + strings.TrimPrefix(path, memPrefix)
	}
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
}

func journalOptions(opt *Options, name string) journal.Options {
	return journal.Options{
		FileName:         journalFileName,
		MaxFileSize:      opt.JournalMaxFileSize,
		DebugName:        name,
		Now:              opt.Now,
		JournalInvariant: journalInvariant,
		Logger:           opt.Logger,
		Verbose:          opt.Verbose,
	}
}

// openJournal starts journaling commits when Options.JournalDir is set.
func (db *DB) openJournal() error {
	if db.opt.JournalDir == "" {
		return nil
	}
	dir := filepath.Join(db.opt.JournalDir, journalDirName(db.path))
	j, err := journal.Open(dir, journalOptions(&db.opt, "journal:"+db.path))
	if err != nil {
		return fmt.Errorf("localengine: %w", err)
	}
	db.journal = j
	db.journalDir = dir
	return nil
}

// JournalDir returns the directory receiving this database's journal, or ""
// when journaling is off.
func (db *DB) JournalDir() string {
	return db.journalDir
}

func (db *DB) appendJournal(changes []journalChange) error {
	data, err := msgpack.Marshal(changes)
	if err != nil {
		return internalErr(err, "encoding journal record")
	}
	if err := db.journal.WriteRecord(0, snappy.Encode(nil, data)); err != nil {
		return internalErr(err, "journal")
	}
	if err := db.journal.Commit(); err != nil {
		return internalErr(err, "journal")
	}
	db.logf("localengine: JOURNAL %d changes, record %d", len(changes), db.journal.LastRecord())
	return nil
}

// ReadJournal calls fn for every committed transaction in a journal
// directory, oldest first.
func ReadJournal(dir string, fn func(JournalRecord) error) error {
	return readJournal(dir, func(seq uint64, ts uint32, changes []journalChange) error {
		rec := JournalRecord{
			Seq:     seq,
			Time:    time.Unix(int64(ts), 0).UTC(),
			Changes: make([]JournalChange, len(changes)),
		}
		for i := range changes {
			rec.Changes[i] = changes[i].public()
		}
		return fn(rec)
	})
}

func readJournal(dir string, fn func(seq uint64, ts uint32, changes []journalChange) error) error {
	o := journal.Options{FileName: journalFileName, JournalInvariant: journalInvariant}
	return journal.Replay(dir, o, func(r journal.Record) error {
		data, err := snappy.Decode(nil, r.Data)
		if err != nil {
			return corruptedJournalErr(r.Seq, r.Data, err)
		}
		var changes []journalChange
		if err := msgpack.Unmarshal(data, &changes); err != nil {
			return corruptedJournalErr(r.Seq, data, err)
		}
		return fn(r.Seq, r.Timestamp, changes)
	})
}

func corruptedJournalErr(seq uint64, data []byte, err error) error {
	return corruptedErr("journal", nil, dataErrf(data, 0, err, "record %d", seq))
}

// ReplayJournal applies every transaction found in a journal directory to
// db, one write transaction each, and returns the number applied. dir must
// not be db's own journal directory.
func (db *DB) ReplayJournal(dir string) (int, error) {
	if dir == db.journalDir && dir != "" {
		return 0, fmt.Errorf("localengine: cannot replay %s into itself", dir)
	}
	var n int
	err := readJournal(dir, func(seq uint64, ts uint32, changes []journalChange) error {
		err := db.write(func(tx *tx) error {
			for i := range changes {
				if err := tx.applyJournalChange(&changes[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	db.logf("localengine: REPLAY %s: %d transactions", dir, n)
	return n, nil
}

func (tx *tx) applyJournalChange(c *journalChange) error {
	switch c.Op {
	case JournalPut:
		b, err := tx.stx.CreateBucket(c.Bucket, c.Sub)
		if err != nil {
			return internalErr(err, "replay: creating %s/%s", c.Bucket, c.Sub)
		}
		if err := b.Put(c.Key, c.Value); err != nil {
			return internalErr(err, "replay: put %s/%s", c.Bucket, c.Sub)
		}
	case JournalDelete:
		if b := tx.stx.Bucket(c.Bucket, c.Sub); b != nil {
			if err := b.Delete(c.Key); err != nil {
				return internalErr(err, "replay: delete %s/%s", c.Bucket, c.Sub)
			}
		}
	case JournalDrop:
		err := tx.stx.DeleteBucket(c.Bucket, c.Sub)
		if err != nil && err != errBucketNotFound {
			return internalErr(err, "replay: drop %s/%s", c.Bucket, c.Sub)
		}
	default:
		return corruptedJournalErr(0, nil, fmt.Errorf("unknown op %v", c.Op))
	}
	return nil
}

// journaledTx records the changes made through a write transaction.
type journaledTx struct {
	storageTx
	changes []journalChange
}

func (jt *journaledTx) Bucket(name, sub string) storageBucket {
	b := jt.storageTx.Bucket(name, sub)
	if b == nil {
		return nil
	}
	return &journaledBucket{b, jt, name, sub}
}

func (jt *journaledTx) CreateBucket(name, sub string) (storageBucket, error) {
	b, err := jt.storageTx.CreateBucket(name, sub)
	if err != nil {
		return nil, err
	}
	return &journaledBucket{b, jt, name, sub}, nil
}

func (jt *journaledTx) DeleteBucket(name, sub string) error {
	err := jt.storageTx.DeleteBucket(name, sub)
	if err == nil {
		jt.changes = append(jt.changes, journalChange{Op: JournalDrop, Bucket: name, Sub: sub})
	}
	return err
}

type journaledBucket struct {
	storageBucket
	tx   *journaledTx
	name string
	sub  string
}

func (b *journaledBucket) Put(key, value []byte) error {
	if err := b.storageBucket.Put(key, value); err != nil {
		return err
	}
	b.tx.changes = append(b.tx.changes, journalChange{
		Op:     JournalPut,
		Bucket: b.name,
		Sub:    b.sub,
		Key:    bytes.Clone(key),
		Value:  bytes.Clone(value),
	})
	return nil
}

func (b *journaledBucket) Delete(key []byte) error {
	if err := b.storageBucket.Delete(key); err != nil {
		return err
	}
	b.tx.changes = append(b.tx.changes, journalChange{
		Op:     JournalDelete,
		Bucket: b.name,
		Sub:    b.sub,
		Key:    bytes.Clone(key),
	})
	return nil
}
