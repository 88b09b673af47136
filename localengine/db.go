package localengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/griddb/journal"
)

// Options configure an Engine and the databases it opens.
type Options struct {
	// Logger receives storage-level logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Verbose logs every commit, scan and container change.
	Verbose bool

	// IsTesting trades durability for speed (no fsync, small mmap).
	IsTesting bool
	MmapSize  int

	// Path is used when the connection properties carry no "path". An empty
	// path means a shared in-memory database.
	Path string

	// Accounts maps user names to passwords or to bcrypt hashes made by
	// HashPassword. When empty, any credentials are accepted.
	Accounts map[string]string
	// ClusterName, when set, must match the clusterName property.
	ClusterName string

	// CompressAbove is the encoded row size from which rows are lz4
	// compressed. Zero means 1024 bytes; negative disables compression.
	CompressAbove int
	// FetchBatchSize is the number of rows a streaming row set reads per
	// storage transaction. Zero means 256.
	FetchBatchSize int

	// Now is the clock behind TQL NOW(). Defaults to time.Now.
	Now func() time.Time

	// JournalDir, when set, receives a commit journal per database: every
	// committed write transaction is appended to it. See ReadJournal and
	// ReplayJournal.
	JournalDir string
	// JournalMaxFileSize is the size after which journal segments rotate.
	// Zero means journal.DefaultMaxFileSize.
	JournalMaxFileSize int64
}

func (opt *Options) setDefaults() {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.CompressAbove == 0 {
		opt.CompressAbove = 1024
	}
	if opt.FetchBatchSize <= 0 {
		opt.FetchBatchSize = 256
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
}

// DB is one database (a Bolt file or a memory store) holding containers.
type DB struct {
	st      storage
	path    string
	opt     Options
	logger  *slog.Logger
	verbose bool

	// writeMu orders journal records the same way as storage commits.
	writeMu    sync.Mutex
	journal    *journal.Journal
	journalDir string

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

// Open opens or creates a Bolt database file.
func Open(path string, opt Options) (*DB, error) {
	opt.setDefaults()
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("localengine: %w", err)
	}
	db := newDB(&boltStorage{bdb: bdb}, path, opt)
	if err := db.openJournal(); err != nil {
		bdb.Close()
		return nil, err
	}
	db.logf("localengine: OPEN %s", path)
	return db, nil
}

// OpenMemory creates an empty in-memory database. It is journaled only when
// opened through an Engine, which gives it a name.
func OpenMemory(opt Options) *DB {
	opt.setDefaults()
	return newDB(newMemStorage(), "", opt)
}

func newDB(st storage, path string, opt Options) *DB {
	return &DB{
		st:      st,
		path:    path,
		opt:     opt,
		logger:  opt.Logger,
		verbose: opt.Verbose,
	}
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	db.logf("localengine: CLOSE %s", db.path)
	err := db.st.Close()
	if db.journal != nil {
		if jerr := db.journal.Close(); err == nil {
			err = jerr
		}
	}
	if err != nil {
		return fmt.Errorf("localengine: closing: %w", err)
	}
	return nil
}

func (db *DB) logf(format string, args ...any) {
	if db.verbose {
		db.logger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
	}
}
