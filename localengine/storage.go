package localengine

import "errors"

// errBucketNotFound is returned by storageTx.DeleteBucket when the bucket doesn't exist.
var errBucketNotFound = errors.New("bucket not found")

// storage is a sorted key-value backend (Bolt or memory).
type storage interface {
	BeginTx(writable bool) (storageTx, error)
	Close() error
}

type storageTx interface {
	Writable() bool

	// Bucket returns a bucket, or nil if it doesn't exist. Use sub="" for a
	// root bucket, non-empty for a nested one.
	Bucket(name, sub string) storageBucket

	// CreateBucket creates a bucket (and, for sub != "", its root) if it
	// doesn't exist.
	CreateBucket(name, sub string) (storageBucket, error)

	// DeleteBucket deletes a nested bucket (sub must be non-empty).
	DeleteBucket(name, sub string) error

	Commit() error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback() error
}

// storageBucket is a sorted key-value collection. Returned slices are only
// valid until the transaction ends.
type storageBucket interface {
	// Get returns nil if the key is not found.
	Get(key []byte) []byte
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() storageCursor
	KeyCount() int
}

type storageCursor interface {
	First() (key, value []byte)
	Last() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// SeekLast moves to the last key that has the given prefix or sorts
	// before it.
	SeekLast(prefix []byte) (key, value []byte)

	Next() (key, value []byte)
	Prev() (key, value []byte)
}

// successor returns the smallest byte string greater than every string
// prefixed by p, or false if p is empty or all 0xFF.
func successor(p []byte) ([]byte, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] != 0xFF {
			out := append([]byte(nil), p[:i+1]...)
			out[i]++
			return out, true
		}
	}
	return nil, false
}

// syncer is implemented by storages that can defer fsync.
type syncer interface {
	Sync() error
}
