package localengine

import (
	"bytes"
	"fmt"
	"slices"
	"sort"
	"sync"
)

const memBucketSep = "\x00"

type memStorage struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[string]*memBucket
	closed  bool
	writer  bool
}

// newMemStorage returns a transient in-memory storage. Every transaction
// works on a snapshot; a writable one replaces the whole state on commit.
func newMemStorage() storage {
	s := &memStorage{buckets: make(map[string]*memBucket)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *memStorage) BeginTx(writable bool) (storageTx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("storage closed")
	}
	if writable {
		for s.writer && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			return nil, fmt.Errorf("storage closed")
		}
		s.writer = true
	}

	snap := make(map[string]*memBucket, len(s.buckets))
	for k, b := range s.buckets {
		if writable {
			snap[k] = b.clone()
		} else {
			snap[k] = b // readers never mutate, and writers swap in fresh buckets
		}
	}
	return &memTx{writable: writable, base: s, buckets: snap}, nil
}

func (s *memStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buckets = nil
	s.cond.Broadcast()
	return nil
}

type memTx struct {
	base     *memStorage
	writable bool
	buckets  map[string]*memBucket
	closed   bool
}

func (tx *memTx) Writable() bool { return tx.writable }

func (tx *memTx) closeLocked() {
	if tx.closed {
		return
	}
	tx.closed = true
	if tx.writable {
		tx.base.writer = false
		tx.base.cond.Broadcast()
	}
}

func (tx *memTx) Bucket(name, sub string) storageBucket {
	if tx.closed {
		panic("tx is closed")
	}
	b := tx.buckets[memBucketKey(name, sub)]
	if b == nil {
		return nil
	}
	return memBucketHandle{tx: tx, b: b}
}

func (tx *memTx) CreateBucket(name, sub string) (storageBucket, error) {
	if tx.closed {
		panic("tx is closed")
	}
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	rootKey := memBucketKey(name, "")
	if tx.buckets[rootKey] == nil {
		tx.buckets[rootKey] = &memBucket{}
	}
	key := memBucketKey(name, sub)
	b := tx.buckets[key]
	if b == nil {
		b = &memBucket{}
		tx.buckets[key] = b
	}
	return memBucketHandle{tx: tx, b: b}, nil
}

func (tx *memTx) DeleteBucket(name, sub string) error {
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	key := memBucketKey(name, sub)
	if sub == "" || tx.buckets[key] == nil {
		return errBucketNotFound
	}
	delete(tx.buckets, key)
	return nil
}

func (tx *memTx) Commit() error {
	if tx.closed {
		return nil
	}
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	if tx.base.closed {
		tx.closeLocked()
		return fmt.Errorf("storage closed")
	}
	tx.base.buckets = tx.buckets
	tx.closeLocked()
	return nil
}

func (tx *memTx) Rollback() error {
	tx.base.mu.Lock()
	defer tx.base.mu.Unlock()
	tx.closeLocked()
	return nil
}

func memBucketKey(name, sub string) string {
	return name + memBucketSep + sub
}

type memBucket struct {
	items []memKV // sorted by key
}

type memKV struct {
	key   []byte
	value []byte
}

func (b *memBucket) clone() *memBucket {
	return &memBucket{items: slices.Clone(b.items)}
}

type memBucketHandle struct {
	tx *memTx
	b  *memBucket
}

func (b memBucketHandle) Get(key []byte) []byte {
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	return b.b.items[i].value
}

// Put and Delete never modify the backing arrays of stored keys and values,
// so a shallow clone of items is enough to isolate transactions.
func (b memBucketHandle) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	kv := memKV{key: slices.Clone(key), value: slices.Clone(value)}
	i, ok := b.find(key)
	if ok {
		b.b.items[i] = kv
		return nil
	}
	b.b.items = slices.Insert(b.b.items, i, kv)
	return nil
}

func (b memBucketHandle) Delete(key []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	i, ok := b.find(key)
	if !ok {
		return nil
	}
	b.b.items = slices.Delete(b.b.items, i, i+1)
	return nil
}

func (b memBucketHandle) Cursor() storageCursor {
	return &memCursor{b: b.b, pos: -1}
}

func (b memBucketHandle) KeyCount() int { return len(b.b.items) }

func (b memBucketHandle) find(key []byte) (idx int, ok bool) {
	return b.b.search(key)
}

func (b *memBucket) search(key []byte) (int, bool) {
	i := sort.Search(len(b.items), func(i int) bool {
		return bytes.Compare(b.items[i].key, key) >= 0
	})
	return i, i < len(b.items) && bytes.Equal(b.items[i].key, key)
}

type memCursor struct {
	b   *memBucket
	pos int
}

func (c *memCursor) at(pos int) ([]byte, []byte) {
	c.pos = pos
	if pos < 0 || pos >= len(c.b.items) {
		return nil, nil
	}
	kv := c.b.items[pos]
	return kv.key, kv.value
}

func (c *memCursor) First() ([]byte, []byte) { return c.at(0) }
func (c *memCursor) Last() ([]byte, []byte)  { return c.at(len(c.b.items) - 1) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte) {
	i, _ := c.b.search(seek)
	return c.at(i)
}

func (c *memCursor) SeekLast(prefix []byte) ([]byte, []byte) {
	limit, ok := successor(prefix)
	if !ok {
		return c.Last()
	}
	i, _ := c.b.search(limit)
	return c.at(i - 1)
}

func (c *memCursor) Next() ([]byte, []byte) {
	if c.pos >= len(c.b.items) {
		return nil, nil
	}
	return c.at(c.pos + 1)
}

func (c *memCursor) Prev() ([]byte, []byte) {
	if c.pos < 0 {
		return nil, nil
	}
	return c.at(c.pos - 1)
}
