package griddb

import (
	"slices"
	"sync"

	"github.com/andreyvit/griddb/engine"
)

// TxMode is the transaction mode of a Container.
type TxMode int

const (
	// AutoCommit commits every put and remove immediately.
	AutoCommit TxMode = iota
	// Manual accumulates puts and removes until Commit or Abort.
	Manual
)

func (m TxMode) String() string {
	if m == Manual {
		return "manual"
	}
	return "auto-commit"
}

// Container is an open, schema-bound container.
//
// A Container owns one row buffer that every Get, Put and RowSet.Next call
// overwrites. Values returned to the caller are always copies. Queries and
// row sets created from a Container borrow that buffer: they are closed
// together with the Container and fail with ErrClosed afterwards.
//
// All methods serialize on one mutex, so a Container may be passed between
// goroutines, but operations never run concurrently.
type Container struct {
	mu      sync.Mutex
	store   *Store
	h       engine.ContainerHandle
	buf     engine.Row
	info    *ContainerInfo
	types   []Type
	lg      logger
	mode    TxMode
	pending int
	closed  bool
	queries []*Query
}

func newContainer(s *Store, h engine.ContainerHandle, info *ContainerInfo) (*Container, error) {
	buf, err := h.CreateRow()
	if err != nil {
		_ = h.Close(false)
		return nil, engineErr("CREATE_ROW", err).in(info.Name())
	}
	return &Container{
		store: s,
		h:     h,
		buf:   buf,
		info:  info,
		types: info.Types(),
		lg:    s.lg,
	}, nil
}

func (c *Container) Name() string        { return c.info.Name() }
func (c *Container) Kind() ContainerKind { return c.info.Kind() }
func (c *Container) Info() *ContainerInfo {
	return c.info
}

// TxState returns the transaction mode and, in Manual mode, the number of
// puts and removes not yet committed.
func (c *Container) TxState() (TxMode, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode, c.pending
}

func (c *Container) ensureOpen(op string) error {
	if c.closed {
		return errf(KindClosed, nil, "container is closed").op(op).in(c.info.Name())
	}
	return nil
}

func (c *Container) checkKey(op string, key Key) error {
	keyType, ok := c.info.KeyType()
	if !ok {
		return errf(KindUnsupported, nil, "container has no row key").op(op).in(c.info.Name())
	}
	if key.typ != keyType {
		return convertErrf("key is %v, row key column is %v", key.typ, keyType).op(op).in(c.info.Name()).col(c.info.Column(0).Name)
	}
	return nil
}

// Get returns the row with the given key, or nil if there is none.
func (c *Container) Get(key Key) (Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("GET"); err != nil {
		return nil, err
	}
	if err := c.checkKey("GET", key); err != nil {
		return nil, err
	}
	found, err := c.h.GetRow(key.engineKey(), false, c.buf)
	if err != nil {
		return nil, engineErr("GET", err).in(c.info.Name())
	}
	if !found {
		c.lg.logf("griddb: GET.NOTFOUND %s/%v", c.info.Name(), key)
		return nil, nil
	}
	row, err := decodeRow(c.buf, c.types)
	if err != nil {
		return nil, err.(*Error).op("GET").in(c.info.Name())
	}
	c.lg.logf("griddb: GET %s/%v => %v", c.info.Name(), key, row)
	return row, nil
}

// Put inserts or replaces the row with the same row key. Every value must
// have the type of its column; on any mismatch nothing is written.
func (c *Container) Put(row Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("PUT"); err != nil {
		return err
	}
	if err := encodeRow(c.buf, row, c.info.columns); err != nil {
		return err.(*Error).op("PUT").in(c.info.Name())
	}
	existed, err := c.h.PutRow(c.buf)
	if err != nil {
		return engineErr("PUT", err).in(c.info.Name())
	}
	c.touch()
	if existed {
		c.lg.logf("griddb: PUT.REPLACE %s => %v", c.info.Name(), row)
	} else {
		c.lg.logf("griddb: PUT %s => %v", c.info.Name(), row)
	}
	return nil
}

// PutValues is Put(MakeRow(xs...)).
func (c *Container) PutValues(xs ...any) error {
	row, err := MakeRow(xs...)
	if err != nil {
		return err.(*Error).op("PUT").in(c.info.Name())
	}
	return c.Put(row)
}

// Remove deletes the row with the given key. Removing a missing row is not
// an error.
func (c *Container) Remove(key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("REMOVE"); err != nil {
		return err
	}
	if err := c.checkKey("REMOVE", key); err != nil {
		return err
	}
	existed, err := c.h.RemoveRow(key.engineKey())
	if err != nil {
		return engineErr("REMOVE", err).in(c.info.Name())
	}
	c.touch()
	if existed {
		c.lg.logf("griddb: REMOVE %s/%v", c.info.Name(), key)
	} else {
		c.lg.logf("griddb: REMOVE.NOOP %s/%v", c.info.Name(), key)
	}
	return nil
}

func (c *Container) touch() {
	if c.mode == Manual {
		c.pending++
	}
}

// Query prepares a query. The text is passed to the engine verbatim.
func (c *Container) Query(text string) (*Query, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("QUERY"); err != nil {
		return nil, err
	}
	qh, err := c.h.Query(text)
	if err != nil {
		return nil, engineErr("QUERY", err).in(c.info.Name())
	}
	c.lg.logf("griddb: QUERY %s %q", c.info.Name(), text)
	q := &Query{c: c, h: qh, text: text}
	c.queries = append(c.queries, q)
	return q, nil
}

func (c *Container) forgetQuery(q *Query) {
	if i := slices.Index(c.queries, q); i >= 0 {
		c.queries = slices.Delete(c.queries, i, i+1)
	}
}

func (c *Container) CreateIndex(column string, kind IndexKind) error {
	return c.indexOp("CREATE_INDEX", column, kind, c.h.CreateIndex)
}

func (c *Container) DropIndex(column string, kind IndexKind) error {
	return c.indexOp("DROP_INDEX", column, kind, c.h.DropIndex)
}

func (c *Container) indexOp(op, column string, kind IndexKind, f func(string, engine.IndexKind) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen(op); err != nil {
		return err
	}
	if !engine.IndexKind(kind).Valid() {
		return convertErrf("invalid index kind %v", kind).op(op).in(c.info.Name()).col(column)
	}
	if err := f(column, engine.IndexKind(kind)); err != nil {
		return engineErr(op, err).in(c.info.Name()).col(column)
	}
	c.lg.logf("griddb: %s %s.%s %v", op, c.info.Name(), column, kind)
	return nil
}

// SetAutoCommit switches between AutoCommit and Manual modes. Switching to
// AutoCommit commits pending changes, like the engine does.
func (c *Container) SetAutoCommit(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("SET_AUTO_COMMIT"); err != nil {
		return err
	}
	if err := c.h.SetAutoCommit(enabled); err != nil {
		return engineErr("SET_AUTO_COMMIT", err).in(c.info.Name())
	}
	if enabled {
		c.mode, c.pending = AutoCommit, 0
	} else {
		c.mode = Manual
	}
	return nil
}

// Commit applies pending changes. It is a no-op in AutoCommit mode.
func (c *Container) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("COMMIT"); err != nil {
		return err
	}
	if err := c.h.Commit(); err != nil {
		return engineErr("COMMIT", err).in(c.info.Name())
	}
	c.lg.logf("griddb: COMMIT %s (%d pending)", c.info.Name(), c.pending)
	c.pending = 0
	return nil
}

// Abort discards pending changes. It is a no-op in AutoCommit mode.
func (c *Container) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("ABORT"); err != nil {
		return err
	}
	if err := c.h.Abort(); err != nil {
		return engineErr("ABORT", err).in(c.info.Name())
	}
	c.lg.logf("griddb: ABORT %s (%d pending)", c.info.Name(), c.pending)
	c.pending = 0
	return nil
}

// Flush asks the engine to persist committed changes.
func (c *Container) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureOpen("FLUSH"); err != nil {
		return err
	}
	if err := c.h.Flush(); err != nil {
		return engineErr("FLUSH", err).in(c.info.Name())
	}
	return nil
}

// Close releases the container, closing its queries and row sets first.
// Uncommitted changes are discarded. Closing twice is a no-op.
func (c *Container) Close() error {
	c.mu.Lock()
	err := c.closeLocked()
	c.mu.Unlock()
	if c.store != nil {
		c.store.forgetContainer(c)
	}
	return err
}

func (c *Container) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.mode == Manual && c.pending > 0 {
		c.lg.warnf("griddb: CLOSE %s discards %d uncommitted changes", c.info.Name(), c.pending)
	}
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for i := len(c.queries) - 1; i >= 0; i-- {
		keep(c.queries[i].closeLocked())
	}
	c.queries = nil
	keep(c.buf.Close())
	keep(c.h.Close(false))
	if first != nil {
		return engineErr("CLOSE", first).in(c.info.Name())
	}
	return nil
}
