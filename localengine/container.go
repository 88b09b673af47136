package localengine

import (
	"bytes"
	"slices"

	"github.com/andreyvit/griddb/engine"
	"github.com/andreyvit/griddb/localengine/tql"
)

// containerHandle is an open container. In auto-commit mode every put and
// remove runs in its own write transaction; otherwise they accumulate in
// pending until Commit. Reads through the handle see its pending writes.
type containerHandle struct {
	conn   *conn
	db     *DB
	id     string
	name   string
	schema *engine.ContainerSchema
	cols   []tql.Column

	autoCommit bool
	pending    pendingOps
	closed     bool
	queries    []*queryHandle
}

var _ engine.ContainerHandle = (*containerHandle)(nil)

func newContainerHandle(c *conn, meta *containerMeta) *containerHandle {
	h := &containerHandle{
		conn:       c,
		db:         c.db,
		id:         meta.ID,
		name:       meta.Schema.Name,
		schema:     meta.Schema.Clone(),
		autoCommit: true,
	}
	h.cols = make([]tql.Column, len(h.schema.Columns))
	for i, col := range h.schema.Columns {
		h.cols[i] = tql.Column{Name: col.Name, Kind: kindOf(col.Type)}
	}
	return h
}

func (h *containerHandle) check() error {
	if h.closed {
		return errClosed
	}
	return h.conn.check()
}

func (h *containerHandle) checkWrite(op string) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.conn.checkWritable(op)
}

// meta loads the container definition, failing if the container was dropped
// (and maybe recreated) since the handle was opened.
func (h *containerHandle) meta(tx *tx) (*containerMeta, error) {
	m, err := tx.loadMeta(h.name)
	if err != nil {
		return nil, err
	}
	if m == nil || m.ID != h.id {
		return nil, engine.Statusf(engine.StatusNoSuchContainer, "%s no longer exists", h.name)
	}
	return m, nil
}

func (h *containerHandle) Schema() *engine.ContainerSchema {
	return h.schema
}

func (h *containerHandle) CreateRow() (engine.Row, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	return newRow(h.schema), nil
}

func (h *containerHandle) rowArg(r engine.Row) (*row, error) {
	rr, ok := r.(*row)
	if !ok || rr == nil {
		return nil, engine.Statusf(engine.StatusIllegalArgument, "%s: foreign row buffer", h.name)
	}
	if rr.closed {
		return nil, errClosed
	}
	if len(rr.fields) != len(h.schema.Columns) {
		return nil, engine.Statusf(engine.StatusIllegalArgument, "%s: row buffer has %d columns, container has %d", h.name, len(rr.fields), len(h.schema.Columns))
	}
	return rr, nil
}

func (h *containerHandle) GetRow(key engine.Key, forUpdate bool, dst engine.Row) (bool, error) {
	if err := h.check(); err != nil {
		return false, err
	}
	out, err := h.rowArg(dst)
	if err != nil {
		return false, err
	}
	if forUpdate && h.autoCommit {
		return false, engine.Statusf(engine.StatusIllegalArgument, "%s: GET for update needs manual commit mode", h.name)
	}
	k, err := encodeKey(nil, h.schema, key)
	if err != nil {
		return false, err
	}
	if op := h.pending.lookup(k); op != nil {
		if op.fields == nil {
			return false, nil
		}
		out.load(op.fields)
		return true, nil
	}

	fields := make([]any, len(h.schema.Columns))
	var found bool
	err = h.db.read(func(tx *tx) error {
		if _, err := h.meta(tx); err != nil {
			return err
		}
		b, err := tx.rows(h.name, false)
		if err != nil || b == nil {
			return err
		}
		data := b.Get(k)
		if data == nil {
			return nil
		}
		if err := decodeValue(data, h.schema, fields); err != nil {
			return corruptedErr(h.name, k, err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return false, err
	}
	out.load(fields)
	return true, nil
}

func (h *containerHandle) PutRow(src engine.Row) (bool, error) {
	if err := h.checkWrite("PUT"); err != nil {
		return false, err
	}
	in, err := h.rowArg(src)
	if err != nil {
		return false, err
	}
	fields := slices.Clone(in.fields)

	if !h.schema.RowKey {
		if !h.autoCommit {
			h.pending.appends = append(h.pending.appends, fields)
			return false, nil
		}
		return false, h.db.write(func(tx *tx) error {
			meta, err := h.meta(tx)
			if err != nil {
				return err
			}
			if err := h.appendRows(tx, meta, [][]any{fields}); err != nil {
				return err
			}
			return tx.saveMeta(meta)
		})
	}

	k := rowKey(nil, h.schema, fields)
	if !h.autoCommit {
		existed, err := h.exists(k)
		if err != nil {
			return false, err
		}
		h.pending.set(k, fields)
		return existed, nil
	}

	var existed bool
	err = h.db.write(func(tx *tx) error {
		if _, err := h.meta(tx); err != nil {
			return err
		}
		b, err := tx.rows(h.name, true)
		if err != nil {
			return err
		}
		existed = b.Get(k) != nil
		return h.putRow(tx, b, k, fields)
	})
	if err == nil {
		h.db.logf("localengine: PUT %s/%s existed=%v", h.name, decodeKeyString(k), existed)
	}
	return existed, err
}

func (h *containerHandle) putRow(tx *tx, b storageBucket, k []byte, fields []any) error {
	buf := valueBytesPool.Get().([]byte)[:0]
	val, err := encodeValue(buf, h.schema, fields, h.db.opt.CompressAbove)
	if err != nil {
		valueBytesPool.Put(buf)
		return err
	}
	tx.keepBuf(val)
	if err := b.Put(k, val); err != nil {
		return internalErr(err, "%s: put %s", h.name, decodeKeyString(k))
	}
	return nil
}

// appendRows stores rows of a container without a row key under fresh
// sequence numbers. The caller saves meta.
func (h *containerHandle) appendRows(tx *tx, meta *containerMeta, rows [][]any) error {
	b, err := tx.rows(h.name, true)
	if err != nil {
		return err
	}
	for _, fields := range rows {
		meta.Seq++
		k := appendSeqKey(nil, meta.Seq)
		if err := h.putRow(tx, b, k, fields); err != nil {
			return err
		}
	}
	return nil
}

func (h *containerHandle) RemoveRow(key engine.Key) (bool, error) {
	if err := h.checkWrite("REMOVE"); err != nil {
		return false, err
	}
	k, err := encodeKey(nil, h.schema, key)
	if err != nil {
		return false, err
	}
	if !h.autoCommit {
		existed, err := h.exists(k)
		if err != nil {
			return false, err
		}
		h.pending.set(k, nil)
		return existed, nil
	}

	var existed bool
	err = h.db.write(func(tx *tx) error {
		if _, err := h.meta(tx); err != nil {
			return err
		}
		b, err := tx.rows(h.name, false)
		if err != nil || b == nil {
			return err
		}
		if b.Get(k) == nil {
			return nil
		}
		existed = true
		if err := b.Delete(k); err != nil {
			return internalErr(err, "%s: delete %s", h.name, decodeKeyString(k))
		}
		return nil
	})
	if err == nil {
		h.db.logf("localengine: REMOVE %s/%s existed=%v", h.name, decodeKeyString(k), existed)
	}
	return existed, err
}

// exists checks a key against pending writes, then storage.
func (h *containerHandle) exists(k []byte) (bool, error) {
	if op := h.pending.lookup(k); op != nil {
		return op.fields != nil, nil
	}
	var found bool
	err := h.db.read(func(tx *tx) error {
		if _, err := h.meta(tx); err != nil {
			return err
		}
		b, err := tx.rows(h.name, false)
		if err == nil && b != nil {
			found = b.Get(k) != nil
		}
		return err
	})
	return found, err
}

// scan decodes every stored row within rang, in range order, until f returns
// false. stopped tells whether f cut the scan short.
func (h *containerHandle) scan(tx *tx, rang RawRange, f func(k []byte, fields []any) (bool, error)) (stopped bool, err error) {
	b, err := tx.rows(h.name, false)
	if err != nil || b == nil {
		return false, err
	}
	c := rang.newCursor(b.Cursor(), h.db.logger)
	for c.Next() {
		fields := make([]any, len(h.schema.Columns))
		if err := decodeValue(c.Value(), h.schema, fields); err != nil {
			return false, corruptedErr(h.name, c.Key(), err)
		}
		cont, err := f(c.Key(), fields)
		if err != nil {
			return false, err
		}
		if !cont {
			return true, nil
		}
	}
	return false, nil
}

func (h *containerHandle) Query(text string) (engine.QueryHandle, error) {
	if err := h.check(); err != nil {
		return nil, err
	}
	st, err := tql.Parse(text)
	if err != nil {
		return nil, queryErr(err)
	}
	if err := st.Bind(h.name, h.cols); err != nil {
		return nil, queryErr(err)
	}
	if st.Agg != nil {
		var kind tql.Kind
		if st.Agg.Column != nil {
			kind = h.cols[st.Agg.Column.Index].Kind
		}
		if _, err := tql.NewAccumulator(st.Agg, kind); err != nil {
			return nil, queryErr(err)
		}
	}
	q := &queryHandle{h: h, stmt: st}
	h.queries = append(h.queries, q)
	h.db.logf("localengine: QUERY %s %q", h.name, text)
	return q, nil
}

func (h *containerHandle) forgetQuery(q *queryHandle) {
	if i := slices.Index(h.queries, q); i >= 0 {
		h.queries = slices.Delete(h.queries, i, i+1)
	}
}

func (h *containerHandle) CreateIndex(column string, kind engine.IndexKind) error {
	if err := h.checkWrite("CREATE_INDEX"); err != nil {
		return err
	}
	col, kind, err := h.indexArgs(column, kind)
	if err != nil {
		return err
	}
	return h.db.write(func(tx *tx) error {
		meta, err := h.meta(tx)
		if err != nil {
			return err
		}
		if meta.indexOf(col, kind) >= 0 {
			return nil
		}
		meta.Indexes = append(meta.Indexes, indexMeta{Column: col, Kind: kind})
		h.db.logf("localengine: CREATE_INDEX %s.%s %v", h.name, col, kind)
		return tx.saveMeta(meta)
	})
}

// DropIndex removes an index. IndexDefault drops every index on the column.
func (h *containerHandle) DropIndex(column string, kind engine.IndexKind) error {
	if err := h.checkWrite("DROP_INDEX"); err != nil {
		return err
	}
	idx := h.schema.ColumnIndex(column)
	if idx < 0 {
		return engine.Statusf(engine.StatusNoSuchColumn, "%s has no column %q", h.name, column)
	}
	col := h.schema.Columns[idx].Name
	return h.db.write(func(tx *tx) error {
		meta, err := h.meta(tx)
		if err != nil {
			return err
		}
		n := len(meta.Indexes)
		meta.Indexes = slices.DeleteFunc(meta.Indexes, func(im indexMeta) bool {
			return im.Column == col && (kind == engine.IndexDefault || im.Kind == kind)
		})
		if len(meta.Indexes) == n {
			return nil
		}
		h.db.logf("localengine: DROP_INDEX %s.%s %v", h.name, col, kind)
		return tx.saveMeta(meta)
	})
}

func (h *containerHandle) indexArgs(column string, kind engine.IndexKind) (string, engine.IndexKind, error) {
	idx := h.schema.ColumnIndex(column)
	if idx < 0 {
		return "", 0, engine.Statusf(engine.StatusNoSuchColumn, "%s has no column %q", h.name, column)
	}
	col := h.schema.Columns[idx]
	if kind == engine.IndexDefault {
		kind = engine.IndexTree
		if col.Type == engine.TypeGeometry {
			kind = engine.IndexSpatial
		}
	}
	switch {
	case !kind.Valid():
		return "", 0, engine.Statusf(engine.StatusIllegalArgument, "unknown index kind %v", kind)
	case kind == engine.IndexSpatial && col.Type != engine.TypeGeometry:
		return "", 0, engine.Statusf(engine.StatusIllegalArgument, "%s.%s: SPATIAL index needs a GEOMETRY column", h.name, col.Name)
	case kind == engine.IndexTree && (col.Type == engine.TypeGeometry || col.Type == engine.TypeBlob):
		return "", 0, engine.Statusf(engine.StatusIllegalArgument, "%s.%s: TREE index on a %v column", h.name, col.Name, col.Type)
	}
	return col.Name, kind, nil
}

// SetAutoCommit switches modes. Turning auto-commit on commits pending
// writes first.
func (h *containerHandle) SetAutoCommit(enabled bool) error {
	if err := h.check(); err != nil {
		return err
	}
	if enabled && !h.autoCommit {
		if err := h.commit(); err != nil {
			return err
		}
	}
	h.autoCommit = enabled
	return nil
}

func (h *containerHandle) Commit() error {
	if err := h.check(); err != nil {
		return err
	}
	return h.commit()
}

func (h *containerHandle) commit() error {
	n := h.pending.len()
	if n == 0 {
		return nil
	}
	err := h.db.write(func(tx *tx) error {
		meta, err := h.meta(tx)
		if err != nil {
			return err
		}
		if len(h.pending.order) > 0 {
			b, err := tx.rows(h.name, true)
			if err != nil {
				return err
			}
			for _, ks := range h.pending.order {
				op := h.pending.byKey[ks]
				if op.fields == nil {
					if err := b.Delete(op.key); err != nil {
						return internalErr(err, "%s: delete %s", h.name, decodeKeyString(op.key))
					}
				} else if err := h.putRow(tx, b, op.key, op.fields); err != nil {
					return err
				}
			}
		}
		if len(h.pending.appends) > 0 {
			if err := h.appendRows(tx, meta, h.pending.appends); err != nil {
				return err
			}
			return tx.saveMeta(meta)
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.db.logf("localengine: COMMIT %s (%d ops)", h.name, n)
	h.pending.reset()
	return nil
}

func (h *containerHandle) Abort() error {
	if err := h.check(); err != nil {
		return err
	}
	h.abort()
	return nil
}

func (h *containerHandle) abort() {
	if n := h.pending.len(); n > 0 {
		h.db.logf("localengine: ABORT %s (%d ops)", h.name, n)
	}
	h.pending.reset()
}

// Flush forces committed data and the journal to disk; relevant for
// databases opened with IsTesting, which skip fsync on commit.
func (h *containerHandle) Flush() error {
	if err := h.check(); err != nil {
		return err
	}
	if s, ok := h.db.st.(syncer); ok {
		if err := s.Sync(); err != nil {
			return internalErr(err, "flush")
		}
	}
	if h.db.journal != nil {
		if err := h.db.journal.Sync(); err != nil {
			return internalErr(err, "flush journal")
		}
	}
	return nil
}

// Close discards pending writes. Queries and their result sets are closed
// as well when allRelated is set; otherwise they fail on next use.
func (h *containerHandle) Close(allRelated bool) error {
	if h.closed {
		return nil
	}
	h.abort()
	if allRelated {
		for _, q := range slices.Backward(slices.Clone(h.queries)) {
			_ = q.Close()
		}
	}
	h.closed = true
	h.conn.forget(h)
	return nil
}

type pendingOp struct {
	key []byte
	// fields is nil for a removal.
	fields []any
}

type pendingOps struct {
	byKey   map[string]*pendingOp
	order   []string
	appends [][]any
}

func (p *pendingOps) len() int {
	return len(p.order) + len(p.appends)
}

func (p *pendingOps) lookup(k []byte) *pendingOp {
	return p.byKey[string(k)]
}

func (p *pendingOps) set(k []byte, fields []any) {
	if op := p.byKey[string(k)]; op != nil {
		op.fields = fields
		return
	}
	if p.byKey == nil {
		p.byKey = make(map[string]*pendingOp)
	}
	ks := string(k)
	p.byKey[ks] = &pendingOp{key: bytes.Clone(k), fields: fields}
	p.order = append(p.order, ks)
}

func (p *pendingOps) reset() {
	clear(p.byKey)
	p.order = p.order[:0]
	p.appends = nil
}

func kindOf(tc engine.TypeCode) tql.Kind {
	switch tc {
	case engine.TypeBool:
		return tql.KindBool
	case engine.TypeByte, engine.TypeShort, engine.TypeInteger, engine.TypeLong:
		return tql.KindInt
	case engine.TypeFloat, engine.TypeDouble:
		return tql.KindFloat
	case engine.TypeTimestamp:
		return tql.KindTimestamp
	case engine.TypeBlob:
		return tql.KindBlob
	default:
		return tql.KindString
	}
}

func toValue(tc engine.TypeCode, f any) tql.Value {
	switch v := f.(type) {
	case string:
		return tql.String(v)
	case bool:
		return tql.Bool(v)
	case int8:
		return tql.Int(int64(v))
	case int16:
		return tql.Int(int64(v))
	case int32:
		return tql.Int(int64(v))
	case int64:
		if tc == engine.TypeTimestamp {
			return tql.Timestamp(v)
		}
		return tql.Int(v)
	case float32:
		return tql.Float(float64(v))
	case float64:
		return tql.Float(v)
	case []byte:
		return tql.Blob(v)
	default:
		panic("unreachable")
	}
}
