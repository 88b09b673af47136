package griddb

import (
	"math"
	"slices"

	"github.com/andreyvit/griddb/engine"
)

// Fetch option keys accepted by Query.SetFetchOptions.
const (
	FetchLimit   = "limit"
	FetchPartial = "partial"
)

// QueryState is the lifecycle state of a Query.
type QueryState int

const (
	QueryCreated QueryState = iota
	QueryFetched
	QueryClosed
)

func (s QueryState) String() string {
	switch s {
	case QueryCreated:
		return "created"
	case QueryFetched:
		return "fetched"
	default:
		return "closed"
	}
}

// Query is a prepared query bound to a Container. Fetch may be called any
// number of times; each call executes the query again and returns a new
// RowSet.
type Query struct {
	c       *Container
	h       engine.QueryHandle
	text    string
	opt     engine.FetchOptions
	state   QueryState
	rowsets []*RowSet
}

func (q *Query) Text() string { return q.text }

func (q *Query) State() QueryState {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	return q.state
}

func (q *Query) ensureOpen(op string) error {
	if q.state == QueryClosed || q.c.closed {
		return errf(KindClosed, nil, "query is closed").op(op).in(q.c.info.Name())
	}
	return nil
}

// SetFetchOptions updates fetch options. Recognized keys are FetchLimit
// (any integer type whose value fits in an int, <= 0 meaning no limit) and
// FetchPartial (bool). Keys not present keep their current values. Any other
// key, or a value of the wrong type or out of range, is a convert error and
// leaves the options unchanged.
func (q *Query) SetFetchOptions(opts map[string]any) error {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	const op = "SET_FETCH_OPTIONS"
	if err := q.ensureOpen(op); err != nil {
		return err
	}
	next := q.opt
	for k, v := range opts {
		switch k {
		case FetchLimit:
			n, ok := toInt(v)
			if !ok {
				return convertErrf("fetch option %q must be an integer, got %T", k, v).op(op).in(q.c.info.Name())
			}
			next.Limit = n
		case FetchPartial:
			b, ok := v.(bool)
			if !ok {
				return convertErrf("fetch option %q must be a bool, got %T", k, v).op(op).in(q.c.info.Name())
			}
			next.Partial = b
		default:
			return convertErrf("unknown fetch option %q", k).op(op).in(q.c.info.Name())
		}
	}
	if err := q.h.SetFetchOptions(next); err != nil {
		return engineErr(op, err).in(q.c.info.Name())
	}
	q.opt = next
	return nil
}

// toInt accepts any integer type whose value fits in an int.
func toInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), int64(int(v)) == v
	case uint:
		return int(v), v <= math.MaxInt
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), uint64(v) <= math.MaxInt
	case uint64:
		return int(v), v <= math.MaxInt
	case uintptr:
		return int(v), uint64(v) <= math.MaxInt
	default:
		return 0, false
	}
}

// Fetch executes the query and returns a cursor over its results.
func (q *Query) Fetch() (*RowSet, error) {
	return q.execute("FETCH", func() (engine.ResultSet, error) {
		return q.h.Fetch(false)
	})
}

// RowSet executes the query and returns a streaming cursor over its results.
func (q *Query) RowSet() (*RowSet, error) {
	return q.execute("ROW_SET", q.h.RowSet)
}

func (q *Query) execute(op string, f func() (engine.ResultSet, error)) (*RowSet, error) {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	if err := q.ensureOpen(op); err != nil {
		return nil, err
	}
	h, err := f()
	if err != nil {
		return nil, engineErr(op, err).in(q.c.info.Name())
	}
	typ, err := rowSetTypeFromKind(h.Kind())
	if err != nil {
		_ = h.Close()
		return nil, err.(*Error).op(op).in(q.c.info.Name())
	}
	rs := &RowSet{q: q, h: h, typ: typ, size: h.Size()}
	q.rowsets = append(q.rowsets, rs)
	q.state = QueryFetched
	q.c.lg.logf("griddb: %s %s %q => %v size=%d", op, q.c.info.Name(), q.text, typ, rs.size)
	return rs, nil
}

func (q *Query) forgetRowSet(rs *RowSet) {
	if i := slices.Index(q.rowsets, rs); i >= 0 {
		q.rowsets = slices.Delete(q.rowsets, i, i+1)
	}
}

// Close releases the query and its row sets. Closing twice is a no-op.
func (q *Query) Close() error {
	q.c.mu.Lock()
	defer q.c.mu.Unlock()
	err := q.closeLocked()
	q.c.forgetQuery(q)
	return err
}

func (q *Query) closeLocked() error {
	if q.state == QueryClosed {
		return nil
	}
	q.state = QueryClosed
	var first error
	for i := len(q.rowsets) - 1; i >= 0; i-- {
		if err := q.rowsets[i].closeLocked(); err != nil && first == nil {
			first = err
		}
	}
	q.rowsets = nil
	if err := q.h.Close(); err != nil && first == nil {
		first = engineErr("CLOSE_QUERY", err).in(q.c.info.Name())
	}
	return first
}
