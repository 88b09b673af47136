package griddb

import (
	"iter"

	"github.com/andreyvit/griddb/engine"
)

// RowSet is a cursor over the results of one Query execution. Its Type is
// fixed when it is created and decides which accessor is valid: Next for
// ContainerRows, NextAggregation for AggregationRows, NextAnalysis for
// QueryAnalysisRows. Calling the wrong one is an unsupported error and does
// not advance the cursor.
type RowSet struct {
	q      *Query
	h      engine.ResultSet
	typ    RowSetType
	size   int
	closed bool
}

func (rs *RowSet) Type() RowSetType { return rs.typ }

// Size is the total number of results reported by the engine when the row
// set was created, or -1 if the engine does not know it yet.
func (rs *RowSet) Size() int { return rs.size }

func (rs *RowSet) lock() func() {
	rs.q.c.mu.Lock()
	return rs.q.c.mu.Unlock
}

func (rs *RowSet) ensureOpen(op string) error {
	if rs.closed || rs.q.c.closed {
		return errf(KindClosed, nil, "row set is closed").op(op).in(rs.q.c.info.Name())
	}
	return nil
}

func (rs *RowSet) check(op string, want RowSetType) error {
	if err := rs.ensureOpen(op); err != nil {
		return err
	}
	if rs.typ != want {
		return errf(KindUnsupported, nil, "row set holds %v, not %v", rs.typ, want).op(op).in(rs.q.c.info.Name())
	}
	if !rs.h.HasNext() {
		return errf(KindExhausted, nil, "no more results").op(op).in(rs.q.c.info.Name())
	}
	return nil
}

// HasNext reports whether another result is available. It returns false on
// a closed row set.
func (rs *RowSet) HasNext() bool {
	defer rs.lock()()
	if rs.ensureOpen("HAS_NEXT") != nil {
		return false
	}
	return rs.h.HasNext()
}

// Next returns the next row. The row is a copy; the container's row buffer
// is overwritten on every call.
func (rs *RowSet) Next() (Row, error) {
	defer rs.lock()()
	const op = "NEXT"
	if err := rs.check(op, ContainerRows); err != nil {
		return nil, err
	}
	c := rs.q.c
	if err := rs.h.NextRow(c.buf); err != nil {
		return nil, engineErr(op, err).in(c.info.Name())
	}
	row, err := decodeRow(c.buf, c.types)
	if err != nil {
		return nil, err.(*Error).op(op).in(c.info.Name())
	}
	return row, nil
}

// NextAggregation returns the next aggregation result. The result has its
// own lifetime and stays valid after the row set is closed.
func (rs *RowSet) NextAggregation() (*AggregationResult, error) {
	defer rs.lock()()
	const op = "NEXT_AGGREGATION"
	if err := rs.check(op, AggregationRows); err != nil {
		return nil, err
	}
	h, err := rs.h.NextAggregation()
	if err != nil {
		return nil, engineErr(op, err).in(rs.q.c.info.Name())
	}
	return &AggregationResult{h: h}, nil
}

// QueryAnalysisEntry is one step of the plan returned by an EXPLAIN query.
type QueryAnalysisEntry struct {
	ID        int32
	Depth     int32
	Type      string
	ValueType string
	Value     string
	Statement string
}

// NextAnalysis returns the next plan entry of an EXPLAIN query.
func (rs *RowSet) NextAnalysis() (QueryAnalysisEntry, error) {
	defer rs.lock()()
	const op = "NEXT_ANALYSIS"
	if err := rs.check(op, QueryAnalysisRows); err != nil {
		return QueryAnalysisEntry{}, err
	}
	e, err := rs.h.NextAnalysis()
	if err != nil {
		return QueryAnalysisEntry{}, engineErr(op, err).in(rs.q.c.info.Name())
	}
	return QueryAnalysisEntry(e), nil
}

// All iterates over the remaining rows of a ContainerRows row set. Iteration
// stops after the first error.
func (rs *RowSet) All() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for rs.HasNext() {
			row, err := rs.Next()
			if !yield(row, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the row set. Closing twice is a no-op.
func (rs *RowSet) Close() error {
	defer rs.lock()()
	err := rs.closeLocked()
	rs.q.forgetRowSet(rs)
	return err
}

func (rs *RowSet) closeLocked() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	if err := rs.h.Close(); err != nil {
		return engineErr("CLOSE_ROW_SET", err).in(rs.q.c.info.Name())
	}
	return nil
}

// AggregationResult is one value produced by an aggregation query such as
// SELECT AVG(voltage). The engine keeps a single number; which accessor is
// meaningful depends on the aggregation: COUNT yields a Long, AVG a Double,
// MIN/MAX of a Timestamp column a Timestamp. Reading it through a different
// accessor returns the engine's conversion, not an error.
type AggregationResult struct {
	h      engine.AggregationHandle
	closed bool
}

func (a *AggregationResult) ensureOpen(op string) error {
	if a.closed {
		return errf(KindClosed, nil, "aggregation result is closed").op(op)
	}
	return nil
}

func (a *AggregationResult) AsLong() (int64, error) {
	if err := a.ensureOpen("AGGREGATION_LONG"); err != nil {
		return 0, err
	}
	v, err := a.h.Long()
	if err != nil {
		return 0, engineErr("AGGREGATION_LONG", err)
	}
	return v, nil
}

func (a *AggregationResult) AsDouble() (float64, error) {
	if err := a.ensureOpen("AGGREGATION_DOUBLE"); err != nil {
		return 0, err
	}
	v, err := a.h.Double()
	if err != nil {
		return 0, engineErr("AGGREGATION_DOUBLE", err)
	}
	return v, nil
}

func (a *AggregationResult) AsTimestamp() (Timestamp, error) {
	if err := a.ensureOpen("AGGREGATION_TIMESTAMP"); err != nil {
		return 0, err
	}
	v, err := a.h.Timestamp()
	if err != nil {
		return 0, engineErr("AGGREGATION_TIMESTAMP", err)
	}
	return Timestamp(v), nil
}

func (a *AggregationResult) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.h.Close(); err != nil {
		return engineErr("CLOSE_AGGREGATION", err)
	}
	return nil
}
