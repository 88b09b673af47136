package localengine

import (
	"bytes"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/andreyvit/griddb/engine"
	"github.com/andreyvit/griddb/localengine/tql"
)

type queryHandle struct {
	h       *containerHandle
	stmt    *tql.Statement
	opt     engine.FetchOptions
	closed  bool
	results []*resultSet
}

var _ engine.QueryHandle = (*queryHandle)(nil)

func (q *queryHandle) check() error {
	if q.closed {
		return errClosed
	}
	return q.h.check()
}

func (q *queryHandle) SetFetchOptions(opt engine.FetchOptions) error {
	if err := q.check(); err != nil {
		return err
	}
	q.opt = opt
	return nil
}

func (q *queryHandle) Fetch(forUpdate bool) (engine.ResultSet, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	if forUpdate {
		if q.h.autoCommit {
			return nil, engine.Statusf(engine.StatusIllegalArgument, "%s: fetch for update needs manual commit mode", q.h.name)
		}
		if err := q.h.conn.checkWritable("FETCH_FOR_UPDATE"); err != nil {
			return nil, err
		}
	}
	return q.execute(q.opt.Partial)
}

func (q *queryHandle) RowSet() (engine.ResultSet, error) {
	if err := q.check(); err != nil {
		return nil, err
	}
	return q.execute(true)
}

func (q *queryHandle) Close() error {
	if q.closed {
		return nil
	}
	for _, rs := range slices.Backward(slices.Clone(q.results)) {
		_ = rs.Close()
	}
	q.closed = true
	q.h.forgetQuery(q)
	return nil
}

func (q *queryHandle) forget(rs *resultSet) {
	if i := slices.Index(q.results, rs); i >= 0 {
		q.results = slices.Delete(q.results, i, i+1)
	}
}

// queryPlan is how a statement runs against the stored rows.
type queryPlan struct {
	keys tql.KeyRange
	rang RawRange
	// ordered is set when the scan order already satisfies ORDER BY.
	ordered bool
	// limit is -1 when unlimited.
	limit  int64
	offset int64
	now    time.Time
}

func (q *queryHandle) plan() *queryPlan {
	st, h := q.stmt, q.h
	p := &queryPlan{now: h.db.opt.Now(), limit: st.Limit, offset: st.Offset}
	if n := int64(q.opt.Limit); n > 0 && (p.limit < 0 || n < p.limit) {
		p.limit = n
	}
	if kt, ok := h.schema.KeyType(); ok {
		if st.Where != nil {
			p.keys = tql.KeyBounds(st.Where, 0, kindOf(kt), p.now)
			if lo := p.keys.Lower; lo != nil {
				p.rang.Lower, p.rang.LowerInc = boundKey(kt, lo.Value), lo.Inclusive
			}
			if hi := p.keys.Upper; hi != nil {
				p.rang.Upper, p.rang.UpperInc = boundKey(kt, hi.Value), hi.Inclusive
			}
		}
		if len(st.OrderBy) == 1 && st.OrderBy[0].Column.Index == 0 {
			p.ordered = true
			p.rang.Reverse = st.OrderBy[0].Desc
		}
	}
	if len(st.OrderBy) == 0 {
		p.ordered = true
	}
	return p
}

// matched is a row that passed the WHERE clause.
type matched struct {
	key    []byte
	fields []any
	vals   []tql.Value
}

func (h *containerHandle) values(fields []any) []tql.Value {
	vals := make([]tql.Value, len(fields))
	for i, f := range fields {
		vals[i] = toValue(h.schema.Columns[i].Type, f)
	}
	return vals
}

func (q *queryHandle) match(p *queryPlan, fields []any) ([]tql.Value, bool, error) {
	vals := q.h.values(fields)
	if q.stmt.Where == nil {
		return vals, true, nil
	}
	ok, err := tql.Match(q.stmt.Where, &tql.Env{Now: p.now, Row: vals})
	if err != nil {
		return nil, false, queryErr(err)
	}
	return vals, ok, nil
}

// collect returns the matching rows in scan order, merging in the handle's
// pending writes. When nothing is pending and the scan order is final, it
// stops as soon as enough rows are found; pass all to disable that.
func (q *queryHandle) collect(p *queryPlan, all bool) (rows []matched, scanned int, err error) {
	if p.keys.Empty {
		return nil, 0, nil
	}
	h := q.h
	need := int64(-1)
	if !all && p.ordered && p.limit >= 0 && h.pending.len() == 0 {
		need = p.offset + p.limit
	}
	err = h.db.read(func(tx *tx) error {
		meta, err := h.meta(tx)
		if err != nil {
			return err
		}
		if need == 0 {
			return nil
		}
		_, err = h.scan(tx, p.rang, func(k []byte, fields []any) (bool, error) {
			scanned++
			if h.pending.lookup(k) != nil {
				return true, nil
			}
			vals, ok, err := q.match(p, fields)
			if err != nil || !ok {
				return err == nil, err
			}
			rows = append(rows, matched{bytes.Clone(k), fields, vals})
			return need < 0 || int64(len(rows)) < need, nil
		})
		if err != nil {
			return err
		}
		return q.mergePending(p, meta, &rows)
	})
	return rows, scanned, err
}

func (q *queryHandle) mergePending(p *queryPlan, meta *containerMeta, rows *[]matched) error {
	h := q.h
	if h.pending.len() == 0 {
		return nil
	}
	add := func(k []byte, fields []any) error {
		if !p.rang.Contains(k) {
			return nil
		}
		vals, ok, err := q.match(p, fields)
		if ok {
			*rows = append(*rows, matched{k, fields, vals})
		}
		return err
	}
	for _, ks := range h.pending.order {
		if op := h.pending.byKey[ks]; op.fields != nil {
			if err := add(op.key, op.fields); err != nil {
				return err
			}
		}
	}
	for i, fields := range h.pending.appends {
		if err := add(appendSeqKey(nil, meta.Seq+uint64(i)+1), fields); err != nil {
			return err
		}
	}
	slices.SortFunc(*rows, func(a, b matched) int {
		if p.rang.Reverse {
			return bytes.Compare(b.key, a.key)
		}
		return bytes.Compare(a.key, b.key)
	})
	return nil
}

func (q *queryHandle) sort(rows []matched) {
	terms := q.stmt.OrderBy
	slices.SortStableFunc(rows, func(a, b matched) int {
		for _, t := range terms {
			c, _ := tql.Compare(a.vals[t.Column.Index], b.vals[t.Column.Index])
			if t.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func window(rows []matched, offset, limit int64) []matched {
	if offset >= int64(len(rows)) {
		return nil
	}
	rows = rows[offset:]
	if limit >= 0 && limit < int64(len(rows)) {
		rows = rows[:limit]
	}
	return rows
}

func (q *queryHandle) execute(stream bool) (engine.ResultSet, error) {
	p := q.plan()
	st := q.stmt
	rs := &resultSet{q: q}
	var err error
	switch {
	case st.Explain:
		rs.kind = engine.RowSetQueryAnalysis
		rs.plan, err = q.explain(p)
		rs.size = len(rs.plan)
	case st.Agg != nil:
		rs.kind = engine.RowSetAggregationResult
		rs.aggs, err = q.aggregate(p)
		rs.size = len(rs.aggs)
	case stream && p.ordered && q.h.pending.len() == 0:
		rs.kind = engine.RowSetContainerRows
		rs.stream = newStreamCursor(q, p)
		rs.size = -1
	default:
		rs.kind = engine.RowSetContainerRows
		var rows []matched
		rows, _, err = q.collect(p, false)
		if !p.ordered {
			q.sort(rows)
		}
		for _, m := range window(rows, p.offset, p.limit) {
			rs.rows = append(rs.rows, m.fields)
		}
		rs.size = len(rs.rows)
	}
	if err != nil {
		return nil, err
	}
	q.results = append(q.results, rs)
	q.h.db.logf("localengine: FETCH %s %v size=%d", q.h.name, rs.kind, rs.size)
	return rs, nil
}

func (q *queryHandle) aggregate(p *queryPlan) ([]tql.Value, error) {
	var kind tql.Kind
	if c := q.stmt.Agg.Column; c != nil {
		kind = q.h.cols[c.Index].Kind
	}
	acc, err := tql.NewAccumulator(q.stmt.Agg, kind)
	if err != nil {
		return nil, queryErr(err)
	}
	rows, _, err := q.collect(p, true)
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		acc.Add(m.vals)
	}
	v, ok := acc.Result()
	if !ok || p.offset > 0 || p.limit == 0 {
		return nil, nil
	}
	return []tql.Value{v}, nil
}

func (q *queryHandle) explain(p *queryPlan) ([]engine.AnalysisEntry, error) {
	st := q.stmt
	var entries []engine.AnalysisEntry
	add := func(depth int32, typ, valueType, value string) {
		entries = append(entries, engine.AnalysisEntry{
			ID:        int32(len(entries)),
			Depth:     depth,
			Type:      typ,
			ValueType: valueType,
			Value:     value,
			Statement: st.Text,
		})
	}
	add(0, "QUERY", "STRING", q.h.name)
	switch {
	case p.keys.Empty:
		add(1, "SCAN", "STRING", "EMPTY")
	case p.keys.Full():
		add(1, "SCAN", "STRING", "FULL")
	default:
		add(1, "SCAN", "STRING", "ROWKEY "+p.keys.String())
	}
	if st.Where != nil {
		add(1, "CONDITION", "STRING", st.Where.String())
	}
	if len(st.OrderBy) > 0 {
		var terms []string
		for _, t := range st.OrderBy {
			if t.Desc {
				terms = append(terms, t.Column.Name+" DESC")
			} else {
				terms = append(terms, t.Column.Name+" ASC")
			}
		}
		method := "SORT"
		if p.ordered {
			method = "SCAN_ORDER"
		}
		add(1, "ORDER", "STRING", method+" "+strings.Join(terms, ", "))
	}
	if p.limit >= 0 {
		add(1, "LIMIT", "LONG", strconv.FormatInt(p.limit, 10))
	}
	if p.offset > 0 {
		add(1, "OFFSET", "LONG", strconv.FormatInt(p.offset, 10))
	}
	if st.Agg != nil {
		add(1, "AGGREGATION", "STRING", st.Agg.String())
	}
	if st.Analyze {
		rows, scanned, err := q.collect(p, st.Agg != nil || !p.ordered)
		if err != nil {
			return nil, err
		}
		returned := int64(len(window(rows, p.offset, p.limit)))
		if st.Agg != nil {
			returned = min(returned, 1)
			if st.Agg.Func == tql.AggCount {
				returned = 1
			}
		}
		add(1, "ROWS_SCANNED", "LONG", strconv.Itoa(scanned))
		add(1, "ROWS_RETURNED", "LONG", strconv.FormatInt(returned, 10))
	}
	return entries, nil
}

// streamCursor reads matching rows in batches, each in its own read
// transaction, resuming past the last key it saw.
type streamCursor struct {
	q     *queryHandle
	p     *queryPlan
	rang  RawRange
	skip  int64
	left  int64
	batch [][]any
	pos   int
	done  bool
	err   error
}

func newStreamCursor(q *queryHandle, p *queryPlan) *streamCursor {
	return &streamCursor{
		q:    q,
		p:    p,
		rang: p.rang,
		skip: p.offset,
		left: p.limit,
		done: p.keys.Empty || p.limit == 0,
	}
}

func (s *streamCursor) hasNext() bool {
	for s.pos >= len(s.batch) && !s.done && s.err == nil {
		s.fill()
	}
	return s.pos < len(s.batch) || s.err != nil
}

func (s *streamCursor) next() ([]any, error) {
	if !s.hasNext() {
		return nil, engine.Statusf(engine.StatusNoMoreResults, "no more rows")
	}
	if err := s.err; err != nil {
		s.err, s.done = nil, true
		return nil, err
	}
	fields := s.batch[s.pos]
	s.pos++
	return fields, nil
}

func (s *streamCursor) fill() {
	h := s.q.h
	batchSize := h.db.opt.FetchBatchSize
	s.batch, s.pos = s.batch[:0], 0
	err := h.db.read(func(tx *tx) error {
		if _, err := h.meta(tx); err != nil {
			return err
		}
		var last []byte
		stopped, err := h.scan(tx, s.rang, func(k []byte, fields []any) (bool, error) {
			last = k
			_, ok, err := s.q.match(s.p, fields)
			if err != nil || !ok {
				return err == nil, err
			}
			if s.skip > 0 {
				s.skip--
				return true, nil
			}
			s.batch = append(s.batch, fields)
			if s.left > 0 {
				s.left--
				if s.left == 0 {
					s.done = true
					return false, nil
				}
			}
			return len(s.batch) < batchSize, nil
		})
		if err != nil {
			return err
		}
		if !stopped {
			s.done = true
		} else if last != nil {
			s.rang = s.rang.after(last)
		}
		return nil
	})
	if err != nil {
		s.err = err
		s.batch = s.batch[:0]
	}
}

// resultSet is a materialized or streaming query result.
type resultSet struct {
	q      *queryHandle
	kind   engine.RowSetKind
	size   int
	rows   [][]any
	stream *streamCursor
	aggs   []tql.Value
	plan   []engine.AnalysisEntry
	pos    int
	closed bool
}

var _ engine.ResultSet = (*resultSet)(nil)

func (rs *resultSet) Kind() engine.RowSetKind { return rs.kind }
func (rs *resultSet) Size() int               { return rs.size }

func (rs *resultSet) HasNext() bool {
	if rs.closed {
		return false
	}
	switch {
	case rs.stream != nil:
		return rs.stream.hasNext()
	case rs.kind == engine.RowSetAggregationResult:
		return rs.pos < len(rs.aggs)
	case rs.kind == engine.RowSetQueryAnalysis:
		return rs.pos < len(rs.plan)
	default:
		return rs.pos < len(rs.rows)
	}
}

func (rs *resultSet) check(kind engine.RowSetKind) error {
	if rs.closed {
		return errClosed
	}
	if err := rs.q.h.check(); err != nil {
		return err
	}
	if rs.kind != kind {
		return engine.Statusf(engine.StatusIllegalArgument, "result set holds %v, not %v", rs.kind, kind)
	}
	return nil
}

var errNoMore = engine.Statusf(engine.StatusNoMoreResults, "no more results")

func (rs *resultSet) NextRow(dst engine.Row) error {
	if err := rs.check(engine.RowSetContainerRows); err != nil {
		return err
	}
	out, err := rs.q.h.rowArg(dst)
	if err != nil {
		return err
	}
	var fields []any
	if rs.stream != nil {
		fields, err = rs.stream.next()
		if err != nil {
			return err
		}
	} else {
		if rs.pos >= len(rs.rows) {
			return errNoMore
		}
		fields = rs.rows[rs.pos]
		rs.pos++
	}
	out.load(fields)
	return nil
}

func (rs *resultSet) NextAggregation() (engine.AggregationHandle, error) {
	if err := rs.check(engine.RowSetAggregationResult); err != nil {
		return nil, err
	}
	if rs.pos >= len(rs.aggs) {
		return nil, errNoMore
	}
	v := rs.aggs[rs.pos]
	rs.pos++
	return &aggregation{v: v}, nil
}

func (rs *resultSet) NextAnalysis() (engine.AnalysisEntry, error) {
	if err := rs.check(engine.RowSetQueryAnalysis); err != nil {
		return engine.AnalysisEntry{}, err
	}
	if rs.pos >= len(rs.plan) {
		return engine.AnalysisEntry{}, errNoMore
	}
	e := rs.plan[rs.pos]
	rs.pos++
	return e, nil
}

func (rs *resultSet) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	rs.rows, rs.stream = nil, nil
	rs.q.forget(rs)
	return nil
}

// aggregation converts its value to whatever the caller asks for.
type aggregation struct {
	v      tql.Value
	closed bool
}

func (a *aggregation) Long() (int64, error) {
	if a.closed {
		return 0, errClosed
	}
	if a.v.Kind == tql.KindFloat {
		return int64(a.v.F64), nil
	}
	return a.v.I64, nil
}

func (a *aggregation) Double() (float64, error) {
	if a.closed {
		return 0, errClosed
	}
	if a.v.Kind == tql.KindFloat {
		return a.v.F64, nil
	}
	return float64(a.v.I64), nil
}

func (a *aggregation) Timestamp() (int64, error) {
	return a.Long()
}

func (a *aggregation) Close() error {
	a.closed = true
	return nil
}
