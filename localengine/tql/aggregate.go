package tql

// Accumulator computes one aggregation over a stream of rows.
type Accumulator struct {
	agg  *Aggregate
	kind Kind
	n    int64
	sumI int64
	sumF float64
	best Value
}

// NewAccumulator checks that the aggregation applies to a column of the
// given kind (ignored for COUNT(*)).
func NewAccumulator(agg *Aggregate, colKind Kind) (*Accumulator, error) {
	switch agg.Func {
	case AggSum, AggAvg:
		if colKind != KindInt && colKind != KindFloat {
			return nil, unsupportedErrf(-1, "%v of a %v column", agg, colKind)
		}
	case AggMin, AggMax:
		if colKind != KindInt && colKind != KindFloat && colKind != KindTimestamp {
			return nil, unsupportedErrf(-1, "%v of a %v column", agg, colKind)
		}
	}
	return &Accumulator{agg: agg, kind: colKind}, nil
}

func (a *Accumulator) Add(row []Value) {
	a.n++
	if a.agg.Column == nil {
		return
	}
	v := row[a.agg.Column.Index]
	switch a.agg.Func {
	case AggSum, AggAvg:
		if v.Kind == KindInt {
			a.sumI += v.I64
		}
		a.sumF += v.asFloat()
	case AggMin, AggMax:
		if a.n == 1 {
			a.best = v
			return
		}
		c, _ := Compare(v, a.best)
		if (a.agg.Func == AggMin && c < 0) || (a.agg.Func == AggMax && c > 0) {
			a.best = v
		}
	}
}

// Result returns the aggregated value. Over zero rows, COUNT yields 0 and
// every other aggregation yields nothing.
func (a *Accumulator) Result() (Value, bool) {
	if a.agg.Func == AggCount {
		return Int(a.n), true
	}
	if a.n == 0 {
		return Value{}, false
	}
	switch a.agg.Func {
	case AggSum:
		if a.kind == KindInt {
			return Int(a.sumI), true
		}
		return Float(a.sumF), true
	case AggAvg:
		return Float(a.sumF / float64(a.n)), true
	default:
		return a.best, true
	}
}
