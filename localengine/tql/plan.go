package tql

import (
	"strings"
	"time"
)

type Bound struct {
	Value     Value
	Inclusive bool
}

// KeyRange is the part of a WHERE clause that constrains the row key. Rows
// outside the range can never match; rows inside it still need the full
// WHERE clause.
type KeyRange struct {
	Lower, Upper *Bound
	// Empty means no row can match.
	Empty bool
}

func (r KeyRange) Full() bool {
	return r.Lower == nil && r.Upper == nil && !r.Empty
}

func (r KeyRange) String() string {
	if r.Empty {
		return "empty"
	}
	if r.Full() {
		return "full"
	}
	var buf strings.Builder
	if r.Lower == nil {
		buf.WriteString("(-inf")
	} else {
		if r.Lower.Inclusive {
			buf.WriteByte('[')
		} else {
			buf.WriteByte('(')
		}
		buf.WriteString(r.Lower.Value.String())
	}
	buf.WriteString(", ")
	if r.Upper == nil {
		buf.WriteString("+inf)")
	} else {
		buf.WriteString(r.Upper.Value.String())
		if r.Upper.Inclusive {
			buf.WriteByte(']')
		} else {
			buf.WriteByte(')')
		}
	}
	return buf.String()
}

// KeyBounds extracts row-key bounds out of the top-level conjunction of a
// bound WHERE clause. Only comparisons of the key column against constants
// of the key's kind are used; everything else is left to Match.
func KeyBounds(where Expr, keyCol int, keyKind Kind, now time.Time) KeyRange {
	var r KeyRange
	env := &Env{Now: now}
	for _, c := range conjuncts(where, nil) {
		b, ok := c.(*Binary)
		if !ok {
			continue
		}
		op, col, other := b.Op, b.L, b.R
		if _, isCol := col.(*ColumnRef); !isCol {
			op, col, other = flip(op), b.R, b.L
		}
		ref, isCol := col.(*ColumnRef)
		if !isCol || ref.Index != keyCol || !IsConstant(other) {
			continue
		}
		v, err := other.Eval(env)
		if err != nil || v.Kind != keyKind {
			continue
		}
		switch op {
		case "=":
			r.tightenLower(Bound{v, true})
			r.tightenUpper(Bound{v, true})
		case ">":
			r.tightenLower(Bound{v, false})
		case ">=":
			r.tightenLower(Bound{v, true})
		case "<":
			r.tightenUpper(Bound{v, false})
		case "<=":
			r.tightenUpper(Bound{v, true})
		}
	}
	if r.Lower != nil && r.Upper != nil {
		c, _ := Compare(r.Lower.Value, r.Upper.Value)
		if c > 0 || (c == 0 && !(r.Lower.Inclusive && r.Upper.Inclusive)) {
			r.Empty = true
		}
	}
	return r
}

func conjuncts(e Expr, out []Expr) []Expr {
	if b, ok := e.(*Binary); ok && b.Op == "AND" {
		return conjuncts(b.R, conjuncts(b.L, out))
	}
	if e != nil {
		out = append(out, e)
	}
	return out
}

func flip(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	}
	return op
}

func (r *KeyRange) tightenLower(b Bound) {
	if r.Lower == nil {
		r.Lower = &b
		return
	}
	c, _ := Compare(b.Value, r.Lower.Value)
	if c > 0 || (c == 0 && !b.Inclusive) {
		r.Lower = &b
	}
}

func (r *KeyRange) tightenUpper(b Bound) {
	if r.Upper == nil {
		r.Upper = &b
		return
	}
	c, _ := Compare(b.Value, r.Upper.Value)
	if c < 0 || (c == 0 && !b.Inclusive) {
		r.Upper = &b
	}
}
