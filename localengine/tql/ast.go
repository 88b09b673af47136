package tql

import (
	"strings"
)

// Statement is a parsed TQL query.
type Statement struct {
	Text    string
	Explain bool
	Analyze bool

	// Agg is nil for SELECT *.
	Agg     *Aggregate
	From    string
	Where   Expr
	OrderBy []OrderTerm
	// Limit is -1 when absent.
	Limit  int64
	Offset int64
}

// AggFunc is an aggregation function.
type AggFunc string

const (
	AggCount AggFunc = "COUNT"
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggMin   AggFunc = "MIN"
	AggMax   AggFunc = "MAX"
)

type Aggregate struct {
	Func AggFunc
	// Column is nil for COUNT(*).
	Column *ColumnRef
}

func (a *Aggregate) String() string {
	if a.Column == nil {
		return string(a.Func) + "(*)"
	}
	return string(a.Func) + "(" + a.Column.Name + ")"
}

type OrderTerm struct {
	Column *ColumnRef
	Desc   bool
}

// Expr is a WHERE clause expression.
type Expr interface {
	Eval(env *Env) (Value, error)
	String() string
}

type Literal struct {
	Value Value
}

// ColumnRef names a column. Index is resolved by Statement.Bind.
type ColumnRef struct {
	Name  string
	Index int
}

type Unary struct {
	Op string // NOT, -
	X  Expr
}

type Binary struct {
	Op   string // OR, AND, =, !=, <, <=, >, >=, +, -, *, /, %
	L, R Expr
}

// Call is a function call. Unit is set for functions taking a time unit as
// their first argument (TIMESTAMPADD, TIMESTAMPDIFF).
type Call struct {
	Name string
	Unit TimeUnit
	Args []Expr
}

func (e *Literal) String() string   { return e.Value.String() }
func (e *ColumnRef) String() string { return e.Name }
func (e *Unary) String() string {
	if e.Op == "NOT" {
		return "NOT " + e.X.String()
	}
	return e.Op + e.X.String()
}
func (e *Binary) String() string {
	return "(" + e.L.String() + " " + e.Op + " " + e.R.String() + ")"
}
func (e *Call) String() string {
	var buf strings.Builder
	buf.WriteString(e.Name)
	buf.WriteByte('(')
	if e.Unit != 0 {
		buf.WriteString(e.Unit.String())
		if len(e.Args) > 0 {
			buf.WriteString(", ")
		}
	}
	for i, a := range e.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(a.String())
	}
	buf.WriteByte(')')
	return buf.String()
}

// Walk calls f for e and every expression below it, stopping at the first
// false.
func Walk(e Expr, f func(Expr) bool) bool {
	if e == nil {
		return true
	}
	if !f(e) {
		return false
	}
	switch e := e.(type) {
	case *Unary:
		return Walk(e.X, f)
	case *Binary:
		return Walk(e.L, f) && Walk(e.R, f)
	case *Call:
		for _, a := range e.Args {
			if !Walk(a, f) {
				return false
			}
		}
	}
	return true
}

// IsConstant reports whether e references no columns.
func IsConstant(e Expr) bool {
	return Walk(e, func(e Expr) bool {
		_, isCol := e.(*ColumnRef)
		return !isCol
	})
}

// Column describes a container column for Bind.
type Column struct {
	Name string
	Kind Kind
}

// Bind resolves column references against the container columns and checks
// that the statement targets container (when FROM is given).
func (s *Statement) Bind(container string, cols []Column) error {
	if s.From != "" && !strings.EqualFold(s.From, container) {
		return columnErrf("query targets %s, not %s", s.From, container)
	}
	resolve := func(c *ColumnRef) error {
		for i, col := range cols {
			if strings.EqualFold(col.Name, c.Name) {
				c.Index = i
				return nil
			}
		}
		return columnErrf("%s has no column %q", container, c.Name)
	}
	var err error
	Walk(s.Where, func(e Expr) bool {
		if c, ok := e.(*ColumnRef); ok {
			err = resolve(c)
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	for _, t := range s.OrderBy {
		if err := resolve(t.Column); err != nil {
			return err
		}
	}
	if s.Agg != nil && s.Agg.Column != nil {
		if err := resolve(s.Agg.Column); err != nil {
			return err
		}
	}
	return nil
}
