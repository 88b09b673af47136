package tql

import (
	"math"
	"time"
)

// Env is the evaluation context of one row.
type Env struct {
	Now time.Time
	Row []Value
}

// Match evaluates a WHERE expression. A nil expression matches every row.
func Match(e Expr, env *Env) (bool, error) {
	if e == nil {
		return true, nil
	}
	v, err := e.Eval(env)
	if err != nil {
		return false, err
	}
	if v.Kind != KindBool {
		return false, evalErrf("WHERE must be a condition, got %v", v.Kind)
	}
	return v.Truth(), nil
}

func (e *Literal) Eval(env *Env) (Value, error) {
	return e.Value, nil
}

func (e *ColumnRef) Eval(env *Env) (Value, error) {
	if e.Index < 0 || e.Index >= len(env.Row) {
		return Value{}, evalErrf("column %s is not bound", e.Name)
	}
	return env.Row[e.Index], nil
}

func (e *Unary) Eval(env *Env) (Value, error) {
	x, err := e.X.Eval(env)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case "NOT":
		if x.Kind != KindBool {
			return Value{}, evalErrf("NOT needs a condition, got %v", x.Kind)
		}
		return Bool(!x.Truth()), nil
	case "-":
		switch x.Kind {
		case KindInt:
			return Int(-x.I64), nil
		case KindFloat:
			return Float(-x.F64), nil
		}
		return Value{}, evalErrf("cannot negate %v", x.Kind)
	}
	return Value{}, evalErrf("unknown operator %s", e.Op)
}

func (e *Binary) Eval(env *Env) (Value, error) {
	l, err := e.L.Eval(env)
	if err != nil {
		return Value{}, err
	}

	// short circuit
	switch e.Op {
	case "AND", "OR":
		if l.Kind != KindBool {
			return Value{}, evalErrf("%s needs conditions, got %v", e.Op, l.Kind)
		}
		if (e.Op == "AND" && !l.Truth()) || (e.Op == "OR" && l.Truth()) {
			return l, nil
		}
		r, err := e.R.Eval(env)
		if err != nil {
			return Value{}, err
		}
		if r.Kind != KindBool {
			return Value{}, evalErrf("%s needs conditions, got %v", e.Op, r.Kind)
		}
		return r, nil
	}

	r, err := e.R.Eval(env)
	if err != nil {
		return Value{}, err
	}
	switch e.Op {
	case "=", "!=", "<", "<=", ">", ">=":
		return compareOp(e.Op, l, r)
	default:
		return arith(e.Op, l, r)
	}
}

func compareOp(op string, l, r Value) (Value, error) {
	// NaN is unequal to everything, itself included
	if (l.Kind == KindFloat && math.IsNaN(l.F64)) || (r.Kind == KindFloat && math.IsNaN(r.F64)) {
		if l.IsNumeric() && r.IsNumeric() {
			return Bool(op == "!="), nil
		}
	}
	if l.Kind != r.Kind && !(l.IsNumeric() && r.IsNumeric()) {
		return Value{}, evalErrf("cannot compare %v with %v", l.Kind, r.Kind)
	}
	if (l.Kind == KindBool || l.Kind == KindBlob) && op != "=" && op != "!=" {
		return Value{}, evalErrf("%v values only support = and !=", l.Kind)
	}
	c, err := Compare(l, r)
	if err != nil {
		return Value{}, err
	}
	switch op {
	case "=":
		return Bool(c == 0), nil
	case "!=":
		return Bool(c != 0), nil
	case "<":
		return Bool(c < 0), nil
	case "<=":
		return Bool(c <= 0), nil
	case ">":
		return Bool(c > 0), nil
	default:
		return Bool(c >= 0), nil
	}
}

func arith(op string, l, r Value) (Value, error) {
	if !l.IsNumeric() || !r.IsNumeric() {
		return Value{}, evalErrf("%s needs numbers, got %v and %v", op, l.Kind, r.Kind)
	}
	if l.Kind == KindInt && r.Kind == KindInt {
		a, b := l.I64, r.I64
		switch op {
		case "+":
			return Int(a + b), nil
		case "-":
			return Int(a - b), nil
		case "*":
			return Int(a * b), nil
		case "/", "%":
			if b == 0 {
				return Value{}, evalErrf("division by zero")
			}
			if op == "/" {
				return Int(a / b), nil
			}
			return Int(a % b), nil
		}
	}
	a, b := l.asFloat(), r.asFloat()
	switch op {
	case "+":
		return Float(a + b), nil
	case "-":
		return Float(a - b), nil
	case "*":
		return Float(a * b), nil
	case "/":
		return Float(a / b), nil
	case "%":
		return Float(math.Mod(a, b)), nil
	}
	return Value{}, evalErrf("unknown operator %s", op)
}
