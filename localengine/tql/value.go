package tql

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the runtime type of a Value.
type Kind int

const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindString
	KindTimestamp
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "BOOL"
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "FLOAT"
	case KindString:
		return "STRING"
	case KindTimestamp:
		return "TIMESTAMP"
	case KindBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Value is a single value seen by the evaluator. Byte, Short, Integer and
// Long columns are all KindInt; Float and Double are KindFloat; Geometry is
// KindString in its WKT form. Timestamps are milliseconds since the epoch.
//
// Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	I64 int64   // KindInt, KindTimestamp, KindBool (0 or 1)
	F64 float64 // KindFloat
	S   string  // KindString
	B   []byte  // KindBlob
}

func Bool(v bool) Value {
	if v {
		return Value{Kind: KindBool, I64: 1}
	}
	return Value{Kind: KindBool}
}
func Int(v int64) Value          { return Value{Kind: KindInt, I64: v} }
func Float(v float64) Value      { return Value{Kind: KindFloat, F64: v} }
func String(v string) Value      { return Value{Kind: KindString, S: v} }
func Timestamp(ms int64) Value   { return Value{Kind: KindTimestamp, I64: ms} }
func Blob(v []byte) Value        { return Value{Kind: KindBlob, B: v} }
func (v Value) Truth() bool      { return v.Kind == KindBool && v.I64 != 0 }
func (v Value) IsNumeric() bool  { return v.Kind == KindInt || v.Kind == KindFloat }
func (v Value) Time() time.Time  { return time.UnixMilli(v.I64).UTC() }

func (v Value) asFloat() float64 {
	if v.Kind == KindFloat {
		return v.F64
	}
	return float64(v.I64)
}

func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.I64 != 0)
	case KindInt:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return strconv.FormatFloat(v.F64, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.S)
	case KindTimestamp:
		return "TIMESTAMP('" + v.Time().Format(timestampLayout) + "')"
	case KindBlob:
		return fmt.Sprintf("BLOB(%d)", len(v.B))
	default:
		return "?"
	}
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Compare orders a and b. Integers and floats compare numerically; other
// kinds only compare with themselves.
func Compare(a, b Value) (int, error) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		if a.Kind == KindInt && b.Kind == KindInt {
			return cmpInt(a.I64, b.I64), nil
		}
		return cmpFloat(a.asFloat(), b.asFloat()), nil
	case a.Kind != b.Kind:
		return 0, evalErrf("cannot compare %v with %v", a.Kind, b.Kind)
	}
	switch a.Kind {
	case KindBool, KindTimestamp:
		return cmpInt(a.I64, b.I64), nil
	case KindString:
		switch {
		case a.S < b.S:
			return -1, nil
		case a.S > b.S:
			return 1, nil
		}
		return 0, nil
	case KindBlob:
		return bytes.Compare(a.B, b.B), nil
	default:
		return 0, evalErrf("cannot compare %v values", a.Kind)
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpFloat sorts NaN after every other value so ORDER BY stays total.
func cmpFloat(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
