package griddb

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Value is a single column value tagged with its Type. The zero Value is an
// empty String.
//
// Conversions back to native types are fallible: reading a Value as the wrong
// type returns a convert error instead of a placeholder.
type Value struct {
	typ Type
	i   int64   // Bool, Byte, Short, Integer, Long, Timestamp
	f   float64 // Float, Double
	s   string  // String, Geometry
	b   []byte  // Blob
}

// Row is an ordered sequence of values aligned with a container's columns.
type Row []Value

func StringValue(v string) Value { return Value{typ: TypeString, s: v} }
func BoolValue(v bool) Value {
	if v {
		return Value{typ: TypeBool, i: 1}
	}
	return Value{typ: TypeBool}
}
func ByteValue(v int8) Value       { return Value{typ: TypeByte, i: int64(v)} }
func ShortValue(v int16) Value     { return Value{typ: TypeShort, i: int64(v)} }
func IntegerValue(v int32) Value   { return Value{typ: TypeInteger, i: int64(v)} }
func LongValue(v int64) Value      { return Value{typ: TypeLong, i: v} }
func FloatValue(v float32) Value   { return Value{typ: TypeFloat, f: float64(v)} }
func DoubleValue(v float64) Value  { return Value{typ: TypeDouble, f: v} }
func TimestampValue(v Timestamp) Value {
	return Value{typ: TypeTimestamp, i: int64(v)}
}

// GeometryValue holds a geometry in WKT form, e.g. "POINT(1 2)".
func GeometryValue(wkt string) Value { return Value{typ: TypeGeometry, s: wkt} }

// BlobValue copies v.
func BlobValue(v []byte) Value {
	return Value{typ: TypeBlob, b: bytes.Clone(nonNilBytes(v))}
}

// ValueOf converts a native scalar into a Value:
//
//	string -> String, bool -> Bool, int8 -> Byte, int16 -> Short,
//	int32 -> Integer, int64/int -> Long, float32 -> Float, float64 -> Double,
//	Timestamp/time.Time -> Timestamp, []byte -> Blob, Value -> itself.
//
// Geometry values must be built with GeometryValue.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case Value:
		return x, nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case int8:
		return ByteValue(x), nil
	case int16:
		return ShortValue(x), nil
	case int32:
		return IntegerValue(x), nil
	case int64:
		return LongValue(x), nil
	case int:
		return LongValue(int64(x)), nil
	case float32:
		return FloatValue(x), nil
	case float64:
		return DoubleValue(x), nil
	case Timestamp:
		return TimestampValue(x), nil
	case time.Time:
		return TimestampValue(TimestampOf(x)), nil
	case []byte:
		return BlobValue(x), nil
	default:
		return Value{}, convertErrf("cannot convert %T to a value", x)
	}
}

// MakeRow builds a Row out of native scalars using ValueOf.
func MakeRow(xs ...any) (Row, error) {
	row := make(Row, len(xs))
	for i, x := range xs {
		v, err := ValueOf(x)
		if err != nil {
			return nil, err.(*Error).col(strconv.Itoa(i))
		}
		row[i] = v
	}
	return row, nil
}

func (v Value) Type() Type {
	return v.typ
}

func (v Value) mismatch(want Type) error {
	return convertErrf("value is %v, not %v", v.typ, want)
}

func (v Value) AsString() (string, error) {
	if v.typ != TypeString {
		return "", v.mismatch(TypeString)
	}
	return v.s, nil
}

func (v Value) AsBool() (bool, error) {
	if v.typ != TypeBool {
		return false, v.mismatch(TypeBool)
	}
	return v.i != 0, nil
}

func (v Value) AsByte() (int8, error) {
	if v.typ != TypeByte {
		return 0, v.mismatch(TypeByte)
	}
	return int8(v.i), nil
}

func (v Value) AsShort() (int16, error) {
	if v.typ != TypeShort {
		return 0, v.mismatch(TypeShort)
	}
	return int16(v.i), nil
}

func (v Value) AsInteger() (int32, error) {
	if v.typ != TypeInteger {
		return 0, v.mismatch(TypeInteger)
	}
	return int32(v.i), nil
}

func (v Value) AsLong() (int64, error) {
	if v.typ != TypeLong {
		return 0, v.mismatch(TypeLong)
	}
	return v.i, nil
}

func (v Value) AsFloat() (float32, error) {
	if v.typ != TypeFloat {
		return 0, v.mismatch(TypeFloat)
	}
	return float32(v.f), nil
}

func (v Value) AsDouble() (float64, error) {
	if v.typ != TypeDouble {
		return 0, v.mismatch(TypeDouble)
	}
	return v.f, nil
}

func (v Value) AsTimestamp() (Timestamp, error) {
	if v.typ != TypeTimestamp {
		return 0, v.mismatch(TypeTimestamp)
	}
	return Timestamp(v.i), nil
}

func (v Value) AsGeometry() (string, error) {
	if v.typ != TypeGeometry {
		return "", v.mismatch(TypeGeometry)
	}
	return v.s, nil
}

// AsBlob returns a copy of the blob bytes.
func (v Value) AsBlob() ([]byte, error) {
	if v.typ != TypeBlob {
		return nil, v.mismatch(TypeBlob)
	}
	return bytes.Clone(nonNilBytes(v.b)), nil
}

// Native is the set of Go types a Value converts to.
type Native interface {
	string | bool | int8 | int16 | int32 | int64 | float32 | float64 | Timestamp | []byte
}

// Get extracts the native value of v as T. Geometry values are read with
// AsGeometry.
func Get[T Native](v Value) (T, error) {
	var zero T
	var r any
	var err error
	switch any(zero).(type) {
	case string:
		r, err = v.AsString()
	case bool:
		r, err = v.AsBool()
	case int8:
		r, err = v.AsByte()
	case int16:
		r, err = v.AsShort()
	case int32:
		r, err = v.AsInteger()
	case int64:
		r, err = v.AsLong()
	case float32:
		r, err = v.AsFloat()
	case float64:
		r, err = v.AsDouble()
	case Timestamp:
		r, err = v.AsTimestamp()
	case []byte:
		r, err = v.AsBlob()
	}
	if err != nil {
		return zero, err
	}
	return r.(T), nil
}

// Equal compares type and content. Floating-point values compare by IEEE-754
// equality, so NaN is never equal to anything and -0 equals +0.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeString, TypeGeometry:
		return v.s == o.s
	case TypeFloat, TypeDouble:
		return v.f == o.f
	case TypeBlob:
		return bytes.Equal(v.b, o.b)
	default:
		return v.i == o.i
	}
}

// Identical is like Equal, but compares floating-point values bit for bit.
func (v Value) Identical(o Value) bool {
	if v.typ == o.typ && (v.typ == TypeFloat || v.typ == TypeDouble) {
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	}
	return v.Equal(o)
}

func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return strconv.Quote(v.s)
	case TypeBool:
		return strconv.FormatBool(v.i != 0)
	case TypeByte, TypeShort, TypeInteger, TypeLong:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeTimestamp:
		return Timestamp(v.i).String()
	case TypeGeometry:
		return "GEOMETRY(" + v.s + ")"
	case TypeBlob:
		if utf8.Valid(v.b) && len(v.b) <= 32 {
			return fmt.Sprintf("blob(%q)", v.b)
		}
		return fmt.Sprintf("blob(%d bytes)", len(v.b))
	default:
		return fmt.Sprintf("?%v", v.typ)
	}
}

func (row Row) Equal(o Row) bool {
	if len(row) != len(o) {
		return false
	}
	for i, v := range row {
		if !v.Equal(o[i]) {
			return false
		}
	}
	return true
}

func (row Row) String() string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, v := range row {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(v.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
