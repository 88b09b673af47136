package griddb

import (
	"bytes"

	"github.com/andreyvit/griddb/engine"
)

// decodeRow copies every column of buf into a fresh Row. Decoding is all or
// nothing: the first failing column aborts it.
//
// Geometry columns are rejected rather than skipped, since skipping would
// shift every later column out of place.
func decodeRow(buf engine.Row, types []Type) (Row, error) {
	row := make(Row, len(types))
	for col, typ := range types {
		v, err := decodeField(buf, col, typ)
		if err != nil {
			return nil, err
		}
		row[col] = v
	}
	return row, nil
}

func decodeField(buf engine.Row, col int, typ Type) (Value, error) {
	switch typ {
	case TypeString:
		v, err := buf.GetString(col)
		return Value{typ: typ, s: v}, fieldErr(err)
	case TypeBool:
		v, err := buf.GetBool(col)
		return BoolValue(v), fieldErr(err)
	case TypeByte:
		v, err := buf.GetByte(col)
		return ByteValue(v), fieldErr(err)
	case TypeShort:
		v, err := buf.GetShort(col)
		return ShortValue(v), fieldErr(err)
	case TypeInteger:
		v, err := buf.GetInteger(col)
		return IntegerValue(v), fieldErr(err)
	case TypeLong:
		v, err := buf.GetLong(col)
		return LongValue(v), fieldErr(err)
	case TypeFloat:
		v, err := buf.GetFloat(col)
		return FloatValue(v), fieldErr(err)
	case TypeDouble:
		v, err := buf.GetDouble(col)
		return DoubleValue(v), fieldErr(err)
	case TypeTimestamp:
		v, err := buf.GetTimestamp(col)
		return TimestampValue(Timestamp(v)), fieldErr(err)
	case TypeGeometry:
		return Value{}, errf(KindUnsupported, nil, "decoding GEOMETRY columns is not implemented")
	case TypeBlob:
		v, err := buf.GetBlob(col)
		if err != nil {
			return Value{}, fieldErr(err)
		}
		// the buffer is reused by the next operation
		return Value{typ: typ, b: bytes.Clone(nonNilBytes(v))}, nil
	default:
		return Value{}, errf(KindEngine, nil, "unknown column type %v", typ)
	}
}

func fieldErr(err error) error {
	if err == nil {
		return nil
	}
	return engineErr("", err)
}

// checkRow verifies that row matches the column types. It runs before
// anything is written into the row buffer, so a mismatch leaves the buffer
// and the engine untouched.
func checkRow(row Row, cols []ColumnInfo) error {
	if len(row) != len(cols) {
		return convertErrf("row has %d values, container has %d columns", len(row), len(cols))
	}
	for i, v := range row {
		if v.typ != cols[i].Type {
			return convertErrf("value is %v, column is %v", v.typ, cols[i].Type).col(cols[i].Name)
		}
	}
	return nil
}

// encodeRow writes a checked row into buf.
func encodeRow(buf engine.Row, row Row, cols []ColumnInfo) error {
	if err := checkRow(row, cols); err != nil {
		return err
	}
	for col, v := range row {
		if err := encodeField(buf, col, v); err != nil {
			return engineErr("", err).col(cols[col].Name)
		}
	}
	return nil
}

func encodeField(buf engine.Row, col int, v Value) error {
	switch v.typ {
	case TypeString:
		return buf.SetString(col, v.s)
	case TypeBool:
		return buf.SetBool(col, v.i != 0)
	case TypeByte:
		return buf.SetByte(col, int8(v.i))
	case TypeShort:
		return buf.SetShort(col, int16(v.i))
	case TypeInteger:
		return buf.SetInteger(col, int32(v.i))
	case TypeLong:
		return buf.SetLong(col, v.i)
	case TypeFloat:
		return buf.SetFloat(col, float32(v.f))
	case TypeDouble:
		return buf.SetDouble(col, v.f)
	case TypeTimestamp:
		return buf.SetTimestamp(col, v.i)
	case TypeGeometry:
		return buf.SetGeometry(col, v.s)
	case TypeBlob:
		return buf.SetBlob(col, nonNilBytes(v.b))
	default:
		return engine.Statusf(engine.StatusTypeMismatch, "unknown value type %v", v.typ)
	}
}
