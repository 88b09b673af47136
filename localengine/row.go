package localengine

import (
	"bytes"

	"github.com/andreyvit/griddb/engine"
)

// row is a row buffer. fields holds one typed value per column, in the
// representation encodeFields expects.
type row struct {
	schema *engine.ContainerSchema
	fields []any
	closed bool
}

var _ engine.Row = (*row)(nil)

func newRow(schema *engine.ContainerSchema) *row {
	r := &row{schema: schema, fields: make([]any, len(schema.Columns))}
	r.reset()
	return r
}

func (r *row) reset() {
	for i, col := range r.schema.Columns {
		r.fields[i] = zeroField(col.Type)
	}
}

func (r *row) Schema() *engine.ContainerSchema {
	return r.schema
}

func (r *row) Close() error {
	r.closed = true
	return nil
}

func (r *row) check(col int, tc engine.TypeCode) error {
	if r.closed {
		return errClosed
	}
	if col < 0 || col >= len(r.fields) {
		return engine.Statusf(engine.StatusIllegalArgument, "%s: column %d out of range", r.schema.Name, col)
	}
	if actual := r.schema.Columns[col].Type; actual != tc {
		return engine.Statusf(engine.StatusTypeMismatch, "%s.%s is %v, not %v", r.schema.Name, r.schema.Columns[col].Name, actual, tc)
	}
	return nil
}

func (r *row) set(col int, tc engine.TypeCode, v any) error {
	if err := r.check(col, tc); err != nil {
		return err
	}
	r.fields[col] = v
	return nil
}

func (r *row) SetString(col int, v string) error   { return r.set(col, engine.TypeString, v) }
func (r *row) SetBool(col int, v bool) error       { return r.set(col, engine.TypeBool, v) }
func (r *row) SetByte(col int, v int8) error       { return r.set(col, engine.TypeByte, v) }
func (r *row) SetShort(col int, v int16) error     { return r.set(col, engine.TypeShort, v) }
func (r *row) SetInteger(col int, v int32) error   { return r.set(col, engine.TypeInteger, v) }
func (r *row) SetLong(col int, v int64) error      { return r.set(col, engine.TypeLong, v) }
func (r *row) SetFloat(col int, v float32) error   { return r.set(col, engine.TypeFloat, v) }
func (r *row) SetDouble(col int, v float64) error  { return r.set(col, engine.TypeDouble, v) }
func (r *row) SetTimestamp(col int, v int64) error { return r.set(col, engine.TypeTimestamp, v) }
func (r *row) SetGeometry(col int, v string) error { return r.set(col, engine.TypeGeometry, v) }

// SetBlob stores a copy; callers may reuse v.
func (r *row) SetBlob(col int, v []byte) error {
	if v == nil {
		v = []byte{}
	}
	return r.set(col, engine.TypeBlob, bytes.Clone(v))
}

func get[T any](r *row, col int, tc engine.TypeCode) (T, error) {
	if err := r.check(col, tc); err != nil {
		var zero T
		return zero, err
	}
	return r.fields[col].(T), nil
}

func (r *row) GetString(col int) (string, error)   { return get[string](r, col, engine.TypeString) }
func (r *row) GetBool(col int) (bool, error)       { return get[bool](r, col, engine.TypeBool) }
func (r *row) GetByte(col int) (int8, error)       { return get[int8](r, col, engine.TypeByte) }
func (r *row) GetShort(col int) (int16, error)     { return get[int16](r, col, engine.TypeShort) }
func (r *row) GetInteger(col int) (int32, error)   { return get[int32](r, col, engine.TypeInteger) }
func (r *row) GetLong(col int) (int64, error)      { return get[int64](r, col, engine.TypeLong) }
func (r *row) GetFloat(col int) (float32, error)   { return get[float32](r, col, engine.TypeFloat) }
func (r *row) GetDouble(col int) (float64, error)  { return get[float64](r, col, engine.TypeDouble) }
func (r *row) GetTimestamp(col int) (int64, error) { return get[int64](r, col, engine.TypeTimestamp) }
func (r *row) GetGeometry(col int) (string, error) { return get[string](r, col, engine.TypeGeometry) }
func (r *row) GetBlob(col int) ([]byte, error)     { return get[[]byte](r, col, engine.TypeBlob) }

// load copies fields into the buffer. Blobs are shared: the buffer never
// mutates a blob in place.
func (r *row) load(fields []any) {
	copy(r.fields, fields)
}
