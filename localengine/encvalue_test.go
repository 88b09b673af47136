package localengine

import (
	"bytes"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/andreyvit/griddb/engine"
)

var allTypesSchema = &engine.ContainerSchema{
	Name:   "all",
	RowKey: true,
	Columns: []engine.ColumnSchema{
		{Name: "k", Type: engine.TypeString},
		{Name: "b", Type: engine.TypeBool},
		{Name: "i8", Type: engine.TypeByte},
		{Name: "i16", Type: engine.TypeShort},
		{Name: "i32", Type: engine.TypeInteger},
		{Name: "i64", Type: engine.TypeLong},
		{Name: "f32", Type: engine.TypeFloat},
		{Name: "f64", Type: engine.TypeDouble},
		{Name: "ts", Type: engine.TypeTimestamp},
		{Name: "geo", Type: engine.TypeGeometry},
		{Name: "blob", Type: engine.TypeBlob},
	},
}

func allTypesFields() []any {
	return []any{
		"key", true, int8(-128), int16(32767), int32(-5), int64(math.MaxInt64),
		float32(1.25), math.Inf(-1), int64(1_700_000_000_123), "POINT(1 2)", []byte{0, 1, 2},
	}
}

func TestValue_RoundTrip(t *testing.T) {
	fields := allTypesFields()
	data := must(encodeValue(nil, allTypesSchema, fields, 0))

	out := make([]any, len(fields))
	ensure(decodeValue(data, allTypesSchema, out))
	deepEqual(t, out, fields)
}

func TestValue_Compression(t *testing.T) {
	fields := allTypesFields()
	fields[0] = strings.Repeat("abcd", 1000)
	fields[10] = bytes.Repeat([]byte{7}, 5000)

	plain := must(encodeValue(nil, allTypesSchema, fields, -1))
	packed := must(encodeValue(nil, allTypesSchema, fields, 1024))
	if len(packed) >= len(plain) {
		t.Fatalf("** compressed %d bytes, plain %d bytes", len(packed), len(plain))
	}
	var v storedValue
	ensure(v.decodeHeader(packed))
	deepEqual(t, v.Flags&vfLZ4 != 0, true)

	out := make([]any, len(fields))
	ensure(decodeValue(packed, allTypesSchema, out))
	deepEqual(t, out, fields)
}

func TestValue_SmallRowsStayPlain(t *testing.T) {
	data := must(encodeValue(nil, allTypesSchema, allTypesFields(), 1024))
	var v storedValue
	ensure(v.decodeHeader(data))
	deepEqual(t, v.Flags, vfVer1)
	deepEqual(t, v.Fields, len(allTypesSchema.Columns))
}

func TestValue_Checksum(t *testing.T) {
	data := must(encodeValue(nil, allTypesSchema, allTypesFields(), 0))
	data[len(data)-1] ^= 0xFF

	err := decodeValue(data, allTypesSchema, make([]any, len(allTypesSchema.Columns)))
	var de *DataError
	if !errors.As(err, &de) || !strings.Contains(de.Msg, "checksum") {
		t.Fatalf("** got %v, wanted a checksum DataError", err)
	}
}

func TestValue_Truncated(t *testing.T) {
	data := must(encodeValue(nil, allTypesSchema, allTypesFields(), 0))
	for _, n := range []int{0, 3, minValueSize, len(data) - 1} {
		if err := decodeValue(data[:n], allTypesSchema, make([]any, len(allTypesSchema.Columns))); err == nil {
			t.Errorf("** decoding %d of %d bytes succeeded", n, len(data))
		}
	}
}

func TestValue_SchemaExtension(t *testing.T) {
	short := allTypesSchema.Clone()
	short.Columns = short.Columns[:3]
	fields := allTypesFields()

	// rows written before columns were added read the new columns as zero
	data := must(encodeValue(nil, short, fields[:3], 0))
	out := make([]any, len(allTypesSchema.Columns))
	ensure(decodeValue(data, allTypesSchema, out))
	want := slices.Clone(fields[:3])
	for _, col := range allTypesSchema.Columns[3:] {
		want = append(want, zeroField(col.Type))
	}
	deepEqual(t, out, want)

	// handles opened before the extension ignore the new columns
	data = must(encodeValue(nil, allTypesSchema, fields, 0))
	out = make([]any, 3)
	ensure(decodeValue(data, short, out))
	deepEqual(t, out, fields[:3])
}

func TestValue_UnsupportedFlags(t *testing.T) {
	data := must(encodeValue(nil, allTypesSchema, allTypesFields(), 0))
	data[0] = 0x02
	if err := decodeValue(data, allTypesSchema, make([]any, len(allTypesSchema.Columns))); err == nil {
		t.Fatalf("** decoding version 2 succeeded")
	}
}
