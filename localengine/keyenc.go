package localengine

import (
	"encoding/binary"

	"github.com/andreyvit/griddb/engine"
	"github.com/andreyvit/griddb/localengine/tql"
)

// Row keys are stored so that byte order matches value order. Every key
// starts with a tag byte, which also keeps the empty string a non-empty key.
const (
	keyTagString = 0x01
	keyTagInt    = 0x02
	keyTagSeq    = 0x03
)

const signBit = 1 << 63

func appendIntKey(buf []byte, v int64) []byte {
	buf = append(buf, keyTagInt)
	return appendUint64(buf, uint64(v)^signBit)
}

func appendStringKey(buf []byte, v string) []byte {
	buf = append(buf, keyTagString)
	return append(buf, v...)
}

func appendSeqKey(buf []byte, seq uint64) []byte {
	buf = append(buf, keyTagSeq)
	return appendUint64(buf, seq)
}

// encodeKey encodes a lookup key, checking it against the row-key column.
func encodeKey(buf []byte, schema *engine.ContainerSchema, k engine.Key) ([]byte, error) {
	kt, ok := schema.KeyType()
	if !ok {
		return nil, engine.Statusf(engine.StatusNoRowKey, "%s has no row key", schema.Name)
	}
	if k.Type != kt {
		return nil, engine.Statusf(engine.StatusTypeMismatch, "%s: key is %v, row key is %v", schema.Name, k.Type, kt)
	}
	if kt == engine.TypeString {
		return appendStringKey(buf, k.S), nil
	}
	return appendIntKey(buf, k.I), nil
}

// rowKey encodes the key of a row held in fields. Containers without a row
// key return nil; their keys come from the sequence.
func rowKey(buf []byte, schema *engine.ContainerSchema, fields []any) []byte {
	if !schema.RowKey {
		return nil
	}
	switch v := fields[0].(type) {
	case string:
		return appendStringKey(buf, v)
	case int32:
		return appendIntKey(buf, int64(v))
	case int64:
		return appendIntKey(buf, v)
	default:
		panic("unreachable: row key field is " + schema.Columns[0].Type.String())
	}
}

// boundKey encodes a TQL key bound for a range scan.
func boundKey(kt engine.TypeCode, v tql.Value) []byte {
	if kt == engine.TypeString {
		return appendStringKey(nil, v.S)
	}
	return appendIntKey(nil, v.I64)
}

// decodeKeyString renders a stored key for logs and plans.
func decodeKeyString(k []byte) string {
	if len(k) == 0 {
		return "<empty>"
	}
	switch k[0] {
	case keyTagString:
		return string(k[1:])
	case keyTagInt:
		if len(k) == 9 {
			return formatInt(int64(binary.BigEndian.Uint64(k[1:]) ^ signBit))
		}
	case keyTagSeq:
		if len(k) == 9 {
			return "#" + formatInt(int64(binary.BigEndian.Uint64(k[1:])))
		}
	}
	return hexstr(k)
}
