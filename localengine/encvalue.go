package localengine

import (
	"bytes"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/griddb/engine"
)

// Stored row format:
//
//  1. Flags (uvarint): format version, compression.
//  2. Field count (uvarint). Rows written before trailing columns were added
//     to the container have fewer fields; the missing ones read as zero.
//  3. Raw payload size (uvarint), before compression.
//  4. Checksum (8 bytes, big endian): xxhash64 of the stored payload.
//  5. Payload: msgpack-encoded fields, one per column, in column order.
type valueFlags uint64

const (
	vfVerBit0 = valueFlags(1 << iota)
	vfVerBit1
	vfVerBit2
	vfVerBit3
	vfLZ4

	vfVerMask       = vfVerBit0 | vfVerBit1 | vfVerBit2 | vfVerBit3
	vfVer1          = vfVerBit0
	vfSupportedMask = vfVerMask | vfLZ4

	minValueSize = 1 + 1 + 1 + 8
	maxFields    = 1024
)

type storedValue struct {
	Flags    valueFlags
	Fields   int
	RawSize  int
	Checksum uint64
	Payload  []byte
}

// encodeValue appends the stored form of fields to buf. Payloads of at least
// compressAbove bytes are compressed with lz4 when that makes them smaller;
// compressAbove <= 0 disables compression.
func encodeValue(buf []byte, schema *engine.ContainerSchema, fields []any, compressAbove int) ([]byte, error) {
	raw := bytesBuilder{valueBytesPool.Get().([]byte)[:0]}
	defer func() { valueBytesPool.Put(raw.Buf[:0]) }()

	enc := msgpack.GetEncoder()
	enc.Reset(&raw)
	err := encodeFields(enc, schema, fields)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}

	flags := vfVer1
	payload := raw.Buf
	if compressAbove > 0 && len(payload) >= compressAbove {
		var comp bytesBuilder
		w := lz4.NewWriter(&comp)
		if _, err := w.Write(payload); err != nil {
			return nil, internalErr(err, "lz4")
		}
		if err := w.Close(); err != nil {
			return nil, internalErr(err, "lz4")
		}
		if len(comp.Buf) < len(payload) {
			flags |= vfLZ4
			payload = comp.Buf
		}
	}

	buf = appendUvarint(buf, uint64(flags))
	buf = appendUvarint(buf, uint64(len(fields)))
	buf = appendUvarint(buf, uint64(len(raw.Buf)))
	buf = appendUint64(buf, xxhash.Sum64(payload))
	return appendRaw(buf, payload), nil
}

func encodeFields(enc *msgpack.Encoder, schema *engine.ContainerSchema, fields []any) error {
	for i, f := range fields {
		var err error
		switch schema.Columns[i].Type {
		case engine.TypeString, engine.TypeGeometry:
			err = enc.EncodeString(f.(string))
		case engine.TypeBool:
			err = enc.EncodeBool(f.(bool))
		case engine.TypeByte:
			err = enc.EncodeInt8(f.(int8))
		case engine.TypeShort:
			err = enc.EncodeInt16(f.(int16))
		case engine.TypeInteger:
			err = enc.EncodeInt32(f.(int32))
		case engine.TypeLong, engine.TypeTimestamp:
			err = enc.EncodeInt64(f.(int64))
		case engine.TypeFloat:
			err = enc.EncodeFloat32(f.(float32))
		case engine.TypeDouble:
			err = enc.EncodeFloat64(f.(float64))
		case engine.TypeBlob:
			err = enc.EncodeBytes(f.([]byte))
		default:
			return internalErr(nil, "column %s has unknown type %v", schema.Columns[i].Name, schema.Columns[i].Type)
		}
		if err != nil {
			return internalErr(err, "encoding %s", schema.Columns[i].Name)
		}
	}
	return nil
}

func (v *storedValue) decodeHeader(data []byte) error {
	if len(data) < minValueSize {
		return dataErrf(data, 0, nil, "invalid value: at least %d bytes required", minValueSize)
	}
	d := makeByteDecoder(data)
	flags, err := d.Uvarint("flags")
	if err != nil {
		return err
	}
	if valueFlags(flags)&^vfSupportedMask != 0 || valueFlags(flags)&vfVerMask != vfVer1 {
		return dataErrf(data, 0, nil, "invalid value: unsupported flags %x", flags)
	}
	v.Flags = valueFlags(flags)

	n, err := d.Uvarint("field count")
	if err != nil {
		return err
	}
	if n == 0 || n > maxFields {
		return dataErrf(data, d.Off(), nil, "invalid value: %d fields", n)
	}
	v.Fields = int(n)

	size, err := d.Uvarint("payload size")
	if err != nil {
		return err
	}
	v.RawSize = int(size)

	if v.Checksum, err = d.Uint64("checksum"); err != nil {
		return err
	}
	v.Payload = d.Buf
	if sum := xxhash.Sum64(v.Payload); sum != v.Checksum {
		return dataErrf(data, d.Off(), nil, "checksum mismatch: stored %016x, computed %016x", v.Checksum, sum)
	}
	if v.Flags&vfLZ4 == 0 && len(v.Payload) != v.RawSize {
		return dataErrf(data, d.Off(), nil, "got %d payload bytes, expected %d", len(v.Payload), v.RawSize)
	}
	return nil
}

// decodeValue decodes a stored row into fields, which must have one slot per
// column of schema. Fields past the end of schema are ignored; they belong to
// columns added after schema was read.
func decodeValue(data []byte, schema *engine.ContainerSchema, fields []any) error {
	var v storedValue
	if err := v.decodeHeader(data); err != nil {
		return err
	}
	payload := v.Payload
	if v.Flags&vfLZ4 != 0 {
		var out bytes.Buffer
		out.Grow(v.RawSize)
		if _, err := lz4.NewReader(bytes.NewReader(payload)).WriteTo(&out); err != nil {
			return dataErrf(data, 0, err, "lz4")
		}
		if out.Len() != v.RawSize {
			return dataErrf(data, 0, nil, "decompressed %d bytes, expected %d", out.Len(), v.RawSize)
		}
		payload = out.Bytes()
	}

	var r bytes.Reader
	r.Reset(payload)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	defer msgpack.PutDecoder(dec)
	for i, col := range schema.Columns {
		if i >= v.Fields {
			fields[i] = zeroField(col.Type)
			continue
		}
		f, err := decodeField(dec, col.Type)
		if err != nil {
			return dataErrf(payload, len(payload)-r.Len(), err, "failed to decode column %s", col.Name)
		}
		fields[i] = f
	}
	if v.Fields <= len(schema.Columns) && r.Len() != 0 {
		return dataErrf(payload, len(payload)-r.Len(), nil, "%d trailing bytes", r.Len())
	}
	return nil
}

func decodeField(dec *msgpack.Decoder, tc engine.TypeCode) (any, error) {
	switch tc {
	case engine.TypeString, engine.TypeGeometry:
		return dec.DecodeString()
	case engine.TypeBool:
		return dec.DecodeBool()
	case engine.TypeByte:
		return dec.DecodeInt8()
	case engine.TypeShort:
		return dec.DecodeInt16()
	case engine.TypeInteger:
		return dec.DecodeInt32()
	case engine.TypeLong, engine.TypeTimestamp:
		return dec.DecodeInt64()
	case engine.TypeFloat:
		return dec.DecodeFloat32()
	case engine.TypeDouble:
		return dec.DecodeFloat64()
	case engine.TypeBlob:
		b, err := dec.DecodeBytes()
		if b == nil && err == nil {
			b = []byte{}
		}
		return b, err
	default:
		return nil, fmt.Errorf("unknown type %v", tc)
	}
}

func zeroField(tc engine.TypeCode) any {
	switch tc {
	case engine.TypeString, engine.TypeGeometry:
		return ""
	case engine.TypeBool:
		return false
	case engine.TypeByte:
		return int8(0)
	case engine.TypeShort:
		return int16(0)
	case engine.TypeInteger:
		return int32(0)
	case engine.TypeLong, engine.TypeTimestamp:
		return int64(0)
	case engine.TypeFloat:
		return float32(0)
	case engine.TypeDouble:
		return float64(0)
	case engine.TypeBlob:
		return []byte{}
	default:
		return nil
	}
}
