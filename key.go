package griddb

import (
	"strconv"

	"github.com/andreyvit/griddb/engine"
)

// Key is a row-key value used by Container.Get and Container.Remove. Only
// String, Integer, Long and Timestamp columns can be row keys, so Key can
// only be built for those types.
type Key struct {
	typ Type
	s   string
	i   int64
}

func StringKey(v string) Key       { return Key{typ: TypeString, s: v} }
func IntegerKey(v int32) Key       { return Key{typ: TypeInteger, i: int64(v)} }
func LongKey(v int64) Key          { return Key{typ: TypeLong, i: v} }
func TimestampKey(v Timestamp) Key { return Key{typ: TypeTimestamp, i: int64(v)} }

// KeyOf builds a key from a Value of a key type.
func KeyOf(v Value) (Key, error) {
	switch v.typ {
	case TypeString:
		return StringKey(v.s), nil
	case TypeInteger, TypeLong, TypeTimestamp:
		return Key{typ: v.typ, i: v.i}, nil
	default:
		return Key{}, convertErrf("%v values cannot be row keys", v.typ)
	}
}

func (k Key) Type() Type {
	return k.typ
}

func (k Key) Value() Value {
	if k.typ == TypeString {
		return StringValue(k.s)
	}
	return Value{typ: k.typ, i: k.i}
}

func (k Key) String() string {
	switch k.typ {
	case TypeString:
		return k.s
	case TypeTimestamp:
		return Timestamp(k.i).String()
	default:
		return strconv.FormatInt(k.i, 10)
	}
}

func (k Key) engineKey() engine.Key {
	return engine.Key{Type: k.typ.code(), S: k.s, I: k.i}
}
