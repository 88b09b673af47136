package engine

import (
	"fmt"
	"strings"
)

// TypeCode is the engine-level column type code.
type TypeCode int32

const (
	TypeString TypeCode = iota
	TypeBool
	TypeByte
	TypeShort
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeTimestamp
	TypeGeometry
	TypeBlob

	typeCodeCount
)

var typeCodeNames = [...]string{
	TypeString:    "STRING",
	TypeBool:      "BOOL",
	TypeByte:      "BYTE",
	TypeShort:     "SHORT",
	TypeInteger:   "INTEGER",
	TypeLong:      "LONG",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
	TypeTimestamp: "TIMESTAMP",
	TypeGeometry:  "GEOMETRY",
	TypeBlob:      "BLOB",
}

func (tc TypeCode) Valid() bool {
	return tc >= 0 && tc < typeCodeCount
}

func (tc TypeCode) String() string {
	if tc.Valid() {
		return typeCodeNames[tc]
	}
	return fmt.Sprintf("TYPE(%d)", int32(tc))
}

// IsKeyType reports whether columns of this type can serve as a row key.
func (tc TypeCode) IsKeyType() bool {
	switch tc {
	case TypeString, TypeInteger, TypeLong, TypeTimestamp:
		return true
	default:
		return false
	}
}

type ContainerKind int32

const (
	Collection ContainerKind = 0
	TimeSeries ContainerKind = 1
)

func (k ContainerKind) String() string {
	switch k {
	case Collection:
		return "COLLECTION"
	case TimeSeries:
		return "TIME_SERIES"
	default:
		return fmt.Sprintf("CONTAINER_KIND(%d)", int32(k))
	}
}

type IndexKind int32

const (
	IndexDefault IndexKind = -1
	IndexTree    IndexKind = 1
	IndexSpatial IndexKind = 4
)

func (k IndexKind) Valid() bool {
	switch k {
	case IndexDefault, IndexTree, IndexSpatial:
		return true
	default:
		return false
	}
}

func (k IndexKind) String() string {
	switch k {
	case IndexDefault:
		return "DEFAULT"
	case IndexTree:
		return "TREE"
	case IndexSpatial:
		return "SPATIAL"
	default:
		return fmt.Sprintf("INDEX(%d)", int32(k))
	}
}

// ColumnOptions are column flags.
type ColumnOptions int32

const (
	Nullable ColumnOptions = 2
	NotNull  ColumnOptions = 4
)

type RowSetKind int32

const (
	RowSetContainerRows     RowSetKind = 0
	RowSetAggregationResult RowSetKind = 1
	RowSetQueryAnalysis     RowSetKind = 2
)

func (k RowSetKind) String() string {
	switch k {
	case RowSetContainerRows:
		return "CONTAINER_ROWS"
	case RowSetAggregationResult:
		return "AGGREGATION_RESULT"
	case RowSetQueryAnalysis:
		return "QUERY_ANALYSIS"
	default:
		return fmt.Sprintf("ROW_SET(%d)", int32(k))
	}
}

// ColumnSchema describes one column.
type ColumnSchema struct {
	Name    string        `msgpack:"n"`
	Type    TypeCode      `msgpack:"t"`
	Options ColumnOptions `msgpack:"o"`
}

// ContainerSchema is the engine's view of container metadata.
type ContainerSchema struct {
	Name    string         `msgpack:"n"`
	Kind    ContainerKind  `msgpack:"k"`
	Columns []ColumnSchema `msgpack:"c"`
	RowKey  bool           `msgpack:"rk"`
}

// ColumnIndex returns the position of the named column (case-insensitive),
// or -1.
func (s *ContainerSchema) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if strings.EqualFold(col.Name, name) {
			return i
		}
	}
	return -1
}

// KeyType returns the type of the row-key column. ok is false when the
// container has no row key.
func (s *ContainerSchema) KeyType() (tc TypeCode, ok bool) {
	if !s.RowKey || len(s.Columns) == 0 {
		return 0, false
	}
	return s.Columns[0].Type, true
}

func (s *ContainerSchema) Clone() *ContainerSchema {
	if s == nil {
		return nil
	}
	c := *s
	c.Columns = append([]ColumnSchema(nil), s.Columns...)
	return &c
}

// Equal compares schemas structurally. Container and column names compare
// case-insensitively, like the engine resolves them.
func (s *ContainerSchema) Equal(o *ContainerSchema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if !strings.EqualFold(s.Name, o.Name) || s.Kind != o.Kind || s.RowKey != o.RowKey || len(s.Columns) != len(o.Columns) {
		return false
	}
	for i, c := range s.Columns {
		oc := o.Columns[i]
		if !strings.EqualFold(c.Name, oc.Name) || c.Type != oc.Type || c.Options != oc.Options {
			return false
		}
	}
	return true
}

// Key is a row key. S is used for TypeString, I for the integral key types.
type Key struct {
	Type TypeCode
	S    string
	I    int64
}

func (k Key) String() string {
	if k.Type == TypeString {
		return k.S
	}
	return fmt.Sprint(k.I)
}
