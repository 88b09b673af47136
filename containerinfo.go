package griddb

import (
	"fmt"
	"strings"

	"github.com/andreyvit/griddb/engine"
)

// ColumnInfo defines one column of a container.
type ColumnInfo struct {
	Name   string
	Type   Type
	Option TypeOption
}

// Column is a shorthand for a (name, type) pair passed to NewContainerInfo.
type Column struct {
	Name string
	Type Type
}

// NullPolicy decides the nullability of columns built by NewContainerInfo.
type NullPolicy int

const (
	// FirstNotNull makes the first (row-key) column NotNull and all others
	// Nullable.
	FirstNotNull NullPolicy = iota
	AllNotNull
	// AllNullable makes every column Nullable except a row key.
	AllNullable
)

func (p NullPolicy) option(pos int, rowKey bool) TypeOption {
	switch {
	case pos == 0 && rowKey:
		return NotNull // row key is never nullable
	case p == AllNotNull:
		return NotNull
	case p == AllNullable:
		return Nullable
	case pos == 0:
		return NotNull
	default:
		return Nullable
	}
}

// ContainerInfo is immutable container metadata: name, kind, ordered columns
// and whether the first column is the row key.
//
// For TimeSeries containers the first column must be a Timestamp; the engine
// enforces that, not the client.
type ContainerInfo struct {
	name    string
	kind    ContainerKind
	columns []ColumnInfo
	rowKey  bool
}

// NewContainerInfo builds container metadata with the FirstNotNull policy
// unless another policy is given.
//
// Panics if cols is empty or has duplicate column names.
func NewContainerInfo(name string, cols []Column, kind ContainerKind, rowKey bool, policy ...NullPolicy) *ContainerInfo {
	p := FirstNotNull
	if len(policy) > 0 {
		p = policy[0]
	}
	defs := make([]ColumnInfo, len(cols))
	for i, c := range cols {
		defs[i] = ColumnInfo{Name: c.Name, Type: c.Type, Option: p.option(i, rowKey)}
	}
	return NewContainerInfoColumns(name, defs, kind, rowKey)
}

// NewContainerInfoColumns builds container metadata out of explicit column
// definitions. A zero Option means Nullable. A row-key column is always
// NotNull.
//
// Panics if cols is empty or has duplicate column names.
func NewContainerInfoColumns(name string, cols []ColumnInfo, kind ContainerKind, rowKey bool) *ContainerInfo {
	if len(cols) == 0 {
		panic(fmt.Errorf("griddb: container %s must have at least one column", name))
	}
	defs := make([]ColumnInfo, len(cols))
	seen := make(map[string]bool, len(cols))
	for i, c := range cols {
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			panic(fmt.Errorf("griddb: container %s has duplicate column %q", name, c.Name))
		}
		seen[lower] = true
		if i == 0 && rowKey {
			c.Option = NotNull
		} else if c.Option == 0 {
			c.Option = Nullable
		}
		defs[i] = c
	}
	return &ContainerInfo{name: name, kind: kind, columns: defs, rowKey: rowKey}
}

func (ci *ContainerInfo) Name() string        { return ci.name }
func (ci *ContainerInfo) Kind() ContainerKind { return ci.kind }
func (ci *ContainerInfo) RowKey() bool        { return ci.rowKey }
func (ci *ContainerInfo) ColumnCount() int    { return len(ci.columns) }

// Columns returns a copy of the column definitions.
func (ci *ContainerInfo) Columns() []ColumnInfo {
	return append([]ColumnInfo(nil), ci.columns...)
}

func (ci *ContainerInfo) Column(i int) ColumnInfo {
	return ci.columns[i]
}

// ColumnIndex returns the position of the named column (case-insensitive), or -1.
func (ci *ContainerInfo) ColumnIndex(name string) int {
	for i, c := range ci.columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Types returns the ordered column types.
func (ci *ContainerInfo) Types() []Type {
	types := make([]Type, len(ci.columns))
	for i, c := range ci.columns {
		types[i] = c.Type
	}
	return types
}

// KeyType returns the row-key column type, or false if there is no row key.
func (ci *ContainerInfo) KeyType() (Type, bool) {
	if !ci.rowKey {
		return 0, false
	}
	return ci.columns[0].Type, true
}

func (ci *ContainerInfo) Equal(o *ContainerInfo) bool {
	if ci == nil || o == nil {
		return ci == o
	}
	if ci.name != o.name || ci.kind != o.kind || ci.rowKey != o.rowKey || len(ci.columns) != len(o.columns) {
		return false
	}
	for i, c := range ci.columns {
		if c != o.columns[i] {
			return false
		}
	}
	return true
}

func (ci *ContainerInfo) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "%s %v (", ci.name, ci.kind)
	for i, c := range ci.columns {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s %v", c.Name, c.Type)
		if i == 0 && ci.rowKey {
			buf.WriteString(" ROWKEY")
		}
		if c.Option == NotNull {
			buf.WriteString(" NOT NULL")
		}
	}
	buf.WriteByte(')')
	return buf.String()
}

func (ci *ContainerInfo) engineSchema() *engine.ContainerSchema {
	cols := make([]engine.ColumnSchema, len(ci.columns))
	for i, c := range ci.columns {
		cols[i] = engine.ColumnSchema{Name: c.Name, Type: c.Type.code(), Options: engine.ColumnOptions(c.Option)}
	}
	return &engine.ContainerSchema{
		Name:    ci.name,
		Kind:    engine.ContainerKind(ci.kind),
		Columns: cols,
		RowKey:  ci.rowKey,
	}
}

// containerInfoFromSchema rebuilds ContainerInfo out of engine metadata.
func containerInfoFromSchema(s *engine.ContainerSchema) (*ContainerInfo, error) {
	kind, err := containerKindFromCode(s.Kind)
	if err != nil {
		return nil, err.(*Error).in(s.Name)
	}
	if len(s.Columns) == 0 {
		return nil, errf(KindEngine, nil, "engine reported no columns").in(s.Name)
	}
	cols := make([]ColumnInfo, len(s.Columns))
	for i, c := range s.Columns {
		typ, err := typeFromCode(c.Type)
		if err != nil {
			return nil, err.(*Error).in(s.Name).col(c.Name)
		}
		opt := TypeOption(c.Options)
		if opt != Nullable && opt != NotNull {
			opt = Nullable
		}
		if i == 0 {
			opt = NotNull
		}
		cols[i] = ColumnInfo{Name: c.Name, Type: typ, Option: opt}
	}
	return &ContainerInfo{name: s.Name, kind: kind, columns: cols, rowKey: s.RowKey}, nil
}
