package localengine

import (
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/andreyvit/griddb/engine"
)

const (
	metaBucket = "containers"
	rowsBucket = "rows"
)

// containerMeta is the persisted definition of a container.
type containerMeta struct {
	// ID changes whenever a container is dropped and recreated, so handles
	// opened on an old incarnation can tell.
	ID      string                  `msgpack:"id"`
	Schema  *engine.ContainerSchema `msgpack:"s"`
	Indexes []indexMeta             `msgpack:"i"`
	// Seq is the last sequence number used for rows of containers without a
	// row key.
	Seq uint64 `msgpack:"q"`
	// SchemaVer is bumped every time the schema is extended.
	SchemaVer uint64 `msgpack:"v"`
}

type indexMeta struct {
	Column string           `msgpack:"c"`
	Kind   engine.IndexKind `msgpack:"k"`
}

func newContainerMeta(schema *engine.ContainerSchema) *containerMeta {
	return &containerMeta{
		ID:     uuid.NewString(),
		Schema: schema.Clone(),
	}
}

func (m *containerMeta) indexOf(column string, kind engine.IndexKind) int {
	for i, im := range m.Indexes {
		if strings.EqualFold(im.Column, column) && im.Kind == kind {
			return i
		}
	}
	return -1
}

func metaKey(name string) []byte {
	return []byte(strings.ToLower(name))
}

// loadMeta returns nil, nil when the container does not exist.
func (tx *tx) loadMeta(name string) (*containerMeta, error) {
	b := tx.stx.Bucket(metaBucket, "")
	if b == nil {
		return nil, nil
	}
	data := b.Get(metaKey(name))
	if data == nil {
		return nil, nil
	}
	m := new(containerMeta)
	if err := msgpack.Unmarshal(data, m); err != nil {
		return nil, corruptedErr(name, metaKey(name), err)
	}
	if m.Schema == nil {
		return nil, corruptedErr(name, metaKey(name), dataErrf(data, 0, nil, "missing schema"))
	}
	return m, nil
}

func (tx *tx) saveMeta(m *containerMeta) error {
	data, err := msgpack.Marshal(m)
	if err != nil {
		return internalErr(err, "encoding %s metadata", m.Schema.Name)
	}
	b, err := tx.stx.CreateBucket(metaBucket, "")
	if err != nil {
		return internalErr(err, "creating %s", metaBucket)
	}
	if err := b.Put(metaKey(m.Schema.Name), data); err != nil {
		return internalErr(err, "saving %s metadata", m.Schema.Name)
	}
	return nil
}

// listMeta returns every container definition in name order.
func (tx *tx) listMeta() ([]*containerMeta, error) {
	b := tx.stx.Bucket(metaBucket, "")
	if b == nil {
		return nil, nil
	}
	var result []*containerMeta
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		m := new(containerMeta)
		if err := msgpack.Unmarshal(v, m); err != nil {
			return nil, corruptedErr(string(k), k, err)
		}
		result = append(result, m)
	}
	return result, nil
}

// rows returns the row bucket of a container, or nil when it has none yet
// and create is false.
func (tx *tx) rows(name string, create bool) (storageBucket, error) {
	sub := strings.ToLower(name)
	if !create {
		return tx.stx.Bucket(rowsBucket, sub), nil
	}
	b, err := tx.stx.CreateBucket(rowsBucket, sub)
	if err != nil {
		return nil, internalErr(err, "creating rows of %s", name)
	}
	return b, nil
}

// dropContainer deletes a container definition and its rows.
func (tx *tx) dropContainer(name string) (bool, error) {
	b := tx.stx.Bucket(metaBucket, "")
	if b == nil || b.Get(metaKey(name)) == nil {
		return false, nil
	}
	if err := b.Delete(metaKey(name)); err != nil {
		return false, internalErr(err, "dropping %s", name)
	}
	err := tx.stx.DeleteBucket(rowsBucket, strings.ToLower(name))
	if err != nil && err != errBucketNotFound {
		return false, internalErr(err, "dropping rows of %s", name)
	}
	return true, nil
}

// validateSchema checks a container definition before it is stored.
func validateSchema(s *engine.ContainerSchema) error {
	if s == nil {
		return engine.Statusf(engine.StatusIllegalArgument, "missing container info")
	}
	if strings.TrimSpace(s.Name) == "" {
		return engine.Statusf(engine.StatusIllegalArgument, "empty container name")
	}
	if s.Kind != engine.Collection && s.Kind != engine.TimeSeries {
		return engine.Statusf(engine.StatusIllegalArgument, "%s: unknown container kind %v", s.Name, s.Kind)
	}
	if len(s.Columns) == 0 {
		return engine.Statusf(engine.StatusIllegalArgument, "%s: no columns", s.Name)
	}
	if len(s.Columns) > maxFields {
		return engine.Statusf(engine.StatusIllegalArgument, "%s: %d columns, at most %d allowed", s.Name, len(s.Columns), maxFields)
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, col := range s.Columns {
		if strings.TrimSpace(col.Name) == "" {
			return engine.Statusf(engine.StatusIllegalArgument, "%s: empty column name", s.Name)
		}
		lower := strings.ToLower(col.Name)
		if seen[lower] {
			return engine.Statusf(engine.StatusIllegalArgument, "%s: duplicate column %s", s.Name, col.Name)
		}
		seen[lower] = true
		if !col.Type.Valid() {
			return engine.Statusf(engine.StatusIllegalArgument, "%s.%s: unknown type %v", s.Name, col.Name, col.Type)
		}
	}
	if s.RowKey && !s.Columns[0].Type.IsKeyType() {
		return engine.Statusf(engine.StatusIllegalArgument, "%s: %v column %s cannot be a row key", s.Name, s.Columns[0].Type, s.Columns[0].Name)
	}
	if s.Kind == engine.TimeSeries && (!s.RowKey || s.Columns[0].Type != engine.TypeTimestamp) {
		return engine.Statusf(engine.StatusIllegalArgument, "%s: a time series needs a TIMESTAMP row key as its first column", s.Name)
	}
	return nil
}

// extends reports whether s is old with trailing columns appended.
func extends(s, old *engine.ContainerSchema) bool {
	if len(s.Columns) <= len(old.Columns) {
		return false
	}
	prefix := s.Clone()
	prefix.Columns = prefix.Columns[:len(old.Columns)]
	return prefix.Equal(old)
}
