package localengine

import (
	"slices"
	"sync"

	"github.com/andreyvit/griddb/engine"
)

type conn struct {
	eng      *Engine
	db       *DB
	path     string
	id       string
	user     string
	readOnly bool

	mu      sync.Mutex
	closed  bool
	handles []*containerHandle
}

var _ engine.Conn = (*conn)(nil)

func (c *conn) ID() string {
	return c.id
}

func (c *conn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	return nil
}

func (c *conn) checkWritable(op string) error {
	if c.readOnly {
		return engine.Statusf(engine.StatusReadOnly, "%s: connection is read-only", op)
	}
	return nil
}

func (c *conn) PutContainer(schema *engine.ContainerSchema, modifiable bool) (engine.ContainerHandle, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if err := validateSchema(schema); err != nil {
		return nil, err
	}

	var meta *containerMeta
	err := c.db.write(func(tx *tx) error {
		old, err := tx.loadMeta(schema.Name)
		if err != nil {
			return err
		}
		switch {
		case old == nil:
			if err := c.checkWritable("PUT_CONTAINER"); err != nil {
				return err
			}
			meta = newContainerMeta(schema)
			if _, err := tx.rows(schema.Name, true); err != nil {
				return err
			}
			c.db.logf("localengine: CREATE %s %v %d columns", schema.Name, schema.Kind, len(schema.Columns))
		case old.Schema.Equal(schema):
			meta = old
			return nil
		case modifiable && extends(schema, old.Schema):
			if err := c.checkWritable("PUT_CONTAINER"); err != nil {
				return err
			}
			meta = old
			meta.Schema = schema.Clone()
			meta.SchemaVer++
			c.db.logf("localengine: EXTEND %s to %d columns (v%d)", schema.Name, len(schema.Columns), meta.SchemaVer)
		default:
			return engine.Statusf(engine.StatusSchemaMismatch, "%s already exists with a different schema", schema.Name)
		}
		return tx.saveMeta(meta)
	})
	if err != nil {
		return nil, err
	}
	return c.open(meta), nil
}

func (c *conn) GetContainer(name string) (engine.ContainerHandle, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	meta, err := c.loadMeta(name)
	if err != nil || meta == nil {
		return nil, err
	}
	return c.open(meta), nil
}

func (c *conn) ContainerSchema(name string) (*engine.ContainerSchema, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	meta, err := c.loadMeta(name)
	if err != nil || meta == nil {
		return nil, err
	}
	return meta.Schema, nil
}

// ContainerNames lists every container of the database in name order.
func (c *conn) ContainerNames() ([]string, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	var names []string
	err := c.db.read(func(tx *tx) error {
		metas, err := tx.listMeta()
		for _, m := range metas {
			names = append(names, m.Schema.Name)
		}
		return err
	})
	return names, err
}

func (c *conn) loadMeta(name string) (*containerMeta, error) {
	var meta *containerMeta
	err := c.db.read(func(tx *tx) error {
		var err error
		meta, err = tx.loadMeta(name)
		return err
	})
	return meta, err
}

func (c *conn) DropContainer(name string) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.checkWritable("DROP_CONTAINER"); err != nil {
		return err
	}
	return c.db.write(func(tx *tx) error {
		found, err := tx.dropContainer(name)
		if found {
			c.db.logf("localengine: DROP %s", name)
		}
		return err
	})
}

func (c *conn) open(meta *containerMeta) *containerHandle {
	h := newContainerHandle(c, meta)
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
	return h
}

func (c *conn) forget(h *containerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.handles, h); i >= 0 {
		c.handles = slices.Delete(c.handles, i, i+1)
	}
}

// Close ends the connection. Without allRelated, container handles stay
// registered but fail with StatusClosed on their next use.
func (c *conn) Close(allRelated bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handles := slices.Clone(c.handles)
	c.mu.Unlock()

	if allRelated {
		for _, h := range slices.Backward(handles) {
			_ = h.Close(true)
		}
	}
	c.db.logf("localengine: DISCONNECT %s", c.id)
	return c.eng.release(c.path)
}
