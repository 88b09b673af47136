package griddb

import (
	"slices"
	"sync"

	"github.com/andreyvit/griddb/engine"
)

// Store is a connection to one grid store. It defines and opens containers.
//
// Containers opened through a Store may be closed on their own at any time;
// closing the Store closes the ones still open, newest first, and then the
// connection.
type Store struct {
	mu         sync.Mutex
	factory    *StoreFactory
	conn       engine.Conn
	lg         logger
	closed     bool
	containers []*Container
}

func (s *Store) ID() string { return s.conn.ID() }

func (s *Store) ensureOpen(op string) error {
	if s.closed {
		return errf(KindClosed, nil, "store is closed").op(op)
	}
	return nil
}

// PutContainer defines a container, or opens it if it already exists with
// an equal schema. If modifiable is true, an existing container may be
// extended with the trailing columns of info.
func (s *Store) PutContainer(info *ContainerInfo, modifiable bool) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const op = "PUT_CONTAINER"
	if err := s.ensureOpen(op); err != nil {
		return nil, err
	}
	h, err := s.conn.PutContainer(info.engineSchema(), modifiable)
	if err != nil {
		return nil, engineErr(op, err).in(info.Name())
	}
	c, err := newContainer(s, h, info)
	if err != nil {
		return nil, err
	}
	s.containers = append(s.containers, c)
	s.lg.logf("griddb: PUT_CONTAINER %v modifiable=%v", info, modifiable)
	return c, nil
}

// GetContainer opens an existing container with its stored schema. It
// returns nil, nil if there is no such container.
func (s *Store) GetContainer(name string) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const op = "GET_CONTAINER"
	if err := s.ensureOpen(op); err != nil {
		return nil, err
	}
	h, err := s.conn.GetContainer(name)
	if err != nil {
		return nil, engineErr(op, err).in(name)
	}
	if h == nil {
		s.lg.logf("griddb: GET_CONTAINER.NOTFOUND %s", name)
		return nil, nil
	}
	info, err := containerInfoFromSchema(h.Schema())
	if err != nil {
		_ = h.Close(false)
		return nil, err.(*Error).op(op)
	}
	c, err := newContainer(s, h, info)
	if err != nil {
		return nil, err
	}
	s.containers = append(s.containers, c)
	s.lg.logf("griddb: GET_CONTAINER %v", info)
	return c, nil
}

// ContainerInfo returns the stored metadata of a container, or nil, nil if
// there is no such container.
func (s *Store) ContainerInfo(name string) (*ContainerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	const op = "GET_CONTAINER_INFO"
	if err := s.ensureOpen(op); err != nil {
		return nil, err
	}
	schema, err := s.conn.ContainerSchema(name)
	if err != nil {
		return nil, engineErr(op, err).in(name)
	}
	if schema == nil {
		return nil, nil
	}
	info, err := containerInfoFromSchema(schema)
	if err != nil {
		return nil, err.(*Error).op(op)
	}
	return info, nil
}

// DropContainer deletes a container with all its rows. Dropping a missing
// container is not an error.
func (s *Store) DropContainer(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	const op = "DROP_CONTAINER"
	if err := s.ensureOpen(op); err != nil {
		return err
	}
	if err := s.conn.DropContainer(name); err != nil {
		return engineErr(op, err).in(name)
	}
	s.lg.logf("griddb: DROP_CONTAINER %s", name)
	return nil
}

func (s *Store) forgetContainer(c *Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.containers, c); i >= 0 {
		s.containers = slices.Delete(s.containers, i, i+1)
	}
}

// Close closes open containers, newest first, then the connection. Closing
// twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	containers := s.containers
	s.containers = nil
	s.mu.Unlock()

	var first error
	for i := len(containers) - 1; i >= 0; i-- {
		c := containers[i]
		c.mu.Lock()
		err := c.closeLocked()
		c.mu.Unlock()
		if err != nil && first == nil {
			first = err
		}
	}
	if err := s.conn.Close(true); err != nil && first == nil {
		first = engineErr("CLOSE_STORE", err)
	}
	if s.factory != nil {
		s.factory.forgetStore(s)
	}
	s.lg.logf("griddb: CLOSE_STORE %s", s.conn.ID())
	return first
}
