// Package localengine is an embedded engine for the griddb client. It keeps
// containers in a Bolt file or in memory and evaluates TQL queries locally.
//
// Connection properties understood by Connect:
//
//	path         Bolt file to use; empty or "mem:<name>" for memory
//	user         checked against Options.Accounts when that is set
//	password
//	clusterName  must equal Options.ClusterName when that is set
//	readOnly     "true" rejects every write on the connection
//
// Other properties (notificationAddress and friends) are accepted and
// ignored.
package localengine

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/andreyvit/griddb/engine"
)

const (
	PropPath        = "path"
	PropUser        = "user"
	PropPassword    = "password"
	PropClusterName = "clusterName"
	PropReadOnly    = "readOnly"

	memPrefix = "mem:"
)

// Engine is an engine.Driver that opens databases on demand and shares them
// between connections to the same path.
type Engine struct {
	opt    Options
	mu     sync.Mutex
	dbs    map[string]*sharedDB
	closed bool
}

type sharedDB struct {
	db     *DB
	refs   int
	memory bool
}

var _ engine.Driver = (*Engine)(nil)

func New(opt Options) *Engine {
	opt.setDefaults()
	return &Engine{
		opt: opt,
		dbs: make(map[string]*sharedDB),
	}
}

func (e *Engine) Connect(props map[string]string) (engine.Conn, error) {
	if len(e.opt.Accounts) > 0 {
		user := props[PropUser]
		if pw, ok := e.opt.Accounts[user]; !ok || !checkPassword(pw, props[PropPassword]) {
			return nil, engine.Statusf(engine.StatusAuthFailed, "authentication failed for user %q", user)
		}
	}
	if e.opt.ClusterName != "" && props[PropClusterName] != e.opt.ClusterName {
		return nil, engine.Statusf(engine.StatusConnectFailed, "cluster %q not found", props[PropClusterName])
	}
	var readOnly bool
	if s := props[PropReadOnly]; s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, engine.WrapStatus(engine.StatusIllegalArgument, err, "invalid %s", PropReadOnly)
		}
		readOnly = v
	}

	path, ok := props[PropPath]
	if !ok {
		path = e.opt.Path
	}
	db, err := e.acquire(path)
	if err != nil {
		return nil, err
	}
	c := &conn{
		eng:      e,
		db:       db,
		path:     path,
		id:       uuid.NewString(),
		user:     props[PropUser],
		readOnly: readOnly,
	}
	db.logf("localengine: CONNECT %s user=%q path=%s readOnly=%v", c.id, c.user, db.path, readOnly)
	return c, nil
}

func dbKey(path string) (key string, memory bool) {
	if path == "" {
		return memPrefix, true
	}
	if strings.HasPrefix(path, memPrefix) {
		return path, true
	}
	return path, false
}

func (e *Engine) acquire(path string) (*DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, engine.Statusf(engine.StatusConnectFailed, "engine is closed")
	}
	key, memory := dbKey(path)
	if sh := e.dbs[key]; sh != nil {
		sh.refs++
		return sh.db, nil
	}
	var db *DB
	if memory {
		db = OpenMemory(e.opt)
		db.path = key
		if err := db.openJournal(); err != nil {
			db.Close()
			return nil, engine.WrapStatus(engine.StatusConnectFailed, err, "cannot open %s", key)
		}
	} else {
		var err error
		db, err = Open(path, e.opt)
		if err != nil {
			return nil, engine.WrapStatus(engine.StatusConnectFailed, err, "cannot open %s", path)
		}
	}
	e.dbs[key] = &sharedDB{db: db, refs: 1, memory: memory}
	return db, nil
}

// release closes a file database once its last connection is gone. Memory
// databases live until the Engine is closed.
func (e *Engine) release(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	key, _ := dbKey(path)
	sh := e.dbs[key]
	if sh == nil {
		return nil
	}
	sh.refs--
	if sh.refs > 0 || sh.memory {
		return nil
	}
	delete(e.dbs, key)
	return sh.db.Close()
}

// Close closes every database, including the ones still used by open
// connections; those connections fail afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	var firstErr error
	for key, sh := range e.dbs {
		if err := sh.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.dbs, key)
	}
	return firstErr
}
