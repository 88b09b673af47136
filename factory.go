package griddb

import (
	"slices"
	"sync"

	"github.com/andreyvit/griddb/engine"
)

// ClientVersion is reported by StoreFactory.Version.
const ClientVersion = "GridDB Go Client Version 0.6"

// StoreFactory creates Stores through an engine Driver. Construct one per
// process (or per engine) and pass it to whoever needs a Store.
type StoreFactory struct {
	mu     sync.Mutex
	driver engine.Driver
	lg     logger
	closed bool
	stores []*Store
}

func NewStoreFactory(driver engine.Driver, opt Options) *StoreFactory {
	return &StoreFactory{driver: driver, lg: newLogger(opt)}
}

func (f *StoreFactory) Version() string {
	return ClientVersion
}

// GetStore connects using the given properties. Connection failures are
// reported with KindConnection and carry the engine status code.
func (f *StoreFactory) GetStore(props Properties) (*Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	const op = "GET_STORE"
	if f.closed {
		return nil, errf(KindClosed, nil, "store factory is closed").op(op)
	}
	conn, err := f.driver.Connect(props.engineMap())
	if err != nil {
		return nil, errf(KindConnection, err, "cannot connect").op(op)
	}
	s := &Store{factory: f, conn: conn, lg: f.lg}
	f.stores = append(f.stores, s)
	f.lg.logf("griddb: GET_STORE %s %v", conn.ID(), props)
	return s, nil
}

func (f *StoreFactory) forgetStore(s *Store) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := slices.Index(f.stores, s); i >= 0 {
		f.stores = slices.Delete(f.stores, i, i+1)
	}
}

// Close closes every Store still open, newest first.
func (f *StoreFactory) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	stores := slices.Clone(f.stores)
	f.mu.Unlock()

	var first error
	for i := len(stores) - 1; i >= 0; i-- {
		if err := stores[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
