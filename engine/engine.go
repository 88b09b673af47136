// Package engine defines the boundary between the griddb client and a storage
// engine that actually persists containers and executes queries.
//
// The client never talks to a cluster directly. It calls through the narrow set
// of interfaces below (connect, define or open a container, get/put/remove a
// row, execute a query, fetch results, close handles). Every handle returned by
// an engine must be closed exactly once; the client closes them in reverse
// order of acquisition.
//
// All calls are synchronous and block until the engine responds. Handles are
// not safe for concurrent use.
package engine

// Driver establishes connections. Properties arrive with camelCase keys.
type Driver interface {
	Connect(props map[string]string) (Conn, error)
}

// Conn is a connection to a grid store (the engine side of a Store).
type Conn interface {
	// ID identifies the connection in logs.
	ID() string

	// PutContainer defines a container or opens an existing one with a
	// compatible schema. If modifiable is true, the existing schema may be
	// extended to match.
	PutContainer(schema *ContainerSchema, modifiable bool) (ContainerHandle, error)

	// GetContainer opens an existing container. Returns nil, nil when the
	// container does not exist.
	GetContainer(name string) (ContainerHandle, error)

	// ContainerSchema returns the metadata of a container. Returns nil, nil
	// when the container does not exist.
	ContainerSchema(name string) (*ContainerSchema, error)

	// DropContainer removes a container and all its rows. Dropping a missing
	// container is not an error.
	DropContainer(name string) error

	// Close releases the connection. If allRelated is true, all container
	// handles opened through this connection are closed as well.
	Close(allRelated bool) error
}

// ContainerHandle is an open container.
type ContainerHandle interface {
	Schema() *ContainerSchema

	// CreateRow allocates a row buffer bound to this container's schema.
	CreateRow() (Row, error)

	// GetRow looks up a row by key and, if found, fills dst.
	GetRow(key Key, forUpdate bool, dst Row) (found bool, err error)

	// PutRow upserts the row held in src, keyed by its row-key column.
	PutRow(src Row) (existed bool, err error)

	// RemoveRow removes a row by key. Removing a missing row is not an error.
	RemoveRow(key Key) (existed bool, err error)

	// Query prepares a query. The text is interpreted by the engine.
	Query(text string) (QueryHandle, error)

	CreateIndex(column string, kind IndexKind) error
	DropIndex(column string, kind IndexKind) error

	SetAutoCommit(enabled bool) error
	Commit() error
	Abort() error
	Flush() error

	Close(allRelated bool) error
}

// QueryHandle is a prepared query.
type QueryHandle interface {
	SetFetchOptions(opt FetchOptions) error

	// Fetch executes the query. Results are materialized unless the partial
	// fetch option is set.
	Fetch(forUpdate bool) (ResultSet, error)

	// RowSet executes the query and streams the results.
	RowSet() (ResultSet, error)

	Close() error
}

// FetchOptions control result materialization. Limit <= 0 means no limit.
type FetchOptions struct {
	Limit   int
	Partial bool
}

// ResultSet is a server-side cursor over query results.
type ResultSet interface {
	Kind() RowSetKind

	// Size is the total number of results, or -1 if unknown.
	Size() int

	HasNext() bool

	// NextRow fills dst with the next row. Valid for RowSetContainerRows.
	NextRow(dst Row) error

	// NextAggregation returns the next aggregation result. Valid for
	// RowSetAggregationResult.
	NextAggregation() (AggregationHandle, error)

	// NextAnalysis returns the next plan entry. Valid for RowSetQueryAnalysis.
	NextAnalysis() (AnalysisEntry, error)

	Close() error
}

// AnalysisEntry is one step of a query plan returned by EXPLAIN.
type AnalysisEntry struct {
	ID        int32
	Depth     int32
	Type      string
	ValueType string
	Value     string
	Statement string
}

// AggregationHandle holds one aggregation value. Every accessor returns a
// value regardless of the aggregation performed; choosing the meaningful one
// is up to the caller.
type AggregationHandle interface {
	Long() (int64, error)
	Double() (float64, error)
	Timestamp() (int64, error)
	Close() error
}

// Row is a row buffer. Columns are addressed by position; every accessor
// requires the column to be declared with the matching type.
type Row interface {
	Schema() *ContainerSchema

	SetString(col int, v string) error
	SetBool(col int, v bool) error
	SetByte(col int, v int8) error
	SetShort(col int, v int16) error
	SetInteger(col int, v int32) error
	SetLong(col int, v int64) error
	SetFloat(col int, v float32) error
	SetDouble(col int, v float64) error
	SetTimestamp(col int, v int64) error
	SetGeometry(col int, wkt string) error
	SetBlob(col int, v []byte) error

	GetString(col int) (string, error)
	GetBool(col int) (bool, error)
	GetByte(col int) (int8, error)
	GetShort(col int) (int16, error)
	GetInteger(col int) (int32, error)
	GetLong(col int) (int64, error)
	GetFloat(col int) (float32, error)
	GetDouble(col int) (float64, error)
	GetTimestamp(col int) (int64, error)
	GetGeometry(col int) (string, error)
	// GetBlob returns a slice owned by the row buffer; it is only valid until
	// the buffer is next written.
	GetBlob(col int) ([]byte, error)

	Close() error
}
