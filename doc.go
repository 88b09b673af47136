/*
Package griddb is a client for a typed, columnar grid store.

It opens a connection, defines or looks up typed containers, and performs typed
row put/get/remove plus query execution over them, including time-series and
aggregation queries.

We implement:

1. Values, a tagged union over the column types (String, Bool, Byte, Short,
Integer, Long, Float, Double, Timestamp, Geometry, Blob) with fallible
conversions back to native types.

2. Container metadata (ContainerInfo): name, kind (Collection or TimeSeries),
ordered column definitions and the row-key flag.

3. Containers, holding an engine handle and one reusable row buffer; rows are
checked against the schema before anything is written to the buffer.

4. Queries and row sets, a cursor state machine distinguishing plain rows,
aggregation results and query plans.

5. Stores and a store factory that bootstrap connections through an engine
Driver.

# Engines

The package does not speak a wire protocol. Everything that touches data goes
through the interfaces of package engine. Package localengine implements them
on top of Bolt (or memory) and runs a subset of TQL; it is what the tests use.

	factory := griddb.NewStoreFactory(localengine.New(localengine.Options{}), griddb.Options{})
	store, err := factory.GetStore(griddb.Props("path", "/tmp/grid.db"))
	...
	info := griddb.NewContainerInfo("col01", []griddb.Column{
		{"name", griddb.TypeString},
		{"status", griddb.TypeBool},
		{"count", griddb.TypeLong},
		{"lob", griddb.TypeBlob},
	}, griddb.Collection, true)
	col, err := store.PutContainer(info, false)
	...
	err = col.PutValues("name01", false, 1, []byte("ABCDEFGHIJ"))
	row, err := col.Get(griddb.StringKey("name01"))

# Ownership

Every handle has a Close method. Closing a parent closes its children first,
newest first: a Store closes its Containers, a Container its Queries, a Query
its RowSets. Using a closed handle fails with ErrClosed. AggregationResult
values are independent of the RowSet that produced them.

# Errors

Every error is an *Error with a Kind; match with errors.Is against ErrConvert,
ErrExhausted, ErrUnsupported and the other sentinels. Engine status codes are
available through CodeOf.
*/
package griddb
