package localengine

import (
	"fmt"
	"testing"
	"time"

	"github.com/andreyvit/griddb/engine"
)

func TestConnect_Auth(t *testing.T) {
	eng := New(Options{
		Path:        "mem:auth",
		Accounts:    map[string]string{"admin": "secret"},
		ClusterName: "myCluster",
	})
	defer eng.Close()

	_, err := eng.Connect(map[string]string{"user": "admin", "password": "wrong", "clusterName": "myCluster"})
	isStatus(t, err, engine.StatusAuthFailed)
	_, err = eng.Connect(map[string]string{"user": "nobody", "password": "", "clusterName": "myCluster"})
	isStatus(t, err, engine.StatusAuthFailed)
	_, err = eng.Connect(map[string]string{"user": "admin", "password": "secret", "clusterName": "other"})
	isStatus(t, err, engine.StatusConnectFailed)
	_, err = eng.Connect(map[string]string{"user": "admin", "password": "secret", "clusterName": "myCluster", "readOnly": "maybe"})
	isStatus(t, err, engine.StatusIllegalArgument)

	c := must(eng.Connect(map[string]string{"user": "admin", "password": "secret", "clusterName": "myCluster"}))
	if c.ID() == "" {
		t.Errorf("** empty connection ID")
	}
	ensure(c.Close(true))
}

func TestConnect_SharedMemory(t *testing.T) {
	eng := New(Options{})
	defer eng.Close()

	c1 := must(eng.Connect(map[string]string{"path": "mem:a"}))
	h := must(c1.PutContainer(usersSchema, false))
	putUser(t, h, 1, "alice", 1, true)
	ensure(c1.Close(true))

	// memory databases outlive their connections
	c2 := must(eng.Connect(map[string]string{"path": "mem:a"}))
	h = must(c2.GetContainer("users"))
	if h == nil {
		t.Fatalf("** users is gone")
	}
	name, _ := userName(t, h, 1)
	deepEqual(t, name, "alice")

	c3 := must(eng.Connect(map[string]string{"path": "mem:b"}))
	deepEqual(t, must(c3.GetContainer("users")) == nil, true)

	ensure(eng.Close())
	_, err := eng.Connect(nil)
	isStatus(t, err, engine.StatusConnectFailed)
}

func TestConnect_BoltPersistence(t *testing.T) {
	path := tempPath(t)
	opt := Options{Path: path, IsTesting: true}

	eng := New(opt)
	c := must(eng.Connect(nil))
	h := must(c.PutContainer(usersSchema, false))
	putUser(t, h, 1, "alice", 1.5, true)
	putUser(t, h, 2, "bob", 2.5, false)
	ensure(h.Flush())
	ensure(c.Close(true))
	ensure(eng.Close())

	eng = New(opt)
	defer eng.Close()
	c = must(eng.Connect(nil))
	h = must(c.GetContainer("USERS"))
	deepEqual(t, h.Schema().Name, "Users")
	deepEqual(t, queryIDs(t, h, "SELECT *", engine.FetchOptions{}, false), []int32{1, 2})

	// a second connection to the same file shares the database
	c2 := must(eng.Connect(map[string]string{"path": path}))
	h2 := must(c2.GetContainer("users"))
	name, _ := userName(t, h2, 2)
	deepEqual(t, name, "bob")
}

func TestConnect_ReadOnly(t *testing.T) {
	eng, c := setup(t, Options{})
	h := must(c.PutContainer(usersSchema, false))
	putUser(t, h, 1, "alice", 1, true)

	ro := must(eng.Connect(map[string]string{"readOnly": "true"}))
	rh := must(ro.GetContainer("users"))
	name, _ := userName(t, rh, 1)
	deepEqual(t, name, "alice")

	r := must(rh.CreateRow())
	_, err := rh.PutRow(r)
	isStatus(t, err, engine.StatusReadOnly)
	_, err = rh.RemoveRow(intKey(1))
	isStatus(t, err, engine.StatusReadOnly)
	isStatus(t, ro.DropContainer("users"), engine.StatusReadOnly)
	isStatus(t, rh.CreateIndex("name", engine.IndexDefault), engine.StatusReadOnly)

	// opening an existing container with the same schema is not a write
	must(ro.PutContainer(usersSchema, false))
	other := usersSchema.Clone()
	other.Name = "other"
	_, err = ro.PutContainer(other, false)
	isStatus(t, err, engine.StatusReadOnly)
}

func TestPutContainer_Validation(t *testing.T) {
	_, c := setup(t, Options{})
	tests := []struct {
		name   string
		mutate func(s *engine.ContainerSchema)
	}{
		{"empty name", func(s *engine.ContainerSchema) { s.Name = " " }},
		{"no columns", func(s *engine.ContainerSchema) { s.Columns = nil }},
		{"duplicate column", func(s *engine.ContainerSchema) { s.Columns[1].Name = "ID" }},
		{"bad type", func(s *engine.ContainerSchema) { s.Columns[1].Type = 99 }},
		{"bad key type", func(s *engine.ContainerSchema) { s.Columns[0].Type = engine.TypeDouble }},
		{"bad kind", func(s *engine.ContainerSchema) { s.Kind = 7 }},
		{"time series without timestamp", func(s *engine.ContainerSchema) { s.Kind = engine.TimeSeries }},
	}
	for _, tt := range tests {
		s := usersSchema.Clone()
		tt.mutate(s)
		_, err := c.PutContainer(s, false)
		if statusOf(err) != engine.StatusIllegalArgument {
			t.Errorf("** %s: got %v, wanted IllegalArgument", tt.name, err)
		}
	}

	ts := &engine.ContainerSchema{
		Name:   "series",
		Kind:   engine.TimeSeries,
		RowKey: true,
		Columns: []engine.ColumnSchema{
			{Name: "ts", Type: engine.TypeTimestamp},
			{Name: "value", Type: engine.TypeDouble},
		},
	}
	must(c.PutContainer(ts, false))
	noKey := ts.Clone()
	noKey.Name, noKey.RowKey = "series2", false
	_, err := c.PutContainer(noKey, false)
	isStatus(t, err, engine.StatusIllegalArgument)
}

func TestPutContainer_SchemaChanges(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(usersSchema, false))
		putUser(t, h, 1, "alice", 1, true)

		// same schema, different case
		same := usersSchema.Clone()
		same.Name = "USERS"
		must(c.PutContainer(same, false))

		wider := usersSchema.Clone()
		wider.Columns = append(wider.Columns, engine.ColumnSchema{Name: "email", Type: engine.TypeString})
		_, err := c.PutContainer(wider, false)
		isStatus(t, err, engine.StatusSchemaMismatch)

		narrower := usersSchema.Clone()
		narrower.Columns = narrower.Columns[:2]
		_, err = c.PutContainer(narrower, true)
		isStatus(t, err, engine.StatusSchemaMismatch)

		retyped := usersSchema.Clone()
		retyped.Columns[1].Type = engine.TypeBlob
		_, err = c.PutContainer(retyped, true)
		isStatus(t, err, engine.StatusSchemaMismatch)

		wh := must(c.PutContainer(wider, true))
		deepEqual(t, len(must(c.ContainerSchema("users")).Columns), 5)

		// old rows read the new column as empty
		r := must(wh.CreateRow())
		deepEqual(t, must(wh.GetRow(intKey(1), false, r)), true)
		deepEqual(t, must(r.GetString(1)), "alice")
		deepEqual(t, must(r.GetString(4)), "")

		ensure(r.SetInteger(0, 2))
		ensure(r.SetString(1, "bob"))
		ensure(r.SetString(4, "bob@example.com"))
		must(wh.PutRow(r))

		// the handle opened before the extension still reads
		name, ok := userName(t, h, 2)
		deepEqual(t, ok, true)
		deepEqual(t, name, "bob")
	})
}

func TestContainer_CRUD(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(usersSchema, false))

		deepEqual(t, putUser(t, h, 1, "alice", 1.5, true), false)
		deepEqual(t, putUser(t, h, 1, "alicia", 2.5, true), true)
		name, ok := userName(t, h, 1)
		deepEqual(t, ok, true)
		deepEqual(t, name, "alicia")

		_, ok = userName(t, h, 2)
		deepEqual(t, ok, false)

		deepEqual(t, must(h.RemoveRow(intKey(1))), true)
		deepEqual(t, must(h.RemoveRow(intKey(1))), false)
		_, ok = userName(t, h, 1)
		deepEqual(t, ok, false)

		_, err := h.GetRow(engine.Key{Type: engine.TypeString, S: "1"}, false, must(h.CreateRow()))
		isStatus(t, err, engine.StatusTypeMismatch)
	})
}

func TestContainer_AllTypes(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(allTypesSchema, false))
		r := must(h.CreateRow())
		ensure(r.SetString(0, "k1"))
		ensure(r.SetBool(1, true))
		ensure(r.SetByte(2, -7))
		ensure(r.SetShort(3, 300))
		ensure(r.SetInteger(4, 70000))
		ensure(r.SetLong(5, 1<<40))
		ensure(r.SetFloat(6, 0.5))
		ensure(r.SetDouble(7, -0.25))
		ensure(r.SetTimestamp(8, 1_700_000_000_000))
		ensure(r.SetGeometry(9, "POINT(1 1)"))
		blob := []byte("blob")
		ensure(r.SetBlob(10, blob))
		blob[0] = 'X'
		must(h.PutRow(r))

		out := must(h.CreateRow())
		deepEqual(t, must(h.GetRow(engine.Key{Type: engine.TypeString, S: "k1"}, false, out)), true)
		deepEqual(t, must(out.GetBool(1)), true)
		deepEqual(t, must(out.GetByte(2)), int8(-7))
		deepEqual(t, must(out.GetShort(3)), int16(300))
		deepEqual(t, must(out.GetInteger(4)), int32(70000))
		deepEqual(t, must(out.GetLong(5)), int64(1<<40))
		deepEqual(t, must(out.GetFloat(6)), float32(0.5))
		deepEqual(t, must(out.GetDouble(7)), -0.25)
		deepEqual(t, must(out.GetTimestamp(8)), int64(1_700_000_000_000))
		deepEqual(t, must(out.GetGeometry(9)), "POINT(1 1)")
		deepEqual(t, must(out.GetBlob(10)), []byte("blob"))

		_, err := out.GetLong(4)
		isStatus(t, err, engine.StatusTypeMismatch)
		isStatus(t, out.SetString(11, "x"), engine.StatusIllegalArgument)
		ensure(out.Close())
		_, err = out.GetBool(1)
		isStatus(t, err, engine.StatusClosed)
	})
}

func TestContainer_KeylessRows(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		s := usersSchema.Clone()
		s.Name, s.RowKey = "log", false
		h := must(c.PutContainer(s, false))
		putUser(t, h, 3, "c", 0, true)
		putUser(t, h, 1, "a", 0, true)
		putUser(t, h, 3, "c again", 0, true)

		// insertion order, duplicates allowed
		deepEqual(t, queryIDs(t, h, "SELECT *", engine.FetchOptions{}, false), []int32{3, 1, 3})

		_, err := h.GetRow(intKey(1), false, must(h.CreateRow()))
		isStatus(t, err, engine.StatusNoRowKey)
		_, err = h.RemoveRow(intKey(1))
		isStatus(t, err, engine.StatusNoRowKey)

		ensure(h.SetAutoCommit(false))
		putUser(t, h, 9, "pending", 0, true)
		deepEqual(t, queryIDs(t, h, "SELECT * WHERE id > 2", engine.FetchOptions{}, false), []int32{3, 3, 9})
		ensure(h.Commit())
		deepEqual(t, queryIDs(t, h, "SELECT *", engine.FetchOptions{}, true), []int32{3, 1, 3, 9})
	})
}

func TestContainer_ManualCommit(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(usersSchema, false))
		putUser(t, h, 1, "alice", 1, true)
		putUser(t, h, 2, "bob", 2, true)

		ensure(h.SetAutoCommit(false))
		deepEqual(t, putUser(t, h, 3, "carol", 3, true), false)
		deepEqual(t, putUser(t, h, 3, "carol2", 3, true), true)
		deepEqual(t, must(h.RemoveRow(intKey(1))), true)
		deepEqual(t, putUser(t, h, 2, "bobby", 2, true), true)

		// the handle sees its own writes
		name, _ := userName(t, h, 3)
		deepEqual(t, name, "carol2")
		_, ok := userName(t, h, 1)
		deepEqual(t, ok, false)
		deepEqual(t, queryIDs(t, h, "SELECT *", engine.FetchOptions{}, false), []int32{2, 3})
		deepEqual(t, queryIDs(t, h, "SELECT * ORDER BY id DESC", engine.FetchOptions{}, true), []int32{3, 2})

		// other handles do not
		other := must(c.GetContainer("users"))
		deepEqual(t, queryIDs(t, other, "SELECT *", engine.FetchOptions{}, false), []int32{1, 2})

		ensure(h.Commit())
		deepEqual(t, queryIDs(t, other, "SELECT *", engine.FetchOptions{}, false), []int32{2, 3})
		name, _ = userName(t, other, 2)
		deepEqual(t, name, "bobby")

		putUser(t, h, 4, "dave", 4, true)
		ensure(h.Abort())
		_, ok = userName(t, h, 4)
		deepEqual(t, ok, false)

		// switching back to auto-commit commits what is pending
		putUser(t, h, 5, "eve", 5, true)
		ensure(h.SetAutoCommit(true))
		_, ok = userName(t, other, 5)
		deepEqual(t, ok, true)

		// closing discards pending writes
		ensure(h.SetAutoCommit(false))
		putUser(t, h, 6, "frank", 6, true)
		ensure(h.Close(true))
		_, ok = userName(t, other, 6)
		deepEqual(t, ok, false)
	})
}

func TestContainer_Drop(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(usersSchema, false))
		putUser(t, h, 1, "alice", 1, true)

		ensure(c.DropContainer("USERS"))
		ensure(c.DropContainer("users"))
		deepEqual(t, must(c.ContainerSchema("users")) == nil, true)
		deepEqual(t, must(c.GetContainer("users")) == nil, true)

		_, err := h.GetRow(intKey(1), false, must(h.CreateRow()))
		isStatus(t, err, engine.StatusNoSuchContainer)

		// a recreated container is a different container
		must(c.PutContainer(usersSchema, false))
		_, err = h.GetRow(intKey(1), false, must(h.CreateRow()))
		isStatus(t, err, engine.StatusNoSuchContainer)
	})
}

func TestContainer_Indexes(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(usersSchema, false))
		ensure(h.CreateIndex("NAME", engine.IndexDefault))
		ensure(h.CreateIndex("name", engine.IndexTree))
		isStatus(t, h.CreateIndex("nope", engine.IndexTree), engine.StatusNoSuchColumn)
		isStatus(t, h.CreateIndex("name", engine.IndexSpatial), engine.StatusIllegalArgument)
		isStatus(t, h.CreateIndex("name", 3), engine.StatusIllegalArgument)

		hh := h.(*containerHandle)
		var meta *containerMeta
		ensure(hh.db.read(func(tx *tx) error {
			meta = must(tx.loadMeta("users"))
			return nil
		}))
		deepEqual(t, meta.Indexes, []indexMeta{{Column: "name", Kind: engine.IndexTree}})

		ensure(h.DropIndex("name", engine.IndexDefault))
		ensure(h.DropIndex("name", engine.IndexDefault))
		ensure(hh.db.read(func(tx *tx) error {
			meta = must(tx.loadMeta("users"))
			return nil
		}))
		deepEqual(t, len(meta.Indexes), 0)
	})
}

func TestConn_Close(t *testing.T) {
	_, c := setup(t, Options{})
	h := must(c.PutContainer(usersSchema, false))
	q := must(h.Query("SELECT *"))
	rs := must(q.Fetch(false))
	ensure(c.Close(true))

	_, err := h.CreateRow()
	isStatus(t, err, engine.StatusClosed)
	_, err = q.Fetch(false)
	isStatus(t, err, engine.StatusClosed)
	deepEqual(t, rs.HasNext(), false)
	_, err = c.GetContainer("users")
	isStatus(t, err, engine.StatusClosed)
	ensure(c.Close(true))
}

func TestConn_ContainerNames(t *testing.T) {
	_, c := setup(t, Options{})
	for _, name := range []string{"b", "C", "a"} {
		s := usersSchema.Clone()
		s.Name = name
		must(c.PutContainer(s, false))
	}
	deepEqual(t, must(c.(*conn).ContainerNames()), []string{"a", "b", "C"})
}

func TestQuery_Basics(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		h := must(c.PutContainer(usersSchema, false))
		for i := int32(1); i <= 10; i++ {
			putUser(t, h, i, fmt.Sprintf("user%02d", i), float64(i%4), i%2 == 0)
		}
		o := func(text string, want ...int32) {
			t.Helper()
			if want == nil {
				want = []int32{}
			}
			deepEqual(t, queryIDs(t, h, text, engine.FetchOptions{}, false), want)
			deepEqual(t, queryIDs(t, h, text, engine.FetchOptions{}, true), want)
		}
		o("SELECT * WHERE id > 7", 8, 9, 10)
		o("SELECT * WHERE id >= 3 AND id < 6", 3, 4, 5)
		o("SELECT * WHERE id > 7 AND id < 3")
		o("SELECT * WHERE active AND id <= 6", 2, 4, 6)
		o("SELECT * WHERE name = 'user05' OR id = 1", 1, 5)
		o("select * from users where score = 3", 3, 7)
		o("SELECT * ORDER BY id DESC LIMIT 3", 10, 9, 8)
		o("SELECT * WHERE id < 5 ORDER BY id DESC", 4, 3, 2, 1)
		o("SELECT * ORDER BY score DESC, id LIMIT 4", 3, 7, 2, 6)
		o("SELECT * LIMIT 3 OFFSET 8", 9, 10)
		o("SELECT * LIMIT 0")
		o("SELECT * LIMIT 2 OFFSET 20")

		deepEqual(t, queryIDs(t, h, "SELECT * WHERE id > 2", engine.FetchOptions{Limit: 2}, false), []int32{3, 4})
		deepEqual(t, queryIDs(t, h, "SELECT * LIMIT 5", engine.FetchOptions{Limit: 7}, false), []int32{1, 2, 3, 4, 5})
	})
}

func TestQuery_Errors(t *testing.T) {
	_, c := setup(t, Options{})
	h := must(c.PutContainer(usersSchema, false))
	putUser(t, h, 1, "alice", 1, true)

	_, err := h.Query("SELEKT *")
	isStatus(t, err, engine.StatusQuerySyntax)
	_, err = h.Query("SELECT * WHERE email = 'x'")
	isStatus(t, err, engine.StatusNoSuchColumn)
	_, err = h.Query("SELECT * FROM other")
	isStatus(t, err, engine.StatusNoSuchColumn)
	_, err = h.Query("SELECT * WHERE name LIKE 'a%'")
	isStatus(t, err, engine.StatusQueryUnsupported)
	_, err = h.Query("SELECT SUM(name)")
	isStatus(t, err, engine.StatusQueryUnsupported)

	q := must(h.Query("SELECT * WHERE id / 0 = 1"))
	_, err = q.Fetch(false)
	isStatus(t, err, engine.StatusQueryEvaluation)

	q = must(h.Query("SELECT *"))
	_, err = q.Fetch(true)
	isStatus(t, err, engine.StatusIllegalArgument)
}

func TestQuery_Streaming(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		c.(*conn).db.opt.FetchBatchSize = 3
		h := must(c.PutContainer(usersSchema, false))
		var all []int32
		for i := int32(1); i <= 10; i++ {
			putUser(t, h, i, "u", 0, i%3 != 0)
			all = append(all, i)
		}

		q := must(h.Query("SELECT *"))
		rs := must(q.RowSet())
		deepEqual(t, rs.Size(), -1)
		r := must(h.CreateRow())
		var got []int32
		for rs.HasNext() {
			ensure(rs.NextRow(r))
			id := must(r.GetInteger(0))
			got = append(got, id)
			if id == 4 {
				// rows behind the cursor and far ahead of it both change
				must(h.RemoveRow(intKey(9)))
				putUser(t, h, 11, "late", 0, true)
			}
		}
		deepEqual(t, got, []int32{1, 2, 3, 4, 5, 6, 7, 8, 10, 11})
		isStatus(t, rs.NextRow(r), engine.StatusNoMoreResults)

		deepEqual(t, queryIDs(t, h, "SELECT * WHERE active ORDER BY id DESC LIMIT 4 OFFSET 1", engine.FetchOptions{}, true), []int32{10, 8, 7, 5})

		// partial fetch streams too
		q = must(h.Query("SELECT * WHERE id > 5"))
		ensure(q.SetFetchOptions(engine.FetchOptions{Partial: true}))
		rs = must(q.Fetch(false))
		deepEqual(t, rs.Size(), -1)
		ensure(q.SetFetchOptions(engine.FetchOptions{}))
		rs = must(q.Fetch(false))
		deepEqual(t, rs.Size(), 5)
	})
}

func TestQuery_Aggregations(t *testing.T) {
	backends(t, func(t *testing.T, c engine.Conn) {
		s := &engine.ContainerSchema{
			Name:   "series",
			Kind:   engine.TimeSeries,
			RowKey: true,
			Columns: []engine.ColumnSchema{
				{Name: "ts", Type: engine.TypeTimestamp},
				{Name: "value", Type: engine.TypeDouble},
				{Name: "n", Type: engine.TypeLong},
			},
		}
		h := must(c.PutContainer(s, false))
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
		for i := int64(0); i < 5; i++ {
			r := must(h.CreateRow())
			ensure(r.SetTimestamp(0, base+i*60_000))
			ensure(r.SetDouble(1, float64(i)+0.5))
			ensure(r.SetLong(2, i*10))
			must(h.PutRow(r))
		}

		agg := func(text string) (engine.AggregationHandle, bool) {
			t.Helper()
			q := must(h.Query(text))
			rs := must(q.Fetch(false))
			deepEqual(t, rs.Kind(), engine.RowSetAggregationResult)
			if !rs.HasNext() {
				deepEqual(t, rs.Size(), 0)
				return nil, false
			}
			deepEqual(t, rs.Size(), 1)
			a := must(rs.NextAggregation())
			deepEqual(t, rs.HasNext(), false)
			return a, true
		}

		a, _ := agg("SELECT COUNT(*)")
		deepEqual(t, must(a.Long()), int64(5))
		a, _ = agg("SELECT SUM(n)")
		deepEqual(t, must(a.Long()), int64(100))
		deepEqual(t, must(a.Double()), 100.0)
		a, _ = agg("SELECT AVG(value)")
		deepEqual(t, must(a.Double()), 2.5)
		deepEqual(t, must(a.Long()), int64(2))
		a, _ = agg("SELECT MAX(ts)")
		deepEqual(t, must(a.Timestamp()), base+4*60_000)
		a, _ = agg("SELECT MIN(value) WHERE ts > TIMESTAMPADD(MINUTE, TIMESTAMP('2024-01-01T00:00:00Z'), 2)")
		deepEqual(t, must(a.Double()), 3.5)

		a, _ = agg("SELECT COUNT(*) WHERE n > 100")
		deepEqual(t, must(a.Long()), int64(0))
		_, ok := agg("SELECT MAX(value) WHERE n > 100")
		deepEqual(t, ok, false)

		ensure(a.Close())
		_, err := a.Long()
		isStatus(t, err, engine.StatusClosed)

		q := must(h.Query("SELECT COUNT(*)"))
		rs := must(q.Fetch(false))
		isStatus(t, rs.NextRow(must(h.CreateRow())), engine.StatusIllegalArgument)
	})
}

func TestQuery_Explain(t *testing.T) {
	_, c := setup(t, Options{})
	h := must(c.PutContainer(usersSchema, false))
	for i := int32(1); i <= 10; i++ {
		putUser(t, h, i, "u", 0, true)
	}

	explain := func(text string) map[string]string {
		t.Helper()
		q := must(h.Query(text))
		rs := must(q.Fetch(false))
		deepEqual(t, rs.Kind(), engine.RowSetQueryAnalysis)
		out := make(map[string]string)
		var id int32
		for rs.HasNext() {
			e := must(rs.NextAnalysis())
			deepEqual(t, e.ID, id)
			deepEqual(t, e.Statement, text)
			id++
			out[e.Type] = e.Value
		}
		return out
	}

	p := explain("EXPLAIN SELECT * WHERE id > 3 AND id <= 5 AND active ORDER BY id LIMIT 10")
	deepEqual(t, p["QUERY"], "Users")
	deepEqual(t, p["SCAN"], "ROWKEY (3, 5]")
	deepEqual(t, p["CONDITION"], "(((id > 3) AND (id <= 5)) AND active)")
	deepEqual(t, p["ORDER"], "SCAN_ORDER id ASC")
	deepEqual(t, p["LIMIT"], "10")
	_, analyzed := p["ROWS_SCANNED"]
	deepEqual(t, analyzed, false)

	p = explain("EXPLAIN ANALYZE SELECT * WHERE id > 3 AND id <= 5")
	deepEqual(t, p["ROWS_SCANNED"], "2")
	deepEqual(t, p["ROWS_RETURNED"], "2")

	p = explain("EXPLAIN ANALYZE SELECT * WHERE name = 'u' ORDER BY score LIMIT 3")
	deepEqual(t, p["SCAN"], "FULL")
	deepEqual(t, p["ORDER"], "SORT score ASC")
	deepEqual(t, p["ROWS_SCANNED"], "10")
	deepEqual(t, p["ROWS_RETURNED"], "3")

	p = explain("EXPLAIN ANALYZE SELECT COUNT(*) WHERE id = 100")
	deepEqual(t, p["AGGREGATION"], "COUNT(*)")
	deepEqual(t, p["ROWS_SCANNED"], "0")
	deepEqual(t, p["ROWS_RETURNED"], "1")

	p = explain("EXPLAIN SELECT * WHERE id > 5 AND id < 2")
	deepEqual(t, p["SCAN"], "EMPTY")
}

func TestQuery_Now(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_, c := setup(t, Options{Now: func() time.Time { return now }})
	s := &engine.ContainerSchema{
		Name:   "events",
		RowKey: true,
		Columns: []engine.ColumnSchema{
			{Name: "at", Type: engine.TypeTimestamp},
			{Name: "id", Type: engine.TypeInteger},
		},
	}
	h := must(c.PutContainer(s, false))
	for i, d := range []time.Duration{-48 * time.Hour, -2 * time.Hour, time.Hour} {
		r := must(h.CreateRow())
		ensure(r.SetTimestamp(0, now.Add(d).UnixMilli()))
		ensure(r.SetInteger(1, int32(i)))
		must(h.PutRow(r))
	}

	q := must(h.Query("SELECT * WHERE at > TIMESTAMPADD(DAY, NOW(), -1) AND at < NOW()"))
	rs := must(q.Fetch(false))
	deepEqual(t, rs.Size(), 1)
	r := must(h.CreateRow())
	ensure(rs.NextRow(r))
	deepEqual(t, must(r.GetInteger(1)), int32(1))
}

func TestQuery_CloseCascade(t *testing.T) {
	_, c := setup(t, Options{})
	h := must(c.PutContainer(usersSchema, false))
	putUser(t, h, 1, "alice", 1, true)

	q := must(h.Query("SELECT *"))
	rs1 := must(q.Fetch(false))
	rs2 := must(q.RowSet())
	ensure(q.Close())
	deepEqual(t, rs1.HasNext(), false)
	deepEqual(t, rs2.HasNext(), false)
	isStatus(t, rs1.NextRow(must(h.CreateRow())), engine.StatusClosed)
	_, err := q.Fetch(false)
	isStatus(t, err, engine.StatusClosed)
	deepEqual(t, len(h.(*containerHandle).queries), 0)
}
