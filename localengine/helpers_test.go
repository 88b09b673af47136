package localengine

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/andreyvit/griddb/engine"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isStatus(t testing.TB, err error, code int) {
	if c := engine.StatusCode(err); c != code {
		t.Helper()
		t.Errorf("** got %v (status %d), wanted status %d", err, c, code)
	}
}

func tempPath(t testing.TB) string {
	t.Helper()
	f := must(os.CreateTemp("", "localengine_test_*.db"))
	t.Logf("DB: %s", f.Name())
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

// setup returns a connection to a fresh Bolt database.
func setup(t testing.TB, opt Options) (*Engine, engine.Conn) {
	t.Helper()
	opt.IsTesting = true
	if opt.Path == "" {
		opt.Path = tempPath(t)
	}
	eng := New(opt)
	t.Cleanup(func() { ensure(eng.Close()) })
	return eng, must(eng.Connect(nil))
}

// backends runs f against a memory and a Bolt database.
func backends(t *testing.T, f func(t *testing.T, c engine.Conn)) {
	t.Run("mem", func(t *testing.T) {
		eng := New(Options{Path: "mem:" + t.Name()})
		t.Cleanup(func() { ensure(eng.Close()) })
		f(t, must(eng.Connect(nil)))
	})
	t.Run("bolt", func(t *testing.T) {
		_, c := setup(t, Options{})
		f(t, c)
	})
}

var usersSchema = &engine.ContainerSchema{
	Name:   "Users",
	Kind:   engine.Collection,
	RowKey: true,
	Columns: []engine.ColumnSchema{
		{Name: "id", Type: engine.TypeInteger},
		{Name: "name", Type: engine.TypeString},
		{Name: "score", Type: engine.TypeDouble},
		{Name: "active", Type: engine.TypeBool},
	},
}

func putUser(t testing.TB, h engine.ContainerHandle, id int32, name string, score float64, active bool) bool {
	t.Helper()
	r := must(h.CreateRow())
	ensure(r.SetInteger(0, id))
	ensure(r.SetString(1, name))
	ensure(r.SetDouble(2, score))
	ensure(r.SetBool(3, active))
	return must(h.PutRow(r))
}

func intKey(v int32) engine.Key {
	return engine.Key{Type: engine.TypeInteger, I: int64(v)}
}

func userName(t testing.TB, h engine.ContainerHandle, id int32) (string, bool) {
	t.Helper()
	r := must(h.CreateRow())
	if !must(h.GetRow(intKey(id), false, r)) {
		return "", false
	}
	return must(r.GetString(1)), true
}

// queryIDs runs a query over usersSchema rows and returns the ids in result
// order.
func queryIDs(t testing.TB, h engine.ContainerHandle, text string, opt engine.FetchOptions, stream bool) []int32 {
	t.Helper()
	q := must(h.Query(text))
	defer q.Close()
	ensure(q.SetFetchOptions(opt))
	var rs engine.ResultSet
	if stream {
		rs = must(q.RowSet())
	} else {
		rs = must(q.Fetch(false))
	}
	defer rs.Close()
	r := must(h.CreateRow())
	ids := []int32{}
	for rs.HasNext() {
		ensure(rs.NextRow(r))
		ids = append(ids, must(r.GetInteger(0)))
	}
	return ids
}

func statusOf(err error) int {
	var se *engine.StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return -1
}
