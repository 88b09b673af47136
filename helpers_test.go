package griddb

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/andreyvit/griddb/localengine"
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

func rowEqual(t testing.TB, a, e Row) {
	if !a.Equal(e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isKind(t testing.TB, err error, kind error) {
	if !errors.Is(err, kind) {
		t.Helper()
		t.Errorf("** got %v, wanted a %v error", err, kind)
	}
}

// testNow is the clock of the engines created by the helpers.
var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testEngineOptions() localengine.Options {
	return localengine.Options{
		IsTesting: true,
		Now:       func() time.Time { return testNow },
	}
}

// setup returns a store over a fresh in-memory database.
func setup(t testing.TB) *Store {
	t.Helper()
	eng := localengine.New(testEngineOptions())
	f := NewStoreFactory(eng, Options{Verbose: testing.Verbose()})
	t.Cleanup(func() {
		ensure(f.Close())
		ensure(eng.Close())
	})
	return must(f.GetStore(Props("path", "mem:"+t.Name())))
}

func tempPath(t testing.TB) string {
	t.Helper()
	f := must(os.CreateTemp("", "griddb_test_*.db"))
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

// backends runs f against a memory and a Bolt database.
func backends(t *testing.T, f func(t *testing.T, s *Store)) {
	t.Run("mem", func(t *testing.T) {
		f(t, setup(t))
	})
	t.Run("bolt", func(t *testing.T) {
		eng := localengine.New(testEngineOptions())
		fac := NewStoreFactory(eng, Options{})
		t.Cleanup(func() {
			ensure(fac.Close())
			ensure(eng.Close())
		})
		f(t, must(fac.GetStore(Props("path", tempPath(t)))))
	})
}

func col01Info() *ContainerInfo {
	return NewContainerInfo("col01", []Column{
		{"name", TypeString},
		{"status", TypeBool},
		{"count", TypeLong},
		{"lob", TypeBlob},
	}, Collection, true)
}

func point01Info() *ContainerInfo {
	return NewContainerInfo("point01", []Column{
		{"timestamp", TypeTimestamp},
		{"active", TypeBool},
		{"voltage", TypeDouble},
	}, TimeSeries, true)
}

func fetchAll(t testing.TB, c *Container, text string) []Row {
	t.Helper()
	q := must(c.Query(text))
	defer q.Close()
	rs := must(q.Fetch())
	var rows []Row
	for row, err := range rs.All() {
		ensure(err)
		rows = append(rows, row)
	}
	return rows
}
