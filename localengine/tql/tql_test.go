package tql

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

var testColumns = []Column{
	{"id", KindInt},
	{"name", KindString},
	{"score", KindFloat},
	{"ts", KindTimestamp},
	{"ok", KindBool},
}

func bind(t testing.TB, text string) *Statement {
	t.Helper()
	st, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	if err := st.Bind("col01", testColumns); err != nil {
		t.Fatalf("Bind(%q) failed: %v", text, err)
	}
	return st
}

func errKind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func TestParse_Select(t *testing.T) {
	st := bind(t, "select * from COL01 where id >= 10 and name != 'x' order by score desc, id limit 5 offset 2;")
	deepEqual(t, st.From, "COL01")
	deepEqual(t, st.Where.String(), `((id >= 10) AND (name != "x"))`)
	deepEqual(t, len(st.OrderBy), 2)
	deepEqual(t, st.OrderBy[0].Column.Index, 2)
	deepEqual(t, st.OrderBy[0].Desc, true)
	deepEqual(t, st.OrderBy[1].Desc, false)
	deepEqual(t, st.Limit, int64(5))
	deepEqual(t, st.Offset, int64(2))
	deepEqual(t, st.Agg == nil, true)
}

func TestParse_Defaults(t *testing.T) {
	st := bind(t, "SELECT *")
	deepEqual(t, st.Limit, int64(-1))
	deepEqual(t, st.Where == nil, true)
	deepEqual(t, st.From, "")
}

func TestParse_Aggregations(t *testing.T) {
	st := bind(t, "SELECT COUNT(*)")
	deepEqual(t, st.Agg.String(), "COUNT(*)")

	st = bind(t, `select max("score") where ok`)
	deepEqual(t, st.Agg.Func, AggMax)
	deepEqual(t, st.Agg.Column.Index, 2)
}

func TestParse_Explain(t *testing.T) {
	st := bind(t, "EXPLAIN ANALYZE SELECT * WHERE id = 1")
	deepEqual(t, st.Explain, true)
	deepEqual(t, st.Analyze, true)

	st = bind(t, "explain select *")
	deepEqual(t, st.Explain, true)
	deepEqual(t, st.Analyze, false)
}

func TestParse_Literals(t *testing.T) {
	st := bind(t, "SELECT * WHERE name = 'it''s' AND id > -9223372036854775808 AND score < 1.5e3")
	deepEqual(t, st.Where.String(), `(((name = "it's") AND (id > -9223372036854775808)) AND (score < 1500))`)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		text string
		kind ErrorKind
	}{
		{"", ErrSyntax},
		{"SELEC *", ErrSyntax},
		{"SELECT * WHERE", ErrSyntax},
		{"SELECT * WHERE name = 'abc", ErrSyntax},
		{"SELECT * LIMIT x", ErrSyntax},
		{"SELECT * garbage", ErrSyntax},
		{"SELECT SUM(*)", ErrSyntax},
		{"SELECT id, name", ErrUnsupported},
		{"SELECT STDDEV(score)", ErrUnsupported},
		{"SELECT * WHERE name IS NULL", ErrUnsupported},
		{"SELECT * WHERE name LIKE 'a%'", ErrUnsupported},
		{"SELECT * WHERE id IN (1, 2)", ErrUnsupported},
		{"SELECT * WHERE ST_MBRIntersects(name, name)", ErrUnsupported},
		{"SELECT * WHERE TIMESTAMPADD(WEEK, ts, 1) > ts", ErrSyntax},
	}
	for _, tt := range tests {
		_, err := Parse(tt.text)
		if k := errKind(err); k != tt.kind {
			t.Errorf("** Parse(%q) = %v, wanted error kind %d", tt.text, err, tt.kind)
		}
	}
}

func TestBind_Errors(t *testing.T) {
	for _, text := range []string{
		"SELECT * FROM other",
		"SELECT * WHERE nope = 1",
		"SELECT * ORDER BY nope",
		"SELECT MAX(nope)",
	} {
		st, err := Parse(text)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", text, err)
		}
		if err := st.Bind("col01", testColumns); errKind(err) != ErrColumn {
			t.Errorf("** Bind(%q) = %v, wanted a column error", text, err)
		}
	}
}

func match(t testing.TB, text string, row []Value) bool {
	t.Helper()
	st := bind(t, text)
	ok, err := Match(st.Where, &Env{Now: time.UnixMilli(1_700_000_000_000), Row: row})
	if err != nil {
		t.Fatalf("Match(%q) failed: %v", text, err)
	}
	return ok
}

func sampleRow() []Value {
	return []Value{
		Int(42),
		String("alice"),
		Float(2.5),
		Timestamp(1_600_000_000_000),
		Bool(true),
	}
}

func TestMatch(t *testing.T) {
	row := sampleRow()
	tests := []struct {
		where string
		want  bool
	}{
		{"id = 42", true},
		{"id <> 42", false},
		{"id = 42.0", true},
		{"id * 2 + 1 = 85", true},
		{"id / 5 = 8", true},
		{"id % 5 = 2", true},
		{"-id < 0", true},
		{"score > 2", true},
		{"score >= 2.5 AND score <= 2.5", true},
		{"name = 'alice'", true},
		{"name < 'bob'", true},
		{"ok", true},
		{"NOT ok", false},
		{"ok = false OR id = 42", true},
		{"ts < NOW()", true},
		{"ts = TO_TIMESTAMP_MS(1600000000000)", true},
		{"TO_EPOCH_MS(ts) = 1600000000000", true},
		{"ts = TIMESTAMP('2020-09-13T12:26:40Z')", true},
		{"TIMESTAMPADD(DAY, ts, 1) = TO_TIMESTAMP_MS(1600086400000)", true},
		{"TIMESTAMPDIFF(HOUR, NOW(), ts) = 27777", true},
		{"TIMESTAMPDIFF(YEAR, NOW(), ts) = 3", true},
	}
	for _, tt := range tests {
		if got := match(t, "SELECT * WHERE "+tt.where, row); got != tt.want {
			t.Errorf("** %s = %v, wanted %v", tt.where, got, tt.want)
		}
	}
}

func TestMatch_ShortCircuit(t *testing.T) {
	// the right side would fail with division by zero
	if match(t, "SELECT * WHERE id = 0 AND id / 0 = 1", sampleRow()) {
		t.Errorf("** got true, wanted false")
	}
	if !match(t, "SELECT * WHERE id = 42 OR id / 0 = 1", sampleRow()) {
		t.Errorf("** got false, wanted true")
	}
}

func TestMatch_NaN(t *testing.T) {
	row := sampleRow()
	row[2] = Float(math.NaN())
	if match(t, "SELECT * WHERE score = score", row) {
		t.Errorf("** NaN = NaN matched")
	}
	if !match(t, "SELECT * WHERE score != 1", row) {
		t.Errorf("** NaN != 1 did not match")
	}
}

func TestMatch_Errors(t *testing.T) {
	row := sampleRow()
	for _, where := range []string{
		"id",
		"id / 0 = 1",
		"id % 0 = 1",
		"name = 1",
		"ok < true",
		"name + 1 = 2",
		"NOT id",
		"ts = 5",
		"TIMESTAMP('yesterday') = ts",
	} {
		st := bind(t, "SELECT * WHERE "+where)
		_, err := Match(st.Where, &Env{Row: row})
		if errKind(err) != ErrEval {
			t.Errorf("** %s: got %v, wanted an evaluation error", where, err)
		}
	}
}

func TestCompare(t *testing.T) {
	c := must(Compare(Int(1), Float(1.5)))
	deepEqual(t, c, -1)
	c = must(Compare(Float(math.NaN()), Float(1)))
	deepEqual(t, c, 1)
	c = must(Compare(Blob([]byte{1}), Blob([]byte{1, 0})))
	deepEqual(t, c, -1)
	if _, err := Compare(String("a"), Int(1)); err == nil {
		t.Errorf("** comparing STRING with INTEGER succeeded")
	}
}

func TestKeyBounds(t *testing.T) {
	now := time.UnixMilli(0)
	tests := []struct {
		where string
		want  string
	}{
		{"id = 5", "[5, 5]"},
		{"id > 5", "(5, +inf)"},
		{"5 < id", "(5, +inf)"},
		{"id >= 5 AND id < 10", "[5, 10)"},
		{"id >= 5 AND id > 5", "(5, +inf)"},
		{"id > 1 AND id > 3 AND id <= 9 AND id <= 20", "(3, 9]"},
		{"id > 10 AND id < 5", "empty"},
		{"id > 5 AND id < 5", "empty"},
		{"id >= 5 AND id <= 5", "[5, 5]"},
		{"id > 5 OR id < 2", "full"},
		{"score > 5", "full"},
		{"id > 1.5", "full"},
		{"id + 1 > 5", "full"},
		{"NOT id > 5", "full"},
	}
	for _, tt := range tests {
		st := bind(t, "SELECT * WHERE "+tt.where)
		if got := KeyBounds(st.Where, 0, KindInt, now).String(); got != tt.want {
			t.Errorf("** KeyBounds(%s) = %s, wanted %s", tt.where, got, tt.want)
		}
	}
}

func TestAccumulator(t *testing.T) {
	rows := [][]Value{
		{Int(1), String("a"), Float(1.5), Timestamp(300), Bool(true)},
		{Int(5), String("b"), Float(-2), Timestamp(100), Bool(false)},
		{Int(3), String("c"), Float(4), Timestamp(200), Bool(true)},
	}
	tests := []struct {
		query string
		want  Value
	}{
		{"SELECT COUNT(*)", Int(3)},
		{"SELECT COUNT(name)", Int(3)},
		{"SELECT SUM(id)", Int(9)},
		{"SELECT SUM(score)", Float(3.5)},
		{"SELECT AVG(id)", Float(3)},
		{"SELECT MIN(score)", Float(-2)},
		{"SELECT MAX(id)", Int(5)},
		{"SELECT MAX(ts)", Timestamp(300)},
		{"SELECT MIN(ts)", Timestamp(100)},
	}
	for _, tt := range tests {
		st := bind(t, tt.query)
		var kind Kind
		if st.Agg.Column != nil {
			kind = testColumns[st.Agg.Column.Index].Kind
		}
		acc := must(NewAccumulator(st.Agg, kind))
		for _, r := range rows {
			acc.Add(r)
		}
		got, ok := acc.Result()
		if !ok || !reflect.DeepEqual(got, tt.want) {
			t.Errorf("** %s = %v (%v), wanted %v", tt.query, got, ok, tt.want)
		}
	}
}

func TestAccumulator_Empty(t *testing.T) {
	st := bind(t, "SELECT COUNT(*)")
	v, ok := must(NewAccumulator(st.Agg, 0)).Result()
	deepEqual(t, ok, true)
	deepEqual(t, v, Int(0))

	st = bind(t, "SELECT AVG(score)")
	_, ok = must(NewAccumulator(st.Agg, KindFloat)).Result()
	deepEqual(t, ok, false)
}

func TestAccumulator_Unsupported(t *testing.T) {
	for _, q := range []string{"SELECT SUM(name)", "SELECT AVG(ts)", "SELECT MAX(ok)"} {
		st := bind(t, q)
		_, err := NewAccumulator(st.Agg, testColumns[st.Agg.Column.Index].Kind)
		if errKind(err) != ErrUnsupported {
			t.Errorf("** %s: got %v, wanted unsupported", q, err)
		}
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}
