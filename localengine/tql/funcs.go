package tql

import (
	"strings"
	"time"
)

// TimeUnit is the unit argument of TIMESTAMPADD and TIMESTAMPDIFF.
type TimeUnit int

const (
	Year TimeUnit = iota + 1
	Month
	Day
	Hour
	Minute
	Second
	Millisecond
)

var timeUnitNames = []string{"", "YEAR", "MONTH", "DAY", "HOUR", "MINUTE", "SECOND", "MILLISECOND"}

func (u TimeUnit) String() string {
	if u > 0 && int(u) < len(timeUnitNames) {
		return timeUnitNames[u]
	}
	return "?"
}

func parseTimeUnit(s string) (TimeUnit, bool) {
	s = strings.ToUpper(s)
	for i, n := range timeUnitNames {
		if i > 0 && n == s {
			return TimeUnit(i), true
		}
	}
	return 0, false
}

func (u TimeUnit) millis() int64 {
	switch u {
	case Day:
		return 24 * 60 * 60 * 1000
	case Hour:
		return 60 * 60 * 1000
	case Minute:
		return 60 * 1000
	case Second:
		return 1000
	default:
		return 1
	}
}

type signature struct {
	unit bool
	args int
}

var functions = map[string]signature{
	"NOW":             {false, 0},
	"TIMESTAMPADD":    {true, 2},
	"TIMESTAMPDIFF":   {true, 2},
	"TO_TIMESTAMP_MS": {false, 1},
	"TO_EPOCH_MS":     {false, 1},
	"TIMESTAMP":       {false, 1},
}

func (e *Call) Eval(env *Env) (Value, error) {
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := a.Eval(env)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	switch e.Name {
	case "NOW":
		return Timestamp(env.Now.UnixMilli()), nil

	case "TIMESTAMPADD":
		ts, err := wantKind(e.Name, args[0], KindTimestamp)
		if err != nil {
			return Value{}, err
		}
		n, err := wantKind(e.Name, args[1], KindInt)
		if err != nil {
			return Value{}, err
		}
		return Timestamp(addUnits(ts.I64, e.Unit, n.I64)), nil

	case "TIMESTAMPDIFF":
		a, err := wantKind(e.Name, args[0], KindTimestamp)
		if err != nil {
			return Value{}, err
		}
		b, err := wantKind(e.Name, args[1], KindTimestamp)
		if err != nil {
			return Value{}, err
		}
		return Int(diffUnits(a.I64, b.I64, e.Unit)), nil

	case "TO_TIMESTAMP_MS":
		n, err := wantKind(e.Name, args[0], KindInt)
		if err != nil {
			return Value{}, err
		}
		return Timestamp(n.I64), nil

	case "TO_EPOCH_MS":
		ts, err := wantKind(e.Name, args[0], KindTimestamp)
		if err != nil {
			return Value{}, err
		}
		return Int(ts.I64), nil

	case "TIMESTAMP":
		s, err := wantKind(e.Name, args[0], KindString)
		if err != nil {
			return Value{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, s.S)
		if err != nil {
			return Value{}, evalErrf("TIMESTAMP: cannot parse %q: %v", s.S, err)
		}
		return Timestamp(t.UnixMilli()), nil
	}
	return Value{}, evalErrf("unknown function %s", e.Name)
}

func wantKind(fn string, v Value, k Kind) (Value, error) {
	if v.Kind != k {
		return Value{}, evalErrf("%s: expected %v, got %v", fn, k, v.Kind)
	}
	return v, nil
}

func addUnits(ms int64, u TimeUnit, n int64) int64 {
	switch u {
	case Year:
		return time.UnixMilli(ms).UTC().AddDate(int(n), 0, 0).UnixMilli()
	case Month:
		return time.UnixMilli(ms).UTC().AddDate(0, int(n), 0).UnixMilli()
	default:
		return ms + n*u.millis()
	}
}

// diffUnits returns a-b in whole units, truncated toward zero.
func diffUnits(a, b int64, u TimeUnit) int64 {
	switch u {
	case Year, Month:
		ta, tb := time.UnixMilli(a).UTC(), time.UnixMilli(b).UTC()
		months := int64(ta.Year()-tb.Year())*12 + int64(ta.Month()-tb.Month())
		// step back if the partial month has not elapsed
		if months > 0 && addUnits(b, Month, months) > a {
			months--
		} else if months < 0 && addUnits(b, Month, months) < a {
			months++
		}
		if u == Year {
			return months / 12
		}
		return months
	default:
		return (a - b) / u.millis()
	}
}
