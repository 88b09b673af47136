package griddb

import "time"

// Timestamp is a point in time as signed milliseconds since the Unix epoch.
type Timestamp int64

func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

func Now() Timestamp {
	return TimestampOf(time.Now())
}

func (ts Timestamp) Millis() int64 {
	return int64(ts)
}

func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

func (ts Timestamp) String() string {
	return ts.Time().Format("2006-01-02T15:04:05.000Z")
}

// Add moves ts by n units. Years and months follow the UTC calendar the way
// TIMESTAMPADD does, so Jan 31 plus one month is Mar 2 or 3. An unknown unit
// leaves ts unchanged.
func (ts Timestamp) Add(n int64, unit TimeUnit) Timestamp {
	switch unit {
	case Year:
		return TimestampOf(ts.Time().AddDate(int(n), 0, 0))
	case Month:
		return TimestampOf(ts.Time().AddDate(0, int(n), 0))
	case Day:
		return ts + Timestamp(n*24*60*60*1000)
	case Hour:
		return ts + Timestamp(n*60*60*1000)
	case Minute:
		return ts + Timestamp(n*60*1000)
	case Second:
		return ts + Timestamp(n*1000)
	case Millisecond:
		return ts + Timestamp(n)
	default:
		return ts
	}
}
