package localengine

import (
	"bytes"
	"context"
	"log/slog"
)

const (
	debugLogRawScans = false
)

// RawRange defines a range of stored keys. The constructors use mnemonics:
// O means open, I means inclusive, E means exclusive; the first letter is for
// the lower bound, the second for the upper bound.
type RawRange struct {
	Lower    []byte
	Upper    []byte
	LowerInc bool
	UpperInc bool
	Reverse  bool
}

func RawOO() RawRange            { return RawRange{} }
func RawIO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: true} }
func RawEO(l []byte) RawRange    { return RawRange{Lower: l, LowerInc: false} }
func RawOI(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: true} }
func RawOE(u []byte) RawRange    { return RawRange{Upper: u, UpperInc: false} }
func RawII(l, u []byte) RawRange { return RawRange{Lower: l, Upper: u, LowerInc: true, UpperInc: true} }
func (rang RawRange) Reversed() RawRange { rang.Reverse = true; return rang }

// after narrows the range to keys strictly past k in scan order.
func (rang RawRange) after(k []byte) RawRange {
	k = bytes.Clone(k)
	if rang.Reverse {
		rang.Upper, rang.UpperInc = k, false
	} else {
		rang.Lower, rang.LowerInc = k, false
	}
	return rang
}

// Contains reports whether k lies within both bounds.
func (rang *RawRange) Contains(k []byte) bool {
	return rang.aboveLower(k) && rang.belowUpper(k)
}

func (rang *RawRange) aboveLower(k []byte) bool {
	if rang.Lower == nil {
		return true
	}
	cmp := bytes.Compare(k, rang.Lower)
	return cmp > 0 || (cmp == 0 && rang.LowerInc)
}

func (rang *RawRange) belowUpper(k []byte) bool {
	if rang.Upper == nil {
		return true
	}
	cmp := bytes.Compare(k, rang.Upper)
	return cmp < 0 || (cmp == 0 && rang.UpperInc)
}

func (rang *RawRange) start(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if rang.Reverse {
		if upper := rang.Upper; upper != nil {
			k, v = bcur.Seek(upper)
			if k == nil {
				k, v = bcur.Last()
			} else if !rang.belowUpper(k) {
				k, v = bcur.Prev()
			}
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to upper", hexAttr("upper", upper), hexAttr("key", k))
			}
		} else {
			k, v = bcur.Last()
		}
	} else {
		if lower := rang.Lower; lower != nil {
			k, v = bcur.Seek(lower)
			if k != nil && !rang.aboveLower(k) {
				k, v = bcur.Next()
			}
			if debugLogRawScans {
				logger.LogAttrs(context.Background(), slog.LevelDebug, "SEEK to lower", hexAttr("lower", lower), hexAttr("key", k))
			}
		} else {
			k, v = bcur.First()
		}
	}
	if k != nil && rang.match(k, logger) {
		return k, v
	}
	return nil, nil
}

func (rang *RawRange) next(bcur storageCursor, logger *slog.Logger) ([]byte, []byte) {
	var k, v []byte
	if rang.Reverse {
		k, v = bcur.Prev()
	} else {
		k, v = bcur.Next()
	}
	if k != nil && rang.match(k, logger) {
		return k, v
	}
	return nil, nil
}

// match checks the bound the scan is moving towards.
func (rang *RawRange) match(k []byte, logger *slog.Logger) bool {
	var ok bool
	if rang.Reverse {
		ok = rang.aboveLower(k)
	} else {
		ok = rang.belowUpper(k)
	}
	if debugLogRawScans && !ok {
		logger.LogAttrs(context.Background(), slog.LevelDebug, "BAIL", hexAttr("key", k))
	}
	return ok
}

func (rang *RawRange) newCursor(bcur storageCursor, logger *slog.Logger) *RawRangeCursor {
	return &RawRangeCursor{rang: *rang, bcur: bcur, logger: logger}
}

type RawRangeCursor struct {
	rang   RawRange
	bcur   storageCursor
	logger *slog.Logger
	k, v   []byte
	init   bool
}

func (c *RawRangeCursor) Next() bool {
	if c.init {
		c.k, c.v = c.rang.next(c.bcur, c.logger)
	} else {
		c.init = true
		c.k, c.v = c.rang.start(c.bcur, c.logger)
	}
	return c.k != nil
}

func (c *RawRangeCursor) Key() []byte   { return c.k }
func (c *RawRangeCursor) Value() []byte { return c.v }

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}
