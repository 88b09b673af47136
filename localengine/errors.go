package localengine

import (
	"fmt"

	"github.com/andreyvit/griddb/engine"
	"github.com/andreyvit/griddb/localengine/tql"
)

// DataError reports undecodable stored data.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	var msg string
	if e.Err != nil {
		msg = fmt.Sprintf("%s at %d: %v", e.Msg, e.Off, e.Err)
	} else {
		msg = fmt.Sprintf("%s at %d", e.Msg, e.Off)
	}
	if n <= prefixLen+suffixLen {
		return fmt.Sprintf("%s: (%d) %x", msg, n, e.Data)
	}
	return fmt.Sprintf("%s: (%d) %x...%x", msg, n, e.Data[:prefixLen], e.Data[n-suffixLen:])
}

func internalErr(err error, format string, args ...any) error {
	return engine.WrapStatus(engine.StatusInternal, err, format, args...)
}

func corruptedErr(container string, key []byte, err error) error {
	return engine.WrapStatus(engine.StatusCorrupted, err, "%s: row %x", container, key)
}

var errClosed = engine.Statusf(engine.StatusClosed, "handle is closed")

// queryErr maps TQL errors to engine status codes.
func queryErr(err error) error {
	if e, ok := err.(*tql.Error); ok {
		switch e.Kind {
		case tql.ErrSyntax:
			return engine.WrapStatus(engine.StatusQuerySyntax, err, "invalid query")
		case tql.ErrUnsupported:
			return engine.WrapStatus(engine.StatusQueryUnsupported, err, "unsupported query")
		case tql.ErrColumn:
			return engine.WrapStatus(engine.StatusNoSuchColumn, err, "invalid query")
		default:
			return engine.WrapStatus(engine.StatusQueryEvaluation, err, "query failed")
		}
	}
	return err
}
