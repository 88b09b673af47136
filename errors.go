package griddb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andreyvit/griddb/engine"
)

// ErrorKind classifies errors returned by this package. Match on the kind via
// errors.Is with the Err* sentinels rather than on messages.
type ErrorKind int

const (
	KindConnection ErrorKind = iota + 1
	KindConvert
	KindNotFound
	KindEngine
	KindExhausted
	KindUnsupported
	KindClosed
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindConvert:
		return "convert"
	case KindNotFound:
		return "not found"
	case KindEngine:
		return "engine"
	case KindExhausted:
		return "exhausted"
	case KindUnsupported:
		return "unsupported"
	case KindClosed:
		return "closed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrConnection  error = kindError(KindConnection)
	ErrConvert     error = kindError(KindConvert)
	ErrNotFound    error = kindError(KindNotFound)
	ErrEngine      error = kindError(KindEngine)
	ErrExhausted   error = kindError(KindExhausted)
	ErrUnsupported error = kindError(KindUnsupported)
	ErrClosed      error = kindError(KindClosed)
)

type kindError ErrorKind

func (e kindError) Error() string {
	return ErrorKind(e).String()
}

// Error is returned by every operation in this package.
type Error struct {
	Kind      ErrorKind
	Op        string
	Container string
	Column    string
	// Code is the engine status code, if the error came from the engine.
	Code int
	Msg  string
	Err  error
}

func errf(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err, Code: engine.StatusCode(err)}
}

func convertErrf(format string, args ...any) *Error {
	return errf(KindConvert, nil, format, args...)
}

// engineErr wraps an error returned by the engine.
func engineErr(op string, err error) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	kind := KindEngine
	if engine.StatusCode(err) == engine.StatusClosed {
		kind = KindClosed
	}
	return &Error{Kind: kind, Op: op, Code: engine.StatusCode(err), Err: err}
}

func (e *Error) in(container string) *Error {
	if e.Container == "" {
		e.Container = container
	}
	return e
}

func (e *Error) op(op string) *Error {
	if e.Op == "" {
		e.Op = op
	}
	return e
}

func (e *Error) col(name string) *Error {
	e.Column = name
	return e
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	k, ok := target.(kindError)
	return ok && ErrorKind(k) == e.Kind
}

func (e *Error) Error() string {
	var buf strings.Builder
	buf.WriteString("griddb: ")
	if e.Op != "" {
		buf.WriteString(e.Op)
		buf.WriteByte(' ')
	}
	if e.Container != "" {
		buf.WriteString(e.Container)
		if e.Column != "" {
			buf.WriteByte('.')
			buf.WriteString(e.Column)
		}
		buf.WriteByte(' ')
	} else if e.Column != "" {
		buf.WriteString(e.Column)
		buf.WriteByte(' ')
	}
	buf.WriteString(e.Kind.String())
	buf.WriteString(" error")
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

// KindOf returns the kind of a griddb error, or 0 for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the engine status code carried by err, or engine.StatusOK
// if there is none.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if err == nil {
		return engine.StatusOK
	}
	return engine.StatusCode(err)
}
