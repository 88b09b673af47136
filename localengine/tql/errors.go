package tql

import "fmt"

type ErrorKind int

const (
	// ErrSyntax means the query text could not be parsed.
	ErrSyntax ErrorKind = iota + 1
	// ErrUnsupported means the query is valid TQL this engine does not run.
	ErrUnsupported
	// ErrColumn means the query names a column the container does not have.
	ErrColumn
	// ErrEval means evaluation failed on some row (type mismatch, division
	// by zero).
	ErrEval
)

type Error struct {
	Kind ErrorKind
	Pos  int // byte offset into the query, or -1
	Msg  string
}

func syntaxErrf(pos int, format string, args ...any) error {
	return &Error{ErrSyntax, pos, fmt.Sprintf(format, args...)}
}

func unsupportedErrf(pos int, format string, args ...any) error {
	return &Error{ErrUnsupported, pos, fmt.Sprintf(format, args...)}
}

func columnErrf(format string, args ...any) error {
	return &Error{ErrColumn, -1, fmt.Sprintf(format, args...)}
}

func evalErrf(format string, args ...any) error {
	return &Error{ErrEval, -1, fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var kind string
	switch e.Kind {
	case ErrSyntax:
		kind = "syntax error"
	case ErrUnsupported:
		kind = "unsupported"
	case ErrColumn:
		kind = "unknown column"
	default:
		kind = "evaluation error"
	}
	if e.Pos >= 0 {
		return fmt.Sprintf("tql: %s at %d: %s", kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("tql: %s: %s", kind, e.Msg)
}
