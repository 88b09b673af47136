package engine

import (
	"errors"
	"fmt"
)

// Status codes reported by engines. Engines may use other codes as well;
// clients pass them through untouched.
const (
	StatusOK               = 0
	StatusInternal         = 1000
	StatusClosed           = 1001
	StatusIllegalArgument  = 1002
	StatusTypeMismatch     = 1003
	StatusNoSuchColumn     = 1004
	StatusNoSuchContainer  = 1005
	StatusSchemaMismatch   = 1006
	StatusQuerySyntax      = 1007
	StatusQueryUnsupported = 1008
	StatusNoMoreResults    = 1009
	StatusAuthFailed       = 1010
	StatusConnectFailed    = 1011
	StatusReadOnly         = 1012
	StatusCorrupted        = 1013
	StatusNoRowKey         = 1014
	StatusQueryEvaluation  = 1015
)

// StatusError is an error reported by an engine.
type StatusError struct {
	Code int
	Msg  string
	Err  error
}

func Statusf(code int, format string, args ...any) error {
	return &StatusError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func WrapStatus(code int, err error, format string, args ...any) error {
	return &StatusError{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Msg)
}

// StatusCode returns the status code carried by err, StatusOK for nil, and
// StatusInternal for errors that carry no code.
func StatusCode(err error) int {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusInternal
}
