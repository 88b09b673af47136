package griddb

import (
	"context"
	"fmt"
	"log/slog"
)

// Options configure a StoreFactory and everything derived from it.
type Options struct {
	// Logger receives debug logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Verbose logs every engine operation (gets, puts, queries, fetches).
	Verbose bool
}

type logger struct {
	l       *slog.Logger
	verbose bool
}

func newLogger(opt Options) logger {
	l := opt.Logger
	if l == nil {
		l = slog.Default()
	}
	return logger{l: l, verbose: opt.Verbose}
}

func (lg logger) logf(format string, args ...any) {
	if !lg.verbose {
		return
	}
	lg.l.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...))
}

func (lg logger) warnf(format string, args ...any) {
	lg.l.Log(context.Background(), slog.LevelWarn, fmt.Sprintf(format, args...))
}
