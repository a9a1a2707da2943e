package log

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// GetLogger returns a stdr.Logger named kkrt that implements the
// logr.Logger interface and sets the verbosity of the returned logger.
// set v to 0 for info level messages,
// 1 for session lifecycle messages and 2 for per batch trace messages.
// any other verbosity level will default to 0.
func GetLogger(v int) logr.Logger {
	logger := stdr.New(nil).WithName("kkrt")
	// bound check
	if v > 2 || v < 0 {
		v = 0
		logger.Info("Invalid verbosity, setting logger to display info level messages only.")
	}
	stdr.SetVerbosity(v)

	return logger
}

// ContextWithLogger returns a context carrying logger. Extenders, base
// OT providers and equality tests pick it up from the context passed
// to their blocking calls.
func ContextWithLogger(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// FromContext returns the logger carried by ctx, named name and
// tagged with keysAndValues. Without a logger in ctx the returned
// logger discards everything, so library code never logs unless asked
// to.
func FromContext(ctx context.Context, name string, keysAndValues ...interface{}) logr.Logger {
	logger := logr.FromContextOrDiscard(ctx)
	if name != "" {
		logger = logger.WithName(name)
	}
	if len(keysAndValues) > 0 {
		logger = logger.WithValues(keysAndValues...)
	}
	return logger
}
