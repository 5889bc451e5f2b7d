// Package mlog defines the structured logging interface used across the
// gateway. The interface is kept separate from its zap-backed implementation
// so adapters and services never import zap directly.
package mlog

// Logger is the common interface every component logs through.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)

	Error(args ...any)
	Errorf(format string, args ...any)

	Warn(args ...any)
	Warnf(format string, args ...any)

	Debug(args ...any)
	Debugf(format string, args ...any)

	// WithFields returns a logger with the given key/value pairs attached to
	// every subsequent entry.
	WithFields(fields ...any) Logger

	Sync() error
}

// NopLogger discards everything. Used as a safe zero value when no logger
// has been wired into a context yet.
type NopLogger struct{}

func (NopLogger) Info(args ...any)                    {}
func (NopLogger) Infof(format string, args ...any)    {}
func (NopLogger) Error(args ...any)                   {}
func (NopLogger) Errorf(format string, args ...any)   {}
func (NopLogger) Warn(args ...any)                    {}
func (NopLogger) Warnf(format string, args ...any)    {}
func (NopLogger) Debug(args ...any)                   {}
func (NopLogger) Debugf(format string, args ...any)   {}
func (NopLogger) Sync() error                         { return nil }
func (n NopLogger) WithFields(fields ...any) Logger {
	return n
}
