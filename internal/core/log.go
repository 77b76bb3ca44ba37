package core

import (
	"log/slog"
	"sync/atomic"
)

// logger is the package-level logger used by pglitenv. Named "logger" instead
// of "log" to avoid shadowing the stdlib "log" package.
//
// A nil value means no custom logger has been set; Logger() will fall back to
// a cached default derived from slog.Default().
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches slog.Default() with the pglitenv component attribute.
// If slog.SetDefault() is called after the first Logger() call the cache does
// not follow; SetLogger(nil) clears it.
var defaultLogger atomic.Pointer[slog.Logger]

// Logger returns the current package-level logger. If no custom logger has been
// set via SetLogger, it returns a cached logger derived from slog.Default()
// with the pglitenv component attribute. It is safe to call from multiple
// goroutines.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := newDefaultLogger()
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	// A concurrent SetLogger may have cleared the cache between the CAS and
	// this load; never return nil.
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

func newDefaultLogger() *slog.Logger {
	return slog.Default().With("component", "pglitenv")
}

// SetLogger replaces the package-level logger used by pglitenv.
// If l is nil, the logger resets to slog.Default() with the "component"
// attribute, re-derived on the next Logger() call and then cached.
//
// Supervisors capture the logger when they are created; SetLogger does not
// affect supervisors that already exist.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}
