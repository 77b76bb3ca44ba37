package pglitenv

import (
	"log/slog"

	"github.com/giantswarm/pglitenv/internal/core"
)

// SetLogger replaces the package-level logger used by pglitenv.
// This allows applications to integrate pglitenv logging with their own
// logging infrastructure. The provided logger should already have any
// desired attributes; pglitenv only adds the server id.
//
// If l is nil, the logger resets to the default: slog.Default() with
// "component" attribute, re-derived on the next Logger() call and then
// cached. Call SetLogger(nil) after slog.SetDefault() to pick up changes.
//
// Servers capture the logger in New; call SetLogger before creating them,
// or pass a logger to a single server with WithLogger.
//
// Example:
//
//	pglitenv.SetLogger(myLogger.With("component", "pglitenv"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
