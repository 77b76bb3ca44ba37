package pglitenv

import (
	"context"

	"github.com/giantswarm/pglitenv/internal/core"
)

// Server is one ephemeral engine.
//
// Callers must follow this lifecycle ordering:
//
//	New → Start → Endpoint (repeatable) → Close
//
// Close is safe to call at any point, including before Start and while
// Start is running in another goroutine. A Server is not restarted: after a
// failed Start or after Close, create a new one.
type Server interface {
	// Start provisions the runtime, launches the engine and blocks until it
	// announced readiness. Command candidates are tried in order: the
	// provisioned runtime, each override command, then the PATH fallbacks;
	// the first one to become ready within the startup timeout is kept.
	//
	// Cancelling ctx aborts the start without trying further candidates.
	//
	// Returns nil if the server is already ready. Returns the original error
	// if a previous Start failed, and ErrClosed after Close. When every
	// candidate failed the error is a *StartError.
	Start(ctx context.Context) error

	// Endpoint returns where the ready engine accepts connections.
	// Returns ErrNotReady unless Start succeeded and Close was not called.
	Endpoint() (Endpoint, error)

	// Output returns the most recent output lines of the running engine,
	// or of the last failed candidate.
	Output() []string

	// State returns the current lifecycle state.
	State() State

	// ID returns a unique identifier for this server. It also names the
	// server's working directory.
	ID() string

	// Close stops the engine, deletes the working directory and releases
	// the port. Only the first call does any work; later calls return nil.
	// The error reports an engine that could not be stopped. Failures to
	// delete files are logged, not returned.
	Close() error
}

// Endpoint describes a ready engine.
// ConnectionString renders postgres://host:port/database?params and DSN
// adds the configured user and password.
type Endpoint = core.Endpoint

// State is the lifecycle state of a Server.
type State = core.State

// Lifecycle states. Closed is terminal.
const (
	StateNotStarted = core.StateNotStarted
	StateStarting   = core.StateStarting
	StateReady      = core.StateReady
	StateFailed     = core.StateFailed
	StateClosed     = core.StateClosed
)
