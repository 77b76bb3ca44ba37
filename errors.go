package pglitenv

import (
	"github.com/giantswarm/pglitenv/internal/command"
	"github.com/giantswarm/pglitenv/internal/core"
	"github.com/giantswarm/pglitenv/internal/provision"
)

// Sentinel errors for error inspection with errors.Is.
// These are immutable constants safe for use in wrapped error chain comparison.
const (
	// ErrConfiguration is returned by Start for configuration problems found
	// before anything is spawned, such as an override command with an
	// unterminated quote or a missing entry script.
	ErrConfiguration = core.ErrConfiguration

	// ErrProvisioning is returned by Start when the runtime could not be
	// downloaded, verified or extracted. It is never retried.
	ErrProvisioning = core.ErrProvisioning

	// ErrSpawn marks a command candidate that could not be launched or
	// exited before it became ready.
	ErrSpawn = core.ErrSpawn

	// ErrReadinessTimeout marks a command candidate that did not become
	// ready within the startup timeout.
	ErrReadinessTimeout = core.ErrReadinessTimeout

	// ErrOutputRead marks a command candidate whose output could not be read.
	ErrOutputRead = core.ErrOutputRead

	// ErrEngineError marks a command candidate that reported an ERROR event.
	ErrEngineError = core.ErrEngineError

	// ErrClosed is returned by Start after Close, including a Start that
	// was interrupted by Close.
	ErrClosed = core.ErrClosed

	// ErrNotReady is returned by Server.Endpoint before the engine is ready.
	ErrNotReady = core.ErrNotReady

	// ErrChecksumMismatch is wrapped by ErrProvisioning when a downloaded
	// runtime does not match the expected digest.
	ErrChecksumMismatch = provision.ErrChecksumMismatch

	// ErrUnsafeArchiveEntry is wrapped by ErrProvisioning when a runtime
	// archive entry would be written outside the target directory.
	ErrUnsafeArchiveEntry = provision.ErrUnsafeArchiveEntry

	// ErrUnterminatedQuote is wrapped by ErrConfiguration when the command
	// override has an unterminated quote.
	ErrUnterminatedQuote = command.ErrUnterminatedQuote
)

// StartError is returned by Start when no command candidate became ready.
// Use errors.As to inspect every attempt; errors.Is matches the sentinel of
// any attempt.
type StartError = core.StartError

// Attempt records one failed command candidate of a StartError.
type Attempt = core.Attempt
