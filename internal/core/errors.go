package core

import (
	"fmt"
	"strings"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

const (
	// ErrConfiguration marks invalid configuration detected before any
	// process is spawned, such as an override command with an unterminated
	// quote or a missing entry script. It is never retried.
	ErrConfiguration = sentinel.Error("invalid configuration")

	// ErrProvisioning marks a failure to materialize the runtime: download,
	// checksum or archive errors. It has no fallback.
	ErrProvisioning = sentinel.Error("runtime provisioning failed")

	// ErrSpawn marks a candidate that could not be launched or exited before
	// it became ready.
	ErrSpawn = sentinel.Error("engine process failed")

	// ErrReadinessTimeout marks a candidate that did not become ready within
	// the startup timeout.
	ErrReadinessTimeout = sentinel.Error("timed out waiting for engine readiness")

	// ErrOutputRead marks a candidate whose output could not be read.
	ErrOutputRead = sentinel.Error("reading engine output failed")

	// ErrEngineError marks a candidate that reported an ERROR event.
	ErrEngineError = sentinel.Error("engine reported an error")

	// ErrClosed is returned when the supervisor was closed, including a
	// Start that was interrupted by Close.
	ErrClosed = sentinel.Error("supervisor closed")

	// ErrNotReady is returned by Endpoint before the engine is ready.
	ErrNotReady = sentinel.Error("engine not ready")
)

// maxReportedLines bounds the output lines quoted per attempt in
// StartError.Error. Attempt.Output keeps the full captured tail.
const maxReportedLines = 20

// Attempt records one failed command candidate.
type Attempt struct {
	Command string   // the candidate argv, space separated
	Err     error    // why it failed; wraps one of the Err* sentinels
	Output  []string // captured output tail, oldest first
}

// StartError is returned by Start when no candidate became ready. It wraps
// every attempt's error, so errors.Is matches any of them.
type StartError struct {
	Attempts []Attempt
}

// Error lists every attempted command with its failure and output tail.
func (e *StartError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pglitenv: engine did not become ready after %d attempt(s)", len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s -> %v", a.Command, a.Err)
		lines := a.Output
		if len(lines) > maxReportedLines {
			lines = lines[len(lines)-maxReportedLines:]
		}
		for _, line := range lines {
			b.WriteString("\n    | ")
			b.WriteString(line)
		}
	}
	return b.String()
}

// Unwrap returns the per-attempt errors.
func (e *StartError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Output returns the output tail of the last attempt.
func (e *StartError) Output() []string {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Output
}

// windowsCommandNotFound is the exit code cmd.exe uses for an unknown command.
const windowsCommandNotFound = 9009

// exitHint returns a suffix explaining well-known exit codes on goos.
func exitHint(goos string, code int) string {
	if goos == "windows" && code == windowsCommandNotFound {
		return " (Windows: node command not found)"
	}
	return ""
}
