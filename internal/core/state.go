package core

import "fmt"

// State is the lifecycle state of a Supervisor.
type State int32

const (
	// StateNotStarted is the zero value; Start has not been called.
	StateNotStarted State = iota
	// StateStarting means Start is trying command candidates.
	StateStarting
	// StateReady means a child announced readiness and is running.
	StateReady
	// StateFailed means every candidate failed.
	StateFailed
	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
