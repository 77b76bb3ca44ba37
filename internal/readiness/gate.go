package readiness

import (
	"sync"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrStreamClosed is recorded when the output stream ends before any terminal
// signal was seen.
const ErrStreamClosed = sentinel.Error("output stream closed before readiness signal")

// Outcome is the terminal state recorded by a Gate.
type Outcome int

const (
	// OutcomeReady means the helper printed a READY event.
	OutcomeReady Outcome = iota + 1
	// OutcomeFailed means the helper printed an ERROR event.
	OutcomeFailed
	// OutcomeIOError means the stream ended or could not be read.
	OutcomeIOError
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeFailed:
		return "failed"
	case OutcomeIOError:
		return "io-error"
	default:
		return "pending"
	}
}

// Result describes how a Gate was resolved.
type Result struct {
	Outcome Outcome
	Event   Event  // populated for OutcomeReady and OutcomeFailed
	Line    string // the raw line that resolved the gate, if any
	Err     error  // populated for OutcomeIOError
}

// Gate is a single-fire signal. The first Fire call records its Result and
// closes Done; later calls are ignored. The zero value is not usable; create
// gates with NewGate.
type Gate struct {
	once   sync.Once
	done   chan struct{}
	result Result
}

// NewGate returns an unresolved Gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Fire resolves the gate with r. It reports whether this call resolved it.
func (g *Gate) Fire(r Result) bool {
	fired := false
	g.once.Do(func() {
		g.result = r
		fired = true
		close(g.done)
	})
	return fired
}

// Done returns a channel that is closed once the gate has resolved.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Result returns the recorded result and whether the gate has resolved.
// The result is only read after done is closed, which orders it after the
// write in Fire.
func (g *Gate) Result() (Result, bool) {
	select {
	case <-g.done:
		return g.result, true
	default:
		return Result{}, false
	}
}
