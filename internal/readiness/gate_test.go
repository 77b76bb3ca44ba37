package readiness

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestGate_FiresOnce(t *testing.T) {
	t.Parallel()

	g := NewGate()
	if _, ok := g.Result(); ok {
		t.Fatal("new gate must be unresolved")
	}

	if !g.Fire(Result{Outcome: OutcomeReady, Line: "first"}) {
		t.Fatal("first Fire should resolve the gate")
	}
	if g.Fire(Result{Outcome: OutcomeIOError, Err: ErrStreamClosed}) {
		t.Fatal("second Fire must be ignored")
	}

	select {
	case <-g.Done():
	default:
		t.Fatal("Done should be closed after Fire")
	}

	r, ok := g.Result()
	if !ok {
		t.Fatal("Result should report resolved")
	}
	if r.Outcome != OutcomeReady || r.Line != "first" {
		t.Errorf("Result = %+v, want the first fired result", r)
	}
}

func TestGate_ConcurrentFire(t *testing.T) {
	t.Parallel()

	g := NewGate()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Go(func() {
			outcome := OutcomeReady
			if i%2 == 1 {
				outcome = OutcomeFailed
			}
			if g.Fire(Result{Outcome: outcome}) {
				winners.Add(1)
			}
		})
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("Fire reported %d winners, want exactly 1", got)
	}
}
