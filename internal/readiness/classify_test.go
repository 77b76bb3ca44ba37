package readiness

import "testing"

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		line string
		want Signal
	}{
		"ready event":            {line: `{"event":"READY","host":"127.0.0.1","port":5432,"pid":42}`, want: SignalReady},
		"error event":            {line: `{"event":"ERROR","reason":"import_error","message":"no module"}`, want: SignalError},
		"lower case value":       {line: `{"event":"ready"}`, want: SignalReady},
		"upper case key":         {line: `{"EVENT":"Error"}`, want: SignalError},
		"surrounding whitespace": {line: "   {\"event\": \"READY\"}  \r", want: SignalReady},
		"plain text":             {line: "PGlite instance ready", want: SignalNone},
		"text mentioning ready":  {line: `server said "event" "READY"`, want: SignalNone},
		"object without event":   {line: `{"level":"info","msg":"READY"}`, want: SignalNone},
		"unknown event":          {line: `{"event":"STARTING"}`, want: SignalNone},
		"invalid json":           {line: `{"event":"READY"`, want: SignalNone},
		"broken inner json":      {line: `{"event": READY}`, want: SignalNone},
		"array":                  {line: `[{"event":"READY"}]`, want: SignalNone},
		"nested event ignored":   {line: `{"payload":{"event":"READY"}}`, want: SignalNone},
		"numeric event":          {line: `{"event":1}`, want: SignalNone},
		"empty":                  {line: "", want: SignalNone},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if got := Classify(tc.line).Signal; got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestClassify_CapturesFields(t *testing.T) {
	t.Parallel()

	ev := Classify(`{"event":"ERROR","reason":"start_failed","message":"address in use","port":6543,"pid":99}`)
	if ev.Signal != SignalError {
		t.Fatalf("Signal = %v, want error", ev.Signal)
	}
	if ev.Reason != "start_failed" {
		t.Errorf("Reason = %q", ev.Reason)
	}
	if ev.Message != "address in use" {
		t.Errorf("Message = %q", ev.Message)
	}
	if ev.Port != 6543 || ev.PID != 99 {
		t.Errorf("Port, PID = %d, %d; want 6543, 99", ev.Port, ev.PID)
	}
}

func TestSignalAndOutcomeStrings(t *testing.T) {
	t.Parallel()

	for s, want := range map[Signal]string{SignalNone: "none", SignalReady: "ready", SignalError: "error", Signal(9): "unknown"} {
		if got := s.String(); got != want {
			t.Errorf("Signal(%d).String() = %q, want %q", int(s), got, want)
		}
	}
	for o, want := range map[Outcome]string{OutcomeReady: "ready", OutcomeFailed: "failed", OutcomeIOError: "io-error", Outcome(0): "pending"} {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
