package readiness

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// LineSink receives every line read from the stream.
type LineSink interface {
	Append(line string)
}

// Watch reads r line by line until it ends. Each line is passed to sink and
// logged at debug level, then classified; the first READY or ERROR event
// fires gate. Reading continues after the gate fired so the child never
// blocks on a full pipe. When the stream ends, or a read fails, the gate is
// fired with OutcomeIOError; this is a no-op if a signal already fired it.
//
// Lines have no length limit. A final line without a trailing newline is
// still delivered.
func Watch(r io.Reader, gate *Gate, sink LineSink, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			handleLine(line, gate, sink, log)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			gate.Fire(Result{Outcome: OutcomeIOError, Err: ErrStreamClosed})
			return
		}
		gate.Fire(Result{Outcome: OutcomeIOError, Err: fmt.Errorf("read helper output: %w", err)})
		return
	}
}

func handleLine(line string, gate *Gate, sink LineSink, log *slog.Logger) {
	if sink != nil {
		sink.Append(line)
	}
	log.Debug("helper output", "line", line)

	ev := Classify(line)
	switch ev.Signal {
	case SignalReady:
		gate.Fire(Result{Outcome: OutcomeReady, Event: ev, Line: line})
	case SignalError:
		gate.Fire(Result{Outcome: OutcomeFailed, Event: ev, Line: line})
	case SignalNone:
	}
}
