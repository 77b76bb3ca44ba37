package readiness

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Signal is the classification of one output line.
type Signal int

const (
	// SignalNone marks a diagnostic line.
	SignalNone Signal = iota
	// SignalReady marks an {"event":"READY"} line.
	SignalReady
	// SignalError marks an {"event":"ERROR"} line.
	SignalError
)

// String returns the signal name.
func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalReady:
		return "ready"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}

// Event holds the fields of a structured line the supervisor reports on.
type Event struct {
	Signal  Signal
	Reason  string
	Message string
	Port    int64
	PID     int64
}

// Classify inspects one output line. Only lines that, once trimmed, start
// with '{', end with '}' and are valid JSON are considered. The "event" key
// and its READY/ERROR value are matched case-insensitively.
func Classify(line string) Event {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return Event{}
	}
	if !gjson.Valid(trimmed) {
		return Event{}
	}

	var ev Event
	gjson.Parse(trimmed).ForEach(func(key, value gjson.Result) bool {
		switch strings.ToLower(key.String()) {
		case "event":
			switch strings.ToUpper(value.String()) {
			case "READY":
				ev.Signal = SignalReady
			case "ERROR":
				ev.Signal = SignalError
			}
		case "reason":
			ev.Reason = value.String()
		case "message":
			ev.Message = value.String()
		case "port":
			ev.Port = value.Int()
		case "pid":
			ev.PID = value.Int()
		}
		return true
	})
	if ev.Signal == SignalNone {
		return Event{}
	}
	return ev
}
