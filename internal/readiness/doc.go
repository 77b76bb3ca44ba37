// Package readiness implements the handshake between the supervisor and the
// engine helper.
//
// The helper writes newline-delimited text on its combined stdout/stderr.
// A line that is a JSON object with an "event" property of READY or ERROR is
// a terminal signal; every other line is free-form diagnostics. Watch feeds
// each line to a sink and resolves a single-fire Gate on the first terminal
// signal, or with an I/O outcome when the stream ends first.
package readiness
