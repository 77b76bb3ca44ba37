// Package core implements the engine supervisor behind the public pglitenv API.
//
// A Supervisor owns one engine child at a time. Start picks a port, prepares
// a working directory, provisions the runtime, and then walks the ordered
// command candidates: each candidate is spawned, its combined output is
// captured and classified by a dedicated reader goroutine, and the first one
// to announce readiness within the startup timeout is kept. Every failed
// candidate is killed before the next one is tried, and its diagnostics are
// aggregated into a StartError.
//
// Close may be called from any state and from any goroutine, including while
// Start is running. It terminates the child, joins the reader with a bounded
// wait, deletes the working directory and releases the port, exactly once.
package core
