// Package provision materializes the engine runtime for the current platform.
//
// A Provisioner first looks for a runtime archive shipped in the caller's
// bundle filesystem. Failing that, it expands a download URL template with
// the platform's OS and architecture tokens, fetches the archive into a
// cache directory shared across processes, verifies its SHA-256 digest and
// extracts it into the supervisor's runtime directory. Archive entries that
// would resolve outside their destination are rejected.
//
// Concurrent fetches of the same archive are coalesced in-process with
// singleflight and serialized across processes with a file lock next to the
// cached archive.
package provision
