// Package outputbuf keeps the most recent lines written by a child process so
// they can be attached to startup and shutdown diagnostics.
package outputbuf
