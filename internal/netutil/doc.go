// Package netutil allocates TCP ports for engine children.
//
// A PortRegistry hands out ephemeral ports and records explicitly configured
// ones for the lifetime of the supervisor that uses them. The kernel offers
// the same free port to two callers whenever the first one has already closed
// its probe listener, so without the registry two supervisors started
// concurrently in one test binary could pick the same port.
package netutil
