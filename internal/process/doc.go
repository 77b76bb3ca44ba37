// Package process launches and stops the engine helper child.
//
// Start runs a command with stdout and stderr joined onto one pipe whose read
// end the caller consumes. A single goroutine calls cmd.Wait and closes the
// Exited channel, so any number of goroutines can observe the exit. Stop
// sends a termination request, escalates to a kill after a grace period and
// waits a bounded time for the exit to be reaped. WaitReady and TCPCheck
// poll a port until the child accepts connections.
package process
