//go:build windows

package process

import "os"

// terminate kills the process: Windows has no SIGTERM equivalent that
// os.Process can deliver.
func terminate(p *os.Process) error {
	return p.Kill()
}
