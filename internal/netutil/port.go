package netutil

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrPortInUse is returned by Reserve for a port already held in the registry.
const ErrPortInUse = sentinel.Error("port already reserved in this process")

// maxPortRetries is the maximum number of attempts to find a port not already
// in the registry.
const maxPortRetries = 20

// PortRegistry tracks the ports held by supervisors of this process.
type PortRegistry struct {
	mu    sync.Mutex
	ports map[int]struct{}
	log   *slog.Logger
}

// NewPortRegistry creates a new PortRegistry ready for use.
// If logger is nil, slog.Default() is used as a fallback.
func NewPortRegistry(logger *slog.Logger) *PortRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PortRegistry{
		ports: make(map[int]struct{}),
		log:   logger,
	}
}

// reserve registers port. It returns false if the port is already taken.
func (r *PortRegistry) reserve(port int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ports[port]; ok {
		return false
	}
	r.ports[port] = struct{}{}
	return true
}

// Reserve records an explicitly configured port. It fails with ErrPortInUse
// if another holder in this process has it.
func (r *PortRegistry) Reserve(port int) error {
	if !r.reserve(port) {
		return fmt.Errorf("%w: %d", ErrPortInUse, port)
	}
	return nil
}

// Release removes a port from the registry, allowing it to be reused.
func (r *PortRegistry) Release(port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, port)
}

// Len returns the number of ports currently held.
func (r *PortRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ports)
}

// Allocate binds an ephemeral port on host, registers it and closes the
// listener again so the child can bind it. Callers must Release the port
// once the child no longer uses it.
func (r *PortRegistry) Allocate(host string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("resolve tcp address: %w", err)
	}

	for range maxPortRetries {
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return 0, fmt.Errorf("listen on %s: %w", addr, err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		if !r.reserve(port) {
			r.log.Debug("port already in registry, retrying", "port", port)
			_ = l.Close()
			continue
		}
		// The port stays registered after the close, so nobody else in
		// this process is handed it while the child starts up.
		if closeErr := l.Close(); closeErr != nil {
			r.log.Warn("close listener after port allocation", "port", port, "error", closeErr)
		}
		return port, nil
	}
	return 0, fmt.Errorf("allocate unique port on %s: exhausted %d attempts", host, maxPortRetries)
}
