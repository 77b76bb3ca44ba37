package pglitenv

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/giantswarm/pglitenv/internal/core"
	"github.com/giantswarm/pglitenv/internal/netutil"
)

// defaultPorts is shared by every Server of this process, so two servers
// never hand out the same automatically allocated port.
var defaultPorts = sync.OnceValue(func() *netutil.PortRegistry {
	return netutil.NewPortRegistry(core.Logger())
})

// Compile-time interface satisfaction check.
var _ Server = (*serverWrapper)(nil)

// serverWrapper wraps core.Supervisor to implement the Server interface.
//
// The core.Supervisor is stored as a named (unexported) field rather than
// embedded to prevent callers from using type assertions to reach methods
// that are not part of the public Server interface.
type serverWrapper struct {
	sup *core.Supervisor
}

func (w *serverWrapper) Start(ctx context.Context) error {
	return w.sup.Start(ctx)
}

func (w *serverWrapper) Endpoint() (Endpoint, error) {
	return w.sup.Endpoint()
}

func (w *serverWrapper) Output() []string {
	return w.sup.Output()
}

func (w *serverWrapper) State() State {
	return w.sup.State()
}

func (w *serverWrapper) ID() string {
	return w.sup.ID()
}

func (w *serverWrapper) Close() error {
	return w.sup.Close()
}

// defaultConfig returns a config populated with all default values. Both
// New and test helpers use this to avoid duplicating the default field
// assignments.
func defaultConfig() config {
	return config{core.Config{
		Host:              DefaultHost,
		StartupTimeout:    DefaultStartupTimeout,
		StopTimeout:       DefaultStopTimeout,
		ReaderWaitTimeout: core.DefaultReaderWaitTimeout,
		EntryScript:       DefaultEntryScript,
		BaseDir:           filepath.Join(os.TempDir(), DefaultBaseDirName),
		Database:          DefaultDatabase,
		Params:            DefaultParams,
		Username:          DefaultUsername,
		LogLevel:          DefaultLogLevel,
		OutputLines:       DefaultOutputLines,
		ProbeInterval:     DefaultProbeInterval,
	}}
}

// New returns a Server configured by opts. It performs no I/O; the working
// directory, the port and the engine process are only created by Start.
//
// Panics if any option receives an invalid value. See individual With*
// functions for constraints.
//
//nolint:ireturn // Returns Server interface by design for testability (mockable).
func New(opts ...Option) Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Ports = defaultPorts()
	return &serverWrapper{sup: core.New(cfg.toCoreConfig())}
}
