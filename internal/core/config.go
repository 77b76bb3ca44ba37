package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"time"

	"github.com/giantswarm/pglitenv/internal/command"
	"github.com/giantswarm/pglitenv/internal/netutil"
)

// Defaults applied by the public package when an option is not given.
const (
	DefaultHost              = "127.0.0.1"
	DefaultStartupTimeout    = 30 * time.Second
	DefaultStopTimeout       = 5 * time.Second
	DefaultReaderWaitTimeout = 2 * time.Second
	DefaultProbeInterval     = 50 * time.Millisecond
	DefaultEntryScript       = "start.mjs"
	DefaultDatabase          = "postgres"
	DefaultParams            = "sslmode=disable"
	DefaultUsername          = "postgres"
	DefaultLogLevel          = "WARNING"
)

// Config holds the settings of one Supervisor. It is immutable after New.
type Config struct {
	Host string // bind host handed to the engine
	Port int    // 0 allocates a free port

	// StartupTimeout bounds the wait for one candidate's readiness signal.
	StartupTimeout time.Duration
	// StopTimeout is the grace period between the termination request and
	// the kill during Close.
	StopTimeout time.Duration
	// ReaderWaitTimeout bounds how long Close and failed attempts wait for
	// the output reader to finish before its pipe is closed under it.
	ReaderWaitTimeout time.Duration

	// CommandOverride is a ';'-separated list of commands tried after the
	// provisioned runtime.
	CommandOverride string
	// PathFallbacks are executable names resolved via PATH, tried last.
	// nil selects the platform defaults; an empty non-nil slice disables them.
	PathFallbacks []string
	// PathPrefix is prepended to the child's PATH.
	PathPrefix string
	// Env holds extra variables for the child. PGLITE_* keys set here are
	// overridden by the supervisor's own values.
	Env map[string]string

	// EntryScript is the helper script appended to every candidate,
	// relative to the working directory unless absolute.
	EntryScript string
	// Bundle holds the helper files copied into the working directory and,
	// optionally, the runtime archive.
	Bundle fs.FS
	// ArchiveName is the runtime archive inside Bundle.
	ArchiveName string

	DownloadURLTemplate string // runtime URL with {os} and {arch} placeholders
	ExpectedDigest      string // hex SHA-256 of the downloaded archive
	CacheDir            string // download cache; empty uses the system temp dir

	// BaseDir is the parent of per-supervisor working directories.
	BaseDir string

	Database string
	Params   string
	Username string
	Password string
	LogLevel string // engine verbosity: DEBUG, INFO, WARNING or ERROR

	// OutputLines is the capacity of each attempt's output buffer.
	OutputLines int

	// EndpointProbe additionally waits for the port to accept TCP
	// connections after the readiness signal.
	EndpointProbe bool
	ProbeInterval time.Duration

	// Ports coordinates port usage between supervisors of this process.
	Ports *netutil.PortRegistry
	// Logger overrides the package logger for this supervisor.
	Logger *slog.Logger
}

// Validate checks all Config invariants and returns an error describing
// every violation found.
//
// Validate does not parse CommandOverride; a malformed override is reported
// by Start as ErrConfiguration before anything is spawned.
func (c Config) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535, got %d", c.Port))
	}
	if c.StartupTimeout <= 0 {
		errs = append(errs, fmt.Errorf("startup timeout must be greater than 0, got %s", c.StartupTimeout))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be greater than 0, got %s", c.StopTimeout))
	}
	if c.ReaderWaitTimeout <= 0 {
		errs = append(errs, fmt.Errorf("reader wait timeout must be greater than 0, got %s", c.ReaderWaitTimeout))
	}
	if c.EntryScript == "" {
		errs = append(errs, errors.New("entry script must not be empty"))
	}
	if c.BaseDir == "" {
		errs = append(errs, errors.New("base directory must not be empty"))
	}
	if c.OutputLines <= 0 {
		errs = append(errs, fmt.Errorf("output lines must be greater than 0, got %d", c.OutputLines))
	}
	if c.EndpointProbe && c.ProbeInterval <= 0 {
		errs = append(errs, fmt.Errorf("probe interval must be greater than 0, got %s", c.ProbeInterval))
	}
	if !validLogLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if c.Ports == nil {
		errs = append(errs, errors.New("port registry must not be nil"))
	}

	return errors.Join(errs...)
}

// pathNames returns the PATH fallback names for goos.
func (c Config) pathNames(goos string) []string {
	if c.PathFallbacks == nil {
		return command.DefaultPathNames(goos)
	}
	return c.PathFallbacks
}

// probeHost returns the address to dial for the endpoint probe: wildcard
// bind addresses are probed on loopback.
func (c Config) probeHost() string {
	if ip := net.ParseIP(c.Host); ip != nil && ip.IsUnspecified() {
		if ip.To4() != nil {
			return "127.0.0.1"
		}
		return "::1"
	}
	return c.Host
}
