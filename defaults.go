package pglitenv

import (
	"github.com/giantswarm/pglitenv/internal/core"
	"github.com/giantswarm/pglitenv/internal/outputbuf"
	"github.com/giantswarm/pglitenv/internal/provision"
)

// Default configuration values for New.
// These constants are exported so callers can reference the defaults
// when building custom configurations relative to them (e.g.,
// 2 * DefaultStartupTimeout).
const (
	// DefaultHost is the address the engine binds to.
	DefaultHost = core.DefaultHost

	// DefaultStartupTimeout bounds the wait for one command candidate's
	// readiness signal. A slow first start of the WASM engine typically
	// takes a few seconds.
	DefaultStartupTimeout = core.DefaultStartupTimeout

	// DefaultStopTimeout is the grace period between the termination
	// request and the forced kill during Close.
	DefaultStopTimeout = core.DefaultStopTimeout

	// DefaultEntryScript is the helper script started by every candidate,
	// relative to the working directory.
	DefaultEntryScript = core.DefaultEntryScript

	// DefaultDatabase and DefaultParams form the path and query of the
	// connection string.
	DefaultDatabase = core.DefaultDatabase
	DefaultParams   = core.DefaultParams

	// DefaultUsername is the user connection strings authenticate as.
	DefaultUsername = core.DefaultUsername

	// DefaultLogLevel is the engine verbosity passed to the helper.
	DefaultLogLevel = core.DefaultLogLevel

	// DefaultOutputLines is the number of recent output lines kept for
	// diagnostics.
	DefaultOutputLines = outputbuf.DefaultCapacity

	// DefaultProbeInterval is the poll interval of the endpoint probe
	// enabled with WithEndpointProbe.
	DefaultProbeInterval = core.DefaultProbeInterval

	// DefaultArchiveName is the runtime archive name looked up in the bundle.
	DefaultArchiveName = provision.DefaultArchiveName

	// DefaultBaseDirName is the directory name under the system temp
	// directory where working directories are created. The full path is
	// computed as filepath.Join(os.TempDir(), DefaultBaseDirName).
	DefaultBaseDirName = "pglitenv"

	// DefaultCacheDirName is the directory name under the system temp
	// directory where downloaded runtimes are cached.
	DefaultCacheDirName = provision.DefaultCacheDirName
)
