package pglitenv

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"strings"
	"time"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("pglitenv: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("pglitenv: %s must not be empty", name))
	}
}

// Option configures a Server during construction via New.
// Each With* function returns an Option that sets a specific field.
//
// Several With* functions panic on invalid input (empty paths, non-positive
// durations, out of range ports). These panics are intentional: option
// values are typically compile-time constants or package-level variables,
// so an invalid value indicates a programmer error rather than a runtime
// condition. Problems that can only be detected at runtime, like a
// malformed override command, are returned by Start as ErrConfiguration.
type Option func(*config)

// WithHost sets the address the engine binds to. The endpoint reports the
// same host.
//
// Default: "127.0.0.1".
//
// Panics if host is empty.
func WithHost(host string) Option {
	requireNonEmpty("host", host)
	return func(c *config) {
		c.Host = host
	}
}

// WithPort sets a fixed port. A value of 0 selects a free port when Start
// runs. A fixed port that another server of this process already uses makes
// Start fail with ErrConfiguration.
//
// Default: 0.
//
// Panics if port is outside 0..65535.
func WithPort(port int) Option {
	if port < 0 || port > 65535 {
		panic(fmt.Sprintf("pglitenv: port must be between 0 and 65535, got %d", port))
	}
	return func(c *config) {
		c.Port = port
	}
}

// WithStartupTimeout sets how long one command candidate may take to
// announce readiness. A candidate that times out is killed and the next
// one is tried.
//
// Default: 30 seconds.
//
// Panics if d <= 0.
func WithStartupTimeout(d time.Duration) Option {
	requirePositive("startup timeout", d)
	return func(c *config) {
		c.StartupTimeout = d
	}
}

// WithStopTimeout sets the grace period between the termination request and
// the forced kill during Close.
//
// Default: 5 seconds.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) Option {
	requirePositive("stop timeout", d)
	return func(c *config) {
		c.StopTimeout = d
	}
}

// WithCommandOverride sets ';'-separated commands tried after the
// provisioned runtime and before the PATH fallbacks. Each command is split
// on whitespace; single or double quotes group words, and inside a quoted
// span a backslash escapes the active quote character. The entry script is
// appended to every command.
//
//	pglitenv.WithCommandOverride(`"/opt/node 22/bin/node" --no-warnings; bun`)
//
// Panics if raw is empty.
func WithCommandOverride(raw string) Option {
	requireNonEmpty("command override", raw)
	return func(c *config) {
		c.CommandOverride = raw
	}
}

// WithPathFallbacks sets the executable names resolved via PATH that are
// tried last. Calling it without names disables the PATH fallbacks.
//
// Default: "node", "nodejs" ("node.exe", "node" on Windows).
func WithPathFallbacks(names ...string) Option {
	for _, n := range names {
		requireNonEmpty("PATH fallback name", n)
	}
	names = append([]string{}, names...)
	return func(c *config) {
		c.PathFallbacks = names
	}
}

// WithPathPrefix prepends dir to the PATH of the engine process.
// Panics if dir is empty.
func WithPathPrefix(dir string) Option {
	requireNonEmpty("PATH prefix", dir)
	return func(c *config) {
		c.PathPrefix = dir
	}
}

// WithEnv sets an extra environment variable for the engine process.
// Variables the server sets itself (PGLITE_PORT, PGLITE_HOST,
// PGLITE_USERS_JSON, PGLITE_LOG_LEVEL) cannot be overridden.
// Panics if key is empty or contains '='.
func WithEnv(key, value string) Option {
	requireNonEmpty("environment variable name", key)
	if strings.Contains(key, "=") {
		panic(fmt.Sprintf("pglitenv: environment variable name must not contain '=', got %q", key))
	}
	return func(c *config) {
		env := make(map[string]string, len(c.Env)+1)
		maps.Copy(env, c.Env)
		env[key] = value
		c.Env = env
	}
}

// WithEntryScript sets the helper script started by every command
// candidate. Relative paths are resolved against the working directory,
// which holds a copy of the bundle.
//
// Default: "start.mjs".
//
// Panics if path is empty.
func WithEntryScript(path string) Option {
	requireNonEmpty("entry script", path)
	return func(c *config) {
		c.EntryScript = path
	}
}

// WithBundle sets the files copied into every working directory, typically
// an embed.FS holding the helper script and its modules. If the bundle
// contains the runtime archive (see WithArchiveName) it is extracted
// instead of downloading a runtime.
//
// Panics if fsys is nil.
func WithBundle(fsys fs.FS) Option {
	if fsys == nil {
		panic("pglitenv: bundle must not be nil")
	}
	return func(c *config) {
		c.Bundle = fsys
	}
}

// WithArchiveName sets the name of the runtime archive inside the bundle.
//
// Default: "runtime.zip".
//
// Panics if name is empty.
func WithArchiveName(name string) Option {
	requireNonEmpty("archive name", name)
	return func(c *config) {
		c.ArchiveName = name
	}
}

// WithDownloadURL sets the URL template of the runtime archive. The
// placeholders {os} (darwin, linux, win) and {arch} (x64, arm64) are
// replaced with the current platform. Downloads are cached, keyed by
// platform and URL.
//
// Panics if template is empty.
func WithDownloadURL(template string) Option {
	requireNonEmpty("download URL", template)
	return func(c *config) {
		c.DownloadURLTemplate = template
	}
}

// WithExpectedDigest sets the hex SHA-256 digest a downloaded runtime
// archive must have. Case is ignored. A mismatch fails Start with
// ErrChecksumMismatch and nothing is extracted. Without a digest, downloads
// are used unverified and a warning is logged.
//
// Panics if digest is not 64 hex characters.
func WithExpectedDigest(digest string) Option {
	if b, err := hex.DecodeString(digest); err != nil || len(b) != 32 {
		panic(fmt.Sprintf("pglitenv: expected digest must be 64 hex characters, got %q", digest))
	}
	return func(c *config) {
		c.ExpectedDigest = digest
	}
}

// WithCacheDir sets the directory downloaded runtimes are cached in. The
// cache is shared safely between processes.
//
// Default: filepath.Join(os.TempDir(), DefaultCacheDirName).
//
// Panics if dir is empty.
func WithCacheDir(dir string) Option {
	requireNonEmpty("cache directory", dir)
	return func(c *config) {
		c.CacheDir = dir
	}
}

// WithBaseDir sets the directory working directories are created in.
// Useful in CI environments where multiple projects may run engines
// simultaneously and need isolated scratch space.
//
// Default: filepath.Join(os.TempDir(), DefaultBaseDirName).
//
// Panics if dir is empty.
func WithBaseDir(dir string) Option {
	requireNonEmpty("base directory", dir)
	return func(c *config) {
		c.BaseDir = dir
	}
}

// WithDatabase sets the database name of the connection string.
//
// Default: "postgres".
//
// Panics if name is empty.
func WithDatabase(name string) Option {
	requireNonEmpty("database", name)
	return func(c *config) {
		c.Database = name
	}
}

// WithParams sets the raw query string of the connection string. An empty
// value removes the query.
//
// Default: "sslmode=disable".
func WithParams(params string) Option {
	return func(c *config) {
		c.Params = params
	}
}

// WithCredentials sets the user connection strings authenticate as, and its
// password. The engine always accepts the "postgres" superuser as well.
//
// Default: "postgres" without a password.
//
// Panics if username is empty.
func WithCredentials(username, password string) Option {
	requireNonEmpty("username", username)
	return func(c *config) {
		c.Username = username
		c.Password = password
	}
}

// WithLogLevel sets the engine verbosity: DEBUG, INFO, WARNING or ERROR.
// Engine output is logged at debug level regardless.
//
// Default: "WARNING".
//
// Panics if level is not one of the above (case-insensitive; WARN is
// accepted for WARNING).
func WithLogLevel(level string) Option {
	switch strings.ToUpper(level) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		panic(fmt.Sprintf("pglitenv: unknown log level %q", level))
	}
	return func(c *config) {
		c.LogLevel = level
	}
}

// WithOutputLines sets how many recent output lines are kept for
// diagnostics.
//
// Default: 200.
//
// Panics if n <= 0.
func WithOutputLines(n int) Option {
	requirePositive("output lines", n)
	return func(c *config) {
		c.OutputLines = n
	}
}

// WithEndpointProbe makes Start additionally wait, after the readiness
// signal, until the port accepts TCP connections, polling every interval.
// The wait shares the startup timeout.
//
// Panics if interval <= 0.
func WithEndpointProbe(interval time.Duration) Option {
	requirePositive("probe interval", interval)
	return func(c *config) {
		c.EndpointProbe = true
		c.ProbeInterval = interval
	}
}

// WithLogger sets the logger of this server, overriding the package logger
// set with SetLogger.
//
// Panics if l is nil.
func WithLogger(l *slog.Logger) Option {
	if l == nil {
		panic("pglitenv: logger must not be nil")
	}
	return func(c *config) {
		c.Logger = l
	}
}
