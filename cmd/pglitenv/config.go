package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/giantswarm/pglitenv"
	"github.com/giantswarm/pglitenv/internal/sentinel"
)

// ErrConfigValidation marks a config file that parsed but is not usable.
const ErrConfigValidation = sentinel.Error("invalid config")

// duration decodes TOML strings such as "30s" or "2m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// fileConfig is the pglitenv.toml schema. Zero values keep the library
// defaults.
type fileConfig struct {
	// Enabled defaults to true; false makes run exit without starting.
	Enabled *bool `toml:"enabled"`

	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	StartupTimeout duration `toml:"startup_timeout"`
	StopTimeout    duration `toml:"stop_timeout"`

	Command       string            `toml:"command"`
	PathPrefix    string            `toml:"path_prefix"`
	PathFallbacks *[]string         `toml:"path_fallbacks"`
	Env           map[string]string `toml:"env"`

	EntryScript string `toml:"entry_script"`
	BundleDir   string `toml:"bundle_dir"`
	BaseDir     string `toml:"base_dir"`

	Database string  `toml:"database"`
	Params   *string `toml:"params"`
	Username string  `toml:"username"`
	Password string  `toml:"password"`
	LogLevel string  `toml:"log_level"`

	OutputLines   int      `toml:"output_lines"`
	EndpointProbe duration `toml:"endpoint_probe"`

	Runtime runtimeConfig `toml:"runtime"`
}

// runtimeConfig is the [runtime] table.
type runtimeConfig struct {
	ArchiveName    string `toml:"archive_name"`
	DownloadURL    string `toml:"download_url"`
	ExpectedDigest string `toml:"expected_digest"`
	CacheDir       string `toml:"cache_dir"`
}

// loadConfig reads path. An empty path yields the zero config.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data, path)
}

// parseConfig decodes data with strict unknown-field rejection; source names
// the file in errors.
func parseConfig(data []byte, source string) (*fileConfig, error) {
	var cfg fileConfig
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s: unrecognized keys:\n%s", ErrConfigValidation, source, strict.String())
		}
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigValidation, source, err)
	}
	return &cfg, nil
}

// validate reports values the options would panic on.
func (c *fileConfig) validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535, got %d", c.Port))
	}
	if c.StartupTimeout < 0 {
		errs = append(errs, errors.New("startup_timeout must not be negative"))
	}
	if c.StopTimeout < 0 {
		errs = append(errs, errors.New("stop_timeout must not be negative"))
	}
	if c.OutputLines < 0 {
		errs = append(errs, errors.New("output_lines must not be negative"))
	}
	if c.EndpointProbe < 0 {
		errs = append(errs, errors.New("endpoint_probe must not be negative"))
	}
	if d := c.Runtime.ExpectedDigest; d != "" {
		if b, err := hex.DecodeString(d); err != nil || len(b) != 32 {
			errs = append(errs, fmt.Errorf("runtime.expected_digest must be 64 hex characters, got %q", d))
		}
	}
	switch strings.ToUpper(c.LogLevel) {
	case "", "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	for k := range c.Env {
		if k == "" || strings.Contains(k, "=") {
			errs = append(errs, fmt.Errorf("invalid env name %q", k))
		}
	}
	return errors.Join(errs...)
}

// enabled reports whether run should start an engine.
func (c *fileConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// expandPaths replaces a leading ~ in every path field.
func (c *fileConfig) expandPaths() error {
	for _, p := range []*string{&c.EntryScript, &c.BundleDir, &c.BaseDir, &c.PathPrefix, &c.Runtime.CacheDir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// options converts the config into server options.
func (c *fileConfig) options() []pglitenv.Option {
	var opts []pglitenv.Option
	add := func(ok bool, opt func() pglitenv.Option) {
		if ok {
			opts = append(opts, opt())
		}
	}

	add(c.Host != "", func() pglitenv.Option { return pglitenv.WithHost(c.Host) })
	add(c.Port != 0, func() pglitenv.Option { return pglitenv.WithPort(c.Port) })
	add(c.StartupTimeout > 0, func() pglitenv.Option { return pglitenv.WithStartupTimeout(time.Duration(c.StartupTimeout)) })
	add(c.StopTimeout > 0, func() pglitenv.Option { return pglitenv.WithStopTimeout(time.Duration(c.StopTimeout)) })
	add(c.Command != "", func() pglitenv.Option { return pglitenv.WithCommandOverride(c.Command) })
	add(c.PathPrefix != "", func() pglitenv.Option { return pglitenv.WithPathPrefix(c.PathPrefix) })
	add(c.PathFallbacks != nil, func() pglitenv.Option { return pglitenv.WithPathFallbacks(*c.PathFallbacks...) })
	for k, v := range c.Env {
		opts = append(opts, pglitenv.WithEnv(k, v))
	}
	add(c.EntryScript != "", func() pglitenv.Option { return pglitenv.WithEntryScript(c.EntryScript) })
	add(c.BundleDir != "", func() pglitenv.Option { return pglitenv.WithBundle(os.DirFS(c.BundleDir)) })
	add(c.BaseDir != "", func() pglitenv.Option { return pglitenv.WithBaseDir(c.BaseDir) })
	add(c.Database != "", func() pglitenv.Option { return pglitenv.WithDatabase(c.Database) })
	add(c.Params != nil, func() pglitenv.Option { return pglitenv.WithParams(*c.Params) })
	add(c.Username != "" || c.Password != "", func() pglitenv.Option {
		user := c.Username
		if user == "" {
			user = pglitenv.DefaultUsername
		}
		return pglitenv.WithCredentials(user, c.Password)
	})
	add(c.LogLevel != "", func() pglitenv.Option { return pglitenv.WithLogLevel(c.LogLevel) })
	add(c.OutputLines > 0, func() pglitenv.Option { return pglitenv.WithOutputLines(c.OutputLines) })
	add(c.EndpointProbe > 0, func() pglitenv.Option { return pglitenv.WithEndpointProbe(time.Duration(c.EndpointProbe)) })
	add(c.Runtime.ArchiveName != "", func() pglitenv.Option { return pglitenv.WithArchiveName(c.Runtime.ArchiveName) })
	add(c.Runtime.DownloadURL != "", func() pglitenv.Option { return pglitenv.WithDownloadURL(c.Runtime.DownloadURL) })
	add(c.Runtime.ExpectedDigest != "", func() pglitenv.Option { return pglitenv.WithExpectedDigest(c.Runtime.ExpectedDigest) })
	add(c.Runtime.CacheDir != "", func() pglitenv.Option { return pglitenv.WithCacheDir(c.Runtime.CacheDir) })
	return opts
}
