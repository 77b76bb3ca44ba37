package pglitenv

import (
	"io/fs"
	"log/slog"
	"time"
)

// ConfigSnapshot holds a copy of config fields for test assertions.
// Exported only via export_test.go so that the _test package can verify
// option closures actually mutate the config without accessing internals.
type ConfigSnapshot struct {
	Host                string
	Port                int
	StartupTimeout      time.Duration
	StopTimeout         time.Duration
	CommandOverride     string
	PathFallbacks       []string
	PathPrefix          string
	Env                 map[string]string
	EntryScript         string
	Bundle              fs.FS
	ArchiveName         string
	DownloadURLTemplate string
	ExpectedDigest      string
	CacheDir            string
	BaseDir             string
	Database            string
	Params              string
	Username            string
	Password            string
	LogLevel            string
	OutputLines         int
	EndpointProbe       bool
	ProbeInterval       time.Duration
	Logger              *slog.Logger
}

// ApplyOptionsForTesting creates a default config, applies the given
// options, and returns a ConfigSnapshot of the result.
func ApplyOptionsForTesting(opts ...Option) ConfigSnapshot {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return ConfigSnapshot{
		Host:                cfg.Host,
		Port:                cfg.Port,
		StartupTimeout:      cfg.StartupTimeout,
		StopTimeout:         cfg.StopTimeout,
		CommandOverride:     cfg.CommandOverride,
		PathFallbacks:       cfg.PathFallbacks,
		PathPrefix:          cfg.PathPrefix,
		Env:                 cfg.Env,
		EntryScript:         cfg.EntryScript,
		Bundle:              cfg.Bundle,
		ArchiveName:         cfg.ArchiveName,
		DownloadURLTemplate: cfg.DownloadURLTemplate,
		ExpectedDigest:      cfg.ExpectedDigest,
		CacheDir:            cfg.CacheDir,
		BaseDir:             cfg.BaseDir,
		Database:            cfg.Database,
		Params:              cfg.Params,
		Username:            cfg.Username,
		Password:            cfg.Password,
		LogLevel:            cfg.LogLevel,
		OutputLines:         cfg.OutputLines,
		EndpointProbe:       cfg.EndpointProbe,
		ProbeInterval:       cfg.ProbeInterval,
		Logger:              cfg.Logger,
	}
}
