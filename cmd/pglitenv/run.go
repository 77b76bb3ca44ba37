package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/giantswarm/pglitenv"
)

// overrides collects the flags shared by run and fetch. Only flags the user
// set replace config file values.
type overrides struct {
	host           string
	port           int
	startupTimeout time.Duration
	command        string
	entryScript    string
	bundleDir      string
	baseDir        string
	database       string
	username       string
	password       string
	engineLogLevel string
	probe          time.Duration
	downloadURL    string
	digest         string
	cacheDir       string
}

func (o *overrides) registerRuntime(fs *pflag.FlagSet) {
	fs.StringVar(&o.downloadURL, "download-url", "", "runtime archive URL template with {os} and {arch}")
	fs.StringVar(&o.digest, "digest", "", "expected SHA-256 of the runtime archive")
	fs.StringVar(&o.cacheDir, "cache-dir", "", "runtime download cache directory")
}

func (o *overrides) registerEngine(fs *pflag.FlagSet) {
	fs.StringVar(&o.host, "host", "", "bind host (default 127.0.0.1)")
	fs.IntVar(&o.port, "port", 0, "port; 0 picks a free one")
	fs.DurationVar(&o.startupTimeout, "startup-timeout", 0, "readiness timeout per command candidate (default 30s)")
	fs.StringVar(&o.command, "command", "", "';'-separated override commands")
	fs.StringVar(&o.entryScript, "entry-script", "", "helper script (default start.mjs)")
	fs.StringVar(&o.bundleDir, "bundle-dir", "", "directory copied into the working directory")
	fs.StringVar(&o.baseDir, "base-dir", "", "parent of working directories")
	fs.StringVar(&o.database, "database", "", "database name of the connection string")
	fs.StringVar(&o.username, "user", "", "user the connection string authenticates as")
	fs.StringVar(&o.password, "password", "", "password of --user")
	fs.StringVar(&o.engineLogLevel, "engine-log-level", "", "engine verbosity: DEBUG, INFO, WARNING or ERROR")
	fs.DurationVar(&o.probe, "probe", 0, "also wait for the port to accept TCP connections, polling at this interval")
}

// apply copies every changed flag onto cfg.
func (o *overrides) apply(fs *pflag.FlagSet, cfg *fileConfig) {
	set := map[string]func(){
		"host":             func() { cfg.Host = o.host },
		"port":             func() { cfg.Port = o.port },
		"startup-timeout":  func() { cfg.StartupTimeout = duration(o.startupTimeout) },
		"command":          func() { cfg.Command = o.command },
		"entry-script":     func() { cfg.EntryScript = o.entryScript },
		"bundle-dir":       func() { cfg.BundleDir = o.bundleDir },
		"base-dir":         func() { cfg.BaseDir = o.baseDir },
		"database":         func() { cfg.Database = o.database },
		"user":             func() { cfg.Username = o.username },
		"password":         func() { cfg.Password = o.password },
		"engine-log-level": func() { cfg.LogLevel = o.engineLogLevel },
		"probe":            func() { cfg.EndpointProbe = duration(o.probe) },
		"download-url":     func() { cfg.Runtime.DownloadURL = o.downloadURL },
		"digest":           func() { cfg.Runtime.ExpectedDigest = o.digest },
		"cache-dir":        func() { cfg.Runtime.CacheDir = o.cacheDir },
	}
	fs.Visit(func(f *pflag.Flag) {
		if fn, ok := set[f.Name]; ok {
			fn()
		}
	})
}

// resolveConfig loads the config file, applies flag overrides, validates
// and expands paths.
func resolveConfig(cmd *cobra.Command, configPath string, o *overrides) (*fileConfig, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	o.apply(cmd.Flags(), cfg)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}
	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunCmd(configPath *string) *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an engine and keep it running until interrupted",
		Long: "Start an engine, print its connection string and block until SIGINT or SIGTERM.\n" +
			"The engine and its working directory are removed on exit.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, *configPath, &o)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.enabled() {
				_, _ = color.New(color.FgYellow).Fprintln(out, "pglitenv is disabled in the config; nothing to run")
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, pglitenv.New(cfg.options()...), cmd)
		},
	}
	o.registerEngine(cmd.Flags())
	o.registerRuntime(cmd.Flags())
	return cmd
}

// runServer starts srv, prints its endpoint and closes it once ctx is done.
// Close runs on every return path, including a failed or interrupted Start.
func runServer(ctx context.Context, srv pglitenv.Server, cmd *cobra.Command) (err error) {
	defer func() {
		if closeErr := srv.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("stop engine: %w", closeErr)
		}
	}()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	ep, err := srv.Endpoint()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s %s\n", color.GreenString("engine ready:"), color.New(color.Bold).Sprint(ep.DSN()))
	_, _ = fmt.Fprintf(out, "%s %s\n", color.CyanString("address:"), ep.Address())
	_, _ = fmt.Fprintln(out, "press Ctrl+C to stop")

	<-ctx.Done()
	_, _ = fmt.Fprintln(out, "stopping engine")
	return nil
}
