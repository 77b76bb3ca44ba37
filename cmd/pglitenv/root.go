package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/giantswarm/pglitenv"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "pglitenv",
		Short:         "Run disposable PGlite engines",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var lvl slog.Level
			if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("--%s: %w", flagLogLevel, err)
			}
			h := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})
			pglitenv.SetLogger(slog.New(h).With("component", "pglitenv"))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, flagConfig, "", "path to a pglitenv.toml file")
	cmd.PersistentFlags().StringVar(&logLevel, flagLogLevel, "info", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newRunCmd(&configPath),
		newFetchCmd(&configPath),
		newVersionCmd(),
	)
	return cmd
}
