package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/giantswarm/pglitenv/internal/core"
	"github.com/giantswarm/pglitenv/internal/provision"
)

func newFetchCmd(configPath *string) *cobra.Command {
	var (
		o          overrides
		installDir string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and verify the runtime into the cache",
		Long: "Download the runtime archive for this platform into the cache and verify its digest,\n" +
			"so later runs and tests start without network access. With --install-dir the\n" +
			"runtime is also extracted and the path of its executable is printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, *configPath, &o)
			if err != nil {
				return err
			}
			if cfg.Runtime.DownloadURL == "" {
				return fmt.Errorf("%w: --download-url or runtime.download_url is required", ErrConfigValidation)
			}

			prov := provision.New(provision.Config{
				ArchiveName:    cfg.Runtime.ArchiveName,
				URLTemplate:    cfg.Runtime.DownloadURL,
				ExpectedDigest: cfg.Runtime.ExpectedDigest,
				CacheDir:       cfg.Runtime.CacheDir,
				Logger:         core.Logger(),
			})

			out := cmd.OutOrStdout()
			archive, digest, err := prov.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s %s\n", color.CyanString("platform:"), prov.Platform())
			_, _ = fmt.Fprintf(out, "%s %s\n", color.CyanString("archive:"), archive)
			_, _ = fmt.Fprintf(out, "%s %s\n", color.CyanString("sha256:"), digest)

			if installDir == "" {
				return nil
			}
			dir, err := homedir.Expand(installDir)
			if err != nil {
				return fmt.Errorf("expand %q: %w", installDir, err)
			}
			b, err := prov.Resolve(cmd.Context(), dir)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s %s\n", color.GreenString("runtime:"), b.Path)
			return nil
		},
	}
	o.registerRuntime(cmd.Flags())
	cmd.Flags().StringVar(&installDir, "install-dir", "", "also extract the runtime below this directory")
	return cmd
}
