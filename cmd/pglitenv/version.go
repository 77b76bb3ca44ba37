package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// versionString formats Version with optional commit and build date metadata.
func versionString() string {
	meta := []string{}
	if Commit != "" && Commit != "unknown" {
		meta = append(meta, "commit "+Commit)
	}
	if BuildDate != "" && BuildDate != "unknown" {
		meta = append(meta, "built "+BuildDate)
	}
	if len(meta) == 0 {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, strings.Join(meta, ", "))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "pglitenv", versionString())
			return err
		},
	}
}
