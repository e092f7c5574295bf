package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ekamcp/internal/buildinfo"
	"ekamcp/internal/domain"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (build %s)\n", domain.ServerName, buildinfo.Version, buildinfo.Build)
		},
	}
}
