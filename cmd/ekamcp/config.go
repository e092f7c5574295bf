package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ekamcp/internal/infra/settings"
)

func newConfigCmd(_ *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the runtime settings file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.WriteDefault(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "ekamcp.yaml", "path of the settings file to create")
	return cmd
}
