package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ekamcp/internal/app"
	"ekamcp/internal/domain"
	"ekamcp/internal/infra/install"
)

func newInstallCmd(opts *cliOptions) *cobra.Command {
	var target string
	var binary string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register this server in a local MCP client configuration",
		Long: "install merges an ekamcp stdio entry into the configuration of a local\n" +
			"MCP client (claude, codex or gemini), carrying the credential flags so\n" +
			"the client can launch the server directly.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			parsed, err := install.ParseTarget(target)
			if err != nil {
				return fmt.Errorf("%w: %q (expected claude, codex or gemini)", err, target)
			}

			creds := opts.credentials()
			if issues := creds.Validate(); len(issues) > 0 {
				return domain.E(domain.CodeInvalidArguments, "install", strings.Join(issues, "; "), nil)
			}

			cfg, err := opts.loadSettings()
			if err != nil {
				return err
			}
			logging, err := app.NewLogging(cfg.Logging)
			if err != nil {
				return err
			}
			opts.logger = logging.Logger

			path, err := install.Install(install.Options{
				Target:      parsed,
				Credentials: creds,
				Binary:      binary,
				Logger:      logging.Logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s in %s\n", domain.ServerName, path)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "MCP client to register with: claude, codex or gemini (required)")
	cmd.Flags().StringVar(&binary, "binary", "", "launch command to register (defaults to this executable)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
