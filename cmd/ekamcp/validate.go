package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ekamcp/internal/app"
	"ekamcp/internal/domain"
	"ekamcp/internal/infra/ekaapi"
)

func newValidateCmd(opts *cliOptions) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the settings file and optionally probe the upstream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadSettings()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "settings: ok")

			if !probe {
				return nil
			}
			return runProbe(cmd, opts, cfg)
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "log in and fetch the tag corpus and publisher directory")
	return cmd
}

// runProbe verifies credentials and upstream reachability end to end: a
// login followed by the two read-only directory endpoints.
func runProbe(cmd *cobra.Command, opts *cliOptions, cfg domain.Settings) error {
	creds := opts.credentials()
	if issues := creds.Validate(); len(issues) > 0 {
		return domain.E(domain.CodeInvalidArguments, "probe", strings.Join(issues, "; "), nil)
	}

	logging, err := app.NewLogging(cfg.Logging)
	if err != nil {
		return err
	}
	opts.logger = logging.Logger

	client, err := ekaapi.NewClient(ekaapi.Options{
		Credentials: creds,
		Settings:    cfg.Upstream,
		Logger:      logging.Logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := cmd.Context()
	if err := client.Login(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "login: ok")

	tags, err := client.SupportedTags(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tags: %d\n", len(tags))

	publishers, err := client.PublisherDirectory(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "publishers: %d\n", len(publishers))
	return nil
}
