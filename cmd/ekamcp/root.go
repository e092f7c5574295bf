package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ekamcp/internal/app"
	"ekamcp/internal/buildinfo"
	"ekamcp/internal/domain"
	"ekamcp/internal/infra/settings"
)

// cliOptions carries every flag shared across the command tree. The
// credential triple never comes from the settings file: it is flags only,
// so secrets stay out of anything that lands in dotfiles.
type cliOptions struct {
	apiHost      string
	clientID     string
	clientSecret string
	clientToken  string
	configPath   string
	logLevel     string
	logFile      string
	logger       *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := cliOptions{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "ekamcp",
		Short: "MCP stdio server exposing Eka healthcare tools",
		Long: "ekamcp serves medication lookup, interaction checks and the progressive\n" +
			"treatment-protocol workflow (tag -> publisher -> search) over MCP stdio,\n" +
			"backed by the remote Eka healthcare API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = opts.logger.Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, &opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiHost, "eka-api-host", "", "base URL of the Eka API (required)")
	flags.StringVar(&opts.clientID, "client-id", "", "API client id (required)")
	flags.StringVar(&opts.clientSecret, "client-secret", "", "API client secret (required unless --client-token is set)")
	flags.StringVar(&opts.clientToken, "client-token", "", "alias for --client-secret")
	flags.StringVar(&opts.configPath, "config", "", "optional runtime settings file (YAML)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug|info|warn|error)")
	flags.StringVar(&opts.logFile, "log-file", "", "mirror JSON logs to this file (stderr stays on)")

	root.AddCommand(
		newValidateCmd(&opts),
		newConfigCmd(&opts),
		newInstallCmd(&opts),
		newVersionCmd(),
	)

	return root
}

// credentials resolves the flag triple, honouring the --client-token alias.
func (o *cliOptions) credentials() domain.Credentials {
	secret := o.clientSecret
	if secret == "" {
		secret = o.clientToken
	}
	return domain.Credentials{
		Host:         strings.TrimSpace(o.apiHost),
		ClientID:     strings.TrimSpace(o.clientID),
		ClientSecret: strings.TrimSpace(secret),
	}
}

// loadSettings reads the optional settings file and applies flag overrides.
func (o *cliOptions) loadSettings() (domain.Settings, error) {
	cfg, err := settings.NewLoader(o.logger).Load(o.configPath)
	if err != nil {
		return domain.Settings{}, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(o.logLevel))
	}
	if o.logFile != "" {
		cfg.Logging.File = o.logFile
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, opts *cliOptions) error {
	creds := opts.credentials()
	if issues := creds.Validate(); len(issues) > 0 {
		// Fatal before any tool is registered; show usage so the fix
		// is obvious.
		cmd.SilenceUsage = false
		return domain.E(domain.CodeInvalidArguments, "startup", strings.Join(issues, "; "), nil)
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

	application, err := app.New(app.Config{
		Credentials: creds,
		Settings:    cfg,
		Logging:     logging,
		Version:     buildinfo.Version,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalAwareContext(cmd.Context())
	defer cancel()
	return application.Run(ctx)
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
