package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"otterdog/internal/webapp"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook daemon reacting to GitHub events",
	Long: `Run the long-lived daemon that keeps organizations in line with their
configurations without manual plan and apply cycles.

The daemon listens for GitHub webhook deliveries: pull requests against an
organization's configuration repository are validated and receive a commit
status plus a plan comment, pushes to the default branch are applied to the
live organization. With a configured drift interval every organization is
periodically compared against its configuration, and required files are
proposed through pull requests where they are missing.

Examples:
  otterdog serve                  # Listen on the configured address
  otterdog serve --addr :9090     # Override the listen address`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address, overrides the configured one")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadRootConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Defaults.WebApp.Addr = serveAddr
	}

	// The daemon reports its lifecycle through the logger, raise the
	// default level so startup and task activity are visible.
	if verbosity == 0 {
		logger = logger.Level(zerolog.InfoLevel)
	}

	server, err := webapp.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
