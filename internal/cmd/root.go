package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"otterdog/pkg/config"
)

var (
	configFile string
	verbosity  int

	// logger receives engine output, user-facing messages go through fmt.
	logger zerolog.Logger
)

// errDifferencesFound signals a clean run whose plan is not empty. Execute
// maps it to exit code 2 so CI can tell drift from failure.
var errDifferencesFound = errors.New("differences found")

var rootCmd = &cobra.Command{
	Use:   "otterdog",
	Short: "Manage GitHub organizations at scale with configuration as code",
	Long: `Otterdog manages settings, webhooks, secrets, variables and repositories
of GitHub organizations from declarative jsonnet configurations.

The live organization is compared against its configuration, the resulting
plan can be reviewed and applied, including settings that are only
reachable through the GitHub web interface.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogger()
	},
}

func setupLogger() {
	level := zerolog.WarnLevel
	switch {
	case verbosity >= 2:
		level = zerolog.DebugLevel
	case verbosity == 1:
		level = zerolog.InfoLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDifferencesFound) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "path to the otterdog configuration file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity, repeat for debug output")
}
