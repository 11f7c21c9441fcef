package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"otterdog/pkg/diff"
)

var planNoWebUI bool

var planCmd = &cobra.Command{
	Use:   "plan [organization]",
	Short: "Show changes required to match the configuration",
	Long: `Compare the live state of an organization against its local jsonnet
configuration and print the resulting plan without changing anything.

Settings that are only reachable through the GitHub web interface are
included when web credentials are configured, --no-web-ui skips them.

The exit code reflects the outcome: 0 when the organization matches the
configuration, 2 when differences were found, 1 on errors.

Examples:
  otterdog plan
  otterdog plan my-org
  otterdog plan my-org --no-web-ui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planNoWebUI, "no-web-ui", false, "Skip settings that are only reachable through the web interface")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	run, err := newOrgRun(ctx, args, true)
	if err != nil {
		return err
	}
	defer run.Close()

	expected, err := run.loadExpected()
	if err != nil {
		return err
	}

	fmt.Printf("🔎 Fetching live state of organization '%s'...\n", run.org.GitHubID)
	current, err := run.provider.FetchOrganization(ctx, run.org.GitHubID)
	if err != nil {
		return fmt.Errorf("failed to fetch live state: %w", err)
	}

	includeWeb := !planNoWebUI && run.creds.HasWebCredentials()
	web, err := run.prepareWebState(ctx, includeWeb, planNoWebUI, current)
	if err != nil {
		return err
	}
	if web != nil {
		defer func() { _ = web.Close() }()
	}

	operator := diff.NewOperator(run.provider, run.org.GitHubID, diff.Options{
		IncludeWebUI: includeWeb,
		Logger:       logger,
	})
	patches := operator.Plan(expected, current)

	printer := diff.NewPrinter(os.Stdout)
	printer.Color = true
	summary := printer.Print(patches)

	if summary.HasChanges() {
		return errDifferencesFound
	}
	return nil
}
