package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"otterdog/pkg/diff"
)

var (
	applyForce           bool
	applyNoWebUI         bool
	applyUpdateSecrets   bool
	applyUpdateWebhooks  bool
	applyDeleteResources bool
)

var applyCmd = &cobra.Command{
	Use:   "apply [organization]",
	Short: "Apply configuration changes to a GitHub organization",
	Long: `Apply the changes needed to bring a GitHub organization in line with
its configuration. The plan is shown first and has to be confirmed unless
--force is given.

Live resources missing from the configuration are kept unless
--delete-resources is set. Secrets and webhook secrets are redacted by
GitHub and cannot be compared, use --update-secrets and --update-webhooks
to push their configured values regardless.

Examples:
  otterdog apply                        # Plan, confirm, apply
  otterdog apply my-org --force         # Apply without confirmation
  otterdog apply --delete-resources     # Also delete unmanaged resources
  otterdog apply --update-secrets       # Re-push all configured secrets`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVarP(&applyForce, "force", "f", false, "Skip the confirmation prompt")
	applyCmd.Flags().BoolVar(&applyNoWebUI, "no-web-ui", false, "Skip settings that are only reachable through the web interface")
	applyCmd.Flags().BoolVar(&applyUpdateSecrets, "update-secrets", false, "Update secrets whose live value is redacted")
	applyCmd.Flags().BoolVar(&applyUpdateWebhooks, "update-webhooks", false, "Update webhooks whose live secret is redacted")
	applyCmd.Flags().BoolVar(&applyDeleteResources, "delete-resources", false, "Delete live resources missing from the configuration")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
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

	// Secret references have to be resolved before planning so that added
	// or force-updated resources carry their real values.
	if refs := expected.SecretRefs(); len(refs) > 0 {
		fmt.Printf("🔑 Resolving %d secret reference(s)...\n", len(refs))
	}
	if err := expected.ResolveSecrets(ctx, run.resolver); err != nil {
		return fmt.Errorf("failed to resolve secrets for organization '%s': %w", run.org.GitHubID, err)
	}

	fmt.Printf("🔎 Fetching live state of organization '%s'...\n", run.org.GitHubID)
	current, err := run.provider.FetchOrganization(ctx, run.org.GitHubID)
	if err != nil {
		return fmt.Errorf("failed to fetch live state: %w", err)
	}

	includeWeb := !applyNoWebUI && run.creds.HasWebCredentials()
	web, err := run.prepareWebState(ctx, includeWeb, applyNoWebUI, current)
	if err != nil {
		return err
	}
	if web != nil {
		defer func() { _ = web.Close() }()
	}

	operator := diff.NewOperator(run.provider, run.org.GitHubID, diff.Options{
		IncludeWebUI:    includeWeb,
		UpdateSecrets:   applyUpdateSecrets,
		UpdateWebhooks:  applyUpdateWebhooks,
		DeleteResources: applyDeleteResources,
		Logger:          logger,
	})

	patches := operator.Plan(expected, current)
	printer := diff.NewPrinter(os.Stdout)
	printer.Color = true
	summary := printer.Print(patches)

	if !summary.HasChanges() {
		return nil
	}

	if !applyForce {
		fmt.Println()
		if !confirm("Do you want to apply these changes? (y/N): ") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	// Settings only the browser client can change are applied separately,
	// the REST API silently ignores them.
	patches, webChanges := splitWebChanges(patches)

	fmt.Println("\nApplying changes...")
	result, err := operator.Apply(ctx, patches)
	if err != nil {
		if result != nil {
			for _, path := range sortedKeys(result.Failed) {
				fmt.Printf("❌ %s: %v\n", path, result.Failed[path])
			}
		}
		return err
	}

	if len(webChanges) > 0 {
		fmt.Println("🌐 Updating settings through the web interface...")
		if err := web.UpdateSettings(ctx, run.org.GitHubID, webChanges); err != nil {
			return fmt.Errorf("failed to update web settings: %w", err)
		}
	}

	fmt.Printf("\n✅ Successfully applied changes to organization '%s'.\n", run.org.GitHubID)
	fmt.Printf("📊 Applied %d change(s)", len(result.Applied)+len(webChanges))
	if len(result.Skipped) > 0 {
		fmt.Printf(", kept %d unmanaged resource(s), re-run with --delete-resources to delete them", len(result.Skipped))
	}
	fmt.Println(".")
	return nil
}
