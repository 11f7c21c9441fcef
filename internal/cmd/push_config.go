package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var pushConfigMessage string

var pushConfigCmd = &cobra.Command{
	Use:   "push-config [organization]",
	Short: "Push the local organization configuration to its config repository",
	Long: `Push the local jsonnet configuration of an organization to its config
repository on GitHub. The file is committed to the default branch, nothing
is committed when the remote content already matches.

Examples:
  otterdog push-config
  otterdog push-config my-org -m "Enable branch protection for backend"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPushConfig,
}

func init() {
	pushConfigCmd.Flags().StringVarP(&pushConfigMessage, "message", "m", "Update otterdog configuration", "Commit message for the configuration change")
	rootCmd.AddCommand(pushConfigCmd)
}

func runPushConfig(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	run, err := newOrgRun(ctx, args, true)
	if err != nil {
		return err
	}
	defer run.Close()

	localPath := run.configPath()
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("no configuration found at '%s', run 'otterdog import %s' first", localPath, run.org.Name)
	}

	repo := run.cfg.Defaults.GitHub.ConfigRepo
	remotePath := remoteConfigPath(run.org.GitHubID)

	updated, err := run.provider.UpdateContent(ctx, run.org.GitHubID, repo, remotePath, "", pushConfigMessage, content)
	if err != nil {
		return fmt.Errorf("failed to push configuration to '%s/%s': %w", run.org.GitHubID, repo, err)
	}

	if updated {
		fmt.Printf("✅ Configuration pushed to '%s/%s' as '%s'.\n", run.org.GitHubID, repo, remotePath)
	} else {
		fmt.Printf("✓ Configuration in '%s/%s' is already up to date.\n", run.org.GitHubID, repo)
	}
	return nil
}
