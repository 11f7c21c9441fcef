package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/spf13/cobra"

	"otterdog/pkg/jsonnet"
)

var fetchConfigViaGit bool

var fetchConfigCmd = &cobra.Command{
	Use:   "fetch-config [organization]",
	Short: "Fetch the organization configuration from its config repository",
	Long: `Fetch the jsonnet configuration of an organization from its config
repository on GitHub and store it locally. An existing local file is backed
up to '<file>.bak' before it is replaced.

By default the file is read through the GitHub API, --via-git clones the
config repository instead, which also works for files above the API size
limit.

Examples:
  otterdog fetch-config
  otterdog fetch-config my-org
  otterdog fetch-config my-org --via-git`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetchConfig,
}

func init() {
	fetchConfigCmd.Flags().BoolVar(&fetchConfigViaGit, "via-git", false, "Clone the config repository instead of using the API")
	rootCmd.AddCommand(fetchConfigCmd)
}

// remoteConfigPath is the path of the organization configuration inside its
// config repository.
func remoteConfigPath(githubID string) string {
	return "otterdog/" + githubID + ".jsonnet"
}

func runFetchConfig(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	run, err := newOrgRun(ctx, args, true)
	if err != nil {
		return err
	}
	defer run.Close()

	repo := run.cfg.Defaults.GitHub.ConfigRepo
	remotePath := remoteConfigPath(run.org.GitHubID)
	fmt.Printf("🔎 Fetching configuration from '%s/%s'...\n", run.org.GitHubID, repo)

	var content string
	if fetchConfigViaGit {
		content, err = fetchViaGit(ctx, run, repo, remotePath)
	} else {
		content, err = run.provider.GetContent(ctx, run.org.GitHubID, repo, remotePath, "")
	}
	if err != nil {
		return fmt.Errorf("failed to fetch configuration from '%s/%s': %w", run.org.GitHubID, repo, err)
	}

	localPath := run.configPath()
	backup, err := jsonnet.WriteOrgConfig(localPath, []byte(content))
	if err != nil {
		return err
	}

	if backup != "" {
		fmt.Printf("📝 Previous configuration backed up to '%s'.\n", backup)
	}
	fmt.Printf("✅ Configuration for organization '%s' written to '%s'.\n", run.org.GitHubID, localPath)
	return nil
}

// fetchViaGit clones the config repository into a temporary directory and
// reads the configuration file from the checkout.
func fetchViaGit(ctx context.Context, run *orgRun, repo, remotePath string) (string, error) {
	tempDir, err := os.MkdirTemp("", "otterdog-fetch-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	cloneOptions := &git.CloneOptions{
		URL:          fmt.Sprintf("https://github.com/%s/%s.git", run.org.GitHubID, repo),
		SingleBranch: true,
		Depth:        1,
	}
	if run.creds.GitHubToken != "" {
		cloneOptions.Auth = &http.BasicAuth{Username: "token", Password: run.creds.GitHubToken}
	}

	if _, err := git.PlainCloneContext(ctx, tempDir, false, cloneOptions); err != nil {
		return "", fmt.Errorf("failed to clone config repository: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(tempDir, filepath.FromSlash(remotePath)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
