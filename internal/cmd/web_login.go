package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"otterdog/pkg/webui"
)

var webLoginCmd = &cobra.Command{
	Use:   "web-login [organization]",
	Short: "Open a browser session for the organization's web settings",
	Long: `Open a visible browser window and log in to GitHub for the selected
organization. The session is persisted in the organization's browser
profile, so later plan and apply runs can reach web-only settings without
logging in again.

With web credentials configured the login is performed automatically,
including the two-factor challenge when a TOTP secret is present.
Otherwise the login has to be completed manually in the browser window.

Examples:
  otterdog web-login
  otterdog web-login my-org`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWebLogin,
}

func init() {
	rootCmd.AddCommand(webLoginCmd)
}

func runWebLogin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := newOrgRun(ctx, args, false)
	if err != nil {
		return err
	}
	if err := run.resolveCredentials(ctx); err != nil {
		return err
	}

	selectors, err := webui.LoadSelectorMap()
	if err != nil {
		return err
	}

	profileDir := run.cfg.BrowserProfileDir(run.org.GitHubID)
	client, err := webui.NewClient(selectors, webui.ClientOptions{
		ProfileDir: profileDir,
		Headless:   false,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if run.creds.HasWebCredentials() {
		if err := client.Login(ctx, run.creds); err != nil {
			return fmt.Errorf("login for organization '%s' failed: %w", run.org.GitHubID, err)
		}
		fmt.Printf("✅ Logged in to organization '%s', session persisted at '%s'.\n", run.org.GitHubID, profileDir)
		return nil
	}

	fmt.Println("🌐 Complete the login in the opened browser window...")
	username, err := client.InteractiveLogin(ctx)
	if err != nil {
		return fmt.Errorf("login for organization '%s' failed: %w", run.org.GitHubID, err)
	}
	fmt.Printf("✅ Logged in as '%s', session persisted at '%s'.\n", username, profileDir)
	return nil
}
