package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"otterdog/pkg/models"
)

var showMarkdown bool

var showCmd = &cobra.Command{
	Use:   "show [organization]",
	Short: "Show the resolved configuration of an organization",
	Long: `Evaluate the local jsonnet configuration of an organization and print
the resolved resources. The command works offline and never contacts
GitHub.

Examples:
  otterdog show
  otterdog show my-org
  otterdog show my-org --markdown > my-org.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "Render the configuration as markdown")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	run, err := newOrgRun(cmd.Context(), args, false)
	if err != nil {
		return err
	}

	org, err := run.loadExpected()
	if err != nil {
		return err
	}

	if showMarkdown {
		showOrgMarkdown(org)
		return nil
	}
	showOrg(run, org)
	return nil
}

func showOrg(run *orgRun, org *models.GitHubOrganization) {
	fmt.Printf("📋 Organization '%s' (%s)\n", org.GitHubID, run.org.Name)
	fmt.Printf("🔗 Configuration: %s\n", run.configPath())

	if org.Settings != nil {
		params := models.ToParams(org.Settings, false)
		fmt.Printf("\nSettings (%d):\n", len(params))
		for _, name := range sortedKeys(params) {
			fmt.Printf("  %s: %v\n", name, params[name])
		}
	}

	if len(org.Webhooks) > 0 {
		fmt.Printf("\nWebhooks (%d):\n", len(org.Webhooks))
		for _, webhook := range org.Webhooks {
			fmt.Printf("  • %s\n", webhook.GetURL())
		}
	}

	if len(org.Secrets) > 0 {
		fmt.Printf("\nSecrets (%d):\n", len(org.Secrets))
		for _, secret := range org.Secrets {
			fmt.Printf("  • %s\n", secret.GetName())
		}
	}

	if len(org.Variables) > 0 {
		fmt.Printf("\nVariables (%d):\n", len(org.Variables))
		for _, variable := range org.Variables {
			fmt.Printf("  • %s\n", variable.GetName())
		}
	}

	if len(org.Repositories) > 0 {
		fmt.Printf("\nRepositories (%d):\n", len(org.Repositories))
		for _, repo := range org.Repositories {
			fmt.Printf("  • %s%s\n", repo.GetName(), repoAnnotations(&repo))
		}
	}
}

func repoAnnotations(repo *models.Repository) string {
	var notes []string
	if repo.IsPrivate() {
		notes = append(notes, "private")
	}
	if repo.IsArchived() {
		notes = append(notes, "archived")
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, ", ") + ")"
}

func showOrgMarkdown(org *models.GitHubOrganization) {
	fmt.Printf("# Organization %s\n", org.GitHubID)

	if org.Settings != nil {
		params := models.ToParams(org.Settings, false)
		fmt.Printf("\n## Settings\n\n")
		fmt.Println("| Setting | Value |")
		fmt.Println("| ------- | ----- |")
		for _, name := range sortedKeys(params) {
			fmt.Printf("| %s | %s |\n", name, markdownValue(params[name]))
		}
	}

	if len(org.Webhooks) > 0 {
		fmt.Printf("\n## Webhooks\n\n")
		fmt.Println("| URL | Events |")
		fmt.Println("| --- | ------ |")
		for _, webhook := range org.Webhooks {
			fmt.Printf("| %s | %s |\n", webhook.GetURL(), strings.Join(webhook.Events, ", "))
		}
	}

	if len(org.Secrets) > 0 {
		fmt.Printf("\n## Secrets\n\n")
		fmt.Println("| Name | Visibility |")
		fmt.Println("| ---- | ---------- |")
		for _, secret := range org.Secrets {
			visibility := "all"
			if secret.Visibility != nil {
				visibility = *secret.Visibility
			}
			fmt.Printf("| %s | %s |\n", secret.GetName(), visibility)
		}
	}

	if len(org.Variables) > 0 {
		fmt.Printf("\n## Variables\n\n")
		fmt.Println("| Name | Value |")
		fmt.Println("| ---- | ----- |")
		for _, variable := range org.Variables {
			value := ""
			if variable.Value != nil {
				value = *variable.Value
			}
			fmt.Printf("| %s | %s |\n", variable.GetName(), markdownValue(value))
		}
	}

	if len(org.Repositories) > 0 {
		fmt.Printf("\n## Repositories\n\n")
		fmt.Println("| Repository | Private | Archived | Branch protection rules |")
		fmt.Println("| ---------- | ------- | -------- | ----------------------- |")
		for _, repo := range org.Repositories {
			fmt.Printf("| %s | %s | %s | %d |\n",
				repo.GetName(), yesNo(repo.IsPrivate()), yesNo(repo.IsArchived()), len(repo.BranchProtectionRules))
		}
	}
}

func markdownValue(v any) string {
	switch value := v.(type) {
	case []string:
		if len(value) == 0 {
			return "-"
		}
		return strings.Join(value, ", ")
	case string:
		if value == "" {
			return "-"
		}
		return strings.ReplaceAll(value, "|", "\\|")
	default:
		return fmt.Sprintf("%v", value)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
