package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"otterdog/pkg/jsonnet"
	"otterdog/pkg/models"
)

var importForce bool

var importCmd = &cobra.Command{
	Use:   "import [organization]",
	Short: "Import the live state of an organization into a local configuration",
	Long: `Import the current live state of a GitHub organization and write it as
a jsonnet configuration extending the base template. Settings that match
the template defaults are omitted, so the resulting file only spells out
what the organization actually overrides.

Secret values cannot be read back from GitHub and are imported in their
redacted form, replace them with credential references afterwards.

Examples:
  otterdog import
  otterdog import my-org
  otterdog import my-org --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVarP(&importForce, "force", "f", false, "Overwrite an existing configuration without asking")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	run, err := newOrgRun(ctx, args, true)
	if err != nil {
		return err
	}
	defer run.Close()

	localPath := run.configPath()
	if _, err := os.Stat(localPath); err == nil && !importForce {
		fmt.Printf("⚠️  Configuration file already exists at: %s\n", localPath)
		if !confirm("Do you want to overwrite it? (y/N): ") {
			fmt.Println("Import cancelled.")
			return nil
		}
	}

	fmt.Printf("🔎 Fetching live state of organization '%s'...\n", run.org.GitHubID)
	current, err := run.provider.FetchOrganization(ctx, run.org.GitHubID)
	if err != nil {
		return fmt.Errorf("failed to fetch live state: %w", err)
	}

	templateRef, err := jsonnet.ParseTemplateRef(run.cfg.BaseTemplate(run.org))
	if err != nil {
		return fmt.Errorf("invalid base template for organization '%s': %w", run.org.GitHubID, err)
	}

	sync := jsonnet.NewTemplateSync(run.cfg.TemplateDir(), run.creds.GitHubToken)
	templatePath, err := sync.Sync(ctx, templateRef)
	if err != nil {
		return err
	}
	if abs, err := filepath.Abs(templatePath); err == nil {
		templatePath = abs
	}

	defaults, err := run.evaluator.DefaultOrg(templatePath, run.org.GitHubID)
	if err != nil {
		return err
	}
	repoDefaults, err := run.evaluator.DefaultRepo(templatePath, "default")
	if err != nil {
		return err
	}

	content := jsonnet.RenderOrg(current, jsonnet.WriteOptions{
		TemplateImport: templateImportPath(run, templatePath),
		Defaults:       defaults,
		RepoDefaults:   repoDefaults,
	})

	backup, err := jsonnet.WriteOrgConfig(localPath, content)
	if err != nil {
		return err
	}

	if backup != "" {
		fmt.Printf("📝 Previous configuration backed up to '%s'.\n", backup)
	}
	fmt.Printf("✅ Organization '%s' imported to '%s'.\n", run.org.GitHubID, localPath)
	fmt.Printf("📊 Imported %d repositories.\n", len(current.Repositories))

	if importedSecrets(current) {
		fmt.Println("⚠️  Secret values were imported redacted, replace them with credential references.")
	}
	return nil
}

// templateImportPath derives the import path written into the generated
// configuration. Synced templates resolve through the template dir import
// path, local templates relative to the configuration file.
func templateImportPath(run *orgRun, templatePath string) string {
	if rel, err := filepath.Rel(run.cfg.TemplateDir(), templatePath); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	if rel, err := filepath.Rel(filepath.Dir(run.configPath()), templatePath); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(templatePath)
}

func importedSecrets(org *models.GitHubOrganization) bool {
	if len(org.Secrets) > 0 {
		return true
	}
	for _, repo := range org.Repositories {
		if len(repo.Secrets) > 0 {
			return true
		}
	}
	return false
}
