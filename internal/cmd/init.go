package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"otterdog/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the otterdog configuration",
	Long: `Create a default otterdog configuration file with one example
organization. Edit the file to add the organizations you manage and how
their credentials are resolved.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	configPath := configFile

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("⚠️  Configuration file already exists at: %s\n", configPath)
		if !confirm("Do you want to overwrite it? (y/N): ") {
			fmt.Println("Configuration initialization cancelled.")
			return nil
		}
	}

	// Create default configuration
	defaultConfig := &config.Config{
		Defaults: config.Defaults{
			Jsonnet: config.JsonnetConfig{
				BaseTemplate: "https://github.com/my-org/otterdog-defaults#otterdog-defaults.libsonnet@main",
				ConfigDir:    "orgs",
				TemplateDir:  filepath.Join(".cache", "templates"),
			},
			GitHub: config.GitHubConfig{
				ConfigRepo: ".otterdog",
			},
			Cache: config.CacheConfig{
				Backend: "memory",
				Dir:     filepath.Join(".cache", "api"),
			},
		},
		Organizations: []config.OrganizationConfig{
			{
				Name:     "my-org",
				GitHubID: "my-org",
				Credentials: map[string]string{
					"provider":  "env",
					"api_token": "GITHUB_TOKEN",
				},
			},
		},
	}

	// Save configuration
	if err := defaultConfig.SaveConfigToPath(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Printf("✅ Configuration file created at: %s\n", configPath)
	fmt.Println("📝 Please edit the file to add the organizations you manage.")

	return nil
}
