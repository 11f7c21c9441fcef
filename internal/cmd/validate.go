package cmd

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/cobra"

	"otterdog/pkg/models"
)

//go:embed organization.schema.json
var organizationSchema []byte

const organizationSchemaID = "inmemory://organization.schema.json"

var validateCmd = &cobra.Command{
	Use:   "validate [organization]",
	Short: "Validate the configuration of an organization",
	Long: `Evaluate the local jsonnet configuration of an organization and check
it for structural and semantic problems. The command works offline and
never contacts GitHub.

The evaluated configuration is first checked against the configuration
schema, then every resource is validated individually. Findings of
severity INFO are only shown with --verbose.

Examples:
  otterdog validate
  otterdog validate my-org
  otterdog validate my-org -v`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	run, err := newOrgRun(cmd.Context(), args, false)
	if err != nil {
		return err
	}

	path := run.configPath()
	fmt.Printf("🔍 Validating configuration at '%s'...\n", path)

	data, err := run.evaluator.EvaluateFile(path)
	if err != nil {
		return err
	}

	if err := validateSchema(data); err != nil {
		return fmt.Errorf("configuration does not match the schema: %w", err)
	}

	org, err := models.LoadOrganization(data)
	if err != nil {
		return err
	}

	vc := org.Validate()
	for _, failure := range vc.Failures {
		if failure.Severity == models.SeverityInfo && verbosity < 1 {
			continue
		}
		fmt.Println(failure)
	}

	errorCount := vc.ErrorCount()
	warningCount := vc.WarningCount()
	switch {
	case errorCount > 0:
		return fmt.Errorf("validation failed with %d error(s) and %d warning(s)", errorCount, warningCount)
	case warningCount > 0:
		fmt.Printf("⚠️  Validation succeeded with %d warning(s).\n", warningCount)
	default:
		fmt.Printf("✅ Configuration of organization '%s' is valid.\n", run.org.GitHubID)
	}
	return nil
}

// validateSchema checks the evaluated configuration against the embedded
// JSON schema. Schema violations surface structural problems before the
// model layer reports field level findings.
func validateSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(organizationSchemaID, bytes.NewReader(organizationSchema)); err != nil {
		return fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(organizationSchemaID)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return compiled.Validate(decoded)
}
