package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_ResolveSecret_Plain(t *testing.T) {
	r := NewResolver()

	value, err := r.ResolveSecret(context.Background(), "plain:literal-value")

	require.NoError(t, err)
	assert.Equal(t, "literal-value", value)
}

func TestResolver_ResolveSecret_Env(t *testing.T) {
	t.Setenv("OTTERDOG_TEST_SECRET", "from-env")
	r := NewResolver()

	value, err := r.ResolveSecret(context.Background(), "env:OTTERDOG_TEST_SECRET")

	require.NoError(t, err)
	assert.Equal(t, "from-env", value)
}

func TestResolver_ResolveSecret_EnvMissing(t *testing.T) {
	r := NewResolver()

	_, err := r.ResolveSecret(context.Background(), "env:OTTERDOG_TEST_UNSET_VARIABLE")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTTERDOG_TEST_UNSET_VARIABLE")
}

func TestResolver_ResolveSecret_Ini(t *testing.T) {
	tempDir := t.TempDir()
	iniPath := filepath.Join(tempDir, "credentials.ini")
	content := `token = default-token

[github]
api_token = ghp_from_ini
`
	require.NoError(t, os.WriteFile(iniPath, []byte(content), 0600))

	r := NewResolver()
	r.Register(NewIniProvider(iniPath))

	value, err := r.ResolveSecret(context.Background(), "ini:github.api_token")
	require.NoError(t, err)
	assert.Equal(t, "ghp_from_ini", value)

	value, err = r.ResolveSecret(context.Background(), "ini:token")
	require.NoError(t, err)
	assert.Equal(t, "default-token", value)

	_, err = r.ResolveSecret(context.Background(), "ini:github.missing")
	require.Error(t, err)
}

func TestResolver_ResolveSecret_InvalidRef(t *testing.T) {
	r := NewResolver()

	_, err := r.ResolveSecret(context.Background(), "no-separator")
	require.Error(t, err)

	_, err = r.ResolveSecret(context.Background(), "unknown:key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown credential provider")
}

func TestResolver_Resolve(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("OTTERDOG_API_TOKEN", "ghp_resolved")

	r := NewResolver()
	creds, err := r.Resolve(context.Background(), map[string]string{
		"provider":  "env",
		"api_token": "OTTERDOG_API_TOKEN",
	})

	require.NoError(t, err)
	assert.Equal(t, "ghp_resolved", creds.GitHubToken)
	assert.False(t, creds.HasWebCredentials())
}

func TestResolver_Resolve_GitHubTokenOverride(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "ghp_from_environment")

	r := NewResolver()
	creds, err := r.Resolve(context.Background(), map[string]string{
		"provider":  "plain",
		"api_token": "ghp_configured",
	})

	require.NoError(t, err)
	assert.Equal(t, "ghp_from_environment", creds.GitHubToken)
}

func TestResolver_Resolve_NoToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")

	r := NewResolver()
	_, err := r.Resolve(context.Background(), map[string]string{"provider": "plain"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
}

func TestResolver_Resolve_WebCredentials(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")

	r := NewResolver()
	creds, err := r.Resolve(context.Background(), map[string]string{
		"provider":    "plain",
		"api_token":   "ghp_token",
		"username":    "admin-user",
		"password":    "hunter2",
		"totp_secret": "JBSWY3DPEHPK3PXP",
	})

	require.NoError(t, err)
	assert.True(t, creds.HasWebCredentials())
	assert.Equal(t, "admin-user", creds.Username)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", creds.TOTPSecret)
}

type stubSecretsManager struct {
	values map[string]string
}

func (s *stubSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	value, ok := s.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, fmt.Errorf("secret not found")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func TestAWSProvider_GetSecret(t *testing.T) {
	provider := NewAWSProviderWithClient(&stubSecretsManager{
		values: map[string]string{
			"otterdog/token":   "ghp_plain",
			"otterdog/webhook": `{"secret": "hook-value", "url": "ignored"}`,
		},
	})

	value, err := provider.GetSecret(context.Background(), "otterdog/token")
	require.NoError(t, err)
	assert.Equal(t, "ghp_plain", value)

	value, err = provider.GetSecret(context.Background(), "otterdog/webhook@secret")
	require.NoError(t, err)
	assert.Equal(t, "hook-value", value)

	_, err = provider.GetSecret(context.Background(), "otterdog/webhook@missing")
	require.Error(t, err)

	_, err = provider.GetSecret(context.Background(), "otterdog/absent")
	require.Error(t, err)
}

func TestValidateTokenScopes(t *testing.T) {
	missing := ValidateTokenScopes("admin:org, admin:org_hook, delete_repo, repo, workflow")
	assert.Empty(t, missing)

	missing = ValidateTokenScopes("repo, workflow")
	assert.Equal(t, []string{"admin:org", "admin:org_hook", "delete_repo"}, missing)

	// fine-grained tokens send no scope header at all
	missing = ValidateTokenScopes("")
	assert.Empty(t, missing)
}
