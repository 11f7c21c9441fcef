package jsonnet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otterdog/pkg/models"
)

const testTemplate = `{
  newOrg(id):: {
    github_id: id,
    settings: {
      billing_email: 'default@example.org',
      web_commit_signoff_required: false,
    },
    webhooks: [],
    secrets: [],
    variables: [],
    repositories: [],
  },

  newRepo(name):: {
    name: name,
    private: false,
    has_issues: true,
  },

  newOrgWebhook(url):: { url: url, active: true, events: [] },
  newOrgSecret(name):: { name: name },
  newOrgVariable(name):: { name: name },
  newRepoWebhook(url):: { url: url, active: true, events: [] },
  newRepoSecret(name):: { name: name },
  newRepoVariable(name):: { name: name },
  newEnvironment(name):: { name: name },
  newBranchProtectionRule(pattern):: { pattern: pattern },
}
`

func writeTestTemplate(t *testing.T) (dir, templatePath string) {
	t.Helper()
	dir = t.TempDir()
	templatePath = filepath.Join(dir, "template.libsonnet")
	require.NoError(t, os.WriteFile(templatePath, []byte(testTemplate), 0644))
	return dir, templatePath
}

func TestParseTemplateRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TemplateRef
		wantErr bool
	}{
		{
			name:  "repository reference",
			input: "https://github.com/testorg/defaults#template/otterdog-defaults.libsonnet@main",
			want: TemplateRef{
				RepoURL: "https://github.com/testorg/defaults",
				Path:    "template/otterdog-defaults.libsonnet",
				Ref:     "main",
			},
		},
		{
			name:  "repository reference without ref",
			input: "https://github.com/testorg/defaults#template/defaults.libsonnet",
			want: TemplateRef{
				RepoURL: "https://github.com/testorg/defaults",
				Path:    "template/defaults.libsonnet",
				Ref:     "main",
			},
		},
		{
			name:  "local file",
			input: "template/defaults.libsonnet",
			want:  TemplateRef{Path: "template/defaults.libsonnet"},
		},
		{
			name:    "empty reference",
			input:   "",
			wantErr: true,
		},
		{
			name:    "missing file part",
			input:   "https://github.com/testorg/defaults#@main",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseTemplateRef(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *ref)
		})
	}
}

func TestTemplateRef_IsLocal(t *testing.T) {
	local, err := ParseTemplateRef("defaults.libsonnet")
	require.NoError(t, err)
	assert.True(t, local.IsLocal())

	remote, err := ParseTemplateRef("https://github.com/o/r#f.libsonnet@main")
	require.NoError(t, err)
	assert.False(t, remote.IsLocal())
}

func TestEvaluator_LoadOrganization(t *testing.T) {
	dir, _ := writeTestTemplate(t)

	orgFile := filepath.Join(dir, "orgs", "testorg.jsonnet")
	require.NoError(t, os.MkdirAll(filepath.Dir(orgFile), 0755))
	content := `local orgs = import 'template.libsonnet';

orgs.newOrg('testorg') {
  settings+: {
    billing_email: 'billing@testorg.example',
  },
  repositories+: [
    orgs.newRepo('website') {
      description: 'the org website',
    },
  ],
}
`
	require.NoError(t, os.WriteFile(orgFile, []byte(content), 0644))

	eval := NewEvaluator(dir)
	org, err := eval.LoadOrganization(orgFile)

	require.NoError(t, err)
	assert.Equal(t, "testorg", org.GitHubID)
	require.NotNil(t, org.Settings)
	assert.Equal(t, "billing@testorg.example", *org.Settings.BillingEmail)
	require.Len(t, org.Repositories, 1)
	assert.Equal(t, "website", org.Repositories[0].GetName())
	assert.Equal(t, "the org website", *org.Repositories[0].Description)
	// inherited from the template
	require.NotNil(t, org.Repositories[0].HasIssues)
	assert.True(t, *org.Repositories[0].HasIssues)
}

func TestEvaluator_Defaults(t *testing.T) {
	_, templatePath := writeTestTemplate(t)
	eval := NewEvaluator()

	org, err := eval.DefaultOrg(templatePath, "testorg")
	require.NoError(t, err)
	assert.Equal(t, "testorg", org.GitHubID)
	require.NotNil(t, org.Settings)
	assert.Equal(t, "default@example.org", *org.Settings.BillingEmail)

	repo, err := eval.DefaultRepo(templatePath, "any-repo")
	require.NoError(t, err)
	assert.Equal(t, "any-repo", repo.GetName())
	require.NotNil(t, repo.Private)
	assert.False(t, *repo.Private)
}

func TestRenderOrg_RoundTrip(t *testing.T) {
	dir, templatePath := writeTestTemplate(t)
	eval := NewEvaluator(dir)

	defaults, err := eval.DefaultOrg(templatePath, "testorg")
	require.NoError(t, err)
	repoDefaults, err := eval.DefaultRepo(templatePath, "unused")
	require.NoError(t, err)

	org := &models.GitHubOrganization{
		GitHubID: "testorg",
		Settings: &models.OrganizationSettings{
			BillingEmail:             models.String("billing@testorg.example"),
			WebCommitSignoffRequired: models.Bool(false),
		},
		Webhooks: []models.OrganizationWebhook{
			{Webhook: models.Webhook{
				URL:    models.String("https://ci.testorg.example/hook"),
				Active: models.Bool(true),
				Events: []string{"push", "pull_request"},
			}},
		},
		Repositories: []models.Repository{
			{
				Name:        models.String("website"),
				Description: models.String("the org website"),
				Private:     models.Bool(false),
				BranchProtectionRules: []models.BranchProtectionRule{
					{
						Pattern:                      models.String("main"),
						RequiresApprovingReviews:     models.Bool(true),
						RequiredApprovingReviewCount: models.Int(2),
					},
				},
			},
		},
	}

	rendered := RenderOrg(org, WriteOptions{
		TemplateImport: "template.libsonnet",
		Defaults:       defaults,
		RepoDefaults:   repoDefaults,
	})

	// values equal to the template default are suppressed
	assert.NotContains(t, string(rendered), "web_commit_signoff_required")
	assert.NotContains(t, string(rendered), "private")
	assert.Contains(t, string(rendered), "orgs.newRepo('website')")
	assert.Contains(t, string(rendered), "orgs.newBranchProtectionRule('main')")

	orgFile := filepath.Join(dir, "orgs", "testorg.jsonnet")
	_, err = WriteOrgConfig(orgFile, rendered)
	require.NoError(t, err)

	loaded, err := eval.LoadOrganization(orgFile)
	require.NoError(t, err)

	assert.Equal(t, "testorg", loaded.GitHubID)
	assert.Equal(t, "billing@testorg.example", *loaded.Settings.BillingEmail)
	require.Len(t, loaded.Webhooks, 1)
	assert.Equal(t, []string{"push", "pull_request"}, loaded.Webhooks[0].Events)
	require.Len(t, loaded.Repositories, 1)

	repo := loaded.Repositories[0]
	assert.Equal(t, "website", repo.GetName())
	assert.Equal(t, "the org website", *repo.Description)
	require.Len(t, repo.BranchProtectionRules, 1)
	assert.Equal(t, 2, *repo.BranchProtectionRules[0].RequiredApprovingReviewCount)
	// template default survives the round trip
	assert.False(t, *repo.Private)
}

func TestWriteOrgConfig_Backup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orgs", "testorg.jsonnet")

	backup, err := WriteOrgConfig(path, []byte("first version\n"))
	require.NoError(t, err)
	assert.Empty(t, backup)

	backup, err = WriteOrgConfig(path, []byte("second version\n"))
	require.NoError(t, err)
	assert.Equal(t, path+".bak", backup)

	backedUp, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "first version\n", string(backedUp))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second version\n", string(current))
}

func TestTemplateSync_LocalFile(t *testing.T) {
	_, templatePath := writeTestTemplate(t)
	sync := NewTemplateSync(t.TempDir(), "")

	ref := &TemplateRef{Path: templatePath}
	resolved, err := sync.Sync(context.Background(), ref)

	require.NoError(t, err)
	assert.Equal(t, templatePath, resolved)

	_, err = sync.Sync(context.Background(), &TemplateRef{Path: filepath.Join(t.TempDir(), "missing.libsonnet")})
	require.Error(t, err)
}
