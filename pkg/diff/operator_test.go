package diff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"otterdog/pkg/models"
	"otterdog/pkg/providers/github"
)

// MockProvider is a mock implementation of Provider for testing
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) UpdateOrgSettings(ctx context.Context, org string, fields map[string]any) error {
	args := m.Called(ctx, org, fields)
	return args.Error(0)
}

func (m *MockProvider) UpdateOrgWorkflowSettings(ctx context.Context, org string, fields map[string]any) error {
	args := m.Called(ctx, org, fields)
	return args.Error(0)
}

func (m *MockProvider) CreateOrgWebhook(ctx context.Context, org string, webhook *models.OrganizationWebhook) error {
	args := m.Called(ctx, org, webhook)
	return args.Error(0)
}

func (m *MockProvider) UpdateOrgWebhook(ctx context.Context, org string, webhookID int64, webhook *models.OrganizationWebhook) error {
	args := m.Called(ctx, org, webhookID, webhook)
	return args.Error(0)
}

func (m *MockProvider) DeleteOrgWebhook(ctx context.Context, org string, webhookID int64) error {
	args := m.Called(ctx, org, webhookID)
	return args.Error(0)
}

func (m *MockProvider) CreateOrUpdateOrgSecret(ctx context.Context, org string, secret *models.OrganizationSecret) error {
	args := m.Called(ctx, org, secret)
	return args.Error(0)
}

func (m *MockProvider) DeleteOrgSecret(ctx context.Context, org, name string) error {
	args := m.Called(ctx, org, name)
	return args.Error(0)
}

func (m *MockProvider) CreateOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) error {
	args := m.Called(ctx, org, variable)
	return args.Error(0)
}

func (m *MockProvider) UpdateOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) error {
	args := m.Called(ctx, org, variable)
	return args.Error(0)
}

func (m *MockProvider) DeleteOrgVariable(ctx context.Context, org, name string) error {
	args := m.Called(ctx, org, name)
	return args.Error(0)
}

func (m *MockProvider) CreateRepository(ctx context.Context, org string, repo *models.Repository) error {
	args := m.Called(ctx, org, repo)
	return args.Error(0)
}

func (m *MockProvider) UpdateRepository(ctx context.Context, org, name string, fields map[string]any) error {
	args := m.Called(ctx, org, name, fields)
	return args.Error(0)
}

func (m *MockProvider) DeleteRepository(ctx context.Context, org, name string) error {
	args := m.Called(ctx, org, name)
	return args.Error(0)
}

func (m *MockProvider) UpdateRepoWorkflowSettings(ctx context.Context, org, name string, fields map[string]any) error {
	args := m.Called(ctx, org, name, fields)
	return args.Error(0)
}

func (m *MockProvider) CreateRepoWebhook(ctx context.Context, org, repo string, webhook *models.RepositoryWebhook) error {
	args := m.Called(ctx, org, repo, webhook)
	return args.Error(0)
}

func (m *MockProvider) UpdateRepoWebhook(ctx context.Context, org, repo string, webhookID int64, webhook *models.RepositoryWebhook) error {
	args := m.Called(ctx, org, repo, webhookID, webhook)
	return args.Error(0)
}

func (m *MockProvider) DeleteRepoWebhook(ctx context.Context, org, repo string, webhookID int64) error {
	args := m.Called(ctx, org, repo, webhookID)
	return args.Error(0)
}

func (m *MockProvider) CreateOrUpdateRepoSecret(ctx context.Context, org, repo string, secret *models.RepositorySecret) error {
	args := m.Called(ctx, org, repo, secret)
	return args.Error(0)
}

func (m *MockProvider) DeleteRepoSecret(ctx context.Context, org, repo, name string) error {
	args := m.Called(ctx, org, repo, name)
	return args.Error(0)
}

func (m *MockProvider) CreateRepoVariable(ctx context.Context, org, repo string, variable *models.RepositoryVariable) error {
	args := m.Called(ctx, org, repo, variable)
	return args.Error(0)
}

func (m *MockProvider) UpdateRepoVariable(ctx context.Context, org, repo string, variable *models.RepositoryVariable) error {
	args := m.Called(ctx, org, repo, variable)
	return args.Error(0)
}

func (m *MockProvider) DeleteRepoVariable(ctx context.Context, org, repo, name string) error {
	args := m.Called(ctx, org, repo, name)
	return args.Error(0)
}

func (m *MockProvider) CreateOrUpdateEnvironment(ctx context.Context, org, repo string, env *models.Environment) error {
	args := m.Called(ctx, org, repo, env)
	return args.Error(0)
}

func (m *MockProvider) DeleteEnvironment(ctx context.Context, org, repo, name string) error {
	args := m.Called(ctx, org, repo, name)
	return args.Error(0)
}

func (m *MockProvider) UpdateBranchProtectionRule(ctx context.Context, org, repo string, rule *models.BranchProtectionRule) error {
	args := m.Called(ctx, org, repo, rule)
	return args.Error(0)
}

func (m *MockProvider) DeleteBranchProtectionRule(ctx context.Context, org, repo, branch string) error {
	args := m.Called(ctx, org, repo, branch)
	return args.Error(0)
}

func int64p(v int64) *int64 { return &v }

func testWebhook(id *int64) models.Webhook {
	return models.Webhook{
		ID:     id,
		URL:    models.String("https://ci.example.com/hook"),
		Active: models.Bool(true),
		Events: []string{"push"},
	}
}

func testRepository(name string) models.Repository {
	return models.Repository{
		Name:          models.String(name),
		Description:   models.String("backend service"),
		Private:       models.Bool(true),
		Topics:        []string{"go"},
		DefaultBranch: models.String("main"),
	}
}

func expectedOrg() *models.GitHubOrganization {
	return &models.GitHubOrganization{
		GitHubID: "testorg",
		Settings: &models.OrganizationSettings{
			Name:                        models.String("Test Org"),
			BillingEmail:                models.String("billing@testorg.com"),
			ReadersCanCreateDiscussions: models.Bool(false),
			Workflows: &models.OrganizationWorkflowSettings{
				WorkflowSettings: models.WorkflowSettings{
					DefaultWorkflowPermissions: models.String("read"),
				},
				EnabledRepositories: models.String("all"),
			},
		},
		Webhooks: []models.OrganizationWebhook{
			{Webhook: testWebhook(nil)},
		},
		Secrets: []models.OrganizationSecret{
			{
				Secret:     models.Secret{Name: models.String("DEPLOY_TOKEN"), Value: models.String("aws:prod/deploy-token")},
				Visibility: models.String("private"),
			},
		},
		Variables: []models.OrganizationVariable{
			{Variable: models.Variable{Name: models.String("LOG_LEVEL"), Value: models.String("info")}},
		},
		Repositories: []models.Repository{testRepository("backend")},
	}
}

// currentOrg mirrors expectedOrg the way the live provider reports it: ids
// filled in, secret values redacted.
func currentOrg() *models.GitHubOrganization {
	org := expectedOrg()
	org.Webhooks[0].ID = int64p(10)
	org.Secrets[0].Value = models.String(models.DummySecretValue)
	return org
}

func TestOperator_Plan_NoChanges(t *testing.T) {
	op := NewOperator(nil, "testorg", Options{})

	patches := op.Plan(expectedOrg(), currentOrg())

	assert.Empty(t, patches)
}

func TestOperator_Plan_OrgSettingsChange(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Settings.BillingEmail = models.String("new-billing@testorg.com")
	expected.Settings.ReadersCanCreateDiscussions = models.Bool(true)

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	patch := patches[0]
	assert.Equal(t, models.PatchChange, patch.Type)
	assert.Equal(t, models.KindOrgSettings, patch.Kind)
	require.Contains(t, patch.Changes, "billing_email")
	assert.Equal(t, "billing@testorg.com", patch.Changes["billing_email"].From)
	assert.Equal(t, "new-billing@testorg.com", patch.Changes["billing_email"].To)
	assert.NotContains(t, patch.Changes, "readers_can_create_discussions")

	op = NewOperator(nil, "testorg", Options{IncludeWebUI: true})
	patches = op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.Contains(t, patches[0].Changes, "readers_can_create_discussions")
}

func TestOperator_Plan_OrgWorkflowSettingsChange(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Settings.Workflows.DefaultWorkflowPermissions = models.String("write")

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.Equal(t, models.KindOrgWorkflowSettings, patches[0].Kind)
	require.Contains(t, patches[0].Changes, "default_workflow_permissions")
	assert.Equal(t, "write", patches[0].Changes["default_workflow_permissions"].To)
}

func TestOperator_Plan_WebhookDummySecretSuppressed(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Webhooks[0].Secret = models.String("hook-secret")
	current.Webhooks[0].Secret = models.String("********")

	op := NewOperator(nil, "testorg", Options{})
	assert.Empty(t, op.Plan(expected, current))

	op = NewOperator(nil, "testorg", Options{UpdateWebhooks: true})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.Equal(t, models.KindOrgWebhook, patches[0].Kind)
	assert.True(t, patches[0].Forced)
	require.Contains(t, patches[0].Changes, "secret")
	assert.Equal(t, "hook-secret", patches[0].Changes["secret"].To)
}

func TestOperator_Plan_WebhookOtherChangesSurviveSuppression(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Webhooks[0].Secret = models.String("hook-secret")
	expected.Webhooks[0].Events = []string{"push", "pull_request"}
	current.Webhooks[0].Secret = models.String("********")

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.False(t, patches[0].Forced)
	assert.Contains(t, patches[0].Changes, "events")
	assert.NotContains(t, patches[0].Changes, "secret")
}

func TestOperator_Plan_WebhookRealSecretChangeIsKept(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Webhooks[0].Secret = models.String("new-secret")
	current.Webhooks[0].Secret = models.String("old-secret")

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.False(t, patches[0].Forced)
	assert.Contains(t, patches[0].Changes, "secret")
}

func TestOperator_Plan_SecretDummyValueSuppressed(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()

	op := NewOperator(nil, "testorg", Options{})
	assert.Empty(t, op.Plan(expected, current))

	op = NewOperator(nil, "testorg", Options{UpdateSecrets: true})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.Equal(t, models.KindOrgSecret, patches[0].Kind)
	assert.Equal(t, "DEPLOY_TOKEN", patches[0].Name)
	assert.True(t, patches[0].Forced)
	assert.Contains(t, patches[0].Changes, "value")
}

func TestOperator_Plan_SecretVisibilityChangeIsNotSuppressed(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Secrets[0].Visibility = models.String("public")

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.False(t, patches[0].Forced)
	assert.Contains(t, patches[0].Changes, "visibility")
	assert.NotContains(t, patches[0].Changes, "value")
}

func TestOperator_Plan_OrgVariableChange(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Variables[0].Value = models.String("debug")

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.Equal(t, models.KindOrgVariable, patches[0].Kind)
	assert.Equal(t, "LOG_LEVEL", patches[0].Name)
	require.Contains(t, patches[0].Changes, "value")
	assert.Equal(t, "debug", patches[0].Changes["value"].To)
}

func TestOperator_Plan_RepositoryAddAndRemove(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()

	newRepo := testRepository("new-service")
	newRepo.Workflows = &models.RepositoryWorkflowSettings{Enabled: models.Bool(true)}
	newRepo.Webhooks = []models.RepositoryWebhook{{Webhook: testWebhook(nil)}}
	newRepo.Secrets = []models.RepositorySecret{
		{Secret: models.Secret{Name: models.String("TOKEN"), Value: models.String("aws:prod/token")}},
	}
	newRepo.Variables = []models.RepositoryVariable{
		{Variable: models.Variable{Name: models.String("STAGE"), Value: models.String("prod")}},
	}
	newRepo.Environments = []models.Environment{{Name: models.String("production")}}
	newRepo.BranchProtectionRules = []models.BranchProtectionRule{{Pattern: models.String("main")}}
	expected.Repositories = append(expected.Repositories, newRepo)

	current.Repositories = append(current.Repositories, testRepository("legacy"))

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 8)

	wantKinds := []models.ResourceKind{
		models.KindRepository,
		models.KindRepoWorkflowSettings,
		models.KindRepoWebhook,
		models.KindRepoSecret,
		models.KindRepoVariable,
		models.KindEnvironment,
		models.KindBranchProtectionRule,
	}
	for i, kind := range wantKinds {
		assert.Equal(t, models.PatchAdd, patches[i].Type)
		assert.Equal(t, kind, patches[i].Kind)
	}
	assert.Equal(t, "new-service", patches[0].Name)
	assert.Equal(t, "new-service", patches[1].RepoName)

	last := patches[7]
	assert.Equal(t, models.PatchRemove, last.Type)
	assert.Equal(t, models.KindRepository, last.Kind)
	assert.Equal(t, "legacy", last.Name)
}

func TestOperator_Plan_RepositoryRenameViaAlias(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Repositories[0].Name = models.String("backend-v2")
	expected.Repositories[0].Aliases = []string{"backend"}

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	patch := patches[0]
	assert.Equal(t, models.PatchChange, patch.Type)
	assert.Equal(t, models.KindRepository, patch.Kind)
	require.Contains(t, patch.Changes, "name")
	assert.Equal(t, "backend", patch.Changes["name"].From)
	assert.Equal(t, "backend-v2", patch.Changes["name"].To)
}

func TestOperator_Plan_ExactNameBindsBeforeAlias(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()

	aliased := testRepository("backend")
	aliased.Aliases = []string{"legacy"}
	expected.Repositories = []models.Repository{aliased, testRepository("legacy")}
	current.Repositories = []models.Repository{testRepository("legacy"), testRepository("backend")}

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	assert.Empty(t, patches)
}

func TestOperator_Plan_ArchivedRepositoryRestrictsFields(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Repositories[0].Archived = models.Bool(true)
	expected.Repositories[0].Description = models.String("retired backend")
	expected.Repositories[0].DefaultBranch = models.String("develop")
	expected.Repositories[0].Webhooks = []models.RepositoryWebhook{{Webhook: testWebhook(nil)}}
	current.Repositories[0].Archived = models.Bool(true)

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	patch := patches[0]
	assert.Equal(t, models.KindRepository, patch.Kind)
	assert.Contains(t, patch.Changes, "description")
	assert.NotContains(t, patch.Changes, "default_branch")
}

func TestOperator_Plan_NestedEnvironmentChange(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Repositories[0].Environments = []models.Environment{
		{Name: models.String("production"), WaitTimer: models.Int(60), DeploymentBranchPolicy: models.String("all")},
	}
	current.Repositories[0].Environments = []models.Environment{
		{Name: models.String("production"), WaitTimer: models.Int(30), DeploymentBranchPolicy: models.String("all")},
	}

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	patch := patches[0]
	assert.Equal(t, models.KindEnvironment, patch.Kind)
	assert.Equal(t, "backend", patch.RepoName)
	assert.Equal(t, "production", patch.Name)
	require.Contains(t, patch.Changes, "wait_timer")
	assert.Equal(t, 30, patch.Changes["wait_timer"].From)
	assert.Equal(t, 60, patch.Changes["wait_timer"].To)
}

func TestOperator_Plan_PagesEnvironmentIsExempt(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Repositories[0].GHPagesBuildType = models.String("legacy")
	expected.Repositories[0].GHPagesSourceBranch = models.String("gh-pages")
	current.Repositories[0].GHPagesBuildType = models.String("legacy")
	current.Repositories[0].GHPagesSourceBranch = models.String("gh-pages")
	current.Repositories[0].Environments = []models.Environment{{Name: models.String("github-pages")}}

	op := NewOperator(nil, "testorg", Options{})
	assert.Empty(t, op.Plan(expected, current))
}

func TestOperator_Plan_PagesEnvironmentDiffedWhenPagesDisabled(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Repositories[0].GHPagesBuildType = models.String("disabled")
	current.Repositories[0].GHPagesBuildType = models.String("disabled")
	current.Repositories[0].Environments = []models.Environment{{Name: models.String("github-pages")}}

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 1)
	assert.Equal(t, models.PatchRemove, patches[0].Type)
	assert.Equal(t, models.KindEnvironment, patches[0].Kind)
	assert.Equal(t, "github-pages", patches[0].Name)
}

func TestOperator_Plan_Ordering(t *testing.T) {
	expected, current := expectedOrg(), currentOrg()
	expected.Settings.BillingEmail = models.String("new-billing@testorg.com")
	expected.Webhooks = append(expected.Webhooks, models.OrganizationWebhook{
		Webhook: models.Webhook{URL: models.String("https://new.example.com/hook")},
	})
	expected.Secrets = append(expected.Secrets, models.OrganizationSecret{
		Secret: models.Secret{Name: models.String("NEW_SECRET"), Value: models.String("aws:prod/new")},
	})
	expected.Variables = append(expected.Variables, models.OrganizationVariable{
		Variable: models.Variable{Name: models.String("NEW_VAR"), Value: models.String("1")},
	})
	expected.Repositories[0].Description = models.String("changed")

	op := NewOperator(nil, "testorg", Options{})
	patches := op.Plan(expected, current)

	require.Len(t, patches, 5)
	wantKinds := []models.ResourceKind{
		models.KindOrgSettings,
		models.KindOrgWebhook,
		models.KindOrgSecret,
		models.KindOrgVariable,
		models.KindRepository,
	}
	for i, kind := range wantKinds {
		assert.Equal(t, kind, patches[i].Kind)
	}
}

func TestOperator_Apply_RoutesPatches(t *testing.T) {
	provider := &MockProvider{}
	op := NewOperator(provider, "testorg", Options{})

	webhook := &models.OrganizationWebhook{Webhook: testWebhook(nil)}
	repo := &models.Repository{Name: models.String("new-service")}
	workflows := &models.RepositoryWorkflowSettings{Enabled: models.Bool(true)}
	secret := &models.RepositorySecret{Secret: models.Secret{Name: models.String("TOKEN"), Value: models.String("v")}}
	env := &models.Environment{Name: models.String("production")}
	rule := &models.BranchProtectionRule{Pattern: models.String("main"), RequiredApprovingReviewCount: models.Int(2)}

	patches := []models.LivePatch{
		models.NewChangePatch(models.KindOrgSettings, "", "", &models.OrganizationSettings{}, &models.OrganizationSettings{},
			models.Changes{"billing_email": {From: "a@testorg.com", To: "b@testorg.com"}}),
		models.NewAddPatch(models.KindOrgWebhook, "", "https://ci.example.com/hook", webhook),
		models.NewAddPatch(models.KindRepository, "", "new-service", repo),
		models.NewAddPatch(models.KindRepoWorkflowSettings, "new-service", "", workflows),
		models.NewAddPatch(models.KindRepoSecret, "new-service", "TOKEN", secret),
		models.NewAddPatch(models.KindEnvironment, "new-service", "production", env),
		models.NewChangePatch(models.KindBranchProtectionRule, "new-service", "main", rule, &models.BranchProtectionRule{},
			models.Changes{"required_approving_review_count": {From: 1, To: 2}}),
	}

	provider.On("UpdateOrgSettings", mock.Anything, "testorg", map[string]any{"billing_email": "b@testorg.com"}).Return(nil)
	provider.On("CreateOrgWebhook", mock.Anything, "testorg", webhook).Return(nil)
	provider.On("CreateRepository", mock.Anything, "testorg", repo).Return(nil)
	provider.On("UpdateRepoWorkflowSettings", mock.Anything, "testorg", "new-service", map[string]any{"enabled": true}).Return(nil)
	provider.On("CreateOrUpdateRepoSecret", mock.Anything, "testorg", "new-service", secret).Return(nil)
	provider.On("CreateOrUpdateEnvironment", mock.Anything, "testorg", "new-service", env).Return(nil)
	provider.On("UpdateBranchProtectionRule", mock.Anything, "testorg", "new-service", rule).Return(nil)

	result, err := op.Apply(context.Background(), patches)

	require.NoError(t, err)
	assert.Len(t, result.Applied, 7)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.Failed)
	provider.AssertExpectations(t)
}

func TestOperator_Apply_SkipsRemovalsWithoutDeleteResources(t *testing.T) {
	provider := &MockProvider{}
	op := NewOperator(provider, "testorg", Options{})

	patches := []models.LivePatch{
		models.NewRemovePatch(models.KindRepository, "", "legacy", &models.Repository{Name: models.String("legacy")}),
	}

	result, err := op.Apply(context.Background(), patches)

	require.NoError(t, err)
	assert.Empty(t, result.Applied)
	assert.Equal(t, []string{"repo[legacy]"}, result.Skipped)
	provider.AssertNotCalled(t, "DeleteRepository", mock.Anything, mock.Anything, mock.Anything)
}

func TestOperator_Apply_RemovalsWithDeleteResources(t *testing.T) {
	provider := &MockProvider{}
	op := NewOperator(provider, "testorg", Options{DeleteResources: true})

	patches := []models.LivePatch{
		models.NewRemovePatch(models.KindOrgWebhook, "", "https://ci.example.com/hook",
			&models.OrganizationWebhook{Webhook: testWebhook(int64p(10))}),
		models.NewRemovePatch(models.KindRepoWebhook, "backend", "https://ci.example.com/hook",
			&models.RepositoryWebhook{Webhook: testWebhook(int64p(20))}),
		models.NewRemovePatch(models.KindRepository, "", "legacy", &models.Repository{Name: models.String("legacy")}),
	}

	provider.On("DeleteOrgWebhook", mock.Anything, "testorg", int64(10)).Return(nil)
	provider.On("DeleteRepoWebhook", mock.Anything, "testorg", "backend", int64(20)).Return(nil)
	provider.On("DeleteRepository", mock.Anything, "testorg", "legacy").Return(nil)

	result, err := op.Apply(context.Background(), patches)

	require.NoError(t, err)
	assert.Len(t, result.Applied, 3)
	provider.AssertExpectations(t)
}

func TestOperator_Apply_RenameAddressesLiveName(t *testing.T) {
	provider := &MockProvider{}
	op := NewOperator(provider, "testorg", Options{})

	expectedRepo := &models.Repository{Name: models.String("backend-v2")}
	currentRepo := &models.Repository{Name: models.String("backend")}
	patches := []models.LivePatch{
		models.NewChangePatch(models.KindRepository, "", "backend-v2", expectedRepo, currentRepo,
			models.Changes{"name": {From: "backend", To: "backend-v2"}}),
	}

	provider.On("UpdateRepository", mock.Anything, "testorg", "backend", map[string]any{"name": "backend-v2"}).Return(nil)

	_, err := op.Apply(context.Background(), patches)

	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestOperator_Apply_PartialFailure(t *testing.T) {
	provider := &MockProvider{}
	op := NewOperator(provider, "testorg", Options{DeleteResources: true})

	patches := []models.LivePatch{
		models.NewChangePatch(models.KindOrgSettings, "", "", &models.OrganizationSettings{}, &models.OrganizationSettings{},
			models.Changes{"billing_email": {From: "a@testorg.com", To: "b@testorg.com"}}),
		models.NewRemovePatch(models.KindRepository, "", "legacy", &models.Repository{Name: models.String("legacy")}),
	}

	provider.On("UpdateOrgSettings", mock.Anything, "testorg", mock.Anything).Return(nil)
	provider.On("DeleteRepository", mock.Anything, "testorg", "legacy").Return(errors.New("boom"))

	result, err := op.Apply(context.Background(), patches)

	require.Error(t, err)
	var partial *github.PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Succeeded, 1)
	assert.Len(t, partial.Failed, 1)
	assert.Equal(t, []string{"org_settings"}, result.Applied)
	assert.Contains(t, result.Failed, "repo[legacy]")
}

func TestOperator_Apply_WithoutProvider(t *testing.T) {
	op := NewOperator(nil, "testorg", Options{})

	_, err := op.Apply(context.Background(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider")
}

func TestOperator_Apply_MissingWebhookID(t *testing.T) {
	provider := &MockProvider{}
	op := NewOperator(provider, "testorg", Options{})

	patches := []models.LivePatch{
		models.NewChangePatch(models.KindOrgWebhook, "", "https://ci.example.com/hook",
			&models.OrganizationWebhook{Webhook: testWebhook(nil)},
			&models.OrganizationWebhook{Webhook: testWebhook(nil)},
			models.Changes{"active": {From: true, To: false}}),
	}

	result, err := op.Apply(context.Background(), patches)

	require.Error(t, err)
	assert.Contains(t, result.Failed, "org_webhook[https://ci.example.com/hook]")
}
