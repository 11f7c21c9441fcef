package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"

	"otterdog/pkg/models"
)

// GetOrgSettings retrieves the settings of an organization, including its
// security managers and workflow settings
func (c *Client) GetOrgSettings(ctx context.Context, org string) (*models.OrganizationSettings, error) {
	var ghOrg *github.Organization

	err := WithRetry(ctx, func() error {
		var err error
		ghOrg, _, err = c.client.Organizations.Get(ctx, org)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("organization %s", org))
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	settings := convertOrganization(ghOrg)

	managers, err := c.listSecurityManagers(ctx, org)
	if err != nil {
		return nil, err
	}
	settings.SecurityManagers = managers

	workflows, err := c.GetOrgWorkflowSettings(ctx, org)
	if err != nil {
		return nil, err
	}
	settings.Workflows = workflows

	return settings, nil
}

// UpdateOrgSettings applies changed settings to an organization. Security
// managers are reconciled through their own endpoint, everything else is
// patched in a single request.
func (c *Client) UpdateOrgSettings(ctx context.Context, org string, fields map[string]any) error {
	patch := make(map[string]any, len(fields))
	for key, value := range fields {
		patch[key] = value
	}

	if managers, ok := patch["security_managers"]; ok {
		delete(patch, "security_managers")
		if err := c.updateSecurityManagers(ctx, org, toStringSlice(managers)); err != nil {
			return err
		}
	}

	if len(patch) == 0 {
		return nil
	}

	return WithRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("orgs/%s", org), patch, nil)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("organization %s", org))
		}
		return nil
	}, c.retry)
}

// convertOrganization converts a GitHub API organization to settings
func convertOrganization(org *github.Organization) *models.OrganizationSettings {
	settings := &models.OrganizationSettings{
		Name:                                org.Name,
		Description:                         org.Description,
		Email:                               org.Email,
		Location:                            org.Location,
		Company:                             org.Company,
		BillingEmail:                        org.BillingEmail,
		Blog:                                org.Blog,
		TwitterUsername:                     org.TwitterUsername,
		HasOrganizationProjects:             org.HasOrganizationProjects,
		HasRepositoryProjects:               org.HasRepositoryProjects,
		DefaultRepositoryPermission:         org.DefaultRepoPermission,
		MembersCanCreatePrivateRepositories: org.MembersCanCreatePrivateRepos,
		MembersCanCreatePublicRepositories:  org.MembersCanCreatePublicRepos,
		MembersCanForkPrivateRepositories:   org.MembersCanForkPrivateRepos,
		MembersCanCreatePublicPages:         org.MembersCanCreatePublicPages,
		WebCommitSignoffRequired:            org.WebCommitSignoffRequired,
		DependabotAlertsEnabledForNewRepositories:          org.DependabotAlertsEnabledForNewRepos,
		DependabotSecurityUpdatesEnabledForNewRepositories: org.DependabotSecurityUpdatesEnabledForNewRepos,
		DependencyGraphEnabledForNewRepositories:           org.DependencyGraphEnabledForNewRepos,
		TwoFactorRequirement:                               org.TwoFactorRequirementEnabled,
	}

	if org.Plan != nil {
		settings.Plan = org.Plan.Name
	}

	return settings
}

// listSecurityManagers returns the team slugs with the security manager role
func (c *Client) listSecurityManagers(ctx context.Context, org string) ([]string, error) {
	var teams []*github.Team

	err := WithRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("orgs/%s/security-managers", org), nil, &teams)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("security managers for %s", org))
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	managers := make([]string, 0, len(teams))
	for _, team := range teams {
		managers = append(managers, team.GetSlug())
	}
	return managers, nil
}

// updateSecurityManagers reconciles the security manager teams of an
// organization towards the expected list
func (c *Client) updateSecurityManagers(ctx context.Context, org string, expected []string) error {
	current, err := c.listSecurityManagers(ctx, org)
	if err != nil {
		return err
	}

	currentSet := make(map[string]bool, len(current))
	for _, team := range current {
		currentSet[team] = true
	}
	expectedSet := make(map[string]bool, len(expected))
	for _, team := range expected {
		expectedSet[team] = true
	}

	for _, team := range expected {
		if currentSet[team] {
			continue
		}
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("orgs/%s/security-managers/teams/%s", org, team), nil, nil)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("security manager team %s for %s", team, org))
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	for _, team := range current {
		if expectedSet[team] {
			continue
		}
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("orgs/%s/security-managers/teams/%s", org, team), nil, nil)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("security manager team %s for %s", team, org))
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	return nil
}

// orgActionsPermissions mirrors the actions permissions endpoint payload
type orgActionsPermissions struct {
	EnabledRepositories *string `json:"enabled_repositories,omitempty"`
	AllowedActions      *string `json:"allowed_actions,omitempty"`
}

// selectedActions mirrors the selected-actions endpoint payload
type selectedActions struct {
	GitHubOwnedAllowed *bool    `json:"github_owned_allowed,omitempty"`
	VerifiedAllowed    *bool    `json:"verified_allowed,omitempty"`
	PatternsAllowed    []string `json:"patterns_allowed,omitempty"`
}

// workflowDefaults mirrors the workflow permissions endpoint payload
type workflowDefaults struct {
	DefaultWorkflowPermissions   *string `json:"default_workflow_permissions,omitempty"`
	CanApprovePullRequestReviews *bool   `json:"can_approve_pull_request_reviews,omitempty"`
}

// GetOrgWorkflowSettings retrieves the GitHub Actions settings of an
// organization, assembled from the permissions endpoints
func (c *Client) GetOrgWorkflowSettings(ctx context.Context, org string) (*models.OrganizationWorkflowSettings, error) {
	resource := fmt.Sprintf("workflow settings for %s", org)
	settings := &models.OrganizationWorkflowSettings{}

	var permissions orgActionsPermissions
	err := WithRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("orgs/%s/actions/permissions", org), nil, &permissions)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}
	settings.EnabledRepositories = permissions.EnabledRepositories
	settings.AllowedActions = permissions.AllowedActions

	if permissions.EnabledRepositories != nil && *permissions.EnabledRepositories == "selected" {
		var selected struct {
			Repositories []*github.Repository `json:"repositories"`
		}
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("orgs/%s/actions/permissions/repositories?per_page=100", org), nil, &selected)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(selected.Repositories))
		for _, repo := range selected.Repositories {
			names = append(names, repo.GetName())
		}
		settings.SelectedRepositories = names
	} else {
		settings.SelectedRepositories = []string{}
	}

	if permissions.AllowedActions != nil && *permissions.AllowedActions == "selected" {
		var allowed selectedActions
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("orgs/%s/actions/permissions/selected-actions", org), nil, &allowed)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return nil, err
		}
		settings.AllowGitHubOwnedActions = allowed.GitHubOwnedAllowed
		settings.AllowVerifiedCreatorActions = allowed.VerifiedAllowed
		settings.AllowActionPatterns = allowed.PatternsAllowed
	}

	var defaults workflowDefaults
	err = WithRetry(ctx, func() error {
		_, err := c.do(ctx, http.MethodGet, fmt.Sprintf("orgs/%s/actions/permissions/workflow", org), nil, &defaults)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}
	settings.DefaultWorkflowPermissions = defaults.DefaultWorkflowPermissions
	settings.ActionsCanApprovePullRequestReviews = defaults.CanApprovePullRequestReviews

	return settings, nil
}

// UpdateOrgWorkflowSettings applies changed workflow settings, routing each
// field to the permissions endpoint that manages it
func (c *Client) UpdateOrgWorkflowSettings(ctx context.Context, org string, fields map[string]any) error {
	resource := fmt.Sprintf("workflow settings for %s", org)

	var permissions orgActionsPermissions
	if v, ok := fields["enabled_repositories"]; ok {
		permissions.EnabledRepositories = github.String(fmt.Sprintf("%v", v))
	}
	if v, ok := fields["allowed_actions"]; ok {
		permissions.AllowedActions = github.String(fmt.Sprintf("%v", v))
	}
	if permissions.EnabledRepositories != nil || permissions.AllowedActions != nil {
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("orgs/%s/actions/permissions", org), permissions, nil)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	if v, ok := fields["selected_repositories"]; ok {
		ids, err := c.repositoryIDs(ctx, org, toStringSlice(v))
		if err != nil {
			return err
		}
		payload := map[string]any{"selected_repository_ids": ids}
		err = WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("orgs/%s/actions/permissions/repositories", org), payload, nil)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	var allowed selectedActions
	allowedChanged := false
	if v, ok := fields["allow_github_owned_actions"]; ok {
		allowed.GitHubOwnedAllowed = github.Bool(v == true)
		allowedChanged = true
	}
	if v, ok := fields["allow_verified_creator_actions"]; ok {
		allowed.VerifiedAllowed = github.Bool(v == true)
		allowedChanged = true
	}
	if v, ok := fields["allow_action_patterns"]; ok {
		allowed.PatternsAllowed = toStringSlice(v)
		allowedChanged = true
	}
	if allowedChanged {
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("orgs/%s/actions/permissions/selected-actions", org), allowed, nil)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	var defaults workflowDefaults
	if v, ok := fields["default_workflow_permissions"]; ok {
		defaults.DefaultWorkflowPermissions = github.String(fmt.Sprintf("%v", v))
	}
	if v, ok := fields["actions_can_approve_pull_request_reviews"]; ok {
		defaults.CanApprovePullRequestReviews = github.Bool(v == true)
	}
	if defaults.DefaultWorkflowPermissions != nil || defaults.CanApprovePullRequestReviews != nil {
		err := WithRetry(ctx, func() error {
			_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("orgs/%s/actions/permissions/workflow", org), defaults, nil)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListOrgWebhooks lists all webhooks of an organization
func (c *Client) ListOrgWebhooks(ctx context.Context, org string) ([]models.OrganizationWebhook, error) {
	var webhooks []models.OrganizationWebhook

	err := WithRetry(ctx, func() error {
		webhooks = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			hooks, resp, err := c.client.Organizations.ListHooks(ctx, org, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("webhooks for %s", org))
			}
			for _, hook := range hooks {
				webhooks = append(webhooks, models.OrganizationWebhook{Webhook: convertHook(hook)})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return webhooks, err
}

// CreateOrgWebhook creates a new webhook for an organization
func (c *Client) CreateOrgWebhook(ctx context.Context, org string, webhook *models.OrganizationWebhook) error {
	hook := buildHook(&webhook.Webhook)

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Organizations.CreateHook(ctx, org, hook)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("webhook for %s", org))
		}
		return nil
	}, c.retry)
}

// UpdateOrgWebhook updates an existing organization webhook
func (c *Client) UpdateOrgWebhook(ctx context.Context, org string, webhookID int64, webhook *models.OrganizationWebhook) error {
	hook := buildHook(&webhook.Webhook)

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Organizations.EditHook(ctx, org, webhookID, hook)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("webhook %d for %s", webhookID, org))
		}
		return nil
	}, c.retry)
}

// DeleteOrgWebhook deletes a webhook from an organization
func (c *Client) DeleteOrgWebhook(ctx context.Context, org string, webhookID int64) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Organizations.DeleteHook(ctx, org, webhookID)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("webhook %d for %s", webhookID, org))
		}
		return nil
	}, c.retry)
}

// convertHook converts a GitHub API hook to the webhook resource. The API
// redacts configured secrets to a dummy value which is passed through.
func convertHook(hook *github.Hook) models.Webhook {
	webhook := models.Webhook{
		ID:     hook.ID,
		Active: hook.Active,
		Events: hook.Events,
	}
	if config := hook.Config; config != nil {
		webhook.URL = config.URL
		webhook.ContentType = config.ContentType
		webhook.InsecureSSL = config.InsecureSSL
		webhook.Secret = config.Secret
	}
	return webhook
}

// buildHook converts a webhook resource to the GitHub API shape. Dummy
// secrets are not sent, the configured secret stays untouched in that case.
func buildHook(webhook *models.Webhook) *github.Hook {
	config := &github.HookConfig{
		URL:         webhook.URL,
		ContentType: webhook.ContentType,
		InsecureSSL: webhook.InsecureSSL,
	}

	if webhook.Secret != nil && *webhook.Secret != "" && !webhook.HasDummySecret() {
		config.Secret = webhook.Secret
	}

	return &github.Hook{
		Name:   github.String("web"),
		Config: config,
		Events: webhook.Events,
		Active: webhook.Active,
	}
}

// ListOrgSecrets lists all action secrets of an organization. Secret values
// are not exposed by the API and are reported with the dummy value.
func (c *Client) ListOrgSecrets(ctx context.Context, org string) ([]models.OrganizationSecret, error) {
	var ghSecrets []*github.Secret

	err := WithRetry(ctx, func() error {
		ghSecrets = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			secrets, resp, err := c.client.Actions.ListOrgSecrets(ctx, org, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("secrets for %s", org))
			}
			ghSecrets = append(ghSecrets, secrets.Secrets...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	secrets := make([]models.OrganizationSecret, 0, len(ghSecrets))
	for _, ghSecret := range ghSecrets {
		secret := models.OrganizationSecret{
			Secret: models.Secret{
				Name:  github.String(ghSecret.Name),
				Value: github.String(models.DummySecretValue),
			},
			Visibility:           github.String(ghSecret.Visibility),
			SelectedRepositories: []string{},
		}
		if ghSecret.Visibility == "selected" {
			names, err := c.listSelectedReposForOrgSecret(ctx, org, ghSecret.Name)
			if err != nil {
				return nil, err
			}
			secret.SelectedRepositories = names
		}
		secrets = append(secrets, secret)
	}
	return secrets, nil
}

func (c *Client) listSelectedReposForOrgSecret(ctx context.Context, org, name string) ([]string, error) {
	var names []string

	err := WithRetry(ctx, func() error {
		names = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			repos, resp, err := c.client.Actions.ListSelectedReposForOrgSecret(ctx, org, name, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("secret %s for %s", name, org))
			}
			for _, repo := range repos.Repositories {
				names = append(names, repo.GetName())
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return names, err
}

// CreateOrUpdateOrgSecret creates or updates an organization secret. The
// value is sealed with the organization public key before transmission.
func (c *Client) CreateOrUpdateOrgSecret(ctx context.Context, org string, secret *models.OrganizationSecret) error {
	resource := fmt.Sprintf("secret %s for %s", secret.GetName(), org)

	var publicKey *github.PublicKey
	err := WithRetry(ctx, func() error {
		var err error
		publicKey, _, err = c.client.Actions.GetOrgPublicKey(ctx, org)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil {
		return err
	}

	encrypted, err := encryptSecret(publicKey.GetKey(), derefStr(secret.Value))
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", resource, err)
	}

	eSecret := &github.EncryptedSecret{
		Name:           secret.GetName(),
		KeyID:          publicKey.GetKeyID(),
		EncryptedValue: encrypted,
		Visibility:     derefStr(secret.Visibility),
	}

	if eSecret.Visibility == "selected" {
		ids, err := c.repositoryIDs(ctx, org, secret.SelectedRepositories)
		if err != nil {
			return err
		}
		eSecret.SelectedRepositoryIDs = github.SelectedRepoIDs(ids)
	}

	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.CreateOrUpdateOrgSecret(ctx, org, eSecret)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
}

// DeleteOrgSecret deletes an organization secret
func (c *Client) DeleteOrgSecret(ctx context.Context, org, name string) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.DeleteOrgSecret(ctx, org, name)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("secret %s for %s", name, org))
		}
		return nil
	}, c.retry)
}

// ListOrgVariables lists all action variables of an organization
func (c *Client) ListOrgVariables(ctx context.Context, org string) ([]models.OrganizationVariable, error) {
	var ghVariables []*github.ActionsVariable

	err := WithRetry(ctx, func() error {
		ghVariables = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			variables, resp, err := c.client.Actions.ListOrgVariables(ctx, org, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("variables for %s", org))
			}
			ghVariables = append(ghVariables, variables.Variables...)
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)
	if err != nil {
		return nil, err
	}

	variables := make([]models.OrganizationVariable, 0, len(ghVariables))
	for _, ghVariable := range ghVariables {
		variable := models.OrganizationVariable{
			Variable: models.Variable{
				Name:  github.String(ghVariable.Name),
				Value: github.String(ghVariable.Value),
			},
			Visibility:           ghVariable.Visibility,
			SelectedRepositories: []string{},
		}
		if ghVariable.Visibility != nil && *ghVariable.Visibility == "selected" {
			names, err := c.listSelectedReposForOrgVariable(ctx, org, ghVariable.Name)
			if err != nil {
				return nil, err
			}
			variable.SelectedRepositories = names
		}
		variables = append(variables, variable)
	}
	return variables, nil
}

func (c *Client) listSelectedReposForOrgVariable(ctx context.Context, org, name string) ([]string, error) {
	var names []string

	err := WithRetry(ctx, func() error {
		names = nil
		opts := &github.ListOptions{PerPage: 100}
		for {
			repos, resp, err := c.client.Actions.ListSelectedReposForOrgVariable(ctx, org, name, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("variable %s for %s", name, org))
			}
			for _, repo := range repos.Repositories {
				names = append(names, repo.GetName())
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
		return nil
	}, c.retry)

	return names, err
}

// CreateOrgVariable creates a new organization variable
func (c *Client) CreateOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) error {
	ghVariable, err := c.buildOrgVariable(ctx, org, variable)
	if err != nil {
		return err
	}

	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.CreateOrgVariable(ctx, org, ghVariable)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("variable %s for %s", variable.GetName(), org))
		}
		return nil
	}, c.retry)
}

// UpdateOrgVariable updates an existing organization variable
func (c *Client) UpdateOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) error {
	ghVariable, err := c.buildOrgVariable(ctx, org, variable)
	if err != nil {
		return err
	}

	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.UpdateOrgVariable(ctx, org, ghVariable)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("variable %s for %s", variable.GetName(), org))
		}
		return nil
	}, c.retry)
}

// DeleteOrgVariable deletes an organization variable
func (c *Client) DeleteOrgVariable(ctx context.Context, org, name string) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Actions.DeleteOrgVariable(ctx, org, name)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("variable %s for %s", name, org))
		}
		return nil
	}, c.retry)
}

func (c *Client) buildOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) (*github.ActionsVariable, error) {
	ghVariable := &github.ActionsVariable{
		Name:       variable.GetName(),
		Value:      derefStr(variable.Value),
		Visibility: variable.Visibility,
	}

	if variable.Visibility != nil && *variable.Visibility == "selected" {
		ids, err := c.repositoryIDs(ctx, org, variable.SelectedRepositories)
		if err != nil {
			return nil, err
		}
		selected := github.SelectedRepoIDs(ids)
		ghVariable.SelectedRepositoryIDs = &selected
	}

	return ghVariable, nil
}

// repositoryIDs resolves repository names to their numeric IDs
func (c *Client) repositoryIDs(ctx context.Context, org string, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		var repo *github.Repository
		err := WithRetry(ctx, func() error {
			var err error
			repo, _, err = c.client.Repositories.Get(ctx, org, name)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("repository %s/%s", org, name))
			}
			return nil
		}, c.retry)
		if err != nil {
			return nil, err
		}
		ids = append(ids, repo.GetID())
	}
	return ids, nil
}

func toStringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			result = append(result, fmt.Sprintf("%v", item))
		}
		return result
	default:
		return nil
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
