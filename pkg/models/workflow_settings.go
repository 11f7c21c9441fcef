package models

var validAllowedActions = map[string]bool{
	"all":        true,
	"local_only": true,
	"selected":   true,
}

var validWorkflowPermissions = map[string]bool{
	"read":  true,
	"write": true,
}

var validEnabledRepositories = map[string]bool{
	"all":      true,
	"none":     true,
	"selected": true,
}

// WorkflowSettings models the GitHub Actions settings shared between the
// organization and repository level.
type WorkflowSettings struct {
	AllowedActions                       *string  `json:"allowed_actions"`
	AllowGitHubOwnedActions              *bool    `json:"allow_github_owned_actions"`
	AllowVerifiedCreatorActions          *bool    `json:"allow_verified_creator_actions"`
	AllowActionPatterns                  []string `json:"allow_action_patterns"`
	DefaultWorkflowPermissions           *string  `json:"default_workflow_permissions"`
	ActionsCanApprovePullRequestReviews  *bool    `json:"actions_can_approve_pull_request_reviews"`
}

func (s *WorkflowSettings) validate(vc *ValidationContext, object string) {
	allowed := ""
	if s.AllowedActions != nil {
		allowed = *s.AllowedActions
	}

	if allowed != "" && !validAllowedActions[allowed] {
		vc.Errorf(object, "'allowed_actions' has value '%s', only values ('all' | 'local_only' | 'selected') are allowed", allowed)
	}

	if allowed != "selected" {
		if s.AllowGitHubOwnedActions != nil {
			vc.Warnf(object, "setting 'allow_github_owned_actions' has no effect unless 'allowed_actions' is set to 'selected'")
		}
		if s.AllowVerifiedCreatorActions != nil {
			vc.Warnf(object, "setting 'allow_verified_creator_actions' has no effect unless 'allowed_actions' is set to 'selected'")
		}
		if len(s.AllowActionPatterns) > 0 {
			vc.Warnf(object, "setting 'allow_action_patterns' has no effect unless 'allowed_actions' is set to 'selected'")
		}
	}

	if s.DefaultWorkflowPermissions != nil && !validWorkflowPermissions[*s.DefaultWorkflowPermissions] {
		vc.Errorf(object, "'default_workflow_permissions' has value '%s', only values ('read' | 'write') are allowed",
			*s.DefaultWorkflowPermissions)
	}
}

// OrganizationWorkflowSettings extends the shared workflow settings with the
// selection of repositories Actions is enabled for.
type OrganizationWorkflowSettings struct {
	WorkflowSettings
	EnabledRepositories  *string  `json:"enabled_repositories"`
	SelectedRepositories []string `json:"selected_repositories"`
}

// Validate checks the organization workflow settings.
func (s *OrganizationWorkflowSettings) Validate(vc *ValidationContext) {
	const object = "workflow settings"

	enabled := ""
	if s.EnabledRepositories != nil {
		enabled = *s.EnabledRepositories
	}

	if enabled != "" && !validEnabledRepositories[enabled] {
		vc.Errorf(object, "'enabled_repositories' has value '%s', only values ('all' | 'none' | 'selected') are allowed", enabled)
	}
	if enabled == "selected" && len(s.SelectedRepositories) == 0 {
		vc.Errorf(object, "setting 'enabled_repositories' to 'selected' requires a non-empty list of 'selected_repositories'")
	}
	if enabled != "selected" && enabled != "" && len(s.SelectedRepositories) > 0 {
		vc.Warnf(object, "setting 'selected_repositories' has no effect unless 'enabled_repositories' is set to 'selected'")
	}

	s.WorkflowSettings.validate(vc, object)
}

// RepositoryWorkflowSettings carries the repository level workflow settings.
type RepositoryWorkflowSettings struct {
	WorkflowSettings
	Enabled *bool `json:"enabled"`
}

// Validate checks the repository workflow settings of the named repository.
func (s *RepositoryWorkflowSettings) Validate(vc *ValidationContext, repoName string) {
	s.WorkflowSettings.validate(vc, "repo["+repoName+"].workflows")
}
