package models

import "strings"

const maxOrgDescriptionLength = 160

var validRepositoryPermissions = map[string]bool{
	"none":  true,
	"read":  true,
	"write": true,
	"admin": true,
}

// OrganizationSettings models the settings block of a GitHub organization.
// Fields tagged web can only be read and written through the web client,
// fields tagged ro are reported by GitHub but cannot be changed.
type OrganizationSettings struct {
	Name                                           *string  `json:"name"`
	Plan                                           *string  `json:"plan" model:"ro"`
	Description                                    *string  `json:"description"`
	Email                                          *string  `json:"email"`
	Location                                       *string  `json:"location"`
	Company                                        *string  `json:"company"`
	BillingEmail                                   *string  `json:"billing_email"`
	Blog                                           *string  `json:"blog"`
	TwitterUsername                                *string  `json:"twitter_username"`
	HasOrganizationProjects                        *bool    `json:"has_organization_projects"`
	HasRepositoryProjects                          *bool    `json:"has_repository_projects"`
	DefaultRepositoryPermission                    *string  `json:"default_repository_permission"`
	MembersCanCreatePrivateRepositories            *bool    `json:"members_can_create_private_repositories"`
	MembersCanCreatePublicRepositories             *bool    `json:"members_can_create_public_repositories"`
	MembersCanForkPrivateRepositories              *bool    `json:"members_can_fork_private_repositories"`
	MembersCanCreatePublicPages                    *bool    `json:"members_can_create_public_pages"`
	WebCommitSignoffRequired                       *bool    `json:"web_commit_signoff_required"`
	DependabotAlertsEnabledForNewRepositories      *bool    `json:"dependabot_alerts_enabled_for_new_repositories"`
	DependabotSecurityUpdatesEnabledForNewRepositories *bool `json:"dependabot_security_updates_enabled_for_new_repositories"`
	DependencyGraphEnabledForNewRepositories       *bool    `json:"dependency_graph_enabled_for_new_repositories"`
	SecurityManagers                               []string `json:"security_managers"`
	TwoFactorRequirement                           *bool    `json:"two_factor_requirement" model:"ro,web"`
	DefaultBranchName                              *string  `json:"default_branch_name" model:"web"`
	MembersCanChangeRepoVisibility                 *bool    `json:"members_can_change_repo_visibility" model:"web"`
	MembersCanDeleteRepositories                   *bool    `json:"members_can_delete_repositories" model:"web"`
	MembersCanDeleteIssues                         *bool    `json:"members_can_delete_issues" model:"web"`
	MembersCanCreateTeams                          *bool    `json:"members_can_create_teams" model:"web"`
	ReadersCanCreateDiscussions                    *bool    `json:"readers_can_create_discussions" model:"web"`
	MembersCanChangeProjectVisibility              *bool    `json:"members_can_change_project_visibility" model:"web"`
	PackagesContainersPublic                       *bool    `json:"packages_containers_public" model:"web"`
	PackagesContainersInternal                     *bool    `json:"packages_containers_internal" model:"web"`
	HasDiscussions                                 *bool    `json:"has_discussions" model:"web"`
	DiscussionSourceRepository                     *string  `json:"discussion_source_repository" model:"web"`

	Workflows *OrganizationWorkflowSettings `json:"workflows" model:"nested"`
}

// Validate checks the settings block and records findings on vc.
func (s *OrganizationSettings) Validate(vc *ValidationContext) {
	const object = "settings"

	if s.BillingEmail == nil || *s.BillingEmail == "" {
		vc.Errorf(object, "no value for required setting 'billing_email'")
	}

	if s.Description != nil && len(*s.Description) > maxOrgDescriptionLength {
		vc.Errorf(object, "setting 'description' exceeds maximum of %d chars", maxOrgDescriptionLength)
	}

	if s.DefaultRepositoryPermission != nil && !validRepositoryPermissions[*s.DefaultRepositoryPermission] {
		vc.Errorf(object, "'default_repository_permission' has value '%s', only values ('none' | 'read' | 'write' | 'admin') are allowed",
			*s.DefaultRepositoryPermission)
	}

	hasDiscussions := s.HasDiscussions != nil && *s.HasDiscussions
	sourceRepo := ""
	if s.DiscussionSourceRepository != nil {
		sourceRepo = *s.DiscussionSourceRepository
	}
	if hasDiscussions && sourceRepo == "" {
		vc.Errorf(object, "enabling 'has_discussions' requires setting 'discussion_source_repository' as well")
	}
	if sourceRepo != "" && len(strings.Split(sourceRepo, "/")) != 2 {
		vc.Errorf(object, "setting 'discussion_source_repository' must be given in the form 'owner/repo-name'")
	}

	s.validateSecurityImplications(vc, object)

	if s.Workflows != nil {
		s.Workflows.Validate(vc)
	}
}

func (s *OrganizationSettings) validateSecurityImplications(vc *ValidationContext, object string) {
	alerts := s.DependabotAlertsEnabledForNewRepositories
	updates := s.DependabotSecurityUpdatesEnabledForNewRepositories
	graph := s.DependencyGraphEnabledForNewRepositories

	if updates != nil && *updates && alerts != nil && !*alerts {
		vc.Errorf(object, "enabling 'dependabot_security_updates_enabled_for_new_repositories' requires 'dependabot_alerts_enabled_for_new_repositories' to be enabled as well")
	}
	if alerts != nil && *alerts && graph != nil && !*graph {
		vc.Errorf(object, "enabling 'dependabot_alerts_enabled_for_new_repositories' requires 'dependency_graph_enabled_for_new_repositories' to be enabled as well")
	}
}
