package models

import (
	"fmt"
	"regexp"
	"strings"
)

const maxRepoDescriptionLength = 350

var (
	topicPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

	validGHPagesBuildTypes = map[string]bool{
		"disabled": true,
		"legacy":   true,
		"workflow": true,
	}
	validGHPagesSourcePaths = map[string]bool{
		"/":      true,
		"/docs":  true,
	}
	validSecretScanningStatus = map[string]bool{
		"enabled":  true,
		"disabled": true,
	}
	validSquashMergeCommitTitles   = map[string]bool{"PR_TITLE": true, "COMMIT_OR_PR_TITLE": true}
	validSquashMergeCommitMessages = map[string]bool{"PR_BODY": true, "COMMIT_MESSAGES": true, "BLANK": true}
	validMergeCommitTitles         = map[string]bool{"PR_TITLE": true, "MERGE_MESSAGE": true}
	validMergeCommitMessages       = map[string]bool{"PR_TITLE": true, "PR_BODY": true, "BLANK": true}
)

// archivedRepoFields are the only settings that can still change once a
// repository is archived; everything else is frozen by GitHub.
var archivedRepoFields = map[string]bool{
	"archived":    true,
	"description": true,
	"private":     true,
	"topics":      true,
}

// Repository models a repository of the organization with all of its nested
// resources.
type Repository struct {
	Name        *string  `json:"name" model:"key"`
	Aliases     []string `json:"aliases" model:"mo"`
	Description *string  `json:"description"`
	Homepage    *string  `json:"homepage"`
	Private     *bool    `json:"private"`
	Archived    *bool    `json:"archived"`
	Topics      []string `json:"topics"`

	HasDiscussions *bool `json:"has_discussions"`
	HasIssues      *bool `json:"has_issues"`
	HasProjects    *bool `json:"has_projects"`
	HasWiki        *bool `json:"has_wiki"`
	IsTemplate     *bool `json:"is_template"`

	TemplateRepository *string `json:"template_repository" model:"ro"`
	ForkedRepository   *string `json:"forked_repository" model:"ro"`
	AutoInit           *bool   `json:"auto_init" model:"mo"`

	DefaultBranch            *string `json:"default_branch"`
	AllowAutoMerge           *bool   `json:"allow_auto_merge"`
	AllowForking             *bool   `json:"allow_forking"`
	AllowMergeCommit         *bool   `json:"allow_merge_commit"`
	AllowRebaseMerge         *bool   `json:"allow_rebase_merge"`
	AllowSquashMerge         *bool   `json:"allow_squash_merge"`
	AllowUpdateBranch        *bool   `json:"allow_update_branch"`
	DeleteBranchOnMerge      *bool   `json:"delete_branch_on_merge"`
	MergeCommitTitle         *string `json:"merge_commit_title"`
	MergeCommitMessage       *string `json:"merge_commit_message"`
	SquashMergeCommitTitle   *string `json:"squash_merge_commit_title"`
	SquashMergeCommitMessage *string `json:"squash_merge_commit_message"`
	WebCommitSignoffRequired *bool   `json:"web_commit_signoff_required"`

	DependabotAlertsEnabled              *bool   `json:"dependabot_alerts_enabled"`
	DependabotSecurityUpdatesEnabled     *bool   `json:"dependabot_security_updates_enabled"`
	PrivateVulnerabilityReportingEnabled *bool   `json:"private_vulnerability_reporting_enabled"`
	SecretScanning                       *string `json:"secret_scanning"`
	SecretScanningPushProtection         *string `json:"secret_scanning_push_protection"`

	GHPagesBuildType    *string `json:"gh_pages_build_type"`
	GHPagesSourceBranch *string `json:"gh_pages_source_branch"`
	GHPagesSourcePath   *string `json:"gh_pages_source_path"`

	Webhooks              []RepositoryWebhook         `json:"webhooks" model:"nested"`
	Secrets               []RepositorySecret          `json:"secrets" model:"nested"`
	Variables             []RepositoryVariable        `json:"variables" model:"nested"`
	Environments          []Environment               `json:"environments" model:"nested"`
	BranchProtectionRules []BranchProtectionRule      `json:"branch_protection_rules" model:"nested"`
	Workflows             *RepositoryWorkflowSettings `json:"workflows" model:"nested"`
}

// GetName returns the repository name or the empty string.
func (r *Repository) GetName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// IsArchived reports whether the repository is configured as archived.
func (r *Repository) IsArchived() bool {
	return r.Archived != nil && *r.Archived
}

// IsPrivate reports whether the repository is configured as private.
func (r *Repository) IsPrivate() bool {
	return r.Private != nil && *r.Private
}

// MatchesName reports whether name equals the repository name or one of its
// configured aliases. Matching is case-insensitive, like GitHub itself.
func (r *Repository) MatchesName(name string) bool {
	if strings.EqualFold(r.GetName(), name) {
		return true
	}
	for _, alias := range r.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}

// ArchivedFieldAllowed reports whether the field may still be changed on an
// archived repository.
func ArchivedFieldAllowed(field string) bool {
	return archivedRepoFields[field]
}

// Coerce adjusts repository settings that are constrained by the organization
// settings or by the repository's own visibility, recording INFO findings for
// anything it discards.
func (r *Repository) Coerce(org *OrganizationSettings, vc *ValidationContext) {
	object := "repo[" + r.GetName() + "]"

	if org != nil && org.WebCommitSignoffRequired != nil && *org.WebCommitSignoffRequired {
		if r.WebCommitSignoffRequired == nil {
			r.WebCommitSignoffRequired = Bool(true)
		} else if !*r.WebCommitSignoffRequired {
			vc.Errorf(object, "'web_commit_signoff_required' cannot be disabled for the repo as it is enabled for the organization")
		}
	}

	if r.IsPrivate() {
		if r.SecretScanning != nil {
			vc.Infof(object, "setting 'secret_scanning' is not applicable for private repositories, will be ignored")
			r.SecretScanning = nil
		}
		if r.SecretScanningPushProtection != nil {
			vc.Infof(object, "setting 'secret_scanning_push_protection' is not applicable for private repositories, will be ignored")
			r.SecretScanningPushProtection = nil
		}
	}
}

// Validate checks the repository and all of its nested resources.
func (r *Repository) Validate(vc *ValidationContext, orgID string) {
	name := r.GetName()
	object := "repo[" + name + "]"

	if name == "" {
		vc.Errorf(object, "no value for required setting 'name'")
	}

	if r.Description != nil && len(*r.Description) > maxRepoDescriptionLength {
		vc.Errorf(object, "setting 'description' exceeds maximum of %d chars", maxRepoDescriptionLength)
	}

	r.validateTopics(vc, object)
	r.validateMergeStrategy(vc, object)
	r.validateSecurity(vc, object)
	r.validateGHPages(vc, object, orgID)

	for i := range r.Webhooks {
		r.Webhooks[i].Validate(vc, name)
	}
	for i := range r.Secrets {
		r.Secrets[i].Validate(vc, name)
	}
	for i := range r.Variables {
		r.Variables[i].Validate(vc, name)
	}
	for i := range r.Environments {
		r.Environments[i].Validate(vc, name)
	}
	for i := range r.BranchProtectionRules {
		r.BranchProtectionRules[i].Validate(vc, name)
	}
	if r.Workflows != nil {
		r.Workflows.Validate(vc, name)
	}
}

func (r *Repository) validateTopics(vc *ValidationContext, object string) {
	if len(r.Topics) > 20 {
		vc.Errorf(object, "at most 20 topics are allowed, found %d", len(r.Topics))
	}
	for _, topic := range r.Topics {
		if len(topic) == 0 || len(topic) > 50 || !topicPattern.MatchString(topic) {
			vc.Errorf(object, "topic '%s' is invalid, topics are lowercase alphanumerics and hyphens of at most 50 chars", topic)
		}
	}
}

func (r *Repository) validateMergeStrategy(vc *ValidationContext, object string) {
	configured := r.AllowMergeCommit != nil || r.AllowSquashMerge != nil || r.AllowRebaseMerge != nil
	if !configured {
		return
	}
	enabled := func(v *bool) bool { return v != nil && *v }
	if !enabled(r.AllowMergeCommit) && !enabled(r.AllowSquashMerge) && !enabled(r.AllowRebaseMerge) {
		vc.Errorf(object, "at least one merge strategy ('allow_merge_commit' | 'allow_squash_merge' | 'allow_rebase_merge') must be enabled")
	}

	if r.MergeCommitTitle != nil && !validMergeCommitTitles[*r.MergeCommitTitle] {
		vc.Errorf(object, "'merge_commit_title' has value '%s', only values ('PR_TITLE' | 'MERGE_MESSAGE') are allowed", *r.MergeCommitTitle)
	}
	if r.MergeCommitMessage != nil && !validMergeCommitMessages[*r.MergeCommitMessage] {
		vc.Errorf(object, "'merge_commit_message' has value '%s', only values ('PR_TITLE' | 'PR_BODY' | 'BLANK') are allowed", *r.MergeCommitMessage)
	}
	if r.SquashMergeCommitTitle != nil && !validSquashMergeCommitTitles[*r.SquashMergeCommitTitle] {
		vc.Errorf(object, "'squash_merge_commit_title' has value '%s', only values ('PR_TITLE' | 'COMMIT_OR_PR_TITLE') are allowed", *r.SquashMergeCommitTitle)
	}
	if r.SquashMergeCommitMessage != nil && !validSquashMergeCommitMessages[*r.SquashMergeCommitMessage] {
		vc.Errorf(object, "'squash_merge_commit_message' has value '%s', only values ('PR_BODY' | 'COMMIT_MESSAGES' | 'BLANK') are allowed", *r.SquashMergeCommitMessage)
	}
}

func (r *Repository) validateSecurity(vc *ValidationContext, object string) {
	updates := r.DependabotSecurityUpdatesEnabled
	alerts := r.DependabotAlertsEnabled
	if updates != nil && *updates && alerts != nil && !*alerts {
		vc.Errorf(object, "enabling 'dependabot_security_updates_enabled' requires 'dependabot_alerts_enabled' to be enabled as well")
	}

	if r.SecretScanning != nil && !validSecretScanningStatus[*r.SecretScanning] {
		vc.Errorf(object, "'secret_scanning' has value '%s', only values ('enabled' | 'disabled') are allowed", *r.SecretScanning)
	}
	if r.SecretScanningPushProtection != nil && !validSecretScanningStatus[*r.SecretScanningPushProtection] {
		vc.Errorf(object, "'secret_scanning_push_protection' has value '%s', only values ('enabled' | 'disabled') are allowed", *r.SecretScanningPushProtection)
	}
}

func (r *Repository) validateGHPages(vc *ValidationContext, object, orgID string) {
	buildType := ""
	if r.GHPagesBuildType != nil {
		buildType = *r.GHPagesBuildType
	}

	if buildType != "" && !validGHPagesBuildTypes[buildType] {
		vc.Errorf(object, "'gh_pages_build_type' has value '%s', only values ('disabled' | 'legacy' | 'workflow') are allowed", buildType)
	}

	switch buildType {
	case "legacy":
		if r.GHPagesSourceBranch == nil || *r.GHPagesSourceBranch == "" {
			vc.Errorf(object, "build type 'legacy' requires setting 'gh_pages_source_branch' as well")
		}
		if r.GHPagesSourcePath != nil && !validGHPagesSourcePaths[*r.GHPagesSourcePath] {
			vc.Errorf(object, "'gh_pages_source_path' has value '%s', only values ('/' | '/docs') are allowed", *r.GHPagesSourcePath)
		}
	case "disabled", "workflow":
		if r.GHPagesSourceBranch != nil || r.GHPagesSourcePath != nil {
			vc.Warnf(object, "gh-pages source settings have no effect for build type '%s'", buildType)
		}
	}

	pagesRepo := fmt.Sprintf("%s.github.io", strings.ToLower(orgID))
	if strings.EqualFold(r.GetName(), pagesRepo) && (buildType == "" || buildType == "disabled") {
		vc.Warnf(object, "repository '%s' hosts the organization site but gh-pages is not configured", r.GetName())
	}
}
