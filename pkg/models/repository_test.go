package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validateRepo(t *testing.T, repo *Repository) *ValidationContext {
	t.Helper()
	vc := &ValidationContext{}
	repo.Validate(vc, "testorg")
	return vc
}

func errorMessages(vc *ValidationContext) []string {
	var msgs []string
	for _, f := range vc.Failures {
		if f.Severity == SeverityError {
			msgs = append(msgs, f.Message)
		}
	}
	return msgs
}

func hasErrorContaining(vc *ValidationContext, substr string) bool {
	for _, msg := range errorMessages(vc) {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestRepository_Validate_DescriptionTooLong(t *testing.T) {
	repo := &Repository{
		Name:        String("test-repo"),
		Description: String(strings.Repeat("x", 351)),
	}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "description"))
}

func TestRepository_Validate_Topics(t *testing.T) {
	tests := []struct {
		name    string
		topics  []string
		wantErr bool
	}{
		{name: "valid topics", topics: []string{"go", "config-as-code"}, wantErr: false},
		{name: "uppercase topic", topics: []string{"Go"}, wantErr: true},
		{name: "topic too long", topics: []string{strings.Repeat("a", 51)}, wantErr: true},
		{name: "topic with spaces", topics: []string{"not valid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &Repository{Name: String("test-repo"), Topics: tt.topics}
			vc := validateRepo(t, repo)
			if tt.wantErr {
				assert.Positive(t, vc.ErrorCount())
			} else {
				assert.Zero(t, vc.ErrorCount())
			}
		})
	}
}

func TestRepository_Validate_TooManyTopics(t *testing.T) {
	topics := make([]string, 21)
	for i := range topics {
		topics[i] = "topic-" + string(rune('a'+i))
	}
	repo := &Repository{Name: String("test-repo"), Topics: topics}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "20 topics"))
}

func TestRepository_Validate_MergeStrategy(t *testing.T) {
	repo := &Repository{
		Name:             String("test-repo"),
		AllowMergeCommit: Bool(false),
		AllowSquashMerge: Bool(false),
		AllowRebaseMerge: Bool(false),
	}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "at least one merge strategy"))
}

func TestRepository_Validate_MergeStrategyUnconfigured(t *testing.T) {
	// repos that do not manage merge strategies at all are fine
	repo := &Repository{Name: String("test-repo")}

	vc := validateRepo(t, repo)

	assert.Zero(t, vc.ErrorCount())
}

func TestRepository_Validate_DependabotCoupling(t *testing.T) {
	repo := &Repository{
		Name:                             String("test-repo"),
		DependabotSecurityUpdatesEnabled: Bool(true),
		DependabotAlertsEnabled:          Bool(false),
	}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "dependabot_alerts_enabled"))
}

func TestRepository_Validate_GHPagesLegacyRequiresBranch(t *testing.T) {
	repo := &Repository{
		Name:              String("test-repo"),
		GHPagesBuildType:  String("legacy"),
		GHPagesSourcePath: String("/docs"),
	}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "gh_pages_source_branch"))
}

func TestRepository_Validate_GHPagesSourcePath(t *testing.T) {
	repo := &Repository{
		Name:                String("test-repo"),
		GHPagesBuildType:    String("legacy"),
		GHPagesSourceBranch: String("gh-pages"),
		GHPagesSourcePath:   String("/site"),
	}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "gh_pages_source_path"))
}

func TestRepository_Validate_GHPagesWorkflowIgnoresSource(t *testing.T) {
	repo := &Repository{
		Name:                String("test-repo"),
		GHPagesBuildType:    String("workflow"),
		GHPagesSourceBranch: String("gh-pages"),
	}

	vc := validateRepo(t, repo)

	assert.Zero(t, vc.ErrorCount())
	assert.Positive(t, vc.WarningCount())
}

func TestRepository_Validate_NestedResources(t *testing.T) {
	repo := &Repository{
		Name: String("test-repo"),
		Webhooks: []RepositoryWebhook{
			{Webhook: Webhook{URL: String("https://example.com/hook"), InsecureSSL: String("2")}},
		},
		Environments: []Environment{
			{Name: String("production"), WaitTimer: Int(50000)},
		},
		BranchProtectionRules: []BranchProtectionRule{
			{Pattern: String("main"), RequiredApprovingReviewCount: Int(7)},
		},
	}

	vc := validateRepo(t, repo)

	assert.True(t, hasErrorContaining(vc, "insecure_ssl"))
	assert.True(t, hasErrorContaining(vc, "wait_timer"))
	assert.True(t, hasErrorContaining(vc, "required_approving_review_count"))
}

func TestRepository_Coerce_PrivateDropsSecuritySettings(t *testing.T) {
	repo := &Repository{
		Name:                         String("test-repo"),
		Private:                      Bool(true),
		SecretScanning:               String("enabled"),
		SecretScanningPushProtection: String("enabled"),
	}

	vc := &ValidationContext{}
	repo.Coerce(nil, vc)

	assert.Nil(t, repo.SecretScanning)
	assert.Nil(t, repo.SecretScanningPushProtection)
	assert.Equal(t, 2, vc.InfoCount())
}

func TestRepository_MatchesName(t *testing.T) {
	repo := &Repository{Name: String("synapse"), Aliases: []string{"synapse-server"}}

	assert.True(t, repo.MatchesName("synapse"))
	assert.True(t, repo.MatchesName("Synapse"))
	assert.True(t, repo.MatchesName("synapse-server"))
	assert.False(t, repo.MatchesName("synapse-client"))
}

func TestArchivedFieldAllowed(t *testing.T) {
	assert.True(t, ArchivedFieldAllowed("archived"))
	assert.True(t, ArchivedFieldAllowed("description"))
	assert.True(t, ArchivedFieldAllowed("private"))
	assert.True(t, ArchivedFieldAllowed("topics"))
	assert.False(t, ArchivedFieldAllowed("has_wiki"))
	assert.False(t, ArchivedFieldAllowed("default_branch"))
}
