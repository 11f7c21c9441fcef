package webapp

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"otterdog/pkg/config"
	"otterdog/pkg/jsonnet"
)

func newTestOrgContext(t *testing.T) *orgContext {
	t.Helper()
	return &orgContext{
		org:       &config.OrganizationConfig{Name: "testorg", GitHubID: "testorg"},
		evaluator: jsonnet.NewEvaluator(t.TempDir()),
	}
}

func TestValidateChangeReportsPlan(t *testing.T) {
	s := &Server{logger: zerolog.Nop()}
	orgCtx := newTestOrgContext(t)

	base := `{ github_id: 'testorg', settings: { billing_email: 'ops@testorg.dev' } }`
	head := `{
		github_id: 'testorg',
		settings: { billing_email: 'ops@testorg.dev' },
		repositories: [{ name: 'backend' }],
	}`

	valid, summary, detail := s.validateChange(orgCtx, "otterdog/testorg.jsonnet", base, head)
	require.True(t, valid)
	require.Equal(t, "1 additions, 0 changes, 0 removals", summary)
	require.Contains(t, detail, "backend")
}

func TestValidateChangeNoChanges(t *testing.T) {
	s := &Server{logger: zerolog.Nop()}
	orgCtx := newTestOrgContext(t)

	cfg := `{ github_id: 'testorg', settings: { billing_email: 'ops@testorg.dev' } }`

	valid, summary, _ := s.validateChange(orgCtx, "otterdog/testorg.jsonnet", cfg, cfg+"\n")
	require.True(t, valid)
	require.Equal(t, "0 additions, 0 changes, 0 removals", summary)
}

func TestValidateChangeInvalidHead(t *testing.T) {
	s := &Server{logger: zerolog.Nop()}
	orgCtx := newTestOrgContext(t)

	base := `{ github_id: 'testorg', settings: { billing_email: 'ops@testorg.dev' } }`
	head := `{ github_id: 'testorg', settings: {} }`

	valid, summary, detail := s.validateChange(orgCtx, "otterdog/testorg.jsonnet", base, head)
	require.False(t, valid)
	require.Equal(t, "validation failed", summary)
	require.Contains(t, detail, "billing_email")
}

func TestValidateChangeBrokenHead(t *testing.T) {
	s := &Server{logger: zerolog.Nop()}
	orgCtx := newTestOrgContext(t)

	base := `{ github_id: 'testorg', settings: { billing_email: 'ops@testorg.dev' } }`

	valid, summary, detail := s.validateChange(orgCtx, "otterdog/testorg.jsonnet", base, `{`)
	require.False(t, valid)
	require.Equal(t, "configuration does not evaluate", summary)
	require.NotEmpty(t, detail)
}

func TestValidationComment(t *testing.T) {
	comment := validationComment("abc123", "+ repository[name=\"backend\"]")

	require.True(t, strings.HasPrefix(comment, validationCommentMarker))
	require.Contains(t, comment, "abc123")
	require.Contains(t, comment, "```")
	// Diff markers are padded so the fenced block renders them verbatim.
	require.Contains(t, comment, " + repository")
}
