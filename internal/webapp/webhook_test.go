package webapp

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	gh "github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"otterdog/pkg/config"
)

func newTestServer(t *testing.T, secret string) *Server {
	t.Helper()

	cfg := &config.Config{
		Defaults: config.Defaults{
			GitHub: config.GitHubConfig{ConfigRepo: ".otterdog"},
			WebApp: config.WebAppConfig{StatusContext: "otterdog"},
		},
		Organizations: []config.OrganizationConfig{
			{Name: "testorg", GitHubID: "testorg"},
		},
	}

	journal, err := NewJournal(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	queue := NewTaskQueue(4, 1, zerolog.Nop())
	queue.SetJournal(journal)

	return &Server{
		cfg:     cfg,
		queue:   queue,
		journal: journal,
		logger:  zerolog.Nop(),
		secret:  []byte(secret),
		orgs: map[string]*orgContext{
			"testorg": {org: &cfg.Organizations[0]},
		},
	}
}

func signPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// postWebhook delivers a payload straight to the webhook handler. An empty
// secret leaves the delivery unsigned.
func postWebhook(t *testing.T, s *Server, event, secret string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/github-webhook/receive", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	if secret != "" {
		req.Header.Set("X-Hub-Signature-256", signPayload(secret, payload))
	}

	rec := httptest.NewRecorder()
	s.handleWebhook(rec, req)
	return rec
}

func pullRequestPayload(repo string) []byte {
	return []byte(`{
		"action": "opened",
		"organization": {"login": "testorg"},
		"repository": {"name": "` + repo + `"},
		"pull_request": {
			"number": 7,
			"base": {"ref": "main"},
			"head": {
				"ref": "config-change",
				"sha": "abc123",
				"repo": {"name": "` + repo + `", "owner": {"login": "testorg"}}
			}
		}
	}`)
}

func pushPayload(ref, file string) []byte {
	return []byte(`{
		"ref": "` + ref + `",
		"after": "abc123",
		"repository": {"name": ".otterdog", "full_name": "testorg/.otterdog", "default_branch": "main"},
		"commits": [{"added": [], "modified": ["` + file + `"]}]
	}`)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := postWebhook(t, s, "pull_request", "wrong-secret", pullRequestPayload(".otterdog"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, s.queue.Length())
}

func TestWebhookAcceptsUnsignedWithoutSecret(t *testing.T) {
	s := newTestServer(t, "")

	rec := postWebhook(t, s, "ping", "", []byte(`{"zen": "Keep it logically awesome."}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestWebhookPullRequestEnqueuesValidation(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := postWebhook(t, s, "pull_request", "secret", pullRequestPayload(".otterdog"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, s.queue.Length())
}

func TestWebhookPullRequestIgnoresOtherRepos(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := postWebhook(t, s, "pull_request", "secret", pullRequestPayload("website"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 0, s.queue.Length())
}

func TestWebhookPullRequestIgnoresUnmanagedOrg(t *testing.T) {
	s := newTestServer(t, "secret")

	payload := []byte(`{
		"action": "opened",
		"organization": {"login": "otherorg"},
		"repository": {"name": ".otterdog"},
		"pull_request": {"number": 7, "base": {"ref": "main"}, "head": {"ref": "x", "sha": "abc"}}
	}`)
	rec := postWebhook(t, s, "pull_request", "secret", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 0, s.queue.Length())
}

func TestWebhookPushEnqueuesApply(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := postWebhook(t, s, "push", "secret", pushPayload("refs/heads/main", "otterdog/testorg.jsonnet"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, s.queue.Length())
}

func TestWebhookPushIgnoresOtherBranches(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := postWebhook(t, s, "push", "secret", pushPayload("refs/heads/feature", "otterdog/testorg.jsonnet"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 0, s.queue.Length())
}

func TestWebhookPushIgnoresUnrelatedFiles(t *testing.T) {
	s := newTestServer(t, "secret")

	rec := postWebhook(t, s, "push", "secret", pushPayload("refs/heads/main", "README.md"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 0, s.queue.Length())
}

func TestWebhookQueueFull(t *testing.T) {
	s := newTestServer(t, "secret")
	s.queue = NewTaskQueue(1, 1, zerolog.Nop())

	payload := pullRequestPayload(".otterdog")
	rec := postWebhook(t, s, "pull_request", "secret", payload)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = postWebhook(t, s, "pull_request", "secret", payload)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPushTouches(t *testing.T) {
	event := &gh.PushEvent{
		Commits: []*gh.HeadCommit{
			{Added: []string{"docs/README.md"}},
			{Modified: []string{"otterdog/testorg.jsonnet"}},
		},
	}

	require.True(t, pushTouches(event, "otterdog/testorg.jsonnet"))
	require.False(t, pushTouches(event, "otterdog/otherorg.jsonnet"))
}
