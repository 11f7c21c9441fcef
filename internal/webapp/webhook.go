package webapp

import (
	"errors"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v66/github"
)

// handleWebhook receives GitHub event deliveries. Signatures are checked
// against the configured secret; without a secret every delivery passes.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gh.ValidatePayload(r, s.secret)
	if err != nil {
		s.logger.Warn().Err(err).Str("delivery", gh.DeliveryID(r)).Msg("rejected webhook delivery")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	eventType := gh.WebHookType(r)
	webhookDeliveries.WithLabelValues(eventType).Inc()

	event, err := gh.ParseWebHook(eventType, payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("failed to parse webhook payload")
		http.Error(w, "unsupported event payload", http.StatusBadRequest)
		return
	}

	var enqueueErr error
	switch event := event.(type) {
	case *gh.PingEvent:
		// Sent when the webhook is registered.
	case *gh.PullRequestEvent:
		enqueueErr = s.handlePullRequestEvent(event)
	case *gh.PushEvent:
		enqueueErr = s.handlePushEvent(event)
	default:
		s.logger.Debug().Str("event", eventType).Str("delivery", gh.DeliveryID(r)).Msg("ignoring event")
	}

	if enqueueErr != nil {
		if errors.Is(enqueueErr, ErrQueueFull) {
			http.Error(w, "task queue is full", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error().Err(enqueueErr).Str("event", eventType).Msg("failed to enqueue task")
		http.Error(w, "failed to enqueue task", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handlePullRequestEvent enqueues a validation task for pull requests
// against the configuration repository of a managed organization.
func (s *Server) handlePullRequestEvent(event *gh.PullRequestEvent) error {
	switch event.GetAction() {
	case "opened", "synchronize", "reopened":
	default:
		return nil
	}

	orgCtx := s.orgFor(event.GetOrganization().GetLogin())
	if orgCtx == nil || !strings.EqualFold(event.GetRepo().GetName(), s.cfg.Defaults.GitHub.ConfigRepo) {
		return nil
	}

	pr := event.GetPullRequest()
	s.logger.Info().
		Str("org", orgCtx.org.GitHubID).
		Int("pr", pr.GetNumber()).
		Str("action", event.GetAction()).
		Msg("pull request event received")
	return s.queue.Enqueue(s.newValidateTask(orgCtx, pr))
}

// handlePushEvent enqueues an apply task when the configuration file
// changes on the default branch of the configuration repository. Merged
// pull requests arrive here as well, their merge commit is a push.
func (s *Server) handlePushEvent(event *gh.PushEvent) error {
	repo := event.GetRepo()
	owner, _, found := strings.Cut(repo.GetFullName(), "/")
	if !found {
		return nil
	}

	orgCtx := s.orgFor(owner)
	if orgCtx == nil || !strings.EqualFold(repo.GetName(), s.cfg.Defaults.GitHub.ConfigRepo) {
		return nil
	}
	if event.GetRef() != "refs/heads/"+repo.GetDefaultBranch() {
		return nil
	}
	if !pushTouches(event, remoteConfigPath(orgCtx.org.GitHubID)) {
		return nil
	}

	s.logger.Info().
		Str("org", orgCtx.org.GitHubID).
		Str("sha", event.GetAfter()).
		Msg("configuration changed on default branch")
	return s.queue.Enqueue(s.newApplyTask(orgCtx, event.GetAfter()))
}

// pushTouches reports whether any commit of the push added or modified the
// given file.
func pushTouches(event *gh.PushEvent, path string) bool {
	for _, commit := range event.Commits {
		for _, file := range commit.Added {
			if file == path {
				return true
			}
		}
		for _, file := range commit.Modified {
			if file == path {
				return true
			}
		}
	}
	return false
}
