package webapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"otterdog/pkg/config"
	"otterdog/pkg/diff"
	"otterdog/pkg/models"
	"otterdog/pkg/providers/github"
)

// validationCommentMarker identifies the plan comment on a pull request so
// repeated runs update it instead of stacking new comments.
const validationCommentMarker = "<!-- otterdog/validation -->"

const (
	statusValidating    = "validating configuration change using otterdog"
	statusValid         = "otterdog validation completed successfully"
	statusInvalid       = "otterdog validation failed, check the validation result in the comment history"
	statusValidationBug = "otterdog validation failed, please contact an admin"
)

// newValidateTask validates the configuration change of a pull request and
// reports the outcome as a commit status plus a plan comment. The plan is
// computed locally, nothing is written to the organization.
func (s *Server) newValidateTask(orgCtx *orgContext, pr *gh.PullRequest) *Task {
	githubID := orgCtx.org.GitHubID
	configRepo := s.cfg.Defaults.GitHub.ConfigRepo
	statusContext := s.cfg.Defaults.WebApp.StatusContext
	provider := orgCtx.provider

	number := pr.GetNumber()
	headSHA := pr.GetHead().GetSHA()
	headRef := pr.GetHead().GetRef()
	headOwner := pr.GetHead().GetRepo().GetOwner().GetLogin()
	headRepo := pr.GetHead().GetRepo().GetName()
	baseRef := pr.GetBase().GetRef()

	run := func(ctx context.Context) (string, error) {
		configPath := remoteConfigPath(githubID)

		files, err := provider.ListPullRequestFiles(ctx, githubID, configRepo, number)
		if err != nil {
			return "", err
		}
		if !slices.Contains(files, configPath) {
			return "configuration not touched", nil
		}

		setStatus := func(state, description string) error {
			return provider.CreateCommitStatus(ctx, githubID, configRepo, headSHA, state, statusContext, description)
		}
		if err := setStatus("pending", statusValidating); err != nil {
			return "", err
		}

		base, err := provider.GetContent(ctx, githubID, configRepo, configPath, baseRef)
		if err != nil {
			_ = setStatus("failure", statusValidationBug)
			return "", err
		}
		// The head lives in the fork for pull requests from forks.
		head, err := provider.GetContent(ctx, headOwner, headRepo, configPath, headRef)
		if err != nil {
			_ = setStatus("failure", statusValidationBug)
			return "", err
		}

		if base == head {
			if err := setStatus("success", statusValid); err != nil {
				return "", err
			}
			return "head and base configuration are identical", nil
		}

		valid, summary, detail := s.validateChange(orgCtx, configPath, base, head)
		comment := validationComment(headSHA, detail)
		if err := provider.UpsertIssueComment(ctx, githubID, configRepo, number, validationCommentMarker, comment); err != nil {
			return "", err
		}

		state, description := "success", statusValid
		if !valid {
			state, description = "error", statusInvalid
		}
		if err := setStatus(state, description); err != nil {
			return "", err
		}
		return summary, nil
	}

	return NewTask(TaskValidatePullRequest, githubID, configRepo, run)
}

// validateChange evaluates and validates the head configuration and plans
// it against the base revision. It returns whether the change is valid, a
// short summary and the detail text for the pull request comment.
func (s *Server) validateChange(orgCtx *orgContext, configPath, base, head string) (bool, string, string) {
	headData, err := orgCtx.evaluator.EvaluateSnippet(configPath, head)
	if err != nil {
		return false, "configuration does not evaluate", fmt.Sprintf("Failed to evaluate the configuration:\n%v", err)
	}
	expected, err := models.LoadOrganization(headData)
	if err != nil {
		return false, "configuration does not load", fmt.Sprintf("Failed to load the configuration:\n%v", err)
	}

	vc := expected.Validate()
	if vc.ErrorCount() > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Validation failed with %d error(s) and %d warning(s):\n",
			vc.ErrorCount(), vc.WarningCount())
		for _, failure := range vc.Failures {
			if failure.Severity != models.SeverityInfo {
				fmt.Fprintf(&b, "%s\n", failure)
			}
		}
		return false, "validation failed", b.String()
	}

	baseData, err := orgCtx.evaluator.EvaluateSnippet(configPath, base)
	if err != nil {
		return false, "base configuration does not evaluate", fmt.Sprintf("Failed to evaluate the base configuration:\n%v", err)
	}
	current, err := models.LoadOrganization(baseData)
	if err != nil {
		return false, "base configuration does not load", fmt.Sprintf("Failed to load the base configuration:\n%v", err)
	}

	operator := diff.NewOperator(nil, orgCtx.org.GitHubID, diff.Options{
		IncludeWebUI: true,
		Logger:       s.logger,
	})
	patches := operator.Plan(expected, current)

	var b strings.Builder
	if vc.WarningCount() > 0 {
		fmt.Fprintf(&b, "Validation finished with %d warning(s):\n", vc.WarningCount())
		for _, failure := range vc.Failures {
			if failure.Severity == models.SeverityWarning {
				fmt.Fprintf(&b, "%s\n", failure)
			}
		}
		b.WriteString("\n")
	}
	summary := diff.NewPrinter(&b).Print(patches)
	return true, summary.String(), b.String()
}

// validationComment renders the pull request comment body.
func validationComment(headSHA, detail string) string {
	var b strings.Builder
	b.WriteString(validationCommentMarker)
	b.WriteString("\n")
	fmt.Fprintf(&b, "This is the validation result for commit %s:\n\n", headSHA)
	b.WriteString("```\n")
	b.WriteString(strings.TrimRight(diff.EscapeForComment(detail), "\n"))
	b.WriteString("\n```\n")
	return b.String()
}

// newApplyTask applies the configuration at a pushed commit to the live
// organization. Removals are executed, settings only reachable through the
// web interface are left alone.
func (s *Server) newApplyTask(orgCtx *orgContext, sha string) *Task {
	githubID := orgCtx.org.GitHubID
	configRepo := s.cfg.Defaults.GitHub.ConfigRepo
	provider := orgCtx.provider

	run := func(ctx context.Context) (string, error) {
		configPath := remoteConfigPath(githubID)

		content, err := provider.GetContent(ctx, githubID, configRepo, configPath, sha)
		if err != nil {
			return "", err
		}
		data, err := orgCtx.evaluator.EvaluateSnippet(configPath, content)
		if err != nil {
			return "", fmt.Errorf("failed to evaluate configuration at %s: %w", sha, err)
		}
		expected, err := models.LoadOrganization(data)
		if err != nil {
			return "", err
		}

		current, err := provider.FetchOrganization(ctx, githubID)
		if err != nil {
			return "", err
		}

		operator := diff.NewOperator(provider, githubID, diff.Options{
			DeleteResources: true,
			Logger:          s.logger,
		})
		patches := operator.Plan(expected, current)
		if len(patches) == 0 {
			return "no changes to apply", nil
		}

		result, err := operator.Apply(ctx, patches)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("applied %d change(s)", len(result.Applied)), nil
	}

	return NewTask(TaskApplyChanges, githubID, configRepo, run)
}

// newDriftTask plans the live state of an organization against its local
// configuration and records how many resources diverge. Nothing is
// changed.
func (s *Server) newDriftTask(orgCtx *orgContext) *Task {
	githubID := orgCtx.org.GitHubID
	provider := orgCtx.provider

	run := func(ctx context.Context) (string, error) {
		expected, err := orgCtx.evaluator.LoadOrganization(s.cfg.OrgConfigPath(githubID))
		if err != nil {
			return "", fmt.Errorf("failed to load local configuration: %w", err)
		}
		current, err := provider.FetchOrganization(ctx, githubID)
		if err != nil {
			return "", err
		}

		operator := diff.NewOperator(nil, githubID, diff.Options{Logger: s.logger})
		patches := operator.Plan(expected, current)
		driftResources.WithLabelValues(githubID).Set(float64(len(patches)))

		if len(patches) == 0 {
			return "live state matches the configuration", nil
		}

		summary := diff.NewPrinter(io.Discard).Print(patches)
		s.logger.Warn().
			Str("org", githubID).
			Int("resources", len(patches)).
			Msg("live state diverges from the configuration")
		return fmt.Sprintf("%d resource(s) diverged: %s", len(patches), summary.String()), nil
	}

	return NewTask(TaskDriftDetection, githubID, "", run)
}

// newCheckFileTask ensures a required file exists in a repository, opening
// a pull request that adds or updates it when necessary.
func (s *Server) newCheckFileTask(orgCtx *orgContext, policy config.RequiredFileConfig, repo string) *Task {
	githubID := orgCtx.org.GitHubID
	provider := orgCtx.provider

	run := func(ctx context.Context) (string, error) {
		content, err := provider.GetContent(ctx, githubID, repo, policy.Path, "")
		if err == nil && (!policy.Strict || content == policy.Content) {
			return "file is present", nil
		}
		if err != nil && !isNotFound(err) {
			return "", err
		}

		defaultBranch, err := defaultBranchOf(ctx, provider, githubID, repo)
		if err != nil {
			return "", err
		}

		prefix := policy.BranchPrefix
		if prefix == "" {
			prefix = "required"
		}
		branch := fmt.Sprintf("otterdog/%s/%s", prefix, path.Base(policy.Path))

		if _, err := provider.GetBranchSHA(ctx, githubID, repo, branch); err != nil {
			if !isNotFound(err) {
				return "", err
			}
			sha, err := provider.GetBranchSHA(ctx, githubID, repo, defaultBranch)
			if err != nil {
				return "", err
			}
			if err := provider.CreateBranch(ctx, githubID, repo, branch, sha); err != nil {
				return "", err
			}
		}

		message := fmt.Sprintf("Updating file %s", policy.Path)
		if _, err := provider.UpdateContent(ctx, githubID, repo, policy.Path, branch, message, []byte(policy.Content)); err != nil {
			return "", err
		}

		pulls, err := provider.ListOpenPullRequests(ctx, githubID, repo, defaultBranch)
		if err != nil {
			return "", err
		}
		for _, pull := range pulls {
			if pull.GetHead().GetRef() == branch {
				return fmt.Sprintf("pull request #%d already pending", pull.GetNumber()), nil
			}
		}

		title := policy.PRTitle
		if title == "" {
			title = fmt.Sprintf("Add required file %s", policy.Path)
		}
		body := policy.PRBody
		if body == "" {
			body = fmt.Sprintf("This pull request adds the required file `%s`.", policy.Path)
		}
		pull, err := provider.CreatePullRequest(ctx, githubID, repo, title, branch, defaultBranch, body)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("opened pull request #%d", pull.GetNumber()), nil
	}

	return NewTask(TaskCheckFile, githubID, repo, run)
}

// enqueueRequiredFileTasks schedules one check per required file and
// repository.
func (s *Server) enqueueRequiredFileTasks() {
	for _, policy := range s.cfg.Defaults.WebApp.RequiredFiles {
		orgCtx := s.orgFor(policy.Organization)
		if orgCtx == nil {
			s.logger.Warn().
				Str("org", policy.Organization).
				Str("path", policy.Path).
				Msg("required file configured for an unmanaged organization")
			continue
		}
		for _, repo := range policy.Repositories {
			if err := s.queue.Enqueue(s.newCheckFileTask(orgCtx, policy, repo)); err != nil {
				s.logger.Warn().Err(err).Str("repo", repo).Msg("failed to enqueue required file check")
			}
		}
	}
}

func defaultBranchOf(ctx context.Context, provider *github.Client, org, repo string) (string, error) {
	repoModel, err := provider.GetRepository(ctx, org, repo)
	if err != nil {
		return "", err
	}
	if repoModel.DefaultBranch != nil && *repoModel.DefaultBranch != "" {
		return *repoModel.DefaultBranch, nil
	}
	return "main", nil
}

func isNotFound(err error) bool {
	var ghErr *github.GitHubError
	return errors.As(err, &ghErr) && ghErr.Type == github.ErrorTypeNotFound
}
