package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"

	"otterdog/pkg/models"
)

// ListEnvironments lists all deployment environments of a repository
func (c *Client) ListEnvironments(ctx context.Context, org, repo string) ([]models.Environment, error) {
	var ghEnvs []*github.Environment

	err := WithRetry(ctx, func() error {
		ghEnvs = nil
		opts := &github.EnvironmentListOptions{
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			page, resp, err := c.client.Repositories.ListEnvironments(ctx, org, repo, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("environments for %s/%s", org, repo))
			}
			ghEnvs = append(ghEnvs, page.Environments...)
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

	environments := make([]models.Environment, 0, len(ghEnvs))
	for _, ghEnv := range ghEnvs {
		env, err := c.convertEnvironment(ctx, org, repo, ghEnv)
		if err != nil {
			return nil, err
		}
		environments = append(environments, *env)
	}
	return environments, nil
}

// convertEnvironment converts a GitHub API environment to the configuration
// resource. Wait timer and reviewers are modelled as protection rules by the
// API.
func (c *Client) convertEnvironment(ctx context.Context, org, repo string, ghEnv *github.Environment) (*models.Environment, error) {
	env := &models.Environment{
		Name:      ghEnv.Name,
		WaitTimer: models.Int(0),
		Reviewers: []string{},
	}

	for _, rule := range ghEnv.ProtectionRules {
		switch rule.GetType() {
		case "wait_timer":
			env.WaitTimer = rule.WaitTimer
		case "required_reviewers":
			for _, required := range rule.Reviewers {
				switch reviewer := required.Reviewer.(type) {
				case *github.User:
					env.Reviewers = append(env.Reviewers, "@"+reviewer.GetLogin())
				case *github.Team:
					env.Reviewers = append(env.Reviewers, "@"+org+"/"+reviewer.GetSlug())
				}
			}
		}
	}

	policy := "all"
	if branchPolicy := ghEnv.DeploymentBranchPolicy; branchPolicy != nil {
		switch {
		case branchPolicy.GetProtectedBranches():
			policy = "protected"
		case branchPolicy.GetCustomBranchPolicies():
			policy = "selected"
		}
	}
	env.DeploymentBranchPolicy = github.String(policy)

	if policy == "selected" {
		names, err := c.listBranchPolicies(ctx, org, repo, ghEnv.GetName())
		if err != nil {
			return nil, err
		}
		env.BranchPolicies = names
	} else {
		env.BranchPolicies = []string{}
	}

	return env, nil
}

// CreateOrUpdateEnvironment creates or updates a deployment environment.
// Reviewer references are resolved to user and team IDs, custom branch
// policies are reconciled afterwards.
func (c *Client) CreateOrUpdateEnvironment(ctx context.Context, org, repo string, env *models.Environment) error {
	name := env.GetName()
	resource := fmt.Sprintf("environment %s for %s/%s", name, org, repo)

	update := &github.CreateUpdateEnvironment{
		WaitTimer: env.WaitTimer,
	}

	if len(env.Reviewers) > 0 {
		reviewers, err := c.resolveReviewers(ctx, env.Reviewers)
		if err != nil {
			return err
		}
		update.Reviewers = reviewers
	}

	policy := derefStr(env.DeploymentBranchPolicy)
	switch policy {
	case "protected":
		update.DeploymentBranchPolicy = &github.BranchPolicy{
			ProtectedBranches:    github.Bool(true),
			CustomBranchPolicies: github.Bool(false),
		}
	case "selected":
		update.DeploymentBranchPolicy = &github.BranchPolicy{
			ProtectedBranches:    github.Bool(false),
			CustomBranchPolicies: github.Bool(true),
		}
	}

	err := WithRetry(ctx, func() error {
		_, _, err := c.client.Repositories.CreateUpdateEnvironment(ctx, org, repo, name, update)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		return nil
	}, c.retry)
	if err != nil {
		return err
	}

	if policy == "selected" {
		return c.reconcileBranchPolicies(ctx, org, repo, name, env.BranchPolicies)
	}
	return nil
}

// DeleteEnvironment deletes a deployment environment from a repository
func (c *Client) DeleteEnvironment(ctx context.Context, org, repo, name string) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Repositories.DeleteEnvironment(ctx, org, repo, name)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("environment %s for %s/%s", name, org, repo))
		}
		return nil
	}, c.retry)
}

// resolveReviewers resolves actor references of the form '@user' or
// '@org/team' to typed reviewer IDs
func (c *Client) resolveReviewers(ctx context.Context, actors []string) ([]*github.EnvReviewers, error) {
	reviewers := make([]*github.EnvReviewers, 0, len(actors))

	for _, actor := range actors {
		ref := strings.TrimPrefix(actor, "@")
		if owner, slug, isTeam := strings.Cut(ref, "/"); isTeam {
			var team *github.Team
			err := WithRetry(ctx, func() error {
				var err error
				team, _, err = c.client.Teams.GetTeamBySlug(ctx, owner, slug)
				if err != nil {
					return WrapGitHubError(err, fmt.Sprintf("team %s/%s", owner, slug))
				}
				return nil
			}, c.retry)
			if err != nil {
				return nil, err
			}
			reviewers = append(reviewers, &github.EnvReviewers{
				Type: github.String("Team"),
				ID:   team.ID,
			})
			continue
		}

		var user *github.User
		err := WithRetry(ctx, func() error {
			var err error
			user, _, err = c.client.Users.Get(ctx, ref)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("user %s", ref))
			}
			return nil
		}, c.retry)
		if err != nil {
			return nil, err
		}
		reviewers = append(reviewers, &github.EnvReviewers{
			Type: github.String("User"),
			ID:   user.ID,
		})
	}

	return reviewers, nil
}

// listBranchPolicies returns the custom deployment branch patterns of an
// environment
func (c *Client) listBranchPolicies(ctx context.Context, org, repo, env string) ([]string, error) {
	var names []string

	err := WithRetry(ctx, func() error {
		names = nil
		policies, _, err := c.client.Repositories.ListDeploymentBranchPolicies(ctx, org, repo, env)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("branch policies for environment %s of %s/%s", env, org, repo))
		}
		for _, policy := range policies.BranchPolicies {
			names = append(names, policy.GetName())
		}
		return nil
	}, c.retry)

	return names, err
}

// reconcileBranchPolicies aligns the custom deployment branch patterns of an
// environment with the expected list
func (c *Client) reconcileBranchPolicies(ctx context.Context, org, repo, env string, expected []string) error {
	resource := fmt.Sprintf("branch policies for environment %s of %s/%s", env, org, repo)

	var current []*github.DeploymentBranchPolicy
	err := WithRetry(ctx, func() error {
		policies, _, err := c.client.Repositories.ListDeploymentBranchPolicies(ctx, org, repo, env)
		if err != nil {
			return WrapGitHubError(err, resource)
		}
		current = policies.BranchPolicies
		return nil
	}, c.retry)
	if err != nil {
		return err
	}

	expectedSet := make(map[string]bool, len(expected))
	for _, name := range expected {
		expectedSet[name] = true
	}
	currentSet := make(map[string]bool, len(current))
	for _, policy := range current {
		currentSet[policy.GetName()] = true
	}

	for _, name := range expected {
		if currentSet[name] {
			continue
		}
		request := &github.DeploymentBranchPolicyRequest{Name: github.String(name)}
		err := WithRetry(ctx, func() error {
			_, _, err := c.client.Repositories.CreateDeploymentBranchPolicy(ctx, org, repo, env, request)
			if err != nil {
				return WrapGitHubError(err, resource)
			}
			return nil
		}, c.retry)
		if err != nil {
			return err
		}
	}

	for _, policy := range current {
		if expectedSet[policy.GetName()] {
			continue
		}
		err := WithRetry(ctx, func() error {
			_, err := c.client.Repositories.DeleteDeploymentBranchPolicy(ctx, org, repo, env, policy.GetID())
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
