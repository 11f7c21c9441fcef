package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v66/github"

	"otterdog/pkg/models"
)

// ListBranchProtectionRules lists the protection rules of all protected
// branches of a repository
func (c *Client) ListBranchProtectionRules(ctx context.Context, org, repo string) ([]models.BranchProtectionRule, error) {
	var branches []*github.Branch

	err := WithRetry(ctx, func() error {
		branches = nil
		opts := &github.BranchListOptions{
			Protected:   github.Bool(true),
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			page, resp, err := c.client.Repositories.ListBranches(ctx, org, repo, opts)
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("branches for %s/%s", org, repo))
			}
			branches = append(branches, page...)
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

	rules := make([]models.BranchProtectionRule, 0, len(branches))
	for _, branch := range branches {
		var protection *github.Protection
		err := WithRetry(ctx, func() error {
			var err error
			protection, _, err = c.client.Repositories.GetBranchProtection(ctx, org, repo, branch.GetName())
			if err != nil {
				return WrapGitHubError(err, fmt.Sprintf("branch protection %s/%s:%s", org, repo, branch.GetName()))
			}
			return nil
		}, c.retry)
		if err != nil {
			// Branch protection set through rulesets is reported as protected
			// but has no classic protection attached
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		rules = append(rules, *convertBranchProtection(protection, org, branch.GetName()))
	}
	return rules, nil
}

// UpdateBranchProtectionRule creates or updates the protection rule of a
// branch, the rule pattern is applied as branch name
func (c *Client) UpdateBranchProtectionRule(ctx context.Context, org, repo string, rule *models.BranchProtectionRule) error {
	request := buildProtectionRequest(rule)
	branch := rule.GetPattern()

	return WithRetry(ctx, func() error {
		_, _, err := c.client.Repositories.UpdateBranchProtection(ctx, org, repo, branch, request)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("branch protection %s/%s:%s", org, repo, branch))
		}
		return nil
	}, c.retry)
}

// DeleteBranchProtectionRule removes the protection rule from a branch
func (c *Client) DeleteBranchProtectionRule(ctx context.Context, org, repo, branch string) error {
	return WithRetry(ctx, func() error {
		_, err := c.client.Repositories.RemoveBranchProtection(ctx, org, repo, branch)
		if err != nil {
			return WrapGitHubError(err, fmt.Sprintf("branch protection %s/%s:%s", org, repo, branch))
		}
		return nil
	}, c.retry)
}

// convertBranchProtection converts a GitHub API protection to the
// configuration resource
func convertBranchProtection(protection *github.Protection, org, branch string) *models.BranchProtectionRule {
	rule := &models.BranchProtectionRule{
		Pattern:                  github.String(branch),
		RequiresApprovingReviews: models.Bool(protection.RequiredPullRequestReviews != nil),
		RequiresStatusChecks:     models.Bool(protection.RequiredStatusChecks != nil),
		RestrictsPushes:          models.Bool(protection.Restrictions != nil),
		RequiredStatusChecks:     []string{},
		PushRestrictions:         []string{},
	}

	if reviews := protection.RequiredPullRequestReviews; reviews != nil {
		rule.RequiredApprovingReviewCount = models.Int(reviews.RequiredApprovingReviewCount)
		rule.DismissesStaleReviews = models.Bool(reviews.DismissStaleReviews)
		rule.RequiresCodeOwnerReviews = models.Bool(reviews.RequireCodeOwnerReviews)
	}

	if checks := protection.RequiredStatusChecks; checks != nil {
		rule.RequiresStrictStatusChecks = models.Bool(checks.Strict)
		if checks.Contexts != nil {
			rule.RequiredStatusChecks = *checks.Contexts
		} else if checks.Checks != nil {
			for _, check := range *checks.Checks {
				rule.RequiredStatusChecks = append(rule.RequiredStatusChecks, check.Context)
			}
		}
	}

	if protection.EnforceAdmins != nil {
		rule.IsAdminEnforced = models.Bool(protection.EnforceAdmins.Enabled)
	}
	if protection.RequireLinearHistory != nil {
		rule.RequiresLinearHistory = models.Bool(protection.RequireLinearHistory.Enabled)
	}
	if protection.RequiredConversationResolution != nil {
		rule.RequiresConversationResolution = models.Bool(protection.RequiredConversationResolution.Enabled)
	}
	if protection.AllowForcePushes != nil {
		rule.AllowsForcePushes = models.Bool(protection.AllowForcePushes.Enabled)
	}
	if protection.AllowDeletions != nil {
		rule.AllowsDeletions = models.Bool(protection.AllowDeletions.Enabled)
	}

	if restrictions := protection.Restrictions; restrictions != nil {
		for _, user := range restrictions.Users {
			rule.PushRestrictions = append(rule.PushRestrictions, "@"+user.GetLogin())
		}
		for _, team := range restrictions.Teams {
			rule.PushRestrictions = append(rule.PushRestrictions, "@"+org+"/"+team.GetSlug())
		}
	}

	return rule
}

// buildProtectionRequest builds a GitHub API protection request from the
// configuration resource
func buildProtectionRequest(rule *models.BranchProtectionRule) *github.ProtectionRequest {
	request := &github.ProtectionRequest{
		EnforceAdmins: rule.IsAdminEnforced != nil && *rule.IsAdminEnforced,
	}

	if rule.RequiresApprovingReviews != nil && *rule.RequiresApprovingReviews {
		reviews := &github.PullRequestReviewsEnforcementRequest{
			DismissStaleReviews:     rule.DismissesStaleReviews != nil && *rule.DismissesStaleReviews,
			RequireCodeOwnerReviews: rule.RequiresCodeOwnerReviews != nil && *rule.RequiresCodeOwnerReviews,
		}
		if rule.RequiredApprovingReviewCount != nil {
			reviews.RequiredApprovingReviewCount = *rule.RequiredApprovingReviewCount
		}
		request.RequiredPullRequestReviews = reviews
	}

	if rule.RequiresStatusChecks != nil && *rule.RequiresStatusChecks {
		contexts := rule.RequiredStatusChecks
		if contexts == nil {
			contexts = []string{}
		}
		request.RequiredStatusChecks = &github.RequiredStatusChecks{
			Strict:   rule.RequiresStrictStatusChecks != nil && *rule.RequiresStrictStatusChecks,
			Contexts: &contexts,
		}
	}

	request.RequireLinearHistory = rule.RequiresLinearHistory
	request.RequiredConversationResolution = rule.RequiresConversationResolution
	request.AllowForcePushes = rule.AllowsForcePushes
	request.AllowDeletions = rule.AllowsDeletions

	if rule.RestrictsPushes != nil && *rule.RestrictsPushes {
		users := []string{}
		teams := []string{}
		for _, actor := range rule.PushRestrictions {
			ref := strings.TrimPrefix(actor, "@")
			if _, slug, isTeam := strings.Cut(ref, "/"); isTeam {
				teams = append(teams, slug)
			} else {
				users = append(users, ref)
			}
		}
		request.Restrictions = &github.BranchRestrictionsRequest{
			Users: users,
			Teams: teams,
			Apps:  []string{},
		}
	}

	return request
}
