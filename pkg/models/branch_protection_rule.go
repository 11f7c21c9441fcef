package models

// BranchProtectionRule models a protection rule keyed by its branch name
// pattern. It is applied through the REST branch protection API against the
// pattern as branch name.
type BranchProtectionRule struct {
	Pattern                       *string  `json:"pattern" model:"key"`
	RequiresApprovingReviews      *bool    `json:"requires_approving_reviews"`
	RequiredApprovingReviewCount  *int     `json:"required_approving_review_count"`
	DismissesStaleReviews         *bool    `json:"dismisses_stale_reviews"`
	RequiresCodeOwnerReviews      *bool    `json:"requires_code_owner_reviews"`
	RequiresStatusChecks          *bool    `json:"requires_status_checks"`
	RequiresStrictStatusChecks    *bool    `json:"requires_strict_status_checks"`
	RequiredStatusChecks          []string `json:"required_status_checks"`
	IsAdminEnforced               *bool    `json:"is_admin_enforced"`
	RequiresLinearHistory         *bool    `json:"requires_linear_history"`
	RequiresConversationResolution *bool   `json:"requires_conversation_resolution"`
	AllowsForcePushes             *bool    `json:"allows_force_pushes"`
	AllowsDeletions               *bool    `json:"allows_deletions"`
	RestrictsPushes               *bool    `json:"restricts_pushes"`
	PushRestrictions              []string `json:"push_restrictions"`
}

// GetPattern returns the branch name pattern, empty when unset.
func (b *BranchProtectionRule) GetPattern() string {
	if b.Pattern == nil {
		return ""
	}
	return *b.Pattern
}

// Validate checks a branch protection rule of the named repository.
func (b *BranchProtectionRule) Validate(vc *ValidationContext, repoName string) {
	pattern := ""
	if b.Pattern != nil {
		pattern = *b.Pattern
	}
	object := "repo[" + repoName + "].branch_protection_rule[" + pattern + "]"

	if pattern == "" {
		vc.Errorf(object, "no value for required setting 'pattern'")
	}

	approving := b.RequiresApprovingReviews != nil && *b.RequiresApprovingReviews
	if b.RequiredApprovingReviewCount != nil {
		count := *b.RequiredApprovingReviewCount
		if count < 0 || count > 6 {
			vc.Errorf(object, "'required_approving_review_count' is %d, must be in the range of [0, 6]", count)
		}
		if !approving && b.RequiresApprovingReviews != nil {
			vc.Warnf(object, "setting 'required_approving_review_count' has no effect unless 'requires_approving_reviews' is enabled")
		}
	}
	if approving && b.RequiredApprovingReviewCount == nil {
		vc.Errorf(object, "enabling 'requires_approving_reviews' requires setting 'required_approving_review_count' as well")
	}

	checks := b.RequiresStatusChecks != nil && *b.RequiresStatusChecks
	if !checks && b.RequiresStatusChecks != nil && len(b.RequiredStatusChecks) > 0 {
		vc.Warnf(object, "setting 'required_status_checks' has no effect unless 'requires_status_checks' is enabled")
	}

	restricts := b.RestrictsPushes != nil && *b.RestrictsPushes
	if !restricts && b.RestrictsPushes != nil && len(b.PushRestrictions) > 0 {
		vc.Warnf(object, "setting 'push_restrictions' has no effect unless 'restricts_pushes' is enabled")
	}
	for _, actor := range b.PushRestrictions {
		if !actorPattern.MatchString(actor) {
			vc.Errorf(object, "push restriction '%s' is not a valid actor reference, use '@user' or '@organization/team'", actor)
		}
	}
}
