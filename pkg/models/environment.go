package models

import "regexp"

const maxEnvironmentWaitTimer = 43200

var validDeploymentBranchPolicies = map[string]bool{
	"all":       true,
	"protected": true,
	"selected":  true,
}

// Reviewers are given as actor references, '@user' or '@org/team'.
var actorPattern = regexp.MustCompile(`^@[A-Za-z0-9-]+(/[A-Za-z0-9_.-]+)?$`)

// Environment models a deployment environment of a repository.
type Environment struct {
	Name                   *string  `json:"name" model:"key"`
	WaitTimer              *int     `json:"wait_timer"`
	Reviewers              []string `json:"reviewers"`
	DeploymentBranchPolicy *string  `json:"deployment_branch_policy"`
	BranchPolicies         []string `json:"branch_policies"`
}

// GetName returns the environment name, empty when unset.
func (e *Environment) GetName() string {
	if e.Name == nil {
		return ""
	}
	return *e.Name
}

// Validate checks a deployment environment of the named repository.
func (e *Environment) Validate(vc *ValidationContext, repoName string) {
	name := ""
	if e.Name != nil {
		name = *e.Name
	}
	object := "repo[" + repoName + "].environment[" + name + "]"

	if name == "" {
		vc.Errorf(object, "no value for required setting 'name'")
	}

	if e.WaitTimer != nil && (*e.WaitTimer < 0 || *e.WaitTimer > maxEnvironmentWaitTimer) {
		vc.Errorf(object, "'wait_timer' is %d minutes, must be in the range of [0, %d]", *e.WaitTimer, maxEnvironmentWaitTimer)
	}

	for _, reviewer := range e.Reviewers {
		if !actorPattern.MatchString(reviewer) {
			vc.Errorf(object, "reviewer '%s' is not a valid actor reference, use '@user' or '@organization/team'", reviewer)
		}
	}

	policy := ""
	if e.DeploymentBranchPolicy != nil {
		policy = *e.DeploymentBranchPolicy
	}
	if policy != "" && !validDeploymentBranchPolicies[policy] {
		vc.Errorf(object, "'deployment_branch_policy' has value '%s', only values ('all' | 'protected' | 'selected') are allowed", policy)
	}
	if policy == "selected" && len(e.BranchPolicies) == 0 {
		vc.Errorf(object, "deployment branch policy 'selected' requires a non-empty list of 'branch_policies'")
	}
	if policy != "selected" && policy != "" && len(e.BranchPolicies) > 0 {
		vc.Errorf(object, "setting 'branch_policies' requires 'deployment_branch_policy' to be set to 'selected'")
	}
}
