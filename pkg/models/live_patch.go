package models

import "fmt"

// LivePatchType classifies how a live resource differs from its configuration.
type LivePatchType int

const (
	PatchAdd LivePatchType = iota
	PatchChange
	PatchRemove
)

func (t LivePatchType) String() string {
	switch t {
	case PatchAdd:
		return "add"
	case PatchChange:
		return "change"
	case PatchRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ResourceKind identifies the type of resource a live patch refers to.
type ResourceKind string

const (
	KindOrgSettings          ResourceKind = "org_settings"
	KindOrgWorkflowSettings  ResourceKind = "org_workflow_settings"
	KindOrgWebhook           ResourceKind = "org_webhook"
	KindOrgSecret            ResourceKind = "org_secret"
	KindOrgVariable          ResourceKind = "org_variable"
	KindRepository           ResourceKind = "repository"
	KindRepoWorkflowSettings ResourceKind = "repo_workflow_settings"
	KindRepoWebhook          ResourceKind = "repo_webhook"
	KindRepoSecret           ResourceKind = "repo_secret"
	KindRepoVariable         ResourceKind = "repo_variable"
	KindEnvironment          ResourceKind = "environment"
	KindBranchProtectionRule ResourceKind = "branch_protection_rule"
)

// LivePatch describes a single difference between the configuration and the
// live organization. ADD carries only Expected, REMOVE only Current, CHANGE
// both plus the field-level Changes.
type LivePatch struct {
	Type     LivePatchType
	Kind     ResourceKind
	RepoName string
	Name     string
	Expected any
	Current  any
	Changes  Changes
	Forced   bool
}

// NewAddPatch creates a patch for a resource present in the configuration but
// missing live.
func NewAddPatch(kind ResourceKind, repoName, name string, expected any) LivePatch {
	return LivePatch{Type: PatchAdd, Kind: kind, RepoName: repoName, Name: name, Expected: expected}
}

// NewChangePatch creates a patch for a resource whose live state diverges from
// the configuration in the given fields.
func NewChangePatch(kind ResourceKind, repoName, name string, expected, current any, changes Changes) LivePatch {
	return LivePatch{Type: PatchChange, Kind: kind, RepoName: repoName, Name: name, Expected: expected, Current: current, Changes: changes}
}

// NewRemovePatch creates a patch for a live resource that is absent from the
// configuration.
func NewRemovePatch(kind ResourceKind, repoName, name string, current any) LivePatch {
	return LivePatch{Type: PatchRemove, Kind: kind, RepoName: repoName, Name: name, Current: current}
}

// Path renders the resource coordinate, e.g. "org_settings",
// "org_webhook[https://...]" or "repo[foo].environment[prod]".
func (p LivePatch) Path() string {
	switch p.Kind {
	case KindOrgSettings:
		return "org_settings"
	case KindOrgWorkflowSettings:
		return "org_workflow_settings"
	case KindOrgWebhook, KindOrgSecret, KindOrgVariable:
		return fmt.Sprintf("%s[%s]", p.Kind, p.Name)
	case KindRepository:
		return fmt.Sprintf("repo[%s]", p.Name)
	case KindRepoWorkflowSettings:
		return fmt.Sprintf("repo[%s].workflows", p.RepoName)
	case KindRepoWebhook:
		return fmt.Sprintf("repo[%s].webhook[%s]", p.RepoName, p.Name)
	case KindRepoSecret:
		return fmt.Sprintf("repo[%s].secret[%s]", p.RepoName, p.Name)
	case KindRepoVariable:
		return fmt.Sprintf("repo[%s].variable[%s]", p.RepoName, p.Name)
	case KindEnvironment:
		return fmt.Sprintf("repo[%s].environment[%s]", p.RepoName, p.Name)
	case KindBranchProtectionRule:
		return fmt.Sprintf("repo[%s].branch_protection_rule[%s]", p.RepoName, p.Name)
	default:
		return string(p.Kind)
	}
}
