package models

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// GitHubOrganization is the root of a declarative organization configuration
// as produced by evaluating the organization's jsonnet file.
type GitHubOrganization struct {
	GitHubID     string                 `json:"github_id"`
	Settings     *OrganizationSettings  `json:"settings"`
	Webhooks     []OrganizationWebhook  `json:"webhooks"`
	Secrets      []OrganizationSecret   `json:"secrets"`
	Variables    []OrganizationVariable `json:"variables"`
	Repositories []Repository           `json:"repositories"`
}

// LoadOrganization decodes an evaluated organization configuration. Unknown
// keys are rejected so typos in jsonnet templates surface as load errors
// instead of silently unmanaged settings.
func LoadOrganization(data []byte) (*GitHubOrganization, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()

	var org GitHubOrganization
	if err := dec.Decode(&org); err != nil {
		return nil, fmt.Errorf("failed to decode organization configuration: %w", err)
	}
	if org.GitHubID == "" {
		return nil, fmt.Errorf("organization configuration misses required 'github_id'")
	}
	return &org, nil
}

// Validate checks the complete configuration and returns the collected
// findings. Coercion of org-constrained repo settings runs first so that
// validation sees the effective configuration.
func (o *GitHubOrganization) Validate() *ValidationContext {
	vc := &ValidationContext{}

	if o.Settings == nil {
		vc.Errorf("org", "no 'settings' present in configuration")
	} else {
		o.Settings.Validate(vc)
	}

	for i := range o.Repositories {
		o.Repositories[i].Coerce(o.Settings, vc)
	}

	seen := map[string]string{}
	for i := range o.Repositories {
		repo := &o.Repositories[i]
		lower := strings.ToLower(repo.GetName())
		if prev, ok := seen[lower]; ok {
			vc.Errorf("org", "repository '%s' is defined more than once (previous definition '%s')", repo.GetName(), prev)
		}
		seen[lower] = repo.GetName()
	}

	for i := range o.Webhooks {
		o.Webhooks[i].Validate(vc)
	}
	for i := range o.Secrets {
		o.Secrets[i].Validate(vc)
	}
	for i := range o.Variables {
		o.Variables[i].Validate(vc)
	}
	for i := range o.Repositories {
		o.Repositories[i].Validate(vc, o.GitHubID)
	}

	return vc
}

// RepositoryByName finds a repository by name or alias, nil if absent.
func (o *GitHubOrganization) RepositoryByName(name string) *Repository {
	for i := range o.Repositories {
		if o.Repositories[i].MatchesName(name) {
			return &o.Repositories[i]
		}
	}
	return nil
}

// SecretResolver resolves a credential reference of the form
// "provider:key[@field]" to its plain value.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// ResolveSecrets replaces all resolvable secret references in webhooks,
// secrets and nested repository resources with their actual values.
func (o *GitHubOrganization) ResolveSecrets(ctx context.Context, resolver SecretResolver) error {
	resolve := func(value *string, what string) error {
		if value == nil || !IsSecretRef(*value) {
			return nil
		}
		resolved, err := resolver.ResolveSecret(ctx, *value)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", what, err)
		}
		*value = resolved
		return nil
	}

	for i := range o.Webhooks {
		if err := resolve(o.Webhooks[i].Secret, fmt.Sprintf("secret of org webhook '%s'", derefStr(o.Webhooks[i].URL))); err != nil {
			return err
		}
	}
	for i := range o.Secrets {
		if err := resolve(o.Secrets[i].Value, fmt.Sprintf("org secret '%s'", derefStr(o.Secrets[i].Name))); err != nil {
			return err
		}
	}
	for i := range o.Repositories {
		repo := &o.Repositories[i]
		for j := range repo.Webhooks {
			if err := resolve(repo.Webhooks[j].Secret, fmt.Sprintf("secret of webhook '%s' in repo '%s'", derefStr(repo.Webhooks[j].URL), repo.GetName())); err != nil {
				return err
			}
		}
		for j := range repo.Secrets {
			if err := resolve(repo.Secrets[j].Value, fmt.Sprintf("secret '%s' in repo '%s'", derefStr(repo.Secrets[j].Name), repo.GetName())); err != nil {
				return err
			}
		}
	}
	return nil
}

// SecretRefs collects all distinct secret references used anywhere in the
// configuration, sorted for stable output.
func (o *GitHubOrganization) SecretRefs() []string {
	set := map[string]bool{}
	add := func(value *string) {
		if value != nil && IsSecretRef(*value) {
			set[*value] = true
		}
	}

	for i := range o.Webhooks {
		add(o.Webhooks[i].Secret)
	}
	for i := range o.Secrets {
		add(o.Secrets[i].Value)
	}
	for i := range o.Repositories {
		repo := &o.Repositories[i]
		for j := range repo.Webhooks {
			add(repo.Webhooks[j].Secret)
		}
		for j := range repo.Secrets {
			add(repo.Secrets[j].Value)
		}
	}

	refs := make([]string, 0, len(set))
	for ref := range set {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
