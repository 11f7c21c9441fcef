package models

import (
	"regexp"
	"strings"
)

var validSecretVisibilities = map[string]bool{
	"public":   true,
	"private":  true,
	"selected": true,
}

// Secret is the shared shape of organization and repository secrets. Values
// read back from the provider are always the redacted dummy value; the
// resolved configured value is what gets written.
type Secret struct {
	Name  *string `json:"name" model:"key"`
	Value *string `json:"value"`
}

// GetName returns the secret name, empty when unset.
func (s *Secret) GetName() string {
	if s.Name == nil {
		return ""
	}
	return *s.Name
}

// HasDummyValue reports whether the secret value is the redacted provider
// placeholder rather than a real value.
func (s *Secret) HasDummyValue() bool {
	return s.Value != nil && *s.Value == DummySecretValue
}

var secretRefPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*:.+`)

// IsSecretRef reports whether the value is a credential provider reference of
// the form 'provider:key'. The redacted dummy value and URLs never count as
// references.
func IsSecretRef(value string) bool {
	if value == DummySecretValue || strings.Contains(value, "://") {
		return false
	}
	return secretRefPattern.MatchString(value)
}

func (s *Secret) validate(vc *ValidationContext, object string) {
	if s.Name == nil || *s.Name == "" {
		vc.Errorf(object, "no value for required setting 'name'")
	}
	if s.Value == nil || *s.Value == "" {
		vc.Errorf(object, "no value for required setting 'value'")
	}
}

// OrganizationSecret is an Actions secret on the organization, with a
// visibility scope.
type OrganizationSecret struct {
	Secret
	Visibility           *string  `json:"visibility"`
	SelectedRepositories []string `json:"selected_repositories"`
}

// Validate checks an organization secret.
func (s *OrganizationSecret) Validate(vc *ValidationContext) {
	name := ""
	if s.Name != nil {
		name = *s.Name
	}
	object := "secret[" + name + "]"
	s.Secret.validate(vc, object)

	visibility := ""
	if s.Visibility != nil {
		visibility = *s.Visibility
	}
	if visibility != "" && !validSecretVisibilities[visibility] {
		vc.Errorf(object, "'visibility' has value '%s', only values ('public' | 'private' | 'selected') are allowed", visibility)
	}
	if visibility == "selected" && len(s.SelectedRepositories) == 0 {
		vc.Errorf(object, "visibility 'selected' requires a non-empty list of 'selected_repositories'")
	}
	if visibility != "selected" && len(s.SelectedRepositories) > 0 {
		vc.Warnf(object, "setting 'selected_repositories' has no effect unless 'visibility' is set to 'selected'")
	}
}

// RepositorySecret is an Actions secret on a single repository.
type RepositorySecret struct {
	Secret
}

// Validate checks a repository secret of the named repository.
func (s *RepositorySecret) Validate(vc *ValidationContext, repoName string) {
	name := ""
	if s.Name != nil {
		name = *s.Name
	}
	s.Secret.validate(vc, "repo["+repoName+"].secret["+name+"]")
}
