package models

// Variable is the shared shape of organization and repository Actions
// variables. Unlike secrets these are plaintext and read back verbatim.
type Variable struct {
	Name  *string `json:"name" model:"key"`
	Value *string `json:"value"`
}

// GetName returns the variable name, empty when unset.
func (v *Variable) GetName() string {
	if v.Name == nil {
		return ""
	}
	return *v.Name
}

func (v *Variable) validate(vc *ValidationContext, object string) {
	if v.Name == nil || *v.Name == "" {
		vc.Errorf(object, "no value for required setting 'name'")
	}
	if v.Value == nil {
		vc.Errorf(object, "no value for required setting 'value'")
	}
}

// OrganizationVariable is an Actions variable on the organization.
type OrganizationVariable struct {
	Variable
	Visibility           *string  `json:"visibility"`
	SelectedRepositories []string `json:"selected_repositories"`
}

// Validate checks an organization variable.
func (v *OrganizationVariable) Validate(vc *ValidationContext) {
	name := ""
	if v.Name != nil {
		name = *v.Name
	}
	object := "variable[" + name + "]"
	v.Variable.validate(vc, object)

	visibility := ""
	if v.Visibility != nil {
		visibility = *v.Visibility
	}
	if visibility != "" && !validSecretVisibilities[visibility] {
		vc.Errorf(object, "'visibility' has value '%s', only values ('public' | 'private' | 'selected') are allowed", visibility)
	}
	if visibility == "selected" && len(v.SelectedRepositories) == 0 {
		vc.Errorf(object, "visibility 'selected' requires a non-empty list of 'selected_repositories'")
	}
}

// RepositoryVariable is an Actions variable on a single repository.
type RepositoryVariable struct {
	Variable
}

// Validate checks a repository variable of the named repository.
func (v *RepositoryVariable) Validate(vc *ValidationContext, repoName string) {
	name := ""
	if v.Name != nil {
		name = *v.Name
	}
	v.Variable.validate(vc, "repo["+repoName+"].variable["+name+"]")
}
