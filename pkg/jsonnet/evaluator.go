package jsonnet

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonnet "github.com/google/go-jsonnet"

	"otterdog/pkg/models"
)

// Evaluator evaluates organization configuration files. A fresh VM is
// created per evaluation, the underlying VM is not safe for concurrent use.
type Evaluator struct {
	jpaths []string
}

// NewEvaluator creates an evaluator whose import paths include the given
// directories, typically the config dir and the template checkout.
func NewEvaluator(jpaths ...string) *Evaluator {
	return &Evaluator{jpaths: jpaths}
}

func (e *Evaluator) vm() *jsonnet.VM {
	vm := jsonnet.MakeVM()
	vm.Importer(&jsonnet.FileImporter{JPaths: e.jpaths})
	return vm
}

// EvaluateFile evaluates a jsonnet file to its JSON output.
func (e *Evaluator) EvaluateFile(path string) ([]byte, error) {
	output, err := e.vm().EvaluateFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate '%s': %w", path, err)
	}
	return []byte(output), nil
}

// EvaluateSnippet evaluates an inline jsonnet snippet to its JSON output.
func (e *Evaluator) EvaluateSnippet(name, snippet string) ([]byte, error) {
	output, err := e.vm().EvaluateAnonymousSnippet(name, snippet)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s: %w", name, err)
	}
	return []byte(output), nil
}

// LoadOrganization evaluates an organization configuration file into its
// model form.
func (e *Evaluator) LoadOrganization(path string) (*models.GitHubOrganization, error) {
	data, err := e.EvaluateFile(path)
	if err != nil {
		return nil, err
	}
	return models.LoadOrganization(data)
}

// DefaultOrg evaluates the template's newOrg constructor, yielding the
// default configuration an organization inherits.
func (e *Evaluator) DefaultOrg(templateFile, githubID string) (*models.GitHubOrganization, error) {
	snippet := fmt.Sprintf("(import %s).newOrg(%s)", quote(templateFile), quote(githubID))
	data, err := e.EvaluateSnippet("default-org", snippet)
	if err != nil {
		return nil, err
	}

	var org models.GitHubOrganization
	if err := json.Unmarshal(data, &org); err != nil {
		return nil, fmt.Errorf("failed to decode template defaults: %w", err)
	}
	return &org, nil
}

// DefaultRepo evaluates the template's newRepo constructor, yielding the
// defaults a repository inherits.
func (e *Evaluator) DefaultRepo(templateFile, name string) (*models.Repository, error) {
	snippet := fmt.Sprintf("(import %s).newRepo(%s)", quote(templateFile), quote(name))
	data, err := e.EvaluateSnippet("default-repo", snippet)
	if err != nil {
		return nil, err
	}

	var repo models.Repository
	if err := json.Unmarshal(data, &repo); err != nil {
		return nil, fmt.Errorf("failed to decode repository defaults: %w", err)
	}
	return &repo, nil
}

// quote renders a jsonnet single quoted string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
