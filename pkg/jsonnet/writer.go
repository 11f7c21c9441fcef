package jsonnet

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/renameio/v2"

	"otterdog/pkg/models"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WriteOptions controls how an organization is rendered to jsonnet.
type WriteOptions struct {
	// TemplateImport is the import path written into the file header.
	TemplateImport string
	// Defaults carries the template's newOrg output. Settings matching
	// their default are not written.
	Defaults *models.GitHubOrganization
	// RepoDefaults carries the template's newRepo output, suppressing
	// repository settings that match their default.
	RepoDefaults *models.Repository
}

// RenderOrg renders an organization into its canonical jsonnet form,
// extending the base template and only spelling out values that differ from
// the template defaults.
func RenderOrg(org *models.GitHubOrganization, opts WriteOptions) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "local orgs = import %s;\n\n", quote(opts.TemplateImport))
	fmt.Fprintf(&b, "orgs.newOrg(%s) {\n", quote(org.GitHubID))

	if org.Settings != nil {
		var defaults map[string]any
		if opts.Defaults != nil && opts.Defaults.Settings != nil {
			defaults = models.ToParams(opts.Defaults.Settings, false)
		}
		var nested func(*strings.Builder, string)
		if org.Settings.Workflows != nil {
			nested = func(b *strings.Builder, indent string) {
				writeObjectField(b, indent, "workflows+", models.ToParams(org.Settings.Workflows, false), nil, nil)
			}
		}
		writeObjectField(&b, "  ", "settings+", models.ToParams(org.Settings, false), defaults, nested)
	}

	if len(org.Webhooks) > 0 {
		b.WriteString("  webhooks+: [\n")
		for i := range org.Webhooks {
			writeResource(&b, "    ", "newOrgWebhook", keyArg(&org.Webhooks[i]),
				dropKey(models.ToParams(&org.Webhooks[i], false), "url"), nil)
		}
		b.WriteString("  ],\n")
	}

	if len(org.Secrets) > 0 {
		b.WriteString("  secrets+: [\n")
		for i := range org.Secrets {
			writeResource(&b, "    ", "newOrgSecret", keyArg(&org.Secrets[i]),
				dropKey(models.ToParams(&org.Secrets[i], false), "name"), nil)
		}
		b.WriteString("  ],\n")
	}

	if len(org.Variables) > 0 {
		b.WriteString("  variables+: [\n")
		for i := range org.Variables {
			writeResource(&b, "    ", "newOrgVariable", keyArg(&org.Variables[i]),
				dropKey(models.ToParams(&org.Variables[i], false), "name"), nil)
		}
		b.WriteString("  ],\n")
	}

	if len(org.Repositories) > 0 {
		var repoDefaults map[string]any
		if opts.RepoDefaults != nil {
			repoDefaults = dropKey(models.ToParams(opts.RepoDefaults, false), "name")
		}

		b.WriteString("  repositories+: [\n")
		for i := range org.Repositories {
			repo := &org.Repositories[i]
			writeResource(&b, "    ", "newRepo", repo.GetName(),
				dropKey(models.ToParams(repo, false), "name"), repoDefaults,
				func(b *strings.Builder, indent string) {
					writeRepoNested(b, indent, repo)
				})
		}
		b.WriteString("  ],\n")
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

func writeRepoNested(b *strings.Builder, indent string, repo *models.Repository) {
	if repo.Workflows != nil {
		writeObjectField(b, indent, "workflows+", models.ToParams(repo.Workflows, false), nil, nil)
	}

	writeResourceList(b, indent, "webhooks", len(repo.Webhooks), func(b *strings.Builder, inner string, i int) {
		writeResource(b, inner, "newRepoWebhook", keyArg(&repo.Webhooks[i]),
			dropKey(models.ToParams(&repo.Webhooks[i], false), "url"), nil)
	})
	writeResourceList(b, indent, "secrets", len(repo.Secrets), func(b *strings.Builder, inner string, i int) {
		writeResource(b, inner, "newRepoSecret", keyArg(&repo.Secrets[i]),
			dropKey(models.ToParams(&repo.Secrets[i], false), "name"), nil)
	})
	writeResourceList(b, indent, "variables", len(repo.Variables), func(b *strings.Builder, inner string, i int) {
		writeResource(b, inner, "newRepoVariable", keyArg(&repo.Variables[i]),
			dropKey(models.ToParams(&repo.Variables[i], false), "name"), nil)
	})
	writeResourceList(b, indent, "environments", len(repo.Environments), func(b *strings.Builder, inner string, i int) {
		writeResource(b, inner, "newEnvironment", keyArg(&repo.Environments[i]),
			dropKey(models.ToParams(&repo.Environments[i], false), "name"), nil)
	})
	writeResourceList(b, indent, "branch_protection_rules", len(repo.BranchProtectionRules), func(b *strings.Builder, inner string, i int) {
		writeResource(b, inner, "newBranchProtectionRule", keyArg(&repo.BranchProtectionRules[i]),
			dropKey(models.ToParams(&repo.BranchProtectionRules[i], false), "pattern"), nil)
	})
}

// writeResource renders 'orgs.<constructor>(<key>) { overrides },'.
func writeResource(b *strings.Builder, indent, constructor, key string, params, defaults map[string]any, nested ...func(*strings.Builder, string)) {
	overrides := suppressDefaults(params, defaults)

	hasNested := len(nested) > 0 && nested[0] != nil
	if len(overrides) == 0 && !hasNested {
		fmt.Fprintf(b, "%sorgs.%s(%s),\n", indent, constructor, quote(key))
		return
	}

	fmt.Fprintf(b, "%sorgs.%s(%s) {\n", indent, constructor, quote(key))
	writeParams(b, indent+"  ", overrides)
	if hasNested {
		nested[0](b, indent+"  ")
	}
	fmt.Fprintf(b, "%s},\n", indent)
}

// writeObjectField renders '<name>: { params },' skipping values equal to
// their default.
func writeObjectField(b *strings.Builder, indent, name string, params, defaults map[string]any, nested func(*strings.Builder, string)) {
	overrides := suppressDefaults(params, defaults)
	if len(overrides) == 0 && nested == nil {
		return
	}

	fmt.Fprintf(b, "%s%s: {\n", indent, name)
	writeParams(b, indent+"  ", overrides)
	if nested != nil {
		nested(b, indent+"  ")
	}
	fmt.Fprintf(b, "%s},\n", indent)
}

func writeResourceList(b *strings.Builder, indent, name string, count int, write func(*strings.Builder, string, int)) {
	if count == 0 {
		return
	}
	fmt.Fprintf(b, "%s%s: [\n", indent, name)
	for i := 0; i < count; i++ {
		write(b, indent+"  ", i)
	}
	fmt.Fprintf(b, "%s],\n", indent)
}

func writeParams(b *strings.Builder, indent string, params map[string]any) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(b, "%s%s: %s,\n", indent, renderKey(k), renderValue(params[k], indent))
	}
}

func suppressDefaults(params, defaults map[string]any) map[string]any {
	if len(defaults) == 0 {
		return params
	}
	overrides := make(map[string]any, len(params))
	for k, v := range params {
		if dv, ok := defaults[k]; ok && cmp.Equal(v, dv) {
			continue
		}
		overrides[k] = v
	}
	return overrides
}

func dropKey(params map[string]any, key string) map[string]any {
	delete(params, key)
	return params
}

func keyArg(obj any) string {
	return models.KeyOf(obj)
}

func renderKey(k string) string {
	if identPattern.MatchString(k) {
		return k
	}
	return quote(k)
}

func renderValue(v any, indent string) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(val)
	case bool:
		return fmt.Sprintf("%t", val)
	case int:
		return fmt.Sprintf("%d", val)
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	case []string:
		items := make([]string, len(val))
		for i, s := range val {
			items[i] = quote(s)
		}
		return renderList(items, indent)
	case []any:
		items := make([]string, len(val))
		for i, e := range val {
			items[i] = renderValue(e, indent)
		}
		return renderList(items, indent)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func renderList(items []string, indent string) string {
	if len(items) == 0 {
		return "[]"
	}
	inline := "[" + strings.Join(items, ", ") + "]"
	if len(inline)+len(indent) <= 80 {
		return inline
	}

	var b strings.Builder
	b.WriteString("[\n")
	for _, item := range items {
		fmt.Fprintf(&b, "%s  %s,\n", indent, item)
	}
	b.WriteString(indent + "]")
	return b.String()
}

// WriteOrgConfig writes the rendered configuration, backing up an existing
// file to '<path>.bak' first. The write itself is atomic. It returns the
// backup path, empty when no previous file existed.
func WriteOrgConfig(path string, content []byte) (string, error) {
	backup := ""
	if data, err := os.ReadFile(path); err == nil {
		backup = path + ".bak"
		if err := os.WriteFile(backup, data, 0644); err != nil {
			return "", fmt.Errorf("failed to back up existing configuration: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := renameio.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write configuration: %w", err)
	}
	return backup, nil
}
