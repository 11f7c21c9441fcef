// Package webui drives the organization settings that GitHub exposes only
// through its web interface. A jsonnet-authored selector map describes which
// settings page carries each setting and how to locate its form control; the
// browser client reads and writes them through a real Chromium session.
package webui

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"otterdog/pkg/jsonnet"
)

//go:embed github-web.jsonnet
var selectorSource string

// InputKind classifies the form control a setting is rendered as.
type InputKind string

const (
	InputCheckbox InputKind = "checkbox"
	InputText     InputKind = "text"
	InputRadio    InputKind = "radio"
)

// Descriptor locates a single setting on its settings page: the control
// kind, the DOM property carrying the current value, the CSS selector of the
// input and the selector of the save control of its enclosing form.
type Descriptor struct {
	Kind      InputKind `json:"kind"`
	Attribute string    `json:"attribute"`
	Selector  string    `json:"selector"`
	Save      string    `json:"save"`
}

// SelectorMap maps a settings page path, relative to organizations/<org-id>/,
// to the settings found on that page. Loaded once, read-only afterwards.
type SelectorMap map[string]map[string]Descriptor

// LoadSelectorMap evaluates the embedded selector map.
func LoadSelectorMap() (SelectorMap, error) {
	return loadSelectorMap(selectorSource)
}

func loadSelectorMap(source string) (SelectorMap, error) {
	rendered, err := jsonnet.NewEvaluator().EvaluateSnippet("github-web.jsonnet", source)
	if err != nil {
		return nil, err
	}

	var m SelectorMap
	if err := json.Unmarshal(rendered, &m); err != nil {
		return nil, fmt.Errorf("failed to decode selector map: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m SelectorMap) validate() error {
	for page, settings := range m {
		for name, d := range settings {
			switch d.Kind {
			case InputCheckbox, InputText, InputRadio:
			default:
				return fmt.Errorf("setting '%s' on page '%s' has unsupported input kind '%s'", name, page, d.Kind)
			}
			if d.Attribute == "" || d.Selector == "" || d.Save == "" {
				return fmt.Errorf("setting '%s' on page '%s' has an incomplete descriptor", name, page)
			}
		}
	}
	return nil
}

// Lookup finds the page and descriptor of a setting by its configuration
// name.
func (m SelectorMap) Lookup(name string) (string, Descriptor, bool) {
	for page, settings := range m {
		if d, ok := settings[name]; ok {
			return page, d, true
		}
	}
	return "", Descriptor{}, false
}

// Pages returns the settings page paths in sorted order.
func (m SelectorMap) Pages() []string {
	pages := make([]string, 0, len(m))
	for page := range m {
		pages = append(pages, page)
	}
	sort.Strings(pages)
	return pages
}

// SettingNames returns the names of all mapped settings in sorted order.
func (m SelectorMap) SettingNames() []string {
	var names []string
	for _, settings := range m {
		for name := range settings {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// groupByPage splits the given setting names by the page they live on,
// keeping each page's settings in sorted order. Unmapped names are returned
// separately.
func (m SelectorMap) groupByPage(names []string) (map[string][]string, []string) {
	grouped := make(map[string][]string)
	var unmapped []string
	for _, name := range names {
		page, _, ok := m.Lookup(name)
		if !ok {
			unmapped = append(unmapped, name)
			continue
		}
		grouped[page] = append(grouped[page], name)
	}
	for _, settings := range grouped {
		sort.Strings(settings)
	}
	return grouped, unmapped
}
