package webui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"otterdog/pkg/models"
)

func TestLoadSelectorMap(t *testing.T) {
	m, err := LoadSelectorMap()

	require.NoError(t, err)
	assert.Equal(t, []string{
		"settings/discussions",
		"settings/member_privileges",
		"settings/packages",
		"settings/repository-defaults",
		"settings/security",
	}, m.Pages())

	checkbox := m["settings/discussions"]["has_discussions"]
	assert.Equal(t, InputCheckbox, checkbox.Kind)
	assert.Equal(t, "checked", checkbox.Attribute)
	assert.Contains(t, checkbox.Selector, "organization[has_discussions]")
	assert.Contains(t, checkbox.Save, checkbox.Selector)

	text := m["settings/repository-defaults"]["default_branch_name"]
	assert.Equal(t, InputText, text.Kind)
	assert.Equal(t, "value", text.Attribute)

	radio := m["settings/member_privileges"]["readers_can_create_discussions"]
	assert.Equal(t, InputRadio, radio.Kind)
	assert.Equal(t, "value", radio.Attribute)
}

func TestSelectorMap_CoversAllWebSettings(t *testing.T) {
	m, err := LoadSelectorMap()
	require.NoError(t, err)

	webFields := models.WebFieldNames(&models.OrganizationSettings{})
	for _, name := range webFields {
		_, _, ok := m.Lookup(name)
		assert.True(t, ok, "web setting '%s' has no selector mapping", name)
	}
	assert.ElementsMatch(t, webFields, m.SettingNames(),
		"selector map names a setting the model does not tag as web-only")
}

func TestSelectorMap_Lookup(t *testing.T) {
	m, err := LoadSelectorMap()
	require.NoError(t, err)

	page, d, ok := m.Lookup("packages_containers_public")
	require.True(t, ok)
	assert.Equal(t, "settings/packages", page)
	assert.Equal(t, InputCheckbox, d.Kind)

	_, _, ok = m.Lookup("billing_email")
	assert.False(t, ok)
}

func TestSelectorMap_GroupByPage(t *testing.T) {
	m, err := LoadSelectorMap()
	require.NoError(t, err)

	grouped, unmapped := m.groupByPage([]string{
		"has_discussions",
		"discussion_source_repository",
		"default_branch_name",
		"no_such_setting",
	})

	assert.Equal(t, []string{"no_such_setting"}, unmapped)
	assert.Equal(t, []string{"discussion_source_repository", "has_discussions"}, grouped["settings/discussions"])
	assert.Equal(t, []string{"default_branch_name"}, grouped["settings/repository-defaults"])
}

func TestLoadSelectorMap_RejectsUnsupportedKind(t *testing.T) {
	_, err := loadSelectorMap(`{
		'settings/security': {
			two_factor_requirement: { kind: 'select', attribute: 'value', selector: 'x', save: 'y' },
		},
	}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input kind 'select'")
}

func TestLoadSelectorMap_RejectsIncompleteDescriptor(t *testing.T) {
	_, err := loadSelectorMap(`{
		'settings/security': {
			two_factor_requirement: { kind: 'checkbox', attribute: 'checked', selector: '', save: 'y' },
		},
	}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete descriptor")
}

func TestAsBool(t *testing.T) {
	v, err := asBool(true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = asBool("false")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = asBool(42)
	assert.Error(t, err)
}
