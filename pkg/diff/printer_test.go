package diff

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"otterdog/pkg/models"
)

func TestPrinter_Print_AddPatch(t *testing.T) {
	webhook := &models.OrganizationWebhook{Webhook: models.Webhook{
		URL:    models.String("https://ci.example.com/hook"),
		Active: models.Bool(true),
		Events: []string{"push"},
		Secret: models.String("real-secret"),
	}}

	var buf bytes.Buffer
	summary := NewPrinter(&buf).Print([]models.LivePatch{
		models.NewAddPatch(models.KindOrgWebhook, "", "https://ci.example.com/hook", webhook),
	})

	want := "+ org_webhook[https://ci.example.com/hook]\n" +
		"    active: true\n" +
		"    events: [push]\n" +
		"    secret: ********\n" +
		"    url: \"https://ci.example.com/hook\"\n" +
		"\nPlan: 1 additions, 0 changes, 0 removals.\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 1, summary.Additions)
	assert.Equal(t, 0, summary.Destructive)
}

func TestPrinter_Print_ChangePatch(t *testing.T) {
	patch := models.NewChangePatch(models.KindRepository, "", "backend", nil, nil,
		models.Changes{"description": {From: "old", To: "new"}})

	var buf bytes.Buffer
	summary := NewPrinter(&buf).Print([]models.LivePatch{patch})

	assert.Contains(t, buf.String(), "~ repo[backend]\n")
	assert.Contains(t, buf.String(), "    ~ description: \"old\" → \"new\"\n")
	assert.Equal(t, 1, summary.Changes)
	assert.Equal(t, 0, summary.Destructive)
}

func TestPrinter_Print_MakingRepoPublicIsDestructive(t *testing.T) {
	patch := models.NewChangePatch(models.KindRepository, "", "backend", nil, nil,
		models.Changes{"private": {From: true, To: false}})

	var buf bytes.Buffer
	summary := NewPrinter(&buf).Print([]models.LivePatch{patch})

	assert.Contains(t, buf.String(), "! repo[backend]\n")
	assert.Contains(t, buf.String(), "    ~ private: true → false\n")
	assert.Contains(t, buf.String(), "1 destructive changes, review carefully before applying.")
	assert.Equal(t, 1, summary.Destructive)
}

func TestPrinter_Print_RemovePatch(t *testing.T) {
	patch := models.NewRemovePatch(models.KindRepository, "", "legacy", nil)

	var buf bytes.Buffer
	summary := NewPrinter(&buf).Print([]models.LivePatch{patch})

	assert.Contains(t, buf.String(), "- repo[legacy]\n")
	assert.Contains(t, buf.String(), "Plan: 0 additions, 0 changes, 1 removals.")
	assert.Equal(t, 1, summary.Removals)
	assert.Equal(t, 1, summary.Destructive)
}

func TestPrinter_Print_EmptyPlan(t *testing.T) {
	var buf bytes.Buffer
	summary := NewPrinter(&buf).Print(nil)

	assert.Equal(t, "The live organization matches the configuration, no changes needed.\n", buf.String())
	assert.False(t, summary.HasChanges())
}

func TestPrinter_Print_ForcedChange(t *testing.T) {
	patch := models.NewChangePatch(models.KindOrgWebhook, "", "https://ci.example.com/hook", nil, nil,
		models.Changes{"secret": {From: "********", To: "hook-secret"}})
	patch.Forced = true

	var buf bytes.Buffer
	NewPrinter(&buf).Print([]models.LivePatch{patch})

	assert.Contains(t, buf.String(), "~ org_webhook[https://ci.example.com/hook] (forced)\n")
}

func TestPrinter_Print_RedactsSecretValues(t *testing.T) {
	secretPatch := models.NewChangePatch(models.KindOrgSecret, "", "DEPLOY_TOKEN", nil, nil,
		models.Changes{"value": {From: "********", To: "aws:prod/new-token"}})
	variablePatch := models.NewChangePatch(models.KindOrgVariable, "", "LOG_LEVEL", nil, nil,
		models.Changes{"value": {From: "info", To: "debug"}})

	var buf bytes.Buffer
	NewPrinter(&buf).Print([]models.LivePatch{secretPatch, variablePatch})

	assert.Contains(t, buf.String(), "    ~ value: ******** → ********\n")
	assert.NotContains(t, buf.String(), "aws:prod/new-token")
	assert.Contains(t, buf.String(), "    ~ value: \"info\" → \"debug\"\n")
}

func TestPrinter_Print_Color(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf)
	printer.Color = true

	printer.Print([]models.LivePatch{
		models.NewAddPatch(models.KindOrgVariable, "", "NEW_VAR",
			&models.OrganizationVariable{Variable: models.Variable{Name: models.String("NEW_VAR"), Value: models.String("1")}}),
	})

	assert.Contains(t, buf.String(), "\x1b[32m+\x1b[0m org_variable[NEW_VAR]\n")
}

func TestSummary_String(t *testing.T) {
	summary := Summary{Additions: 2, Changes: 1, Removals: 3}

	assert.Equal(t, "2 additions, 1 changes, 3 removals", summary.String())
	assert.Equal(t, 6, summary.Total())
	assert.True(t, summary.HasChanges())
}

func TestEscapeForComment(t *testing.T) {
	input := "\x1b[33m~\x1b[0m repo[backend]\n" +
		"    ~ description: \"old\" → \"new\"\n" +
		"+ repo[new-service]\n" +
		"\n" +
		"Plan: 1 additions, 1 changes, 0 removals.\n"

	got := EscapeForComment(input)

	want := " ~ repo[backend]\n" +
		"    ~ description: \"old\" → \"new\"\n" +
		" + repo[new-service]\n" +
		"\n" +
		"Plan: 1 additions, 1 changes, 0 removals.\n"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "\x1b")
}
