// Package diff computes and applies the difference between a declarative
// organization configuration and the live state of the organization. Plans
// are ordered lists of live patches: organization settings first, then
// organization level resources, then repositories with their nested
// resources.
package diff

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"otterdog/pkg/models"
	"otterdog/pkg/providers/github"
)

// Provider is the subset of the GitHub client the operator needs to apply a
// plan. It is satisfied by *github.Client.
type Provider interface {
	// Organization operations
	UpdateOrgSettings(ctx context.Context, org string, fields map[string]any) error
	UpdateOrgWorkflowSettings(ctx context.Context, org string, fields map[string]any) error

	CreateOrgWebhook(ctx context.Context, org string, webhook *models.OrganizationWebhook) error
	UpdateOrgWebhook(ctx context.Context, org string, webhookID int64, webhook *models.OrganizationWebhook) error
	DeleteOrgWebhook(ctx context.Context, org string, webhookID int64) error

	CreateOrUpdateOrgSecret(ctx context.Context, org string, secret *models.OrganizationSecret) error
	DeleteOrgSecret(ctx context.Context, org, name string) error

	CreateOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) error
	UpdateOrgVariable(ctx context.Context, org string, variable *models.OrganizationVariable) error
	DeleteOrgVariable(ctx context.Context, org, name string) error

	// Repository operations
	CreateRepository(ctx context.Context, org string, repo *models.Repository) error
	UpdateRepository(ctx context.Context, org, name string, fields map[string]any) error
	DeleteRepository(ctx context.Context, org, name string) error

	UpdateRepoWorkflowSettings(ctx context.Context, org, name string, fields map[string]any) error

	CreateRepoWebhook(ctx context.Context, org, repo string, webhook *models.RepositoryWebhook) error
	UpdateRepoWebhook(ctx context.Context, org, repo string, webhookID int64, webhook *models.RepositoryWebhook) error
	DeleteRepoWebhook(ctx context.Context, org, repo string, webhookID int64) error

	CreateOrUpdateRepoSecret(ctx context.Context, org, repo string, secret *models.RepositorySecret) error
	DeleteRepoSecret(ctx context.Context, org, repo, name string) error

	CreateRepoVariable(ctx context.Context, org, repo string, variable *models.RepositoryVariable) error
	UpdateRepoVariable(ctx context.Context, org, repo string, variable *models.RepositoryVariable) error
	DeleteRepoVariable(ctx context.Context, org, repo, name string) error

	CreateOrUpdateEnvironment(ctx context.Context, org, repo string, env *models.Environment) error
	DeleteEnvironment(ctx context.Context, org, repo, name string) error

	UpdateBranchProtectionRule(ctx context.Context, org, repo string, rule *models.BranchProtectionRule) error
	DeleteBranchProtectionRule(ctx context.Context, org, repo, branch string) error
}

var _ Provider = (*github.Client)(nil)

// Options control which differences the operator reports and applies.
type Options struct {
	// IncludeWebUI diffs settings that are only reachable through the
	// browser client.
	IncludeWebUI bool
	// UpdateSecrets forces updates of secrets whose live value is the
	// redacted placeholder and therefore cannot be compared.
	UpdateSecrets bool
	// UpdateWebhooks forces updates of webhooks whose live secret is
	// redacted.
	UpdateWebhooks bool
	// DeleteResources allows Apply to execute remove patches. Without it
	// live resources absent from the configuration are reported but kept.
	DeleteResources bool

	Logger zerolog.Logger
}

// Operator plans and applies changes for a single organization.
type Operator struct {
	provider Provider
	org      string
	opts     Options
	logger   zerolog.Logger
}

// NewOperator creates an operator for the named organization. The provider
// may be nil when the operator is only used for planning, for example when
// diffing two local configuration revisions.
func NewOperator(provider Provider, org string, opts Options) *Operator {
	return &Operator{
		provider: provider,
		org:      org,
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "diff").Str("org", org).Logger(),
	}
}

// Plan compares the expected configuration against the current state and
// returns the ordered patches that would reconcile them. Both sides are
// organization snapshots, so the current state can come from the live
// provider as well as from another configuration revision.
func (o *Operator) Plan(expected, current *models.GitHubOrganization) []models.LivePatch {
	var patches []models.LivePatch
	patches = append(patches, o.planOrgSettings(expected, current)...)
	patches = append(patches, o.planOrgWebhooks(expected, current)...)
	patches = append(patches, o.planOrgSecrets(expected, current)...)
	patches = append(patches, o.planOrgVariables(expected, current)...)
	patches = append(patches, o.planRepositories(expected, current)...)
	return patches
}

func (o *Operator) diffOpts() models.DiffOptions {
	return models.DiffOptions{IncludeWebUI: o.opts.IncludeWebUI}
}

func (o *Operator) planOrgSettings(expected, current *models.GitHubOrganization) []models.LivePatch {
	if expected.Settings == nil {
		return nil
	}
	currentSettings := current.Settings
	if currentSettings == nil {
		currentSettings = &models.OrganizationSettings{}
	}

	var patches []models.LivePatch
	if changes := models.Diff(expected.Settings, currentSettings, o.diffOpts()); len(changes) > 0 {
		patches = append(patches, models.NewChangePatch(models.KindOrgSettings, "", "", expected.Settings, currentSettings, changes))
	}

	if expected.Settings.Workflows != nil {
		currentWorkflows := currentSettings.Workflows
		if currentWorkflows == nil {
			currentWorkflows = &models.OrganizationWorkflowSettings{}
		}
		if changes := models.Diff(expected.Settings.Workflows, currentWorkflows, o.diffOpts()); len(changes) > 0 {
			patches = append(patches, models.NewChangePatch(models.KindOrgWorkflowSettings, "", "",
				expected.Settings.Workflows, currentWorkflows, changes))
		}
	}
	return patches
}

func (o *Operator) planOrgWebhooks(expected, current *models.GitHubOrganization) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.Webhooks, current.Webhooks)
	for _, webhook := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindOrgWebhook, "", webhook.GetURL(), webhook))
	}
	for _, pair := range matched.pairs {
		changes, forced := o.webhookChanges(&pair.expected.Webhook, &pair.current.Webhook)
		if len(changes) == 0 {
			continue
		}
		patch := models.NewChangePatch(models.KindOrgWebhook, "", pair.expected.GetURL(), pair.expected, pair.current, changes)
		patch.Forced = forced
		patches = append(patches, patch)
	}
	for _, webhook := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindOrgWebhook, "", webhook.GetURL(), webhook))
	}
	return patches
}

func (o *Operator) planOrgSecrets(expected, current *models.GitHubOrganization) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.Secrets, current.Secrets)
	for _, secret := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindOrgSecret, "", secret.GetName(), secret))
	}
	for _, pair := range matched.pairs {
		changes, forced := o.secretChanges(&pair.current.Secret, models.Diff(pair.expected, pair.current, o.diffOpts()))
		if len(changes) == 0 {
			continue
		}
		patch := models.NewChangePatch(models.KindOrgSecret, "", pair.expected.GetName(), pair.expected, pair.current, changes)
		patch.Forced = forced
		patches = append(patches, patch)
	}
	for _, secret := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindOrgSecret, "", secret.GetName(), secret))
	}
	return patches
}

func (o *Operator) planOrgVariables(expected, current *models.GitHubOrganization) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.Variables, current.Variables)
	for _, variable := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindOrgVariable, "", variable.GetName(), variable))
	}
	for _, pair := range matched.pairs {
		changes := models.Diff(pair.expected, pair.current, o.diffOpts())
		if len(changes) == 0 {
			continue
		}
		patches = append(patches, models.NewChangePatch(models.KindOrgVariable, "", pair.expected.GetName(), pair.expected, pair.current, changes))
	}
	for _, variable := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindOrgVariable, "", variable.GetName(), variable))
	}
	return patches
}

// webhookChanges computes the field changes of a matched webhook. The live
// secret is redacted by GitHub and cannot be compared, so a secret change on
// a redacted webhook is dropped unless webhook updates are forced.
func (o *Operator) webhookChanges(expected, current *models.Webhook) (models.Changes, bool) {
	changes := models.Diff(expected, current, o.diffOpts())
	forced := false
	if _, ok := changes["secret"]; ok && current.HasDummySecret() {
		if o.opts.UpdateWebhooks {
			forced = true
		} else {
			delete(changes, "secret")
		}
	}
	return changes, forced
}

// secretChanges drops the value change of a secret whose live value is the
// redacted placeholder, unless secret updates are forced.
func (o *Operator) secretChanges(current *models.Secret, changes models.Changes) (models.Changes, bool) {
	forced := false
	if _, ok := changes["value"]; ok && current.HasDummyValue() {
		if o.opts.UpdateSecrets {
			forced = true
		} else {
			delete(changes, "value")
		}
	}
	return changes, forced
}

func (o *Operator) planRepositories(expected, current *models.GitHubOrganization) []models.LivePatch {
	claimed := make(map[int]bool, len(current.Repositories))
	pairing := make(map[int]int, len(expected.Repositories))

	// Exact names bind first so that an alias can never claim a live
	// repository another configured repository names outright.
	for i := range expected.Repositories {
		pairing[i] = -1
		for j := range current.Repositories {
			if !claimed[j] && equalRepoName(expected.Repositories[i].GetName(), current.Repositories[j].GetName()) {
				pairing[i] = j
				claimed[j] = true
				break
			}
		}
	}
	for i := range expected.Repositories {
		if pairing[i] >= 0 {
			continue
		}
		for j := range current.Repositories {
			if !claimed[j] && expected.Repositories[i].MatchesName(current.Repositories[j].GetName()) {
				pairing[i] = j
				claimed[j] = true
				break
			}
		}
	}

	var patches []models.LivePatch
	for i := range expected.Repositories {
		repo := &expected.Repositories[i]
		if pairing[i] < 0 {
			patches = append(patches, o.planNewRepository(repo)...)
			continue
		}
		patches = append(patches, o.planRepositoryChanges(repo, &current.Repositories[pairing[i]])...)
	}
	for j := range current.Repositories {
		if !claimed[j] {
			repo := &current.Repositories[j]
			patches = append(patches, models.NewRemovePatch(models.KindRepository, "", repo.GetName(), repo))
		}
	}
	return patches
}

// planNewRepository emits the add patch for a repository missing live plus
// add patches for all of its configured nested resources.
func (o *Operator) planNewRepository(repo *models.Repository) []models.LivePatch {
	name := repo.GetName()
	patches := []models.LivePatch{models.NewAddPatch(models.KindRepository, "", name, repo)}

	if repo.Workflows != nil {
		patches = append(patches, models.NewAddPatch(models.KindRepoWorkflowSettings, name, "", repo.Workflows))
	}
	for i := range repo.Webhooks {
		patches = append(patches, models.NewAddPatch(models.KindRepoWebhook, name, repo.Webhooks[i].GetURL(), &repo.Webhooks[i]))
	}
	for i := range repo.Secrets {
		patches = append(patches, models.NewAddPatch(models.KindRepoSecret, name, repo.Secrets[i].GetName(), &repo.Secrets[i]))
	}
	for i := range repo.Variables {
		patches = append(patches, models.NewAddPatch(models.KindRepoVariable, name, repo.Variables[i].GetName(), &repo.Variables[i]))
	}
	for i := range repo.Environments {
		if pagesManaged(repo) && repo.Environments[i].GetName() == pagesEnvironment {
			continue
		}
		patches = append(patches, models.NewAddPatch(models.KindEnvironment, name, repo.Environments[i].GetName(), &repo.Environments[i]))
	}
	for i := range repo.BranchProtectionRules {
		patches = append(patches, models.NewAddPatch(models.KindBranchProtectionRule, name, repo.BranchProtectionRules[i].GetPattern(), &repo.BranchProtectionRules[i]))
	}
	return patches
}

func (o *Operator) planRepositoryChanges(expected, current *models.Repository) []models.LivePatch {
	var patches []models.LivePatch
	name := expected.GetName()

	changes := models.Diff(expected, current, o.diffOpts())
	if expected.IsArchived() && current.IsArchived() {
		// GitHub freezes archived repositories except for a handful of
		// settings.
		for field := range changes {
			if !models.ArchivedFieldAllowed(field) {
				delete(changes, field)
			}
		}
	}
	if len(changes) > 0 {
		patches = append(patches, models.NewChangePatch(models.KindRepository, "", name, expected, current, changes))
	}

	// Nested resources cannot be modified while the repository is archived
	// and are not loaded from live state either.
	if current.IsArchived() {
		return patches
	}

	if expected.Workflows != nil {
		currentWorkflows := current.Workflows
		if currentWorkflows == nil {
			currentWorkflows = &models.RepositoryWorkflowSettings{}
		}
		if wfChanges := models.Diff(expected.Workflows, currentWorkflows, o.diffOpts()); len(wfChanges) > 0 {
			patches = append(patches, models.NewChangePatch(models.KindRepoWorkflowSettings, name, "",
				expected.Workflows, currentWorkflows, wfChanges))
		}
	}

	patches = append(patches, o.planRepoWebhooks(name, expected, current)...)
	patches = append(patches, o.planRepoSecrets(name, expected, current)...)
	patches = append(patches, o.planRepoVariables(name, expected, current)...)
	patches = append(patches, o.planEnvironments(name, expected, current)...)
	patches = append(patches, o.planBranchProtectionRules(name, expected, current)...)
	return patches
}

func (o *Operator) planRepoWebhooks(repoName string, expected, current *models.Repository) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.Webhooks, current.Webhooks)
	for _, webhook := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindRepoWebhook, repoName, webhook.GetURL(), webhook))
	}
	for _, pair := range matched.pairs {
		changes, forced := o.webhookChanges(&pair.expected.Webhook, &pair.current.Webhook)
		if len(changes) == 0 {
			continue
		}
		patch := models.NewChangePatch(models.KindRepoWebhook, repoName, pair.expected.GetURL(), pair.expected, pair.current, changes)
		patch.Forced = forced
		patches = append(patches, patch)
	}
	for _, webhook := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindRepoWebhook, repoName, webhook.GetURL(), webhook))
	}
	return patches
}

func (o *Operator) planRepoSecrets(repoName string, expected, current *models.Repository) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.Secrets, current.Secrets)
	for _, secret := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindRepoSecret, repoName, secret.GetName(), secret))
	}
	for _, pair := range matched.pairs {
		changes, forced := o.secretChanges(&pair.current.Secret, models.Diff(pair.expected, pair.current, o.diffOpts()))
		if len(changes) == 0 {
			continue
		}
		patch := models.NewChangePatch(models.KindRepoSecret, repoName, pair.expected.GetName(), pair.expected, pair.current, changes)
		patch.Forced = forced
		patches = append(patches, patch)
	}
	for _, secret := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindRepoSecret, repoName, secret.GetName(), secret))
	}
	return patches
}

func (o *Operator) planRepoVariables(repoName string, expected, current *models.Repository) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.Variables, current.Variables)
	for _, variable := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindRepoVariable, repoName, variable.GetName(), variable))
	}
	for _, pair := range matched.pairs {
		changes := models.Diff(pair.expected, pair.current, o.diffOpts())
		if len(changes) == 0 {
			continue
		}
		patches = append(patches, models.NewChangePatch(models.KindRepoVariable, repoName, pair.expected.GetName(), pair.expected, pair.current, changes))
	}
	for _, variable := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindRepoVariable, repoName, variable.GetName(), variable))
	}
	return patches
}

const pagesEnvironment = "github-pages"

// pagesManaged reports whether the configuration manages GitHub Pages for
// the repository. GitHub creates and owns the github-pages environment in
// that case, so it is exempt from environment reconciliation.
func pagesManaged(repo *models.Repository) bool {
	return repo.GHPagesBuildType != nil && *repo.GHPagesBuildType != "disabled"
}

func (o *Operator) planEnvironments(repoName string, expected, current *models.Repository) []models.LivePatch {
	skipPages := pagesManaged(expected)

	var patches []models.LivePatch
	matched := matchByKey(expected.Environments, current.Environments)
	for _, env := range matched.added {
		if skipPages && env.GetName() == pagesEnvironment {
			continue
		}
		patches = append(patches, models.NewAddPatch(models.KindEnvironment, repoName, env.GetName(), env))
	}
	for _, pair := range matched.pairs {
		if skipPages && pair.expected.GetName() == pagesEnvironment {
			continue
		}
		changes := models.Diff(pair.expected, pair.current, o.diffOpts())
		if len(changes) == 0 {
			continue
		}
		patches = append(patches, models.NewChangePatch(models.KindEnvironment, repoName, pair.expected.GetName(), pair.expected, pair.current, changes))
	}
	for _, env := range matched.removed {
		if skipPages && env.GetName() == pagesEnvironment {
			continue
		}
		patches = append(patches, models.NewRemovePatch(models.KindEnvironment, repoName, env.GetName(), env))
	}
	return patches
}

func (o *Operator) planBranchProtectionRules(repoName string, expected, current *models.Repository) []models.LivePatch {
	var patches []models.LivePatch
	matched := matchByKey(expected.BranchProtectionRules, current.BranchProtectionRules)
	for _, rule := range matched.added {
		patches = append(patches, models.NewAddPatch(models.KindBranchProtectionRule, repoName, rule.GetPattern(), rule))
	}
	for _, pair := range matched.pairs {
		changes := models.Diff(pair.expected, pair.current, o.diffOpts())
		if len(changes) == 0 {
			continue
		}
		patches = append(patches, models.NewChangePatch(models.KindBranchProtectionRule, repoName, pair.expected.GetPattern(), pair.expected, pair.current, changes))
	}
	for _, rule := range matched.removed {
		patches = append(patches, models.NewRemovePatch(models.KindBranchProtectionRule, repoName, rule.GetPattern(), rule))
	}
	return patches
}

// ApplyResult reports the outcome of applying a plan.
type ApplyResult struct {
	Applied []string
	Skipped []string
	Failed  map[string]error
}

// Apply executes the patches against the provider in plan order. Failures do
// not stop the remaining patches; they are collected and returned as a
// partial failure error. Remove patches are skipped unless resource deletion
// is enabled.
func (o *Operator) Apply(ctx context.Context, patches []models.LivePatch) (*ApplyResult, error) {
	if o.provider == nil {
		return nil, fmt.Errorf("operator for organization '%s' has no provider", o.org)
	}

	result := &ApplyResult{Failed: make(map[string]error)}
	for _, patch := range patches {
		path := patch.Path()
		if patch.Type == models.PatchRemove && !o.opts.DeleteResources {
			o.logger.Info().Str("resource", path).Msg("resource deletion is disabled, keeping live resource")
			result.Skipped = append(result.Skipped, path)
			continue
		}
		if err := o.applyPatch(ctx, patch); err != nil {
			o.logger.Error().Err(err).Str("resource", path).Msg("failed to apply patch")
			result.Failed[path] = err
			continue
		}
		o.logger.Debug().Str("resource", path).Str("action", patch.Type.String()).Msg("patch applied")
		result.Applied = append(result.Applied, path)
	}

	if len(result.Failed) > 0 {
		return result, github.NewPartialFailureError(
			fmt.Sprintf("failed to apply all changes to organization '%s'", o.org), result.Applied, result.Failed)
	}
	return result, nil
}

func (o *Operator) applyPatch(ctx context.Context, patch models.LivePatch) error {
	switch patch.Kind {
	case models.KindOrgSettings:
		return o.provider.UpdateOrgSettings(ctx, o.org, changeParams(patch.Changes))
	case models.KindOrgWorkflowSettings:
		return o.provider.UpdateOrgWorkflowSettings(ctx, o.org, changeParams(patch.Changes))
	case models.KindOrgWebhook:
		return o.applyOrgWebhook(ctx, patch)
	case models.KindOrgSecret:
		return o.applyOrgSecret(ctx, patch)
	case models.KindOrgVariable:
		return o.applyOrgVariable(ctx, patch)
	case models.KindRepository:
		return o.applyRepository(ctx, patch)
	case models.KindRepoWorkflowSettings:
		fields := changeParams(patch.Changes)
		if patch.Type == models.PatchAdd {
			fields = models.ToParams(patch.Expected, false)
		}
		return o.provider.UpdateRepoWorkflowSettings(ctx, o.org, patch.RepoName, fields)
	case models.KindRepoWebhook:
		return o.applyRepoWebhook(ctx, patch)
	case models.KindRepoSecret:
		return o.applyRepoSecret(ctx, patch)
	case models.KindRepoVariable:
		return o.applyRepoVariable(ctx, patch)
	case models.KindEnvironment:
		return o.applyEnvironment(ctx, patch)
	case models.KindBranchProtectionRule:
		return o.applyBranchProtectionRule(ctx, patch)
	default:
		return fmt.Errorf("unsupported resource kind '%s'", patch.Kind)
	}
}

func (o *Operator) applyOrgWebhook(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd:
		return o.provider.CreateOrgWebhook(ctx, o.org, patch.Expected.(*models.OrganizationWebhook))
	case models.PatchChange:
		id, err := webhookID(patch.Current)
		if err != nil {
			return err
		}
		return o.provider.UpdateOrgWebhook(ctx, o.org, id, patch.Expected.(*models.OrganizationWebhook))
	case models.PatchRemove:
		id, err := webhookID(patch.Current)
		if err != nil {
			return err
		}
		return o.provider.DeleteOrgWebhook(ctx, o.org, id)
	}
	return nil
}

func (o *Operator) applyOrgSecret(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd, models.PatchChange:
		return o.provider.CreateOrUpdateOrgSecret(ctx, o.org, patch.Expected.(*models.OrganizationSecret))
	case models.PatchRemove:
		return o.provider.DeleteOrgSecret(ctx, o.org, patch.Name)
	}
	return nil
}

func (o *Operator) applyOrgVariable(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd:
		return o.provider.CreateOrgVariable(ctx, o.org, patch.Expected.(*models.OrganizationVariable))
	case models.PatchChange:
		return o.provider.UpdateOrgVariable(ctx, o.org, patch.Expected.(*models.OrganizationVariable))
	case models.PatchRemove:
		return o.provider.DeleteOrgVariable(ctx, o.org, patch.Name)
	}
	return nil
}

func (o *Operator) applyRepository(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd:
		return o.provider.CreateRepository(ctx, o.org, patch.Expected.(*models.Repository))
	case models.PatchChange:
		// The request path must address the repository by its live name,
		// the patch itself may carry the rename.
		current := patch.Current.(*models.Repository)
		return o.provider.UpdateRepository(ctx, o.org, current.GetName(), changeParams(patch.Changes))
	case models.PatchRemove:
		return o.provider.DeleteRepository(ctx, o.org, patch.Name)
	}
	return nil
}

func (o *Operator) applyRepoWebhook(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd:
		return o.provider.CreateRepoWebhook(ctx, o.org, patch.RepoName, patch.Expected.(*models.RepositoryWebhook))
	case models.PatchChange:
		id, err := webhookID(patch.Current)
		if err != nil {
			return err
		}
		return o.provider.UpdateRepoWebhook(ctx, o.org, patch.RepoName, id, patch.Expected.(*models.RepositoryWebhook))
	case models.PatchRemove:
		id, err := webhookID(patch.Current)
		if err != nil {
			return err
		}
		return o.provider.DeleteRepoWebhook(ctx, o.org, patch.RepoName, id)
	}
	return nil
}

func (o *Operator) applyRepoSecret(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd, models.PatchChange:
		return o.provider.CreateOrUpdateRepoSecret(ctx, o.org, patch.RepoName, patch.Expected.(*models.RepositorySecret))
	case models.PatchRemove:
		return o.provider.DeleteRepoSecret(ctx, o.org, patch.RepoName, patch.Name)
	}
	return nil
}

func (o *Operator) applyRepoVariable(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd:
		return o.provider.CreateRepoVariable(ctx, o.org, patch.RepoName, patch.Expected.(*models.RepositoryVariable))
	case models.PatchChange:
		return o.provider.UpdateRepoVariable(ctx, o.org, patch.RepoName, patch.Expected.(*models.RepositoryVariable))
	case models.PatchRemove:
		return o.provider.DeleteRepoVariable(ctx, o.org, patch.RepoName, patch.Name)
	}
	return nil
}

func (o *Operator) applyEnvironment(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd, models.PatchChange:
		return o.provider.CreateOrUpdateEnvironment(ctx, o.org, patch.RepoName, patch.Expected.(*models.Environment))
	case models.PatchRemove:
		return o.provider.DeleteEnvironment(ctx, o.org, patch.RepoName, patch.Name)
	}
	return nil
}

func (o *Operator) applyBranchProtectionRule(ctx context.Context, patch models.LivePatch) error {
	switch patch.Type {
	case models.PatchAdd, models.PatchChange:
		return o.provider.UpdateBranchProtectionRule(ctx, o.org, patch.RepoName, patch.Expected.(*models.BranchProtectionRule))
	case models.PatchRemove:
		return o.provider.DeleteBranchProtectionRule(ctx, o.org, patch.RepoName, patch.Name)
	}
	return nil
}

// changeParams turns field-level changes into the parameter map consumed by
// the provider's update calls.
func changeParams(changes models.Changes) map[string]any {
	fields := make(map[string]any, len(changes))
	for name, change := range changes {
		fields[name] = change.To
	}
	return fields
}

// webhookID extracts the live id needed to address a webhook for update or
// removal.
func webhookID(current any) (int64, error) {
	var id *int64
	switch webhook := current.(type) {
	case *models.OrganizationWebhook:
		id = webhook.ID
	case *models.RepositoryWebhook:
		id = webhook.ID
	}
	if id == nil {
		return 0, fmt.Errorf("live webhook carries no id")
	}
	return *id, nil
}
