package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"otterdog/pkg/cache"
	"otterdog/pkg/config"
	"otterdog/pkg/credentials"
	"otterdog/pkg/fuzzy"
	"otterdog/pkg/jsonnet"
	"otterdog/pkg/models"
	"otterdog/pkg/providers/github"
	"otterdog/pkg/webui"
)

// loadRootConfig loads and validates the configuration named by --config.
// With the default name, otterdog.yaml is tried when otterdog.json does not
// exist.
func loadRootConfig() (*config.Config, error) {
	path := configFile
	if path == config.DefaultConfigFile {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if _, err := os.Stat(config.DefaultConfigFileYAML); err == nil {
				path = config.DefaultConfigFileYAML
			}
		}
	}

	cfg, err := config.LoadConfigFromPath(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// selectOrganization resolves the organization to operate on. An explicit
// argument wins, a single configured organization is used as-is, otherwise
// an interactive picker runs when the session allows it.
func selectOrganization(cfg *config.Config, args []string) (*config.OrganizationConfig, error) {
	if len(args) > 0 {
		return cfg.Organization(args[0])
	}
	if len(cfg.Organizations) == 1 {
		return &cfg.Organizations[0], nil
	}
	if !fuzzy.IsInteractive() {
		return nil, fmt.Errorf("multiple organizations configured, name one of: %s",
			strings.Join(cfg.OrganizationNames(), ", "))
	}

	finder := fuzzy.NewFzf("🔍 Select organization:")
	options := make([]fuzzy.Option, 0, len(cfg.Organizations))
	for _, org := range cfg.Organizations {
		options = append(options, fuzzy.Option{Value: org.Name, Description: org.GitHubID})
	}
	if err := finder.SetOptions(options); err != nil {
		return nil, fmt.Errorf("failed to set finder options: %w", err)
	}

	selected, err := finder.Select()
	if err != nil {
		return nil, fmt.Errorf("organization selection failed: %w", err)
	}
	return cfg.Organization(selected)
}

// orgRun bundles everything a command operating on one organization needs.
type orgRun struct {
	cfg       *config.Config
	org       *config.OrganizationConfig
	resolver  *credentials.Resolver
	creds     *credentials.Credentials
	evaluator *jsonnet.Evaluator
	provider  *github.Client
	store     cache.Store
}

// newOrgRun prepares a command run for one organization. With withProvider
// the credentials are resolved and an API client is built; offline commands
// skip that and work purely on local files.
func newOrgRun(ctx context.Context, args []string, withProvider bool) (*orgRun, error) {
	cfg, err := loadRootConfig()
	if err != nil {
		return nil, err
	}
	org, err := selectOrganization(cfg, args)
	if err != nil {
		return nil, err
	}

	configDir := filepath.Dir(cfg.OrgConfigPath(org.GitHubID))
	run := &orgRun{
		cfg:       cfg,
		org:       org,
		resolver:  newResolver(ctx),
		evaluator: jsonnet.NewEvaluator(configDir, cfg.TemplateDir()),
	}
	if !withProvider {
		return run, nil
	}

	if err := run.resolveCredentials(ctx); err != nil {
		return nil, err
	}
	if run.creds.GitHubToken == "" {
		return nil, fmt.Errorf("no API token configured for organization '%s'", org.Name)
	}

	store, err := cache.New(cache.Options{
		Backend:   cfg.Defaults.Cache.Backend,
		Dir:       cfg.CacheDir(),
		RedisAddr: cfg.Defaults.Cache.RedisAddr,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up API cache: %w", err)
	}
	run.store = store

	provider, err := github.NewClient(run.creds.GitHubToken, github.Options{
		BaseURL: cfg.Defaults.GitHub.BaseURL,
		Cache:   store,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	run.provider = provider

	// Classic tokens report their scopes, fine-grained tokens pass the
	// check unseen and fail later on the operation that lacks permission.
	if missing, err := provider.ValidateTokenScopes(ctx); err != nil {
		logger.Debug().Err(err).Msg("token scope check failed")
	} else if len(missing) > 0 {
		fmt.Printf("⚠️  API token for organization '%s' is missing scopes: %s\n",
			run.org.GitHubID, strings.Join(missing, ", "))
	}
	return run, nil
}

// newResolver builds the credential resolver. The aws provider is optional,
// its absence only surfaces when a configuration references it.
func newResolver(ctx context.Context) *credentials.Resolver {
	resolver := credentials.NewResolver()
	if aws, err := credentials.NewAWSProvider(ctx); err == nil {
		resolver.Register(aws)
	} else {
		logger.Debug().Err(err).Msg("aws credential provider not available")
	}
	return resolver
}

func (r *orgRun) resolveCredentials(ctx context.Context) error {
	creds, err := r.resolver.Resolve(ctx, r.org.Credentials)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials for organization '%s': %w", r.org.Name, err)
	}
	r.creds = creds
	return nil
}

// Close releases the API cache.
func (r *orgRun) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

// configPath returns the path of the organization's local jsonnet file.
func (r *orgRun) configPath() string {
	return r.cfg.OrgConfigPath(r.org.GitHubID)
}

// loadExpected evaluates the local configuration of the organization.
func (r *orgRun) loadExpected() (*models.GitHubOrganization, error) {
	path := r.configPath()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no configuration found at '%s', run 'otterdog fetch-config %s' or 'otterdog import %s' first",
			path, r.org.Name, r.org.Name)
	}
	return r.evaluator.LoadOrganization(path)
}

// webClient builds a logged in browser client for the organization. The
// caller owns the returned client and must close it.
func (r *orgRun) webClient(ctx context.Context, headless bool) (*webui.Client, error) {
	selectors, err := webui.LoadSelectorMap()
	if err != nil {
		return nil, err
	}

	client, err := webui.NewClient(selectors, webui.ClientOptions{
		ProfileDir: r.cfg.BrowserProfileDir(r.org.GitHubID),
		Headless:   headless,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	if err := client.Login(ctx, r.creds); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// prepareWebState opens a headless web session and merges the browser-only
// settings into the current snapshot so they participate in the diff. It
// returns nil when web settings are excluded; noWebUI suppresses the hint
// that credentials are missing. The caller must close a returned client.
func (r *orgRun) prepareWebState(ctx context.Context, includeWeb, noWebUI bool, current *models.GitHubOrganization) (*webui.Client, error) {
	if !includeWeb {
		if !noWebUI {
			fmt.Println("⚠️  No web credentials configured, skipping settings only reachable through the web interface.")
		}
		return nil, nil
	}

	client, err := r.webClient(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open web session: %w", err)
	}
	if err := mergeWebSettings(ctx, client, current); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to read web settings: %w", err)
	}
	return client, nil
}

// mergeWebSettings reads the web-only settings of the live organization and
// merges them into the current snapshot so they participate in the diff.
func mergeWebSettings(ctx context.Context, client *webui.Client, current *models.GitHubOrganization) error {
	if current.Settings == nil {
		current.Settings = &models.OrganizationSettings{}
	}

	names := models.WebFieldNames(current.Settings)
	values, err := client.ReadSettings(ctx, current.GitHubID, names)
	if err != nil {
		return err
	}
	return models.ApplyParams(current.Settings, values)
}

// splitWebChanges separates the web-only field changes out of an org
// settings patch. The remaining API changes stay in the plan, a settings
// patch left without changes is dropped.
func splitWebChanges(patches []models.LivePatch) ([]models.LivePatch, map[string]any) {
	webFields := map[string]bool{}
	for _, name := range models.WebFieldNames(&models.OrganizationSettings{}) {
		webFields[name] = true
	}

	web := map[string]any{}
	kept := make([]models.LivePatch, 0, len(patches))
	for _, patch := range patches {
		if patch.Kind != models.KindOrgSettings || patch.Type != models.PatchChange {
			kept = append(kept, patch)
			continue
		}

		remaining := models.Changes{}
		for name, change := range patch.Changes {
			if webFields[name] {
				web[name] = change.To
				continue
			}
			remaining[name] = change
		}
		if len(remaining) == 0 {
			continue
		}
		patch.Changes = remaining
		kept = append(kept, patch)
	}
	return kept, web
}

// sortedKeys returns the map keys in stable order for output.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// confirm asks the user for a yes/no decision.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	var response string
	_, _ = fmt.Scanln(&response) // Ignore error for user input
	return response == "y" || response == "Y"
}
