package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the root configuration looked up in the working
// directory when no explicit --config flag is given. DefaultConfigFileYAML
// is the fallback tried when the json file does not exist.
const (
	DefaultConfigFile     = "otterdog.json"
	DefaultConfigFileYAML = "otterdog.yaml"
)

// Config represents the root otterdog configuration listing all managed
// organizations and the defaults that apply to them.
type Config struct {
	Defaults      Defaults             `json:"defaults" yaml:"defaults"`
	Organizations []OrganizationConfig `json:"organizations" yaml:"organizations"`

	// baseDir is the directory of the loaded config file, relative paths
	// in the configuration resolve against it.
	baseDir string
}

// Defaults represents settings shared by all organizations.
type Defaults struct {
	Jsonnet JsonnetConfig `json:"jsonnet" yaml:"jsonnet"`
	GitHub  GitHubConfig  `json:"github" yaml:"github"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	WebApp  WebAppConfig  `json:"webapp" yaml:"webapp"`
}

// JsonnetConfig represents the jsonnet evaluation defaults.
type JsonnetConfig struct {
	// BaseTemplate locates the default template in the form
	// <repository-url>#<file>@<ref>.
	BaseTemplate string `json:"base_template" yaml:"base_template"`
	// ConfigDir holds the per-organization jsonnet files.
	ConfigDir string `json:"config_dir" yaml:"config_dir"`
	// TemplateDir caches checked out template repositories.
	TemplateDir string `json:"template_dir" yaml:"template_dir"`
}

// GitHubConfig represents GitHub access defaults.
type GitHubConfig struct {
	// ConfigRepo is the repository per organization that hosts its
	// configuration, used by fetch-config and push-config.
	ConfigRepo string `json:"config_repo" yaml:"config_repo"`

	// BaseURL overrides the API endpoint for GitHub Enterprise
	// installations. Empty selects github.com.
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// CacheConfig represents the local API cache settings.
type CacheConfig struct {
	// Backend selects the cache implementation: memory, disk or redis.
	Backend string `json:"backend" yaml:"backend"`
	// Dir is the on-disk cache location for the disk backend.
	Dir string `json:"dir" yaml:"dir"`
	// RedisAddr is the host:port of the redis backend.
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`
}

// WebAppConfig represents the webhook daemon run by 'otterdog serve'.
type WebAppConfig struct {
	// Addr is the listen address of the HTTP server.
	Addr string `json:"addr" yaml:"addr"`
	// WebhookSecret validates incoming webhook deliveries. An empty value
	// falls back to the OTTERDOG_WEBHOOK_SECRET environment variable;
	// deliveries are accepted unvalidated when both are empty.
	WebhookSecret string `json:"webhook_secret" yaml:"webhook_secret"`
	// StatusContext names the commit status reported on validated pull
	// requests.
	StatusContext string `json:"status_context" yaml:"status_context"`
	// Workers is the number of concurrent task workers.
	Workers int `json:"workers" yaml:"workers"`
	// QueueSize bounds the number of queued tasks.
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	// JournalPath is the sqlite task journal location.
	JournalPath string `json:"journal_path" yaml:"journal_path"`
	// NATSURL enables task event publication when set.
	NATSURL string `json:"nats_url" yaml:"nats_url"`
	// DriftInterval is the period between scheduled reconciliation checks,
	// parsed as a Go duration. Empty disables them.
	DriftInterval string `json:"drift_interval" yaml:"drift_interval"`
	// RequiredFiles lists files the daemon keeps present in repositories.
	RequiredFiles []RequiredFileConfig `json:"required_files" yaml:"required_files"`
}

// RequiredFileConfig declares a file that must exist in a set of
// repositories of one organization. When the file is missing, or differs
// with Strict set, the daemon pushes it on a branch and opens a pull
// request.
type RequiredFileConfig struct {
	Organization string   `json:"organization" yaml:"organization"`
	Repositories []string `json:"repositories" yaml:"repositories"`
	Path         string   `json:"path" yaml:"path"`
	Content      string   `json:"content" yaml:"content"`
	Strict       bool     `json:"strict" yaml:"strict"`
	BranchPrefix string   `json:"branch_prefix" yaml:"branch_prefix"`
	PRTitle      string   `json:"pr_title" yaml:"pr_title"`
	PRBody       string   `json:"pr_body" yaml:"pr_body"`
}

// OrganizationConfig represents one managed GitHub organization.
type OrganizationConfig struct {
	Name         string            `json:"name" yaml:"name"`
	GitHubID     string            `json:"github_id" yaml:"github_id"`
	Credentials  map[string]string `json:"credentials" yaml:"credentials"`
	BaseTemplate string            `json:"base_template" yaml:"base_template"`
}

// LoadConfigFromPath loads the root configuration from a specific path. Both
// JSON and YAML files are supported, selected by file extension.
func LoadConfigFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	config.baseDir = filepath.Dir(absPath)
	config.applyDefaults()

	return &config, nil
}

// SaveConfigToPath saves the configuration to a specific path, creating
// parent directories as needed. The format follows the file extension.
func (c *Config) SaveConfigToPath(path string) error {
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Defaults.Jsonnet.ConfigDir == "" {
		c.Defaults.Jsonnet.ConfigDir = "orgs"
	}
	if c.Defaults.Jsonnet.TemplateDir == "" {
		c.Defaults.Jsonnet.TemplateDir = filepath.Join(".cache", "templates")
	}
	if c.Defaults.GitHub.ConfigRepo == "" {
		c.Defaults.GitHub.ConfigRepo = ".otterdog"
	}
	if c.Defaults.Cache.Backend == "" {
		c.Defaults.Cache.Backend = "memory"
	}
	if c.Defaults.Cache.Dir == "" {
		c.Defaults.Cache.Dir = filepath.Join(".cache", "api")
	}
	if c.Defaults.WebApp.Addr == "" {
		c.Defaults.WebApp.Addr = ":8080"
	}
	if c.Defaults.WebApp.StatusContext == "" {
		c.Defaults.WebApp.StatusContext = "otterdog"
	}
	if c.Defaults.WebApp.Workers <= 0 {
		c.Defaults.WebApp.Workers = 2
	}
	if c.Defaults.WebApp.QueueSize <= 0 {
		c.Defaults.WebApp.QueueSize = 100
	}
	if c.Defaults.WebApp.JournalPath == "" {
		c.Defaults.WebApp.JournalPath = filepath.Join(".cache", "tasks.db")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Organizations) == 0 {
		return fmt.Errorf("no organizations configured")
	}

	seen := make(map[string]bool)
	for _, org := range c.Organizations {
		if org.Name == "" {
			return fmt.Errorf("organization with github_id '%s' has no name", org.GitHubID)
		}
		if org.GitHubID == "" {
			return fmt.Errorf("organization '%s' has no github_id", org.Name)
		}
		key := strings.ToLower(org.GitHubID)
		if seen[key] {
			return fmt.Errorf("organization with github_id '%s' is configured more than once", org.GitHubID)
		}
		seen[key] = true
	}

	return nil
}

// OrganizationNames returns the configured organization names, for selection
// prompts.
func (c *Config) OrganizationNames() []string {
	names := make([]string, 0, len(c.Organizations))
	for _, org := range c.Organizations {
		names = append(names, org.Name)
	}
	return names
}

// Organization finds an organization by name or github_id, matching
// case-insensitively.
func (c *Config) Organization(nameOrID string) (*OrganizationConfig, error) {
	for i := range c.Organizations {
		org := &c.Organizations[i]
		if strings.EqualFold(org.Name, nameOrID) || strings.EqualFold(org.GitHubID, nameOrID) {
			return org, nil
		}
	}
	return nil, fmt.Errorf("organization '%s' not found in configuration", nameOrID)
}

// OrgConfigPath returns the path of the organization's jsonnet configuration
// file.
func (c *Config) OrgConfigPath(githubID string) string {
	return c.resolve(filepath.Join(c.Defaults.Jsonnet.ConfigDir, githubID+".jsonnet"))
}

// TemplateDir returns the directory template repositories are checked out to.
func (c *Config) TemplateDir() string {
	return c.resolve(c.Defaults.Jsonnet.TemplateDir)
}

// CacheDir returns the on-disk API cache directory.
func (c *Config) CacheDir() string {
	return c.resolve(c.Defaults.Cache.Dir)
}

// JournalPath returns the sqlite task journal location of the webhook
// daemon.
func (c *Config) JournalPath() string {
	return c.resolve(c.Defaults.WebApp.JournalPath)
}

// BrowserProfileDir returns the persistent browser profile directory for the
// organization, keeping web sessions alive across runs.
func (c *Config) BrowserProfileDir(githubID string) string {
	return c.resolve(filepath.Join(".cache", "profiles", githubID))
}

// BaseTemplate returns the template reference for the organization, falling
// back to the global default.
func (c *Config) BaseTemplate(org *OrganizationConfig) string {
	if org != nil && org.BaseTemplate != "" {
		return org.BaseTemplate
	}
	return c.Defaults.Jsonnet.BaseTemplate
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.baseDir == "" {
		return path
	}
	return filepath.Join(c.baseDir, path)
}
