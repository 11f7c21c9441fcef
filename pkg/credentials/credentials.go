package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Credentials holds the resolved secrets needed to manage one organization.
// The token drives the REST API, the remaining fields are only needed for
// settings that must be changed through the web UI.
type Credentials struct {
	GitHubToken string
	Username    string
	Password    string
	TOTPSecret  string
}

// HasWebCredentials reports whether a browser based login is possible.
func (c *Credentials) HasWebCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// Provider resolves keys from one secret backend.
type Provider interface {
	// Name returns the provider name used in credential references.
	Name() string

	// GetSecret resolves a key to its secret value.
	GetSecret(ctx context.Context, key string) (string, error)
}

// Resolver dispatches credential lookups to registered providers. It
// implements the secret resolution used when an organization configuration
// references values as 'provider:key'.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver creates a resolver with the builtin providers registered:
// plain, env and ini. The aws provider needs explicit registration as its
// construction can fail.
func NewResolver() *Resolver {
	r := &Resolver{providers: make(map[string]Provider)}
	r.Register(&PlainProvider{})
	r.Register(NewEnvProvider())
	r.Register(NewIniProvider(""))
	return r
}

// Register adds or replaces a provider under its name.
func (r *Resolver) Register(p Provider) {
	r.providers[p.Name()] = p
}

// ResolveSecret resolves a credential reference of the form
// 'provider:key[@field]'.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	providerName, key, found := strings.Cut(ref, ":")
	if !found || providerName == "" || key == "" {
		return "", fmt.Errorf("invalid credential reference '%s', expected 'provider:key'", ref)
	}

	provider, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("unknown credential provider '%s' in reference '%s'", providerName, ref)
	}

	value, err := provider.GetSecret(ctx, key)
	if err != nil {
		return "", fmt.Errorf("provider '%s' failed to resolve '%s': %w", providerName, key, err)
	}
	return value, nil
}

// Resolve builds the organization credentials from its credential
// configuration. The map carries a 'provider' entry selecting the backend
// and per-credential keys that are resolved through it. A GITHUB_TOKEN
// environment variable always takes precedence over the configured token.
func (r *Resolver) Resolve(ctx context.Context, cfg map[string]string) (*Credentials, error) {
	providerName := cfg["provider"]
	if providerName == "" {
		providerName = "plain"
	}

	provider, ok := r.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("unknown credential provider '%s'", providerName)
	}

	creds := &Credentials{}
	fields := []struct {
		key    string
		target *string
	}{
		{"api_token", &creds.GitHubToken},
		{"username", &creds.Username},
		{"password", &creds.Password},
		{"totp_secret", &creds.TOTPSecret},
	}

	for _, f := range fields {
		ref, ok := cfg[f.key]
		if !ok || ref == "" {
			continue
		}
		value, err := provider.GetSecret(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve '%s' via provider '%s': %w", f.key, providerName, err)
		}
		*f.target = value
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		creds.GitHubToken = token
	}

	if creds.GitHubToken == "" {
		return nil, fmt.Errorf("no GitHub token available, configure 'api_token' or set GITHUB_TOKEN")
	}

	return creds, nil
}
