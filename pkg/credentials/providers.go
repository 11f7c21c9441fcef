package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// PlainProvider returns keys verbatim, for configurations that inline their
// secrets. Mostly useful for local testing.
type PlainProvider struct{}

// Name returns the provider name.
func (p *PlainProvider) Name() string { return "plain" }

// GetSecret returns the key itself.
func (p *PlainProvider) GetSecret(_ context.Context, key string) (string, error) {
	return key, nil
}

// EnvProvider resolves keys as environment variables. A .env file in the
// working directory is loaded once, without overriding the real environment.
type EnvProvider struct {
	loadOnce sync.Once
}

// NewEnvProvider creates an environment based provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns the provider name.
func (p *EnvProvider) Name() string { return "env" }

// GetSecret resolves the key as an environment variable.
func (p *EnvProvider) GetSecret(_ context.Context, key string) (string, error) {
	p.loadOnce.Do(func() {
		// missing .env files are fine, the environment may be set directly
		_ = godotenv.Load()
	})

	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("environment variable '%s' is not set", key)
	}
	return value, nil
}

// IniProvider resolves keys of the form 'section.key' from an ini file.
type IniProvider struct {
	path     string
	loadOnce sync.Once
	file     *ini.File
	loadErr  error
}

// NewIniProvider creates an ini file based provider. An empty path selects
// the default location ~/.config/otterdog/credentials.ini.
func NewIniProvider(path string) *IniProvider {
	return &IniProvider{path: path}
}

// Name returns the provider name.
func (p *IniProvider) Name() string { return "ini" }

// GetSecret resolves 'section.key', or 'key' from the default section.
func (p *IniProvider) GetSecret(_ context.Context, key string) (string, error) {
	p.loadOnce.Do(func() {
		path := p.path
		if path == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				p.loadErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			path = filepath.Join(homeDir, ".config", "otterdog", "credentials.ini")
		}
		p.file, p.loadErr = ini.Load(path)
	})
	if p.loadErr != nil {
		return "", fmt.Errorf("failed to load credentials file: %w", p.loadErr)
	}

	section, name := "", key
	if idx := strings.LastIndex(key, "."); idx > 0 {
		section, name = key[:idx], key[idx+1:]
	}

	sec := p.file.Section(section)
	if !sec.HasKey(name) {
		return "", fmt.Errorf("key '%s' not found in credentials file", key)
	}
	return sec.Key(name).String(), nil
}
