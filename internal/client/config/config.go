// Package config loads the client's YAML configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the client configuration. Every field has a workable default
// except the Reddit app client id, which the user must supply.
type Config struct {
	// ProxyURL is the base URL of the bookmarkedditd proxy.
	ProxyURL string `yaml:"proxy_url"`
	// StatePath is the sqlite file holding tokens, cache, and prefs.
	StatePath string `yaml:"state_path"`
	// ClientID is the Reddit app id, used only to build the login URL.
	ClientID string `yaml:"client_id"`
	// RedirectURI must match the Reddit app's registered redirect.
	RedirectURI string `yaml:"redirect_uri"`
	PageLimit   int    `yaml:"page_limit"`
	LogLevel    string `yaml:"log_level"`
	PrettyLog   bool   `yaml:"pretty_log"`
}

func defaults() Config {
	return Config{
		ProxyURL:    "http://localhost:3000",
		StatePath:   defaultStatePath(),
		RedirectURI: "http://localhost:8080/callback",
		PageLimit:   100,
		LogLevel:    "info",
		PrettyLog:   true,
	}
}

// Load reads the config file at path, layering it over defaults. A
// missing file is fine as long as BKMD_CLIENT_ID is set in the
// environment instead.
func Load(path string) (*Config, error) {
	cfg := defaults()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to defaults + env.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if v := os.Getenv("BKMD_CLIENT_ID"); v != "" {
		cfg.ClientID = v
	}
	if v := os.Getenv("BKMD_PROXY_URL"); v != "" {
		cfg.ProxyURL = v
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client_id is required (set it in %s or via BKMD_CLIENT_ID)", path)
	}
	if cfg.PageLimit < 1 || cfg.PageLimit > 100 {
		return nil, fmt.Errorf("page_limit must be between 1 and 100, got %d", cfg.PageLimit)
	}

	return &cfg, nil
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bookmarkeddit.db"
	}
	return dir + "/bookmarkeddit/state.db"
}
