package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":3000"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Reddit OAuth application credentials (registered at reddit.com/prefs/apps)
	RedditClientID     string
	RedditClientSecret string

	// Upstream endpoints; overridable so tests and dev setups can point at fakes
	RedditAuthURL string // ex: "https://www.reddit.com"
	RedditAPIURL  string // ex: "https://oauth.reddit.com"
	UserAgent     string // sent on every upstream call

	PageLimit       int           // saved-listing page size (default: 100)
	PageDelay       time.Duration // courtesy delay between saved-listing pages (default: 1s)
	UpstreamTimeout time.Duration // per-call timeout against Reddit (default: 30s)

	AllowedOrigins []string // CORS origins for the browser client ("*" = any)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("BKMD_LISTEN_PORT", ":3000"),
		ShutdownTimeout: mustDuration("BKMD_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("BKMD_LOG_LEVEL", "info"),
		PrettyLog: mustBool("BKMD_PRETTY_LOG", true),

		// Reddit credentials
		RedditClientID:     requireEnv("BKMD_CLIENT_ID"),
		RedditClientSecret: requireEnv("BKMD_CLIENT_SECRET"),

		// Upstream
		RedditAuthURL: getenv("BKMD_REDDIT_AUTH_URL", "https://www.reddit.com"),
		RedditAPIURL:  getenv("BKMD_REDDIT_API_URL", "https://oauth.reddit.com"),
		UserAgent:     getenv("BKMD_USER_AGENT", "bookmarkeddit/1.0"),

		PageLimit:       getenvInt("BKMD_PAGE_LIMIT", 100),
		PageDelay:       mustDuration("BKMD_PAGE_DELAY", time.Second),
		UpstreamTimeout: mustDuration("BKMD_UPSTREAM_TIMEOUT", 30*time.Second),

		AllowedOrigins: splitAndTrim(getenv("BKMD_ALLOWED_ORIGINS", "*")),
	}

	if cfg.PageLimit < 1 || cfg.PageLimit > 100 {
		panic(fmt.Sprintf("❌ FATAL: BKMD_PAGE_LIMIT must be between 1 and 100, got %d", cfg.PageLimit))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedditClientSecret = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
