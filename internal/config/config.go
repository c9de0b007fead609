// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// devSessionSecret signs tab cookies when no secret is configured in development.
const devSessionSecret = "finboard-development-session-secret"

// Config holds all application configuration.
type Config struct {
	Port            string
	FrontendURL     string
	AuthURL         string
	ChatURL         string
	AuthTimeout     time.Duration
	ChatTimeout     time.Duration
	LoginCloseDelay time.Duration
	SessionSecret   string
	DBPath          string
	WorkspaceTTL    time.Duration
	ChatRateLimit   int // sends per minute per workspace
	Transcript      TranscriptConfig
	Probe           ProbeConfig
}

// TranscriptConfig controls the operator-facing chat transcript store.
type TranscriptConfig struct {
	Enabled   bool
	Retention time.Duration
}

// ProbeConfig controls the backend reachability probe and its gRPC health service.
type ProbeConfig struct {
	Addr     string
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		AuthURL:         strings.TrimRight(getEnv("AUTH_URL", "http://localhost:4000/api/auth"), "/"),
		ChatURL:         getEnv("CHAT_URL", "http://localhost:5000/api/finance-chat"),
		AuthTimeout:     getEnvDuration("AUTH_TIMEOUT", 15*time.Second),
		ChatTimeout:     getEnvDuration("CHAT_TIMEOUT", 2*time.Minute),
		LoginCloseDelay: getEnvDuration("LOGIN_CLOSE_DELAY", 1500*time.Millisecond),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		DBPath:          getEnv("DB_PATH", "./data/finboard.db"),
		WorkspaceTTL:    getEnvDuration("WORKSPACE_TTL", 60*time.Minute),
		ChatRateLimit:   getEnvInt("CHAT_RATE_LIMIT", 20),
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			Retention: getEnvDuration("TRANSCRIPT_RETENTION", 7*24*time.Hour),
		},
		Probe: ProbeConfig{
			Addr:     getEnv("PROBE_ADDR", ""),
			Interval: getEnvDuration("PROBE_INTERVAL", 30*time.Second),
		},
	}

	if cfg.SessionSecret == "" && cfg.IsDevelopment() {
		cfg.SessionSecret = devSessionSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if err := validateURL("AUTH_URL", c.AuthURL); err != nil {
		return err
	}
	if err := validateURL("CHAT_URL", c.ChatURL); err != nil {
		return err
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required outside development")
	}
	if len(c.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 bytes")
	}
	if c.Transcript.Enabled && c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when transcripts are enabled")
	}
	if c.WorkspaceTTL <= 0 {
		return fmt.Errorf("WORKSPACE_TTL must be > 0")
	}
	if c.ChatRateLimit <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT must be > 0")
	}
	if c.LoginCloseDelay < 0 {
		return fmt.Errorf("LOGIN_CLOSE_DELAY cannot be negative")
	}
	if c.Probe.Addr != "" && c.Probe.Interval <= 0 {
		return fmt.Errorf("PROBE_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the origins permitted by CORS.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

// OriginHosts returns AllowedOrigins without their scheme, as websocket
// origin patterns.
func (c *Config) OriginHosts() []string {
	origins := c.AllowedOrigins()
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, o)
	}
	return out
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", key)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
