package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:5000/api/finance-chat", cfg.ChatURL)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.Equal(t, 1500*time.Millisecond, cfg.LoginCloseDelay)
	assert.True(t, cfg.Transcript.Enabled)
	assert.Empty(t, cfg.Probe.Addr)
}

func TestLoadTrimsAuthURL(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("AUTH_URL", "https://auth.example.com/api/user/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com/api/user", cfg.AuthURL)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestValidateRejectsBadURL(t *testing.T) {
	cfg := &Config{
		Port:          "8080",
		AuthURL:       "ftp://auth",
		ChatURL:       "http://localhost:5000/api/finance-chat",
		SessionSecret: devSessionSecret,
		WorkspaceTTL:  time.Minute,
		ChatRateLimit: 1,
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_URL")
}

func TestGetEnvDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("WORKSPACE_TTL", "soon")
	assert.Equal(t, time.Hour, getEnvDuration("WORKSPACE_TTL", time.Hour))
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{FrontendURL: "https://app.example.com/"}
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins())

	assert.Equal(t, []string{"app.example.com"}, cfg.OriginHosts())

	cfg.FrontendURL = ""
	assert.Contains(t, cfg.AllowedOrigins(), "http://localhost:*")
	assert.Contains(t, cfg.OriginHosts(), "localhost:*")
}
