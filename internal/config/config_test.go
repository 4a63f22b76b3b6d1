package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SERVER_SECRET", "c3VwZXItc2VjcmV0LXZhbHVlLTEyMzQ1Ng==")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("IDP_AUTHORIZE_URL", "https://idp.example.com/authorize")
	t.Setenv("IDP_VERIFY_URL", "https://idp.example.com/verify")
	t.Setenv("PLATFORM_BASE_URL", "https://api.example.com")
}

func TestLoadFromEnvOnly(t *testing.T) {
	validEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, 10*time.Minute, cfg.StateTTLDur())
	require.Equal(t, 5*time.Minute, cfg.SweepIntervalDur())
	require.False(t, cfg.Security.RequireRegistration)
}

func TestLoadRequiresServerSecret(t *testing.T) {
	validEnv(t)
	t.Setenv("SERVER_SECRET", " ")

	_, err := Load("")
	require.Error(t, err)
	require.Contains(t, err.Error(), "server_secret")
}

func TestLoadRequiresDSNForPostgres(t *testing.T) {
	validEnv(t)
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := Load("")
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	validEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9999"
security:
  require_registration: true
  state_ttl: 3m
rate:
  enabled: true
  max_requests: 5
`), 0o600))

	t.Setenv("SERVER_ADDR", ":7777")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Server.Addr)
	require.True(t, cfg.Security.RequireRegistration)
	require.Equal(t, 3*time.Minute, cfg.StateTTLDur())
	require.Equal(t, 5, cfg.Rate.MaxRequests)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	validEnv(t)
	t.Setenv("STATE_TTL", "not-a-duration")

	_, err := Load("")
	require.Error(t, err)
}
