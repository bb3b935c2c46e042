package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every KEYLENS_ env var that Load() reads.
var allConfigKeys = []string{
	"KEYLENS_TENANT_ID",
	"KEYLENS_CLIENT_ID",
	"KEYLENS_CLIENT_SECRET",
	"KEYLENS_SCOPE",
	"KEYLENS_SCAN_INTERVAL",
	"KEYLENS_LISTEN_ADDR",
	"KEYLENS_DB_PATH",
	"KEYLENS_WEBHOOK_URL",
	"KEYLENS_ENTRA_ENABLED",
}

// isolateConfigEnv saves and unsets all KEYLENS_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("KEYLENS_TENANT_ID", "00000000-0000-0000-0000-000000000001")
	t.Setenv("KEYLENS_CLIENT_ID", "api://keylens")
	t.Setenv("KEYLENS_CLIENT_SECRET", "s3cret")
	t.Setenv("KEYLENS_SCOPE", "api://keylens/access_as_user")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)
	t.Setenv("KEYLENS_SCAN_INTERVAL", "12h")
	t.Setenv("KEYLENS_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("KEYLENS_DB_PATH", "/tmp/test.db")
	t.Setenv("KEYLENS_WEBHOOK_URL", "https://hooks.example.com/keylens")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cfg.TenantID)
	assert.Equal(t, "api://keylens", cfg.ClientID)
	assert.Equal(t, "s3cret", cfg.ClientSecret)
	assert.Equal(t, "api://keylens/access_as_user", cfg.Scope)
	assert.Equal(t, 12*time.Hour, cfg.ScanInterval)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "https://hooks.example.com/keylens", cfg.WebhookURL)
	assert.True(t, cfg.EntraEnabled)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.ScanInterval)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "keylens.db", cfg.DBPath)
	assert.Empty(t, cfg.WebhookURL)
	assert.True(t, cfg.EntraEnabled)
}

func TestLoad_MissingRequired(t *testing.T) {
	for _, missing := range []string{
		"KEYLENS_TENANT_ID",
		"KEYLENS_CLIENT_ID",
		"KEYLENS_CLIENT_SECRET",
		"KEYLENS_SCOPE",
	} {
		t.Run(missing, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			os.Unsetenv(missing)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), missing)
		})
	}
}

func TestLoad_InvalidScanInterval(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not a duration", "often"},
		{"zero", "0s"},
		{"negative", "-1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			t.Setenv("KEYLENS_SCAN_INTERVAL", tt.value)

			_, err := Load()

			require.Error(t, err)
			assert.Contains(t, err.Error(), "KEYLENS_SCAN_INTERVAL")
		})
	}
}

func TestLoad_EntraDisabled(t *testing.T) {
	for _, value := range []string{"false", "0"} {
		t.Run(value, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequired(t)
			t.Setenv("KEYLENS_ENTRA_ENABLED", value)

			cfg, err := Load()

			require.NoError(t, err)
			assert.False(t, cfg.EntraEnabled)
		})
	}
}
