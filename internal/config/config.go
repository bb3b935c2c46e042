// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// OAuth app registration used for on-behalf-of token exchange and
	// surfaced to the SPA via the config endpoint.
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string

	ScanInterval time.Duration
	ListenAddr   string
	DBPath       string

	// WebhookURL is the optional notification webhook destination. Empty
	// disables the webhook sink.
	WebhookURL string

	// EntraEnabled controls whether the unattended Entra ID discovery
	// source is registered.
	EntraEnabled bool
}

// Load reads configuration from environment variables and returns a validated
// Config. The OAuth settings (KEYLENS_TENANT_ID, KEYLENS_CLIENT_ID,
// KEYLENS_CLIENT_SECRET, KEYLENS_SCOPE) are required; a missing value fails
// startup rather than surfacing mid-collection. Optional variables with
// defaults: KEYLENS_SCAN_INTERVAL (24h), KEYLENS_LISTEN_ADDR
// (127.0.0.1:8080), KEYLENS_DB_PATH (keylens.db), KEYLENS_WEBHOOK_URL
// (unset), KEYLENS_ENTRA_ENABLED (true).
func Load() (*Config, error) {
	cfg := &Config{
		TenantID:     os.Getenv("KEYLENS_TENANT_ID"),
		ClientID:     os.Getenv("KEYLENS_CLIENT_ID"),
		ClientSecret: os.Getenv("KEYLENS_CLIENT_SECRET"),
		Scope:        os.Getenv("KEYLENS_SCOPE"),
		ScanInterval: 24 * time.Hour,
		ListenAddr:   "127.0.0.1:8080",
		DBPath:       "keylens.db",
		WebhookURL:   os.Getenv("KEYLENS_WEBHOOK_URL"),
		EntraEnabled: true,
	}

	for _, required := range []struct{ key, value string }{
		{"KEYLENS_TENANT_ID", cfg.TenantID},
		{"KEYLENS_CLIENT_ID", cfg.ClientID},
		{"KEYLENS_CLIENT_SECRET", cfg.ClientSecret},
		{"KEYLENS_SCOPE", cfg.Scope},
	} {
		if required.value == "" {
			return nil, fmt.Errorf("%s is required", required.key)
		}
	}

	if v, ok := os.LookupEnv("KEYLENS_SCAN_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("KEYLENS_SCAN_INTERVAL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("KEYLENS_SCAN_INTERVAL must be positive, got %q", v)
		}
		cfg.ScanInterval = parsed
	}

	if v, ok := os.LookupEnv("KEYLENS_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("KEYLENS_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("KEYLENS_ENTRA_ENABLED"); ok {
		cfg.EntraEnabled = v != "false" && v != "0"
	}

	return cfg, nil
}
