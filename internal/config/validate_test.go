package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"auth version zero", func(c *Config) { c.AuthVersion = 0 }, "auth_version"},
		{"auth version high", func(c *Config) { c.AuthVersion = 4 }, "auth_version"},
		{"negative domain", func(c *Config) { c.NumericDomain = -5 }, "numeric_domain"},
		{"user whitespace", func(c *Config) { c.User = "123 bob" }, "user"},
		{"connect timeout unparseable", func(c *Config) { c.Network.ConnectTimeout = "soon" }, "connect_timeout"},
		{"connect timeout too short", func(c *Config) { c.Network.ConnectTimeout = "10ms" }, "at least"},
		{"data timeout negative", func(c *Config) { c.Network.DataTimeout = "-1s" }, "data_timeout"},
		{"log level", func(c *Config) { c.Logging.LogLevel = "trace" }, "log_level"},
		{"empty api host", func(c *Config) { c.Endpoints.APIHost = "" }, "endpoints.api_host"},
		{"auth host with scheme", func(c *Config) { c.Endpoints.AuthHost = "https://auth.example" }, "bare host"},
		{"suffix with path", func(c *Config) { c.Endpoints.StorageHostSuffix = "example/v1" }, "storage_host_suffix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Accumulates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AuthVersion = 7
	cfg.Logging.LogLevel = "loud"
	cfg.Endpoints.APIHost = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 errors occurred")
}

func TestValidate_ZeroDataTimeoutAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.DataTimeout = "0"

	assert.NoError(t, Validate(cfg))
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "password", closestMatch("passwrod", knownKeys))
	assert.Equal(t, "logging.log_level", closestMatch("logging.loglevel", knownKeys))
	assert.Empty(t, closestMatch("zzzzzzzz", knownKeys))
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("ssl", "ssl"))
	assert.Equal(t, 3, levenshtein("", "ssl"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
