// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for selstorage. Settings follow a
// four-layer override chain: defaults -> config file -> environment -> CLI
// flags.
package config

import (
	"errors"
	"time"

	"github.com/murka/selectel-storage-client/pkg/selectel"
)

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	User          string `toml:"user"`
	Password      string `toml:"password"`
	AuthVersion   int    `toml:"auth_version"`
	SSL           bool   `toml:"ssl"`
	NumericDomain int    `toml:"numeric_domain"`

	Network   NetworkConfig   `toml:"network"`
	Logging   LoggingConfig   `toml:"logging"`
	Endpoints EndpointsConfig `toml:"endpoints"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	LogLevel string `toml:"log_level"`
}

// EndpointsConfig overrides the service host names, for staging or a proxy.
type EndpointsConfig struct {
	APIHost           string `toml:"api_host"`
	AuthHost          string `toml:"auth_host"`
	StorageHostSuffix string `toml:"storage_host_suffix"`
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish "not
// specified" (nil) from an explicit zero value.
type CLIOverrides struct {
	ConfigPath  string  // --config flag (empty = use default)
	User        *string // --user flag
	AuthVersion *int    // --auth-version flag
	Insecure    *bool   // --insecure flag (plain http)
}

// Resolved is a fully merged configuration ready for use.
type Resolved struct {
	Config

	// ConfigPath is the file the settings came from, even if it did not exist.
	ConfigPath string
	// TokenPath is where the session is persisted.
	TokenPath string
}

// ErrMissingCredentials is returned by RequireCredentials.
var ErrMissingCredentials = errors.New("config: user and password are required (set them in the config file or via " +
	EnvUser + "/" + EnvPassword + ")")

// RequireCredentials reports whether a user and password are configured.
// Commands that never contact the service skip this check.
func (r *Resolved) RequireCredentials() error {
	if r.User == "" || r.Password == "" {
		return ErrMissingCredentials
	}

	return nil
}

// ConnectTimeout returns the parsed connect timeout. Values were validated at
// load time, so parse failures fall back to the default.
func (r *Resolved) ConnectTimeout() time.Duration {
	return parseDurationOr(r.Network.ConnectTimeout, defaultConnectTimeout)
}

// DataTimeout returns the parsed overall request timeout. Zero disables it,
// which streaming uploads of large files rely on.
func (r *Resolved) DataTimeout() time.Duration {
	return parseDurationOr(r.Network.DataTimeout, defaultDataTimeout)
}

func parseDurationOr(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	d, _ := time.ParseDuration(fallback)

	return d
}

// ClientOptions maps the configuration onto library options. The session
// fields (token, expiry, numeric domain) are filled in by the caller from
// the token file.
func (r *Resolved) ClientOptions() selectel.Options {
	return selectel.Options{
		UserID:        r.User,
		Password:      r.Password,
		Protocol:      selectel.Protocol(r.AuthVersion),
		DisableTLS:    !r.SSL,
		NumericDomain: r.NumericDomain,
		UserAgent:     r.Network.UserAgent,
		Endpoints: selectel.Endpoints{
			APIHost:           r.Endpoints.APIHost,
			AuthHost:          r.Endpoints.AuthHost,
			StorageHostSuffix: r.Endpoints.StorageHostSuffix,
		},
	}
}
