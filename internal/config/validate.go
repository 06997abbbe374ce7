package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	minConnectTimeout = time.Second
	minAuthVersion    = 1
	maxAuthVersion    = 3
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks all configuration values and returns every problem found,
// not just the first. Missing credentials are not an error here; see
// Resolved.RequireCredentials.
func Validate(cfg *Config) error {
	var result *multierror.Error

	if cfg.AuthVersion < minAuthVersion || cfg.AuthVersion > maxAuthVersion {
		result = multierror.Append(result, fmt.Errorf("auth_version: must be between %d and %d, got %d",
			minAuthVersion, maxAuthVersion, cfg.AuthVersion))
	}

	if cfg.NumericDomain < 0 {
		result = multierror.Append(result, fmt.Errorf("numeric_domain: must not be negative, got %d",
			cfg.NumericDomain))
	}

	if cfg.User != "" && strings.ContainsAny(cfg.User, " \t\r\n") {
		result = multierror.Append(result, fmt.Errorf("user: must not contain whitespace, got %q", cfg.User))
	}

	result = multierror.Append(result, validateNetwork(&cfg.Network)...)
	result = multierror.Append(result, validateLogging(&cfg.Logging)...)
	result = multierror.Append(result, validateEndpoints(&cfg.Endpoints)...)

	return result.ErrorOrNil()
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	connect, err := time.ParseDuration(n.ConnectTimeout)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("connect_timeout: %w", err))
	case connect < minConnectTimeout:
		errs = append(errs, fmt.Errorf("connect_timeout: must be at least %s, got %s", minConnectTimeout, connect))
	}

	data, err := time.ParseDuration(n.DataTimeout)

	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("data_timeout: %w", err))
	case data < 0:
		errs = append(errs, fmt.Errorf("data_timeout: must not be negative, got %s", data))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	for _, level := range validLogLevels {
		if l.LogLevel == level {
			return nil
		}
	}

	return []error{fmt.Errorf("log_level: must be one of %s, got %q",
		strings.Join(validLogLevels, ", "), l.LogLevel)}
}

func validateEndpoints(e *EndpointsConfig) []error {
	var errs []error

	hosts := []struct {
		key   string
		value string
	}{
		{"api_host", e.APIHost},
		{"auth_host", e.AuthHost},
		{"storage_host_suffix", e.StorageHostSuffix},
	}

	for _, h := range hosts {
		switch {
		case h.value == "":
			errs = append(errs, fmt.Errorf("endpoints.%s: must not be empty", h.key))
		case strings.Contains(h.value, "://") || strings.ContainsAny(h.value, "/ "):
			errs = append(errs, fmt.Errorf("endpoints.%s: must be a bare host name, got %q", h.key, h.value))
		}
	}

	return errs
}
