// Package testutil provides environment helpers for tests that run against
// the live service. It depends only on stdlib so that E2E tests can use it
// without importing internal/.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvAllowedUsers lists the storage users live tests may touch.
const EnvAllowedUsers = "SELSTORAGE_ALLOWED_TEST_USERS"

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// A missing file is not an error, and variables already set win.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist exits the process unless the user named by userEnvVar
// appears in SELSTORAGE_ALLOWED_TEST_USERS. Live tests create and delete
// containers, so they must never run against an arbitrary account.
func ValidateAllowlist(userEnvVar string) {
	allowlist := os.Getenv(EnvAllowedUsers)
	if allowlist == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", EnvAllowedUsers)
		fmt.Fprintf(os.Stderr, "Example: %s=123456_e2e\n", EnvAllowedUsers)
		os.Exit(1)
	}

	user := os.Getenv(userEnvVar)
	if user == "" {
		fmt.Fprintf(os.Stderr, "FATAL: %s not set\n", userEnvVar)
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.TrimSpace(a) == user {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %s=%q is not in %s=%q\n", userEnvVar, user, EnvAllowedUsers, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
