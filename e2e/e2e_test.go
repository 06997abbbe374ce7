//go:build e2e

// Package e2e drives the built selstorage binary against the live service.
// Run with: go test -tags e2e ./e2e/ (credentials from .env or environment).
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murka/selectel-storage-client/testutil"
)

var binaryPath string

func TestMain(m *testing.M) {
	root := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(root, ".env"))
	testutil.ValidateAllowlist("SELSTORAGE_USER")

	tmpDir, err := os.MkdirTemp("", "selstorage-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	// Keep the developer's real config and session out of the run.
	os.Setenv("HOME", tmpDir)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	os.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))

	binaryPath = filepath.Join(tmpDir, "selstorage")

	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Dir = root
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr

	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func runCLI(t *testing.T, args ...string) (string, string) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("CLI command %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String()
}

func TestE2E_RoundTrip(t *testing.T) {
	container := fmt.Sprintf("selstorage-e2e-%d", time.Now().UnixNano())
	content := []byte("Hello from the selstorage E2E test!\n")

	t.Cleanup(func() {
		_ = exec.Command(binaryPath, "rm", container, "a.txt", "b.txt").Run()
		_ = exec.Command(binaryPath, "rmcontainer", container).Run()
	})

	t.Run("login", func(t *testing.T) {
		stdout, _ := runCLI(t, "login", "--json")

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Contains(t, out["storage_url"], "selcdn.ru")
	})

	t.Run("mkcontainer", func(t *testing.T) {
		_, stderr := runCLI(t, "mkcontainer", container)
		assert.Contains(t, stderr, "Created private container")
	})

	t.Run("put", func(t *testing.T) {
		local := filepath.Join(t.TempDir(), "a.txt")
		require.NoError(t, os.WriteFile(local, content, 0o600))

		_, stderr := runCLI(t, "put", local, container, "--checksum")
		assert.Contains(t, stderr, "Uploaded")

		_, stderr = runCLI(t, "put", local, container, "b.txt", "--delete-after", "1h")
		assert.Contains(t, stderr, "Uploaded")
	})

	t.Run("ls", func(t *testing.T) {
		stdout, _ := runCLI(t, "ls", container)
		assert.Equal(t, []string{"a.txt", "b.txt"}, strings.Fields(stdout))
	})

	t.Run("stat", func(t *testing.T) {
		stdout, _ := runCLI(t, "stat", container, "--json")

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.InDelta(t, 2, out["objects"], 0)
	})

	t.Run("rm", func(t *testing.T) {
		runCLI(t, "rm", container, "a.txt", "b.txt")

		stdout, _ := runCLI(t, "ls", container)
		assert.Empty(t, strings.TrimSpace(stdout))
	})

	t.Run("rmcontainer", func(t *testing.T) {
		_, stderr := runCLI(t, "rmcontainer", container)
		assert.Contains(t, stderr, "Deleted container")
	})

	t.Run("logout", func(t *testing.T) {
		_, stderr := runCLI(t, "logout")
		assert.Contains(t, stderr, "Logged out.")
	})
}
