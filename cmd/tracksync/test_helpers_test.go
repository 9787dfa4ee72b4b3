package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type cliTestEnv struct {
	base       string
	configPath string
	inbox      string
	library    string
	quarantine string
	apiBind    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("TRACKSYNC_API_TOKEN", "")
	t.Setenv("TRACKSYNC_CATALOG_URL", "")

	env := &cliTestEnv{
		base:       base,
		configPath: filepath.Join(base, "tracksync.toml"),
		inbox:      filepath.Join(base, "Inbox"),
		library:    filepath.Join(base, "Library"),
		quarantine: filepath.Join(base, "Unsupported"),
		apiBind:    freeAddr(t),
	}
	content := fmt.Sprintf(`[paths]
app_dir = %q
state_dir = %q
log_dir = %q
api_bind = %q

[ingest]
settle_ms = 20

[relocate]
initial_backoff_ms = 1
max_backoff_ms = 5

[catalog]
enabled = false
`, base, filepath.Join(base, "state"), filepath.Join(base, "logs"), env.apiBind)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// freeAddr returns a loopback address nothing is listening on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (e *cliTestEnv) drop(t *testing.T, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(e.inbox, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}
	path := filepath.Join(e.inbox, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
