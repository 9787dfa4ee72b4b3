package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"tracksync/internal/config"
)

func TestLoadDefaultConfigUsesEnvCredentialsAndExpandsPaths(t *testing.T) {
	t.Setenv("TRACKSYNC_USERNAME", "listener")
	t.Setenv("TRACKSYNC_PASSWORD", "hunter2")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	appDir := filepath.Join(tempHome, "Tracksync")
	if cfg.Paths.InboxDir != filepath.Join(appDir, "Inbox") {
		t.Fatalf("unexpected inbox dir: %q", cfg.Paths.InboxDir)
	}
	if cfg.Paths.LibraryDir != filepath.Join(appDir, "Library") {
		t.Fatalf("unexpected library dir: %q", cfg.Paths.LibraryDir)
	}
	if cfg.Paths.QuarantineDir != filepath.Join(appDir, "Unsupported") {
		t.Fatalf("unexpected quarantine dir: %q", cfg.Paths.QuarantineDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7491" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Catalog.Username != "listener" || cfg.Catalog.Password != "hunter2" {
		t.Fatalf("expected credentials from env, got %q/%q", cfg.Catalog.Username, cfg.Catalog.Password)
	}
	if got := cfg.Ingest.SupportedExtensions; len(got) != 1 || got[".mp3"] != "audio/mp3" {
		t.Fatalf("unexpected default allow-list: %v", got)
	}
	if cfg.LedgerPath() != filepath.Join(tempHome, ".local", "share", "tracksync", "ledger.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.LedgerPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "tracksync.toml")

	type payload struct {
		Paths struct {
			AppDir   string `toml:"app_dir"`
			InboxDir string `toml:"inbox_dir"`
		} `toml:"paths"`
		Ingest struct {
			Workers             int               `toml:"workers"`
			SupportedExtensions map[string]string `toml:"supported_extensions"`
		} `toml:"ingest"`
		Catalog struct {
			Enabled bool `toml:"enabled"`
		} `toml:"catalog"`
	}
	custom := payload{}
	custom.Paths.AppDir = filepath.Join(tempDir, "app")
	custom.Paths.InboxDir = filepath.Join(tempDir, "drop")
	custom.Ingest.Workers = 2
	custom.Ingest.SupportedExtensions = map[string]string{"flac": "audio/flac"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.InboxDir != filepath.Join(tempDir, "drop") {
		t.Fatalf("expected inbox override, got %q", cfg.Paths.InboxDir)
	}
	if cfg.Paths.LibraryDir != filepath.Join(tempDir, "app", "Library") {
		t.Fatalf("expected library under app dir, got %q", cfg.Paths.LibraryDir)
	}
	if cfg.Ingest.Workers != 2 {
		t.Fatalf("expected 2 workers, got %d", cfg.Ingest.Workers)
	}
	exts := cfg.Ingest.SupportedExtensions
	if len(exts) != 1 || exts[".flac"] != "audio/flac" {
		t.Fatalf("expected configured allow-list to replace the default, got %v", exts)
	}
	if cfg.Catalog.Enabled {
		t.Fatal("expected catalog disabled")
	}
}

func TestCredentialsFileFillsCatalogAccount(t *testing.T) {
	tempDir := t.TempDir()
	credsPath := filepath.Join(tempDir, "credentials.yaml")
	if err := os.WriteFile(credsPath, []byte("user:\n  username: from-file\n  password: file-secret\n"), 0o600); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	configPath := filepath.Join(tempDir, "tracksync.toml")
	body := "[paths]\napp_dir = \"" + filepath.Join(tempDir, "app") + "\"\n\n[catalog]\ncredentials_file = \"" + credsPath + "\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TRACKSYNC_USERNAME", "")
	t.Setenv("TRACKSYNC_PASSWORD", "")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.Username != "from-file" || cfg.Catalog.Password != "file-secret" {
		t.Fatalf("expected credentials from file, got %q/%q", cfg.Catalog.Username, cfg.Catalog.Password)
	}

	t.Setenv("TRACKSYNC_USERNAME", "from-env")
	cfg, _, _, err = config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Catalog.Username != "from-env" {
		t.Fatalf("expected env to override credentials file, got %q", cfg.Catalog.Username)
	}
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRACKSYNC_USERNAME", "")
	t.Setenv("TRACKSYNC_PASSWORD", "")
	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when catalog credentials are missing")
	}
	if !strings.Contains(err.Error(), "catalog.username") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.AppDir, "Tracksync") {
		t.Fatalf("expected app dir to contain Tracksync, got %q", cfg.Paths.AppDir)
	}
	if cfg.Ingest.SupportedExtensions[".mp3"] != "audio/mp3" {
		t.Fatalf("expected sample allow-list to include .mp3, got %v", cfg.Ingest.SupportedExtensions)
	}
	if cfg.Relocate.MaxAttempts != config.Default().Relocate.MaxAttempts {
		t.Fatalf("sample relocate attempts drifted from defaults: %d", cfg.Relocate.MaxAttempts)
	}
}

func validConfig(t *testing.T) config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InboxDir = filepath.Join(base, "Inbox")
	cfg.Paths.LibraryDir = filepath.Join(base, "Library")
	cfg.Paths.QuarantineDir = filepath.Join(base, "Unsupported")
	cfg.Ingest.SupportedExtensions = config.DefaultSupportedExtensions()
	cfg.Catalog.Username = "user"
	cfg.Catalog.Password = "pass"
	return cfg
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected baseline config to validate, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero workers", func(c *config.Config) { c.Ingest.Workers = 0 }},
		{"zero attempts", func(c *config.Config) { c.Relocate.MaxAttempts = 0 }},
		{"backoff inverted", func(c *config.Config) { c.Relocate.MaxBackoffMillis = c.Relocate.InitialBackoffMillis - 1 }},
		{"library equals inbox", func(c *config.Config) { c.Paths.LibraryDir = c.Paths.InboxDir }},
		{"quarantine inside inbox", func(c *config.Config) { c.Paths.QuarantineDir = filepath.Join(c.Paths.InboxDir, "bad") }},
		{"quarantine equals library", func(c *config.Config) { c.Paths.QuarantineDir = c.Paths.LibraryDir }},
		{"empty allow-list", func(c *config.Config) { c.Ingest.SupportedExtensions = map[string]string{} }},
		{"compound extension", func(c *config.Config) { c.Ingest.SupportedExtensions = map[string]string{".tar.gz": "x"} }},
		{"missing media type", func(c *config.Config) { c.Ingest.SupportedExtensions = map[string]string{".mp3": ""} }},
		{"bad catalog url", func(c *config.Config) { c.Catalog.URL = "ftp://catalog" }},
		{"missing password", func(c *config.Config) { c.Catalog.Password = "" }},
		{"negative settle", func(c *config.Config) { c.Ingest.SettleMillis = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateAllowsOfflineCatalogWithoutCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.Catalog.Enabled = false
	cfg.Catalog.Username = ""
	cfg.Catalog.Password = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected offline catalog to validate, got %v", err)
	}
}

func TestEnsureDirectoriesCreatesRoots(t *testing.T) {
	cfg := validConfig(t)
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Paths.LogDir = filepath.Join(cfg.Paths.StateDir, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.InboxDir, cfg.Paths.LibraryDir, cfg.Paths.QuarantineDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
