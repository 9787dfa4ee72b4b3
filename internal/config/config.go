package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	AppDir        string `toml:"app_dir"`
	InboxDir      string `toml:"inbox_dir"`
	LibraryDir    string `toml:"library_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	StateDir      string `toml:"state_dir"`
	LogDir        string `toml:"log_dir"`
	APIBind       string `toml:"api_bind"`
	APIToken      string `toml:"api_token"`
}

// Ingest controls how dropped files move through the pipeline.
type Ingest struct {
	// SupportedExtensions maps a file extension (leading dot, case-sensitive)
	// to the media type handed to collaborators.
	SupportedExtensions map[string]string `toml:"supported_extensions"`
	Workers             int               `toml:"workers"`
	QueueSize           int               `toml:"queue_size"`
	SettleMillis        int               `toml:"settle_ms"`
	InitialScan         bool              `toml:"initial_scan"`
	MetadataTimeout     int               `toml:"metadata_timeout"`
	RegisterTimeout     int               `toml:"register_timeout"`
	UploadTimeout       int               `toml:"upload_timeout"`
}

// Relocate bounds the retry loop used for every filesystem move.
type Relocate struct {
	MaxAttempts          int `toml:"max_attempts"`
	InitialBackoffMillis int `toml:"initial_backoff_ms"`
	MaxBackoffMillis     int `toml:"max_backoff_ms"`
	Timeout              int `toml:"timeout"`
}

// Catalog contains the remote catalog endpoint and account credentials.
type Catalog struct {
	Enabled         bool   `toml:"enabled"`
	URL             string `toml:"url"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	CredentialsFile string `toml:"credentials_file"`
	RequestTimeout  int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Relocated      bool   `toml:"relocated"`
	Quarantined    bool   `toml:"quarantined"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tracksync.
//
// Configuration sections by subsystem:
//   - Paths: inbox, library, quarantine and state directories plus the API bind address
//   - Ingest: extension allow-list, worker pool sizing and collaborator timeouts
//   - Relocate: retry bounds for filesystem moves
//   - Catalog: remote catalog endpoint and credentials
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Ingest        Ingest        `toml:"ingest"`
	Relocate      Relocate      `toml:"relocate"`
	Catalog       Catalog       `toml:"catalog"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tracksync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the inbox, library, quarantine, state and log
// directories. They are siblings under the app directory unless overridden.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InboxDir, c.Paths.LibraryDir, c.Paths.QuarantineDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite database holding ingest records.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath returns the flock file guarding the inbox against concurrent writers.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "tracksync.lock")
}

// SettleWindow is the quiet period the watcher waits before reporting a path.
func (c *Config) SettleWindow() time.Duration {
	return time.Duration(c.Ingest.SettleMillis) * time.Millisecond
}

// StageTimeouts returns per-collaborator deadlines for metadata, register and upload.
func (c *Config) StageTimeouts() (metadata, register, upload time.Duration) {
	return seconds(c.Ingest.MetadataTimeout), seconds(c.Ingest.RegisterTimeout), seconds(c.Ingest.UploadTimeout)
}

// RelocateBackoff returns the initial and maximum relocation backoff.
func (c *Config) RelocateBackoff() (initial, maximum time.Duration) {
	return time.Duration(c.Relocate.InitialBackoffMillis) * time.Millisecond,
		time.Duration(c.Relocate.MaxBackoffMillis) * time.Millisecond
}

// RelocateTimeout bounds a single relocation including all retries.
func (c *Config) RelocateTimeout() time.Duration {
	return seconds(c.Relocate.Timeout)
}

// CatalogTimeout bounds catalog requests that carry no upload body.
func (c *Config) CatalogTimeout() time.Duration {
	return seconds(c.Catalog.RequestTimeout)
}

func seconds(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
