package testsupport

import (
	"path/filepath"
	"testing"

	"tracksync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The catalog is disabled so tests never reach the network; opt back in with
// WithCatalog.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.AppDir = base
	cfgVal.Paths.InboxDir = filepath.Join(base, "Inbox")
	cfgVal.Paths.LibraryDir = filepath.Join(base, "Library")
	cfgVal.Paths.QuarantineDir = filepath.Join(base, "Unsupported")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Ingest.SupportedExtensions = config.DefaultSupportedExtensions()
	cfgVal.Ingest.SettleMillis = 20
	cfgVal.Relocate.InitialBackoffMillis = 1
	cfgVal.Relocate.MaxBackoffMillis = 5
	cfgVal.Catalog.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithCatalog enables the catalog against url with fixed credentials.
func WithCatalog(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.Enabled = true
		b.cfg.Catalog.URL = url
		b.cfg.Catalog.Username = "tester"
		b.cfg.Catalog.Password = "secret"
		b.cfg.Catalog.RequestTimeout = 5
	}
}

// WithExtensions replaces the supported extension allow-list.
func WithExtensions(extensions map[string]string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ingest.SupportedExtensions = extensions
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.AppDir
}

// WithAPIToken sets the bearer token the daemon API requires.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}
