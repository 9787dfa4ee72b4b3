package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateRelocate(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	roots := map[string]string{
		"paths.inbox_dir":      c.Paths.InboxDir,
		"paths.library_dir":    c.Paths.LibraryDir,
		"paths.quarantine_dir": c.Paths.QuarantineDir,
	}
	for _, key := range sortedKeys(roots) {
		if strings.TrimSpace(roots[key]) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	inbox := filepath.Clean(c.Paths.InboxDir)
	for _, key := range []string{"paths.library_dir", "paths.quarantine_dir"} {
		other := filepath.Clean(roots[key])
		if other == inbox {
			return fmt.Errorf("%s must differ from paths.inbox_dir", key)
		}
		// The watcher is not recursive, but a destination inside the inbox would
		// still surface the moved file as a fresh arrival on the next scan.
		if rel, err := filepath.Rel(inbox, other); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%s must not be inside paths.inbox_dir", key)
		}
	}
	if filepath.Clean(c.Paths.LibraryDir) == filepath.Clean(c.Paths.QuarantineDir) {
		return errors.New("paths.quarantine_dir must differ from paths.library_dir")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if len(c.Ingest.SupportedExtensions) == 0 {
		return errors.New("ingest.supported_extensions must list at least one extension")
	}
	for ext, mediaType := range c.Ingest.SupportedExtensions {
		if ext == "" || ext == "." {
			return errors.New("ingest.supported_extensions contains an empty extension")
		}
		if strings.ContainsAny(ext[1:], "./\\") {
			return fmt.Errorf("ingest.supported_extensions: %q is not a single extension", ext)
		}
		if mediaType == "" {
			return fmt.Errorf("ingest.supported_extensions: %q needs a media type", ext)
		}
	}
	if c.Ingest.SettleMillis < 0 {
		return errors.New("ingest.settle_ms must be >= 0")
	}
	return ensurePositiveMap(map[string]int{
		"ingest.workers":          c.Ingest.Workers,
		"ingest.queue_size":       c.Ingest.QueueSize,
		"ingest.metadata_timeout": c.Ingest.MetadataTimeout,
		"ingest.register_timeout": c.Ingest.RegisterTimeout,
		"ingest.upload_timeout":   c.Ingest.UploadTimeout,
	})
}

func (c *Config) validateRelocate() error {
	if err := ensurePositiveMap(map[string]int{
		"relocate.max_attempts":       c.Relocate.MaxAttempts,
		"relocate.initial_backoff_ms": c.Relocate.InitialBackoffMillis,
		"relocate.max_backoff_ms":     c.Relocate.MaxBackoffMillis,
		"relocate.timeout":            c.Relocate.Timeout,
	}); err != nil {
		return err
	}
	if c.Relocate.MaxBackoffMillis < c.Relocate.InitialBackoffMillis {
		return errors.New("relocate.max_backoff_ms must be >= relocate.initial_backoff_ms")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.RequestTimeout <= 0 {
		return errors.New("catalog.request_timeout must be positive")
	}
	if !c.Catalog.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Catalog.URL, "http://") && !strings.HasPrefix(c.Catalog.URL, "https://") {
		return fmt.Errorf("catalog.url must be an http(s) URL, got %q", c.Catalog.URL)
	}
	if c.Catalog.Username == "" || c.Catalog.Password == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("catalog.username and catalog.password are required when catalog.enabled is true. Set TRACKSYNC_USERNAME/TRACKSYNC_PASSWORD, point catalog.credentials_file at a credentials file, or edit %s (create with 'tracksync config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for _, key := range sortedKeys(values) {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func sortedKeys[V any](values map[string]V) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
