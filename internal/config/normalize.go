package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIngest()
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.AppDir) == "" {
		c.Paths.AppDir = defaultAppDir
	}
	if c.Paths.AppDir, err = expandPath(c.Paths.AppDir); err != nil {
		return fmt.Errorf("paths.app_dir: %w", err)
	}
	subdirs := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.inbox_dir", &c.Paths.InboxDir, defaultInboxName},
		{"paths.library_dir", &c.Paths.LibraryDir, defaultLibraryName},
		{"paths.quarantine_dir", &c.Paths.QuarantineDir, defaultQuarantineName},
	}
	for _, sub := range subdirs {
		if strings.TrimSpace(*sub.value) == "" {
			*sub.value = filepath.Join(c.Paths.AppDir, sub.name)
		}
		if *sub.value, err = expandPath(*sub.value); err != nil {
			return fmt.Errorf("%s: %w", sub.key, err)
		}
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if value, ok := os.LookupEnv("TRACKSYNC_API_TOKEN"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIToken = strings.TrimSpace(value)
	}
	return nil
}

func (c *Config) normalizeIngest() {
	if len(c.Ingest.SupportedExtensions) == 0 {
		c.Ingest.SupportedExtensions = DefaultSupportedExtensions()
		return
	}
	cleaned := make(map[string]string, len(c.Ingest.SupportedExtensions))
	for ext, mediaType := range c.Ingest.SupportedExtensions {
		// Extensions stay case-sensitive; only surrounding whitespace is dropped.
		ext = strings.TrimSpace(ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cleaned[ext] = strings.TrimSpace(mediaType)
	}
	c.Ingest.SupportedExtensions = cleaned
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.URL = strings.TrimRight(strings.TrimSpace(c.Catalog.URL), "/")
	if value, ok := os.LookupEnv("TRACKSYNC_CATALOG_URL"); ok && strings.TrimSpace(value) != "" {
		c.Catalog.URL = strings.TrimRight(strings.TrimSpace(value), "/")
	}
	if c.Catalog.URL == "" {
		c.Catalog.URL = defaultCatalogURL
	}

	if strings.TrimSpace(c.Catalog.CredentialsFile) != "" {
		path, err := expandPath(strings.TrimSpace(c.Catalog.CredentialsFile))
		if err != nil {
			return fmt.Errorf("catalog.credentials_file: %w", err)
		}
		c.Catalog.CredentialsFile = path
		creds, err := LoadCredentials(path)
		if err != nil {
			return fmt.Errorf("catalog.credentials_file: %w", err)
		}
		if strings.TrimSpace(c.Catalog.Username) == "" {
			c.Catalog.Username = creds.User.Username
		}
		if c.Catalog.Password == "" {
			c.Catalog.Password = creds.User.Password
		}
	}

	// Environment values win over the config file and the credentials file.
	c.Catalog.Username = strings.TrimSpace(c.Catalog.Username)
	if value, ok := os.LookupEnv("TRACKSYNC_USERNAME"); ok && strings.TrimSpace(value) != "" {
		c.Catalog.Username = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("TRACKSYNC_PASSWORD"); ok && value != "" {
		c.Catalog.Password = value
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
