package config

import "maps"

const (
	defaultConfigPath             = "~/.config/tracksync/config.toml"
	defaultAppDir                 = "~/Tracksync"
	defaultInboxName              = "Inbox"
	defaultLibraryName            = "Library"
	defaultQuarantineName         = "Unsupported"
	defaultStateDir               = "~/.local/share/tracksync"
	defaultLogDir                 = "~/.local/share/tracksync/logs"
	defaultAPIBind                = "127.0.0.1:7491"
	defaultWorkers                = 4
	defaultQueueSize              = 64
	defaultSettleMillis           = 750
	defaultMetadataTimeout        = 120
	defaultRegisterTimeout        = 30
	defaultUploadTimeout          = 600
	defaultRelocateAttempts       = 5
	defaultRelocateInitialBackoff = 200
	defaultRelocateMaxBackoff     = 5000
	defaultRelocateTimeout        = 120
	defaultCatalogURL             = "https://api.vibedrive.io"
	defaultCatalogRequestTimeout  = 30
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

var defaultSupportedExtensions = map[string]string{
	".mp3": "audio/mp3",
}

// DefaultSupportedExtensions returns a copy of the built-in extension allow-list.
func DefaultSupportedExtensions() map[string]string {
	return maps.Clone(defaultSupportedExtensions)
}

// Default returns a Config populated with repository defaults. Inbox, library and
// quarantine directories are left empty and derived from AppDir during normalization.
// The extension allow-list is also filled in during normalization so a configured
// list replaces the built-in one instead of merging with it.
func Default() Config {
	return Config{
		Paths: Paths{
			AppDir:   defaultAppDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Ingest: Ingest{
			Workers:         defaultWorkers,
			QueueSize:       defaultQueueSize,
			SettleMillis:    defaultSettleMillis,
			InitialScan:     true,
			MetadataTimeout: defaultMetadataTimeout,
			RegisterTimeout: defaultRegisterTimeout,
			UploadTimeout:   defaultUploadTimeout,
		},
		Relocate: Relocate{
			MaxAttempts:          defaultRelocateAttempts,
			InitialBackoffMillis: defaultRelocateInitialBackoff,
			MaxBackoffMillis:     defaultRelocateMaxBackoff,
			Timeout:              defaultRelocateTimeout,
		},
		Catalog: Catalog{
			Enabled:        true,
			URL:            defaultCatalogURL,
			RequestTimeout: defaultCatalogRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Relocated:      false,
			Quarantined:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
