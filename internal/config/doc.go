// Package config loads, normalizes, and validates tracksync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TRACKSYNC_USERNAME and TRACKSYNC_PASSWORD. Catalog credentials may also be
// kept in a separate YAML file referenced by catalog.credentials_file.
//
// Inbox, library and quarantine directories default to siblings under the app
// directory. Always obtain settings through this package so downstream code
// receives absolute paths and clear validation errors.
package config
