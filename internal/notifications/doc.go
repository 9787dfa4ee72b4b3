// Package notifications pushes ingest outcomes to ntfy.
//
// Relocations, quarantines and failures can each be switched on or off in the
// [notifications] section of config.toml. Without a topic the service is a
// no-op, so callers never need to check whether notifications are enabled.
package notifications
