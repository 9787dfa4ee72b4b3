// Package catalog talks to the remote track catalog.
//
// The Client logs in with the configured account, registers tracks and
// uploads their bytes keyed by fingerprint. Errors carry services markers:
// rejected requests are ErrValidation, rejected credentials ErrConfiguration,
// throttling and 5xx answers ErrTransient, and transport failures ErrExternal.
//
// Offline mode (catalog.enabled = false) uses Offline, which accepts every
// track without contacting anything.
package catalog
