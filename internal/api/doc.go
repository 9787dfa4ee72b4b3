// Package api defines the wire-format types of the daemon HTTP API and a
// small client for them. It translates ledger entries, worker pool status and
// preflight results into transport-friendly DTOs so the CLI can render them
// without reaching into internal packages.
//
// # Key Types
//
// Record: transport representation of a ledger entry with stage, failure
// kind, destination and timing.
//
// DaemonStatus: running state, catalog identity, worker pool counters, ledger
// stage counts and the preflight results captured at startup.
//
// IngestRequest/IngestResponse: manual resubmission of paths to a running
// daemon.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Stages are exposed as their lowercase names.
// Timestamps use RFC3339 with milliseconds. Every non-2xx answer carries an
// ErrorResponse body; Client surfaces its message. Connection failures wrap
// ErrUnavailable so callers can fall back to running in-process.
package api
