// Package daemon coordinates the long-running tracksync process.
//
// It wires configuration, the ingest ledger, the worker pool and the inbox
// watcher into a single lifecycle with flock-based locking so only one
// process ever moves files out of an inbox. Startup is strictly ordered:
// lock, preflight, catalog identity, ledger reclaim, workers, watcher with
// its initial scan, and finally the HTTP API. A failed identity fetch is
// returned as a *FatalError before the watcher is armed.
//
// The HTTP API serves status, ledger records, manual resubmission and
// Prometheus metrics behind an optional bearer token.
//
// Keep orchestration logic here: pipeline steps live in internal/ingest and
// scheduling lives in internal/workflow.
package daemon
