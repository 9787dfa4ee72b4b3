// Package services defines shared utilities consumed by the ingest pipeline
// and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp ingest record IDs, stage names, worker
//     indices, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, so collaborator failures
//     carry a classification that survives errors.Is.
//
// The fingerprint and catalog subpackages implement the default metadata,
// catalog, and upload collaborators.
package services
