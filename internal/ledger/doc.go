// Package ledger persists ingest records in SQLite.
//
// The Store implements ingest.Recorder: the machine inserts a row when a file
// is detected and updates it after every stage transition. Rows that are not
// in a terminal stage when the daemon starts belong to a run that was cut
// short; ReclaimInterrupted marks them failed so the operator can see them and
// resubmit the files.
//
// The ledger is history, not the source of truth for the filesystem. Schema
// changes bump schemaVersion; users clear the database to adopt them.
package ledger
