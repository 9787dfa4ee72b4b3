// Package workflow feeds dropped files to the ingest machine.
//
// The Manager owns a bounded queue and a fixed pool of workers. The watcher,
// the startup scan and manual resubmissions all call Submit; a path that is
// already queued or being processed is not queued twice. Each worker runs one
// file at a time through ingest.Machine, so a slow upload only ties up its own
// worker.
//
// After each file the manager records the outcome for status reporting and
// sends the matching notification.
package workflow
