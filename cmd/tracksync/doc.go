// Command tracksync runs the inbox daemon and the operator tooling around it.
//
// `tracksync daemon` watches the inbox and moves every dropped file into the
// content-addressed library or the quarantine directory. The remaining
// commands either talk to a running daemon over its HTTP API (status,
// ingest) or work directly on local state (ledger, shard, classify, config).
// `tracksync ingest` falls back to processing in-process under the inbox lock
// when no daemon answers.
package main
