// Package daemon coordinates the long-running tweetloom process.
//
// It wires configuration, the SQLite store, the pipeline runner, and the
// scheduler into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon also hosts the local HTTP API used by the
// CLI for status queries, channel management, and on-demand pipeline runs.
//
// Keep orchestration logic here: the ingestion and publishing stages live in
// their own packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
