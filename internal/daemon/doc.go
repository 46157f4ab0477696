// Package daemon coordinates the long-running rostersync process.
//
// It wires the job ledger, the orchestrator, the upload poller, and the
// pipeline coordinator into a single lifecycle with flock-based locking to
// prevent multiple instances. Jobs a previous process left in flight are
// failed on start, and Stop drains files already being processed before the
// orchestrator shuts down.
//
// Keep orchestration logic here: pipeline steps live in their own packages
// while the daemon focuses on startup, shutdown, and status.
package daemon
