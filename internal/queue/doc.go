// Package queue persists the orchestrator's job ledger and per-file batch
// records in SQLite.
//
// Jobs are written on every state transition (created, processing, retrying,
// succeeded, failed) so operators can audit what happened to each record of a
// file. Batches mirror the coordinator's per-file state machine and keep the
// rendered report once a file is reported.
//
// The database is an audit ledger, not the work queue itself: in-flight work
// lives in the orchestrator's pools. Schema changes bump the version in
// schema.go; users clear the database to adopt the new schema.
package queue
