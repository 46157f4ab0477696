// Package services defines shared utilities consumed by the job handlers and
// the system-of-record integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch IDs, job IDs, queue names, and client
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so the orchestrator can
//     decide whether a failed job is retried.
//
// Use these helpers when wiring new handler logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
