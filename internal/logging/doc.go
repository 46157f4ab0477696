// Package logging assembles structured slog loggers and formatting helpers used
// across rostersync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so handler code can automatically
// tag log lines with batch correlation IDs, job IDs, queue names, and client
// identifiers. The package also provides a no-op logger for tests and wiring
// code that cannot fail.
package logging
