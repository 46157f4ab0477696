// Package workflow runs orchestrated jobs on named, concurrency-bounded
// worker pools.
//
// The Manager owns one pool per registered queue. Submit hands a payload to a
// queue and blocks until the job reaches a terminal state: the handler's result
// on success, or its error once the retry budget is spent. Retryable failures
// are re-run after a fixed backoff while the caller keeps waiting; callers can
// observe each retry through OnRetry. Handler panics are recovered at the
// worker boundary and surface as job failures, so one bad record never takes a
// worker or its siblings down.
//
// Every transition (created, processing, retrying, succeeded, failed) is
// logged with the job's correlation id, counted in Prometheus metrics, and
// handed to an optional JobRecorder for the audit ledger.
package workflow
