// Package ingest drives a roster file through the pipeline.
//
// The Coordinator owns the per-file state machine: hash the file, run a load
// job, fan out one ingest job per valid record, aggregate the outcomes into a
// reports.Report, deliver it, then apply the client's upload retention
// policy. LoadHandler and IngestHandler are the job handlers the
// orchestrator runs for the two queue kinds.
package ingest
