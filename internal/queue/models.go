package queue

import "time"

// JobState is the lifecycle state of an orchestrated job.
type JobState string

const (
	JobCreated    JobState = "created"
	JobProcessing JobState = "processing"
	JobRetrying   JobState = "retrying"
	JobSucceeded  JobState = "succeeded"
	JobFailed     JobState = "failed"
)

// IsTerminal reports whether no further transitions follow.
func (s JobState) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one ledger row. Payloads are not persisted.
type Job struct {
	ID           string
	Queue        string
	BatchID      string
	State        JobState
	Attempts     int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BatchStatus tracks a file through the pipeline.
type BatchStatus string

const (
	BatchArrived    BatchStatus = "arrived"
	BatchHashed     BatchStatus = "hashed"
	BatchLoaded     BatchStatus = "loaded"
	BatchIngesting  BatchStatus = "ingesting"
	BatchAggregated BatchStatus = "aggregated"
	BatchReported   BatchStatus = "reported"
	BatchFailed     BatchStatus = "failed"
)

// Batch records the processing of one arrived file.
type Batch struct {
	ID           string
	ClientNID    string
	FilePath     string
	FileSize     int64
	Checksum     string
	Status       BatchStatus
	RecordCount  int
	InvalidCount int
	ErrorMessage string
	ReportJSON   string
	StartedAt    time.Time
	FinishedAt   *time.Time
	UpdatedAt    time.Time
}

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	BatchID string
	Queue   string
	States  []JobState
	Limit   int
}

// HealthSummary aggregates ledger counts for diagnostic output.
type HealthSummary struct {
	Jobs    map[JobState]int
	Batches map[BatchStatus]int
}

// DatabaseHealth captures diagnostic information about the ledger database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	IntegrityCheck   bool
	TotalJobs        int
	TotalBatches     int
	Error            string
}
