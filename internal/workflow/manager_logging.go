package workflow

import (
	"strings"
	"time"

	"rostersync/internal/logging"
	"rostersync/internal/queue"
	"rostersync/internal/services"
)

// transition logs, counts, and records one job state change.
func (m *Manager) transition(req *request, state queue.JobState, err error) {
	job := req.job
	logger := logging.WithContext(req.ctx, m.logger).With(
		logging.String(logging.FieldEventType, "job_"+string(state)),
		logging.Int(logging.FieldAttempt, job.Attempt),
	)

	switch state {
	case queue.JobCreated:
		logger.Debug("job created")
	case queue.JobProcessing:
		logger.Debug("job processing")
	case queue.JobRetrying:
		logger.Warn("job failed; retrying",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check upstream availability"),
		)
	case queue.JobSucceeded:
		logger.Info("job succeeded", logging.Duration("elapsed", time.Since(req.created)))
	case queue.JobFailed:
		logger.Error("job failed",
			logging.Error(err),
			logging.String("error_kind", services.Kind(err)),
			logging.String(logging.FieldErrorHint, "see error for the failing record"),
		)
	}

	m.metrics.jobs.WithLabelValues(job.Queue, string(state)).Inc()
	if m.recorder == nil {
		return
	}
	record := queue.Job{
		ID:        job.ID,
		Queue:     job.Queue,
		BatchID:   job.BatchID,
		State:     state,
		Attempts:  job.Attempt,
		CreatedAt: req.created,
		UpdatedAt: time.Now(),
	}
	if err != nil {
		record.ErrorMessage = firstLine(err.Error())
	}
	if recErr := m.recorder.RecordJob(req.ctx, record); recErr != nil {
		logging.WarnWithContext(logger, "job ledger write failed", "job_ledger_failed",
			logging.Error(recErr),
			logging.String(logging.FieldErrorHint, "check ledger database access"),
		)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
