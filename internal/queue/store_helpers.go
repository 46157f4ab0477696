package queue

import (
	"database/sql"
	"errors"
	"time"
)

const (
	jobColumns   = "id, queue, batch_id, state, attempts, error_message, created_at, updated_at"
	batchColumns = "id, client_nid, file_path, file_size, checksum, status, record_count, invalid_count, error_message, report_json, started_at, finished_at, updated_at"
)

type rowScanner interface{ Scan(dest ...any) error }

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job        Job
		batchID    sql.NullString
		state      string
		errorMsg   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&job.ID, &job.Queue, &batchID, &state, &job.Attempts, &errorMsg, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	job.BatchID = batchID.String
	job.State = JobState(state)
	job.ErrorMessage = errorMsg.String
	if t, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	return &job, nil
}

func scanBatch(scanner rowScanner) (*Batch, error) {
	var (
		batch       Batch
		checksum    sql.NullString
		status      string
		errorMsg    sql.NullString
		reportJSON  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
		updatedRaw  string
	)
	if err := scanner.Scan(
		&batch.ID,
		&batch.ClientNID,
		&batch.FilePath,
		&batch.FileSize,
		&checksum,
		&status,
		&batch.RecordCount,
		&batch.InvalidCount,
		&errorMsg,
		&reportJSON,
		&startedRaw,
		&finishedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	batch.Checksum = checksum.String
	batch.Status = BatchStatus(status)
	batch.ErrorMessage = errorMsg.String
	batch.ReportJSON = reportJSON.String
	if t, err := parseTimeString(startedRaw); err == nil {
		batch.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := parseTimeString(finishedRaw.String); err == nil {
			batch.FinishedAt = &t
		}
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		batch.UpdatedAt = t
	}
	return &batch, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
