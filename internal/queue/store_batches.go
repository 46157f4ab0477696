package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateBatch inserts a new batch row.
func (s *Store) CreateBatch(ctx context.Context, batch *Batch) error {
	if batch == nil || strings.TrimSpace(batch.ID) == "" {
		return errors.New("create batch: id is required")
	}
	now := time.Now().UTC()
	if batch.StartedAt.IsZero() {
		batch.StartedAt = now
	}
	if batch.Status == "" {
		batch.Status = BatchArrived
	}
	batch.UpdatedAt = now
	_, err := s.execWithRetry(ctx, "INSERT INTO batches ("+batchColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		batch.ID,
		batch.ClientNID,
		batch.FilePath,
		batch.FileSize,
		nullableString(batch.Checksum),
		string(batch.Status),
		batch.RecordCount,
		batch.InvalidCount,
		nullableString(batch.ErrorMessage),
		nullableString(batch.ReportJSON),
		formatTime(batch.StartedAt),
		nullableTime(batch.FinishedAt),
		formatTime(batch.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create batch %s: %w", batch.ID, err)
	}
	return nil
}

// UpdateBatch persists the mutable batch fields.
func (s *Store) UpdateBatch(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return errors.New("update batch: nil batch")
	}
	batch.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `UPDATE batches SET
			file_size = ?, checksum = ?, status = ?, record_count = ?, invalid_count = ?,
			error_message = ?, report_json = ?, finished_at = ?, updated_at = ?
		WHERE id = ?`,
		batch.FileSize,
		nullableString(batch.Checksum),
		string(batch.Status),
		batch.RecordCount,
		batch.InvalidCount,
		nullableString(batch.ErrorMessage),
		nullableString(batch.ReportJSON),
		nullableTime(batch.FinishedAt),
		formatTime(batch.UpdatedAt),
		batch.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch %s: %w", batch.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update batch %s: not found", batch.ID)
	}
	return nil
}

// GetBatch returns the batch with the given id, or nil when absent.
func (s *Store) GetBatch(ctx context.Context, id string) (*Batch, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+batchColumns+" FROM batches WHERE id = ?", id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", id, err)
	}
	return batch, nil
}

// ListBatches returns the most recent batches, optionally for one client.
func (s *Store) ListBatches(ctx context.Context, clientNID string, limit int) ([]Batch, error) {
	query := "SELECT " + batchColumns + " FROM batches"
	var args []any
	if clientNID != "" {
		query += " WHERE client_nid = ?"
		args = append(args, clientNID)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

// PruneBefore removes finished batches (and their jobs) that finished before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cut := formatTime(cutoff)
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE batch_id IN (SELECT id FROM batches WHERE finished_at IS NOT NULL AND finished_at < ?)`, cut); err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE finished_at IS NOT NULL AND finished_at < ?`, cut)
	if err != nil {
		return 0, fmt.Errorf("prune batches: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return res.RowsAffected()
}
