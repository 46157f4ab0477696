package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rostersync/internal/fileutil"
	"rostersync/internal/logging"
)

// Sink receives finished reports.
type Sink interface {
	Deliver(ctx context.Context, report *Report) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, report *Report) error

func (f SinkFunc) Deliver(ctx context.Context, report *Report) error { return f(ctx, report) }

// FileSink archives reports as JSON under a directory.
type FileSink struct {
	dir string
}

// NewFileSink writes into dir, creating it on first delivery.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Path returns where report is archived.
func (s *FileSink) Path(report *Report) string {
	nid := strings.ReplaceAll(report.Client.NID, ":", "-")
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", nid, report.BatchID))
}

func (s *FileSink) Deliver(_ context.Context, report *Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create reports dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.Path(report), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LogSink logs a report summary.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink logs through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, report *Report) error {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "batch_reported"),
		logging.String(logging.FieldCorrelationID, report.BatchID),
		logging.String(logging.FieldClient, report.Client.NID),
		logging.String("file", report.File),
		logging.String("status", report.Status),
		logging.Int("records", report.Records),
		logging.Int("invalid", len(report.ValidationErrors)),
		logging.Int64("elapsed_ms", report.ElapsedMS),
	}
	for _, label := range OutcomeOrder {
		if n := report.Counts[label]; n > 0 {
			attrs = append(attrs, logging.Int("outcome_"+label, n))
		}
	}
	logger := s.logger
	if report.Failed() {
		attrs = append(attrs,
			logging.String("error", report.Error),
			logging.String(logging.FieldErrorHint, "check the file format and upstream availability, then re-upload"),
		)
		logger.Error("batch failed", logging.Args(attrs...)...)
		return nil
	}
	logger.Info(report.Summary(), logging.Args(attrs...)...)
	return nil
}

// MultiSink delivers to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, report *Report) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Deliver(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
