package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rostersync/internal/logging"
	"rostersync/internal/patron/memory"
	"rostersync/internal/reports"
	"rostersync/internal/services"
	"rostersync/internal/testsupport"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) About(ctx context.Context) error { return f(ctx) }

func TestNewPipelineRejectsUnknownSchema(t *testing.T) {
	client := testsupport.DefaultClient()
	client.Schema = "college"
	cfg := testsupport.NewConfig(t, testsupport.WithClient(client))

	_, err := NewPipeline(cfg, PipelineOptions{Upstream: memory.New()})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPipelineDryRunKeepsUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	upstream := memory.New()
	pipeline, err := NewPipeline(cfg, PipelineOptions{
		Upstream: upstream,
		Logger:   logging.NewNop(),
		Sink:     ReportSinks(cfg, logging.NewNop(), false),
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if err := pipeline.Manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(pipeline.Manager.Stop)

	client := testsupport.DefaultClient()
	path := testsupport.WriteCSV(t, filepath.Join(client.IncomingDir(cfg.Paths.IncomingDir), "roster.csv"),
		testsupport.DistrictHeader,
		[]string{"111111", "Ana", "", "Lopez", "1 Main St", "", "", "", "03/15/2012", ""},
	)

	report := pipeline.Coordinator.Process(context.Background(), client, path)
	if report.Status != reports.StatusCompleted || report.Counts[reports.OutcomeNew] != 1 || !report.DryRun {
		t.Fatalf("unexpected report: status=%s counts=%v dry=%v", report.Status, report.Counts, report.DryRun)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("dry run must keep the upload: %v", err)
	}
	if _, err := os.Stat(reports.NewFileSink(cfg.Paths.ReportsDir).Path(report)); err != nil {
		t.Fatalf("report file missing: %v", err)
	}
}

func TestRunPreflightReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	ok := pingerFunc(func(context.Context) error { return nil })
	if err := runPreflight(context.Background(), cfg, ok, logging.NewNop()); err != nil {
		t.Fatalf("expected preflight to pass, got %v", err)
	}

	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })
	err := runPreflight(context.Background(), cfg, down, logging.NewNop())
	if err == nil || !strings.Contains(err.Error(), "System of record") {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestServeMetricsDisabled(t *testing.T) {
	stop := serveMetrics("  ", nil, logging.NewNop())
	stop()
}
