package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rostersync/internal/testsupport"
	"rostersync/internal/watch"
)

func incoming(t *testing.T, root string) string {
	t.Helper()
	return testsupport.DefaultClient().IncomingDir(root)
}

func drain(p *watch.Poller) []watch.FileEvent {
	var out []watch.FileEvent
	for {
		select {
		case ev := <-p.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestScanEmitsOnceWriteFinished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := incoming(t, cfg.Paths.IncomingDir)
	path := testsupport.WriteFile(t, filepath.Join(dir, "roster.csv"), "a")
	testsupport.WriteFile(t, filepath.Join(dir, ".hidden"), "x")
	testsupport.WriteFile(t, filepath.Join(dir, "upload.csv.filepart"), "x")

	p := watch.NewPoller(cfg, nil)
	ctx := context.Background()

	if err := p.Scan(ctx); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := drain(p); len(got) != 0 {
		t.Fatalf("first sighting must not emit, got %v", got)
	}

	// Still growing.
	testsupport.WriteFile(t, path, "ab")
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	_ = p.Scan(ctx)
	if got := drain(p); len(got) != 0 {
		t.Fatalf("changed file must not emit, got %v", got)
	}

	_ = p.Scan(ctx)
	got := drain(p)
	if len(got) != 1 || got[0].Path != path || got[0].Size != 2 || got[0].Client.NID() != "isd:123" {
		t.Fatalf("unexpected events: %+v", got)
	}

	_ = p.Scan(ctx)
	if got := drain(p); len(got) != 0 {
		t.Fatalf("file must be emitted once, got %v", got)
	}
}

func TestRunIgnoresExistingFilesUnlessConfigured(t *testing.T) {
	for _, processExisting := range []bool{false, true} {
		cfg := testsupport.NewConfig(t)
		cfg.Ingest.ProcessExisting = processExisting
		cfg.Ingest.PollIntervalSeconds = 1
		dir := incoming(t, cfg.Paths.IncomingDir)
		testsupport.WriteFile(t, filepath.Join(dir, "old.csv"), "old")

		p := watch.NewPoller(cfg, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
		done := make(chan struct{})
		go func() {
			_ = p.Run(ctx)
			close(done)
		}()

		var events []watch.FileEvent
		for ev := range p.Events() {
			events = append(events, ev)
		}
		cancel()
		<-done

		if processExisting && len(events) != 1 {
			t.Fatalf("process_existing: expected 1 event, got %d", len(events))
		}
		if !processExisting && len(events) != 0 {
			t.Fatalf("expected existing file to be ignored, got %d events", len(events))
		}
	}
}
