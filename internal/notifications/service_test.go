package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"rostersync/internal/config"
	"rostersync/internal/notifications"
	"rostersync/internal/reports"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func report(status string) *reports.Report {
	r := &reports.Report{
		BatchID: "b-1",
		Client:  reports.ClientInfo{NID: "isd:123", Name: "Test District"},
		File:    "/srv/isd123/incoming/roster.csv",
		Status:  status,
		Records: 2,
	}
	r.Add(reports.OutcomeNew, reports.Entry{PrimaryKey: "1"})
	return r
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyBatchFailed(context.Background(), report(reports.StatusFailed)); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestReportNotifierFormatsAndHonorsToggles(t *testing.T) {
	srv, captured := newNtfyServer(t)
	cfg := config.Default()
	cfg.Notifications = config.Notifications{NtfyTopic: srv.URL, BatchCompleted: true, BatchFailed: true}
	notifier := notifications.NewReportNotifier(notifications.NewService(&cfg), cfg.Notifications)

	if err := notifier.Deliver(context.Background(), report(reports.StatusCompleted)); err != nil {
		t.Fatalf("Deliver completed: %v", err)
	}
	ambiguous := report(reports.StatusCompleted)
	ambiguous.Add(reports.OutcomeAmbiguous, reports.Entry{PrimaryKey: "2"})
	if err := notifier.Deliver(context.Background(), ambiguous); err != nil {
		t.Fatalf("Deliver ambiguous: %v", err)
	}
	failed := report(reports.StatusFailed)
	failed.Error = "load error: malformed file"
	if err := notifier.Deliver(context.Background(), failed); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	reqs := captured()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(reqs))
	}
	if reqs[0].title != "rostersync - Test District complete" || !strings.Contains(reqs[0].body, "new: 1") {
		t.Fatalf("unexpected completion notice: %+v", reqs[0])
	}
	if reqs[1].title != "rostersync - Test District needs review" || reqs[1].tags != "rostersync,batch,review" {
		t.Fatalf("unexpected review notice: %+v", reqs[1])
	}
	if reqs[2].priority != "high" || reqs[2].body != "roster.csv: load error: malformed file" {
		t.Fatalf("unexpected failure notice: %+v", reqs[2])
	}

	quiet := notifications.NewReportNotifier(notifications.NewService(&cfg), config.Notifications{})
	if err := quiet.Deliver(context.Background(), failed); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(captured()) != 3 {
		t.Fatal("disabled toggles must suppress notifications")
	}
}

func TestNtfyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected status error, got %v", err)
	}
}
