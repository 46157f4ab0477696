package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/reports"
)

const userAgent = "rostersync/0.1.0"

// Service defines the notification surface used by the pipeline and CLI.
type Service interface {
	NotifyBatchCompleted(ctx context.Context, report *reports.Report) error
	NotifyBatchFailed(ctx context.Context, report *reports.Report) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, report *reports.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d records", baseName(report.File), report.Records)
	for _, label := range reports.OutcomeOrder {
		if c := report.Counts[label]; c > 0 {
			fmt.Fprintf(&b, "\n%s: %d", label, c)
		}
	}
	if v := len(report.ValidationErrors); v > 0 {
		fmt.Fprintf(&b, "\ninvalid rows: %d", v)
	}

	data := payload{
		title:   fmt.Sprintf("rostersync - %s complete", clientLabel(report)),
		message: b.String(),
		tags:    []string{"rostersync", "batch", "completed"},
	}
	if report.Counts[reports.OutcomeAmbiguous] > 0 || report.Counts[reports.OutcomeError] > 0 || report.Counts[reports.OutcomeDataTooLong] > 0 {
		data.title = fmt.Sprintf("rostersync - %s needs review", clientLabel(report))
		data.tags = []string{"rostersync", "batch", "review"}
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchFailed(ctx context.Context, report *reports.Report) error {
	message := fmt.Sprintf("%s: %s", baseName(report.File), strings.TrimSpace(report.Error))
	if report.Error == "" {
		message = baseName(report.File) + ": unknown error"
	}
	data := payload{
		title:    fmt.Sprintf("rostersync - %s failed", clientLabel(report)),
		message:  message,
		tags:     []string{"rostersync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "rostersync - Test",
		message:  "Notification system test",
		tags:     []string{"rostersync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func clientLabel(report *reports.Report) string {
	if name := strings.TrimSpace(report.Client.Name); name != "" {
		return name
	}
	return report.Client.NID
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

type noopService struct{}

func (noopService) NotifyBatchCompleted(context.Context, *reports.Report) error { return nil }
func (noopService) NotifyBatchFailed(context.Context, *reports.Report) error    { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }
