package notifications

import (
	"context"

	"rostersync/internal/config"
	"rostersync/internal/reports"
)

// ReportNotifier publishes finished reports, honoring the per-outcome toggles.
type ReportNotifier struct {
	service   Service
	completed bool
	failed    bool
}

var _ reports.Sink = (*ReportNotifier)(nil)

// NewReportNotifier wraps service with the toggles from cfg.
func NewReportNotifier(service Service, cfg config.Notifications) *ReportNotifier {
	return &ReportNotifier{service: service, completed: cfg.BatchCompleted, failed: cfg.BatchFailed}
}

func (r *ReportNotifier) Deliver(ctx context.Context, report *reports.Report) error {
	if r == nil || r.service == nil || report == nil {
		return nil
	}
	if report.Failed() {
		if !r.failed {
			return nil
		}
		return r.service.NotifyBatchFailed(ctx, report)
	}
	if !r.completed {
		return nil
	}
	return r.service.NotifyBatchCompleted(ctx, report)
}
