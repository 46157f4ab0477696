// Package notifications pushes batch summaries to ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// ReportNotifier adapts a Service to reports.Sink so the pipeline treats push
// notifications like any other report destination.
package notifications
