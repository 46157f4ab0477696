package daemonrun

import (
	"log/slog"

	"rostersync/internal/config"
	"rostersync/internal/ingest"
	"rostersync/internal/mapping"
	"rostersync/internal/notifications"
	"rostersync/internal/patron"
	"rostersync/internal/queue"
	"rostersync/internal/reports"
	"rostersync/internal/resolve"
	"rostersync/internal/roster"
	"rostersync/internal/workflow"
)

// PipelineOptions selects the collaborators a pipeline is built around.
type PipelineOptions struct {
	Upstream patron.Client
	Store    *queue.Store
	Logger   *slog.Logger
	Metrics  *workflow.Metrics
	Sink     reports.Sink
	DryRun   bool
}

// Pipeline is an orchestrator with every configured queue registered and the
// coordinator that feeds it.
type Pipeline struct {
	Manager     *workflow.Manager
	Coordinator *ingest.Coordinator
}

// NewPipeline wires loader, resolver, and mapper handlers onto the configured
// queues. The manager is returned unstarted.
func NewPipeline(cfg *config.Config, opts PipelineOptions) (*Pipeline, error) {
	registry := roster.DefaultRegistry()
	if err := registry.CheckClients(cfg.Clients); err != nil {
		return nil, err
	}
	mapper, err := mapping.New(cfg.Defaults)
	if err != nil {
		return nil, err
	}

	managerOpts := []workflow.ManagerOption{}
	if opts.Store != nil {
		managerOpts = append(managerOpts, workflow.WithRecorder(opts.Store))
	}
	if opts.Metrics != nil {
		managerOpts = append(managerOpts, workflow.WithMetrics(opts.Metrics))
	}
	mgr := workflow.NewManager(opts.Logger, managerOpts...)

	loader := roster.NewLoader(registry, roster.NewValidator(nil), opts.Logger)
	resolver := resolve.New(opts.Upstream, cfg.Upstream.SearchLimit, opts.Logger)
	err = ingest.RegisterQueues(mgr, cfg.Ingest.Queues,
		ingest.NewLoadHandler(loader),
		ingest.NewIngestHandler(resolver, mapper, opts.Upstream, opts.Logger),
	)
	if err != nil {
		return nil, err
	}

	coordinatorOpts := ingest.Options{
		Orchestrator: mgr,
		Sink:         opts.Sink,
		Logger:       opts.Logger,
		DryRun:       opts.DryRun,
	}
	if opts.Store != nil {
		coordinatorOpts.Ledger = opts.Store
	}
	coordinator, err := ingest.NewCoordinator(coordinatorOpts)
	if err != nil {
		return nil, err
	}
	return &Pipeline{Manager: mgr, Coordinator: coordinator}, nil
}

// ReportSinks returns the sinks every finished batch is delivered to: the
// reports directory, the log, and ntfy unless notify is false.
func ReportSinks(cfg *config.Config, logger *slog.Logger, notify bool) reports.Sink {
	sinks := reports.MultiSink{
		reports.NewFileSink(cfg.Paths.ReportsDir),
		reports.NewLogSink(logger),
	}
	if notify {
		sinks = append(sinks, notifications.NewReportNotifier(notifications.NewService(cfg), cfg.Notifications))
	}
	return sinks
}
