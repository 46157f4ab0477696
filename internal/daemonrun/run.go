package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rostersync/internal/config"
	"rostersync/internal/daemon"
	"rostersync/internal/logging"
	"rostersync/internal/patron/ilsws"
	"rostersync/internal/preflight"
	"rostersync/internal/queue"
	"rostersync/internal/watch"
	"rostersync/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel      string
	SkipPreflight bool
}

// Run starts the rostersync daemon and blocks until SIGINT/SIGTERM or cmdCtx
// is cancelled.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	upstream, err := ilsws.New(cfg.Upstream, ilsws.WithLogger(logger))
	if err != nil {
		return err
	}

	if !opts.SkipPreflight {
		if err := runPreflight(signalCtx, cfg, upstream, logger); err != nil {
			return err
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job ledger", logging.Error(err))
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline, err := NewPipeline(cfg, PipelineOptions{
		Upstream: upstream,
		Store:    store,
		Logger:   logger,
		Metrics:  workflow.NewMetrics(registry),
		Sink:     ReportSinks(cfg, logger, true),
	})
	if err != nil {
		store.Close()
		return err
	}

	d, err := daemon.New(cfg, store, logger, pipeline.Manager, watch.NewPoller(cfg, logger), pipeline.Coordinator)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	stopMetrics := serveMetrics(cfg.Metrics.Bind, registry, logger)
	defer stopMetrics()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running instance and ledger access"),
		)
		return err
	}
	for _, h := range d.Health(signalCtx) {
		if !h.Ready {
			logging.WarnWithContext(logger, "queue handler not ready", "handler_unhealthy",
				logging.String("handler", h.Name),
				logging.String(logging.FieldQueue, h.Queue),
				logging.String("detail", h.Detail),
			)
		}
	}

	<-signalCtx.Done()
	logger.Info("rostersync daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func runPreflight(ctx context.Context, cfg *config.Config, upstream preflight.Pinger, logger *slog.Logger) error {
	results := preflight.RunAll(ctx, cfg, upstream)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
		}
	}
	failed := preflight.Failed(results)
	if len(failed) == 0 {
		return nil
	}
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
		logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "run `rostersync check` for the full list"),
		)
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
}

// serveMetrics exposes registry on bind at /metrics. An empty bind is a no-op.
func serveMetrics(bind string, registry *prometheus.Registry, logger *slog.Logger) func() {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	server := &http.Server{Addr: bind, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WarnWithContext(logger, "metrics endpoint stopped", "metrics_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.bind"),
			)
		}
	}()
	logger.Info("metrics endpoint listening", logging.String("bind", bind))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
