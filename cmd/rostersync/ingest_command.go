package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"rostersync/internal/config"
	"rostersync/internal/daemonrun"
	"rostersync/internal/logging"
	"rostersync/internal/patron"
	"rostersync/internal/patron/ilsws"
	"rostersync/internal/patron/memory"
	"rostersync/internal/queue"
	"rostersync/internal/reports"
	"rostersync/internal/services"
)

type ingestOptions struct {
	client   string
	dryRun   bool
	seed     string
	jsonOut  bool
	logLevel string
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Process one roster file immediately",
		Long: "Run a roster file through load, resolution, and mapping without the daemon.\n" +
			"The input file is never removed. With --dry-run the system of record is replaced\n" +
			"by an in-memory directory, optionally seeded from a JSON array of identities.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.client, "client", "", "Client namespace:id the file belongs to (required)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Resolve against an in-memory directory instead of the system of record")
	cmd.Flags().StringVar(&opts.seed, "seed", "", "JSON identities loaded into the dry-run directory")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the full report as JSON")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log level for pipeline output on stderr")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func runIngest(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, path string, opts ingestOptions) error {
	client, ok := cfg.ClientByNID(opts.client)
	if !ok {
		return services.Wrap(services.ErrConfiguration, "cli", "ingest", fmt.Sprintf("unknown client %q", opts.client), nil)
	}
	client.PreserveUploads = true

	absPath, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return fmt.Errorf("resolve roster path: %w", err)
	}
	if opts.seed != "" && !opts.dryRun {
		return fmt.Errorf("--seed requires --dry-run")
	}

	logger, err := logging.New(logging.Options{
		Level:            opts.logLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	upstream, err := ingestUpstream(cfg, opts, logger)
	if err != nil {
		return err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job ledger: %w", err)
	}
	defer store.Close()

	pipeline, err := daemonrun.NewPipeline(cfg, daemonrun.PipelineOptions{
		Upstream: upstream,
		Store:    store,
		Logger:   logger,
		Sink:     reports.NewFileSink(cfg.Paths.ReportsDir),
		DryRun:   opts.dryRun,
	})
	if err != nil {
		return err
	}
	if err := pipeline.Manager.Start(ctx); err != nil {
		return err
	}
	report := pipeline.Coordinator.Process(ctx, client, absPath)
	pipeline.Manager.Stop()

	if opts.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		renderReport(stdout, report, shouldColorize(stdout))
		fmt.Fprintf(stdout, "Report written to %s\n", reports.NewFileSink(cfg.Paths.ReportsDir).Path(report))
	}
	if report.Failed() {
		fmt.Fprintln(stderr, report.Error)
		return fmt.Errorf("batch %s failed", report.BatchID)
	}
	return nil
}

func ingestUpstream(cfg *config.Config, opts ingestOptions, logger *slog.Logger) (patron.Client, error) {
	if !opts.dryRun {
		return ilsws.New(cfg.Upstream, ilsws.WithLogger(logger))
	}
	var seed []patron.Identity
	if opts.seed != "" {
		loaded, err := memory.LoadSeed(opts.seed)
		if err != nil {
			return nil, err
		}
		seed = loaded
	}
	return memory.New(seed...), nil
}

// renderReport prints a report's status line, outcome counts, and the records
// that need attention.
func renderReport(out io.Writer, report *reports.Report, colorize bool) {
	kind := batchStatusKind(report.Status)
	if report.Status == reports.StatusCompleted && needsReview(report) {
		kind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Batch "+report.BatchID, kind, report.Summary(), colorize))
	if report.DryRun {
		fmt.Fprintln(out, renderStatusLine("Mode", statusInfo, "dry run", colorize))
	}

	rows := make([][]string, 0, len(reports.OutcomeOrder)+1)
	for _, label := range reports.OutcomeOrder {
		rows = append(rows, []string{label, strconv.Itoa(report.Counts[label])})
	}
	rows = append(rows, []string{"invalid", strconv.Itoa(len(report.ValidationErrors))})
	fmt.Fprint(out, renderTable([]string{"Outcome", "Records"}, rows, []columnAlignment{alignLeft, alignRight}))

	var attention [][]string
	for _, label := range []string{reports.OutcomeAmbiguous, reports.OutcomeDataTooLong, reports.OutcomeError} {
		for _, e := range report.Outcomes[label] {
			detail := e.Error
			if len(e.Candidates) > 0 {
				detail = "candidates " + strings.Join(e.Candidates, ", ")
			}
			attention = append(attention, []string{strconv.Itoa(e.Line), e.PrimaryKey, e.Name, label, detail})
		}
	}
	for _, f := range report.ValidationErrors {
		attention = append(attention, []string{strconv.Itoa(f.Line), "", "", "invalid", strings.Join(f.Errors, "; ")})
	}
	if len(attention) > 0 {
		fmt.Fprint(out, renderTable([]string{"Line", "Key", "Name", "Outcome", "Detail"}, attention,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft}))
	}
}

func needsReview(report *reports.Report) bool {
	return report.Counts[reports.OutcomeAmbiguous]+report.Counts[reports.OutcomeDataTooLong]+report.Counts[reports.OutcomeError] > 0
}

