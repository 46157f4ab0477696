package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"rostersync/internal/config"
	"rostersync/internal/fileutil"
	"rostersync/internal/logging"
	"rostersync/internal/queue"
	"rostersync/internal/reports"
	"rostersync/internal/roster"
	"rostersync/internal/services"
	"rostersync/internal/watch"
	"rostersync/internal/workflow"
)

// Submitter runs jobs on named queues. workflow.Manager implements it.
type Submitter interface {
	Submit(ctx context.Context, queueName string, payload any, opts ...workflow.SubmitOption) (any, error)
}

// BatchLedger persists batch state. queue.Store implements it.
type BatchLedger interface {
	CreateBatch(ctx context.Context, batch *queue.Batch) error
	UpdateBatch(ctx context.Context, batch *queue.Batch) error
}

// Options configures a Coordinator.
type Options struct {
	Orchestrator Submitter
	Ledger       BatchLedger
	Sink         reports.Sink
	Logger       *slog.Logger
	Clock        func() time.Time
	DryRun       bool
}

// Coordinator runs files through the pipeline.
type Coordinator struct {
	orchestrator Submitter
	ledger       BatchLedger
	sink         reports.Sink
	logger       *slog.Logger
	now          func() time.Time
	dryRun       bool

	inFlight sync.WaitGroup
}

// NewCoordinator builds a coordinator. Orchestrator is required.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Orchestrator == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ingest", "init", "orchestrator is required", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Sink == nil {
		opts.Sink = reports.NewLogSink(opts.Logger)
	}
	return &Coordinator{
		orchestrator: opts.Orchestrator,
		ledger:       opts.Ledger,
		sink:         opts.Sink,
		logger:       logging.NewComponentLogger(opts.Logger, "coordinator"),
		now:          opts.Clock,
		dryRun:       opts.DryRun,
	}, nil
}

// Run processes file events until ctx is cancelled or events is closed, then
// waits for files already in progress.
func (c *Coordinator) Run(ctx context.Context, events <-chan watch.FileEvent) error {
	defer c.inFlight.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.inFlight.Add(1)
			go func() {
				defer c.inFlight.Done()
				c.Process(context.WithoutCancel(ctx), ev.Client, ev.Path)
			}()
		}
	}
}

// batchRun carries the state of one file through the pipeline.
type batchRun struct {
	client config.Client
	path   string
	batch  *queue.Batch
	report *reports.Report
	logger *slog.Logger
}

// Process runs one file through the pipeline and returns its report. It never
// returns nil; fatal errors are carried in the report.
func (c *Coordinator) Process(ctx context.Context, client config.Client, path string) *reports.Report {
	batchID := uuid.NewString()
	ctx = services.WithBatchID(ctx, batchID)
	ctx = services.WithClient(ctx, client.NID())
	started := c.now()

	run := &batchRun{
		client: client,
		path:   path,
		batch: &queue.Batch{
			ID:        batchID,
			ClientNID: client.NID(),
			FilePath:  path,
			Status:    queue.BatchArrived,
			StartedAt: started.UTC(),
		},
		report: &reports.Report{
			BatchID:   batchID,
			Client:    reports.ClientInfo{NID: client.NID(), Name: client.Name, Contact: client.Contact},
			File:      path,
			Status:    reports.StatusCompleted,
			DryRun:    c.dryRun,
			StartedAt: started,
			Counts:    make(map[string]int),
		},
		logger: logging.WithContext(ctx, c.logger),
	}
	run.logger.Info("batch arrived",
		logging.String(logging.FieldEventType, "batch_arrived"),
		logging.String("file", path),
	)
	if c.ledger != nil {
		if err := c.ledger.CreateBatch(ctx, run.batch); err != nil {
			run.logger.Warn("batch ledger write failed", logging.Error(err))
		}
	}

	if err := c.pipeline(ctx, run); err != nil {
		run.report.Status = reports.StatusFailed
		run.report.Error = err.Error()
		run.batch.Status = queue.BatchFailed
		run.batch.ErrorMessage = err.Error()
		run.logger.Error("batch failed",
			logging.String(logging.FieldEventType, "batch_failed"),
			logging.String(logging.FieldErrorHint, "check the file format and upstream availability, then re-upload"),
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
	}
	c.finish(ctx, run)
	return run.report
}

func (c *Coordinator) pipeline(ctx context.Context, run *batchRun) error {
	size, checksum, err := hashFile(run.path)
	if err != nil {
		return err
	}
	run.report.FileSize, run.report.Checksum = size, checksum
	run.batch.FileSize, run.batch.Checksum = size, checksum
	c.advance(ctx, run, queue.BatchHashed)

	value, err := c.orchestrator.Submit(ctx, run.client.LoadQueue, LoadJob{
		BatchID: run.batch.ID,
		Client:  run.client,
		Path:    run.path,
	})
	if err != nil {
		return err
	}
	loaded, ok := value.(*roster.LoadResult)
	if !ok || loaded == nil {
		return services.Wrap(services.ErrLoad, "ingest", "load", fmt.Sprintf("unexpected load result %T", value), nil)
	}
	run.report.Records = loaded.Rows
	run.report.ValidationErrors = loaded.Invalid
	run.batch.RecordCount = loaded.Rows
	run.batch.InvalidCount = len(loaded.Invalid)
	c.advance(ctx, run, queue.BatchLoaded)

	c.advance(ctx, run, queue.BatchIngesting)
	outcomes := c.fanOut(ctx, run, loaded.Valid)

	for _, o := range outcomes {
		run.report.Add(o.Kind, o.entry())
	}
	c.advance(ctx, run, queue.BatchAggregated)
	return nil
}

// fanOut submits one ingest job per record and waits for all of them. An
// orchestrator failure becomes that record's error outcome.
func (c *Coordinator) fanOut(ctx context.Context, run *batchRun, records []roster.Record) []Outcome {
	outcomes := make([]Outcome, len(records))
	var wg sync.WaitGroup
	for i, rec := range records {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := run.client.PrimaryKey(rec.SourceID())
			onRetry := workflow.OnRetry(func(n workflow.RetryNotice) {
				run.logger.Info("record retry scheduled",
					logging.String(logging.FieldEventType, "record_retrying"),
					logging.String("primary_key", key),
					logging.Int("next_attempt", n.NextAttempt),
					logging.Error(n.Err),
				)
			})
			value, err := c.orchestrator.Submit(ctx, run.client.IngestQueue, IngestJob{
				BatchID: run.batch.ID,
				Client:  run.client,
				Record:  rec,
			}, onRetry)
			if err != nil {
				outcomes[i] = Outcome{Kind: reports.OutcomeError, PrimaryKey: key, Record: rec, Err: err.Error()}
				return
			}
			out, ok := value.(Outcome)
			if !ok {
				outcomes[i] = Outcome{Kind: reports.OutcomeError, PrimaryKey: key, Record: rec, Err: fmt.Sprintf("unexpected ingest result %T", value)}
				return
			}
			outcomes[i] = out
		}()
	}
	wg.Wait()
	return outcomes
}

// finish reports the batch and applies the retention policy. Both run on the
// success and the failure path.
func (c *Coordinator) finish(ctx context.Context, run *batchRun) {
	run.report.Finish(c.now())
	if err := c.sink.Deliver(ctx, run.report); err != nil {
		run.logger.Warn("report delivery failed",
			logging.String(logging.FieldErrorHint, "check reports_dir permissions and notification settings"),
			logging.Error(err),
		)
	}

	if data, err := json.Marshal(run.report); err == nil {
		run.batch.ReportJSON = string(data)
	}
	finished := c.now().UTC()
	run.batch.FinishedAt = &finished
	if run.batch.Status != queue.BatchFailed {
		run.batch.Status = queue.BatchReported
	}
	c.persist(ctx, run)

	if run.client.PreserveUploads || c.dryRun {
		return
	}
	if err := os.Remove(run.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		run.logger.Warn("failed to remove processed upload",
			logging.String("file", run.path),
			logging.String(logging.FieldErrorHint, "remove the file manually to avoid reprocessing"),
			logging.Error(err),
		)
	}
}

func (c *Coordinator) advance(ctx context.Context, run *batchRun, status queue.BatchStatus) {
	run.batch.Status = status
	run.logger.Debug("batch state",
		logging.String(logging.FieldEventType, "batch_"+string(status)),
		logging.Int("records", run.batch.RecordCount),
	)
	c.persist(ctx, run)
}

func (c *Coordinator) persist(ctx context.Context, run *batchRun) {
	if c.ledger == nil {
		return
	}
	if err := c.ledger.UpdateBatch(ctx, run.batch); err != nil {
		run.logger.Warn("batch ledger write failed", logging.Error(err))
	}
}

func hashFile(path string) (int64, string, error) {
	size, sum, err := fileutil.SHA1File(path)
	if err != nil {
		return 0, "", services.Wrap(services.ErrLoad, "ingest", "hash", "Failed to read upload", err)
	}
	return size, sum, nil
}
