package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"rostersync/internal/config"
	"rostersync/internal/ingest"
	"rostersync/internal/logging"
	"rostersync/internal/queue"
	"rostersync/internal/stage"
	"rostersync/internal/watch"
	"rostersync/internal/workflow"
)

const stuckJobReason = "interrupted by daemon restart"

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *queue.Store
	workflow    *workflow.Manager
	poller      *watch.Poller
	coordinator *ingest.Coordinator

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Queues       []workflow.QueueStatus
	Jobs         map[queue.JobState]int
	LedgerPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, poller *watch.Poller, coordinator *ingest.Coordinator) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil || poller == nil || coordinator == nil {
		return nil, errors.New("daemon requires config, store, workflow manager, poller, and coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       store,
		workflow:    wf,
		poller:      poller,
		coordinator: coordinator,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, fails jobs orphaned by a previous run, and
// launches the orchestrator, poller, and coordinator.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another rostersync daemon instance is already running")
	}

	reset, err := d.store.ResetStuckJobs(ctx, stuckJobReason)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	if reset > 0 {
		logging.WarnWithContext(d.logger, "failed jobs left in flight by previous run", "stuck_jobs_reset",
			logging.Int64("jobs", reset),
			logging.String(logging.FieldErrorHint, "re-upload affected files to reprocess them"),
		)
	}

	if err := d.workflow.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.loops.Add(2)
	go func() {
		defer d.loops.Done()
		_ = d.poller.Run(runCtx)
	}()
	go func() {
		defer d.loops.Done()
		_ = d.coordinator.Run(runCtx, d.poller.Events())
	}()

	d.running.Store(true)
	d.logger.Info("rostersync daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("clients", len(d.cfg.Clients)),
	)
	return nil
}

// Stop stops watching for uploads, waits for files in progress, then stops
// the orchestrator and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.loops.Wait()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("rostersync daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Health returns the readiness of every registered queue handler.
func (d *Daemon) Health(ctx context.Context) []stage.Health {
	return d.workflow.HealthCheck(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Queues:       d.workflow.Status(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if stats, err := d.store.JobStats(ctx); err == nil {
		status.Jobs = stats
	} else {
		d.logger.Warn("job stats unavailable", logging.Error(err))
	}
	return status
}
