package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rostersync/internal/logging"
	"rostersync/internal/queue"
)

// JobRecorder persists job transitions. queue.Store implements it.
type JobRecorder interface {
	RecordJob(ctx context.Context, job queue.Job) error
}

// Manager coordinates job execution across registered worker pools.
type Manager struct {
	logger   *slog.Logger
	recorder JobRecorder
	metrics  *Metrics
	sleep    func(context.Context, time.Duration)

	mu          sync.RWMutex
	pools       map[string]*pool
	order       []string
	running     bool
	stopping    chan struct{}
	dispatchers sync.WaitGroup
	lastErr     error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithRecorder persists every job transition through recorder.
func WithRecorder(recorder JobRecorder) ManagerOption {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithMetrics replaces the manager's unregistered default metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewManager constructs a job orchestrator with no pools registered.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:  logging.NewComponentLogger(logger, "orchestrator"),
		metrics: NewMetrics(nil),
		sleep:   sleepContext,
		pools:   make(map[string]*pool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

// LastError returns the most recent terminal job failure.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}
