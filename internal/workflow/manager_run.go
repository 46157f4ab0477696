package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rostersync/internal/logging"
	"rostersync/internal/queue"
	"rostersync/internal/services"
	"rostersync/internal/stage"
)

// ErrNotRunning is returned by Submit when the manager is stopped.
var ErrNotRunning = errors.New("orchestrator not running")

// Register adds a pool. It must be called before Start.
func (m *Manager) Register(cfg PoolConfig) error {
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return services.Wrap(services.ErrConfiguration, "workflow", "register", "queue name is required", nil)
	}
	if cfg.Handler == nil {
		return services.Wrap(services.ErrConfiguration, "workflow", "register", fmt.Sprintf("queue %s has no handler", cfg.Name), nil)
	}
	if cfg.Concurrency <= 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "register", fmt.Sprintf("queue %s concurrency must be positive", cfg.Name), nil)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("register queue %s: orchestrator already running", cfg.Name)
	}
	if _, exists := m.pools[cfg.Name]; exists {
		return services.Wrap(services.ErrConfiguration, "workflow", "register", fmt.Sprintf("queue %s already registered", cfg.Name), nil)
	}
	m.pools[cfg.Name] = newPool(cfg)
	m.order = append(m.order, cfg.Name)
	return nil
}

// Start launches one dispatcher per registered pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("orchestrator already running")
	}
	if len(m.pools) == 0 {
		return errors.New("orchestrator has no queues registered")
	}

	m.stopping = make(chan struct{})
	m.running = true
	for _, name := range m.order {
		p := m.pools[name]
		p.group = new(errgroup.Group)
		p.group.SetLimit(p.cfg.Concurrency)
		m.dispatchers.Add(1)
		go m.dispatch(p, m.stopping)
		m.logger.Info("queue started",
			logging.String(logging.FieldEventType, "queue_started"),
			logging.String(logging.FieldQueue, name),
			logging.Int("concurrency", p.cfg.Concurrency),
			logging.Int("max_attempts", p.cfg.MaxAttempts),
		)
	}
	return nil
}

// Stop refuses new submissions and waits for in-flight jobs to finish.
// Running handlers are not cancelled.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopping)
	pools := make([]*pool, 0, len(m.order))
	for _, name := range m.order {
		pools = append(pools, m.pools[name])
	}
	m.mu.Unlock()

	m.dispatchers.Wait()
	for _, p := range pools {
		_ = p.group.Wait()
	}
	m.logger.Info("orchestrator stopped", logging.String(logging.FieldEventType, "orchestrator_stopped"))
}

// dispatch feeds accepted requests into the pool's errgroup. Go blocks while the
// pool is at its concurrency limit, which in turn blocks new senders.
func (m *Manager) dispatch(p *pool, stopping <-chan struct{}) {
	defer m.dispatchers.Done()
	for {
		select {
		case <-stopping:
			return
		case req := <-p.requests:
			p.group.Go(func() error {
				m.runJob(p, req)
				return nil
			})
		}
	}
}

// Submit runs payload on the named queue and waits for its terminal result.
// Cancelling ctx abandons the wait but never interrupts an accepted job.
func (m *Manager) Submit(ctx context.Context, queueName string, payload any, opts ...SubmitOption) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.RLock()
	p, ok := m.pools[queueName]
	running := m.running
	stopping := m.stopping
	m.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "submit", fmt.Sprintf("unknown queue %q", queueName), nil)
	}
	if !running {
		return nil, ErrNotRunning
	}

	job := &stage.Job{
		ID:      uuid.NewString(),
		Queue:   queueName,
		Payload: payload,
	}
	if correlated, ok := payload.(stage.Correlated); ok {
		job.BatchID = correlated.CorrelationID()
	}
	req := &request{
		job:     job,
		created: time.Now(),
		done:    make(chan result, 1),
	}
	for _, opt := range opts {
		opt(req)
	}
	jobCtx := services.WithJobID(context.WithoutCancel(ctx), job.ID)
	jobCtx = services.WithQueue(jobCtx, queueName)
	jobCtx = services.WithBatchID(jobCtx, job.BatchID)
	req.ctx = jobCtx

	m.transition(req, queue.JobCreated, nil)

	select {
	case p.requests <- req:
	case <-stopping:
		m.transition(req, queue.JobFailed, ErrNotRunning)
		return nil, ErrNotRunning
	case <-ctx.Done():
		m.transition(req, queue.JobFailed, ctx.Err())
		return nil, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
