package workflow

import (
	"context"
	"sort"

	"rostersync/internal/stage"
)

// Status returns a snapshot of every registered pool, ordered by name.
func (m *Manager) Status() []QueueStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QueueStatus, 0, len(m.pools))
	for name, p := range m.pools {
		out = append(out, QueueStatus{
			Name:        name,
			Concurrency: p.cfg.Concurrency,
			MaxAttempts: p.cfg.MaxAttempts,
			InFlight:    p.inFlight.Load(),
			Succeeded:   p.succeeded.Load(),
			Failed:      p.failed.Load(),
			Retried:     p.retried.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// HealthCheck asks every pool's handler for its readiness.
func (m *Manager) HealthCheck(ctx context.Context) []stage.Health {
	m.mu.RLock()
	names := append([]string(nil), m.order...)
	handlers := make([]stage.Handler, 0, len(names))
	for _, name := range names {
		handlers = append(handlers, m.pools[name].cfg.Handler)
	}
	m.mu.RUnlock()

	out := make([]stage.Health, 0, len(handlers))
	for i, handler := range handlers {
		health := handler.HealthCheck(ctx)
		health.Queue = names[i]
		if health.Name == "" {
			health.Name = names[i]
		}
		out = append(out, health)
	}
	return out
}
