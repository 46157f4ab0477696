package workflow

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"rostersync/internal/queue"
	"rostersync/internal/services"
	"rostersync/internal/stage"
)

func (m *Manager) runJob(p *pool, req *request) {
	p.inFlight.Add(1)
	m.metrics.inFlight.WithLabelValues(p.cfg.Name).Inc()
	defer func() {
		p.inFlight.Add(-1)
		m.metrics.inFlight.WithLabelValues(p.cfg.Name).Dec()
	}()

	for attempt := 1; ; attempt++ {
		req.job.Attempt = attempt
		m.transition(req, queue.JobProcessing, nil)

		started := time.Now()
		value, err := invoke(req.ctx, p.cfg.Handler, req.job)
		m.metrics.duration.WithLabelValues(p.cfg.Name).Observe(time.Since(started).Seconds())

		if err == nil {
			p.succeeded.Add(1)
			m.transition(req, queue.JobSucceeded, nil)
			req.finish(value, nil)
			return
		}

		if services.IsRetryable(err) && attempt < p.cfg.MaxAttempts {
			p.retried.Add(1)
			m.transition(req, queue.JobRetrying, err)
			if req.onRetry != nil {
				req.onRetry(RetryNotice{
					JobID:       req.job.ID,
					Queue:       p.cfg.Name,
					Attempt:     attempt,
					NextAttempt: attempt + 1,
					Backoff:     p.cfg.RetryBackoff,
					Err:         err,
				})
			}
			m.sleep(req.ctx, p.cfg.RetryBackoff)
			continue
		}

		if services.IsRetryable(err) {
			err = services.Wrap(services.ErrRetriesExhausted, "workflow", p.cfg.Name,
				fmt.Sprintf("gave up after %d attempt(s)", attempt), err)
		}
		p.failed.Add(1)
		m.setLastError(err)
		m.transition(req, queue.JobFailed, err)
		req.finish(nil, err)
		return
	}
}

// invoke runs the handler, converting a panic into a permanent job failure.
func invoke(ctx context.Context, handler stage.Handler, job *stage.Job) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = services.Wrap(services.ErrHandlerPanic, "workflow", job.Queue,
				fmt.Sprintf("handler panic: %v\n%s", r, debug.Stack()), nil)
		}
	}()
	return handler.Handle(ctx, job)
}
