package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"rostersync/internal/stage"
)

// PoolConfig registers one queue with the manager.
type PoolConfig struct {
	Name         string
	Concurrency  int
	MaxAttempts  int
	RetryBackoff time.Duration
	Handler      stage.Handler
}

// RetryNotice is delivered to OnRetry observers before a job is re-run.
type RetryNotice struct {
	JobID       string
	Queue       string
	Attempt     int
	NextAttempt int
	Backoff     time.Duration
	Err         error
}

// SubmitOption customizes one Submit call.
type SubmitOption func(*request)

// OnRetry registers a callback invoked each time the job is scheduled for retry.
// It runs on the worker goroutine and must not block.
func OnRetry(fn func(RetryNotice)) SubmitOption {
	return func(r *request) {
		r.onRetry = fn
	}
}

type result struct {
	value any
	err   error
}

type request struct {
	ctx     context.Context
	job     *stage.Job
	onRetry func(RetryNotice)
	created time.Time
	done    chan result
}

func (r *request) finish(value any, err error) {
	r.done <- result{value: value, err: err}
}

type pool struct {
	cfg      PoolConfig
	requests chan *request
	group    *errgroup.Group

	inFlight  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

func newPool(cfg PoolConfig) *pool {
	return &pool{cfg: cfg, requests: make(chan *request)}
}

// QueueStatus summarizes one pool for status output.
type QueueStatus struct {
	Name        string
	Concurrency int
	MaxAttempts int
	InFlight    int64
	Succeeded   int64
	Failed      int64
	Retried     int64
}
