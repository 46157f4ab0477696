package stage

import "context"

// Job is the unit of work the orchestrator hands to a handler.
type Job struct {
	ID      string
	Queue   string
	BatchID string
	// Attempt is 1 on the first run and increments on every retry.
	Attempt int
	Payload any
}

// Handler describes the contract the orchestrator needs from each queue's worker.
// A returned error fails the attempt; the orchestrator decides whether to retry.
type Handler interface {
	Handle(ctx context.Context, job *Job) (any, error)
	HealthCheck(ctx context.Context) Health
}

// HandlerFunc adapts a function to Handler. It always reports ready and takes
// its name from the queue it is registered on.
type HandlerFunc func(ctx context.Context, job *Job) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, job *Job) (any, error) {
	return f(ctx, job)
}

func (f HandlerFunc) HealthCheck(context.Context) Health {
	return Healthy("", "")
}

// Correlated payloads carry the batch correlation identifier stamped on every
// job transition log line.
type Correlated interface {
	CorrelationID() string
}
