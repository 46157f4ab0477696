package ingest

import (
	"fmt"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/services"
	"rostersync/internal/stage"
	"rostersync/internal/workflow"
)

// Registrar is the part of workflow.Manager that accepts pools.
type Registrar interface {
	Register(cfg workflow.PoolConfig) error
}

// RegisterQueues registers every configured queue with the handler for its kind.
func RegisterQueues(mgr Registrar, queues []config.Queue, load *LoadHandler, ingest *IngestHandler) error {
	for _, q := range queues {
		var handler stage.Handler
		switch q.Kind {
		case config.QueueKindLoad:
			handler = load
		case config.QueueKindIngest:
			handler = ingest
		default:
			return services.Wrap(services.ErrConfiguration, "ingest", "register", fmt.Sprintf("queue %q has unknown kind %q", q.Name, q.Kind), nil)
		}
		err := mgr.Register(workflow.PoolConfig{
			Name:         q.Name,
			Concurrency:  q.Concurrency,
			MaxAttempts:  q.MaxAttempts,
			RetryBackoff: time.Duration(q.RetryBackoffSeconds) * time.Second,
			Handler:      handler,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
