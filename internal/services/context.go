package services

import "context"

type contextKey string

const (
	batchIDKey contextKey = "batch_id"
	jobIDKey   contextKey = "job_id"
	queueKey   contextKey = "queue"
	clientKey  contextKey = "client"
)

// WithBatchID annotates context with the batch correlation identifier.
func WithBatchID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext extracts the batch correlation identifier if present.
func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, batchIDKey)
}

// WithJobID annotates context with the orchestrator job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext returns the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, jobIDKey)
}

// WithQueue annotates context with the queue name a job runs on.
func WithQueue(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, queueKey, name)
}

// QueueFromContext returns the queue name if present.
func QueueFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, queueKey)
}

// WithClient annotates context with the client NID (namespace:id).
func WithClient(ctx context.Context, nid string) context.Context {
	if nid == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey, nid)
}

// ClientFromContext returns the client NID if present.
func ClientFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, clientKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
