package stage

import (
	"fmt"

	"rostersync/internal/services"
)

// PayloadAs asserts the job payload to T. A mismatch is a permanent
// validation failure so the orchestrator does not retry it.
func PayloadAs[T any](job *Job) (T, error) {
	var zero T
	if job == nil {
		return zero, services.Wrap(services.ErrValidation, "stage", "decode payload", "job is nil", nil)
	}
	value, ok := job.Payload.(T)
	if !ok {
		return zero, services.Wrap(services.ErrValidation, "stage", "decode payload",
			fmt.Sprintf("queue %s expects %T, got %T", job.Queue, zero, job.Payload), nil)
	}
	return value, nil
}
