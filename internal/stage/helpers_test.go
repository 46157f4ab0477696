package stage

import (
	"errors"
	"testing"

	"rostersync/internal/services"
)

type loadPayload struct{ Path string }

func TestPayloadAsMatchingType(t *testing.T) {
	job := &Job{Queue: "csvloader", Payload: loadPayload{Path: "a.csv"}}
	got, err := PayloadAs[loadPayload](job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Path != "a.csv" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestPayloadAsMismatch(t *testing.T) {
	job := &Job{Queue: "csvloader", Payload: 42}
	_, err := PayloadAs[loadPayload](job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.IsRetryable(err) {
		t.Fatal("payload mismatch must not be retried")
	}
}

func TestPayloadAsNilJob(t *testing.T) {
	if _, err := PayloadAs[loadPayload](nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}
