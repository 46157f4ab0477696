package stage

import "fmt"

// Health reports whether a queue's handler can take jobs. Queue is filled in
// by the orchestrator; Detail names what the handler is wired to or what it
// is missing.
type Health struct {
	Name   string
	Queue  string
	Ready  bool
	Detail string
}

// Healthy builds a ready record.
func Healthy(name, detail string) Health {
	return Health{Name: name, Ready: true, Detail: detail}
}

// Unhealthy builds a record for a handler missing a dependency.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// String renders "queue/name: ready (detail)" for logs and the CLI.
func (h Health) String() string {
	label := h.Name
	if h.Queue != "" && h.Queue != h.Name {
		label = h.Queue + "/" + h.Name
	}
	state := "ready"
	if !h.Ready {
		state = "not ready"
	}
	if h.Detail == "" {
		return label + ": " + state
	}
	return fmt.Sprintf("%s: %s (%s)", label, state, h.Detail)
}
