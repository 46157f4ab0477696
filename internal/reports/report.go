package reports

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"rostersync/internal/roster"
)

// Status of a finished batch.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Outcome labels, in report order.
const (
	OutcomeNew         = "new"
	OutcomePrimary     = "primary"
	OutcomeAlternate   = "alternate"
	OutcomeFuzzy       = "fuzzy"
	OutcomeAmbiguous   = "ambiguous"
	OutcomeDataTooLong = "dataTooLong"
	OutcomeError       = "error"
)

// OutcomeOrder lists every outcome label.
var OutcomeOrder = []string{
	OutcomeNew, OutcomePrimary, OutcomeAlternate, OutcomeFuzzy,
	OutcomeAmbiguous, OutcomeDataTooLong, OutcomeError,
}

// ClientInfo identifies the institution that sent the file.
type ClientInfo struct {
	NID     string `json:"nid"`
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Entry is one record's outcome.
type Entry struct {
	Line        int               `json:"line,omitempty"`
	PrimaryKey  string            `json:"primary_key"`
	Name        string            `json:"name,omitempty"`
	IdentityKey string            `json:"identity_key,omitempty"`
	Written     bool              `json:"written"`
	Candidates  []string          `json:"candidates,omitempty"`
	Error       string            `json:"error,omitempty"`
	Record      map[string]string `json:"record,omitempty"`
}

// Report summarizes one batch.
type Report struct {
	BatchID          string             `json:"batch_id"`
	Client           ClientInfo         `json:"client"`
	File             string             `json:"file"`
	FileSize         int64              `json:"file_size"`
	Checksum         string             `json:"checksum,omitempty"`
	Status           string             `json:"status"`
	Error            string             `json:"error,omitempty"`
	DryRun           bool               `json:"dry_run,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
	ElapsedMS        int64              `json:"elapsed_ms"`
	Records          int                `json:"records"`
	ValidationErrors []roster.Failure   `json:"validation_errors,omitempty"`
	Counts           map[string]int     `json:"counts"`
	Outcomes         map[string][]Entry `json:"outcomes,omitempty"`
}

// Add appends an entry under outcome and bumps its count.
func (r *Report) Add(outcome string, entry Entry) {
	if r.Counts == nil {
		r.Counts = make(map[string]int)
	}
	if r.Outcomes == nil {
		r.Outcomes = make(map[string][]Entry)
	}
	r.Counts[outcome]++
	r.Outcomes[outcome] = append(r.Outcomes[outcome], entry)
}

// Finish stamps the finish time and elapsed duration.
func (r *Report) Finish(at time.Time) {
	r.FinishedAt = at
	r.ElapsedMS = at.Sub(r.StartedAt).Milliseconds()
}

// Failed reports whether the batch ended in a fatal error.
func (r *Report) Failed() bool {
	return r.Status == StatusFailed
}

// Total is the number of records with an outcome.
func (r *Report) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Summary renders a one-line description such as
// "isd:123 roster.csv: 3 records (new 1, primary 2), 1 invalid".
func (r *Report) Summary() string {
	var parts []string
	labels := slices.Clone(OutcomeOrder)
	for label := range r.Counts {
		if !slices.Contains(labels, label) {
			labels = append(labels, label)
		}
	}
	for _, label := range labels {
		if n := r.Counts[label]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", label, n))
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d records", r.Client.NID, baseName(r.File), r.Records)
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if n := len(r.ValidationErrors); n > 0 {
		fmt.Fprintf(&b, ", %d invalid", n)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, ", failed: %s", r.Error)
	}
	return b.String()
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
