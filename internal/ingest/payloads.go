package ingest

import (
	"rostersync/internal/config"
	"rostersync/internal/patron"
	"rostersync/internal/reports"
	"rostersync/internal/roster"
)

// LoadJob asks the load queue to read one file.
type LoadJob struct {
	BatchID string
	Client  config.Client
	Path    string
}

func (j LoadJob) CorrelationID() string { return j.BatchID }

// IngestJob asks the ingest queue to reconcile one record.
type IngestJob struct {
	BatchID string
	Client  config.Client
	Record  roster.Record
}

func (j IngestJob) CorrelationID() string { return j.BatchID }

// Outcome is the result of one IngestJob. Kind is one of the reports.Outcome*
// labels.
type Outcome struct {
	Kind       string
	PrimaryKey string
	Record     roster.Record
	Identity   *patron.Identity
	Candidates []patron.Identity
	Written    bool
	Err        string
}

func (o Outcome) entry() reports.Entry {
	e := reports.Entry{
		Line:       o.Record.Line,
		PrimaryKey: o.PrimaryKey,
		Name:       o.Record.DisplayName(),
		Written:    o.Written,
		Error:      o.Err,
	}
	if o.Identity != nil {
		e.IdentityKey = o.Identity.Key
	}
	for _, c := range o.Candidates {
		e.Candidates = append(e.Candidates, c.Key)
	}
	switch o.Kind {
	case reports.OutcomeAmbiguous, reports.OutcomeDataTooLong, reports.OutcomeError:
		e.Record = o.Record.Raw
	}
	return e
}
