// Package resolve finds the upstream identity that corresponds to a roster
// record.
//
// Lookups run in a fixed order and stop at the first hit: barcode (the
// primary key), alternate id, then a fuzzy NAME search narrowed to exact
// name and birth date matches. More than one fuzzy match is ambiguous and is
// never merged automatically.
package resolve

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rostersync/internal/logging"
	"rostersync/internal/patron"
	"rostersync/internal/roster"
)

// FoundIn names the lookup tier that produced a match.
type FoundIn string

const (
	FoundNone      FoundIn = ""
	FoundPrimary   FoundIn = "primary"
	FoundAlternate FoundIn = "alternate"
	FoundFuzzy     FoundIn = "fuzzy"
)

// Resolution is the outcome of Resolve. FoundIn is FoundNone both when nothing
// matched and when the match was ambiguous.
type Resolution struct {
	FoundIn   FoundIn
	Identity  *patron.Identity
	Ambiguous []patron.Identity
}

// IsAmbiguous reports whether manual resolution is required.
func (r Resolution) IsAmbiguous() bool { return len(r.Ambiguous) > 1 }

// DefaultSearchLimit bounds fuzzy NAME searches.
const DefaultSearchLimit = 10

// Resolver runs the lookup tiers against a patron.Client.
type Resolver struct {
	client      patron.Client
	searchLimit int
	logger      *slog.Logger
}

// New constructs a resolver.
func New(client patron.Client, searchLimit int, logger *slog.Logger) *Resolver {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{client: client, searchLimit: searchLimit, logger: logger}
}

// SearchLimit is the candidate cap applied to fuzzy NAME searches.
func (r *Resolver) SearchLimit() int { return r.searchLimit }

// Resolve looks up the identity for rec. Upstream errors are returned as is.
func (r *Resolver) Resolve(ctx context.Context, primaryKey string, rec roster.Record) (Resolution, error) {
	logger := logging.WithContext(ctx, r.logger)

	id, err := r.client.FindByBarcode(ctx, primaryKey)
	if err != nil {
		return Resolution{}, err
	}
	if id != nil {
		return Resolution{FoundIn: FoundPrimary, Identity: id}, nil
	}

	id, err = r.client.FindByAlternateID(ctx, primaryKey)
	if err != nil {
		return Resolution{}, err
	}
	if id != nil {
		return Resolution{FoundIn: FoundAlternate, Identity: id}, nil
	}

	first, last := rec.Value(roster.FieldFirstName), rec.Value(roster.FieldLastName)
	candidates, err := r.client.Search(ctx, patron.IndexName, NameQuery(last, first), r.searchLimit)
	if err != nil {
		return Resolution{}, err
	}
	dob, hasDOB := rec.DOB()
	var matches []patron.Identity
	for _, c := range candidates {
		if !SameName(first, c.FirstName) || !SameName(last, c.LastName) {
			continue
		}
		if !hasDOB || !sameDay(dob, c.BirthDate) {
			continue
		}
		matches = append(matches, c)
	}

	switch len(matches) {
	case 0:
		return Resolution{}, nil
	case 1:
		return Resolution{FoundIn: FoundFuzzy, Identity: &matches[0]}, nil
	default:
		logger.Warn("ambiguous identity match",
			logging.String(logging.FieldEventType, "resolution_ambiguous"),
			logging.String(logging.FieldErrorHint, "resolve the candidates manually in the system-of-record"),
			logging.String("primary_key", primaryKey),
			logging.Int("candidates", len(matches)),
		)
		return Resolution{Ambiguous: matches}, nil
	}
}

// NameQuery builds the NAME index query 'LAST'|'FIRST'. Spaces and commas
// become * wildcards.
func NameQuery(last, first string) string {
	return "'" + wildcard(last) + "'|'" + wildcard(first) + "'"
}

var wildcardReplacer = strings.NewReplacer(" ", "*", ",", "*")

func wildcard(s string) string {
	return wildcardReplacer.Replace(strings.TrimSpace(s))
}

func sameDay(dob time.Time, birthDate string) bool {
	birthDate = strings.TrimSpace(birthDate)
	if len(birthDate) > 10 {
		birthDate = birthDate[:10]
	}
	other, ok := roster.ParseDate(birthDate)
	if !ok {
		return false
	}
	y1, m1, d1 := dob.Date()
	y2, m2, d2 := other.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
