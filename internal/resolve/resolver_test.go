package resolve_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"rostersync/internal/patron"
	"rostersync/internal/patron/memory"
	"rostersync/internal/resolve"
	"rostersync/internal/roster"
	"rostersync/internal/services"
)

// tracingClient records which lookups ran.
type tracingClient struct {
	*memory.Client
	calls []string
}

func (c *tracingClient) FindByBarcode(ctx context.Context, barcode string) (*patron.Identity, error) {
	c.calls = append(c.calls, "barcode")
	return c.Client.FindByBarcode(ctx, barcode)
}

func (c *tracingClient) FindByAlternateID(ctx context.Context, altID string) (*patron.Identity, error) {
	c.calls = append(c.calls, "alternate")
	return c.Client.FindByAlternateID(ctx, altID)
}

func (c *tracingClient) Search(ctx context.Context, index, query string, limit int) ([]patron.Identity, error) {
	c.calls = append(c.calls, "search:"+index)
	return c.Client.Search(ctx, index, query, limit)
}

func record(first, last, dob string) roster.Record {
	return roster.NewRecord(map[string]string{
		roster.FieldStudentID: "123456",
		roster.FieldFirstName: first,
		roster.FieldLastName:  last,
		roster.FieldDOB:       dob,
	})
}

func TestResolveTiers(t *testing.T) {
	const key = "123123456"
	cases := []struct {
		name      string
		seed      []patron.Identity
		rec       roster.Record
		want      resolve.FoundIn
		wantKey   string
		wantCalls []string
		ambiguous int
	}{
		{
			name: "primary wins over alternate",
			seed: []patron.Identity{
				{Key: "alt", Barcode: "X", AlternateID: key, FirstName: "Ana", LastName: "Lopez"},
				{Key: "bar", Barcode: key, FirstName: "Ana", LastName: "Lopez"},
			},
			rec:       record("Ana", "Lopez", "03/15/2012"),
			want:      resolve.FoundPrimary,
			wantKey:   "bar",
			wantCalls: []string{"barcode"},
		},
		{
			name:      "alternate",
			seed:      []patron.Identity{{Key: "alt", Barcode: "X", AlternateID: key, FirstName: "Ana", LastName: "Lopez"}},
			rec:       record("Ana", "Lopez", "03/15/2012"),
			want:      resolve.FoundAlternate,
			wantKey:   "alt",
			wantCalls: []string{"barcode", "alternate"},
		},
		{
			name:      "fuzzy ignores diacritics and case",
			seed:      []patron.Identity{{Key: "f", Barcode: "X", FirstName: "JOSE", LastName: "DE LA CRUZ", BirthDate: "2012-03-15"}},
			rec:       record("José", "De la Cruz", "03/15/2012"),
			want:      resolve.FoundFuzzy,
			wantKey:   "f",
			wantCalls: []string{"barcode", "alternate", "search:NAME"},
		},
		{
			name:      "fuzzy requires same birth date",
			seed:      []patron.Identity{{Key: "f", Barcode: "X", FirstName: "Ana", LastName: "Lopez", BirthDate: "2012-03-16"}},
			rec:       record("Ana", "Lopez", "03/15/2012"),
			want:      resolve.FoundNone,
			wantCalls: []string{"barcode", "alternate", "search:NAME"},
		},
		{
			name:      "fuzzy requires exact folded name",
			seed:      []patron.Identity{{Key: "f", Barcode: "X", FirstName: "Anabel", LastName: "Lopez", BirthDate: "2012-03-15"}},
			rec:       record("Ana", "Lopez", "03/15/2012"),
			want:      resolve.FoundNone,
			wantCalls: []string{"barcode", "alternate", "search:NAME"},
		},
		{
			name: "two candidates are ambiguous",
			seed: []patron.Identity{
				{Key: "a", Barcode: "X1", FirstName: "Ana", LastName: "Lopez", BirthDate: "2012-03-15"},
				{Key: "b", Barcode: "X2", FirstName: "ana", LastName: "LOPEZ", BirthDate: "2012-03-15T00:00:00Z"},
			},
			rec:       record("Ana", "Lopez", "03/15/2012"),
			want:      resolve.FoundNone,
			wantCalls: []string{"barcode", "alternate", "search:NAME"},
			ambiguous: 2,
		},
		{
			name:      "nothing found",
			rec:       record("Ana", "Lopez", "03/15/2012"),
			want:      resolve.FoundNone,
			wantCalls: []string{"barcode", "alternate", "search:NAME"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &tracingClient{Client: memory.New(tc.seed...)}
			res, err := resolve.New(client, 0, nil).Resolve(context.Background(), key, tc.rec)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.FoundIn != tc.want {
				t.Fatalf("FoundIn = %q, want %q", res.FoundIn, tc.want)
			}
			if tc.wantKey != "" && (res.Identity == nil || res.Identity.Key != tc.wantKey) {
				t.Fatalf("Identity = %+v, want key %s", res.Identity, tc.wantKey)
			}
			if tc.wantKey == "" && res.Identity != nil {
				t.Fatalf("expected no identity, got %+v", res.Identity)
			}
			if len(res.Ambiguous) != tc.ambiguous || res.IsAmbiguous() != (tc.ambiguous > 1) {
				t.Fatalf("Ambiguous = %d, want %d", len(res.Ambiguous), tc.ambiguous)
			}
			if !slices.Equal(client.calls, tc.wantCalls) {
				t.Fatalf("calls = %v, want %v", client.calls, tc.wantCalls)
			}
		})
	}
}

func TestResolvePropagatesUpstreamErrors(t *testing.T) {
	client := memory.New()
	client.FailNext(1)
	_, err := resolve.New(client, 0, nil).Resolve(context.Background(), "1", record("Ana", "Lopez", "03/15/2012"))
	if !errors.Is(err, services.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("upstream errors must stay retryable")
	}
}

func TestNameQueryAndSameName(t *testing.T) {
	if got := resolve.NameQuery("De la Cruz, Jr", "Mary Ann"); got != "'De*la*Cruz**Jr'|'Mary*Ann'" {
		t.Fatalf("NameQuery = %q", got)
	}
	cases := []struct {
		a, b string
		want bool
	}{
		{"O'Brien", "obrien", true},
		{"Zoë", "ZOE", true},
		{"Mary Ann", "Maryann", true},
		{"Ann", "Anne", false},
	}
	for _, tc := range cases {
		if got := resolve.SameName(tc.a, tc.b); got != tc.want {
			t.Errorf("SameName(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
