// Package memory is an in-process patron.Client used by tests and dry runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"rostersync/internal/patron"
	"rostersync/internal/services"
)

// Client stores identities in memory.
type Client struct {
	mu       sync.Mutex
	byKey    map[string]*patron.Identity
	order    []string
	nextKey  int
	creates  int
	updates  int
	failures int
}

var _ patron.Client = (*Client)(nil)

// New seeds a client. Identities without a key are assigned one.
func New(seed ...patron.Identity) *Client {
	c := &Client{byKey: make(map[string]*patron.Identity), nextKey: 1000}
	for i := range seed {
		c.insert(seed[i].Clone())
	}
	return c
}

// LoadSeed reads a JSON array of identities.
func LoadSeed(path string) ([]patron.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var out []patron.Identity
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "memory", "seed", "Invalid seed file", err)
	}
	return out, nil
}

// FailNext makes the next n calls return services.ErrUpstreamUnavailable.
func (c *Client) FailNext(n int) {
	c.mu.Lock()
	c.failures = n
	c.mu.Unlock()
}

// Writes reports how many creates and updates were applied.
func (c *Client) Writes() (creates, updates int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates, c.updates
}

// Get returns a copy of the identity stored under key.
func (c *Client) Get(key string) (*patron.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.byKey[key]
	return id.Clone(), ok
}

// Identities returns copies of every identity in insertion order.
func (c *Client) Identities() []patron.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]patron.Identity, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, *c.byKey[key].Clone())
	}
	return out
}

func (c *Client) FindByBarcode(_ context.Context, barcode string) (*patron.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.consumeFailure("find by barcode"); err != nil {
		return nil, err
	}
	for _, key := range c.order {
		if id := c.byKey[key]; id.Barcode == barcode {
			return id.Clone(), nil
		}
	}
	return nil, nil
}

func (c *Client) FindByAlternateID(ctx context.Context, altID string) (*patron.Identity, error) {
	found, err := c.Search(ctx, patron.IndexAlternateID, altID, 1)
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

// Search supports the ALT_ID index (exact) and the NAME index. A NAME query
// has the form 'LAST'|'FIRST' where * separates words; every word must
// fuzzily match the corresponding name, ignoring case and diacritics.
func (c *Client) Search(_ context.Context, index, query string, limit int) ([]patron.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.consumeFailure("search"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	var match func(*patron.Identity) bool
	switch index {
	case patron.IndexAlternateID:
		want := strings.Trim(query, "'")
		match = func(id *patron.Identity) bool { return id.AlternateID != "" && id.AlternateID == want }
	case patron.IndexName:
		last, first, _ := strings.Cut(query, "|")
		lastTerms, firstTerms := nameTerms(last), nameTerms(first)
		match = func(id *patron.Identity) bool {
			return matchTerms(lastTerms, id.LastName) && matchTerms(firstTerms, id.FirstName)
		}
	default:
		return nil, nil
	}
	var out []patron.Identity
	for _, key := range c.order {
		if id := c.byKey[key]; match(id) {
			out = append(out, *id.Clone())
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (c *Client) Create(_ context.Context, payload patron.CreatePayload) (*patron.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.consumeFailure("create"); err != nil {
		return nil, err
	}
	id := (&patron.Identity{
		Barcode:     payload.Barcode,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		BirthDate:   payload.BirthDate,
		HomeLibrary: payload.HomeLibrary,
		UserProfile: payload.UserProfile,
		Categories:  payload.Categories,
		Address:     payload.Address,
		PIN:         payload.PIN,
	}).Clone()
	if payload.MiddleName != nil {
		id.MiddleName = *payload.MiddleName
	}
	c.insert(id)
	c.creates++
	return id.Clone(), nil
}

func (c *Client) Update(_ context.Context, key string, payload patron.UpdatePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.consumeFailure("update"); err != nil {
		return err
	}
	existing, ok := c.byKey[key]
	if !ok {
		return services.Wrap(services.ErrValidation, "memory", "update", fmt.Sprintf("no identity with key %q", key), nil)
	}
	next := (&patron.Identity{
		Key:         key,
		Barcode:     payload.Barcode,
		AlternateID: payload.AlternateID,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		BirthDate:   payload.BirthDate,
		HomeLibrary: payload.HomeLibrary,
		UserProfile: payload.UserProfile,
		Categories:  payload.Categories,
		Address:     payload.Address,
		Custom:      payload.Custom,
		PIN:         existing.PIN,
	}).Clone()
	if payload.MiddleName != nil {
		next.MiddleName = *payload.MiddleName
	}
	if payload.PIN != nil {
		next.PIN = *payload.PIN
	}
	c.byKey[key] = next
	c.updates++
	return nil
}

func (c *Client) insert(id *patron.Identity) {
	if id.Key == "" {
		c.nextKey++
		id.Key = strconv.Itoa(c.nextKey)
	}
	if _, exists := c.byKey[id.Key]; !exists {
		c.order = append(c.order, id.Key)
	}
	c.byKey[id.Key] = id
}

func (c *Client) consumeFailure(op string) error {
	if c.failures <= 0 {
		return nil
	}
	c.failures--
	return services.Wrap(services.ErrUpstreamUnavailable, "memory", op, "injected failure", nil)
}

func nameTerms(part string) []string {
	part = strings.Trim(strings.TrimSpace(part), "'")
	var terms []string
	for _, t := range strings.Split(part, "*") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func matchTerms(terms []string, name string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		if !fuzzy.MatchNormalizedFold(t, name) {
			return false
		}
	}
	return true
}
