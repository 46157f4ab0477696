package patron

import "context"

// Client reads and writes identities in the system-of-record.
//
// Lookups report "not found" as a nil identity or an empty slice, never as an
// error. Transport failures and upstream outages are marked
// services.ErrUpstreamUnavailable so callers can retry them.
type Client interface {
	FindByBarcode(ctx context.Context, barcode string) (*Identity, error)
	FindByAlternateID(ctx context.Context, altID string) (*Identity, error)
	Search(ctx context.Context, index, query string, limit int) ([]Identity, error)
	Create(ctx context.Context, payload CreatePayload) (*Identity, error)
	Update(ctx context.Context, key string, payload UpdatePayload) error
}
