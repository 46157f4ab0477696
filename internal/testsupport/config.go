package testsupport

import (
	"path/filepath"
	"testing"

	"rostersync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// DefaultClient returns the client every generated config carries.
func DefaultClient() config.Client {
	return config.Client{
		Namespace:   "isd",
		ID:          "123",
		Name:        "Test District",
		Contact:     "registrar@example.org",
		Schema:      "district",
		KeyPrefix:   "123",
		LoadQueue:   config.DefaultLoadQueue,
		IngestQueue: config.DefaultIngestQueue,
		NewDefaults: config.Policy{
			HomeLibrary: "MAIN",
			UserProfile: "STUDENT",
			Categories:  map[int]string{1: "ISD123", 7: "STUDENT"},
		},
		OverlayDefaults: config.Policy{
			HomeLibrary: "MAIN",
			UserProfile: "STUDENT",
			Categories:  map[int]string{7: "STUDENT"},
		},
	}
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.IncomingDir = filepath.Join(base, "clients")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ReportsDir = filepath.Join(base, "reports")
	cfgVal.Upstream.BaseURL = "http://127.0.0.1:0/ilsws"
	cfgVal.Upstream.ClientID = "test-client"
	cfgVal.Upstream.SessionToken = "test-token"
	cfgVal.Ingest.PollIntervalSeconds = 1
	cfgVal.Ingest.Queues = []config.Queue{
		{Name: config.DefaultLoadQueue, Kind: config.QueueKindLoad, Concurrency: 2, MaxAttempts: 1},
		{Name: config.DefaultIngestQueue, Kind: config.QueueKindIngest, Concurrency: 4, MaxAttempts: 2},
	}
	cfgVal.Defaults = config.Defaults{
		SuppressedAddress: "UNKNOWN",
		City:              "Anytown",
		State:             "ST",
		Zipcode:           "00000",
	}
	cfgVal.Clients = []config.Client{DefaultClient()}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithClient replaces the configured clients.
func WithClient(clients ...config.Client) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Clients = clients
	}
}

// WithPreserveUploads toggles upload retention on every configured client.
func WithPreserveUploads(preserve bool) ConfigOption {
	return func(b *configBuilder) {
		for i := range b.cfg.Clients {
			b.cfg.Clients[i].PreserveUploads = preserve
		}
	}
}

// WithIngestConcurrency overrides the ingest queue bound and attempt budget.
func WithIngestConcurrency(concurrency, attempts int) ConfigOption {
	return func(b *configBuilder) {
		for i := range b.cfg.Ingest.Queues {
			if b.cfg.Ingest.Queues[i].Kind == config.QueueKindIngest {
				b.cfg.Ingest.Queues[i].Concurrency = concurrency
				b.cfg.Ingest.Queues[i].MaxAttempts = attempts
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
