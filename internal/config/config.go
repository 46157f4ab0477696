package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	IncomingDir string `toml:"incoming_dir"`
	LogDir      string `toml:"log_dir"`
	ReportsDir  string `toml:"reports_dir"`
}

// Upstream configures the system-of-record (ILSWS) connection.
type Upstream struct {
	BaseURL           string `toml:"base_url"`
	ClientID          string `toml:"client_id"`
	AppID             string `toml:"app_id"`
	SessionToken      string `toml:"session_token"`
	PrivilegeOverride string `toml:"privilege_override"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	SearchLimit       int    `toml:"search_limit"`
}

// Queue configures one orchestrator worker pool.
type Queue struct {
	Name                string `toml:"name"`
	Kind                string `toml:"kind"`
	Concurrency         int    `toml:"concurrency"`
	MaxAttempts         int    `toml:"max_attempts"`
	RetryBackoffSeconds int    `toml:"retry_backoff_seconds"`
}

// Ingest contains file watching and queue configuration.
type Ingest struct {
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	ProcessExisting     bool    `toml:"process_existing"`
	Queues              []Queue `toml:"queues"`
}

// AddressRule is one case-insensitive find/replace applied to street lines.
// Find is a regular expression.
type AddressRule struct {
	Find    string `toml:"find"`
	Replace string `toml:"replace"`
}

// Defaults are global fallbacks applied by the identity mapper.
type Defaults struct {
	SuppressedAddress string        `toml:"suppressed_address"`
	City              string        `toml:"city"`
	State             string        `toml:"state"`
	Zipcode           string        `toml:"zipcode"`
	OverlayPins       bool          `toml:"overlay_pins"`
	AddressReplace    []AddressRule `toml:"address_replace"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	BatchCompleted bool   `toml:"batch_completed"`
	BatchFailed    bool   `toml:"batch_failed"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics configures the Prometheus endpoint. An empty bind disables it.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for rostersync.
//
// Configuration sections by subsystem:
//   - Paths: watched incoming root, logs/ledger, archived reports
//   - Upstream: system-of-record connection
//   - Ingest: poll interval and orchestrator queues
//   - Defaults: global mapping fallbacks and address rules
//   - Notifications: ntfy batch summaries
//   - Logging: log format and level
//   - Metrics: Prometheus bind address
//   - Clients: one block per enrolling institution
type Config struct {
	Paths         Paths         `toml:"paths"`
	Upstream      Upstream      `toml:"upstream"`
	Ingest        Ingest        `toml:"ingest"`
	Defaults      Defaults      `toml:"defaults"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
	Clients       []Client      `toml:"clients"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rostersync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rostersync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation,
// including each client's incoming drop directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.IncomingDir, c.Paths.LogDir, c.Paths.ReportsDir}
	for _, client := range c.Clients {
		dirs = append(dirs, client.IncomingDir(c.Paths.IncomingDir))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite job ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.LogDir, "ledger.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "rostersync.lock")
}

// ClientByNID returns the client configured as namespace:id.
func (c *Config) ClientByNID(nid string) (Client, bool) {
	nid = strings.TrimSpace(nid)
	for _, client := range c.Clients {
		if client.NID() == nid {
			return client, true
		}
	}
	return Client{}, false
}

// QueueByName returns the queue configuration with the given name.
func (c *Config) QueueByName(name string) (Queue, bool) {
	for _, q := range c.Ingest.Queues {
		if q.Name == name {
			return q, true
		}
	}
	return Queue{}, false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
