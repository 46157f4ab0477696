package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeUpstream()
	c.normalizeIngest()
	c.normalizeDefaults()
	if err := c.normalizeClients(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = 10
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.IncomingDir, err = expandPath(c.Paths.IncomingDir); err != nil {
		return fmt.Errorf("paths.incoming_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReportsDir, err = expandPath(c.Paths.ReportsDir); err != nil {
		return fmt.Errorf("paths.reports_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeUpstream() {
	if c.Upstream.SessionToken == "" {
		if value, ok := os.LookupEnv("ROSTERSYNC_SESSION_TOKEN"); ok {
			c.Upstream.SessionToken = value
		}
	}
	if c.Upstream.ClientID == "" {
		if value, ok := os.LookupEnv("ROSTERSYNC_CLIENT_ID"); ok {
			c.Upstream.ClientID = value
		}
	}
	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	c.Upstream.AppID = strings.TrimSpace(c.Upstream.AppID)
	if c.Upstream.AppID == "" {
		c.Upstream.AppID = defaultAppID
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = defaultUpstreamTimeout
	}
	if c.Upstream.SearchLimit <= 0 {
		c.Upstream.SearchLimit = defaultSearchLimit
	}
}

func (c *Config) normalizeIngest() {
	if c.Ingest.PollIntervalSeconds <= 0 {
		c.Ingest.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if len(c.Ingest.Queues) == 0 {
		c.Ingest.Queues = defaultQueues()
	}
	for i := range c.Ingest.Queues {
		q := &c.Ingest.Queues[i]
		q.Name = strings.TrimSpace(q.Name)
		q.Kind = strings.ToLower(strings.TrimSpace(q.Kind))
		if q.MaxAttempts <= 0 {
			q.MaxAttempts = 1
		}
		if q.RetryBackoffSeconds < 0 {
			q.RetryBackoffSeconds = 0
		}
	}
}

func (c *Config) normalizeDefaults() {
	c.Defaults.SuppressedAddress = strings.TrimSpace(c.Defaults.SuppressedAddress)
	c.Defaults.City = strings.TrimSpace(c.Defaults.City)
	c.Defaults.State = strings.TrimSpace(c.Defaults.State)
	c.Defaults.Zipcode = strings.TrimSpace(c.Defaults.Zipcode)
}

func (c *Config) normalizeClients() error {
	for i := range c.Clients {
		client := &c.Clients[i]
		client.Namespace = strings.TrimSpace(client.Namespace)
		client.ID = strings.TrimSpace(client.ID)
		client.Schema = strings.TrimSpace(client.Schema)
		if client.Schema == "" {
			client.Schema = defaultSchema
		}
		if client.KeyPrefix == "" {
			client.KeyPrefix = client.ID
		}
		if client.LoadQueue == "" {
			client.LoadQueue = DefaultLoadQueue
		}
		if client.IngestQueue == "" {
			client.IngestQueue = DefaultIngestQueue
		}
		var err error
		if client.NewDefaults.Categories, err = parseCategories(client.NewDefaults.UserCategories); err != nil {
			return fmt.Errorf("clients[%s].new_defaults.user_categories: %w", client.NID(), err)
		}
		if client.OverlayDefaults.Categories, err = parseCategories(client.OverlayDefaults.UserCategories); err != nil {
			return fmt.Errorf("clients[%s].overlay_defaults.user_categories: %w", client.NID(), err)
		}
	}
	return nil
}

func parseCategories(raw map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(raw))
	for key, value := range raw {
		n, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("category %q is not a number", key)
		}
		if n < 1 || n > 12 {
			return nil, fmt.Errorf("category %d out of range 1-12", n)
		}
		out[n] = strings.TrimSpace(value)
	}
	return out, nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
