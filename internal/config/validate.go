package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueues(); err != nil {
		return err
	}
	if err := c.validateClients(); err != nil {
		return err
	}
	if err := c.validateDefaults(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateQueues() error {
	seen := make(map[string]struct{}, len(c.Ingest.Queues))
	for _, q := range c.Ingest.Queues {
		if q.Name == "" {
			return errors.New("ingest.queues: name must be set")
		}
		if _, dup := seen[q.Name]; dup {
			return fmt.Errorf("ingest.queues: duplicate queue %q", q.Name)
		}
		seen[q.Name] = struct{}{}
		if q.Kind != QueueKindLoad && q.Kind != QueueKindIngest {
			return fmt.Errorf("ingest.queues[%s].kind must be %q or %q", q.Name, QueueKindLoad, QueueKindIngest)
		}
		if q.Concurrency <= 0 {
			return fmt.Errorf("ingest.queues[%s].concurrency must be positive", q.Name)
		}
	}
	return nil
}

func (c *Config) validateClients() error {
	seen := make(map[string]struct{}, len(c.Clients))
	for _, client := range c.Clients {
		if client.Namespace == "" || client.ID == "" {
			return errors.New("clients: namespace and id must be set")
		}
		nid := client.NID()
		if _, dup := seen[nid]; dup {
			return fmt.Errorf("clients: duplicate client %q", nid)
		}
		seen[nid] = struct{}{}
		if strings.ContainsAny(client.DirName(), `/\`) {
			return fmt.Errorf("clients[%s]: namespace and id must not contain path separators", nid)
		}
		if err := c.expectQueue(nid, "load_queue", client.LoadQueue, QueueKindLoad); err != nil {
			return err
		}
		if err := c.expectQueue(nid, "ingest_queue", client.IngestQueue, QueueKindIngest); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) expectQueue(nid, field, name, kind string) error {
	q, ok := c.QueueByName(name)
	if !ok {
		return fmt.Errorf("clients[%s].%s: unknown queue %q", nid, field, name)
	}
	if q.Kind != kind {
		return fmt.Errorf("clients[%s].%s: queue %q has kind %q, want %q", nid, field, name, q.Kind, kind)
	}
	return nil
}

func (c *Config) validateDefaults() error {
	for i, rule := range c.Defaults.AddressReplace {
		if rule.Find == "" {
			return fmt.Errorf("defaults.address_replace[%d].find must be set", i)
		}
		if _, err := regexp.Compile("(?i)" + rule.Find); err != nil {
			return fmt.Errorf("defaults.address_replace[%d].find: %w", i, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
