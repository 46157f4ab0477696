// Package config loads, normalizes, and validates rostersync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ROSTERSYNC_SESSION_TOKEN. The Config type centralizes every knob the daemon
// and CLI need: watched directories, system-of-record credentials, queue
// bounds, mapping defaults, and one block per enrolling client.
package config
