// Package watch polls each client's incoming directory and reports files once
// their writers have finished.
//
// A file is considered complete when its size and modification time are
// unchanged across two consecutive polls. Dot-files and *.filepart uploads
// are ignored.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rostersync/internal/config"
	"rostersync/internal/logging"
)

// FileEvent announces a fully written upload.
type FileEvent struct {
	Client  config.Client
	Path    string
	Size    int64
	ModTime time.Time
}

type fileState struct {
	size    int64
	modTime time.Time
	// settled is set once the file has been emitted or ignored at startup.
	settled bool
}

// Poller scans client drop directories.
type Poller struct {
	root            string
	clients         []config.Client
	interval        time.Duration
	processExisting bool
	logger          *slog.Logger

	events chan FileEvent
	files  map[string]*fileState
}

// NewPoller builds a poller for every configured client.
func NewPoller(cfg *config.Config, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Ingest.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		root:            cfg.Paths.IncomingDir,
		clients:         cfg.Clients,
		interval:        interval,
		processExisting: cfg.Ingest.ProcessExisting,
		logger:          logging.NewComponentLogger(logger, "watcher"),
		events:          make(chan FileEvent, 64),
		files:           make(map[string]*fileState),
	}
}

// Events returns the channel completed uploads are sent on. It is closed when
// Run returns.
func (p *Poller) Events() <-chan FileEvent {
	return p.events
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.events)

	if !p.processExisting {
		p.prime()
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.Scan(ctx); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// prime marks every file already present as settled so it is not processed.
func (p *Poller) prime() {
	skipped := 0
	for _, client := range p.clients {
		for _, entry := range p.list(client) {
			p.files[entry.path] = &fileState{size: entry.size, modTime: entry.modTime, settled: true}
			skipped++
		}
	}
	if skipped > 0 {
		p.logger.Info("ignoring files present at startup",
			logging.Int("files", skipped),
			logging.String(logging.FieldErrorHint, "set ingest.process_existing to process them"),
		)
	}
}

// Scan runs one poll. It returns ctx.Err() if cancelled while delivering.
func (p *Poller) Scan(ctx context.Context) error {
	present := make(map[string]struct{}, len(p.files))
	for _, client := range p.clients {
		for _, entry := range p.list(client) {
			present[entry.path] = struct{}{}
			state, ok := p.files[entry.path]
			if !ok {
				p.files[entry.path] = &fileState{size: entry.size, modTime: entry.modTime}
				continue
			}
			if state.size != entry.size || !state.modTime.Equal(entry.modTime) {
				state.size, state.modTime, state.settled = entry.size, entry.modTime, false
				continue
			}
			if state.settled {
				continue
			}
			ev := FileEvent{Client: client, Path: entry.path, Size: entry.size, ModTime: entry.modTime}
			select {
			case p.events <- ev:
				state.settled = true
				p.logger.Info("upload ready",
					logging.String(logging.FieldEventType, "file_ready"),
					logging.String(logging.FieldClient, client.NID()),
					logging.String("file", entry.path),
					logging.Int64("size", entry.size),
				)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	for path := range p.files {
		if _, ok := present[path]; !ok {
			delete(p.files, path)
		}
	}
	return nil
}

type dirEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func (p *Poller) list(client config.Client) []dirEntry {
	dir := client.IncomingDir(p.root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn("cannot read incoming directory",
				logging.String("dir", dir),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.Error(err),
			)
		}
		return nil
	}
	out := make([]dirEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".filepart") || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, dirEntry{path: filepath.Join(dir, name), size: info.Size(), modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out
}
