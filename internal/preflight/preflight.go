package preflight

import (
	"context"

	"rostersync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes every check for cfg. The upstream check is skipped when
// upstream is nil.
func RunAll(ctx context.Context, cfg *config.Config, upstream Pinger) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Incoming directory", cfg.Paths.IncomingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Reports directory", cfg.Paths.ReportsDir),
	}
	for _, client := range cfg.Clients {
		results = append(results, CheckDirectoryAccess("Drop box "+client.NID(), client.IncomingDir(cfg.Paths.IncomingDir)))
	}
	if upstream != nil {
		results = append(results, CheckUpstream(ctx, upstream))
	}
	return results
}
