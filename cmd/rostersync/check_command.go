package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rostersync/internal/config"
	"rostersync/internal/patron/ilsws"
	"rostersync/internal/preflight"
	"rostersync/internal/queue"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipUpstream bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories and system-of-record connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var upstream preflight.Pinger
			if !skipUpstream {
				client, err := ilsws.New(cfg.Upstream)
				if err != nil {
					return err
				}
				upstream = client
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			results := preflight.RunAll(cmd.Context(), cfg, upstream)
			results = append(results, checkLedger(cmd.Context(), cfg))
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipUpstream, "skip-upstream", false, "Skip the system-of-record reachability check")
	return cmd
}

// checkLedger opens the job ledger and verifies its schema and integrity.
func checkLedger(ctx context.Context, cfg *config.Config) preflight.Result {
	result := preflight.Result{Name: "Job ledger"}
	store, err := queue.Open(cfg)
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	if !health.IntegrityCheck {
		result.Detail = "integrity check failed for " + health.DBPath
		return result
	}
	result.Passed = true
	result.Detail = fmt.Sprintf("schema v%d, %d batches, %d jobs", health.SchemaVersion, health.TotalBatches, health.TotalJobs)
	return result
}
