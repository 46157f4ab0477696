package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rostersync/internal/config"
	"rostersync/internal/queue"
	"rostersync/internal/reports"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	batchesCmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect processed roster files",
	}
	batchesCmd.AddCommand(newBatchesListCommand(ctx))
	batchesCmd.AddCommand(newBatchesShowCommand(ctx))
	batchesCmd.AddCommand(newBatchesPruneCommand(ctx))
	return batchesCmd
}

func newBatchesListCommand(ctx *commandContext) *cobra.Command {
	var client string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				batches, err := store.ListBatches(cmd.Context(), client, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches recorded")
					return nil
				}
				rows := make([][]string, 0, len(batches))
				for _, b := range batches {
					rows = append(rows, []string{
						b.ID,
						b.ClientNID,
						string(b.Status),
						strconv.Itoa(b.RecordCount),
						strconv.Itoa(b.InvalidCount),
						b.StartedAt.Local().Format(time.DateTime),
						b.ErrorMessage,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Batch", "Client", "Status", "Records", "Invalid", "Started", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&client, "client", "", "Only batches for this namespace:id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum batches to list (0 for all)")
	return cmd
}

func newBatchesShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a batch and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				batch, err := store.GetBatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if batch == nil {
					return fmt.Errorf("batch %s not found", args[0])
				}
				out := cmd.OutOrStdout()
				if jsonOut {
					if batch.ReportJSON == "" {
						return fmt.Errorf("batch %s has no report yet", batch.ID)
					}
					fmt.Fprintln(out, batch.ReportJSON)
					return nil
				}

				finished := "-"
				if batch.FinishedAt != nil {
					finished = batch.FinishedAt.Local().Format(time.DateTime)
				}
				fmt.Fprint(out, renderKeyValues([][2]string{
					{"Batch", batch.ID},
					{"Client", batch.ClientNID},
					{"File", batch.FilePath},
					{"Size", strconv.FormatInt(batch.FileSize, 10)},
					{"Checksum", batch.Checksum},
					{"Status", string(batch.Status)},
					{"Started", batch.StartedAt.Local().Format(time.DateTime)},
					{"Finished", finished},
				}))
				if batch.ReportJSON == "" {
					return nil
				}
				var report reports.Report
				if err := json.Unmarshal([]byte(batch.ReportJSON), &report); err != nil {
					return fmt.Errorf("decode stored report: %w", err)
				}
				renderReport(out, &report, shouldColorize(out))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the stored report JSON")
	return cmd
}

func newBatchesPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished batches and their jobs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				removed, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d batch(es)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age of finished batches to remove")
	return cmd
}
