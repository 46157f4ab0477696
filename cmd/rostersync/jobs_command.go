package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rostersync/internal/config"
	"rostersync/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect orchestrator jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var filter queue.JobFilter
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseJobStates(states)
			if err != nil {
				return err
			}
			filter.States = parsed
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.ListJobs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs match")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, j := range jobs {
					rows = append(rows, []string{
						j.ID,
						j.Queue,
						j.BatchID,
						string(j.State),
						strconv.Itoa(j.Attempts),
						j.UpdatedAt.Local().Format(time.DateTime),
						j.ErrorMessage,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Job", "Queue", "Batch", "State", "Attempts", "Updated", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.BatchID, "batch", "", "Only jobs for this batch")
	cmd.Flags().StringVar(&filter.Queue, "queue", "", "Only jobs on this queue")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by state (created, processing, retrying, succeeded, failed)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum jobs to list (0 for all)")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by state and batches by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(allJobStates))
				for _, state := range allJobStates {
					rows = append(rows, []string{string(state), strconv.Itoa(health.Jobs[state])})
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderTable([]string{"Job state", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))

				statuses := make([]string, 0, len(health.Batches))
				for status := range health.Batches {
					statuses = append(statuses, string(status))
				}
				sort.Strings(statuses)
				rows = rows[:0]
				for _, status := range statuses {
					rows = append(rows, []string{status, strconv.Itoa(health.Batches[queue.BatchStatus(status)])})
				}
				if len(rows) > 0 {
					fmt.Fprint(out, renderTable([]string{"Batch status", "Batches"}, rows, []columnAlignment{alignLeft, alignRight}))
				}
				return nil
			})
		},
	}
}

var allJobStates = []queue.JobState{
	queue.JobCreated, queue.JobProcessing, queue.JobRetrying, queue.JobSucceeded, queue.JobFailed,
}

func parseJobStates(values []string) ([]queue.JobState, error) {
	var out []queue.JobState
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		valid := false
		for _, s := range allJobStates {
			if string(s) == v {
				out = append(out, s)
				valid = true
				break
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown job state %q", v)
		}
	}
	return out, nil
}
