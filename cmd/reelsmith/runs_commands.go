package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelsmith/internal/pipeline"
	"reelsmith/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := make([]store.RunStatus, 0, len(statuses))
			for _, s := range statuses {
				filter = append(filter, store.RunStatus(s))
			}
			runs, err := st.ListRuns(cmd.Context(), limit, filter...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Status", "Stage", "Deliverable", "Video", "Updated"},
				buildRunRows(runs, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by run status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	cmd.AddCommand(newRunShowCommand(ctx))
	return cmd
}

func newRunShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a run's report (run.json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %s not found", args[0])
			}
			manifest, err := pipeline.LoadManifest(pipeline.Layout{Dir: run.Dir}.Manifest())
			if err != nil {
				return fmt.Errorf("read run report: %w", err)
			}
			return writeJSON(cmd, manifest)
		},
	}
}

func buildRunRows(runs []*store.Run, now time.Time) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		stage := run.Stage
		if run.Status == store.RunFailed && run.ErrorKind != "" {
			stage = fmt.Sprintf("%s (%s)", run.Stage, run.ErrorKind)
		}
		rows = append(rows, []string{
			run.ID,
			string(run.Status),
			stage,
			deliverableSize(run.DeliverablePath),
			run.VideoID,
			humanize.RelTime(run.UpdatedAt, now, "ago", "from now"),
		})
	}
	return rows
}

func deliverableSize(path string) string {
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "missing"
	}
	if err != nil {
		return "?"
	}
	return humanize.IBytes(uint64(info.Size()))
}

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var (
		runID      string
		states     []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List resumable upload sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := make([]store.SessionState, 0, len(states))
			for _, s := range states {
				filter = append(filter, store.SessionState(s))
			}
			sessions, err := st.ListSessions(cmd.Context(), runID, filter...)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, sessions)
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No upload sessions")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Session", "Run", "State", "Uploaded", "Expires", "Video"},
				buildSessionRows(sessions, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Only sessions of this run")
	cmd.Flags().StringSliceVarP(&states, "state", "s", nil, "Filter by session state (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print sessions as JSON")
	return cmd
}

func buildSessionRows(sessions []*store.UploadSession, now time.Time) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		expires := humanize.RelTime(s.ExpiresAt, now, "ago", "from now")
		if !s.State.Resumable() {
			expires = "-"
		}
		rows = append(rows, []string{
			shortID(s.ID),
			s.RunID,
			string(s.State),
			uploadProgress(s.AckedOffset, s.FileSize),
			expires,
			s.VideoID,
		})
	}
	return rows
}

func uploadProgress(done, total int64) string {
	if total <= 0 {
		return humanize.IBytes(uint64(max(done, 0)))
	}
	pct := float64(done) / float64(total) * 100
	return fmt.Sprintf("%s / %s (%.0f%%)", humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)), pct)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
