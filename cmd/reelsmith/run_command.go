package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/preflight"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

type runOptions struct {
	topic         string
	composeOnly   bool
	date          string
	skipPreflight bool
	jsonOutput    bool
	local         pipeline.LocalInputs
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate, compose and publish a new video",
		Long: "Run every stage: script, narration, footage, normalization, composition,\n" +
			"metadata and publishing. Artifacts are kept in a new run directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRun(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.topic, "topic", "", "Topic hint for the script writer")
	cmd.Flags().BoolVar(&opts.composeOnly, "compose-only", false, "Stop after composing; publish later with `reelsmith publish`")
	addRunFlags(cmd, &opts)
	return cmd
}

func newComposeCommand(ctx *commandContext) *cobra.Command {
	opts := runOptions{composeOnly: true}
	var publishToo bool

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a video from local script, narration and clips",
		Long: "Compose a deliverable from files on disk instead of the remote writers.\n" +
			"Missing inputs fall back to the configured services.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.local.ClipsDir) == "" {
				return fmt.Errorf("--clips is required")
			}
			opts.composeOnly = !publishToo
			return executeRun(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.local.ScriptPath, "script", "", "Script text file")
	cmd.Flags().StringVar(&opts.local.AudioPath, "audio", "", "Narration audio file")
	cmd.Flags().StringVar(&opts.local.ClipsDir, "clips", "", "Directory of source clips")
	cmd.Flags().StringVar(&opts.local.MetadataPath, "metadata", "", "Metadata JSON file ({title, description, tags})")
	cmd.Flags().BoolVar(&publishToo, "publish", false, "Publish the deliverable after composing")
	addRunFlags(cmd, &opts)
	return cmd
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVar(&opts.date, "date", "", "Run date used in the directory name (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Skip directory and media tool checks")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the run report as JSON")
}

func executeRun(cmd *cobra.Command, ctx *commandContext, opts runOptions) error {
	date, err := parseRunDate(opts.date)
	if err != nil {
		return err
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if !opts.skipPreflight {
		if err := requirePreflight(cmd.Context(), cfg); err != nil {
			return err
		}
	}
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	st, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	recoverStore(cmd.Context(), st, logger)

	opts.local.Links = cfg.LLM.AffiliateLinks
	parts := opts.local.Apply(pipeline.NewComponents(cfg, st, logger))

	orch := pipeline.New(cfg, st, parts, logger, pipeline.WithNotifier(notifications.NewService(cfg)))
	report, runErr := orch.Run(cmd.Context(), pipeline.Request{
		Topic:       opts.topic,
		ComposeOnly: opts.composeOnly,
		Date:        date,
	})
	if report.RunID != "" {
		if err := printReport(cmd, report, opts.jsonOutput); err != nil {
			return err
		}
	}
	return describeFailure(runErr)
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an already composed run",
		Long: "Publish final.mp4 and metadata.json of an existing run. An interrupted\n" +
			"upload continues from the last acknowledged byte.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID = strings.TrimSpace(runID)
			if runID == "" {
				return fmt.Errorf("--run is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			recoverStore(cmd.Context(), st, logger)

			orch := pipeline.New(cfg, st, pipeline.NewComponents(cfg, st, logger), logger,
				pipeline.WithNotifier(notifications.NewService(cfg)))
			report, runErr := orch.Resume(cmd.Context(), runID)
			if report.RunID != "" {
				if err := printReport(cmd, report, jsonOutput); err != nil {
					return err
				}
			}
			return describeFailure(runErr)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id to publish")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	return cmd
}

func parseRunDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return date, nil
}

func requirePreflight(ctx context.Context, cfg *config.Config) error {
	failed := preflight.Failed(preflight.RunAll(ctx, cfg, preflight.Options{}))
	if len(failed) == 0 {
		return nil
	}
	problems := make([]string, 0, len(failed))
	for _, r := range failed {
		problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "check environment", strings.Join(problems, "; "), nil)
}

// recoverStore marks runs left running by a crashed process as failed and
// retires expired upload sessions.
func recoverStore(ctx context.Context, st *store.Store, logger *slog.Logger) {
	if n, err := st.ResetInterrupted(ctx); err != nil {
		logger.Warn("failed to reset interrupted runs", logging.Error(err))
	} else if n > 0 {
		logger.Info("interrupted runs marked failed", logging.Int64("count", n))
	}
	if n, err := st.ExpireSessions(ctx, time.Now().UTC()); err != nil {
		logger.Warn("failed to expire upload sessions", logging.Error(err))
	} else if n > 0 {
		logger.Info("expired upload sessions retired", logging.Int64("count", n))
	}
}

func printReport(cmd *cobra.Command, report pipeline.Report, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, report)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	writeLines(out, renderSectionHeader("Run "+report.RunID, colorize))
	writeLines(out, reportLines(report, colorize))
	return nil
}

func reportLines(report pipeline.Report, colorize bool) []string {
	lines := []string{renderStatusLine("Directory", statusInfo, report.Dir, colorize)}
	switch report.Status {
	case store.RunFailed:
		lines = append(lines, renderStatusLine("Status", statusError, "failed at "+report.FailedStage, colorize))
	case store.RunCompleted, store.RunComposed:
		lines = append(lines, renderStatusLine("Status", statusOK, string(report.Status), colorize))
	default:
		lines = append(lines, renderStatusLine("Status", statusInfo, string(report.Status), colorize))
	}
	if report.Deliverable != "" {
		kind := statusOK
		detail := report.Deliverable
		if report.Degraded {
			kind = statusWarn
			detail += " (video shorter than narration)"
		}
		lines = append(lines, renderStatusLine("Deliverable", kind, detail, colorize))
	}
	if report.VideoID != "" {
		lines = append(lines, renderStatusLine("Published", statusOK, "https://youtube.com/shorts/"+report.VideoID, colorize))
	}
	if report.Status == store.RunComposed {
		lines = append(lines, renderStatusLine("Next", statusInfo, "reelsmith publish --run "+report.RunID, colorize))
	}
	return lines
}

// describeFailure prefixes err with its taxonomy kind so the exit message
// names the failure class.
func describeFailure(err error) error {
	if err == nil {
		return nil
	}
	details := services.Details(err)
	if details.Stage != "" {
		return fmt.Errorf("%s in stage %s: %w", details.Kind, details.Stage, err)
	}
	return fmt.Errorf("%s: %w", details.Kind, err)
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
