package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/preflight"
	"reelsmith/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkNetwork bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show environment, credential and store status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			writeLines(out, renderSectionHeader("Environment", colorize))
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			checks := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: checkNetwork, Publish: checkNetwork})
			writeLines(out, resultLines(checks, statusError, colorize))

			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Credentials", colorize))
			writeLines(out, resultLines(preflight.CredentialStatus(cfg), statusWarn, colorize))

			fmt.Fprintln(out)
			writeLines(out, renderSectionHeader("Store", colorize))
			st, err := ctx.openStore()
			if err != nil {
				fmt.Fprintln(out, renderStatusLine("Database", statusError, err.Error(), colorize))
				return nil
			}
			defer st.Close()
			writeLines(out, storeLines(cmd, st, colorize))
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkNetwork, "check-network", false, "Verify API keys and publishing credentials against the services")
	return cmd
}

func storeLines(cmd *cobra.Command, st *store.Store, colorize bool) []string {
	health, err := st.CheckHealth(cmd.Context())
	if err != nil {
		return []string{renderStatusLine("Database", statusError, err.Error(), colorize)}
	}
	lines := []string{renderStatusLine("Database", statusOK,
		fmt.Sprintf("%s (schema v%d)", health.DBPath, health.SchemaVersion), colorize)}

	stats, err := st.RunStats(cmd.Context())
	if err != nil {
		return append(lines, renderStatusLine("Runs", statusError, err.Error(), colorize))
	}
	lines = append(lines, renderStatusLine("Runs", statusInfo, formatRunStats(stats), colorize))

	resumable, err := st.ListSessions(cmd.Context(), "", store.SessionPending, store.SessionInProgress)
	if err != nil {
		return append(lines, renderStatusLine("Upload sessions", statusError, err.Error(), colorize))
	}
	kind := statusOK
	if len(resumable) > 0 {
		kind = statusWarn
	}
	return append(lines, renderStatusLine("Upload sessions", kind, fmt.Sprintf("%d resumable", len(resumable)), colorize))
}

func formatRunStats(stats map[store.RunStatus]int) string {
	if len(stats) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(stats))
	for status := range stats {
		keys = append(keys, string(status))
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[store.RunStatus(k)]))
	}
	return strings.Join(parts, " ")
}
