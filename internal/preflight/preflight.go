package preflight

import (
	"context"
	"fmt"

	"reelsmith/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects which checks RunAll performs.
type Options struct {
	// Network enables the credential round trips to remote services.
	Network bool
	// Publish includes the upload credential check.
	Publish bool
}

// RunAll executes the applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Runs directory", cfg.Paths.RunsDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Detail
		if status.Available && detail == "" {
			detail = fmt.Sprintf("%s available", status.Command)
		}
		results = append(results, Result{Name: status.Name, Passed: status.Available, Detail: detail})
	}

	if !opts.Network {
		return results
	}
	results = append(results, CheckLLM(ctx, cfg.LLM), CheckFootage(ctx, cfg.Footage))
	if opts.Publish {
		results = append(results, CheckPublishAuth(ctx, cfg.Publish))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
