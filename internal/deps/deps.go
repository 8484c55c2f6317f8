package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Requirement names an external binary the pipeline executes.
type Requirement struct {
	Name    string
	Command string
	Purpose string
	// VersionArgs, when set, are run to capture the tool's version banner.
	VersionArgs []string
}

// Status reports whether a requirement resolved on PATH.
type Status struct {
	Name      string
	Command   string
	Path      string
	Available bool
	Detail    string
}

// MediaRequirements lists the ffmpeg tools used by probing, normalization and
// composition.
func MediaRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	version := []string{"-hide_banner", "-version"}
	return []Requirement{
		{Name: "FFmpeg", Command: ffmpegBinary, Purpose: "clip normalization and composition", VersionArgs: version},
		{Name: "FFprobe", Command: ffprobeBinary, Purpose: "media inspection", VersionArgs: version},
	}
}

// Check resolves every requirement. Available tools with VersionArgs report
// the first line of their version output in Detail.
func Check(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(ctx, req))
	}
	return results
}

// CheckMediaTools is Check over MediaRequirements.
func CheckMediaTools(ctx context.Context, ffmpegBinary, ffprobeBinary string) []Status {
	return Check(ctx, MediaRequirements(ffmpegBinary, ffprobeBinary))
}

func check(ctx context.Context, req Requirement) Status {
	status := Status{Name: req.Name, Command: strings.TrimSpace(req.Command)}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found (needed for %s)", status.Command, req.Purpose)
		return status
	}
	status.Path = path
	status.Available = true
	if len(req.VersionArgs) > 0 {
		status.Detail = versionLine(ctx, path, req.VersionArgs)
	}
	return status
}

func versionLine(ctx context.Context, path string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line)
}
