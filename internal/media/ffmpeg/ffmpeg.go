package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external command. Components accept a Runner so tests
// can substitute a fake that records arguments and writes outputs.
type Runner func(ctx context.Context, name string, args ...string) error

// Error reports a failed ffmpeg invocation with the tail of its stderr.
type Error struct {
	Binary string
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Binary, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Binary, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

const stderrTailLines = 12

// Exec runs name with args, capturing stderr for diagnostics.
func Exec(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%w)", ctxErr, err)
		}
		return &Error{Binary: name, Err: err, Stderr: Tail(stderr.String(), stderrTailLines)}
	}
	return nil
}

// GlobalArgs are prepended to every invocation: quiet, non-interactive,
// overwrite allowed (outputs are always private temp paths).
func GlobalArgs() []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
}

// Tail returns the last n non-empty lines of s.
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append(kept, line)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}

// FormatSeconds renders seconds for ffmpeg options and filter expressions.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

var (
	optionEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`, `'`, `\'`)
	graphEscaper  = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `[`, `\[`, `]`, `\]`, `,`, `\,`, `;`, `\;`)
)

// EscapeFilterValue escapes a literal filter option value (a file path, a
// color) for use inside a -vf filtergraph. Both the option and the graph
// escaping levels are applied.
func EscapeFilterValue(v string) string {
	return graphEscaper.Replace(optionEscaper.Replace(v))
}
