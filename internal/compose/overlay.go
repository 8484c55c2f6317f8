package compose

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/services"
)

// Window is an overlay resolved against a concrete narration length.
type Window struct {
	Overlay config.Overlay
	Start   float64
	End     float64
}

// ResolveWindows converts overlay timing into absolute windows within
// [0, audioDuration]. End-anchored overlays count back from the narration end.
// Windows that are empty after clamping are returned in dropped.
func ResolveWindows(overlays []config.Overlay, audioDuration float64) (windows []Window, dropped []config.Overlay) {
	for _, o := range overlays {
		start, end := o.Start, o.End
		if o.Anchor == config.AnchorEnd {
			start, end = audioDuration-o.End, audioDuration-o.Start
		}
		start = clamp(start, 0, audioDuration)
		end = clamp(end, 0, audioDuration)
		if end <= start {
			dropped = append(dropped, o)
			continue
		}
		windows = append(windows, Window{Overlay: o, Start: start, End: end})
	}
	return windows, dropped
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}

// overlayTextPath is where the text for overlay i is written inside workDir.
func overlayTextPath(workDir string, i int) string {
	return filepath.Join(workDir, fmt.Sprintf("overlay_%d.txt", i))
}

// writeOverlayTexts writes one text file per window so drawtext reads the
// caption through textfile= instead of an inline, escaped text= value.
func writeOverlayTexts(workDir string, windows []Window) error {
	for i, w := range windows {
		path := overlayTextPath(workDir, i)
		if err := fileutil.WriteFileAtomic(path, []byte(w.Overlay.Text)); err != nil {
			return services.Wrap(services.ErrCompose, stageName, "write overlay text", path, err)
		}
	}
	return nil
}

// drawtextChain renders the burn-in filter chain for windows. An empty chain
// means no overlays.
func drawtextChain(workDir, fontFile string, windows []Window) string {
	filters := make([]string, 0, len(windows))
	for i, w := range windows {
		o := w.Overlay
		opts := []string{"textfile=" + ffmpeg.EscapeFilterValue(overlayTextPath(workDir, i))}
		if fontFile != "" {
			opts = append(opts, "fontfile="+ffmpeg.EscapeFilterValue(fontFile))
		}
		opts = append(opts,
			"fontsize="+strconv.Itoa(o.FontSize),
			"fontcolor="+ffmpeg.EscapeFilterValue(o.FontColor),
			"x="+quoteExpr(o.X),
			"y="+quoteExpr(o.Y),
			"enable="+quoteExpr(fmt.Sprintf("between(t,%s,%s)", ffmpeg.FormatSeconds(w.Start), ffmpeg.FormatSeconds(w.End))),
		)
		filters = append(filters, "drawtext="+strings.Join(opts, ":"))
	}
	return strings.Join(filters, ",")
}

// quoteExpr single-quotes an ffmpeg expression so commas and colons inside it
// survive filtergraph parsing.
func quoteExpr(expr string) string {
	return "'" + strings.ReplaceAll(expr, "'", "") + "'"
}
