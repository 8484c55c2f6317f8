package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
	"reelsmith/internal/timeline"
)

const (
	stageName      = "compose"
	concatListName = "concat.txt"
	// Extra slack on top of one frame interval when comparing the muxed
	// duration against the narration.
	durationTolerance = 0.1
)

// Prober measures media files.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Asset, error)
}

// Request describes one composition.
type Request struct {
	// Clips are normalized clip paths in playback order.
	Clips     []string
	AudioPath string
	// OutputPath is the deliverable location. It must not exist yet.
	OutputPath string
	// WorkDir holds concat.txt and overlay text files. Defaults to the
	// directory of OutputPath.
	WorkDir string
}

// Result describes a finished deliverable.
type Result struct {
	Path          string   `json:"path"`
	Duration      float64  `json:"duration"`
	AudioDuration float64  `json:"audio_duration"`
	VideoDuration float64  `json:"video_duration"`
	Entries       int      `json:"entries"`
	Passes        int      `json:"passes"`
	Degraded      bool     `json:"degraded"`
	Shortfall     float64  `json:"shortfall_seconds,omitempty"`
	SkippedClips  []string `json:"skipped_clips,omitempty"`
}

// Composer concatenates normalized clips against a narration track and burns
// in timed text overlays.
type Composer struct {
	media    config.Media
	overlays []config.Overlay
	binary   string
	prober   Prober
	run      ffmpeg.Runner
	logger   *slog.Logger
}

// Option customizes a Composer.
type Option func(*Composer)

// WithRunner overrides the ffmpeg command runner.
func WithRunner(r ffmpeg.Runner) Option {
	return func(c *Composer) {
		if r != nil {
			c.run = r
		}
	}
}

// New constructs a Composer.
func New(media config.Media, overlays []config.Overlay, prober Prober, logger *slog.Logger, opts ...Option) *Composer {
	c := &Composer{
		media:    media,
		overlays: append([]config.Overlay(nil), overlays...),
		binary:   strings.TrimSpace(media.FFmpegBinary),
		prober:   prober,
		run:      ffmpeg.Exec,
		logger:   logging.NewComponentLogger(logger, "composer"),
	}
	if c.binary == "" {
		c.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose produces the deliverable described by req.
func (c *Composer) Compose(ctx context.Context, req Request) (Result, error) {
	logger := logging.WithContext(ctx, c.logger)

	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return Result{}, services.Wrap(services.ErrCompose, stageName, "compose", "output path is required", nil)
	}
	if fileutil.Exists(output) {
		return Result{}, services.Wrap(services.ErrCompose, stageName, "compose", "deliverable already exists: "+output, fileutil.ErrExists)
	}
	if len(req.Clips) == 0 {
		return Result{}, services.Wrap(services.ErrInput, stageName, "compose", "no clips", nil)
	}
	workDir := req.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(output)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrCompose, stageName, "create work dir", workDir, err)
	}

	audio, err := c.prober.Probe(ctx, req.AudioPath)
	if err != nil {
		return Result{}, err
	}
	if !audio.DurationKnown() {
		return Result{}, services.Wrap(services.ErrInput, stageName, "probe audio", "narration has no measurable duration", nil)
	}

	entries, skipped, err := c.measureClips(ctx, req.Clips)
	if err != nil {
		return Result{}, err
	}
	for _, path := range skipped {
		logging.WarnWithContext(logger, "clip has unknown duration; excluded from timeline", "clip_excluded",
			logging.String("clip", path),
			logging.String(logging.FieldErrorHint, "re-normalize the clip or remove it from the run"),
			logging.String(logging.FieldImpact, "clip will not appear in the video"),
		)
	}

	bound, err := timeline.NewBound(c.media.MaxEntries, c.media.SafetyMarginSeconds)
	if err != nil {
		return Result{}, err
	}
	tl, err := timeline.Build(entries, audio.Duration, bound)
	if err != nil {
		return Result{}, err
	}

	degraded := tl.Capped()
	if degraded {
		if c.media.CapPolicy == config.CapPolicyFail {
			return Result{}, services.Wrap(services.ErrCompose, stageName, "build timeline",
				fmt.Sprintf("repetition cap of %d entries reached at %.3fs, need %.3fs", bound.MaxEntries, tl.Duration(), tl.Target()), nil)
		}
		logging.WarnWithContext(logger, "repetition cap reached before covering narration", "repetition_cap",
			logging.Int("entries", tl.Len()),
			logging.Seconds("video_seconds", tl.Duration()),
			logging.Seconds("target_seconds", tl.Target()),
			logging.String(logging.FieldErrorHint, "supply longer clips or raise media.max_entries"),
			logging.String(logging.FieldImpact, "video may end before the narration"),
		)
	}

	concatPath := filepath.Join(workDir, concatListName)
	if err := tl.WriteConcatList(concatPath); err != nil {
		return Result{}, err
	}

	windows, dropped := ResolveWindows(c.overlays, audio.Duration)
	for _, o := range dropped {
		logging.WarnWithContext(logger, "overlay window is empty for this narration; skipped", "overlay_skipped",
			logging.String("text", o.Text),
			logging.String(logging.FieldErrorHint, "adjust overlay start/end for shorter narration"),
		)
	}
	if err := writeOverlayTexts(workDir, windows); err != nil {
		return Result{}, err
	}

	tmpPath := filepath.Join(filepath.Dir(output), "."+strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))+".partial.mp4")
	_ = os.Remove(tmpPath)

	args := c.Args(concatPath, req.AudioPath, drawtextChain(workDir, c.media.FontFile, windows), audio.Duration, tmpPath)
	logger.Info("muxing deliverable",
		logging.Int("entries", tl.Len()),
		logging.Int("passes", tl.Passes()),
		logging.Seconds("audio_seconds", audio.Duration),
		logging.Seconds("video_seconds", tl.Duration()),
		logging.Int("overlays", len(windows)),
	)
	logger.Debug("ffmpeg arguments", logging.String("args", strings.Join(args, " ")))
	if err := c.run(ctx, c.binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, services.WrapTimeout(services.ErrCompose, stageName, "ffmpeg", "mux deliverable", err)
		}
		return Result{}, services.Wrap(services.ErrCompose, stageName, "ffmpeg", "mux deliverable", err)
	}

	produced, err := c.prober.Probe(ctx, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, services.Wrap(services.ErrCompose, stageName, "verify output", tmpPath, err)
	}
	if !produced.DurationKnown() {
		_ = os.Remove(tmpPath)
		return Result{}, services.Wrap(services.ErrCompose, stageName, "verify output", "muxed output has no duration", nil)
	}
	expected := math.Min(audio.Duration, tl.Duration())
	if tolerance := 1/float64(max(1, c.media.FrameRate)) + durationTolerance; math.Abs(produced.Duration-expected) > tolerance {
		logging.WarnWithContext(logger, "deliverable duration differs from expectation", "duration_mismatch",
			logging.Seconds("expected_seconds", expected),
			logging.Seconds("actual_seconds", produced.Duration),
		)
	}

	if err := fileutil.PromoteNoOverwrite(tmpPath, output); err != nil {
		_ = os.Remove(tmpPath)
		return Result{}, services.Wrap(services.ErrCompose, stageName, "finalize deliverable", output, err)
	}

	result := Result{
		Path:          output,
		Duration:      produced.Duration,
		AudioDuration: audio.Duration,
		VideoDuration: tl.Duration(),
		Entries:       tl.Len(),
		Passes:        tl.Passes(),
		Degraded:      degraded,
		Shortfall:     tl.Shortfall(),
		SkippedClips:  skipped,
	}
	logger.Info("deliverable written",
		logging.String("path", output),
		logging.Seconds("duration_seconds", produced.Duration),
		logging.Bool("degraded", degraded),
	)
	return result, nil
}

// measureClips probes every clip. Clips whose duration cannot be measured are
// returned in skipped; zero measurable clips is an input error.
func (c *Composer) measureClips(ctx context.Context, paths []string) ([]timeline.Entry, []string, error) {
	type measured struct {
		entry timeline.Entry
		ok    bool
	}
	results := make([]measured, 0, len(paths))
	for _, path := range paths {
		asset, err := c.prober.Probe(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, err
			}
			results = append(results, measured{entry: timeline.Entry{Path: path}})
			continue
		}
		results = append(results, measured{
			entry: timeline.Entry{Path: path, Duration: asset.Duration},
			ok:    asset.DurationKnown(),
		})
	}

	entries := lo.FilterMap(results, func(m measured, _ int) (timeline.Entry, bool) {
		return m.entry, m.ok
	})
	skipped := lo.FilterMap(results, func(m measured, _ int) (string, bool) {
		return m.entry.Path, !m.ok
	})
	if len(entries) == 0 {
		return nil, skipped, services.Wrap(services.ErrInput, stageName, "probe clips", "no clip has a measurable duration", nil)
	}
	return entries, skipped, nil
}

// Args builds the ffmpeg arguments that mux the concat list against audio,
// burn in overlays, and stop at the shorter stream.
func (c *Composer) Args(concatPath, audioPath, overlayChain string, audioDuration float64, output string) []string {
	m := c.media
	args := ffmpeg.GlobalArgs()
	args = append(args,
		"-f", "concat", "-safe", "0", "-i", concatPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
	)
	if overlayChain != "" {
		args = append(args, "-vf", overlayChain)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", m.Preset,
		"-crf", strconv.Itoa(m.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(m.FrameRate),
		"-c:a", m.AudioCodec,
		"-b:a", m.AudioBitrate,
		"-shortest",
		"-t", ffmpeg.FormatSeconds(audioDuration),
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	)
	return args
}
