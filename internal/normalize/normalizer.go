package normalize

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

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffmpeg"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
)

const stageName = "normalize"

// Settings fixes the canonical geometry and encoding of normalized clips.
type Settings struct {
	Width     int
	Height    int
	FrameRate int
	CRF       int
	Preset    string
	PadColor  string
}

// SettingsFromConfig extracts normalization settings from media config.
func SettingsFromConfig(m config.Media) Settings {
	return Settings{
		Width:     m.Width,
		Height:    m.Height,
		FrameRate: m.FrameRate,
		CRF:       m.CRF,
		Preset:    m.Preset,
		PadColor:  m.PadColor,
	}
}

// Clip is a normalized intermediate: exactly the configured canvas, frame
// rate, and H.264/yuv420p encoding, with a measured non-zero duration.
type Clip struct {
	Source string        `json:"source"`
	Asset  ffprobe.Asset `json:"asset"`
}

// Path returns the location of the normalized file.
func (c Clip) Path() string { return c.Asset.Path }

// Duration returns the measured duration in seconds.
func (c Clip) Duration() float64 { return c.Asset.Duration }

// Prober measures media files.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Asset, error)
}

// Normalizer transcodes arbitrary clips onto the canonical canvas.
type Normalizer struct {
	settings   Settings
	binary     string
	prober     Prober
	run        ffmpeg.Runner
	workers    int
	skipFailed bool
	logger     *slog.Logger
}

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithRunner overrides the ffmpeg command runner.
func WithRunner(r ffmpeg.Runner) Option {
	return func(n *Normalizer) {
		if r != nil {
			n.run = r
		}
	}
}

// WithWorkers overrides the number of concurrent encodes in NormalizeAll.
func WithWorkers(workers int) Option {
	return func(n *Normalizer) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

// New constructs a Normalizer from media configuration.
func New(media config.Media, prober Prober, logger *slog.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{
		settings:   SettingsFromConfig(media),
		binary:     strings.TrimSpace(media.FFmpegBinary),
		prober:     prober,
		run:        ffmpeg.Exec,
		workers:    max(1, media.NormalizeWorkers),
		skipFailed: media.SkipFailedClips,
		logger:     logging.NewComponentLogger(logger, "normalizer"),
	}
	if n.binary == "" {
		n.binary = "ffmpeg"
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// FilterChain returns the video filter that fits the source inside the canvas
// without cropping, pads the remainder centered, and forces the frame rate.
func (n *Normalizer) FilterChain() string {
	s := n.settings
	w, h := strconv.Itoa(s.Width), strconv.Itoa(s.Height)
	return strings.Join([]string{
		"scale=" + w + ":" + h + ":force_original_aspect_ratio=decrease:force_divisible_by=2:flags=lanczos",
		"pad=" + w + ":" + h + ":(ow-iw)/2:(oh-ih)/2:color=" + ffmpeg.EscapeFilterValue(s.PadColor),
		"setsar=1",
		"fps=" + strconv.Itoa(s.FrameRate),
	}, ",")
}

// Args builds the ffmpeg arguments that normalize input into output.
func (n *Normalizer) Args(input, output string) []string {
	s := n.settings
	args := ffmpeg.GlobalArgs()
	args = append(args,
		"-i", input,
		"-map", "0:v:0",
		"-vf", n.FilterChain(),
		"-an", "-sn", "-dn",
		"-c:v", "libx264",
		"-preset", s.Preset,
		"-crf", strconv.Itoa(s.CRF),
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(s.FrameRate),
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	)
	return args
}

// Normalize transcodes input to output. The encode is written to a hidden
// partial file next to output, verified, and renamed into place; a failed or
// unverifiable encode never leaves a file at output. An existing output that
// already satisfies the canonical format is reused.
func (n *Normalizer) Normalize(ctx context.Context, input, output string) (Clip, error) {
	logger := logging.WithContext(ctx, n.logger).With(logging.String("source", input))

	if _, err := os.Stat(input); err != nil {
		return Clip{}, services.Wrap(services.ErrNormalize, stageName, "stat source", input, err)
	}
	if asset, ok := n.reusable(ctx, output); ok {
		logger.Debug("reusing normalized clip", logging.String("output", output))
		return Clip{Source: input, Asset: asset}, nil
	}

	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Clip{}, services.Wrap(services.ErrNormalize, stageName, "create output dir", dir, err)
	}
	base := strings.TrimSuffix(filepath.Base(output), filepath.Ext(output))
	tmpPath := filepath.Join(dir, "."+base+".partial.mp4")
	_ = os.Remove(tmpPath)

	logger.Debug("normalizing clip", logging.String("output", output))
	if err := n.run(ctx, n.binary, n.Args(input, tmpPath)...); err != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(err, context.DeadlineExceeded) {
			return Clip{}, services.WrapTimeout(services.ErrNormalize, stageName, "ffmpeg", input, err)
		}
		return Clip{}, services.Wrap(services.ErrNormalize, stageName, "ffmpeg", input, err)
	}

	asset, err := n.prober.Probe(ctx, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return Clip{}, services.Wrap(services.ErrNormalize, stageName, "probe output", input, err)
	}
	if err := n.Verify(asset); err != nil {
		_ = os.Remove(tmpPath)
		return Clip{}, services.Wrap(services.ErrNormalize, stageName, "verify output", input, err)
	}

	if err := os.Rename(tmpPath, output); err != nil {
		_ = os.Remove(tmpPath)
		return Clip{}, services.Wrap(services.ErrNormalize, stageName, "finalize output", output, err)
	}
	asset.Path = output

	logger.Info("clip normalized",
		logging.String("output", output),
		logging.Seconds("duration_seconds", asset.Duration),
	)
	return Clip{Source: input, Asset: asset}, nil
}

func (n *Normalizer) reusable(ctx context.Context, output string) (ffprobe.Asset, bool) {
	if _, err := os.Stat(output); err != nil {
		return ffprobe.Asset{}, false
	}
	asset, err := n.prober.Probe(ctx, output)
	if err != nil {
		return ffprobe.Asset{}, false
	}
	if n.Verify(asset) != nil {
		return ffprobe.Asset{}, false
	}
	return asset, true
}

// Verify checks that asset matches the canonical format.
func (n *Normalizer) Verify(asset ffprobe.Asset) error {
	s := n.settings
	var problems []string
	if asset.Width != s.Width || asset.Height != s.Height {
		problems = append(problems, fmt.Sprintf("geometry %dx%d, want %dx%d", asset.Width, asset.Height, s.Width, s.Height))
	}
	if !strings.EqualFold(asset.Codec, "h264") {
		problems = append(problems, fmt.Sprintf("codec %q, want h264", asset.Codec))
	}
	if asset.PixelFormat != "" && asset.PixelFormat != "yuv420p" {
		problems = append(problems, fmt.Sprintf("pixel format %q, want yuv420p", asset.PixelFormat))
	}
	if math.Abs(asset.FrameRate-float64(s.FrameRate)) > 0.01 {
		problems = append(problems, fmt.Sprintf("frame rate %.3f, want %d", asset.FrameRate, s.FrameRate))
	}
	if !asset.DurationKnown() {
		problems = append(problems, "zero duration")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
