package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"reelsmith/internal/services"
)

// Asset is the measured description of one media file. It is produced by the
// Prober and read-only thereafter.
type Asset struct {
	Path        string  `json:"path"`
	Duration    float64 `json:"duration"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	Codec       string  `json:"codec,omitempty"`
	PixelFormat string  `json:"pixel_format,omitempty"`
	FrameRate   float64 `json:"frame_rate,omitempty"`
	HasAudio    bool    `json:"has_audio,omitempty"`
}

// DurationKnown reports whether the duration was measured. A zero duration
// means unknown and must not be relied on.
func (a Asset) DurationKnown() bool {
	return a.Duration > 0
}

// AssetFromResult converts ffprobe output into an Asset.
func AssetFromResult(path string, result Result) Asset {
	asset := Asset{
		Path:     path,
		Duration: result.MeasuredDuration(),
		HasAudio: result.AudioStreamCount() > 0,
	}
	if video, ok := result.PrimaryVideo(); ok {
		asset.Width = video.Width
		asset.Height = video.Height
		asset.Codec = video.CodecName
		asset.PixelFormat = video.PixFmt
		asset.FrameRate = video.FrameRate()
	} else if len(result.Streams) > 0 {
		asset.Codec = result.Streams[0].CodecName
	}
	return asset
}

// InspectFunc runs ffprobe; tests substitute canned results.
type InspectFunc func(ctx context.Context, binary, path string) (Result, error)

// Prober measures media files with a bounded per-file deadline.
type Prober struct {
	binary  string
	timeout time.Duration
	inspect InspectFunc
}

// Option customizes a Prober.
type Option func(*Prober)

// WithInspector overrides how ffprobe is invoked.
func WithInspector(fn InspectFunc) Option {
	return func(p *Prober) {
		if fn != nil {
			p.inspect = fn
		}
	}
}

// NewProber constructs a Prober. A non-positive timeout disables the deadline.
func NewProber(binary string, timeout time.Duration, opts ...Option) *Prober {
	p := &Prober{
		binary:  strings.TrimSpace(binary),
		timeout: timeout,
		inspect: Inspect,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe measures path. Unreadable files, ffprobe failures, unparsable output,
// and files without any stream fail with services.ErrProbe.
func (p *Prober) Probe(ctx context.Context, path string) (Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Asset{}, services.Wrap(services.ErrProbe, "probe", "stat", path, err)
	}
	if info.IsDir() {
		return Asset{}, services.Wrap(services.ErrProbe, "probe", "stat", path+" is a directory", nil)
	}

	probeCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.inspect(probeCtx, p.binary, path)
	if err != nil {
		if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
			return Asset{}, services.WrapTimeout(services.ErrProbe, "probe", "ffprobe", fmt.Sprintf("%s exceeded %s", path, p.timeout), err)
		}
		return Asset{}, services.Wrap(services.ErrProbe, "probe", "ffprobe", path, err)
	}
	if len(result.Streams) == 0 {
		return Asset{}, services.Wrap(services.ErrProbe, "probe", "ffprobe", path+" contains no streams", nil)
	}
	return AssetFromResult(path, result), nil
}

// Duration returns the measured duration of path in seconds. It returns 0
// without error when streams exist but none reports a duration.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	asset, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return asset.Duration, nil
}
