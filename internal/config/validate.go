package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var x264Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

var privacyStatuses = []string{"public", "unlisted", "private"}

const uploadGranularityKiB = 256

// Validate ensures the configuration is usable.
//
// Credentials are not required here. The stage that needs them reports their
// absence when it runs.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateOverlays(); err != nil {
		return err
	}
	if err := c.validateFootage(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"llm.timeout_seconds":             c.LLM.TimeoutSeconds,
		"footage.timeout_seconds":         c.Footage.TimeoutSeconds,
		"publish.request_timeout_seconds": c.Publish.RequestTimeoutSeconds,
		"notifications.request_timeout":   c.Notifications.RequestTimeout,
		"media.probe_timeout_seconds":     c.Media.ProbeTimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMedia() error {
	if err := ensurePositiveMap(map[string]int{
		"media.width":             c.Media.Width,
		"media.height":            c.Media.Height,
		"media.frame_rate":        c.Media.FrameRate,
		"media.normalize_workers": c.Media.NormalizeWorkers,
	}); err != nil {
		return err
	}
	if c.Media.Width%2 != 0 || c.Media.Height%2 != 0 {
		return errors.New("media.width and media.height must be even for yuv420p output")
	}
	if c.Media.CRF < 0 || c.Media.CRF > 51 {
		return errors.New("media.crf must be between 0 and 51")
	}
	if !slices.Contains(x264Presets, c.Media.Preset) {
		return fmt.Errorf("media.preset %q is not a valid x264 preset", c.Media.Preset)
	}
	if c.Media.MaxEntries < 1 {
		return errors.New("media.max_entries must be >= 1")
	}
	if c.Media.SafetyMarginSeconds < 0 {
		return errors.New("media.safety_margin_seconds must be >= 0")
	}
	switch c.Media.CapPolicy {
	case CapPolicyWarn, CapPolicyFail:
	default:
		return fmt.Errorf("media.cap_policy must be %q or %q, got %q", CapPolicyWarn, CapPolicyFail, c.Media.CapPolicy)
	}
	return nil
}

func (c *Config) validateOverlays() error {
	for i, o := range c.Overlays {
		if strings.TrimSpace(o.Text) == "" {
			return fmt.Errorf("overlays[%d].text must be set", i)
		}
		if o.Start < 0 || o.End < 0 {
			return fmt.Errorf("overlays[%d] start and end must be >= 0", i)
		}
		if o.End <= o.Start {
			return fmt.Errorf("overlays[%d].end must be greater than start", i)
		}
		switch o.Anchor {
		case AnchorStart, AnchorEnd:
		default:
			return fmt.Errorf("overlays[%d].anchor must be %q or %q", i, AnchorStart, AnchorEnd)
		}
	}
	return nil
}

func (c *Config) validateFootage() error {
	if c.Footage.Count < 1 {
		return errors.New("footage.count must be >= 1")
	}
	if c.Footage.MinHeight < 0 {
		return errors.New("footage.min_height must be >= 0")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if !slices.Contains(privacyStatuses, c.Publish.Privacy) {
		return fmt.Errorf("publish.privacy must be one of %s, got %q", strings.Join(privacyStatuses, ", "), c.Publish.Privacy)
	}
	if c.Publish.ChunkSizeKiB < 0 {
		return errors.New("publish.chunk_size_kib must be >= 0")
	}
	if c.Publish.ChunkSizeKiB%uploadGranularityKiB != 0 {
		return fmt.Errorf("publish.chunk_size_kib must be a multiple of %d", uploadGranularityKiB)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
