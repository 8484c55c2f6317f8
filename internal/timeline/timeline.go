package timeline

import (
	"fmt"
	"math"
	"strings"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/services"
)

const stageName = "compose"

// Entry is one playback item: a normalized clip and its measured duration.
type Entry struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// Bound caps a timeline. MaxEntries is the hard limit on playback entries;
// SafetyMargin is the coverage required beyond the audio duration.
type Bound struct {
	MaxEntries   int
	SafetyMargin float64
}

// NewBound validates and returns a Bound.
func NewBound(maxEntries int, safetyMargin float64) (Bound, error) {
	if maxEntries < 1 {
		return Bound{}, services.Wrap(services.ErrConfiguration, stageName, "timeline bound", fmt.Sprintf("max entries %d must be >= 1", maxEntries), nil)
	}
	if safetyMargin < 0 || math.IsNaN(safetyMargin) {
		return Bound{}, services.Wrap(services.ErrConfiguration, stageName, "timeline bound", "safety margin must be >= 0", nil)
	}
	return Bound{MaxEntries: maxEntries, SafetyMargin: safetyMargin}, nil
}

// Timeline is an ordered playback list built by repeating the full clip
// sequence until it covers the audio plus the safety margin, never exceeding
// the bound's entry cap.
type Timeline struct {
	entries      []Entry
	clipCount    int
	passes       int
	passDuration float64
	audio        float64
	target       float64
	duration     float64
	bound        Bound
	capped       bool
}

// Build constructs the playback list for clips against an audio track of
// audioDuration seconds.
//
// Whole passes are appended while the cumulative duration is below
// audioDuration+SafetyMargin and another pass fits within MaxEntries. When a
// single pass is longer than MaxEntries it is truncated to MaxEntries entries.
// Capped reports whether the bound stopped growth before coverage was met.
func Build(clips []Entry, audioDuration float64, bound Bound) (*Timeline, error) {
	if bound.MaxEntries < 1 {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "build timeline", "bound has no entry capacity", nil)
	}
	if len(clips) == 0 {
		return nil, services.Wrap(services.ErrInput, stageName, "build timeline", "no clips", nil)
	}
	if !(audioDuration > 0) || math.IsInf(audioDuration, 0) {
		return nil, services.Wrap(services.ErrInput, stageName, "build timeline", fmt.Sprintf("audio duration %v is not measurable", audioDuration), nil)
	}

	passDuration := 0.0
	for _, clip := range clips {
		if !(clip.Duration > 0) || math.IsInf(clip.Duration, 0) {
			return nil, services.Wrap(services.ErrInput, stageName, "build timeline", fmt.Sprintf("clip %s has unknown duration", clip.Path), nil)
		}
		passDuration += clip.Duration
	}

	t := &Timeline{
		clipCount:    len(clips),
		passDuration: passDuration,
		audio:        audioDuration,
		target:       audioDuration + bound.SafetyMargin,
		bound:        bound,
	}

	if len(clips) > bound.MaxEntries {
		t.entries = append([]Entry(nil), clips[:bound.MaxEntries]...)
		t.passes = 0
		for _, e := range t.entries {
			t.duration += e.Duration
		}
		t.capped = t.duration < t.target
		return t, nil
	}

	needed := int(math.Ceil(t.target / passDuration))
	fit := bound.MaxEntries / len(clips)
	t.passes = max(1, min(needed, fit))
	t.capped = needed > fit
	t.entries = make([]Entry, 0, t.passes*len(clips))
	for range t.passes {
		t.entries = append(t.entries, clips...)
	}
	t.duration = float64(t.passes) * passDuration
	return t, nil
}

// Entries returns a copy of the playback list.
func (t *Timeline) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of playback entries.
func (t *Timeline) Len() int { return len(t.entries) }

// Passes returns the number of complete passes through the clip sequence.
// It is 0 when a single pass had to be truncated.
func (t *Timeline) Passes() int { return t.passes }

// PassDuration returns the duration of one pass through every clip.
func (t *Timeline) PassDuration() float64 { return t.passDuration }

// Duration returns the cumulative duration of the playback list.
func (t *Timeline) Duration() float64 { return t.duration }

// AudioDuration returns the audio duration the timeline was built against.
func (t *Timeline) AudioDuration() float64 { return t.audio }

// Target returns the required coverage: audio duration plus safety margin.
func (t *Timeline) Target() float64 { return t.target }

// Bound returns the bound the timeline was built with.
func (t *Timeline) Bound() Bound { return t.bound }

// Capped reports whether the entry cap stopped growth before the timeline
// covered Target.
func (t *Timeline) Capped() bool {
	return t.capped
}

// Shortfall returns how many seconds of narration are left uncovered by video.
func (t *Timeline) Shortfall() float64 {
	return max(0, t.audio-t.duration)
}

// ConcatList renders the playback list in ffconcat format.
func (t *Timeline) ConcatList() string {
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, e := range t.entries {
		b.WriteString("file ")
		b.WriteString(quoteConcatPath(e.Path))
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteConcatList atomically writes the ffconcat list to path.
func (t *Timeline) WriteConcatList(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(t.ConcatList())); err != nil {
		return services.Wrap(services.ErrCompose, stageName, "write concat list", path, err)
	}
	return nil
}

// quoteConcatPath single-quotes p, closing and escaping embedded quotes.
func quoteConcatPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
