package pipeline

import (
	"time"

	"reelsmith/internal/compose"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

// Stage names in execution order.
const (
	StageScript    = "script"
	StageNarration = "narration"
	StageFootage   = "footage"
	StageNormalize = "normalize"
	StageCompose   = "compose"
	StageMetadata  = "metadata"
	StagePublish   = "publish"
)

// Stages lists every stage in execution order.
var Stages = []string{StageScript, StageNarration, StageFootage, StageNormalize, StageCompose, StageMetadata, StagePublish}

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

// StageRecord is one stage entry in run.json.
type StageRecord struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Detail     string      `json:"detail,omitempty"`
}

// Manifest is the run.json report written beside the artifacts.
type Manifest struct {
	ID            string                 `json:"id"`
	Topic         string                 `json:"topic,omitempty"`
	ComposeOnly   bool                   `json:"compose_only"`
	Status        store.RunStatus        `json:"status"`
	Stages        []StageRecord          `json:"stages"`
	Clips         int                    `json:"clips,omitempty"`
	SkippedClips  []string               `json:"skipped_clips,omitempty"`
	AudioDuration float64                `json:"audio_duration,omitempty"`
	Compose       *compose.Result        `json:"compose,omitempty"`
	VideoID       string                 `json:"video_id,omitempty"`
	Failure       *services.ErrorDetails `json:"failure,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func (m *Manifest) record(rec StageRecord) {
	for i := range m.Stages {
		if m.Stages[i].Name == rec.Name {
			m.Stages[i] = rec
			return
		}
	}
	m.Stages = append(m.Stages, rec)
}

// Stage returns the record for name, if any.
func (m *Manifest) Stage(name string) (StageRecord, bool) {
	for _, rec := range m.Stages {
		if rec.Name == name {
			return rec, true
		}
	}
	return StageRecord{}, false
}

func (m *Manifest) save(path string) error {
	m.UpdatedAt = time.Now().UTC()
	return fileutil.WriteJSON(path, m)
}

// LoadManifest reads run.json from a run directory.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if err := fileutil.ReadJSON(path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UploadRecord is upload_result.json.
type UploadRecord struct {
	VideoID     string    `json:"video_id"`
	URL         string    `json:"url"`
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	Privacy     string    `json:"privacy"`
	Bytes       int64     `json:"bytes"`
	Resumed     bool      `json:"resumed"`
	ResumedFrom int64     `json:"resumed_from,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
