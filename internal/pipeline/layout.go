package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Artifact file names inside a run directory.
const (
	ScriptFile       = "script.txt"
	NarrationFile    = "voice.mp3"
	ClipsDir         = "clips"
	WorkDir          = "work"
	NormalizedDir    = "normalized"
	DeliverableFile  = "final.mp4"
	MetadataFile     = "metadata.json"
	UploadResultFile = "upload_result.json"
	ManifestFile     = "run.json"
	lockFile         = ".lock"
)

const dateLayout = "2006-01-02"

// NewRunID returns "<date>-<8 hex chars>". A zero date uses today in UTC.
func NewRunID(date time.Time) string {
	if date.IsZero() {
		date = time.Now().UTC()
	}
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return date.Format(dateLayout) + "-" + short
}

// Layout locates the artifacts of one run.
type Layout struct {
	Dir string
}

// NewLayout returns the layout of run id under runsDir.
func NewLayout(runsDir, id string) Layout {
	return Layout{Dir: filepath.Join(runsDir, id)}
}

func (l Layout) Script() string       { return filepath.Join(l.Dir, ScriptFile) }
func (l Layout) Narration() string    { return filepath.Join(l.Dir, NarrationFile) }
func (l Layout) Clips() string        { return filepath.Join(l.Dir, ClipsDir) }
func (l Layout) Work() string         { return filepath.Join(l.Dir, WorkDir) }
func (l Layout) Normalized() string   { return filepath.Join(l.Dir, WorkDir, NormalizedDir) }
func (l Layout) Deliverable() string  { return filepath.Join(l.Dir, DeliverableFile) }
func (l Layout) Metadata() string     { return filepath.Join(l.Dir, MetadataFile) }
func (l Layout) UploadResult() string { return filepath.Join(l.Dir, UploadResultFile) }
func (l Layout) Manifest() string     { return filepath.Join(l.Dir, ManifestFile) }

// Create makes the run directory tree.
func (l Layout) Create() error {
	for _, dir := range []string{l.Dir, l.Clips(), l.Normalized()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create run directory %s: %w", dir, err)
		}
	}
	return nil
}

// Lock takes the run's exclusive lock. It fails immediately when another
// process holds it.
func (l Layout) Lock() (*flock.Flock, error) {
	lock := flock.New(filepath.Join(l.Dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("run %s: %w", filepath.Base(l.Dir), ErrRunLocked)
	}
	return lock, nil
}
