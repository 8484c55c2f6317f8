package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"reelsmith/internal/compose"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/metadata"
	"reelsmith/internal/normalize"
	"reelsmith/internal/notifications"
	"reelsmith/internal/publish"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
)

// ErrRunLocked reports that another process is working on the run.
var ErrRunLocked = errors.New("run is locked by another process")

// Request starts a new run.
type Request struct {
	Topic       string
	ComposeOnly bool
	// Date names the run directory. Zero means today.
	Date time.Time
}

// Report summarizes a finished or failed run.
type Report struct {
	RunID       string          `json:"run_id"`
	Dir         string          `json:"dir"`
	Status      store.RunStatus `json:"status"`
	Deliverable string          `json:"deliverable,omitempty"`
	VideoID     string          `json:"video_id,omitempty"`
	Degraded    bool            `json:"degraded"`
	FailedStage string          `json:"failed_stage,omitempty"`
}

// Orchestrator sequences the stages of a run.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	parts    Components
	notifier notifications.Service
	logger   *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithNotifier sends milestone notifications through svc.
func WithNotifier(svc notifications.Service) Option {
	return func(o *Orchestrator) {
		if svc != nil {
			o.notifier = svc
		}
	}
}

// New constructs an Orchestrator.
func New(cfg *config.Config, st *store.Store, parts Components, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		store:    st,
		parts:    parts,
		notifier: notifications.NewService(nil),
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// run carries the state of one execution.
type run struct {
	record   *store.Run
	layout   Layout
	manifest *Manifest
	script   string
	clips    []string
	audio    float64
	composed *compose.Result
}

// Run executes every stage for a new run. The returned report is populated
// even when err is non-nil so callers can point at the artifacts.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Report, error) {
	if err := o.validate(req.ComposeOnly); err != nil {
		return Report{}, err
	}
	id := NewRunID(req.Date)
	layout := NewLayout(o.cfg.Paths.RunsDir, id)
	if err := layout.Create(); err != nil {
		return Report{}, err
	}
	lock, err := layout.Lock()
	if err != nil {
		return Report{}, err
	}
	defer func() { _ = lock.Unlock() }()

	now := time.Now().UTC()
	r := &run{
		record: &store.Run{
			ID:          id,
			Dir:         layout.Dir,
			Status:      store.RunRunning,
			ComposeOnly: req.ComposeOnly,
		},
		layout: layout,
		manifest: &Manifest{
			ID:          id,
			Topic:       strings.TrimSpace(req.Topic),
			ComposeOnly: req.ComposeOnly,
			Status:      store.RunRunning,
			CreatedAt:   now,
		},
	}
	if err := o.store.CreateRun(ctx, r.record); err != nil {
		return o.report(r), err
	}
	if err := r.manifest.save(layout.Manifest()); err != nil {
		return o.report(r), err
	}

	ctx = services.WithRunID(ctx, id)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("run started",
		logging.String("dir", layout.Dir),
		logging.Bool("compose_only", req.ComposeOnly),
		logging.String(logging.FieldEventType, "run_start"),
	)

	steps := []struct {
		name string
		fn   func(context.Context, *run) (string, error)
	}{
		{StageScript, o.writeScript},
		{StageNarration, o.narrate},
		{StageFootage, o.fetchFootage},
		{StageNormalize, o.normalizeClips},
		{StageCompose, o.composeDeliverable},
		{StageMetadata, o.writeMetadata},
	}
	for _, step := range steps {
		if err := o.runStage(ctx, r, step.name, step.fn); err != nil {
			return o.report(r), err
		}
	}

	if req.ComposeOnly {
		o.skipStage(ctx, r, StagePublish, "compose-only run")
		return o.finish(ctx, r, store.RunComposed)
	}
	if err := o.runStage(ctx, r, StagePublish, o.publishDeliverable); err != nil {
		return o.report(r), err
	}
	return o.finish(ctx, r, store.RunCompleted)
}

// Resume publishes a run whose deliverable and metadata already exist: a
// compose-only run, or one that failed while publishing. A persisted upload
// session for the run continues from its acknowledged offset.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (Report, error) {
	if err := o.validate(false); err != nil {
		return Report{}, err
	}
	record, err := o.store.GetRun(ctx, runID)
	if err != nil {
		return Report{}, err
	}
	if record == nil {
		return Report{}, services.Wrap(services.ErrInput, StagePublish, "resume", "unknown run "+runID, nil)
	}
	layout := Layout{Dir: record.Dir}
	r := &run{record: record, layout: layout}
	if record.Status == store.RunCompleted {
		return o.report(r), nil
	}
	if record.Status != store.RunComposed && record.Stage != StagePublish {
		return o.report(r), services.Wrap(services.ErrInput, StagePublish, "resume",
			fmt.Sprintf("run is %s at stage %q; only publishing can be resumed", record.Status, record.Stage), nil)
	}
	if !fileutil.Exists(layout.Deliverable()) || !fileutil.Exists(layout.Metadata()) {
		return o.report(r), services.Wrap(services.ErrInput, StagePublish, "resume", "run has no deliverable or metadata to publish", nil)
	}

	lock, err := layout.Lock()
	if err != nil {
		return o.report(r), err
	}
	defer func() { _ = lock.Unlock() }()

	manifest, err := LoadManifest(layout.Manifest())
	if err != nil {
		manifest = &Manifest{ID: record.ID, ComposeOnly: record.ComposeOnly, CreatedAt: record.CreatedAt}
	}
	manifest.Failure = nil
	manifest.Status = store.RunRunning
	r.manifest = manifest
	r.composed = manifest.Compose

	record.Status = store.RunRunning
	record.ErrorKind = ""
	record.ErrorMessage = ""
	if err := o.store.UpdateRun(ctx, record); err != nil {
		return o.report(r), err
	}

	ctx = services.WithRunID(ctx, record.ID)
	logging.WithContext(ctx, o.logger).Info("resuming run",
		logging.String("dir", layout.Dir),
		logging.String(logging.FieldEventType, "run_resume"),
	)
	if err := o.runStage(ctx, r, StagePublish, o.publishDeliverable); err != nil {
		return o.report(r), err
	}
	return o.finish(ctx, r, store.RunCompleted)
}

func (o *Orchestrator) validate(composeOnly bool) error {
	missing := []string{}
	if o.parts.Script == nil {
		missing = append(missing, "script writer")
	}
	if o.parts.Narrator == nil {
		missing = append(missing, "narrator")
	}
	if o.parts.Footage == nil {
		missing = append(missing, "footage source")
	}
	if o.parts.Prober == nil {
		missing = append(missing, "prober")
	}
	if o.parts.Normalizer == nil {
		missing = append(missing, "normalizer")
	}
	if o.parts.Composer == nil {
		missing = append(missing, "composer")
	}
	if !composeOnly && o.parts.Uploader == nil {
		missing = append(missing, "uploader")
	}
	if o.store == nil {
		missing = append(missing, "store")
	}
	if len(missing) > 0 {
		return services.Wrap(services.ErrConfiguration, "pipeline", "validate", "missing components: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

func (o *Orchestrator) writeScript(ctx context.Context, r *run) (string, error) {
	text, err := o.parts.Script.WriteScript(ctx, r.manifest.Topic)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrInput, StageScript, "write script", "script writer returned no text", nil)
	}
	if err := fileutil.WriteFileAtomic(r.layout.Script(), []byte(text+"\n")); err != nil {
		return "", services.Wrap(services.ErrInput, StageScript, "save script", r.layout.Script(), err)
	}
	r.script = text
	return fmt.Sprintf("%d words", len(strings.Fields(text))), nil
}

func (o *Orchestrator) narrate(ctx context.Context, r *run) (string, error) {
	if err := o.parts.Narrator.Narrate(ctx, r.script, r.layout.Narration()); err != nil {
		return "", err
	}
	duration, err := o.parts.Prober.Duration(ctx, r.layout.Narration())
	if err != nil {
		return "", err
	}
	if duration <= 0 {
		return "", services.Wrap(services.ErrInput, StageNarration, "measure narration", "narration has no measurable duration", nil)
	}
	r.audio = duration
	r.manifest.AudioDuration = duration
	return fmt.Sprintf("%.2fs narration", duration), nil
}

func (o *Orchestrator) fetchFootage(ctx context.Context, r *run) (string, error) {
	clips, err := o.parts.Footage.FetchClips(ctx, r.layout.Clips())
	if err != nil {
		return "", err
	}
	clips = lo.Filter(clips, func(path string, _ int) bool { return fileutil.Exists(path) })
	if len(clips) == 0 {
		return "", services.Wrap(services.ErrInput, StageFootage, "fetch clips", "no clips downloaded", nil)
	}
	r.clips = clips
	r.manifest.Clips = len(clips)
	return fmt.Sprintf("%d clips", len(clips)), nil
}

func (o *Orchestrator) normalizeClips(ctx context.Context, r *run) (string, error) {
	batch, err := o.parts.Normalizer.NormalizeAll(ctx, r.clips, r.layout.Normalized())
	if err != nil {
		return "", err
	}
	if len(batch.Clips) == 0 {
		return "", services.Wrap(services.ErrInput, StageNormalize, "normalize clips", "no usable clips", nil)
	}
	r.clips = lo.Map(batch.Clips, func(c normalize.Clip, _ int) string { return c.Path() })
	r.manifest.SkippedClips = lo.Map(batch.Failed, func(f normalize.Failure, _ int) string { return f.Source })
	return fmt.Sprintf("%d normalized, %d skipped", len(batch.Clips), len(batch.Failed)), nil
}

func (o *Orchestrator) composeDeliverable(ctx context.Context, r *run) (string, error) {
	if len(r.clips) == 0 {
		return "", services.Wrap(services.ErrInput, StageCompose, "compose", "no clips to compose", nil)
	}
	result, err := o.parts.Composer.Compose(ctx, compose.Request{
		Clips:      r.clips,
		AudioPath:  r.layout.Narration(),
		OutputPath: r.layout.Deliverable(),
		WorkDir:    r.layout.Work(),
	})
	if err != nil {
		return "", err
	}
	r.composed = &result
	r.manifest.Compose = &result
	r.record.DeliverablePath = result.Path
	if result.Degraded {
		o.notify(ctx, notifications.EventDegraded, notifications.Payload{
			"runID":         r.record.ID,
			"videoDuration": fmt.Sprintf("%.1fs", result.VideoDuration),
			"audioDuration": fmt.Sprintf("%.1fs", result.AudioDuration),
		})
	}
	return fmt.Sprintf("%.2fs, %d entries in %d passes", result.Duration, result.Entries, result.Passes), nil
}

func (o *Orchestrator) writeMetadata(ctx context.Context, r *run) (string, error) {
	if o.parts.Metadata == nil {
		meta := metadata.ParseOrDefault("", r.script)
		if err := fileutil.WriteJSON(r.layout.Metadata(), meta); err != nil {
			return "", services.Wrap(services.ErrInput, StageMetadata, "save metadata", r.layout.Metadata(), err)
		}
		return "derived from script", nil
	}
	meta, err := o.parts.Metadata.WriteMetadata(ctx, r.script)
	if err != nil {
		return "", err
	}
	meta = meta.Normalize()
	if meta.Title == "" {
		meta.Title = metadata.FallbackTitle(r.script)
	}
	if err := fileutil.WriteJSON(r.layout.Metadata(), meta); err != nil {
		return "", services.Wrap(services.ErrInput, StageMetadata, "save metadata", r.layout.Metadata(), err)
	}
	return meta.Title, nil
}

func (o *Orchestrator) publishDeliverable(ctx context.Context, r *run) (string, error) {
	var meta metadata.Metadata
	if err := fileutil.ReadJSON(r.layout.Metadata(), &meta); err != nil {
		return "", services.Wrap(services.ErrInput, StagePublish, "read metadata", r.layout.Metadata(), err)
	}
	pm := publish.NewMetadata(meta, o.cfg.Publish)
	result, err := o.parts.Uploader.Publish(ctx, publish.Request{
		RunID:    r.record.ID,
		FilePath: r.layout.Deliverable(),
		Metadata: pm,
	})
	if err != nil {
		return "", err
	}
	record := UploadRecord{
		VideoID:     result.VideoID,
		URL:         "https://youtube.com/shorts/" + result.VideoID,
		SessionID:   result.SessionID,
		Title:       pm.Title,
		Privacy:     pm.Privacy,
		Bytes:       result.Bytes,
		Resumed:     result.Resumed,
		ResumedFrom: result.ResumedFrom,
		CompletedAt: result.CompletedAt,
	}
	if err := fileutil.WriteJSON(r.layout.UploadResult(), record); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "failed to write upload result", "upload_result_write_failed",
			logging.String("path", r.layout.UploadResult()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video id is only recorded in run.json and the run store"),
		)
	}
	r.record.VideoID = result.VideoID
	r.manifest.VideoID = result.VideoID
	o.notify(ctx, notifications.EventPublished, notifications.Payload{
		"videoID": result.VideoID,
		"title":   pm.Title,
	})
	return result.VideoID, nil
}

func (o *Orchestrator) finish(ctx context.Context, r *run, status store.RunStatus) (Report, error) {
	r.record.Status = status
	r.record.Stage = ""
	r.manifest.Status = status
	if err := o.store.UpdateRun(ctx, r.record); err != nil {
		return o.report(r), err
	}
	if err := r.manifest.save(r.layout.Manifest()); err != nil {
		return o.report(r), err
	}
	logging.WithContext(ctx, o.logger).Info("run finished",
		logging.String("status", string(status)),
		logging.String("deliverable", r.record.DeliverablePath),
		logging.String("video_id", r.record.VideoID),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	o.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"runID":       r.record.ID,
		"deliverable": r.record.DeliverablePath,
	})
	return o.report(r), nil
}

func (o *Orchestrator) report(r *run) Report {
	rep := Report{
		RunID:       r.record.ID,
		Dir:         r.layout.Dir,
		Status:      r.record.Status,
		Deliverable: r.record.DeliverablePath,
		VideoID:     r.record.VideoID,
	}
	if r.composed != nil {
		rep.Degraded = r.composed.Degraded
	}
	if r.record.Status == store.RunFailed {
		rep.FailedStage = r.record.Stage
	}
	return rep
}

func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WithContext(ctx, o.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
