package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/compose"
	"reelsmith/internal/config"
	"reelsmith/internal/fileutil"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/metadata"
	"reelsmith/internal/normalize"
	"reelsmith/internal/pipeline"
	"reelsmith/internal/publish"
	"reelsmith/internal/services"
	"reelsmith/internal/store"
	"reelsmith/internal/testsupport"
)

type fakeScript struct{ text string }

func (f fakeScript) WriteScript(context.Context, string) (string, error) { return f.text, nil }

type fakeNarrator struct{}

func (fakeNarrator) Narrate(_ context.Context, _ string, outPath string) error {
	return os.WriteFile(outPath, []byte("mp3"), 0o644)
}

type fakeProber struct{ duration float64 }

func (f fakeProber) Duration(context.Context, string) (float64, error) { return f.duration, nil }

type fakeFootage struct{ count int }

func (f fakeFootage) FetchClips(_ context.Context, dir string) ([]string, error) {
	var paths []string
	for i := range f.count {
		path := filepath.Join(dir, normalize.OutputName(i))
		if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

type fakeNormalizer struct{}

func (fakeNormalizer) NormalizeAll(_ context.Context, inputs []string, outDir string) (normalize.Batch, error) {
	var batch normalize.Batch
	for i, in := range inputs {
		out := filepath.Join(outDir, normalize.OutputName(i))
		if err := os.WriteFile(out, []byte("normalized"), 0o644); err != nil {
			return normalize.Batch{}, err
		}
		batch.Clips = append(batch.Clips, normalize.Clip{Source: in, Asset: ffprobe.Asset{Path: out, Duration: 4}})
	}
	return batch, nil
}

type fakeComposer struct {
	calls    int
	degraded bool
}

func (f *fakeComposer) Compose(_ context.Context, req compose.Request) (compose.Result, error) {
	f.calls++
	if err := os.WriteFile(req.OutputPath, []byte("final"), 0o644); err != nil {
		return compose.Result{}, err
	}
	return compose.Result{
		Path:          req.OutputPath,
		Duration:      20,
		AudioDuration: 20,
		VideoDuration: 21,
		Entries:       len(req.Clips) * 2,
		Passes:        2,
		Degraded:      f.degraded,
	}, nil
}

type fakeUploader struct {
	requests []publish.Request
	errs     []error
}

func (f *fakeUploader) Publish(_ context.Context, req publish.Request) (publish.Result, error) {
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return publish.Result{}, err
		}
	}
	return publish.Result{
		VideoID:     "vid-123",
		SessionID:   "session-1",
		Bytes:       5,
		Resumed:     len(f.requests) > 1,
		CompletedAt: time.Now().UTC(),
	}, nil
}

type fixture struct {
	cfg      *config.Config
	store    *store.Store
	composer *fakeComposer
	uploader *fakeUploader
	parts    pipeline.Components
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	f := &fixture{
		cfg:      cfg,
		store:    testsupport.MustOpenStore(t, cfg),
		composer: &fakeComposer{},
		uploader: &fakeUploader{},
	}
	f.parts = pipeline.Components{
		Script:     fakeScript{text: "Want to earn more with AI? Here are three tools."},
		Narrator:   fakeNarrator{},
		Footage:    fakeFootage{count: 3},
		Metadata:   nil,
		Prober:     fakeProber{duration: 20},
		Normalizer: fakeNormalizer{},
		Composer:   f.composer,
		Uploader:   f.uploader,
	}
	return f
}

func (f *fixture) orchestrator() *pipeline.Orchestrator {
	return pipeline.New(f.cfg, f.store, f.parts, nil)
}

func TestRunPublishesAndRecordsResult(t *testing.T) {
	f := newFixture(t)
	date := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

	report, err := f.orchestrator().Run(context.Background(), pipeline.Request{Topic: "ai tools", Date: date})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !regexp.MustCompile(`^2026-10-16-[0-9a-f]{8}$`).MatchString(report.RunID) {
		t.Fatalf("unexpected run id %q", report.RunID)
	}
	if report.Status != store.RunCompleted || report.VideoID != "vid-123" {
		t.Fatalf("unexpected report: %+v", report)
	}

	layout := pipeline.Layout{Dir: report.Dir}
	for _, path := range []string{layout.Script(), layout.Narration(), layout.Deliverable(), layout.Metadata(), layout.UploadResult(), layout.Manifest()} {
		if !fileutil.Exists(path) {
			t.Errorf("expected artifact %s", filepath.Base(path))
		}
	}

	var upload pipeline.UploadRecord
	if err := fileutil.ReadJSON(layout.UploadResult(), &upload); err != nil {
		t.Fatalf("read upload result: %v", err)
	}
	if upload.VideoID != "vid-123" || upload.Privacy != f.cfg.Publish.Privacy {
		t.Fatalf("unexpected upload record: %+v", upload)
	}
	var meta metadata.Metadata
	if err := fileutil.ReadJSON(layout.Metadata(), &meta); err != nil || meta.Title == "" {
		t.Fatalf("expected derived metadata title, got %+v (%v)", meta, err)
	}
	if got := f.uploader.requests[0]; got.RunID != report.RunID || got.FilePath != layout.Deliverable() || got.Metadata.Title != meta.Title {
		t.Fatalf("unexpected publish request: %+v", got)
	}

	run, err := f.store.GetRun(context.Background(), report.RunID)
	if err != nil || run == nil {
		t.Fatalf("GetRun: %v %v", run, err)
	}
	if run.Status != store.RunCompleted || run.VideoID != "vid-123" || run.DeliverablePath != layout.Deliverable() {
		t.Fatalf("unexpected stored run: %+v", run)
	}

	manifest, err := pipeline.LoadManifest(layout.Manifest())
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(manifest.Stages) != len(pipeline.Stages) {
		t.Fatalf("expected %d stage records, got %d", len(pipeline.Stages), len(manifest.Stages))
	}
	for i, rec := range manifest.Stages {
		if rec.Name != pipeline.Stages[i] || rec.Status != pipeline.StageCompleted {
			t.Fatalf("stage %d: %+v", i, rec)
		}
	}
}

func TestRunWithZeroClipsHaltsBeforeCompose(t *testing.T) {
	f := newFixture(t)
	f.parts.Footage = fakeFootage{count: 0}

	report, err := f.orchestrator().Run(context.Background(), pipeline.Request{})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if stage, ok := services.FailedStage(err); !ok || stage != pipeline.StageFootage {
		t.Fatalf("expected failure attributed to footage, got %q", stage)
	}
	if f.composer.calls != 0 {
		t.Fatal("composition must not start without clips")
	}
	if report.Status != store.RunFailed || report.FailedStage != pipeline.StageFootage {
		t.Fatalf("unexpected report: %+v", report)
	}

	layout := pipeline.Layout{Dir: report.Dir}
	if !fileutil.Exists(layout.Script()) || !fileutil.Exists(layout.Narration()) {
		t.Fatal("artifacts from completed stages must be kept")
	}
	manifest, err := pipeline.LoadManifest(layout.Manifest())
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if manifest.Failure == nil || manifest.Failure.Kind != "InputError" || manifest.Failure.Stage != pipeline.StageFootage {
		t.Fatalf("unexpected failure report: %+v", manifest.Failure)
	}
	run, _ := f.store.GetRun(context.Background(), report.RunID)
	if run.Status != store.RunFailed || run.ErrorKind != "InputError" || run.Stage != pipeline.StageFootage {
		t.Fatalf("unexpected stored run: %+v", run)
	}
}

func TestRunWithSilentNarrationIsInputError(t *testing.T) {
	f := newFixture(t)
	f.parts.Prober = fakeProber{duration: 0}

	_, err := f.orchestrator().Run(context.Background(), pipeline.Request{})
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if stage, _ := services.FailedStage(err); stage != pipeline.StageNarration {
		t.Fatalf("expected narration stage, got %q", stage)
	}
}

func TestComposeOnlySkipsPublish(t *testing.T) {
	f := newFixture(t)
	f.parts.Uploader = nil

	report, err := f.orchestrator().Run(context.Background(), pipeline.Request{ComposeOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Status != store.RunComposed || report.VideoID != "" {
		t.Fatalf("unexpected report: %+v", report)
	}
	layout := pipeline.Layout{Dir: report.Dir}
	if fileutil.Exists(layout.UploadResult()) {
		t.Fatal("compose-only run must not write an upload result")
	}
	manifest, err := pipeline.LoadManifest(layout.Manifest())
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := manifest.Stage(pipeline.StagePublish)
	if !ok || rec.Status != pipeline.StageSkipped {
		t.Fatalf("expected skipped publish stage, got %+v", rec)
	}
}

func TestResumeAfterPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.uploader.errs = []error{services.Wrap(services.ErrTransfer, "publish", "put chunk", "connection reset", nil)}
	orch := f.orchestrator()

	report, err := orch.Run(context.Background(), pipeline.Request{})
	if !errors.Is(err, services.ErrTransfer) {
		t.Fatalf("expected transfer error, got %v", err)
	}
	if report.FailedStage != pipeline.StagePublish {
		t.Fatalf("expected publish failure, got %+v", report)
	}

	resumed, err := orch.Resume(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Status != store.RunCompleted || resumed.VideoID != "vid-123" {
		t.Fatalf("unexpected resumed report: %+v", resumed)
	}
	if f.composer.calls != 1 {
		t.Fatalf("resume must not recompose, composer called %d times", f.composer.calls)
	}
	if len(f.uploader.requests) != 2 || f.uploader.requests[1].RunID != report.RunID {
		t.Fatalf("unexpected publish requests: %+v", f.uploader.requests)
	}

	manifest, err := pipeline.LoadManifest(pipeline.Layout{Dir: report.Dir}.Manifest())
	if err != nil {
		t.Fatal(err)
	}
	if manifest.Failure != nil || manifest.Status != store.RunCompleted {
		t.Fatalf("expected cleared failure after resume, got %+v", manifest)
	}
}

func TestResumePublishesComposeOnlyRun(t *testing.T) {
	f := newFixture(t)
	report, err := f.orchestrator().Run(context.Background(), pipeline.Request{ComposeOnly: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	resumed, err := f.orchestrator().Resume(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.VideoID != "vid-123" {
		t.Fatalf("unexpected report: %+v", resumed)
	}
}

func TestResumeRejectsEarlierStageFailure(t *testing.T) {
	f := newFixture(t)
	f.parts.Footage = fakeFootage{count: 0}
	report, _ := f.orchestrator().Run(context.Background(), pipeline.Request{})

	_, err := f.orchestrator().Resume(context.Background(), report.RunID)
	if !errors.Is(err, services.ErrInput) || !strings.Contains(err.Error(), "only publishing") {
		t.Fatalf("expected input error, got %v", err)
	}
	if len(f.uploader.requests) != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestResumeUnknownRun(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orchestrator().Resume(context.Background(), "missing"); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestRunRequiresUploaderUnlessComposeOnly(t *testing.T) {
	f := newFixture(t)
	f.parts.Uploader = nil
	if _, err := f.orchestrator().Run(context.Background(), pipeline.Request{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLayoutLockIsExclusive(t *testing.T) {
	layout := pipeline.NewLayout(t.TempDir(), pipeline.NewRunID(time.Time{}))
	if err := layout.Create(); err != nil {
		t.Fatal(err)
	}
	lock, err := layout.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := layout.Lock(); !errors.Is(err, pipeline.ErrRunLocked) {
		t.Fatalf("expected ErrRunLocked, got %v", err)
	}
}
