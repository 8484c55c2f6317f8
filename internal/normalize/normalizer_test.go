package normalize_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/normalize"
	"reelsmith/internal/services"
)

// fakeProber reports the canonical format unless the file content says otherwise.
type fakeProber struct{}

func (fakeProber) Probe(_ context.Context, path string) (ffprobe.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ffprobe.Asset{}, services.Wrap(services.ErrProbe, "probe", "stat", path, err)
	}
	asset := ffprobe.Asset{Path: path, Width: 1080, Height: 1920, Codec: "h264", PixelFormat: "yuv420p", FrameRate: 30, Duration: 4}
	switch strings.TrimSpace(string(data)) {
	case "wrong-size":
		asset.Width, asset.Height = 720, 1280
	case "empty":
		asset.Duration = 0
	}
	return asset, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
}

func (r *fakeRunner) run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	cur := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		prev := r.maxSeen.Load()
		if cur <= prev || r.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	input := inputOf(args)
	output := args[len(args)-1]
	base := filepath.Base(input)
	switch {
	case strings.Contains(base, "broken"):
		return errors.New("exit status 1")
	case strings.Contains(base, "stalled"):
		return fmt.Errorf("%w (signal: killed)", context.DeadlineExceeded)
	case strings.Contains(base, "tiny"):
		return os.WriteFile(output, []byte("wrong-size"), 0o644)
	case strings.Contains(base, "blank"):
		return os.WriteFile(output, []byte("empty"), 0o644)
	}
	return os.WriteFile(output, []byte("ok"), 0o644)
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func inputOf(args []string) string {
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newNormalizer(t *testing.T, runner *fakeRunner, mutate func(*config.Media)) *normalize.Normalizer {
	t.Helper()
	media := config.Default().Media
	media.NormalizeWorkers = 2
	if mutate != nil {
		mutate(&media)
	}
	return normalize.New(media, fakeProber{}, logging.NewNop(), normalize.WithRunner(runner.run))
}

func writeSources(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("source"), 0o644); err != nil {
			t.Fatalf("write source: %v", err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestFilterChainFitsCanvasWithoutCropping(t *testing.T) {
	n := newNormalizer(t, &fakeRunner{}, nil)
	want := "scale=1080:1920:force_original_aspect_ratio=decrease:force_divisible_by=2:flags=lanczos," +
		"pad=1080:1920:(ow-iw)/2:(oh-ih)/2:color=black,setsar=1,fps=30"
	if got := n.FilterChain(); got != want {
		t.Fatalf("FilterChain =\n%s\nwant\n%s", got, want)
	}
}

func TestArgsEncodeCanonicalFormat(t *testing.T) {
	n := newNormalizer(t, &fakeRunner{}, nil)
	args := strings.Join(n.Args("in.mov", "out.mp4"), " ")
	for _, fragment := range []string{
		"-i in.mov",
		"-an",
		"-c:v libx264",
		"-preset veryfast",
		"-crf 23",
		"-pix_fmt yuv420p",
		"-r 30",
		"-movflags +faststart",
	} {
		if !strings.Contains(args, fragment) {
			t.Errorf("expected %q in args: %s", fragment, args)
		}
	}
	if !strings.HasSuffix(args, " out.mp4") {
		t.Fatalf("expected output last: %s", args)
	}
}

func TestNormalizeWritesVerifiedOutput(t *testing.T) {
	runner := &fakeRunner{}
	n := newNormalizer(t, runner, nil)
	src := writeSources(t, "clip_1.mp4")[0]
	out := filepath.Join(t.TempDir(), "work", "v_1.mp4")

	clip, err := n.Normalize(context.Background(), src, out)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if clip.Path() != out || clip.Source != src {
		t.Fatalf("unexpected clip: %+v", clip)
	}
	if clip.Asset.Width != 1080 || clip.Asset.Height != 1920 || clip.Asset.FrameRate != 30 {
		t.Fatalf("unexpected geometry: %+v", clip.Asset)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(out), ".v_1.partial.mp4")); !os.IsNotExist(err) {
		t.Fatalf("expected partial file to be gone, stat err=%v", err)
	}
}

func TestNormalizeReusesValidOutput(t *testing.T) {
	runner := &fakeRunner{}
	n := newNormalizer(t, runner, nil)
	src := writeSources(t, "clip_1.mp4")[0]
	out := filepath.Join(t.TempDir(), "v_1.mp4")
	if err := os.WriteFile(out, []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := n.Normalize(context.Background(), src, out); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if runner.callCount() != 0 {
		t.Fatalf("expected existing output to be reused, got %d ffmpeg calls", runner.callCount())
	}
}

func TestNormalizeFailuresLeaveNoOutput(t *testing.T) {
	tests := []string{"broken.mp4", "tiny.mp4", "blank.mp4"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			n := newNormalizer(t, &fakeRunner{}, nil)
			src := writeSources(t, name)[0]
			outDir := t.TempDir()
			out := filepath.Join(outDir, "v_1.mp4")

			_, err := n.Normalize(context.Background(), src, out)
			if !errors.Is(err, services.ErrNormalize) {
				t.Fatalf("expected ErrNormalize, got %v", err)
			}
			entries, _ := os.ReadDir(outDir)
			if len(entries) != 0 {
				t.Fatalf("expected no files left behind, found %d", len(entries))
			}
		})
	}
}

func TestNormalizeDeadlineIsTimeout(t *testing.T) {
	n := newNormalizer(t, &fakeRunner{}, nil)
	src := writeSources(t, "stalled.mp4")[0]
	out := filepath.Join(t.TempDir(), "v_1.mp4")

	_, err := n.Normalize(context.Background(), src, out)
	if !errors.Is(err, services.ErrNormalize) || !services.IsTimeout(err) {
		t.Fatalf("expected normalize timeout, got %v", err)
	}
	if details := services.Details(err); !details.Timeout {
		t.Fatalf("expected timeout details, got %+v", details)
	}

	_, err = n.Normalize(context.Background(), writeSources(t, "broken.mp4")[0], out)
	if services.IsTimeout(err) {
		t.Fatalf("plain ffmpeg failure must not be a timeout: %v", err)
	}
}

func TestNormalizeAllSkipsFailedClipsInOrder(t *testing.T) {
	runner := &fakeRunner{}
	n := newNormalizer(t, runner, nil)
	inputs := writeSources(t, "a.mp4", "broken.mp4", "c.mp4")
	outDir := t.TempDir()

	batch, err := n.NormalizeAll(context.Background(), inputs, outDir)
	if err != nil {
		t.Fatalf("NormalizeAll: %v", err)
	}
	if len(batch.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(batch.Clips))
	}
	if batch.Clips[0].Source != inputs[0] || batch.Clips[1].Source != inputs[2] {
		t.Fatalf("expected input order to be preserved: %+v", batch.Clips)
	}
	if batch.Clips[1].Path() != filepath.Join(outDir, "v_3.mp4") {
		t.Fatalf("unexpected output name: %s", batch.Clips[1].Path())
	}
	if len(batch.Failed) != 1 || batch.Failed[0].Source != inputs[1] {
		t.Fatalf("unexpected failures: %+v", batch.Failed)
	}
}

func TestNormalizeAllFailsFastWhenNotSkipping(t *testing.T) {
	n := newNormalizer(t, &fakeRunner{}, func(m *config.Media) { m.SkipFailedClips = false })
	inputs := writeSources(t, "a.mp4", "broken.mp4")

	_, err := n.NormalizeAll(context.Background(), inputs, t.TempDir())
	if !errors.Is(err, services.ErrNormalize) {
		t.Fatalf("expected ErrNormalize, got %v", err)
	}
}

func TestNormalizeAllWithNoUsableClipsIsInputError(t *testing.T) {
	n := newNormalizer(t, &fakeRunner{}, nil)
	inputs := writeSources(t, "broken-1.mp4", "broken-2.mp4")

	_, err := n.NormalizeAll(context.Background(), inputs, t.TempDir())
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput, got %v", err)
	}

	if _, err := n.NormalizeAll(context.Background(), nil, t.TempDir()); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected ErrInput for empty input, got %v", err)
	}
}

func TestNormalizeAllBoundsConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	n := newNormalizer(t, runner, nil)
	inputs := writeSources(t, "1.mp4", "2.mp4", "3.mp4", "4.mp4", "5.mp4", "6.mp4")

	batch, err := n.NormalizeAll(context.Background(), inputs, t.TempDir())
	if err != nil {
		t.Fatalf("NormalizeAll: %v", err)
	}
	if len(batch.Clips) != len(inputs) {
		t.Fatalf("expected %d clips, got %d", len(inputs), len(batch.Clips))
	}
	if got := runner.maxSeen.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent encodes, saw %d", got)
	}
}
