package ffprobe_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelsmith/internal/media/ffprobe"
	"reelsmith/internal/services"
)

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestProbeReturnsAsset(t *testing.T) {
	path := writeFile(t, "voice.mp3")
	prober := ffprobe.NewProber("ffprobe", time.Second, ffprobe.WithInspector(func(ctx context.Context, binary, p string) (ffprobe.Result, error) {
		if binary != "ffprobe" || p != path {
			t.Fatalf("unexpected invocation %q %q", binary, p)
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "mp3"}},
			Format:  ffprobe.Format{Duration: "25.0"},
		}, nil
	}))

	asset, err := prober.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if asset.Duration != 25 || !asset.DurationKnown() || asset.Codec != "mp3" || !asset.HasAudio {
		t.Fatalf("unexpected asset: %+v", asset)
	}

	duration, err := prober.Duration(context.Background(), path)
	if err != nil || duration != 25 {
		t.Fatalf("Duration = %v, %v", duration, err)
	}
}

func TestProbeMissingFile(t *testing.T) {
	prober := ffprobe.NewProber("ffprobe", time.Second, ffprobe.WithInspector(func(context.Context, string, string) (ffprobe.Result, error) {
		t.Fatal("inspector should not run for missing files")
		return ffprobe.Result{}, nil
	}))
	_, err := prober.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, services.ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
}

func TestProbeFailuresAreProbeErrors(t *testing.T) {
	path := writeFile(t, "broken.mp4")
	tests := []struct {
		name   string
		result ffprobe.Result
		err    error
	}{
		{name: "ffprobe failure", err: errors.New("exit status 1")},
		{name: "no streams", result: ffprobe.Result{Format: ffprobe.Format{Duration: "3"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := ffprobe.NewProber("ffprobe", time.Second, ffprobe.WithInspector(func(context.Context, string, string) (ffprobe.Result, error) {
				return tt.result, tt.err
			}))
			_, err := prober.Probe(context.Background(), path)
			if !errors.Is(err, services.ErrProbe) {
				t.Fatalf("expected ErrProbe, got %v", err)
			}
			if services.IsTimeout(err) {
				t.Fatal("did not expect timeout classification")
			}
		})
	}
}

func TestProbeTimeoutIsDistinct(t *testing.T) {
	path := writeFile(t, "slow.mp4")
	prober := ffprobe.NewProber("ffprobe", 10*time.Millisecond, ffprobe.WithInspector(func(ctx context.Context, _, _ string) (ffprobe.Result, error) {
		<-ctx.Done()
		return ffprobe.Result{}, ctx.Err()
	}))
	_, err := prober.Probe(context.Background(), path)
	if !errors.Is(err, services.ErrProbe) || !services.IsTimeout(err) {
		t.Fatalf("expected probe timeout, got %v", err)
	}
}

func TestProbeUnknownDurationIsZero(t *testing.T) {
	path := writeFile(t, "still.png")
	prober := ffprobe.NewProber("ffprobe", time.Second, ffprobe.WithInspector(func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "png", Width: 10, Height: 10}}}, nil
	}))
	asset, err := prober.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if asset.DurationKnown() {
		t.Fatalf("expected unknown duration, got %v", asset.Duration)
	}
}
