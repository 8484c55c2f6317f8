package ffprobe

import (
	"math"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", CodecName: "h264", Width: 1080, Height: 1920, AvgFrameRate: "30000/1001"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	video, ok := result.PrimaryVideo()
	if !ok {
		t.Fatal("expected primary video stream")
	}
	if got := video.FrameRate(); math.Abs(got-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", got)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.MeasuredDuration() != 0 {
		t.Fatalf("expected unmeasurable duration to be 0, got %v", result.MeasuredDuration())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestMeasuredDurationFallsBackToLongestStream(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "9.5"},
			{CodecType: "audio", Duration: "10.25"},
			{CodecType: "data", Duration: "N/A"},
		},
		Format: Format{Duration: "N/A"},
	}
	if got := result.MeasuredDuration(); got != 10.25 {
		t.Fatalf("MeasuredDuration = %v, want 10.25", got)
	}
}

func TestParseRational(t *testing.T) {
	tests := map[string]float64{
		"30/1": 30,
		"0/0":  0,
		"25":   25,
		"":     0,
		"x/y":  0,
	}
	for input, want := range tests {
		if got := parseRational(input); got != want {
			t.Errorf("parseRational(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestParseDecodesFFprobeJSON(t *testing.T) {
	payload := []byte(`{"streams":[{"index":0,"codec_name":"h264","codec_type":"video","pix_fmt":"yuv420p","width":1080,"height":1920,"avg_frame_rate":"30/1","duration":"4.000000"}],"format":{"duration":"4.010000","nb_streams":1}}`)
	result, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	asset := AssetFromResult("clip.mp4", result)
	if asset.Width != 1080 || asset.Height != 1920 || asset.Codec != "h264" || asset.PixelFormat != "yuv420p" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.FrameRate != 30 || asset.Duration != 4.01 {
		t.Fatalf("unexpected timing: %+v", asset)
	}
	if asset.HasAudio {
		t.Fatal("expected no audio")
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json to be retained")
	}
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
