package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "upload") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)

	if !s.ShouldLog(0, "upload") {
		t.Error("0% should log")
	}
	if s.ShouldLog(7, "upload") {
		t.Error("7% should not log (same bucket)")
	}
	if !s.ShouldLog(10, "upload") {
		t.Error("10% should log (new bucket)")
	}
	if !s.ShouldLog(100, "upload") {
		t.Error("100% should log")
	}
	if s.ShouldLog(105, "upload") {
		t.Error("105% should not log again")
	}
}

func TestProgressSamplerPhaseChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "upload")

	if !s.ShouldLog(40, "resume") {
		t.Error("phase change should log")
	}
	if s.lastPhase != "resume" {
		t.Errorf("lastPhase = %q, want resume", s.lastPhase)
	}
	if s.ShouldLog(45, "  resume  ") {
		t.Error("trimmed phase and same bucket should not log")
	}
}

func TestProgressSamplerBytes(t *testing.T) {
	s := NewProgressSampler(25)
	if !s.ShouldLogBytes(0, 1000, "upload") {
		t.Error("first call should log")
	}
	if s.ShouldLogBytes(200, 1000, "upload") {
		t.Error("20% should not log with 25% buckets")
	}
	if !s.ShouldLogBytes(400, 1000, "upload") {
		t.Error("40% should log")
	}
	if s.ShouldLogBytes(10, 0, "upload") {
		t.Error("unknown total should not trigger bucket logging")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "upload")
	s.Reset()
	if s.lastPhase != "" || s.lastBucket != -1 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if !s.ShouldLog(50, "upload") {
		t.Error("should log after reset")
	}
}
