package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the phase or percentage bucket changes.
type ProgressSampler struct {
	bucketSize float64
	lastPhase  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the phase changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown".
func (s *ProgressSampler) ShouldLog(percent float64, phase string) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != "" && phase != s.lastPhase {
		s.lastPhase = phase
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(min(percent, 100) / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// ShouldLogBytes is ShouldLog for a byte transfer of total bytes.
func (s *ProgressSampler) ShouldLogBytes(done, total int64, phase string) bool {
	if total <= 0 {
		return s.ShouldLog(-1, phase)
	}
	return s.ShouldLog(float64(done)*100/float64(total), phase)
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastBucket = -1
}
