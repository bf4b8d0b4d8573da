package logging

// ProgressSampler thins out progress logging for a processing run. A line is
// due when the run enters a new phase, when the percentage crosses into a
// new bucket, or when the run completes.
type ProgressSampler struct {
	bucket     int
	phase      string
	lastBucket int
}

// NewProgressSampler returns a sampler with the given bucket width in
// percent. Widths outside (0, 100] fall back to 10.
func NewProgressSampler(bucket int) *ProgressSampler {
	if bucket <= 0 || bucket > 100 {
		bucket = 10
	}
	return &ProgressSampler{bucket: bucket, lastBucket: -1}
}

// Observe records progress and reports whether it deserves a log line.
// A nil sampler logs everything.
func (s *ProgressSampler) Observe(phase string, percent int) bool {
	if s == nil {
		return true
	}
	due := false
	if phase != s.phase {
		s.phase = phase
		s.lastBucket = -1
		due = true
	}
	percent = max(0, min(100, percent))
	b := percent / s.bucket
	if percent == 100 {
		b = 100/s.bucket + 1
	}
	if b > s.lastBucket {
		s.lastBucket = b
		due = true
	}
	return due
}

// Reset forgets the phase and bucket, so the next observation always logs.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.phase = ""
	s.lastBucket = -1
}
