package logging

import "testing"

func TestProgressSamplerBucketDefaults(t *testing.T) {
	for _, width := range []int{0, -5, 101} {
		if s := NewProgressSampler(width); s.bucket != 10 {
			t.Fatalf("width %d: bucket = %d, want 10", width, s.bucket)
		}
	}
	if s := NewProgressSampler(25); s.bucket != 25 {
		t.Fatalf("bucket = %d, want 25", s.bucket)
	}
}

func TestProgressSamplerNilLogsEverything(t *testing.T) {
	var s *ProgressSampler
	if !s.Observe("objects", 3) {
		t.Fatal("nil sampler should log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		percent int
		want    bool
	}{
		{0, true},
		{10, false},
		{24, false},
		{25, true},
		{30, false},
		{75, true},
		{99, false},
		{100, true},
		{100, false},
	}
	for _, step := range steps {
		if got := s.Observe("objects", step.percent); got != step.want {
			t.Fatalf("Observe(%d) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerPhaseChangeLogs(t *testing.T) {
	s := NewProgressSampler(25)
	if !s.Observe("objects", 60) {
		t.Fatal("first observation should log")
	}
	if s.Observe("objects", 70) {
		t.Fatal("same bucket should not log")
	}
	if !s.Observe("print", 70) {
		t.Fatal("phase change should log")
	}
	if s.Observe("print", 74) {
		t.Fatal("same bucket after phase change should not log")
	}
}

func TestProgressSamplerClampsAndResets(t *testing.T) {
	s := NewProgressSampler(50)
	if !s.Observe("objects", 150) {
		t.Fatal("clamped completion should log")
	}
	if s.Observe("objects", 100) {
		t.Fatal("completion should log once")
	}
	s.Reset()
	if !s.Observe("objects", 100) {
		t.Fatal("observation after reset should log")
	}
}
