package scan

import (
	"testing"
	"time"
)

func TestSchedulerClimbsOnFailureStreak(t *testing.T) {
	s := NewScheduler(true)

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 1200 * time.Millisecond},
		{1, 1500 * time.Millisecond},
		{2, 2500 * time.Millisecond},
		{3, 2500 * time.Millisecond},
		{4, 4000 * time.Millisecond},
		{6, 6000 * time.Millisecond},
		{100, 6000 * time.Millisecond},
	}
	for _, tc := range cases {
		s.state.FailureCount = tc.failures
		if got := s.Required(); got != tc.want {
			t.Errorf("Required(failures=%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}

	// Intervals never shrink as failures mount.
	prev := time.Duration(0)
	for failures := 0; failures <= 12; failures++ {
		s.state.FailureCount = failures
		got := s.Required()
		if got < prev {
			t.Fatalf("Required(failures=%d) = %v, shrank below %v", failures, got, prev)
		}
		prev = got
	}
}

func TestSchedulerSuccessResetsAndDiscounts(t *testing.T) {
	s := NewScheduler(true)
	now := time.Now()

	for i := 0; i < 4; i++ {
		s.Complete(false, now)
	}
	if s.State().FailureCount != 4 {
		t.Fatalf("FailureCount = %d, want 4", s.State().FailureCount)
	}
	if got := s.Required(); got != 4000*time.Millisecond {
		t.Errorf("Required after streak = %v, want 4s", got)
	}

	s.Complete(true, now)
	if s.State().FailureCount != 0 {
		t.Errorf("FailureCount after success = %d, want 0", s.State().FailureCount)
	}
	if got := s.Required(); got != 1200*time.Millisecond {
		t.Errorf("Required after success = %v, want 1.2s", got)
	}
}

func TestSchedulerFixedIntervalWhenAdaptiveOff(t *testing.T) {
	s := NewScheduler(false)
	now := time.Now()
	for i := 0; i < 6; i++ {
		s.Complete(false, now)
	}
	if got := s.Required(); got != fixedInterval {
		t.Errorf("Required = %v, want fixed %v", got, fixedInterval)
	}
}

func TestSchedulerGating(t *testing.T) {
	s := NewScheduler(true)
	now := time.Now()

	if !s.CanStart(now) {
		t.Fatal("a fresh scheduler must allow the first scan")
	}
	if got := s.RetryAfter(now); got != 0 {
		t.Errorf("RetryAfter before any scan = %v, want 0", got)
	}

	s.Complete(true, now)
	if s.CanStart(now.Add(time.Millisecond)) {
		t.Error("scan inside the interval must be blocked")
	}
	retry := s.RetryAfter(now.Add(200 * time.Millisecond))
	if retry != 1000*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 1s", retry)
	}
	if !s.CanStart(now.Add(1200 * time.Millisecond)) {
		t.Error("scan after the interval must be allowed")
	}
	if got := s.RetryAfter(now.Add(2 * time.Second)); got != 0 {
		t.Errorf("RetryAfter past the interval = %v, want 0", got)
	}
}
