package scan

import "time"

// The interval ladder and its multiplier are tuned values with no
// derivation; keep them aligned with field telemetry.
var intervalTable = [...]time.Duration{
	1500 * time.Millisecond,
	2500 * time.Millisecond,
	4000 * time.Millisecond,
	6000 * time.Millisecond,
}

const (
	successMultiplier = 0.8

	// Used when the adaptive interval feature is off.
	fixedInterval = 2500 * time.Millisecond
)

// IntervalState is the scheduler's persistent state, mutated exactly once
// per completed session.
type IntervalState struct {
	FailureCount int           `json:"failure_count"`
	Interval     time.Duration `json:"interval_ms"`
	LastScan     time.Time     `json:"last_scan"`
}

// Scheduler throttles how often a new scan session may start. Failure
// streaks climb the interval ladder; success resets it and earns a discount.
// Single-writer, owned by the engine.
type Scheduler struct {
	state    IntervalState
	adaptive bool
}

func NewScheduler(adaptive bool) *Scheduler {
	s := &Scheduler{adaptive: adaptive}
	s.state.Interval = s.Required()
	return s
}

// Required returns the current minimum gap between sessions.
func (s *Scheduler) Required() time.Duration {
	if !s.adaptive {
		return fixedInterval
	}
	idx := s.state.FailureCount / 2
	if idx > len(intervalTable)-1 {
		idx = len(intervalTable) - 1
	}
	interval := intervalTable[idx]
	if s.state.FailureCount == 0 {
		interval = time.Duration(float64(interval) * successMultiplier)
	}
	return interval
}

// CanStart reports whether enough time has passed since the last session.
func (s *Scheduler) CanStart(now time.Time) bool {
	if s.state.LastScan.IsZero() {
		return true
	}
	return now.Sub(s.state.LastScan) >= s.Required()
}

// RetryAfter is how long a caller should wait before trying again.
func (s *Scheduler) RetryAfter(now time.Time) time.Duration {
	if s.state.LastScan.IsZero() {
		return 0
	}
	remaining := s.Required() - now.Sub(s.state.LastScan)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Complete records a finished session. The failure count resets on success
// and climbs on failure; the last-scan stamp updates unconditionally.
func (s *Scheduler) Complete(success bool, now time.Time) {
	if success {
		s.state.FailureCount = 0
	} else {
		s.state.FailureCount++
	}
	s.state.LastScan = now
	s.state.Interval = s.Required()
}

func (s *Scheduler) State() IntervalState {
	return s.state
}
