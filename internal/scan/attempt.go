package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/shared"
	"github.com/vinscan/vinscan/internal/vin"
)

// SessionState tracks one scan session through its lifecycle.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateScoring    SessionState = "scoring"
	StateAttempting SessionState = "attempting"
	StateDone       SessionState = "done"
)

// Tuned thresholds. None of these are derived; adjust with telemetry only.
const (
	earlyExitBarcode     = 0.90
	earlyExitAny         = 0.80
	earlyExitWithQuality = 0.75
	goodQualityFloor     = 0.60
	fairQualityFloor     = 0.30
	highQualityFloor     = 0.80

	qualityBonusMax        = 0.04
	manufacturerBonus      = 0.05
	manufacturerBonusBelow = 0.90

	defaultSessionTimeout = 30 * time.Second
)

// sessionResult carries the attempt loop's outcome back to the engine.
type sessionResult struct {
	result           raceResult
	found            bool
	quality          recognition.QualityReport
	overall          float64
	attempts         int
	timedOut         bool
	unavailable      bool
	structuralReject bool
	duration         time.Duration
}

// AttemptController runs the quality-adaptive attempt loop for one session:
// Idle -> Scoring -> Attempting -> Done.
type AttemptController struct {
	race    *RaceCoordinator
	quality recognition.QualityAnalyzer
	backoff shared.BackoffConfig
	timeout time.Duration
	observe func(SessionState)
	log     *slog.Logger
}

func NewAttemptController(race *RaceCoordinator, quality recognition.QualityAnalyzer, log *slog.Logger) *AttemptController {
	if log == nil {
		log = slog.Default()
	}
	return &AttemptController{
		race:    race,
		quality: quality,
		backoff: shared.NormalizeBackoff(shared.BackoffConfig{}),
		timeout: defaultSessionTimeout,
		log:     log.With("component", "attempt-controller"),
	}
}

// attemptBudget maps frame quality to how many recognition attempts the
// session gets. Poor frames still get one attempt, never zero: a bad quality
// estimate must not block scanning entirely.
func attemptBudget(overall float64, hasIssues bool) int {
	switch {
	case overall >= highQualityFloor && !hasIssues:
		return 1
	case overall >= goodQualityFloor:
		return 1
	case overall >= fairQualityFloor:
		return 2
	default:
		return 1
	}
}

// shouldExitEarly reports whether a result is strong enough to stop the loop
// before the budget runs out.
func shouldExitEarly(res raceResult, overall float64) bool {
	if res.source == SourceBarcode && res.confidence >= earlyExitBarcode {
		return true
	}
	if res.confidence >= earlyExitAny {
		return true
	}
	return res.confidence >= earlyExitWithQuality && overall >= goodQualityFloor
}

// Run executes one scan session against a single captured image. The
// hang-prevention deadline only stops the loop from starting further
// iterations; it never interrupts an in-flight recognition call.
func (c *AttemptController) Run(ctx context.Context, img recognition.Image) sessionResult {
	start := time.Now()
	deadline := start.Add(c.timeout)

	// Scoring.
	report, err := c.quality.Analyze(ctx, img)
	if err != nil {
		// Quality analysis is advisory: without it, assume a fair frame.
		c.log.Debug("quality analysis unavailable", "error", err)
		report = recognition.QualityReport{Contrast: 0.5, Brightness: 0.5}
	}
	overall := report.Overall()
	budget := attemptBudget(overall, report.HasIssues())

	out := sessionResult{quality: report, overall: overall}

	// Attempting.
	if c.observe != nil {
		c.observe(StateAttempting)
	}
	for attempt := 1; attempt <= budget; attempt++ {
		if time.Now().After(deadline) {
			out.timedOut = true
			break
		}

		out.attempts = attempt
		res, info, ok := c.race.Run(ctx, img)
		out.unavailable = info.allUnavailable()
		out.structuralReject = out.structuralReject || info.structuralReject
		if ok {
			if !out.found || res.confidence > out.result.confidence {
				out.result = res
				out.found = true
			}
			if shouldExitEarly(res, overall) {
				break
			}
		}

		if attempt < budget {
			if !c.sleepUntil(ctx, c.backoff.Delay(attempt+1), deadline) {
				out.timedOut = true
				break
			}
		}
	}

	// Done: apply the bounded completion bonuses.
	if out.found {
		res := &out.result
		res.confidence += qualityBonusMax * overall
		if res.knownManufacturer && res.confidence < manufacturerBonusBelow {
			res.confidence += manufacturerBonus
		}
		if res.confidence > vin.ScoreCeiling {
			res.confidence = vin.ScoreCeiling
		}
	}

	out.duration = time.Since(start)
	return out
}

// sleepUntil waits for the backoff delay, bailing out early if the session
// deadline or context expires. Returns false when the session must stop.
func (c *AttemptController) sleepUntil(ctx context.Context, delay time.Duration, deadline time.Time) bool {
	if remaining := time.Until(deadline); delay > remaining {
		delay = remaining
	}
	if delay <= 0 {
		return false
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
