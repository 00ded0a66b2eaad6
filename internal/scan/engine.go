package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinscan/vinscan/internal/metrics"
	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/vin"
)

// A frame must clear this even after session bonuses to be reported as ok.
const minReportConfidence = 0.50

// Archiver persists accepted frames outside the engine's in-memory window.
type Archiver interface {
	Archive(ctx context.Context, deviceID string, f Frame) error
}

// Notifier receives live engine events, typically fanned out to websocket
// subscribers. Implementations must not block.
type Notifier interface {
	FrameAccepted(deviceID string, f Frame)
	ConsensusUpdated(deviceID string, c ConsensusResult)
}

// EngineConfig wires one device's engine.
type EngineConfig struct {
	DeviceID  string
	Flags     FeatureFlagSet
	MaxFrames int
	Text      recognition.TextRecognizer
	Barcode   recognition.BarcodeScanner
	Quality   recognition.QualityAnalyzer
	Metrics   metrics.Sink
	Archiver  Archiver
	Notifier  Notifier
	Log       *slog.Logger
}

// Engine owns the full scan lifecycle for one device: gating, the attempt
// loop, frame history, consensus, and side effects. All mutable state is
// guarded by mu; recognition itself runs outside the lock so a slow backend
// never blocks status reads.
type Engine struct {
	deviceID string
	flags    FeatureFlagSet
	ctrl     *AttemptController
	adjuster *vin.Adjuster
	metrics  metrics.Sink
	archiver Archiver
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	scanning  bool
	state     SessionState
	history   *History
	scheduler *Scheduler
}

func NewEngine(cfg EngineConfig) *Engine {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scan-engine", "device_id", cfg.DeviceID)

	race := NewRaceCoordinator(cfg.Text, cfg.Barcode, log)
	e := &Engine{
		deviceID:  cfg.DeviceID,
		flags:     cfg.Flags,
		ctrl:      NewAttemptController(race, cfg.Quality, log),
		adjuster:  vin.NewAdjuster(),
		metrics:   cfg.Metrics,
		archiver:  cfg.Archiver,
		notifier:  cfg.Notifier,
		log:       log,
		now:       time.Now,
		state:     StateIdle,
		history:   NewHistory(cfg.MaxFrames),
		scheduler: NewScheduler(cfg.Flags.AdaptiveInterval),
	}
	e.ctrl.observe = e.setState
	return e
}

// Scan runs one session against a captured image. A session already in
// flight makes this a no-op with StatusBusy; a session inside the minimum
// interval is rejected with StatusThrottled and a retry hint. Neither
// rejection touches the scheduler or history.
func (e *Engine) Scan(ctx context.Context, img recognition.Image) Outcome {
	now := e.now()

	e.mu.Lock()
	if e.scanning {
		e.mu.Unlock()
		return Outcome{Status: StatusBusy}
	}
	if !e.scheduler.CanStart(now) {
		retry := e.scheduler.RetryAfter(now)
		e.mu.Unlock()
		return Outcome{Status: StatusThrottled, RetryAfter: retry}
	}
	e.scanning = true
	e.state = StateScoring
	e.mu.Unlock()

	sessionID := uuid.New().String()
	res := e.ctrl.Run(ctx, img)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.scanning = false
	e.state = StateDone

	done := e.now()
	accepted := res.found && res.result.confidence >= minReportConfidence
	e.scheduler.Complete(accepted, done)

	out := Outcome{
		SessionID: sessionID,
		Quality:   res.quality,
		Attempts:  res.attempts,
		Duration:  res.duration,
	}

	switch {
	case accepted:
		frame := e.acceptFrame(res, done)
		out.Status = StatusOK
		out.Frame = &frame
		if e.flags.ContextFiltering {
			review := e.adjuster.Analyze(frame.VIN, frame.Confidence)
			out.Review = &review
		}
		if c, ok := e.consensusLocked(done); ok {
			out.Consensus = &c
			if e.notifier != nil {
				e.notifier.ConsensusUpdated(e.deviceID, c)
			}
		}
	case res.found:
		out.Status = StatusLowConfidence
	case res.timedOut:
		out.Status = StatusTimeout
	case res.unavailable:
		out.Status = StatusUnavailable
	case res.structuralReject:
		out.Status = StatusStructuralReject
	default:
		out.Status = StatusNoCandidate
	}

	e.record(out, done)
	e.log.Info("scan session finished",
		"session_id", sessionID,
		"status", out.Status,
		"attempts", out.Attempts,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out
}

// acceptFrame builds, stores, archives, and announces an accepted frame.
// Caller holds mu.
func (e *Engine) acceptFrame(res sessionResult, now time.Time) Frame {
	frame := Frame{
		ID:                uuid.New().String(),
		VIN:               res.result.vin,
		Confidence:        res.result.confidence,
		ImageQuality:      res.overall,
		Source:            res.result.source,
		ProcessingTime:    res.result.processingTime,
		Attempt:           res.attempts,
		Timestamp:         now,
		KnownManufacturer: res.result.knownManufacturer,
	}
	e.history.Add(frame, now)

	if e.archiver != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.archiver.Archive(ctx, e.deviceID, frame); err != nil {
				e.log.Warn("frame archive failed", "frame_id", frame.ID, "error", err)
			}
		}()
	}
	if e.notifier != nil {
		e.notifier.FrameAccepted(e.deviceID, frame)
	}
	return frame
}

// consensusLocked computes the current multi-frame agreement. With fusion
// disabled the latest frame stands alone at full stability. Caller holds mu.
func (e *Engine) consensusLocked(now time.Time) (ConsensusResult, bool) {
	if !e.flags.MultiFrameFusion {
		latest, ok := e.history.Latest()
		if !ok {
			return ConsensusResult{}, false
		}
		return ConsensusResult{
			VIN:        latest.VIN,
			Confidence: latest.Confidence,
			Stability:  1,
			Frames:     1,
			Window:     1,
		}, true
	}
	return Consensus(e.history.Frames(), now)
}

// Consensus is the read-side view of the engine's multi-frame agreement.
func (e *Engine) Consensus() (ConsensusResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consensusLocked(e.now())
}

// Inconsistencies reports per-position disagreements across the current
// frame window when agreement is shaky. A window too divided to reach
// consensus at all is the least stable case, so it is analyzed at
// stability zero rather than skipped.
func (e *Engine) Inconsistencies() []PositionConflict {
	e.mu.Lock()
	defer e.mu.Unlock()
	stability := 0.0
	if c, ok := e.consensusLocked(e.now()); ok {
		stability = c.Stability
	}
	return InconsistentPositions(e.history.Frames(), stability)
}

func (e *Engine) setState(s SessionState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// State reports where the current or most recent session sits in the
// Idle -> Scoring -> Attempting -> Done lifecycle.
func (e *Engine) State() SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Frames returns a copy of the engine's current frame window.
func (e *Engine) Frames() []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Frames()
}

// Interval reports the scheduler's current state for status endpoints.
func (e *Engine) Interval() IntervalState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.State()
}

// Reset clears the frame window, for example when the camera moves to a
// different vehicle.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Clear()
	e.state = StateIdle
}

// record emits the session metric without blocking the scan path.
func (e *Engine) record(out Outcome, now time.Time) {
	if e.metrics == nil {
		return
	}
	m := metrics.PerformanceMetric{
		ScanTime:   out.Duration,
		Confidence: frameConfidence(out.Frame),
		Accurate:   out.Succeeded(),
		Timestamp:  now,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.metrics.Record(ctx, e.deviceID, m)
	}()
}

func frameConfidence(f *Frame) float64 {
	if f == nil {
		return 0
	}
	return f.Confidence
}
