package scan

import (
	"time"

	"github.com/vinscan/vinscan/internal/recognition"
	"github.com/vinscan/vinscan/internal/vin"
)

// Source identifies which recognition path produced a frame result.
type Source string

const (
	SourceText    Source = "text"
	SourceBarcode Source = "barcode"
)

// Frame is one accepted per-frame result. Immutable after creation; any VIN
// reaching a Frame is exactly 17 characters from the VIN alphabet.
type Frame struct {
	ID                string        `json:"id"`
	VIN               string        `json:"vin"`
	Confidence        float64       `json:"confidence"`
	ImageQuality      float64       `json:"image_quality"`
	Source            Source        `json:"source"`
	ProcessingTime    time.Duration `json:"processing_time_ms"`
	Attempt           int           `json:"attempt"`
	Timestamp         time.Time     `json:"timestamp"`
	KnownManufacturer bool          `json:"known_manufacturer"`
}

// Status classifies a session outcome. Everything here is an expected
// result, not an error: callers branch on Status, they never unwrap panics.
type Status string

const (
	StatusOK            Status = "ok"
	StatusNoCandidate   Status = "no_candidate"
	StatusLowConfidence Status = "low_confidence"
	// StatusStructuralReject means something VIN-shaped was read, but every
	// candidate failed the structural checks after correction.
	StatusStructuralReject Status = "structural_reject"
	StatusUnavailable   Status = "unavailable"
	StatusTimeout       Status = "timeout"
	StatusThrottled     Status = "throttled"
	StatusBusy          Status = "busy"
)

// Outcome is the result of one scan session.
type Outcome struct {
	SessionID  string                    `json:"session_id"`
	Status     Status                    `json:"status"`
	Frame      *Frame                    `json:"frame,omitempty"`
	Review     *vin.Review               `json:"review,omitempty"`
	Consensus  *ConsensusResult          `json:"consensus,omitempty"`
	Quality    recognition.QualityReport `json:"quality"`
	Attempts   int                       `json:"attempts"`
	Duration   time.Duration             `json:"duration_ms"`
	RetryAfter time.Duration             `json:"retry_after_ms,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusOK
}

// FeatureFlagSet is the injected configuration value enumerating optional
// behaviors. The engine must degrade predictably under any combination.
type FeatureFlagSet struct {
	ContextFiltering bool `json:"context_filtering"`
	MultiFrameFusion bool `json:"multi_frame_fusion"`
	AdaptiveInterval bool `json:"adaptive_interval"`
}

func DefaultFlags() FeatureFlagSet {
	return FeatureFlagSet{
		ContextFiltering: true,
		MultiFrameFusion: true,
		AdaptiveInterval: true,
	}
}
