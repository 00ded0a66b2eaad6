package dto

import (
	"time"

	"github.com/vinscan/vinscan/internal/scan"
	"github.com/vinscan/vinscan/internal/scanstore"
	"github.com/vinscan/vinscan/internal/vin"
)

type ScanRequest struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	MIME        string `json:"mime,omitempty" example:"image/jpeg"`
}

type FrameResponse struct {
	ID                string  `json:"id" example:"frm_abc123"`
	VIN               string  `json:"vin" example:"1HGCM82633A004352"`
	Confidence        float64 `json:"confidence" example:"0.92"`
	ImageQuality      float64 `json:"image_quality" example:"0.8"`
	Source            string  `json:"source" example:"barcode"`
	ProcessingTimeMs  int64   `json:"processing_time_ms" example:"120"`
	Attempt           int     `json:"attempt" example:"1"`
	Timestamp         string  `json:"timestamp" example:"2025-01-15T10:30:00Z"`
	KnownManufacturer bool    `json:"known_manufacturer" example:"true"`
}

type ReviewResponse struct {
	Suggestions        []vin.Adjustment `json:"suggestions,omitempty"`
	AdjustedConfidence float64          `json:"adjusted_confidence" example:"0.62"`
	NeedsUserReview    bool             `json:"needs_user_review" example:"false"`
}

type ConsensusResponse struct {
	VIN        string  `json:"vin" example:"1HGCM82633A004352"`
	Confidence float64 `json:"confidence" example:"0.88"`
	Stability  float64 `json:"stability" example:"0.8"`
	Frames     int     `json:"frames" example:"4"`
	Window     int     `json:"window" example:"5"`
}

type QualityResponse struct {
	Contrast   float64 `json:"contrast" example:"0.7"`
	Brightness float64 `json:"brightness" example:"0.6"`
	Overall    float64 `json:"overall" example:"0.67"`
	IsBlurry   bool    `json:"is_blurry" example:"false"`
	HasGlare   bool    `json:"has_glare" example:"false"`
}

type ScanResponse struct {
	SessionID    string             `json:"session_id" example:"sess_abc123"`
	Status       string             `json:"status" example:"ok"`
	Frame        *FrameResponse     `json:"frame,omitempty"`
	Review       *ReviewResponse    `json:"review,omitempty"`
	Consensus    *ConsensusResponse `json:"consensus,omitempty"`
	Quality      QualityResponse    `json:"quality"`
	Attempts     int                `json:"attempts" example:"1"`
	DurationMs   int64              `json:"duration_ms" example:"430"`
	RetryAfterMs int64              `json:"retry_after_ms,omitempty" example:"1200"`
}

type InconsistencyResponse struct {
	Position int            `json:"position" example:"5"`
	Counts   map[string]int `json:"counts"`
	ZeroOne  bool           `json:"zero_one_confusion" example:"true"`
}

type DeviceStatusResponse struct {
	DeviceID     string                  `json:"device_id" example:"cam-1"`
	State        string                  `json:"state" example:"done"`
	Frames       []FrameResponse         `json:"frames"`
	Consensus    *ConsensusResponse      `json:"consensus,omitempty"`
	Conflicts    []InconsistencyResponse `json:"conflicts,omitempty"`
	FailureCount int                     `json:"failure_count" example:"0"`
	IntervalMs   int64                   `json:"interval_ms" example:"1500"`
}

type ScanListResponse struct {
	Scans []scanstore.ScanRecord `json:"scans"`
	Count int                    `json:"count" example:"2"`
}

// LiveEvent is one websocket feed message.
type LiveEvent struct {
	Type      string             `json:"type" example:"frame"`
	DeviceID  string             `json:"device_id" example:"cam-1"`
	Frame     *FrameResponse     `json:"frame,omitempty"`
	Consensus *ConsensusResponse `json:"consensus,omitempty"`
	Timestamp string             `json:"timestamp" example:"2025-01-15T10:30:00Z"`
}

func FromFrame(f scan.Frame) FrameResponse {
	return FrameResponse{
		ID:                f.ID,
		VIN:               f.VIN,
		Confidence:        f.Confidence,
		ImageQuality:      f.ImageQuality,
		Source:            string(f.Source),
		ProcessingTimeMs:  f.ProcessingTime.Milliseconds(),
		Attempt:           f.Attempt,
		Timestamp:         f.Timestamp.UTC().Format(time.RFC3339),
		KnownManufacturer: f.KnownManufacturer,
	}
}

func FromConsensus(c scan.ConsensusResult) ConsensusResponse {
	return ConsensusResponse{
		VIN:        c.VIN,
		Confidence: c.Confidence,
		Stability:  c.Stability,
		Frames:     c.Frames,
		Window:     c.Window,
	}
}

func FromOutcome(out scan.Outcome) ScanResponse {
	resp := ScanResponse{
		SessionID: out.SessionID,
		Status:    string(out.Status),
		Quality: QualityResponse{
			Contrast:   out.Quality.Contrast,
			Brightness: out.Quality.Brightness,
			Overall:    out.Quality.Overall(),
			IsBlurry:   out.Quality.IsBlurry,
			HasGlare:   out.Quality.HasGlare,
		},
		Attempts:     out.Attempts,
		DurationMs:   out.Duration.Milliseconds(),
		RetryAfterMs: out.RetryAfter.Milliseconds(),
	}
	if out.Frame != nil {
		f := FromFrame(*out.Frame)
		resp.Frame = &f
	}
	if out.Review != nil {
		resp.Review = &ReviewResponse{
			Suggestions:        out.Review.Suggestions,
			AdjustedConfidence: out.Review.AdjustedConfidence,
			NeedsUserReview:    out.Review.NeedsUserReview,
		}
	}
	if out.Consensus != nil {
		c := FromConsensus(*out.Consensus)
		resp.Consensus = &c
	}
	return resp
}

func FromConflicts(conflicts []scan.PositionConflict) []InconsistencyResponse {
	if len(conflicts) == 0 {
		return nil
	}
	out := make([]InconsistencyResponse, len(conflicts))
	for i, c := range conflicts {
		out[i] = InconsistencyResponse{
			Position: c.Position,
			Counts:   c.Counts,
			ZeroOne:  c.ZeroOne,
		}
	}
	return out
}
