package metrics

import (
	"context"
	"time"
)

// PerformanceMetric is one session's observability record. Metrics never
// gate behavior; a sink that drops them changes nothing.
type PerformanceMetric struct {
	ScanTime       time.Duration `json:"scan_time_ms"`
	Confidence     float64       `json:"confidence"`
	Accurate       bool          `json:"accurate"`
	FalsePositives int           `json:"false_positives"`
	FalseNegatives int           `json:"false_negatives"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Sink receives metrics fire-and-forget. Implementations must never block
// the scan path; errors are theirs to log and swallow.
type Sink interface {
	Record(ctx context.Context, device string, m PerformanceMetric)
}

// Summary aggregates a session-scoped metric log.
type Summary struct {
	Scans          int           `json:"scans"`
	Successes      int           `json:"successes"`
	SuccessRate    float64       `json:"success_rate"`
	AvgScanTime    time.Duration `json:"avg_scan_time_ms"`
	AvgConfidence  float64       `json:"avg_confidence"`
	FalsePositives int           `json:"false_positives"`
	FalseNegatives int           `json:"false_negatives"`
}
