package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SlogSink logs every metric as a structured record.
type SlogSink struct {
	log *slog.Logger
}

func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{log: log.With("component", "metrics")}
}

func (s *SlogSink) Record(ctx context.Context, device string, m PerformanceMetric) {
	s.log.Info("scan metric",
		"device", device,
		"scan_time_ms", m.ScanTime.Milliseconds(),
		"confidence", m.Confidence,
		"accurate", m.Accurate)
}

// MemorySink keeps a bounded in-memory log for the summary endpoint.
type MemorySink struct {
	mu      sync.Mutex
	records []PerformanceMetric
	limit   int
}

func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 1000
	}
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Record(ctx context.Context, device string, m PerformanceMetric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, m)
	if len(s.records) > s.limit {
		s.records = s.records[len(s.records)-s.limit:]
	}
}

func (s *MemorySink) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Summary{Scans: len(s.records)}
	if out.Scans == 0 {
		return out
	}

	var totalTime time.Duration
	var totalConfidence float64
	for _, m := range s.records {
		totalTime += m.ScanTime
		totalConfidence += m.Confidence
		if m.Accurate {
			out.Successes++
		}
		out.FalsePositives += m.FalsePositives
		out.FalseNegatives += m.FalseNegatives
	}
	out.SuccessRate = float64(out.Successes) / float64(out.Scans)
	out.AvgScanTime = totalTime / time.Duration(out.Scans)
	out.AvgConfidence = totalConfidence / float64(out.Scans)
	return out
}

// Fanout forwards every metric to all wrapped sinks.
type Fanout []Sink

func (f Fanout) Record(ctx context.Context, device string, m PerformanceMetric) {
	for _, s := range f {
		s.Record(ctx, device, m)
	}
}
