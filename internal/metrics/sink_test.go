package metrics

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemorySinkSummary(t *testing.T) {
	sink := NewMemorySink(10)
	ctx := context.Background()

	sink.Record(ctx, "cam-1", PerformanceMetric{ScanTime: 100 * time.Millisecond, Confidence: 0.9, Accurate: true})
	sink.Record(ctx, "cam-1", PerformanceMetric{ScanTime: 300 * time.Millisecond, Confidence: 0.7, Accurate: true})
	sink.Record(ctx, "cam-1", PerformanceMetric{ScanTime: 200 * time.Millisecond, Confidence: 0, FalseNegatives: 1})

	got := sink.Summary()
	if got.Scans != 3 || got.Successes != 2 {
		t.Errorf("Scans/Successes = %d/%d, want 3/2", got.Scans, got.Successes)
	}
	if math.Abs(got.SuccessRate-2.0/3.0) > 1e-9 {
		t.Errorf("SuccessRate = %v", got.SuccessRate)
	}
	if got.AvgScanTime != 200*time.Millisecond {
		t.Errorf("AvgScanTime = %v, want 200ms", got.AvgScanTime)
	}
	if got.FalseNegatives != 1 {
		t.Errorf("FalseNegatives = %d, want 1", got.FalseNegatives)
	}
}

func TestMemorySinkBounded(t *testing.T) {
	sink := NewMemorySink(5)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		sink.Record(ctx, "cam-1", PerformanceMetric{Accurate: true})
	}
	if got := sink.Summary().Scans; got != 5 {
		t.Errorf("Scans = %d, want bounded at 5", got)
	}
}

func TestMemorySinkEmptySummary(t *testing.T) {
	got := NewMemorySink(5).Summary()
	if got.Scans != 0 || got.SuccessRate != 0 {
		t.Errorf("empty summary = %+v", got)
	}
}

func TestFanoutForwardsToAllSinks(t *testing.T) {
	a := NewMemorySink(10)
	b := NewMemorySink(10)
	Fanout{a, b}.Record(context.Background(), "cam-1", PerformanceMetric{Accurate: true})

	if a.Summary().Scans != 1 || b.Summary().Scans != 1 {
		t.Error("both sinks should have received the metric")
	}
}

func TestRedisSinkCounters(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisSink(client, nil)
	ctx := context.Background()

	sink.Record(ctx, "cam-1", PerformanceMetric{ScanTime: 120 * time.Millisecond, Accurate: true})
	sink.Record(ctx, "cam-1", PerformanceMetric{ScanTime: 80 * time.Millisecond, FalsePositives: 1})

	counters, err := sink.Counters(ctx, "cam-1", time.Now())
	if err != nil {
		t.Fatalf("Counters: %v", err)
	}
	if counters["scans"] != "2" {
		t.Errorf("scans = %q, want 2", counters["scans"])
	}
	if counters["successes"] != "1" {
		t.Errorf("successes = %q, want 1", counters["successes"])
	}
	if counters["scan_time_ms_total"] != "200" {
		t.Errorf("scan_time_ms_total = %q, want 200", counters["scan_time_ms_total"])
	}
	if counters["false_positives"] != "1" {
		t.Errorf("false_positives = %q, want 1", counters["false_positives"])
	}

	key := CounterKey("cam-1", time.Now().UTC().Format("2006-01-02"), time.Now().UTC().Hour())
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Errorf("counter key TTL = %v, want set", ttl)
	}
}
