package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const counterTTL = 7 * 24 * time.Hour

// RedisSink maintains per-device hourly counters for dashboards.
type RedisSink struct {
	redis *redis.Client
	log   *slog.Logger
}

func NewRedisSink(redisClient *redis.Client, log *slog.Logger) *RedisSink {
	if log == nil {
		log = slog.Default()
	}
	return &RedisSink{redis: redisClient, log: log.With("component", "metrics-redis")}
}

func CounterKey(device, date string, hour int) string {
	return fmt.Sprintf("metrics:%s:%s:%02d", device, date, hour)
}

func (s *RedisSink) Record(ctx context.Context, device string, m PerformanceMetric) {
	now := time.Now().UTC()
	key := CounterKey(device, now.Format("2006-01-02"), now.Hour())

	pipe := s.redis.Pipeline()
	pipe.HIncrBy(ctx, key, "scans", 1)
	if m.Accurate {
		pipe.HIncrBy(ctx, key, "successes", 1)
	}
	pipe.HIncrBy(ctx, key, "scan_time_ms_total", m.ScanTime.Milliseconds())
	if m.FalsePositives > 0 {
		pipe.HIncrBy(ctx, key, "false_positives", int64(m.FalsePositives))
	}
	if m.FalseNegatives > 0 {
		pipe.HIncrBy(ctx, key, "false_negatives", int64(m.FalseNegatives))
	}
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Debug("metric write failed", "device", device, "error", err)
	}
}

// Counters reads back one device-hour of counters.
func (s *RedisSink) Counters(ctx context.Context, device string, at time.Time) (map[string]string, error) {
	at = at.UTC()
	key := CounterKey(device, at.Format("2006-01-02"), at.Hour())
	return s.redis.HGetAll(ctx, key).Result()
}
