package framestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vinscan/vinscan/internal/scan"
)

const (
	defaultTTL = 10 * time.Minute

	// Per-device cap on archived frames; the oldest are trimmed first.
	maxArchived = 100
)

// Store archives accepted frames per device in a redis sorted set keyed by
// timestamp. The archive outlives the engine's short in-memory window and
// feeds the frame inspection endpoints.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &Store{redis: redisClient, ttl: ttl}
}

func key(deviceID string) string {
	return fmt.Sprintf("device:%s:frames", deviceID)
}

// Archive stores one accepted frame. Implements scan.Archiver.
func (s *Store) Archive(ctx context.Context, deviceID string, f scan.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	k := key(deviceID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, k, redis.Z{
		Score:  float64(f.Timestamp.UnixMilli()),
		Member: data,
	})
	pipe.ZRemRangeByRank(ctx, k, 0, int64(-(maxArchived + 1)))
	pipe.Expire(ctx, k, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the most recently archived frame, or false when the
// device has none.
func (s *Store) Latest(ctx context.Context, deviceID string) (scan.Frame, bool, error) {
	results, err := s.redis.ZRevRange(ctx, key(deviceID), 0, 0).Result()
	if err != nil {
		return scan.Frame{}, false, err
	}
	if len(results) == 0 {
		return scan.Frame{}, false, nil
	}

	var f scan.Frame
	if err := json.Unmarshal([]byte(results[0]), &f); err != nil {
		return scan.Frame{}, false, err
	}
	return f, true, nil
}

// Range returns archived frames between from and to inclusive, oldest
// first, capped at limit.
func (s *Store) Range(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]scan.Frame, error) {
	if limit <= 0 {
		limit = maxArchived
	}
	opt := &redis.ZRangeBy{
		Min:   strconv.FormatInt(from.UnixMilli(), 10),
		Max:   strconv.FormatInt(to.UnixMilli(), 10),
		Count: int64(limit),
	}

	results, err := s.redis.ZRangeByScore(ctx, key(deviceID), opt).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]scan.Frame, 0, len(results))
	for _, r := range results {
		var f scan.Frame
		if err := json.Unmarshal([]byte(r), &f); err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// Clear drops a device's archive.
func (s *Store) Clear(ctx context.Context, deviceID string) error {
	return s.redis.Del(ctx, key(deviceID)).Err()
}
