package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
)

// RedisCache shares cached availability between API replicas.
type RedisCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a cache writing entries with the given TTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("availability: redis client required")
	}
	return &RedisCache{redis: client, ttl: ttl, prefix: "availability"}
}

func (c *RedisCache) entryKey(doctorID string) string {
	return fmt.Sprintf("%s:%s:windows", c.prefix, doctorID)
}

func (c *RedisCache) genKey(doctorID string) string {
	return fmt.Sprintf("%s:%s:gen", c.prefix, doctorID)
}

func (c *RedisCache) Load(ctx context.Context, doctorID string) ([]directory.WeeklyWindow, int64, bool, error) {
	vals, err := c.redis.MGet(ctx, c.entryKey(doctorID), c.genKey(doctorID)).Result()
	if err != nil {
		return nil, 0, false, fmt.Errorf("availability: redis load: %w", err)
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	var windows []directory.WeeklyWindow
	if err := json.Unmarshal([]byte(raw), &windows); err != nil {
		// Treat a corrupt entry as a miss; the next Store overwrites it.
		return nil, gen, false, nil
	}
	return windows, gen, true, nil
}

func (c *RedisCache) Store(ctx context.Context, doctorID string, generation int64, windows []directory.WeeklyWindow) error {
	data, err := json.Marshal(windows)
	if err != nil {
		return fmt.Errorf("availability: encode windows: %w", err)
	}
	genKey := c.genKey(doctorID)
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.entryKey(doctorID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("availability: redis store: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, doctorID string) error {
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(doctorID))
		pipe.Del(ctx, c.entryKey(doctorID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("availability: redis invalidate: %w", err)
	}
	return nil
}

func parseGeneration(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("availability: bad generation %q: %w", s, err)
	}
	return gen, nil
}
