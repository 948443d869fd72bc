// README: Redis cache of raw model output keyed by the aligned feature vector.
package prediction

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"taxieta/internal/modules/features"
)

const (
	cacheKeyPrefix  = "taxieta:prediction:"
	defaultCacheTTL = 24 * time.Hour
)

// Cache stores log durations for vectors already seen. A miss is (0, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, logDuration float64) error
}

type RedisCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCache(redis *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{redis: redis, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (float64, bool, error) {
	raw, err := c.redis.Get(ctx, cacheKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, logDuration float64) error {
	return c.redis.Set(ctx, cacheKeyPrefix+key, strconv.FormatFloat(logDuration, 'g', -1, 64), c.ttl).Err()
}

// VectorKey hashes the exact bit patterns of v together with the schema, so a
// new model artifact with different columns never reads old entries.
func VectorKey(schema features.Schema, v features.Vector) string {
	h := sha256.New()
	for _, c := range schema {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	var buf [8]byte
	for _, x := range v {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
