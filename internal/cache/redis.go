package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/smartblur/smartblur/internal/config"
	"github.com/smartblur/smartblur/internal/logger"
	"github.com/smartblur/smartblur/internal/ocr"
	"go.uber.org/zap"
)

// OCRCache stores recognized text regions in Redis keyed by a digest of the
// uploaded image bytes, so re-uploading identical bytes skips inference.
// Every failure path degrades to a cache miss; the cache never makes an
// upload fail. A nil *OCRCache is valid and always misses.
type OCRCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger
	hits   int64
	misses int64
}

// New creates a Redis-backed OCR result cache and verifies the connection
func New(cfg config.CacheConfig, log *logger.Logger) (*OCRCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("OCR cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("default_ttl", cfg.DefaultTTL),
	)

	return &OCRCache{
		client: client,
		config: cfg,
		logger: log,
	}, nil
}

// Digest computes the cache key material for an uploaded image
func Digest(imageBytes []byte) string {
	sum := sha256.Sum256(imageBytes)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached regions for a digest, if present
func (c *OCRCache) Get(ctx context.Context, digest string) ([]ocr.TextRegion, bool) {
	if c == nil {
		return nil, false
	}

	key := c.config.KeyPrefix + digest
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	} else if err != nil {
		c.logger.Error("Cache lookup failed", zap.Error(err))
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	var regions []ocr.TextRegion
	if err := json.Unmarshal([]byte(data), &regions); err != nil {
		c.logger.Error("Failed to unmarshal cached regions", zap.Error(err))
		c.client.Del(ctx, key)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	c.logger.Debug("OCR cache hit", zap.String("digest", digest))
	return regions, true
}

// Set stores regions under a digest with the configured TTL
func (c *OCRCache) Set(ctx context.Context, digest string, regions []ocr.TextRegion) {
	if c == nil {
		return
	}

	data, err := json.Marshal(regions)
	if err != nil {
		c.logger.Error("Failed to marshal regions for cache", zap.Error(err))
		return
	}

	key := c.config.KeyPrefix + digest
	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to store regions in cache", zap.Error(err))
	}
}

// Stats reports hit/miss counters since startup
func (c *OCRCache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Close releases the Redis connection pool
func (c *OCRCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// maskRedisURL hides credentials in log output
func maskRedisURL(url string) string {
	if at := strings.LastIndex(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
