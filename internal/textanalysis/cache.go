package textanalysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/domain"
)

// ResultCache is a shared second-level store of analysis results.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]Entity, bool, error)
	Set(ctx context.Context, key string, entities []Entity) error
}

// RedisCache stores analysis results in Redis.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// CachedAnalysis represents a cached analysis result with metadata
type CachedAnalysis struct {
	Entities  []Entity  `json:"entities"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{redis: client, defaultTTL: ttl}
}

// Get retrieves a cached analysis
func (c *RedisCache) Get(ctx context.Context, key string) ([]Entity, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	var cached CachedAnalysis
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return cached.Entities, true, nil
}

// Set caches an analysis
func (c *RedisCache) Set(ctx context.Context, key string, entities []Entity) error {
	now := time.Now()
	cached := CachedAnalysis{
		Entities:  entities,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis cache data: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.defaultTTL).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	MemorySize int   `json:"memory_size"`
}

// CachingAnalyzer memoises another analyzer. Results are looked up in an
// in-memory LRU first and then in the optional shared cache. Keys include a
// namespace so results from different catalogs never mix.
type CachingAnalyzer struct {
	next      Analyzer
	memory    *expirable.LRU[string, []Entity]
	shared    ResultCache
	namespace string
	logger    *logrus.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachingAnalyzer wraps next. shared may be nil.
func NewCachingAnalyzer(next Analyzer, namespace string, maxItems int, ttl time.Duration, shared ResultCache, logger *logrus.Logger) *CachingAnalyzer {
	if maxItems <= 0 {
		maxItems = 1000
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachingAnalyzer{
		next:      next,
		memory:    expirable.NewLRU[string, []Entity](maxItems, nil, ttl),
		shared:    shared,
		namespace: namespace,
		logger:    logger,
	}
}

// Analyze returns a cached result or delegates to the wrapped analyzer.
func (c *CachingAnalyzer) Analyze(ctx context.Context, text string) ([]Entity, error) {
	key := c.key(text)
	if entities, ok := c.lookup(ctx, key); ok {
		return entities, nil
	}

	entities, err := c.next.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, entities)
	return copyEntities(entities), nil
}

// AnalyzeBatch serves cached texts locally and sends only the misses to the
// wrapped analyzer.
func (c *CachingAnalyzer) AnalyzeBatch(ctx context.Context, texts []string) ([][]Entity, error) {
	out := make([][]Entity, len(texts))
	keys := make([]string, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, text := range texts {
		keys[i] = c.key(text)
		if entities, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = entities
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	results, err := AnalyzeAll(ctx, c.next, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		c.store(ctx, keys[i], results[j])
		out[i] = copyEntities(results[j])
	}
	return out, nil
}

// Stats returns hit and miss counters.
func (c *CachingAnalyzer) Stats() CacheStats {
	return CacheStats{
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		MemorySize: c.memory.Len(),
	}
}

func (c *CachingAnalyzer) lookup(ctx context.Context, key string) ([]Entity, bool) {
	if entities, ok := c.memory.Get(key); ok {
		c.hits.Add(1)
		return copyEntities(entities), true
	}
	if c.shared != nil {
		entities, ok, err := c.shared.Get(ctx, key)
		if err != nil {
			c.logger.WithError(err).Warn("Shared analysis cache lookup failed")
		} else if ok {
			c.hits.Add(1)
			c.memory.Add(key, copyEntities(entities))
			return entities, true
		}
	}
	c.misses.Add(1)
	return nil, false
}

func (c *CachingAnalyzer) store(ctx context.Context, key string, entities []Entity) {
	c.memory.Add(key, copyEntities(entities))
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, entities); err != nil {
			// Cache failures never fail the analysis
			c.logger.WithError(err).Warn("Failed to cache analysis result")
		}
	}
}

func (c *CachingAnalyzer) key(text string) string {
	sum := sha256.Sum256([]byte(c.namespace + "\x00" + text))
	return "analysis:" + hex.EncodeToString(sum[:])
}

func copyEntities(entities []Entity) []Entity {
	if entities == nil {
		return nil
	}
	return append([]Entity(nil), entities...)
}
