package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"docchat.dev/pdf-rag/internal/logger"
)

// ErrCacheMiss is returned by a VectorCache that holds no value for a key.
var ErrCacheMiss = errors.New("cache miss")

type VectorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder serves repeated texts from a cache. Cache failures are logged
// and fall through to the wrapped embedder.
type CachedEmbedder struct {
	next      Embedder
	cache     VectorCache
	namespace string
	ttl       time.Duration
	log       *logger.Logger
}

func NewCachedEmbedder(next Embedder, cache VectorCache, namespace string, ttl time.Duration, log *logger.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:      next,
		cache:     cache,
		namespace: namespace,
		ttl:       ttl,
		log:       log.With("service", "EmbeddingCache"),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var vec []float32
		if uErr := json.Unmarshal(raw, &vec); uErr == nil && len(vec) > 0 {
			return vec, nil
		}
		c.log.Warn("Discarding undecodable cached embedding", "key", key)
	case !errors.Is(err, ErrCacheMiss):
		c.log.Warn("Embedding cache read failed", "key", key, "error", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if raw, mErr := json.Marshal(vec); mErr == nil {
		if sErr := c.cache.Set(ctx, key, raw, c.ttl); sErr != nil {
			c.log.Warn("Embedding cache write failed", "key", key, "error", sErr)
		}
	}
	return vec, nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.namespace + ":" + hex.EncodeToString(sum[:])
}

// RedisCache is a VectorCache on a Redis server.
type RedisCache struct {
	rdb *goredis.Client
}

// NewRedisCache connects to the server at a redis:// URL and pings it.
func NewRedisCache(ctx context.Context, url string) (*RedisCache, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("missing redis url")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	return raw, err
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
