package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat.dev/pdf-rag/internal/logger"
)

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	readErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestCachedEmbedderServesRepeats(t *testing.T) {
	next := &countingEmbedder{}
	cache := newMapCache()
	e := NewCachedEmbedder(next, cache, "openai:text-embedding-3-small", time.Hour, logger.Nop())

	first, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	require.Len(t, cache.data, 1)
	for key, ttl := range cache.ttls {
		assert.Contains(t, key, "emb:openai:text-embedding-3-small:")
		assert.Equal(t, time.Hour, ttl)
	}

	_, err = e.Embed(context.Background(), "world")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedEmbedderFallsThroughOnCacheErrors(t *testing.T) {
	next := &countingEmbedder{}
	cache := newMapCache()
	cache.readErr = errors.New("connection refused")
	e := NewCachedEmbedder(next, cache, "ns", time.Minute, logger.Nop())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, vec)
	assert.Equal(t, 1, next.calls)
}

func TestCachedEmbedderIgnoresCorruptEntries(t *testing.T) {
	next := &countingEmbedder{}
	cache := newMapCache()
	e := NewCachedEmbedder(next, cache, "ns", time.Minute, logger.Nop())
	cache.data[e.key("hello")] = []byte("not json")

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1}, vec)
	assert.Equal(t, 1, next.calls)
}

func TestCachedEmbedderPropagatesErrors(t *testing.T) {
	boom := errors.New("provider down")
	cache := newMapCache()
	e := NewCachedEmbedder(&countingEmbedder{err: boom}, cache, "ns", time.Minute, logger.Nop())

	_, err := e.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, cache.data)
}
