// Package cache provides the redis-backed query-embedding cache shared
// across pipeline replicas.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultEmbeddingTTL is how long a cached query vector stays valid.
const DefaultEmbeddingTTL = 15 * time.Minute

// EmbeddingCache stores query→vector mappings in redis so repeated queries
// skip the embedding provider. All failures degrade to cache misses.
type EmbeddingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbeddingCache creates an EmbeddingCache. A non-positive TTL selects
// DefaultEmbeddingTTL.
func NewEmbeddingCache(client *redis.Client, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &EmbeddingCache{client: client, ttl: ttl}
}

// Get returns a cached embedding vector for the query, if present.
func (c *EmbeddingCache) Get(ctx context.Context, query string) ([]float32, bool) {
	data, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("embedding cache read failed", "error", err)
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		slog.Warn("embedding cache entry malformed", "error", err)
		return nil, false
	}
	return vec, true
}

// Set stores an embedding vector for the query.
func (c *EmbeddingCache) Set(ctx context.Context, query string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(query), data, c.ttl).Err(); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
}

// cacheKey builds a deterministic key: "emb:{sha256(query)[:16]}".
func cacheKey(query string) string {
	h := sha256.Sum256([]byte(query))
	return fmt.Sprintf("emb:%x", h[:16])
}
