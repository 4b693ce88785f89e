package llm

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingEmbedder wraps an Embedder with an LRU cache keyed by input text.
// The composer embeds the same short queries repeatedly (every inbound
// message triggers a memory lookup), so a small cache saves a network round
// trip on the hot path. Entries are full vectors; at dimension 1536 the
// default capacity costs a few MB at most.
type CachingEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachingEmbedder wraps inner with a cache of the given capacity.
func NewCachingEmbedder(inner Embedder, capacity int) (*CachingEmbedder, error) {
	if capacity <= 0 {
		capacity = 512
	}
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, calling through on a miss.
// Errors are never cached.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, vec)
	return vec, nil
}

// Dimension returns the wrapped embedder's dimension.
func (e *CachingEmbedder) Dimension() int { return e.inner.Dimension() }
