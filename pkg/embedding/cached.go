package embedding

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedProvider wraps another provider with an in-memory TTL cache.
// Sub-queries and the broadened fallback query frequently repeat the same
// text within a short window, so cache hits save a network round trip.
type CachedProvider struct {
	inner EmbeddingProvider
	cache *cache.Cache
}

func NewCachedProvider(inner EmbeddingProvider) *CachedProvider {
	c := cache.New(30*time.Minute, 10*time.Minute)
	return &CachedProvider{
		inner: inner,
		cache: c,
	}
}

func (p *CachedProvider) Generate(ctx context.Context, text string, taskType string) (*Result, error) {
	key := cacheKey(text, taskType)
	if x, found := p.cache.Get(key); found {
		return x.(*Result), nil
	}

	res, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}

	p.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

func cacheKey(text, taskType string) string {
	sum := md5.Sum([]byte(taskType + "|" + text))
	return hex.EncodeToString(sum[:])
}
