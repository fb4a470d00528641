package classifier

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// ResultCache is a bounded, LRU-evicted mapping from content_id to a
// prior ClassificationResult. The production classifier is the sole
// owner and caller of this type.
type ResultCache struct {
	mu    sync.RWMutex
	inner *lru.Cache[string, types.ClassificationResult]
}

// NewResultCache builds a cache bounded at size entries.
func NewResultCache(size int) (*ResultCache, error) {
	if size <= 0 {
		size = 1
	}
	inner, err := lru.New[string, types.ClassificationResult](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache{inner: inner}, nil
}

// Get returns the cached result for contentID, if present.
func (c *ResultCache) Get(contentID string) (types.ClassificationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Get(contentID)
}

// Put stores result under its own ContentID.
func (c *ResultCache) Put(result types.ClassificationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Add(result.ContentID, result)
}

// Len reports the number of cached entries, for metrics.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inner.Len()
}
