// Filename: summary/memcache.go
package summary

import (
	"context"
	"sync"

	"github.com/xkilldash9x/lancet-sast/internal/analysis/static/javascript"
)

// MemoryCache is a process-local analysis cache. It backs runs that have no
// persistent cache configured and keeps repeated analyses of identical
// content cheap within one process.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]*javascript.Analysis
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]*javascript.Analysis)}
}

func cacheKey(unitID, contentHash string) string {
	return unitID + "\x00" + contentHash
}

func (c *MemoryCache) Get(_ context.Context, unitID, contentHash string) (*javascript.Analysis, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.m[cacheKey(unitID, contentHash)]
	return a, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, unitID, contentHash string, a *javascript.Analysis) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[cacheKey(unitID, contentHash)] = a
	return nil
}

// Len reports the number of cached analyses.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
