package strategies

import (
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

var _ ports.MatchResultCache = (*MatchResultCache)(nil)

type cacheKey struct {
	executionID string
	matchKey    string
}

// MatchResultCache keeps match-level result sets for the lifetime of an
// execution. Entries are partitioned by execution id, so concurrent
// executions sharing one cache never see each other's results.
// Concurrent requests for the same uncached entry are collapsed into a
// single computation.
//
// The zero value is not usable; create caches with NewMatchResultCache.
type MatchResultCache struct {
	mu      sync.RWMutex
	entries map[cacheKey][]domain.ValidationResult
	// sf prevents duplicate match computations when the orchestrator
	// validates several teams of one match in parallel.
	sf singleflight.Group
}

// NewMatchResultCache creates an empty cache.
func NewMatchResultCache() *MatchResultCache {
	return &MatchResultCache{entries: make(map[cacheKey][]domain.ValidationResult)}
}

// GetOrCompute implements ports.MatchResultCache. Errors are not cached.
func (c *MatchResultCache) GetOrCompute(
	executionID, matchKey string,
	compute func() ([]domain.ValidationResult, error),
) ([]domain.ValidationResult, bool, error) {
	key := cacheKey{executionID: executionID, matchKey: matchKey}
	if results, ok := c.get(key); ok {
		return slices.Clone(results), true, nil
	}

	v, err, _ := c.sf.Do(executionID+"\x00"+matchKey, func() (any, error) {
		// Re-check inside the flight; a previous flight may have filled it.
		if results, ok := c.get(key); ok {
			return results, nil
		}
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = results
		c.mu.Unlock()
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return slices.Clone(v.([]domain.ValidationResult)), false, nil
}

func (c *MatchResultCache) get(key cacheKey) ([]domain.ValidationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results, ok := c.entries[key]
	return results, ok
}

// Clear implements ports.MatchResultCache.
func (c *MatchResultCache) Clear(executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.executionID == executionID {
			delete(c.entries, key)
		}
	}
}

// Reset implements ports.MatchResultCache.
func (c *MatchResultCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey][]domain.ValidationResult)
}

// Len returns the number of cached match entries across executions.
func (c *MatchResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
