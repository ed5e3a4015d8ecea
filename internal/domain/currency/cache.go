package currency

import (
	"context"
	"sync"
)

// MemoryFetchedCache is an in-process FetchedCache. Its contents are lost on
// restart, which only costs repeated provider requests.
type MemoryFetchedCache struct {
	mu      sync.RWMutex
	fetched map[string]map[string]struct{}
}

func NewMemoryFetchedCache() *MemoryFetchedCache {
	return &MemoryFetchedCache{fetched: make(map[string]map[string]struct{})}
}

func (c *MemoryFetchedCache) FetchedDates(_ context.Context, pair Pair, dates []string) (map[string]bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]bool, len(dates))
	set := c.fetched[pair.Key()]
	for _, d := range dates {
		if _, ok := set[d]; ok {
			out[d] = true
		}
	}
	return out, nil
}

func (c *MemoryFetchedCache) MarkFetched(_ context.Context, pair Pair, dates []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.fetched[pair.Key()]
	if !ok {
		set = make(map[string]struct{}, len(dates))
		c.fetched[pair.Key()] = set
	}
	for _, d := range dates {
		set[d] = struct{}{}
	}
	return nil
}
