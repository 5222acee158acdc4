package retriever

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"aria/internal/domain"
)

// QueryCache is a small LRU over retrieval results. The index is built once
// per process, so entries never go stale and no TTL is needed.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string][]domain.RetrievalResult
	order   []string
	maxSize int
}

func NewQueryCache(maxSize int) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &QueryCache{
		entries: make(map[string][]domain.RetrievalResult),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
	}
}

func cacheKey(query string, k int, tagAs string) string {
	data := []byte(query)
	data = append(data, 0, byte(k>>8), byte(k), 0)
	data = append(data, tagAs...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(query string, k int, tagAs string) ([]domain.RetrievalResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, k, tagAs)
	results, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	c.moveToEnd(key)
	return results, true
}

func (c *QueryCache) Put(query string, k int, tagAs string, results []domain.RetrievalResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(query, k, tagAs)

	if _, exists := c.entries[key]; exists {
		c.entries[key] = results
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = results
	c.order = append(c.order, key)
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}
