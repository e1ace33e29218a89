package validator

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"mercator-hq/arbiter/pkg/model"
)

// DefaultCacheSize is the number of validation results kept by NewCache when
// no size is given.
const DefaultCacheSize = 256

// ContentHash returns the SHA-256 of the definition's canonical JSON encoding.
// Map keys are encoded in sorted order, so equal definitions hash equally.
func ContentHash(def *model.WorkflowDefinition) (string, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Cache memoises workflow validation results by content hash. Once full,
// the least recently used entry is evicted. Safe for concurrent use.
type Cache struct {
	validator  *Validator
	maxEntries int

	mu      sync.Mutex
	entries map[string]*list.Element
	recency *list.List // front is most recently used
	hits    uint64
	misses  uint64
}

type cacheEntry struct {
	key    string
	result Result
}

// NewCache creates a cache in front of v. A nil validator uses the default one.
func NewCache(v *Validator, maxEntries int) *Cache {
	if v == nil {
		v = defaultValidator
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &Cache{
		validator:  v,
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		recency:    list.New(),
	}
}

// Validate returns the cached result for def, validating it on a miss.
func (c *Cache) Validate(def *model.WorkflowDefinition) Result {
	if def == nil {
		return c.validator.ValidateWorkflow(nil)
	}
	key, err := ContentHash(def)
	if err != nil {
		// Not encodable, so not cacheable.
		return c.validator.ValidateWorkflow(def)
	}

	c.mu.Lock()
	if elem, ok := c.entries[key]; ok {
		c.hits++
		c.recency.MoveToFront(elem)
		result := elem.Value.(*cacheEntry).result
		c.mu.Unlock()
		return result
	}
	c.misses++
	c.mu.Unlock()

	result := c.validator.ValidateWorkflow(def)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if c.recency.Len() >= c.maxEntries {
			oldest := c.recency.Back()
			c.recency.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
		c.entries[key] = c.recency.PushFront(&cacheEntry{key: key, result: result})
	}
	return result
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
