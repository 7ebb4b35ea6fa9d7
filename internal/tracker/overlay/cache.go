package overlay

import (
	"sync"
	"time"
)

const DefaultTTL = time.Hour

// Cache holds the last successfully validated overlay. It is created by the
// process and injected into a Provider; only confirmed-good documents are
// stored.
type Cache struct {
	TTL time.Duration

	now func() time.Time

	mu        sync.RWMutex
	doc       *Document
	hash      string
	fetchedAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{TTL: ttl, now: time.Now}
}

type cached struct {
	Doc       *Document
	Hash      string
	FetchedAt time.Time
	Fresh     bool
}

func (c *Cache) load() (cached, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.doc == nil {
		return cached{}, false
	}
	return cached{
		Doc:       c.doc,
		Hash:      c.hash,
		FetchedAt: c.fetchedAt,
		Fresh:     c.now().Sub(c.fetchedAt) < c.TTL,
	}, true
}

func (c *Cache) store(doc *Document, hash string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc = doc
	c.hash = hash
	c.fetchedAt = c.now()
	return c.fetchedAt
}

// Invalidate marks the cached document expired. The document itself is kept
// as the stale fallback.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
