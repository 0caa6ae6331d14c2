package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/harvest/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.HarvestResponse
	createdAt time.Time
}

// Cache is an in-memory cache of harvest responses keyed by query.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// New creates a Cache holding at most maxEntries responses. A background
// goroutine evicts entries older than ttl every ttl/12 until stop is closed.
func New(maxEntries int, ttl time.Duration, stop <-chan struct{}) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
	if ttl > 0 {
		go c.cleanupLoop(stop)
	}
	return c
}

// Key normalises a query so "Domlur" and " domlur " share an entry.
func Key(q models.Query) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(q.Location), " "))))
	h.Write([]byte("|"))
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(q.Term), " "))))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached response younger than maxAgeMs milliseconds.
// maxAgeMs <= 0 disables the lookup.
func (c *Cache) Get(key string, maxAgeMs int) (*models.HarvestResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	return e.response, true
}

// Set stores a response, evicting the oldest entry when full.
func (c *Cache) Set(key string, resp *models.HarvestResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var (
			oldestKey string
			oldest    time.Time
		)
		for k, e := range c.store {
			if oldestKey == "" || e.createdAt.Before(oldest) {
				oldestKey, oldest = k, e.createdAt
			}
		}
		delete(c.store, oldestKey)
	}

	c.store[key] = &entry{response: resp, createdAt: c.now()}
}

// Len returns the number of cached responses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) evictExpired() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupLoop(stop <-chan struct{}) {
	interval := c.ttl / 12
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-stop:
			return
		}
	}
}
