package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ecoaudit/scanner/models"
)

const (
	sweepInterval = 5 * time.Minute
	retention     = time.Hour
)

type entry struct {
	response *models.ScanResponse
	storedAt time.Time
}

// Cache keeps recent scan responses keyed by request so repeated audits of
// the same page within a client-chosen max age skip the browser entirely.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxEntries int
	now        func() time.Time

	done chan struct{}
	once sync.Once
}

// New creates a Cache holding at most maxEntries responses. A background
// sweeper drops entries older than an hour until Close is called.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Key derives the cache key for a scan request. Every option that changes
// what the page fetches is part of the key: stealth, extra headers (names
// are case-insensitive) and the action list. Surrounding whitespace and a
// trailing slash on the URL do not produce distinct keys.
func Key(req *models.ScanRequest) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimRight(strings.TrimSpace(req.URL), "/")))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatBool(req.Stealth)))
	h.Write([]byte("|"))
	if len(req.Headers) > 0 {
		headers := make(map[string]string, len(req.Headers))
		for k, v := range req.Headers {
			headers[strings.ToLower(k)] = v
		}
		// Map keys marshal sorted.
		b, _ := json.Marshal(headers)
		h.Write(b)
	}
	h.Write([]byte("|"))
	if len(req.Actions) > 0 {
		b, _ := json.Marshal(req.Actions)
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key when it is younger than maxAge.
// A non-positive maxAge disables the lookup.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.ScanResponse, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.storedAt) > maxAge {
		return nil, false
	}
	return e.response, true
}

// Set stores resp under key, evicting the oldest entry when full.
func (c *Cache) Set(key string, resp *models.ScanResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = &entry{response: resp, storedAt: c.now()}
}

// Len reports the number of cached responses.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldestAt  time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.storedAt
		}
	}
	delete(c.entries, oldestKey)
}

func (c *Cache) sweep() {
	cutoff := c.now().Add(-retention)
	c.mu.Lock()
	for k, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}
