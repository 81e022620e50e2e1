package storage

import (
	"context"
	"sync"
	"time"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// MemoryCache is an in-process CacheStore backed by a map.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
	ttl     time.Duration
	now     func() time.Time
	logger  *common.Logger
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(logger *common.Logger, ttl time.Duration, opts ...Option) *MemoryCache {
	o := applyOptions(opts)
	return &MemoryCache{
		entries: make(map[string]*models.CacheEntry),
		ttl:     ttl,
		now:     o.now,
		logger:  logger,
	}
}

// Get returns the entry for kind/symbol if it is still fresh.
func (c *MemoryCache) Get(_ context.Context, kind models.PayloadKind, symbol string) (*models.CacheEntry, bool) {
	key := models.CacheKey(kind, symbol)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !common.IsFreshAt(entry.FetchedAt, c.ttl, c.now()) {
		c.mu.Lock()
		// Only evict if a concurrent Put has not replaced it
		if current, ok := c.entries[key]; ok && current == entry {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.logger.Debug().Str("key", key).Msg("Cache entry expired")
		return nil, false
	}
	return entry, true
}

// Put stores payload, replacing any previous entry.
func (c *MemoryCache) Put(_ context.Context, kind models.PayloadKind, symbol string, payload any) error {
	entry, err := encodeEntry(kind, symbol, payload, c.now())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[entry.Key] = entry
	c.mu.Unlock()
	return nil
}

// Delete removes kind/symbol if present.
func (c *MemoryCache) Delete(_ context.Context, kind models.PayloadKind, symbol string) error {
	c.mu.Lock()
	delete(c.entries, models.CacheKey(kind, symbol))
	c.mu.Unlock()
	return nil
}

// TTL returns the configured time-to-live.
func (c *MemoryCache) TTL() time.Duration {
	return c.ttl
}

// Len returns the number of stored entries, fresh or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]*models.CacheEntry)
	c.mu.Unlock()
	return nil
}
