package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// cacheRecord is the badgerhold representation of a cache entry.
type cacheRecord struct {
	Key       string `badgerhold:"key"`
	Kind      string
	Symbol    string
	Payload   []byte
	FetchedAt time.Time
}

// BadgerCache is a durable CacheStore backed by BadgerHold.
type BadgerCache struct {
	db     *badgerhold.Store
	ttl    time.Duration
	now    func() time.Time
	logger *common.Logger
	mu     sync.Mutex // serialises evictions against writes
}

// NewBadgerCache opens a BadgerHold database at the given directory path.
func NewBadgerCache(logger *common.Logger, path string, ttl time.Duration, opts ...Option) (*BadgerCache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	o := applyOptions(opts)
	logger.Info().Str("path", path).Str("ttl", ttl.String()).Msg("BadgerHold cache opened")

	return &BadgerCache{
		db:     db,
		ttl:    ttl,
		now:    o.now,
		logger: logger,
	}, nil
}

// Get returns the entry for kind/symbol if it is still fresh. Read errors
// and stale records are treated as a miss.
func (c *BadgerCache) Get(_ context.Context, kind models.PayloadKind, symbol string) (*models.CacheEntry, bool) {
	key := models.CacheKey(kind, symbol)

	var rec cacheRecord
	if err := c.db.Get(key, &rec); err != nil {
		if !errors.Is(err, badgerhold.ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache record unreadable, evicting")
			c.evict(key, time.Time{})
		}
		return nil, false
	}

	if len(rec.Payload) == 0 || !common.IsFreshAt(rec.FetchedAt, c.ttl, c.now()) {
		c.logger.Debug().Str("key", key).Msg("Cache entry expired")
		c.evict(key, rec.FetchedAt)
		return nil, false
	}

	return &models.CacheEntry{
		Key:       rec.Key,
		Kind:      models.PayloadKind(rec.Kind),
		Symbol:    rec.Symbol,
		Payload:   rec.Payload,
		FetchedAt: rec.FetchedAt,
	}, true
}

// Put upserts payload under kind/symbol.
func (c *BadgerCache) Put(_ context.Context, kind models.PayloadKind, symbol string, payload any) error {
	entry, err := encodeEntry(kind, symbol, payload, c.now())
	if err != nil {
		return err
	}
	rec := cacheRecord{
		Key:       entry.Key,
		Kind:      string(entry.Kind),
		Symbol:    entry.Symbol,
		Payload:   entry.Payload,
		FetchedAt: entry.FetchedAt,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.db.Upsert(rec.Key, &rec); err != nil {
		return fmt.Errorf("failed to store cache entry '%s': %w", rec.Key, err)
	}
	return nil
}

// Delete removes kind/symbol if present.
func (c *BadgerCache) Delete(_ context.Context, kind models.PayloadKind, symbol string) error {
	key := models.CacheKey(kind, symbol)
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.db.Delete(key, cacheRecord{})
	if err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("failed to delete cache entry '%s': %w", key, err)
	}
	return nil
}

// TTL returns the configured time-to-live.
func (c *BadgerCache) TTL() time.Duration {
	return c.ttl
}

// Close closes the BadgerHold database.
func (c *BadgerCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// evict deletes key unless a newer record than seen has been written since.
// A zero seen time deletes unconditionally.
func (c *BadgerCache) evict(key string, seen time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !seen.IsZero() {
		var current cacheRecord
		if err := c.db.Get(key, &current); err == nil && current.FetchedAt.After(seen) {
			return
		}
	}
	if err := c.db.Delete(key, cacheRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to evict cache entry")
	}
}
