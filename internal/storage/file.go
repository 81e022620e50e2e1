package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// FileCache stores one JSON file per cache key. Writes go through a temp
// file and rename so a reader never sees a partial entry.
type FileCache struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	logger *common.Logger
	mu     sync.Mutex // serialises evictions against writes
}

// NewFileCache opens (creating if needed) a file cache rooted at path.
func NewFileCache(logger *common.Logger, path string, ttl time.Duration, opts ...Option) (*FileCache, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache path %s: %w", path, err)
	}
	o := applyOptions(opts)

	logger.Info().Str("path", path).Str("ttl", ttl.String()).Msg("File cache opened")
	return &FileCache{
		dir:    path,
		ttl:    ttl,
		now:    o.now,
		logger: logger,
	}, nil
}

// Get reads and validates the entry for kind/symbol. Unreadable, corrupt or
// stale files are removed and reported as a miss.
func (c *FileCache) Get(_ context.Context, kind models.PayloadKind, symbol string) (*models.CacheEntry, bool) {
	key := models.CacheKey(kind, symbol)
	path := filePath(c.dir, key)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache file unreadable, treating as miss")
		}
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key || len(entry.Payload) == 0 {
		c.logger.Warn().Str("key", key).Msg("Cache file corrupt, evicting")
		c.evict(path, data)
		return nil, false
	}

	if !common.IsFreshAt(entry.FetchedAt, c.ttl, c.now()) {
		c.logger.Debug().Str("key", key).Msg("Cache entry expired")
		c.evict(path, data)
		return nil, false
	}
	return &entry, true
}

// Put writes payload atomically, replacing any previous file.
func (c *FileCache) Put(_ context.Context, kind models.PayloadKind, symbol string, payload any) error {
	entry, err := encodeEntry(kind, symbol, payload, c.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return writeAtomic(c.dir, filePath(c.dir, entry.Key), data)
}

// Delete removes the file for kind/symbol if present.
func (c *FileCache) Delete(_ context.Context, kind models.PayloadKind, symbol string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(filePath(c.dir, models.CacheKey(kind, symbol)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// TTL returns the configured time-to-live.
func (c *FileCache) TTL() time.Duration {
	return c.ttl
}

// Purge removes every cache file and returns the count.
func (c *FileCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if os.Remove(filepath.Join(c.dir, e.Name())) == nil {
			count++
		}
	}
	return count
}

// Close is a no-op for file-based storage.
func (c *FileCache) Close() error {
	return nil
}

// evict removes path unless another writer replaced its contents since seen
// was read.
func (c *FileCache) evict(path string, seen []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	current, err := os.ReadFile(path)
	if err != nil || string(current) != string(seen) {
		return
	}
	os.Remove(path)
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_", "^", "_")
	return r.Replace(key)
}

func filePath(dir, key string) string {
	return filepath.Join(dir, sanitizeKey(key)+".json")
}

func writeAtomic(dir, target string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
