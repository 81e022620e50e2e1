package storage

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
)

// Backend type constants.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

// NewCacheStore creates a cache store based on the configuration.
// Supported backends: "memory" (default), "file", "badger".
func NewCacheStore(logger *common.Logger, config common.CacheConfig, opts ...Option) (interfaces.CacheStore, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Backend))
	if backend == "" {
		backend = BackendMemory
	}
	ttl := config.GetTTL()

	switch backend {
	case BackendMemory:
		logger.Info().Str("ttl", ttl.String()).Msg("Memory cache opened")
		return NewMemoryCache(logger, ttl, opts...), nil

	case BackendFile:
		return NewFileCache(logger, config.Path, ttl, opts...)

	case BackendBadger:
		return NewBadgerCache(logger, config.Path, ttl, opts...)

	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, file, badger)", backend)
	}
}
