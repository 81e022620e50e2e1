package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/sift/internal/models"
)

// CacheStore is a TTL bound key/value store for fetched payloads.
// Get never returns an entry older than TTL; stale or unreadable entries are
// evicted and reported as a miss. Put overwrites unconditionally.
// Implementations must be safe for concurrent use.
type CacheStore interface {
	Get(ctx context.Context, kind models.PayloadKind, symbol string) (*models.CacheEntry, bool)
	Put(ctx context.Context, kind models.PayloadKind, symbol string, payload any) error
	Delete(ctx context.Context, kind models.PayloadKind, symbol string) error
	TTL() time.Duration
	Close() error
}
