// Package storage provides CacheStore backends for fetched market payloads.
package storage

import (
	"fmt"
	"time"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// Option configures a cache backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// encodeEntry sanitizes and encodes a payload. Non finite floats are zeroed
// first so encoding cannot fail on them.
func encodeEntry(kind models.PayloadKind, symbol string, payload any, now time.Time) (*models.CacheEntry, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: nil %s payload for %s", common.ErrSerialization, kind, symbol)
	}
	common.SanitizeValue(payload)
	entry, err := models.NewCacheEntry(kind, symbol, payload, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSerialization, err)
	}
	return entry, nil
}
