package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PayloadKind distinguishes the payload types held in the cache.
type PayloadKind string

const (
	PayloadSeries       PayloadKind = "series"
	PayloadFundamentals PayloadKind = "fundamentals"
)

// CacheKey builds the storage key for a payload kind and symbol.
func CacheKey(kind PayloadKind, symbol string) string {
	return string(kind) + ":" + strings.ToUpper(symbol)
}

// CacheEntry is a cached payload with the time it was fetched. The payload is
// kept encoded so every backend stores the same bytes.
type CacheEntry struct {
	Key       string          `json:"key"`
	Kind      PayloadKind     `json:"kind"`
	Symbol    string          `json:"symbol"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Decode unmarshals the payload into v.
func (e *CacheEntry) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewCacheEntry encodes payload into an entry stamped with fetchedAt.
// Encoding failures are reported so the caller can skip the write.
func NewCacheEntry(kind PayloadKind, symbol string, payload any, fetchedAt time.Time) (*CacheEntry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload for %s: %w", kind, symbol, err)
	}
	symbol = strings.ToUpper(symbol)
	return &CacheEntry{
		Key:       CacheKey(kind, symbol),
		Kind:      kind,
		Symbol:    symbol,
		Payload:   data,
		FetchedAt: fetchedAt,
	}, nil
}
