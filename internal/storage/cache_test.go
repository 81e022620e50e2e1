package storage

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
)

// fakeClock is a settable time source shared with the cache under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var t0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

type backendFactory func(t *testing.T, clock *fakeClock) interfaces.CacheStore

func backends() map[string]backendFactory {
	logger := common.NewSilentLogger()
	return map[string]backendFactory{
		"memory": func(t *testing.T, clock *fakeClock) interfaces.CacheStore {
			return NewMemoryCache(logger, 600*time.Second, WithClock(clock.Now))
		},
		"file": func(t *testing.T, clock *fakeClock) interfaces.CacheStore {
			c, err := NewFileCache(logger, t.TempDir(), 600*time.Second, WithClock(clock.Now))
			require.NoError(t, err)
			return c
		},
		"badger": func(t *testing.T, clock *fakeClock) interfaces.CacheStore {
			c, err := NewBadgerCache(logger, t.TempDir(), 600*time.Second, WithClock(clock.Now))
			require.NoError(t, err)
			t.Cleanup(func() { c.Close() })
			return c
		},
	}
}

func testSeries(symbol string, closes ...float64) *models.MarketSeries {
	s := &models.MarketSeries{Symbol: symbol, Source: "test", Period: models.Period6Months}
	for i, c := range closes {
		s.Bars = append(s.Bars, models.Bar{
			Date:   t0.AddDate(0, 0, i-len(closes)),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		})
	}
	return s
}

func TestCache_TTLWindow(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: t0}
			cache := factory(t, clock)

			require.NoError(t, PutSeries(ctx, cache, testSeries("AAA", 10, 11, 12)))

			clock.Set(t0.Add(500 * time.Second))
			got, ok := GetSeries(ctx, cache, "AAA")
			require.True(t, ok, "entry should be fresh at t0+500s")
			assert.Equal(t, []float64{10, 11, 12}, got.Closes())

			clock.Set(t0.Add(600 * time.Second))
			_, ok = GetSeries(ctx, cache, "AAA")
			assert.False(t, ok, "entry must be absent at t0+ttl")

			// Evicted: rewinding the clock does not resurrect it
			clock.Set(t0)
			_, ok = GetSeries(ctx, cache, "AAA")
			assert.False(t, ok, "stale entry should have been evicted")
		})
	}
}

func TestCache_LastWriterWins(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{now: t0}
			cache := factory(t, clock)

			require.NoError(t, PutSeries(ctx, cache, testSeries("AAA", 1, 2)))
			clock.Set(t0.Add(time.Second))
			require.NoError(t, PutSeries(ctx, cache, testSeries("AAA", 5, 6, 7)))

			got, ok := GetSeries(ctx, cache, "aaa")
			require.True(t, ok)
			assert.Equal(t, []float64{5, 6, 7}, got.Closes())

			entry, ok := cache.Get(ctx, models.PayloadSeries, "AAA")
			require.True(t, ok)
			assert.Equal(t, t0.Add(time.Second).Unix(), entry.FetchedAt.Unix())
		})
	}
}

func TestCache_KindsAreSeparate(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, &fakeClock{now: t0})

			require.NoError(t, PutFundamentals(ctx, cache, &models.FundamentalInfo{Symbol: "AAA", Sector: "Technology", ForwardPE: 20}))

			_, ok := GetSeries(ctx, cache, "AAA")
			assert.False(t, ok)

			info, ok := GetFundamentals(ctx, cache, "AAA")
			require.True(t, ok)
			assert.Equal(t, 20.0, info.ForwardPE)

			require.NoError(t, cache.Delete(ctx, models.PayloadFundamentals, "AAA"))
			_, ok = GetFundamentals(ctx, cache, "AAA")
			assert.False(t, ok)
			assert.NoError(t, cache.Delete(ctx, models.PayloadFundamentals, "AAA"))
		})
	}
}

func TestCache_NonFinitePayloadIsSanitized(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, &fakeClock{now: t0})

			info := &models.FundamentalInfo{Symbol: "AAA", Sector: "Energy", Beta: math.NaN(), ForwardPE: math.Inf(1)}
			require.NoError(t, PutFundamentals(ctx, cache, info))

			got, ok := GetFundamentals(ctx, cache, "AAA")
			require.True(t, ok)
			assert.Equal(t, 0.0, got.Beta)
			assert.Equal(t, 0.0, got.ForwardPE)
		})
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cache := factory(t, &fakeClock{now: t0})

			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < 20; i++ {
						symbol := fmt.Sprintf("S%c", 'A'+rune(i%4))
						_ = PutSeries(ctx, cache, testSeries(symbol, float64(w+1), float64(i+1)))
						if got, ok := GetSeries(ctx, cache, symbol); ok {
							assert.Len(t, got.Bars, 2)
						}
					}
				}(w)
			}
			wg.Wait()

			for i := 0; i < 4; i++ {
				_, ok := GetSeries(ctx, cache, fmt.Sprintf("S%c", 'A'+rune(i)))
				assert.True(t, ok)
			}
		})
	}
}

func TestFileCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cache, err := NewFileCache(common.NewSilentLogger(), dir, time.Hour)
	require.NoError(t, err)

	require.NoError(t, PutSeries(ctx, cache, testSeries("AAA", 1, 2, 3)))
	path := filePath(dir, models.CacheKey(models.PayloadSeries, "AAA"))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, ok := GetSeries(ctx, cache, "AAA")
	assert.False(t, ok)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupt file should be evicted")

	require.NoError(t, PutSeries(ctx, cache, testSeries("AAA", 4)))
	assert.Equal(t, 1, cache.Purge())
}

func TestGetSeries_UndecodablePayloadIsMiss(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(common.NewSilentLogger(), time.Hour)

	require.NoError(t, cache.Put(ctx, models.PayloadSeries, "AAA", map[string]any{"bars": "nope"}))
	_, ok := GetSeries(ctx, cache, "AAA")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_PutNilPayload(t *testing.T) {
	cache := NewMemoryCache(common.NewSilentLogger(), time.Hour)
	err := cache.Put(context.Background(), models.PayloadSeries, "AAA", nil)
	assert.ErrorIs(t, err, common.ErrSerialization)
}

func TestNewCacheStore(t *testing.T) {
	logger := common.NewSilentLogger()

	store, err := NewCacheStore(logger, common.CacheConfig{TTL: "5m"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, store)
	assert.Equal(t, 5*time.Minute, store.TTL())

	store, err = NewCacheStore(logger, common.CacheConfig{Backend: "FILE", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileCache{}, store)

	_, err = NewCacheStore(logger, common.CacheConfig{Backend: "redis"})
	assert.Error(t, err)
}
