package storage

import (
	"context"

	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
)

// GetSeries returns a cached series. A payload that no longer decodes is
// evicted and reported as a miss.
func GetSeries(ctx context.Context, cache interfaces.CacheStore, symbol string) (*models.MarketSeries, bool) {
	entry, ok := cache.Get(ctx, models.PayloadSeries, symbol)
	if !ok {
		return nil, false
	}
	var series models.MarketSeries
	if err := entry.Decode(&series); err != nil || series.Validate() != nil {
		_ = cache.Delete(ctx, models.PayloadSeries, symbol)
		return nil, false
	}
	return &series, true
}

// PutSeries caches a series.
func PutSeries(ctx context.Context, cache interfaces.CacheStore, series *models.MarketSeries) error {
	return cache.Put(ctx, models.PayloadSeries, series.Symbol, series)
}

// GetFundamentals returns cached fundamentals. A payload that no longer
// decodes is evicted and reported as a miss.
func GetFundamentals(ctx context.Context, cache interfaces.CacheStore, symbol string) (*models.FundamentalInfo, bool) {
	entry, ok := cache.Get(ctx, models.PayloadFundamentals, symbol)
	if !ok {
		return nil, false
	}
	var info models.FundamentalInfo
	if err := entry.Decode(&info); err != nil || info.Symbol == "" {
		_ = cache.Delete(ctx, models.PayloadFundamentals, symbol)
		return nil, false
	}
	return &info, true
}

// PutFundamentals caches fundamentals.
func PutFundamentals(ctx context.Context, cache interfaces.CacheStore, info *models.FundamentalInfo) error {
	return cache.Put(ctx, models.PayloadFundamentals, info.Symbol, info)
}
