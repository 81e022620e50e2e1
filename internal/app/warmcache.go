package app

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
)

// warmCache pre-fetches series and fundamentals for the universe so the
// first screen is served from cache. Fresh entries are cache hits and cost
// nothing.
func warmCache(ctx context.Context, market interfaces.MarketDataService, universe []string, period models.Period, workers int, logger *common.Logger) {
	if os.Getenv("SIFT_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via SIFT_WARM_CACHE=off")
		return
	}
	if len(universe) == 0 {
		logger.Info().Msg("Warm cache: empty universe, skipping")
		return
	}
	if workers < 1 {
		workers = 1
	}

	start := time.Now()
	logger.Info().Int("symbols", len(universe)).Str("period", string(period)).Msg("Warm cache: starting")

	var warmed, failed atomic.Int32
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

feed:
	for _, symbol := range universe {
		select {
		case <-ctx.Done():
			break feed
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := market.FetchSeries(ctx, symbol, period); err != nil {
				failed.Add(1)
				logger.Debug().Str("symbol", symbol).Err(err).Msg("Warm cache: series unavailable")
				return
			}
			// Fundamentals are optional for scoring
			if _, err := market.FetchFundamentals(ctx, symbol); err != nil {
				logger.Debug().Str("symbol", symbol).Err(err).Msg("Warm cache: fundamentals unavailable")
			}
			warmed.Add(1)
		}(symbol)
	}
	wg.Wait()

	logger.Info().
		Int("warmed", int(warmed.Load())).
		Int("failed", int(failed.Load())).
		Bool("cancelled", ctx.Err() != nil).
		Str("elapsed", time.Since(start).String()).
		Msg("Warm cache: complete")
}
