// Package market provides market data services
package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/storage"
)

// ProviderStats reports outcome counters for one provider
type ProviderStats struct {
	Provider  string `json:"provider"`
	Attempts  int64  `json:"attempts"`
	Successes int64  `json:"successes"`
	Failures  int64  `json:"failures"`
}

type providerCounters struct {
	attempts  atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
}

// ProviderChain fetches market data through the cache and then an ordered
// list of providers, retrying each before falling through to the next.
// It implements interfaces.MarketDataService.
type ProviderChain struct {
	cache     interfaces.CacheStore
	providers []interfaces.MarketDataProvider
	policy    common.RetryPolicy
	logger    *common.Logger

	mu       sync.Mutex
	counters map[string]*providerCounters
}

// NewProviderChain creates a provider chain. Providers are tried in order.
func NewProviderChain(cache interfaces.CacheStore, providers []interfaces.MarketDataProvider, policy common.RetryPolicy, logger *common.Logger) *ProviderChain {
	c := &ProviderChain{
		cache:     cache,
		providers: providers,
		policy:    policy,
		logger:    logger,
		counters:  make(map[string]*providerCounters, len(providers)),
	}
	for _, p := range providers {
		c.counters[p.Name()] = &providerCounters{}
	}
	return c
}

// Providers returns the provider names in waterfall order
func (c *ProviderChain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Stats returns per-provider counters in waterfall order
func (c *ProviderChain) Stats() []ProviderStats {
	out := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		ctr := c.counter(p.Name())
		out = append(out, ProviderStats{
			Provider:  p.Name(),
			Attempts:  ctr.attempts.Load(),
			Successes: ctr.successes.Load(),
			Failures:  ctr.failures.Load(),
		})
	}
	return out
}

func (c *ProviderChain) counter(name string) *providerCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctr, ok := c.counters[name]
	if !ok {
		ctr = &providerCounters{}
		c.counters[name] = ctr
	}
	return ctr
}

// FetchSeries returns a cached series covering period, or fetches one
func (c *ProviderChain) FetchSeries(ctx context.Context, symbol string, period models.Period) (*models.MarketSeries, error) {
	symbol = normalizeSymbol(symbol)
	ctx, span := common.StartSpan(ctx, "market.fetch_series",
		attribute.String("symbol", symbol),
		attribute.String("period", string(period)))
	defer span.End()

	if cached, ok := storage.GetSeries(ctx, c.cache, symbol); ok && cached.Period.Days() >= period.Days() {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		c.logger.Debug().Str("symbol", symbol).Str("source", cached.Source).Msg("Series cache hit")
		return trimSeries(cached, period), nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	series, err := waterfall(ctx, c, symbol, string(models.PayloadSeries),
		func(ctx context.Context, p interfaces.MarketDataProvider) (*models.MarketSeries, error) {
			s, err := p.FetchSeries(ctx, symbol, period)
			if err != nil {
				return nil, err
			}
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %s series for %s: %v", common.ErrMalformedPayload, p.Name(), symbol, err)
			}
			return s, nil
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	series.Symbol = symbol
	if series.Period == "" {
		series.Period = period
	}
	if err := storage.PutSeries(ctx, c.cache, series); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache series")
	}
	return series, nil
}

// FetchFundamentals returns cached fundamentals, or fetches them
func (c *ProviderChain) FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalInfo, error) {
	symbol = normalizeSymbol(symbol)
	ctx, span := common.StartSpan(ctx, "market.fetch_fundamentals", attribute.String("symbol", symbol))
	defer span.End()

	if cached, ok := storage.GetFundamentals(ctx, c.cache, symbol); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached, nil
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	info, err := waterfall(ctx, c, symbol, string(models.PayloadFundamentals),
		func(ctx context.Context, p interfaces.MarketDataProvider) (*models.FundamentalInfo, error) {
			f, err := p.FetchFundamentals(ctx, symbol)
			if err != nil {
				return nil, err
			}
			if err := f.Validate(); err != nil {
				return nil, fmt.Errorf("%w: %s fundamentals for %s: %v", common.ErrMalformedPayload, p.Name(), symbol, err)
			}
			return f, nil
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	info.Symbol = symbol
	info.ApplyDefaults()
	if err := storage.PutFundamentals(ctx, c.cache, info); err != nil {
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache fundamentals")
	}
	return info, nil
}

// waterfall runs fetch against each provider under the retry policy and
// returns the first success. When every provider is exhausted the result is
// a *common.NoDataError carrying the last provider error.
func waterfall[T any](ctx context.Context, c *ProviderChain, symbol, kind string, fetch func(context.Context, interfaces.MarketDataProvider) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := 0

	for _, p := range c.providers {
		name := p.Name()
		ctr := c.counter(name)

		var result T
		err := c.policy.Do(ctx, func(attempt int) error {
			attempts++
			ctr.attempts.Add(1)

			actx, span := common.StartSpan(ctx, "provider.fetch",
				attribute.String("provider", name),
				attribute.String("kind", kind),
				attribute.String("symbol", symbol),
				attribute.Int("attempt", attempt+1))
			defer span.End()

			r, err := fetch(actx, p)
			if err != nil {
				ctr.failures.Add(1)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				c.logger.Warn().
					Str("provider", name).
					Str("symbol", symbol).
					Str("kind", kind).
					Int("attempt", attempt+1).
					Bool("rate_limited", common.IsRateLimited(err)).
					Err(err).
					Msg("Provider fetch failed")
				return err
			}
			result = r
			return nil
		})

		if err == nil {
			ctr.successes.Add(1)
			c.logger.Debug().Str("provider", name).Str("symbol", symbol).Str("kind", kind).Msg("Provider fetch succeeded")
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no providers configured")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		lastErr = fmt.Errorf("%w: %w", ctxErr, lastErr)
	}

	c.logger.Warn().Str("symbol", symbol).Str("kind", kind).Int("attempts", attempts).Err(lastErr).Msg("All providers exhausted")
	return zero, &common.NoDataError{Symbol: symbol, Kind: kind, Attempts: attempts, Last: lastErr}
}

// trimSeries returns a copy of series limited to the period window ending at
// its last bar
func trimSeries(series *models.MarketSeries, period models.Period) *models.MarketSeries {
	if series.Period == period {
		return series
	}
	last, ok := series.Last()
	if !ok {
		return series
	}
	cutoff := last.Date.AddDate(0, 0, -period.Days())

	out := *series
	out.Period = period
	out.Bars = nil
	for _, b := range series.Bars {
		if b.Date.After(cutoff) {
			out.Bars = append(out.Bars, b)
		}
	}
	return &out
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

var _ interfaces.MarketDataService = (*ProviderChain)(nil)
