package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/sift/internal/models"
)

// MarketDataService fetches canonical market data through the provider chain
type MarketDataService interface {
	// FetchSeries returns a cached or freshly fetched series
	FetchSeries(ctx context.Context, symbol string, period models.Period) (*models.MarketSeries, error)

	// FetchFundamentals returns cached or freshly fetched fundamentals
	FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalInfo, error)
}

// ScreenOptions controls a screening pass. Zero values take configured defaults.
type ScreenOptions struct {
	Workers    int
	TopK       int
	Period     models.Period
	Timeout    time.Duration
	Commentary bool
}

// ScreenerService ranks a candidate universe
type ScreenerService interface {
	Screen(ctx context.Context, universe []string, opts ScreenOptions) (*models.ScreenResult, error)
}

// AnalysisService produces single symbol and batch analysis reports
type AnalysisService interface {
	Analyze(ctx context.Context, query string, commentary bool) (*models.AnalysisReport, error)
	AnalyzeBatch(ctx context.Context, queries []string, commentary bool) (*models.BatchAnalysis, error)
}

// OverviewService summarises benchmark indices and sector ETFs
type OverviewService interface {
	Indices(ctx context.Context) ([]*models.IndexSnapshot, error)
	Sectors(ctx context.Context) ([]*models.SectorPerformance, error)
}
