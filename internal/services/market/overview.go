package market

import (
	"context"
	"fmt"
	"sync"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/signals"
)

// Instrument is a named benchmark symbol
type Instrument struct {
	Symbol string
	Name   string
}

// DefaultIndices are the benchmark indices summarised by Indices
var DefaultIndices = []Instrument{
	{"^GSPC", "S&P 500"},
	{"^DJI", "Dow Jones Industrial Average"},
	{"^IXIC", "NASDAQ Composite"},
	{"^VIX", "CBOE Volatility Index"},
	{"^TNX", "10-Year Treasury Yield"},
}

// DefaultSectors are the SPDR sector ETFs summarised by Sectors
var DefaultSectors = []Instrument{
	{"XLK", "Technology"},
	{"XLF", "Financials"},
	{"XLV", "Health Care"},
	{"XLE", "Energy"},
	{"XLI", "Industrials"},
	{"XLC", "Communication Services"},
	{"XLP", "Consumer Staples"},
	{"XLY", "Consumer Discretionary"},
	{"XLB", "Materials"},
	{"XLRE", "Real Estate"},
}

const (
	overviewWorkers = 4
	monthBars       = 22
)

// OverviewService summarises indices and sector ETFs through the
// market data service
type OverviewService struct {
	market  interfaces.MarketDataService
	logger  *common.Logger
	indices []Instrument
	sectors []Instrument
}

// NewOverviewService creates a new overview service
func NewOverviewService(market interfaces.MarketDataService, logger *common.Logger) *OverviewService {
	return &OverviewService{
		market:  market,
		logger:  logger,
		indices: DefaultIndices,
		sectors: DefaultSectors,
	}
}

// Indices returns a snapshot for each benchmark index that could be fetched
func (s *OverviewService) Indices(ctx context.Context) ([]*models.IndexSnapshot, error) {
	results := make([]*models.IndexSnapshot, len(s.indices))
	failed := s.forEach(ctx, s.indices, models.Period6Months, func(i int, inst Instrument, series *models.MarketSeries) {
		results[i] = indexSnapshot(inst, series)
	})
	return compact(results, failed, "indices")
}

// Sectors returns one month performance for each sector ETF that could be
// fetched
func (s *OverviewService) Sectors(ctx context.Context) ([]*models.SectorPerformance, error) {
	results := make([]*models.SectorPerformance, len(s.sectors))
	failed := s.forEach(ctx, s.sectors, models.Period1Month, func(i int, inst Instrument, series *models.MarketSeries) {
		results[i] = sectorPerformance(inst, series)
	})
	return compact(results, failed, "sectors")
}

// forEach fetches every instrument on a small worker pool and calls fn for
// each success. Failures are logged and counted.
func (s *OverviewService) forEach(ctx context.Context, instruments []Instrument, period models.Period, fn func(int, Instrument, *models.MarketSeries)) int {
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	workers := min(overviewWorkers, len(instruments))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				inst := instruments[i]
				series, err := s.market.FetchSeries(ctx, inst.Symbol, period)
				if err == nil && series.Len() == 0 {
					err = fmt.Errorf("%w: empty series", common.ErrMalformedPayload)
				}
				if err != nil {
					s.logger.Warn().Str("symbol", inst.Symbol).Err(err).Msg("Overview instrument skipped")
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				fn(i, inst, series)
			}
		}()
	}

	for i := range instruments {
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	return failed
}

func compact[T any](results []*T, failed int, what string) ([]*T, error) {
	out := make([]*T, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 && failed > 0 {
		return nil, fmt.Errorf("%w: no %s could be fetched", common.ErrNoDataAvailable, what)
	}
	return out, nil
}

func indexSnapshot(inst Instrument, series *models.MarketSeries) *models.IndexSnapshot {
	closes := series.Closes()
	n := len(closes)
	current := closes[n-1]

	snap := &models.IndexSnapshot{
		Symbol:  inst.Symbol,
		Name:    inst.Name,
		Current: common.Round(current, 2),
	}
	if n >= 2 {
		snap.DailyChange = common.Round(signals.PercentChange(closes[n-2], current), 2)
	}
	if n > monthBars {
		snap.MonthlyChange = common.Round(signals.PercentChange(closes[n-1-monthBars], current), 2)
	}
	snap.Volatility = common.Round(signals.PctChangeStdDev(closes), 2)
	if sma20 := signals.SMA(closes, 20); sma20 > 0 {
		snap.SMA20Diff = common.Round(signals.PercentChange(sma20, current), 2)
	}
	if sma50 := signals.SMA(closes, 50); sma50 > 0 {
		snap.SMA50Diff = common.Round(signals.PercentChange(sma50, current), 2)
	}
	rsi, _ := signals.RSI(closes, signals.RSIPeriod)
	snap.RSI = common.Round(rsi, 2)
	_, _, hist, _ := signals.MACD(closes, signals.MACDFast, signals.MACDSlow, signals.MACDSignal)
	snap.MACD = common.Round(hist, 4)

	return snap
}

func sectorPerformance(inst Instrument, series *models.MarketSeries) *models.SectorPerformance {
	closes := series.Closes()
	volumes := series.Volumes()
	n := len(closes)

	perf := &models.SectorPerformance{
		Symbol: inst.Symbol,
		Name:   inst.Name,
		Change: common.Round(signals.PercentChange(closes[0], closes[n-1]), 2),
	}
	if avg := signals.SMA(volumes, n); avg > 0 {
		perf.VolumeChange = common.Round(signals.PercentChange(avg, volumes[n-1]), 2)
	}
	return perf
}

var _ interfaces.OverviewService = (*OverviewService)(nil)
