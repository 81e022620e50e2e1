// Package analysis produces single-symbol and batch analysis reports
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/signals"
)

// Defaults
const (
	DefaultMaxBatch = 5
	AnalysisPeriod  = models.Period1Year
)

const systemPrompt = "You are a concise equity analyst. Write plain prose, no tables, no markdown headings. " +
	"Discuss valuation, profitability and risk using only the figures provided."

// Scorer turns indicators and fundamentals into a ScoreCard
type Scorer interface {
	Score(symbol string, ind *models.IndicatorSet, fund *models.FundamentalInfo) *models.ScoreCard
}

// Service implements interfaces.AnalysisService
type Service struct {
	market   interfaces.MarketDataService
	resolver *common.SymbolResolver
	scorer   Scorer
	computer *signals.Computer
	llm      interfaces.LanguageModel
	maxBatch int
	logger   *common.Logger
	now      func() time.Time
}

// NewService creates an analysis service. llm may be nil, which disables
// commentary.
func NewService(
	market interfaces.MarketDataService,
	resolver *common.SymbolResolver,
	scorer Scorer,
	llm interfaces.LanguageModel,
	maxBatch int,
	logger *common.Logger,
) *Service {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Service{
		market:   market,
		resolver: resolver,
		scorer:   scorer,
		computer: signals.NewComputer(),
		llm:      llm,
		maxBatch: maxBatch,
		logger:   logger,
		now:      time.Now,
	}
}

// CommentaryEnabled reports whether a language model is configured
func (s *Service) CommentaryEnabled() bool {
	return s.llm != nil
}

// Analyze builds the report for one free-text query
func (s *Service) Analyze(ctx context.Context, query string, commentary bool) (*models.AnalysisReport, error) {
	symbol := s.resolver.Resolve(query)
	if !common.IsCanonicalSymbol(symbol) {
		return nil, fmt.Errorf("%w: %q does not resolve to a ticker", common.ErrNoValidSymbols, query)
	}

	ctx, span := common.StartSpan(ctx, "analysis.analyze", attribute.String("symbol", symbol))
	defer span.End()

	report, err := s.analyzeSymbol(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	report.Query = query

	if commentary {
		report.Commentary = s.generate(ctx, symbol, buildReportPrompt(report))
	}

	common.SanitizeValue(report)
	return report, nil
}

// AnalyzeBatch analyses up to the batch limit of resolvable queries
// concurrently. Per-symbol failures are collected; only a batch with no
// resolvable query, or where every symbol fails, is an error.
func (s *Service) AnalyzeBatch(ctx context.Context, queries []string, commentary bool) (*models.BatchAnalysis, error) {
	symbols := s.resolver.ResolveAll(queries, s.maxBatch)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: none of %d queries resolve to a ticker", common.ErrNoValidSymbols, len(queries))
	}

	s.logger.Info().Strs("symbols", symbols).Bool("commentary", commentary).Msg("Batch analysis started")

	batch := &models.BatchAnalysis{
		RunID:    uuid.New().String(),
		Failures: make(map[string]string),
	}

	type outcome struct {
		index  int
		report *models.AnalysisReport
		err    error
	}
	results := make(chan outcome, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			report, err := s.Analyze(ctx, symbol, commentary)
			results <- outcome{index: i, report: report, err: err}
		}(i, symbol)
	}
	wg.Wait()
	close(results)

	var ok []outcome
	for r := range results {
		if r.err != nil {
			s.logger.Warn().Str("symbol", symbols[r.index]).Err(r.err).Msg("Analysis failed")
			batch.Failures[symbols[r.index]] = r.err.Error()
			continue
		}
		ok = append(ok, r)
	}
	sort.Slice(ok, func(i, j int) bool { return ok[i].index < ok[j].index })

	batch.Reports = make([]*models.AnalysisReport, 0, len(ok))
	for _, r := range ok {
		batch.Reports = append(batch.Reports, r.report)
	}

	if len(batch.Reports) == 0 {
		return batch, fmt.Errorf("%w: every symbol failed (%s)", common.ErrNoValidSymbols, strings.Join(symbols, ", "))
	}
	return batch, nil
}

// Commentary writes prose for a screened ScoreCard
func (s *Service) Commentary(ctx context.Context, card *models.ScoreCard) (string, error) {
	if s.llm == nil {
		return "", fmt.Errorf("commentary disabled: no language model configured")
	}
	return s.llm.Generate(ctx, buildCardPrompt(card), interfaces.GenerateOptions{System: systemPrompt})
}

func (s *Service) analyzeSymbol(ctx context.Context, symbol string) (*models.AnalysisReport, error) {
	series, err := s.market.FetchSeries(ctx, symbol, AnalysisPeriod)
	if err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("%w: empty series for %s", common.ErrNoDataAvailable, symbol)
	}

	ind := s.computer.Compute(series)

	fund, err := s.market.FetchFundamentals(ctx, symbol)
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Fundamentals unavailable, using neutral values")
		fund = models.NeutralFundamentals(symbol)
	}

	report := &models.AnalysisReport{
		Symbol:       symbol,
		Fundamentals: BuildFundamentalAnalysis(series, ind, fund),
		Indicators:   ind,
		Condition:    signals.Classify(ind),
		GeneratedAt:  s.now(),
	}
	if s.scorer != nil {
		report.Score = s.scorer.Score(symbol, ind, fund)
	}
	return report, nil
}

// generate returns commentary text, or empty when no model is configured
// or generation fails
func (s *Service) generate(ctx context.Context, symbol, prompt string) string {
	if s.llm == nil {
		return ""
	}
	text, err := s.llm.Generate(ctx, prompt, interfaces.GenerateOptions{System: systemPrompt})
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Str("model", s.llm.Name()).
			Bool("rate_limited", common.IsRateLimited(err)).Err(err).Msg("Commentary generation failed")
		return ""
	}
	return strings.TrimSpace(text)
}

// BuildFundamentalAnalysis groups price, valuation, profitability and risk
// metrics for one symbol
func BuildFundamentalAnalysis(series *models.MarketSeries, ind *models.IndicatorSet, fund *models.FundamentalInfo) *models.FundamentalAnalysis {
	closes := series.Closes()
	volumes := series.Volumes()
	n := len(closes)

	fa := &models.FundamentalAnalysis{
		Symbol: series.Symbol,
		Name:   fund.Name,
		Sector: fund.Sector,
	}

	if n > 0 {
		current := closes[n-1]
		avgVolume := signals.SMA(volumes, n)
		fa.Basic = models.BasicMetrics{
			CurrentPrice: common.Round(current, 2),
			PriceChange:  common.Round(signals.PercentChange(closes[0], current), 2),
			AvgVolume:    common.Round(avgVolume, 0),
			VolumeChange: common.Round(signals.PercentChange(avgVolume, volumes[n-1]), 2),
		}
		if ind != nil && ind.SMA20 > 0 {
			fa.Basic.PriceToSMA20 = common.Round(current/ind.SMA20, 4)
		}
	}

	fa.Valuation = models.ValuationMetrics{
		MarketCap:       common.Round(fund.MarketCap/1e9, 2),
		PERatio:         common.Round(fund.TrailingPE, 2),
		ForwardPE:       common.Round(fund.ForwardPE, 2),
		PEGRatio:        common.Round(fund.PEGRatio, 2),
		PriceToBook:     common.Round(fund.PriceToBook, 2),
		ValuationStatus: signals.ValuationStatus(fund.TrailingPE),
	}
	fa.Profitability = models.ProfitabilityMetrics{
		ProfitMargin:    common.Round(fund.ProfitMargin, 2),
		OperatingMargin: common.Round(fund.OperatingMargin, 2),
		RevenueGrowth:   common.Round(fund.RevenueGrowth, 2),
		DividendYield:   common.Round(fund.DividendYield, 2),
	}
	fa.Risk = models.RiskMetrics{
		Beta:      common.Round(fund.Beta, 2),
		RiskLevel: signals.BetaRisk(fund.Beta),
	}

	common.SanitizeValue(fa)
	return fa
}

func buildReportPrompt(r *models.AnalysisReport) string {
	fa := r.Fundamentals
	var sb strings.Builder

	sb.WriteString("Write a short investment assessment from these figures.\n\n")
	sb.WriteString(fmt.Sprintf("Symbol: %s (%s)\n", r.Symbol, fa.Name))
	sb.WriteString(fmt.Sprintf("Sector: %s\n", fa.Sector))
	sb.WriteString(fmt.Sprintf("Price: $%.2f (%.2f%% over the year)\n", fa.Basic.CurrentPrice, fa.Basic.PriceChange))
	sb.WriteString(fmt.Sprintf("Market cap: %.2fB\n", fa.Valuation.MarketCap))
	sb.WriteString(fmt.Sprintf("P/E: %.2f, forward P/E: %.2f, PEG: %.2f, P/B: %.2f (%s)\n",
		fa.Valuation.PERatio, fa.Valuation.ForwardPE, fa.Valuation.PEGRatio, fa.Valuation.PriceToBook, fa.Valuation.ValuationStatus))
	sb.WriteString(fmt.Sprintf("Profit margin: %.2f%%, operating margin: %.2f%%\n",
		fa.Profitability.ProfitMargin, fa.Profitability.OperatingMargin))
	sb.WriteString(fmt.Sprintf("Beta: %.2f (%s risk)\n", fa.Risk.Beta, fa.Risk.RiskLevel))
	sb.WriteString(fmt.Sprintf("\nTechnical: trend=%s, volatility=%s, strength=%s, RSI=%.1f\n",
		r.Condition.Trend, r.Condition.Volatility, r.Condition.Strength, r.Indicators.RSI))

	sb.WriteString("\nCover valuation, profitability and risk in 4-6 sentences, then give a one line view.")
	return sb.String()
}

func buildCardPrompt(c *models.ScoreCard) string {
	var sb strings.Builder

	sb.WriteString("Summarise why this stock ranked as a screening candidate.\n\n")
	sb.WriteString(fmt.Sprintf("Symbol: %s (%s, %s)\n", c.Symbol, c.Snapshot.Name, c.Snapshot.Sector))
	sb.WriteString(fmt.Sprintf("Price: $%.2f\n", c.Snapshot.Price))
	sb.WriteString(fmt.Sprintf("Score: %.2f/100 (technical %.0f, momentum %.0f, fundamental %.0f)\n",
		c.Total, c.Scores.Technical, c.Scores.Momentum, c.Scores.Fundamental))
	if c.Indicators != nil {
		sb.WriteString(fmt.Sprintf("RSI: %.1f, MACD histogram: %.3f, 20-bar momentum: %.2f%%\n",
			c.Indicators.RSI, c.Indicators.MACDHistogram, c.Indicators.PriceMomentum))
	}
	if c.Condition != nil {
		sb.WriteString(fmt.Sprintf("Condition: trend=%s, volatility=%s, risk=%s\n",
			c.Condition.Trend, c.Condition.Volatility, c.Condition.Risk))
	}

	sb.WriteString("\nTwo or three sentences. Name the main risk.")
	return sb.String()
}

var _ interfaces.AnalysisService = (*Service)(nil)
