package models

import "time"

// BasicMetrics summarises price and volume over the fetched series.
type BasicMetrics struct {
	CurrentPrice float64 `json:"current_price"`
	PriceChange  float64 `json:"price_change"` // percent over the series
	AvgVolume    float64 `json:"avg_volume"`
	VolumeChange float64 `json:"volume_change"` // last bar vs average, percent
	PriceToSMA20 float64 `json:"price_to_sma20"`
}

// ValuationMetrics groups valuation ratios.
type ValuationMetrics struct {
	MarketCap       float64 `json:"market_cap"` // billions
	PERatio         float64 `json:"pe_ratio"`
	ForwardPE       float64 `json:"forward_pe"`
	PEGRatio        float64 `json:"peg_ratio"`
	PriceToBook     float64 `json:"price_to_book"`
	ValuationStatus string  `json:"valuation_status"`
}

// ProfitabilityMetrics groups margin and yield figures, all percentages.
type ProfitabilityMetrics struct {
	ProfitMargin    float64 `json:"profit_margin"`
	OperatingMargin float64 `json:"operating_margin"`
	RevenueGrowth   float64 `json:"revenue_growth"`
	DividendYield   float64 `json:"dividend_yield"`
}

// RiskMetrics groups beta-derived risk.
type RiskMetrics struct {
	Beta      float64 `json:"beta"`
	RiskLevel string  `json:"risk_level"`
}

// FundamentalAnalysis is the single-symbol metric report.
type FundamentalAnalysis struct {
	Symbol        string               `json:"symbol"`
	Name          string               `json:"name"`
	Sector        string               `json:"sector"`
	Basic         BasicMetrics         `json:"basic_metrics"`
	Valuation     ValuationMetrics     `json:"valuation_metrics"`
	Profitability ProfitabilityMetrics `json:"profitability_metrics"`
	Risk          RiskMetrics          `json:"risk_metrics"`
}

// AnalysisReport combines the numeric analysis of one symbol with optional
// language model commentary.
type AnalysisReport struct {
	Symbol       string               `json:"symbol"`
	Query        string               `json:"query"`
	Fundamentals *FundamentalAnalysis `json:"fundamentals"`
	Indicators   *IndicatorSet        `json:"indicators"`
	Condition    MarketCondition      `json:"condition"`
	Score        *ScoreCard           `json:"score,omitempty"`
	Commentary   string               `json:"commentary,omitempty"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// BatchAnalysis is the result of analysing several queries. Failures maps
// each failed query to its error text; partial results are normal.
type BatchAnalysis struct {
	RunID    string            `json:"run_id"`
	Reports  []*AnalysisReport `json:"reports"`
	Failures map[string]string `json:"failures,omitempty"`
}

// IndexSnapshot summarises a market index or benchmark instrument.
type IndexSnapshot struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Current       float64 `json:"current"`
	DailyChange   float64 `json:"daily_change"`
	MonthlyChange float64 `json:"monthly_change"`
	Volatility    float64 `json:"volatility"`
	SMA20Diff     float64 `json:"sma20_diff"`
	SMA50Diff     float64 `json:"sma50_diff"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
}

// SectorPerformance summarises a sector ETF over the last month.
type SectorPerformance struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Change       float64 `json:"change"`
	VolumeChange float64 `json:"volume_change"`
}
