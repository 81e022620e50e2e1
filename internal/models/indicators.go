package models

import "time"

// IndicatorSet holds technical indicators derived from a single MarketSeries.
// Indicators without enough history hold their neutral value and report
// false in Valid.
type IndicatorSet struct {
	Symbol string    `json:"symbol"`
	Bars   int       `json:"bars"`
	AsOf   time.Time `json:"as_of"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Change float64   `json:"change_pct"` // last bar vs previous, percent

	// Trend
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	EMA20         float64 `json:"ema_20"`
	EMA50         float64 `json:"ema_50"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	ADX           float64 `json:"adx"`
	PlusDI        float64 `json:"plus_di"`
	MinusDI       float64 `json:"minus_di"`

	// Momentum
	RSI            float64 `json:"rsi"`
	StochK         float64 `json:"stoch_k"`
	StochD         float64 `json:"stoch_d"`
	ROC            float64 `json:"roc"`
	PriceMomentum  float64 `json:"price_momentum"`  // percent over 20 bars
	VolumeMomentum float64 `json:"volume_momentum"` // percent, last 5 vs prior 15

	// Volatility
	BollingerUpper  float64 `json:"bollinger_upper"`
	BollingerMiddle float64 `json:"bollinger_middle"`
	BollingerLower  float64 `json:"bollinger_lower"`
	ATR             float64 `json:"atr"`

	// Volume
	OBV      float64 `json:"obv"`
	OBVSlope float64 `json:"obv_slope"`
	MFI      float64 `json:"mfi"`

	Valid IndicatorValidity `json:"valid"`
}

// IndicatorValidity flags which indicator groups had enough history.
type IndicatorValidity struct {
	SMA20          bool `json:"sma_20"`
	SMA50          bool `json:"sma_50"`
	MACD           bool `json:"macd"`
	ADX            bool `json:"adx"`
	RSI            bool `json:"rsi"`
	Stochastic     bool `json:"stochastic"`
	ROC            bool `json:"roc"`
	Bollinger      bool `json:"bollinger"`
	ATR            bool `json:"atr"`
	MFI            bool `json:"mfi"`
	PriceMomentum  bool `json:"price_momentum"`
	VolumeMomentum bool `json:"volume_momentum"`
}

// Trend labels
const (
	TrendStrongUp   = "strong_up"
	TrendUp         = "up"
	TrendSideways   = "sideways"
	TrendDown       = "down"
	TrendStrongDown = "strong_down"
)

// Volatility labels
const (
	VolatilityHigh   = "high"
	VolatilityNormal = "normal"
	VolatilityLow    = "low"
)

// Strength labels
const (
	StrengthOverbought = "overbought"
	StrengthOversold   = "oversold"
	StrengthBullish    = "bullish"
	StrengthBearish    = "bearish"
	StrengthNeutral    = "neutral"
)

// Risk labels
const (
	RiskHigh    = "high"
	RiskMedium  = "medium"
	RiskLow     = "low"
	RiskUnknown = "unknown"
)

// MarketCondition is the qualitative reading of an IndicatorSet.
type MarketCondition struct {
	Trend      string `json:"trend"`
	Volatility string `json:"volatility"`
	Strength   string `json:"strength"`
	Risk       string `json:"risk"`
}
