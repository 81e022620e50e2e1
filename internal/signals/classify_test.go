package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/sift/internal/models"
)

func TestClassify_Trend(t *testing.T) {
	tests := []struct {
		name     string
		macd     float64
		signal   float64
		adx      float64
		expected string
	}{
		{"strong up", 1.5, 1.0, 30, models.TrendStrongUp},
		{"strong down", 0.5, 1.0, 30, models.TrendStrongDown},
		{"up", 1.5, 1.0, 20, models.TrendUp},
		{"down", 0.5, 1.0, 25, models.TrendDown},
		{"sideways", 1.0, 1.0, 40, models.TrendSideways},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &models.IndicatorSet{MACD: tt.macd, MACDSignal: tt.signal, ADX: tt.adx, Close: 100}
			assert.Equal(t, tt.expected, Classify(ind).Trend)
		})
	}
}

func TestClassify_Volatility(t *testing.T) {
	tests := []struct {
		name     string
		atr      float64
		sma20    float64
		close    float64
		expected string
	}{
		{"high", 4, 100, 100, models.VolatilityHigh},
		{"low", 0.5, 100, 100, models.VolatilityLow},
		{"normal", 2, 100, 100, models.VolatilityNormal},
		{"falls back to close", 4, 0, 100, models.VolatilityHigh},
		{"no base", 4, 0, 0, models.VolatilityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &models.IndicatorSet{ATR: tt.atr, SMA20: tt.sma20, Close: tt.close}
			assert.Equal(t, tt.expected, Classify(ind).Volatility)
		})
	}
}

func TestClassify_StrengthAndRisk(t *testing.T) {
	tests := []struct {
		name     string
		k, d     float64
		obvSlope float64
		atr      float64
		strength string
		risk     string
	}{
		{"overbought in high volatility", 85, 70, 10, 5, models.StrengthOverbought, models.RiskHigh},
		{"oversold in high volatility", 15, 25, -10, 5, models.StrengthOversold, models.RiskHigh},
		{"high k without volume is bullish", 85, 70, -1, 5, models.StrengthBullish, models.RiskMedium},
		{"bearish", 40, 55, 0, 2, models.StrengthBearish, models.RiskMedium},
		{"neutral in low volatility", 50, 50, 0, 0.5, models.StrengthNeutral, models.RiskLow},
		{"overbought in normal volatility", 90, 80, 1, 2, models.StrengthOverbought, models.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := &models.IndicatorSet{StochK: tt.k, StochD: tt.d, OBVSlope: tt.obvSlope, ATR: tt.atr, SMA20: 100, Close: 100}
			cond := Classify(ind)
			assert.Equal(t, tt.strength, cond.Strength)
			assert.Equal(t, tt.risk, cond.Risk)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	cond := Classify(nil)
	assert.Equal(t, models.TrendSideways, cond.Trend)
	assert.Equal(t, models.RiskMedium, cond.Risk)
}

func TestValuationStatus(t *testing.T) {
	tests := []struct {
		pe       float64
		expected string
	}{
		{-5, ValuationUnknown},
		{0, ValuationUnknown},
		{10, ValuationUndervalued},
		{15, ValuationFair},
		{30, ValuationFair},
		{31, ValuationOvervalued},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValuationStatus(tt.pe))
		})
	}
}

func TestBetaRisk(t *testing.T) {
	tests := []struct {
		beta     float64
		expected string
	}{
		{0, models.RiskUnknown},
		{0.3, models.RiskLow},
		{0.5, models.RiskMedium},
		{1.5, models.RiskMedium},
		{1.6, models.RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, BetaRisk(tt.beta))
		})
	}
}
