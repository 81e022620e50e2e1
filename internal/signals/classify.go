package signals

import (
	"github.com/bobmcallan/sift/internal/models"
)

// Classification thresholds
const (
	TrendStrengthThreshold = 25.0
	HighVolatilityRatio    = 0.03
	LowVolatilityRatio     = 0.01
	OverboughtK            = 80.0
	OversoldK              = 20.0
)

// Classify turns an IndicatorSet into qualitative labels
func Classify(ind *models.IndicatorSet) models.MarketCondition {
	if ind == nil {
		return models.MarketCondition{
			Trend:      models.TrendSideways,
			Volatility: models.VolatilityNormal,
			Strength:   models.StrengthNeutral,
			Risk:       models.RiskMedium,
		}
	}

	cond := models.MarketCondition{
		Trend:      classifyTrend(ind),
		Volatility: classifyVolatility(ind),
		Strength:   classifyStrength(ind),
	}
	cond.Risk = classifyRisk(cond.Volatility, cond.Strength)
	return cond
}

func classifyTrend(ind *models.IndicatorSet) string {
	strong := ind.ADX > TrendStrengthThreshold
	switch {
	case ind.MACD > ind.MACDSignal && strong:
		return models.TrendStrongUp
	case ind.MACD < ind.MACDSignal && strong:
		return models.TrendStrongDown
	case ind.MACD > ind.MACDSignal:
		return models.TrendUp
	case ind.MACD < ind.MACDSignal:
		return models.TrendDown
	default:
		return models.TrendSideways
	}
}

// classifyVolatility compares ATR with SMA20, or the close when SMA20 is
// unavailable
func classifyVolatility(ind *models.IndicatorSet) string {
	base := ind.SMA20
	if base <= 0 {
		base = ind.Close
	}
	if base <= 0 {
		return models.VolatilityNormal
	}

	ratio := ind.ATR / base
	switch {
	case ratio > HighVolatilityRatio:
		return models.VolatilityHigh
	case ratio < LowVolatilityRatio:
		return models.VolatilityLow
	default:
		return models.VolatilityNormal
	}
}

func classifyStrength(ind *models.IndicatorSet) string {
	switch {
	case ind.StochK > OverboughtK && ind.OBVSlope > 0:
		return models.StrengthOverbought
	case ind.StochK < OversoldK && ind.OBVSlope < 0:
		return models.StrengthOversold
	case ind.StochK > ind.StochD:
		return models.StrengthBullish
	case ind.StochK < ind.StochD:
		return models.StrengthBearish
	default:
		return models.StrengthNeutral
	}
}

func classifyRisk(volatility, strength string) string {
	extreme := strength == models.StrengthOverbought || strength == models.StrengthOversold
	switch {
	case volatility == models.VolatilityHigh && extreme:
		return models.RiskHigh
	case volatility == models.VolatilityLow && strength == models.StrengthNeutral:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}

// Valuation labels
const (
	ValuationUnknown     = "unknown"
	ValuationOvervalued  = "overvalued"
	ValuationUndervalued = "undervalued"
	ValuationFair        = "fair"
)

// ValuationStatus labels a P/E ratio
func ValuationStatus(pe float64) string {
	switch {
	case pe <= 0:
		return ValuationUnknown
	case pe > 30:
		return ValuationOvervalued
	case pe < 15:
		return ValuationUndervalued
	default:
		return ValuationFair
	}
}

// BetaRisk labels market beta
func BetaRisk(beta float64) string {
	switch {
	case beta <= 0:
		return models.RiskUnknown
	case beta > 1.5:
		return models.RiskHigh
	case beta < 0.5:
		return models.RiskLow
	default:
		return models.RiskMedium
	}
}
