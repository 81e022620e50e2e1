package signals

import (
	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// Indicator parameters
const (
	MACDFast        = 12
	MACDSlow        = 26
	MACDSignal      = 9
	ADXPeriod       = 14
	RSIPeriod       = 14
	StochKPeriod    = 14
	StochDPeriod    = 3
	ROCPeriod       = 12
	BollingerPeriod = 20
	BollingerStdDev = 2.0
	ATRPeriod       = 14
	OBVSlopeBars    = 10
	MFIPeriod       = 14
	MomentumBars    = 20
	VolumeRecent    = 5
	VolumeWindow    = 20
)

// Computer derives an IndicatorSet from a MarketSeries
type Computer struct{}

// NewComputer creates a new indicator computer
func NewComputer() *Computer {
	return &Computer{}
}

// Compute calculates every indicator for the series. It never fails: short
// or empty series produce neutral values with the matching Valid flag unset.
func (c *Computer) Compute(series *models.MarketSeries) *models.IndicatorSet {
	set := &models.IndicatorSet{
		RSI:    NeutralRSI,
		MFI:    NeutralMFI,
		StochK: NeutralStoch,
		StochD: NeutralStoch,
	}
	if series == nil {
		return set
	}

	set.Symbol = series.Symbol
	set.Bars = series.Len()

	last, ok := series.Last()
	if !ok {
		return set
	}
	set.AsOf = last.Date
	set.Close = last.Close
	set.Volume = last.Volume

	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()
	volumes := series.Volumes()

	if len(closes) >= 2 {
		set.Change = PercentChange(closes[len(closes)-2], closes[len(closes)-1])
	}

	// Trend
	if len(closes) >= 20 {
		set.SMA20 = SMA(closes, 20)
		set.EMA20 = EMA(closes, 20)
		set.Valid.SMA20 = true
	}
	if len(closes) >= 50 {
		set.SMA50 = SMA(closes, 50)
		set.EMA50 = EMA(closes, 50)
		set.Valid.SMA50 = true
	}
	set.MACD, set.MACDSignal, set.MACDHistogram, set.Valid.MACD = MACD(closes, MACDFast, MACDSlow, MACDSignal)
	set.ADX, set.PlusDI, set.MinusDI, set.Valid.ADX = ADX(highs, lows, closes, ADXPeriod)

	// Momentum
	set.RSI, set.Valid.RSI = RSI(closes, RSIPeriod)
	set.StochK, set.StochD, set.Valid.Stochastic = Stochastic(highs, lows, closes, StochKPeriod, StochDPeriod)
	set.ROC, set.Valid.ROC = ROC(closes, ROCPeriod)
	set.PriceMomentum, set.Valid.PriceMomentum = PriceMomentum(closes, MomentumBars)
	set.VolumeMomentum, set.Valid.VolumeMomentum = VolumeMomentum(volumes, VolumeRecent, VolumeWindow)

	// Volatility
	set.BollingerUpper, set.BollingerMiddle, set.BollingerLower, set.Valid.Bollinger = Bollinger(closes, BollingerPeriod, BollingerStdDev)
	set.ATR, set.Valid.ATR = ATR(highs, lows, closes, ATRPeriod)

	// Volume
	obv := OBVSeries(closes, volumes)
	if len(obv) > 0 {
		set.OBV = obv[len(obv)-1]
		set.OBVSlope = Slope(obv, OBVSlopeBars)
	}
	set.MFI, set.Valid.MFI = MFI(highs, lows, closes, volumes, MFIPeriod)

	common.SanitizeValue(set)
	return set
}

// Compute is a convenience wrapper around a zero Computer
func Compute(series *models.MarketSeries) *models.IndicatorSet {
	return NewComputer().Compute(series)
}
