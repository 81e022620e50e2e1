// Package scoring ranks candidates from their indicators and fundamentals
package scoring

import (
	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/signals"
)

// DefaultCutoff is the minimum total for a candidate to be potential
const DefaultCutoff = 60.0

// Sub-score ceilings
const (
	maxSubScore = 100.0
	maxTotal    = 100.0
)

// Weights weights the three sub-scores in the total
type Weights struct {
	Technical   float64
	Momentum    float64
	Fundamental float64
}

// DefaultWeights gives an unweighted mean
func DefaultWeights() Weights {
	return Weights{Technical: 1, Momentum: 1, Fundamental: 1}
}

// Engine computes ScoreCards. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	weights Weights
	cutoff  float64
}

// NewEngine creates a scoring engine. Non-positive weights or cutoff fall back
// to the defaults.
func NewEngine(weights Weights, cutoff float64) *Engine {
	def := DefaultWeights()
	if weights.Technical <= 0 {
		weights.Technical = def.Technical
	}
	if weights.Momentum <= 0 {
		weights.Momentum = def.Momentum
	}
	if weights.Fundamental <= 0 {
		weights.Fundamental = def.Fundamental
	}
	if cutoff <= 0 {
		cutoff = DefaultCutoff
	}
	return &Engine{weights: weights, cutoff: cutoff}
}

// NewEngineFromConfig creates an engine from the scoring config section
func NewEngineFromConfig(cfg common.ScoringConfig) *Engine {
	return NewEngine(Weights{
		Technical:   cfg.Weights.Technical,
		Momentum:    cfg.Weights.Momentum,
		Fundamental: cfg.Weights.Fundamental,
	}, cfg.Cutoff)
}

// Cutoff returns the potential threshold
func (e *Engine) Cutoff() float64 {
	return e.cutoff
}

// Weights returns the effective weights
func (e *Engine) Weights() Weights {
	return e.weights
}

// Score builds the ScoreCard for symbol. A nil fund scores as neutral
// fundamentals.
func (e *Engine) Score(symbol string, ind *models.IndicatorSet, fund *models.FundamentalInfo) *models.ScoreCard {
	if ind == nil {
		ind = &models.IndicatorSet{Symbol: symbol, RSI: signals.NeutralRSI, MFI: signals.NeutralMFI}
	}
	if fund == nil {
		fund = models.NeutralFundamentals(symbol)
	}

	sub := models.SubScores{
		Technical:   TechnicalScore(ind),
		Momentum:    MomentumScore(ind),
		Fundamental: FundamentalScore(fund),
	}

	w := e.weights
	total := (sub.Technical*w.Technical + sub.Momentum*w.Momentum + sub.Fundamental*w.Fundamental) /
		(w.Technical + w.Momentum + w.Fundamental)
	total = common.Round(clamp(total, 0, maxTotal), 2)

	cond := signals.Classify(ind)
	return &models.ScoreCard{
		Symbol:    symbol,
		Scores:    sub,
		Total:     total,
		Potential: total >= e.cutoff,
		Snapshot: models.ScoreSnapshot{
			Name:   fund.Name,
			Sector: fund.Sector,
			Price:  common.Round(ind.Close, 2),
			Volume: ind.Volume,
		},
		Indicators: ind,
		Condition:  &cond,
	}
}

// TechnicalScore rates RSI band, MACD histogram and moving average alignment.
//
//	RSI 40-60: 20, 30-40 or 60-70: 15, below 30: 10, above 70: 0
//	MACD histogram > 0: 15, and another 15 when above 1% of close
//	close > SMA20 > SMA50: 30, close > SMA20: 15, close > SMA50: 10
func TechnicalScore(ind *models.IndicatorSet) float64 {
	score := 0.0

	rsi := common.SanitizeFloat(ind.RSI)
	switch {
	case rsi >= 40 && rsi <= 60:
		score += 20
	case (rsi >= 30 && rsi < 40) || (rsi > 60 && rsi <= 70):
		score += 15
	case rsi < 30:
		score += 10
	}

	hist := common.SanitizeFloat(ind.MACDHistogram)
	if hist > 0 {
		score += 15
		if hist > ind.Close*0.01 {
			score += 15
		}
	}

	price := ind.Close
	switch {
	case ind.SMA20 > 0 && ind.SMA50 > 0 && price > ind.SMA20 && ind.SMA20 > ind.SMA50:
		score += 30
	case ind.SMA20 > 0 && price > ind.SMA20:
		score += 15
	case ind.SMA50 > 0 && price > ind.SMA50:
		score += 10
	}

	return clamp(score, 0, maxSubScore)
}

// MomentumScore rates trailing price return and volume momentum
func MomentumScore(ind *models.IndicatorSet) float64 {
	score := 0.0

	switch pm := common.SanitizeFloat(ind.PriceMomentum); {
	case pm > 0:
		score += 25
	case pm > -5:
		score += 15
	}

	switch vm := common.SanitizeFloat(ind.VolumeMomentum); {
	case vm > 0:
		score += 25
	case vm > -10:
		score += 15
	}

	return clamp(score, 0, maxSubScore)
}

// FundamentalScore rates P/E band, profit margin and revenue growth. Forward
// P/E is used when reported, otherwise trailing P/E.
func FundamentalScore(fund *models.FundamentalInfo) float64 {
	score := 0.0

	pe := common.SanitizeFloat(fund.ForwardPE)
	if pe <= 0 {
		pe = common.SanitizeFloat(fund.TrailingPE)
	}
	switch {
	case pe > 0 && pe < 30:
		score += 20
	case pe >= 30 && pe < 50:
		score += 10
	}

	switch margin := common.SanitizeFloat(fund.ProfitMargin); {
	case margin > 20:
		score += 20
	case margin > 10:
		score += 10
	}

	switch growth := common.SanitizeFloat(fund.RevenueGrowth); {
	case growth > 20:
		score += 20
	case growth > 10:
		score += 10
	}

	return clamp(score, 0, maxSubScore)
}

func clamp(v, lo, hi float64) float64 {
	v = common.SanitizeFloat(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
