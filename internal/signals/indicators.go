// Package signals provides technical indicator calculations
package signals

import (
	"math"
)

// All functions take values oldest first. Functions returning a bool report
// false when there is not enough history, alongside the neutral value.

// Neutral values for oscillators without enough history
const (
	NeutralRSI   = 50.0
	NeutralMFI   = 50.0
	NeutralStoch = 50.0
)

// SMA calculates the Simple Moving Average of the last period values
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	return mean(values[len(values)-period:])
}

// EMASeries returns the Exponential Moving Average seeded with the SMA of
// the first period values. Element i corresponds to values[i+period-1].
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	multiplier := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := mean(values[:period])
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}

// EMA returns the most recent Exponential Moving Average value
func EMA(values []float64, period int) float64 {
	series := EMASeries(values, period)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// MACD calculates Moving Average Convergence Divergence.
// Returns MACD line, signal line and histogram.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (float64, float64, float64, bool) {
	if fastPeriod >= slowPeriod || len(closes) < slowPeriod+signalPeriod-1 {
		return 0, 0, 0, false
	}

	fast := EMASeries(closes, fastPeriod)
	slow := EMASeries(closes, slowPeriod)

	// Align fast to slow: both end at the last close
	offset := len(fast) - len(slow)
	line := make([]float64, len(slow))
	for i := range slow {
		line[i] = fast[i+offset] - slow[i]
	}

	signal := EMASeries(line, signalPeriod)
	if len(signal) == 0 {
		return 0, 0, 0, false
	}

	macd := line[len(line)-1]
	sig := signal[len(signal)-1]
	return macd, sig, macd - sig, true
}

// RSI calculates the Relative Strength Index with Wilder smoothing.
// A flat series has neither gains nor losses and reads as neutral.
func RSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	switch {
	case avgGain == 0 && avgLoss == 0:
		return NeutralRSI, true
	case avgLoss == 0:
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), true
}

// Stochastic calculates the %K and %D oscillators. %D is the simple average
// of the last dPeriod %K readings.
func Stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (float64, float64, bool) {
	n := len(closes)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod+dPeriod-1 || len(highs) != n || len(lows) != n {
		return NeutralStoch, NeutralStoch, false
	}

	ks := make([]float64, 0, dPeriod)
	for end := n - dPeriod + 1; end <= n; end++ {
		hh := maxOf(highs[end-kPeriod : end])
		ll := minOf(lows[end-kPeriod : end])
		k := NeutralStoch
		if hh > ll {
			k = (closes[end-1] - ll) / (hh - ll) * 100
		}
		ks = append(ks, k)
	}

	return ks[len(ks)-1], mean(ks), true
}

// ROC calculates the percentage Rate of Change over period bars
func ROC(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) <= period {
		return 0, false
	}
	prev := closes[len(closes)-1-period]
	if prev == 0 {
		return 0, false
	}
	return (closes[len(closes)-1]/prev - 1) * 100, true
}

// Bollinger calculates Bollinger Bands using the population standard
// deviation. Returns upper, middle and lower bands.
func Bollinger(closes []float64, period int, multiplier float64) (float64, float64, float64, bool) {
	if period <= 0 || len(closes) < period {
		return 0, 0, 0, false
	}
	window := closes[len(closes)-period:]
	middle := mean(window)
	sd := stddev(window, middle)
	return middle + multiplier*sd, middle, middle - multiplier*sd, true
}

// trueRanges returns the true range for every bar after the first
func trueRanges(highs, lows, closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prevClose := closes[i-1]
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - prevClose)
		tr3 := math.Abs(lows[i] - prevClose)
		out = append(out, math.Max(tr1, math.Max(tr2, tr3)))
	}
	return out
}

// wilder smooths values with Wilder's method, seeded by the mean of the
// first period values
func wilder(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	avg := mean(values[:period])
	out = append(out, avg)
	for _, v := range values[period:] {
		avg = (avg*float64(period-1) + v) / float64(period)
		out = append(out, avg)
	}
	return out
}

// ATR calculates the Average True Range with Wilder smoothing
func ATR(highs, lows, closes []float64, period int) (float64, bool) {
	if len(highs) != len(closes) || len(lows) != len(closes) || len(closes) < period+1 {
		return 0, false
	}
	smoothed := wilder(trueRanges(highs, lows, closes), period)
	if len(smoothed) == 0 {
		return 0, false
	}
	return smoothed[len(smoothed)-1], true
}

// ADX calculates the Average Directional Index.
// Returns ADX, +DI and -DI.
func ADX(highs, lows, closes []float64, period int) (float64, float64, float64, bool) {
	n := len(closes)
	if period <= 0 || len(highs) != n || len(lows) != n || n < 2*period+1 {
		return 0, 0, 0, false
	}

	plusDM := make([]float64, 0, n-1)
	minusDM := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		p, m := 0.0, 0.0
		if up > down && up > 0 {
			p = up
		}
		if down > up && down > 0 {
			m = down
		}
		plusDM = append(plusDM, p)
		minusDM = append(minusDM, m)
	}

	atr := wilder(trueRanges(highs, lows, closes), period)
	plus := wilder(plusDM, period)
	minus := wilder(minusDM, period)

	dx := make([]float64, len(atr))
	var plusDI, minusDI float64
	for i := range atr {
		if atr[i] == 0 {
			plusDI, minusDI = 0, 0
		} else {
			plusDI = plus[i] / atr[i] * 100
			minusDI = minus[i] / atr[i] * 100
		}
		if sum := plusDI + minusDI; sum > 0 {
			dx[i] = math.Abs(plusDI-minusDI) / sum * 100
		}
	}

	adx := wilder(dx, period)
	if len(adx) == 0 {
		return 0, 0, 0, false
	}
	return adx[len(adx)-1], plusDI, minusDI, true
}

// OBVSeries calculates On-Balance Volume for every bar
func OBVSeries(closes, volumes []float64) []float64 {
	if len(closes) == 0 || len(volumes) != len(closes) {
		return nil
	}
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// Slope returns the least squares slope of the last n values per bar
func Slope(values []float64, n int) float64 {
	if n > len(values) {
		n = len(values)
	}
	if n < 2 {
		return 0
	}
	window := values[len(values)-n:]

	xMean := float64(n-1) / 2
	yMean := mean(window)
	var num, den float64
	for i, y := range window {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// MFI calculates the Money Flow Index
func MFI(highs, lows, closes, volumes []float64, period int) (float64, bool) {
	n := len(closes)
	if period <= 0 || len(highs) != n || len(lows) != n || len(volumes) != n || n < period+1 {
		return NeutralMFI, false
	}

	typical := func(i int) float64 {
		return (highs[i] + lows[i] + closes[i]) / 3
	}

	var positive, negative float64
	for i := n - period; i < n; i++ {
		tp, prev := typical(i), typical(i-1)
		flow := tp * volumes[i]
		switch {
		case tp > prev:
			positive += flow
		case tp < prev:
			negative += flow
		}
	}

	switch {
	case positive == 0 && negative == 0:
		return NeutralMFI, true
	case negative == 0:
		return 100, true
	}
	ratio := positive / negative
	return 100 - (100 / (1 + ratio)), true
}

// PriceMomentum returns the percentage change from the close lookback bars
// back (inclusive of the last bar) to the last close
func PriceMomentum(closes []float64, lookback int) (float64, bool) {
	if lookback < 2 || len(closes) < lookback {
		return 0, false
	}
	first := closes[len(closes)-lookback]
	if first == 0 {
		return 0, false
	}
	return (closes[len(closes)-1]/first - 1) * 100, true
}

// VolumeMomentum compares the mean of the last recent volumes with the mean
// of the preceding (window - recent) volumes, as a percentage
func VolumeMomentum(volumes []float64, recent, window int) (float64, bool) {
	if recent <= 0 || window <= recent || len(volumes) < window {
		return 0, false
	}
	tail := volumes[len(volumes)-window:]
	base := mean(tail[:window-recent])
	if base == 0 {
		return 0, false
	}
	return (mean(tail[window-recent:])/base - 1) * 100, true
}

// PercentChange returns (to/from - 1) * 100, or 0 when from is zero
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to/from - 1) * 100
}

// PctChangeStdDev returns the population standard deviation of bar to bar
// percentage changes
func PctChangeStdDev(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		changes = append(changes, closes[i]/closes[i-1]-1)
	}
	if len(changes) == 0 {
		return 0
	}
	return stddev(changes, mean(changes)) * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func maxOf(values []float64) float64 {
	out := math.Inf(-1)
	for _, v := range values {
		out = math.Max(out, v)
	}
	return out
}

func minOf(values []float64) float64 {
	out := math.Inf(1)
	for _, v := range values {
		out = math.Min(out, v)
	}
	return out
}
