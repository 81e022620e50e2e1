package signals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/models"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		period   int
		expected float64
	}{
		{"simple 3-day SMA", []float64{10, 20, 30}, 3, 20.0},
		{"uses most recent window", []float64{10, 20, 30, 40, 50}, 2, 45.0},
		{"insufficient data", []float64{10, 20}, 5, 0.0},
		{"zero period", []float64{10, 20}, 0, 0.0},
		{"nil values", nil, 3, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, SMA(tt.values, tt.period), 0.0001)
		})
	}
}

func TestEMASeries(t *testing.T) {
	// seed = mean(1,2,3) = 2, multiplier = 0.5
	assert.Equal(t, []float64{2, 3, 4}, EMASeries([]float64{1, 2, 3, 4, 5}, 3))
	assert.Nil(t, EMASeries([]float64{1, 2}, 3))
	assert.InDelta(t, 4.0, EMA([]float64{1, 2, 3, 4, 5}, 3), 0.0001)
	assert.Equal(t, 0.0, EMA(nil, 3))
}

func TestMACD(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		_, _, _, ok := MACD(trend(100, 1, 33), 12, 26, 9)
		assert.False(t, ok)
	})

	t.Run("flat series is zero", func(t *testing.T) {
		line, signal, hist, ok := MACD(flat(100, 40), 12, 26, 9)
		assert.True(t, ok)
		assert.InDelta(t, 0, line, 1e-9)
		assert.InDelta(t, 0, signal, 1e-9)
		assert.InDelta(t, 0, hist, 1e-9)
	})

	t.Run("uptrend has positive line", func(t *testing.T) {
		line, _, _, ok := MACD(trend(100, 1, 60), 12, 26, 9)
		assert.True(t, ok)
		assert.Greater(t, line, 0.0)
	})

	t.Run("accelerating uptrend has positive histogram", func(t *testing.T) {
		closes := make([]float64, 60)
		for i := range closes {
			closes[i] = 100 + float64(i*i)/10
		}
		_, _, hist, ok := MACD(closes, 12, 26, 9)
		assert.True(t, ok)
		assert.Greater(t, hist, 0.0)
	})
}

func TestRSI(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		minRSI float64
		maxRSI float64
		valid  bool
	}{
		{"flat series is neutral", flat(100, 30), 50, 50, true},
		{"monotonic growth", trend(100, 1, 30), 100, 100, true},
		{"monotonic decline", trend(100, -1, 30), 0, 0, true},
		{"insufficient data", trend(100, 1, 14), 50, 50, false},
		{"empty", nil, 50, 50, false},
		{"alternating", alternating(100, 98, 30), 20, 80, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi, ok := RSI(tt.closes, 14)
			assert.Equal(t, tt.valid, ok)
			assert.GreaterOrEqual(t, rsi, tt.minRSI)
			assert.LessOrEqual(t, rsi, tt.maxRSI)
			assert.False(t, math.IsNaN(rsi))
		})
	}
}

func TestRSI_ExtremeValues(t *testing.T) {
	closes := []float64{1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10, 1e11, 1e12, 1e13, 1e14, 1e15, 1e14}
	rsi, ok := RSI(closes, 14)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestStochastic(t *testing.T) {
	t.Run("flat range is neutral", func(t *testing.T) {
		c := flat(50, 20)
		k, d, ok := Stochastic(c, c, c, 14, 3)
		assert.True(t, ok)
		assert.Equal(t, 50.0, k)
		assert.Equal(t, 50.0, d)
	})

	t.Run("close at highest high", func(t *testing.T) {
		closes := trend(100, 1, 20)
		lows := make([]float64, len(closes))
		for i, c := range closes {
			lows[i] = c - 2
		}
		k, d, ok := Stochastic(closes, lows, closes, 14, 3)
		assert.True(t, ok)
		assert.InDelta(t, 100.0, k, 0.0001)
		assert.InDelta(t, 100.0, d, 0.0001)
	})

	t.Run("insufficient data", func(t *testing.T) {
		c := flat(50, 15)
		k, d, ok := Stochastic(c, c, c, 14, 3)
		assert.False(t, ok)
		assert.Equal(t, NeutralStoch, k)
		assert.Equal(t, NeutralStoch, d)
	})
}

func TestROC(t *testing.T) {
	roc, ok := ROC(trend(1, 1, 13), 12)
	assert.True(t, ok)
	assert.InDelta(t, 1200.0, roc, 0.0001)

	_, ok = ROC(trend(1, 1, 12), 12)
	assert.False(t, ok)
}

func TestBollinger(t *testing.T) {
	upper, middle, lower, ok := Bollinger(flat(100, 20), 20, 2)
	assert.True(t, ok)
	assert.Equal(t, 100.0, upper)
	assert.Equal(t, 100.0, middle)
	assert.Equal(t, 100.0, lower)

	upper, middle, lower, ok = Bollinger(alternating(102, 98, 20), 20, 2)
	assert.True(t, ok)
	assert.InDelta(t, 100.0, middle, 0.0001)
	assert.InDelta(t, 104.0, upper, 0.0001) // stddev 2
	assert.InDelta(t, 96.0, lower, 0.0001)

	_, _, _, ok = Bollinger(flat(100, 19), 20, 2)
	assert.False(t, ok)
}

func TestATR(t *testing.T) {
	closes := flat(100, 20)
	highs := flat(101, 20)
	lows := flat(99, 20)

	atr, ok := ATR(highs, lows, closes, 14)
	assert.True(t, ok)
	assert.InDelta(t, 2.0, atr, 0.0001)

	_, ok = ATR(highs[:14], lows[:14], closes[:14], 14)
	assert.False(t, ok)
}

func TestADX(t *testing.T) {
	closes := trend(100, 2, 60)
	highs := make([]float64, len(closes))
	lows := make([]float64, len(closes))
	for i, c := range closes {
		highs[i] = c + 1
		lows[i] = c - 1
	}

	adx, plusDI, minusDI, ok := ADX(highs, lows, closes, 14)
	assert.True(t, ok)
	assert.Greater(t, adx, TrendStrengthThreshold)
	assert.Greater(t, plusDI, minusDI)

	_, _, _, ok = ADX(highs[:28], lows[:28], closes[:28], 14)
	assert.False(t, ok)
}

func TestOBVSeries(t *testing.T) {
	closes := []float64{10, 11, 10, 10, 12}
	volumes := []float64{100, 200, 300, 400, 500}
	assert.Equal(t, []float64{0, 200, -100, -100, 400}, OBVSeries(closes, volumes))
	assert.Nil(t, OBVSeries(closes, volumes[:2]))
}

func TestOBVSeries_Monotonic(t *testing.T) {
	nonDecreasing := func(values []float64) bool {
		for i := 1; i < len(values); i++ {
			if values[i] < values[i-1] {
				return false
			}
		}
		return true
	}

	tests := []struct {
		name    string
		closes  []float64
		volumes []float64
		want    bool
	}{
		{"flat price constant volume", flat(100, 30), flat(1000, 30), true},
		{"rising price constant volume", trend(100, 1, 30), flat(1000, 30), true},
		{"flat then up constant volume", []float64{10, 10, 11, 11, 12, 13}, flat(500, 6), true},
		{"falling price constant volume", trend(100, -1, 30), flat(1000, 30), false},
		{"single down bar constant volume", []float64{10, 11, 12, 11, 12, 13}, flat(500, 6), false},
		{"down bar at the end", []float64{10, 10, 11, 12, 12, 11}, flat(500, 6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obv := OBVSeries(tt.closes, tt.volumes)
			require.Len(t, obv, len(tt.closes))
			assert.Equal(t, tt.want, nonDecreasing(obv))
		})
	}
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 2.0, Slope([]float64{0, 2, 4, 6}, 10), 0.0001)
	assert.InDelta(t, -1.0, Slope([]float64{9, 9, 3, 2, 1}, 3), 0.0001)
	assert.Equal(t, 0.0, Slope([]float64{5}, 10))
}

func TestMFI(t *testing.T) {
	rising := trend(100, 1, 20)
	vol := flat(1000, 20)
	mfi, ok := MFI(rising, rising, rising, vol, 14)
	assert.True(t, ok)
	assert.Equal(t, 100.0, mfi)

	c := flat(100, 20)
	mfi, ok = MFI(c, c, c, vol, 14)
	assert.True(t, ok)
	assert.Equal(t, NeutralMFI, mfi)

	mfi, ok = MFI(c[:14], c[:14], c[:14], vol[:14], 14)
	assert.False(t, ok)
	assert.Equal(t, NeutralMFI, mfi)
}

func TestPriceMomentum(t *testing.T) {
	m, ok := PriceMomentum(trend(100, 1, 20), 20)
	assert.True(t, ok)
	assert.InDelta(t, 19.0, m, 0.0001)

	_, ok = PriceMomentum(trend(100, 1, 19), 20)
	assert.False(t, ok)
}

func TestVolumeMomentum(t *testing.T) {
	volumes := append(flat(100, 15), flat(150, 5)...)
	m, ok := VolumeMomentum(volumes, 5, 20)
	assert.True(t, ok)
	assert.InDelta(t, 50.0, m, 0.0001)

	_, ok = VolumeMomentum(flat(0, 20), 5, 20)
	assert.False(t, ok, "zero base volume")

	_, ok = VolumeMomentum(flat(100, 10), 5, 20)
	assert.False(t, ok)
}

func TestPctChangeStdDev(t *testing.T) {
	assert.Equal(t, 0.0, PctChangeStdDev(flat(100, 10)))
	assert.Equal(t, 0.0, PctChangeStdDev([]float64{100}))
	assert.Greater(t, PctChangeStdDev(alternating(100, 90, 10)), 0.0)
}

// Helper functions

func flat(value float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = value
	}
	return out
}

func trend(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func alternating(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = a
		} else {
			out[i] = b
		}
	}
	return out
}

func seriesFromCloses(symbol string, closes []float64) *models.MarketSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &models.MarketSeries{Symbol: symbol, Source: "test", Period: models.Period6Months}
	for i, c := range closes {
		s.Bars = append(s.Bars, models.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1000000,
		})
	}
	return s
}
