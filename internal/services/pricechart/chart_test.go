package pricechart

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/models"
)

func makeSeries(n int) *models.MarketSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &models.MarketSeries{Symbol: "AAPL", Period: models.Period6Months}
	for i := 0; i < n; i++ {
		c := 100 + float64(i%11) - float64(i%3)
		s.Bars = append(s.Bars, models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000})
	}
	return s
}

func TestRenderPriceChart(t *testing.T) {
	tests := []struct {
		name string
		bars int
	}{
		{"short series without overlays", 5},
		{"short moving average only", 30},
		{"all overlays", 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := RenderPriceChart(makeSeries(tt.bars))
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 900, img.Bounds().Dx())
			assert.Equal(t, 400, img.Bounds().Dy())
		})
	}
}

func TestRenderPriceChart_TooShort(t *testing.T) {
	_, err := RenderPriceChart(makeSeries(1))
	assert.Error(t, err)

	_, err = RenderPriceChart(nil)
	assert.Error(t, err)
}
