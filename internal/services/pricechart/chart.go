// Package pricechart renders price charts for a market series
package pricechart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/sift/internal/models"
)

const (
	shortMA = 20
	longMA  = 50
)

// RenderPriceChart renders a PNG of closing prices with 20 and 50 bar
// moving averages and Bollinger bands. Overlays are included only when the
// series is long enough for them.
func RenderPriceChart(series *models.MarketSeries) ([]byte, error) {
	if series == nil || series.Len() < 2 {
		return nil, fmt.Errorf("need at least 2 bars to chart")
	}

	xValues := make([]time.Time, series.Len())
	for i, b := range series.Bars {
		xValues[i] = b.Date
	}

	price := chart.TimeSeries{
		Name: series.Symbol,
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2,
		},
		XValues: xValues,
		YValues: series.Closes(),
	}

	plotted := []chart.Series{}
	if series.Len() >= shortMA {
		plotted = append(plotted, &chart.BollingerBandsSeries{
			Name: "Bollinger (20, 2)",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("d1d5db"), // gray-300
				FillColor:   drawing.ColorFromHex("f3f4f6"), // gray-100
			},
			Period:      shortMA,
			K:           2,
			InnerSeries: price,
		})
	}
	plotted = append(plotted, price)
	if series.Len() >= shortMA {
		plotted = append(plotted, chart.SMASeries{
			Name: "SMA 20",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("f59e0b"), // amber-500
				StrokeWidth: 1.5,
			},
			Period:      shortMA,
			InnerSeries: price,
		})
	}
	if series.Len() >= longMA {
		plotted = append(plotted, chart.SMASeries{
			Name: "SMA 50",
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("dc2626"), // red-600
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			Period:      longMA,
			InnerSeries: price,
		})
	}

	graph := chart.Chart{
		Title:  fmt.Sprintf("%s (%s)", series.Symbol, series.Period),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: plotted,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
