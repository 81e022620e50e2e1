// Package models defines data structures for Sift
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Period is a history window requested from a market data provider.
type Period string

const (
	Period1Month  Period = "1mo"
	Period3Months Period = "3mo"
	Period6Months Period = "6mo"
	Period1Year   Period = "1y"
	Period2Years  Period = "2y"
)

// ParsePeriod maps a string to a Period, defaulting to six months.
func ParsePeriod(s string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case Period1Month:
		return Period1Month
	case Period3Months:
		return Period3Months
	case Period1Year:
		return Period1Year
	case Period2Years:
		return Period2Years
	default:
		return Period6Months
	}
}

// Days returns the calendar span of the period.
func (p Period) Days() int {
	switch p {
	case Period1Month:
		return 31
	case Period3Months:
		return 92
	case Period1Year:
		return 366
	case Period2Years:
		return 731
	default:
		return 183
	}
}

// Bar represents a single period's price data
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// MarketSeries holds OHLCV bars for a symbol in ascending date order.
// A series returned by a provider is never modified afterwards.
type MarketSeries struct {
	Symbol    string    `json:"symbol"`
	Source    string    `json:"source"`
	Period    Period    `json:"period"`
	Bars      []Bar     `json:"bars"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Len returns the number of bars
func (s *MarketSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Last returns the most recent bar
func (s *MarketSeries) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns the close prices oldest first
func (s *MarketSeries) Closes() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high prices oldest first
func (s *MarketSeries) Highs() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low prices oldest first
func (s *MarketSeries) Lows() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes returns volumes oldest first as floats
func (s *MarketSeries) Volumes() []float64 {
	out := make([]float64, s.Len())
	for i, b := range s.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// Validate checks the canonical shape: non-empty, strictly increasing dates
// and positive closes.
func (s *MarketSeries) Validate() error {
	if s == nil || len(s.Bars) == 0 {
		return fmt.Errorf("series is empty")
	}
	if s.Symbol == "" {
		return fmt.Errorf("series has no symbol")
	}
	for i, b := range s.Bars {
		if b.Close <= 0 {
			return fmt.Errorf("bar %d (%s) has non-positive close", i, b.Date.Format("2006-01-02"))
		}
		if i > 0 && !b.Date.After(s.Bars[i-1].Date) {
			return fmt.Errorf("bar %d (%s) is not after previous bar", i, b.Date.Format("2006-01-02"))
		}
	}
	return nil
}

// NormalizeBars sorts bars ascending, drops bars without a positive close and
// keeps the last bar seen for any duplicated date. High and low are widened to
// contain open and close when a vendor reports them inconsistently.
func NormalizeBars(bars []Bar) []Bar {
	byDate := make(map[int64]Bar, len(bars))
	for _, b := range bars {
		if b.Close <= 0 || b.Date.IsZero() {
			continue
		}
		if b.Open <= 0 {
			b.Open = b.Close
		}
		if b.High < b.Close || b.High < b.Open {
			b.High = max(b.Open, b.Close, b.High)
		}
		if b.Low <= 0 || b.Low > b.Close || b.Low > b.Open {
			b.Low = min(b.Open, b.Close)
		}
		if b.Volume < 0 {
			b.Volume = 0
		}
		byDate[b.Date.Unix()] = b
	}

	out := make([]Bar, 0, len(byDate))
	for _, b := range byDate {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// FundamentalInfo holds company attributes. Missing values are zero or
// "Unknown", never absent.
type FundamentalInfo struct {
	Symbol          string    `json:"symbol"`
	Source          string    `json:"source"`
	Name            string    `json:"name"`
	Sector          string    `json:"sector"`
	Industry        string    `json:"industry"`
	Description     string    `json:"description"`
	MarketCap       float64   `json:"market_cap"`
	TrailingPE      float64   `json:"trailing_pe"`
	ForwardPE       float64   `json:"forward_pe"`
	PEGRatio        float64   `json:"peg_ratio"`
	PriceToBook     float64   `json:"price_to_book"`
	ProfitMargin    float64   `json:"profit_margin"`    // percent
	OperatingMargin float64   `json:"operating_margin"` // percent
	RevenueGrowth   float64   `json:"revenue_growth"`   // percent
	DividendYield   float64   `json:"dividend_yield"`   // percent
	DebtToEquity    float64   `json:"debt_to_equity"`
	CurrentRatio    float64   `json:"current_ratio"`
	Beta            float64   `json:"beta"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// Unknown is the neutral text value for missing fundamentals.
const Unknown = "Unknown"

// NeutralFundamentals returns a FundamentalInfo with every field at its
// neutral sentinel.
func NeutralFundamentals(symbol string) *FundamentalInfo {
	f := &FundamentalInfo{Symbol: symbol}
	f.ApplyDefaults()
	return f
}

// ApplyDefaults fills empty text fields with Unknown.
func (f *FundamentalInfo) ApplyDefaults() {
	if f.Name == "" {
		f.Name = f.Symbol
	}
	if f.Name == "" {
		f.Name = Unknown
	}
	if f.Sector == "" {
		f.Sector = Unknown
	}
	if f.Industry == "" {
		f.Industry = Unknown
	}
	if f.Description == "" {
		f.Description = Unknown
	}
}

// Validate requires a symbol and at least one populated attribute.
func (f *FundamentalInfo) Validate() error {
	if f == nil || f.Symbol == "" {
		return fmt.Errorf("fundamentals have no symbol")
	}
	if f.MarketCap == 0 && f.TrailingPE == 0 && f.ForwardPE == 0 &&
		f.ProfitMargin == 0 && f.Beta == 0 &&
		(f.Sector == "" || f.Sector == Unknown) {
		return fmt.Errorf("fundamentals for %s are empty", f.Symbol)
	}
	return nil
}
