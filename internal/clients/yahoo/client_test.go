package yahoo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// 2024-06-26, 2024-06-27, 2024-06-28 at 13:30 UTC
const chartBody = `{
	"chart": {
		"result": [{
			"meta": {"symbol": "AAPL", "currency": "USD"},
			"timestamp": [1719495000, 1719408600, 1719581400],
			"indicators": {"quote": [{
				"open":   [212.0, 210.0, null],
				"high":   [214.0, 212.0, null],
				"low":    [211.0, 209.0, null],
				"close":  [213.5, 211.0, null],
				"volume": [51000000, 48000000, null]
			}]}
		}],
		"error": null
	}
}`

func TestFetchSeries_SkipsNullsAndSorts(t *testing.T) {
	var gotPath, gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	series, err := client.FetchSeries(context.Background(), "aapl", models.Period3Months)
	if err != nil {
		t.Fatalf("FetchSeries failed: %v", err)
	}

	if gotPath != "/v8/finance/chart/AAPL" {
		t.Errorf("path = %q", gotPath)
	}
	if gotRange != "3mo" {
		t.Errorf("range = %q, want 3mo", gotRange)
	}
	if len(series.Bars) != 2 {
		t.Fatalf("expected 2 bars (null bar skipped), got %d", len(series.Bars))
	}
	if series.Bars[0].Close != 211.0 || series.Bars[1].Close != 213.5 {
		t.Errorf("bars not ascending: %v", series.Closes())
	}
	if series.Bars[1].Volume != 51000000 {
		t.Errorf("volume = %d", series.Bars[1].Volume)
	}
	if series.Source != ProviderName {
		t.Errorf("source = %q", series.Source)
	}
	if err := series.Validate(); err != nil {
		t.Errorf("series should validate: %v", err)
	}
}

func TestFetchSeries_ChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Bad Request", "description": "Invalid input"}}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchSeries(context.Background(), "AAPL", models.Period6Months)
	if !errors.Is(err, common.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestFetchSeries_Status(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, common.ErrRateLimited},
		{"not found", http.StatusNotFound, common.ErrNoDataAvailable},
		{"bad gateway", http.StatusBadGateway, common.ErrProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(WithBaseURL(srv.URL))
			_, err := client.FetchSeries(context.Background(), "AAPL", models.Period6Months)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestFetchFundamentals(t *testing.T) {
	body := `{"quoteSummary": {"result": [{
		"price": {"longName": "Apple Inc.", "marketCap": {"raw": 3300000000000, "fmt": "3.3T"}},
		"summaryProfile": {"sector": "Technology", "industry": "Consumer Electronics"},
		"summaryDetail": {"trailingPE": {"raw": 33.1}, "forwardPE": {"raw": 29.4}, "dividendYield": {"raw": 0.0045}, "beta": {"raw": 1.25}},
		"defaultKeyStatistics": {"pegRatio": {"raw": 2.9}, "priceToBook": {"raw": 48.2}},
		"financialData": {"profitMargins": {"raw": 0.26}, "operatingMargins": {"raw": 0.30}, "revenueGrowth": {"raw": 0.05}}
	}], "error": null}}`

	var gotModules string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotModules = r.URL.Query().Get("modules")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	info, err := client.FetchFundamentals(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("FetchFundamentals failed: %v", err)
	}

	if gotModules == "" {
		t.Error("modules parameter missing")
	}
	if info.Name != "Apple Inc." || info.Sector != "Technology" {
		t.Errorf("identity = %q / %q", info.Name, info.Sector)
	}
	if info.ForwardPE != 29.4 {
		t.Errorf("forward PE = %.2f", info.ForwardPE)
	}
	if math.Abs(info.ProfitMargin-26) > 1e-9 {
		t.Errorf("profit margin = %.4f, want 26 (percent)", info.ProfitMargin)
	}
	if info.Description != models.Unknown {
		t.Errorf("empty description should default to %q, got %q", models.Unknown, info.Description)
	}
}

func TestFetchFundamentals_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteSummary": {"result": [{}], "error": null}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.FetchFundamentals(context.Background(), "AAPL")
	if !errors.Is(err, common.ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestNewAltClient(t *testing.T) {
	client := NewAltClient()
	if client.Name() != AltProviderName {
		t.Errorf("name = %q", client.Name())
	}
	if client.baseURL != AltBaseURL {
		t.Errorf("baseURL = %q", client.baseURL)
	}

	overridden := NewAltClient(WithBaseURL("http://localhost:1"))
	if overridden.baseURL != "http://localhost:1" {
		t.Errorf("options should apply after defaults, baseURL = %q", overridden.baseURL)
	}
}
