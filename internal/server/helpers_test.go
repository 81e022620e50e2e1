package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/common"
)

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no valid symbols", fmt.Errorf("%w: none", common.ErrNoValidSymbols), http.StatusBadRequest, CodeInvalidSymbol},
		{"rate limited", &common.ProviderError{Provider: "yahoo", StatusCode: 429, Err: common.ErrRateLimited}, http.StatusTooManyRequests, CodeRateLimited},
		{"rate limited beats no data", fmt.Errorf("%w: %w", common.ErrNoDataAvailable, common.ErrRateLimited), http.StatusTooManyRequests, CodeRateLimited},
		{"no data", fmt.Errorf("wrap: %w", common.ErrNoDataAvailable), http.StatusNotFound, CodeNoData},
		{"no data with 429 in vendor body", &common.NoDataError{Symbol: "AAA", Kind: "series", Attempts: 3, Last: &common.ProviderError{Provider: "yahoo", StatusCode: http.StatusBadGateway, Err: fmt.Errorf(`{"close": 429.5}`)}}, http.StatusNotFound, CodeNoData},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := ServiceErrorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteJSON_SanitizesNonFinite(t *testing.T) {
	rec := httptest.NewRecorder()
	payload := &struct {
		Value float64 `json:"value"`
	}{Value: math.NaN()}

	WriteJSON(rec, http.StatusOK, payload)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 0.0, out["value"])
}

func TestRequireMethod(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/health", nil)

	assert.False(t, RequireMethod(rec, req, http.MethodGet, http.MethodHead))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))

	rec = httptest.NewRecorder()
	assert.True(t, RequireMethod(rec, httptest.NewRequest(http.MethodHead, "/", nil), http.MethodGet, http.MethodHead))
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Queries []string `json:"queries"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"queries":["AAPL"]}`))
	require.True(t, DecodeJSON(rec, req, &v))
	assert.Equal(t, []string{"AAPL"}, v.Queries)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`not json`))
	assert.False(t, DecodeJSON(rec, req, &v))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPathParam(t *testing.T) {
	tests := []struct {
		path   string
		prefix string
		suffix string
		want   string
	}{
		{"/api/series/AAPL", "/api/series/", "", "AAPL"},
		{"/api/series/AAPL/extra", "/api/series/", "", "AAPL"},
		{"/api/series/", "/api/series/", "", ""},
		{"/api/other/AAPL", "/api/series/", "", ""},
		{"/api/analyze/AAPL/report", "/api/analyze/", "/report", "AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, PathParam(req, tt.prefix, tt.suffix))
		})
	}
}

func TestQueryBool(t *testing.T) {
	tests := []struct {
		query    string
		fallback bool
		want     bool
	}{
		{"", false, false},
		{"", true, true},
		{"commentary=true", false, true},
		{"commentary=0", true, false},
		{"commentary=maybe", true, true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/analyze/AAPL?"+tt.query, nil)
		assert.Equal(t, tt.want, QueryBool(req, "commentary", tt.fallback), tt.query)
	}
}

func TestParseTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseTimeout(""))
	assert.Equal(t, time.Duration(0), ParseTimeout("soon"))
	assert.Equal(t, time.Duration(0), ParseTimeout("-5s"))
	assert.Equal(t, 30*time.Second, ParseTimeout("30s"))
}
