// Package eodhd provides a client for the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "None" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	if string(data) == "null" {
		*f = 0
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	ProviderName     = "eodhd"
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"
)

// Client implements interfaces.MarketDataProvider against EODHD
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	now        func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithExchange sets the exchange suffix appended to plain tickers
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = strings.ToUpper(exchange)
	}
}

// WithClock overrides the clock used to compute date ranges
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name identifies the provider
func (c *Client) Name() string {
	return ProviderName
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Is maps HTTP status onto the shared error taxonomy.
func (e *APIError) Is(target error) bool {
	switch target {
	case common.ErrProvider:
		return true
	case common.ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: eodhd request failed: %v", common.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
		if resp.StatusCode == http.StatusNotFound {
			return common.Permanent(apiErr)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", common.ErrMalformedPayload, err)
	}

	return nil
}

// code maps a canonical symbol to an EODHD code (AAPL -> AAPL.US, ^GSPC -> GSPC.INDX).
func (c *Client) code(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasPrefix(symbol, "^") {
		return strings.TrimPrefix(symbol, "^") + ".INDX"
	}
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + c.exchange
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Open          flexFloat64 `json:"open"`
	High          flexFloat64 `json:"high"`
	Low           flexFloat64 `json:"low"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
	Volume        flexFloat64 `json:"volume"`
}

// FetchSeries retrieves daily bars for the period, oldest first
func (c *Client) FetchSeries(ctx context.Context, symbol string, period models.Period) (*models.MarketSeries, error) {
	to := c.now().UTC()
	from := to.AddDate(0, 0, -period.Days())

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var bars []eodBarResponse
	if err := c.get(ctx, "/eod/"+c.code(symbol), params, &bars); err != nil {
		return nil, err
	}

	out := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse("2006-01-02", bar.Date)
		if err != nil {
			continue
		}
		out = append(out, models.Bar{
			Date:   date,
			Open:   common.SanitizeFloat(float64(bar.Open)),
			High:   common.SanitizeFloat(float64(bar.High)),
			Low:    common.SanitizeFloat(float64(bar.Low)),
			Close:  common.SanitizeFloat(float64(bar.Close)),
			Volume: int64(common.SanitizeFloat(float64(bar.Volume))),
		})
	}
	out = models.NormalizeBars(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: eodhd returned no bars for %s", common.ErrMalformedPayload, symbol)
	}

	return &models.MarketSeries{
		Symbol:    strings.ToUpper(symbol),
		Source:    ProviderName,
		Period:    period,
		Bars:      out,
		FetchedAt: c.now(),
	}, nil
}

// fundamentalsResponse is the subset of the EODHD fundamentals document used
type fundamentalsResponse struct {
	General struct {
		Code        string `json:"Code"`
		Name        string `json:"Name"`
		Type        string `json:"Type"`
		Sector      string `json:"Sector"`
		Industry    string `json:"Industry"`
		Description string `json:"Description"`
	} `json:"General"`
	Highlights struct {
		MarketCapitalization      flexFloat64 `json:"MarketCapitalization"`
		PERatio                   flexFloat64 `json:"PERatio"`
		PEGRatio                  flexFloat64 `json:"PEGRatio"`
		ProfitMargin              flexFloat64 `json:"ProfitMargin"`
		OperatingMarginTTM        flexFloat64 `json:"OperatingMarginTTM"`
		QuarterlyRevenueGrowthYOY flexFloat64 `json:"QuarterlyRevenueGrowthYOY"`
		DividendYield             flexFloat64 `json:"DividendYield"`
	} `json:"Highlights"`
	Valuation struct {
		TrailingPE   flexFloat64 `json:"TrailingPE"`
		ForwardPE    flexFloat64 `json:"ForwardPE"`
		PriceBookMRQ flexFloat64 `json:"PriceBookMRQ"`
	} `json:"Valuation"`
	Technicals struct {
		Beta flexFloat64 `json:"Beta"`
	} `json:"Technicals"`
}

// FetchFundamentals retrieves company attributes
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalInfo, error) {
	var resp fundamentalsResponse
	if err := c.get(ctx, "/fundamentals/"+c.code(symbol), nil, &resp); err != nil {
		return nil, err
	}

	if resp.General.Name == "" && resp.General.Code == "" {
		return nil, fmt.Errorf("%w: eodhd fundamentals for %s have no General section", common.ErrMalformedPayload, symbol)
	}

	trailing := float64(resp.Valuation.TrailingPE)
	if trailing == 0 {
		trailing = float64(resp.Highlights.PERatio)
	}

	info := &models.FundamentalInfo{
		Symbol:          strings.ToUpper(symbol),
		Source:          ProviderName,
		Name:            resp.General.Name,
		Sector:          resp.General.Sector,
		Industry:        resp.General.Industry,
		Description:     resp.General.Description,
		MarketCap:       float64(resp.Highlights.MarketCapitalization),
		TrailingPE:      trailing,
		ForwardPE:       float64(resp.Valuation.ForwardPE),
		PEGRatio:        float64(resp.Highlights.PEGRatio),
		PriceToBook:     float64(resp.Valuation.PriceBookMRQ),
		ProfitMargin:    float64(resp.Highlights.ProfitMargin) * 100,
		OperatingMargin: float64(resp.Highlights.OperatingMarginTTM) * 100,
		RevenueGrowth:   float64(resp.Highlights.QuarterlyRevenueGrowthYOY) * 100,
		DividendYield:   float64(resp.Highlights.DividendYield) * 100,
		Beta:            float64(resp.Technicals.Beta),
		FetchedAt:       c.now(),
	}
	info.ApplyDefaults()
	common.SanitizeValue(info)

	return info, nil
}
