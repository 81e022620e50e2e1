// Package alphavantage provides a client for the Alpha Vantage API
package alphavantage

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

const (
	ProviderName     = "alphavantage"
	DefaultBaseURL   = "https://www.alphavantage.co"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 1
)

// Client implements interfaces.MarketDataProvider against Alpha Vantage
type Client struct {
	baseURL    string
	apiKey     string
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

// WithClock overrides the clock used to trim the series window
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Alpha Vantage client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
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

// query calls the single /query endpoint. Alpha Vantage answers 200 even when
// throttled, so the advisory keys are checked before decoding into result.
func (c *Client) query(ctx context.Context, function string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("function", function)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("function", function).Str("symbol", params.Get("symbol")).Msg("Alpha Vantage API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.ProviderError{Provider: ProviderName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &common.ProviderError{
			Provider:   ProviderName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status for %s", function),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.ProviderError{Provider: ProviderName, StatusCode: resp.StatusCode, Err: err}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", common.ErrMalformedPayload, ProviderName, err)
	}

	for _, key := range []string{"Note", "Information"} {
		if msg, ok := raw[key]; ok {
			return &common.ProviderError{
				Provider:   ProviderName,
				StatusCode: http.StatusTooManyRequests,
				Err:        fmt.Errorf("%w: %s", common.ErrRateLimited, unquote(msg)),
			}
		}
	}
	if msg, ok := raw["Error Message"]; ok {
		return common.Permanent(fmt.Errorf("%w: %s: %s", common.ErrMalformedPayload, ProviderName, unquote(msg)))
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s returned an empty document for %s", common.ErrMalformedPayload, ProviderName, function)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrMalformedPayload, ProviderName, err)
	}
	return nil
}

type dailyResponse struct {
	Series map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

// FetchSeries retrieves daily bars, trimmed to the period, oldest first
func (c *Client) FetchSeries(ctx context.Context, symbol string, period models.Period) (*models.MarketSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	params := url.Values{}
	params.Set("symbol", symbol)
	if period.Days() > 100 {
		params.Set("outputsize", "full")
	} else {
		params.Set("outputsize", "compact")
	}

	var resp dailyResponse
	if err := c.query(ctx, "TIME_SERIES_DAILY", params, &resp); err != nil {
		return nil, err
	}

	cutoff := c.now().UTC().AddDate(0, 0, -period.Days())
	bars := make([]models.Bar, 0, len(resp.Series))
	for day, v := range resp.Series {
		date, err := time.Parse("2006-01-02", day)
		if err != nil || date.Before(cutoff) {
			continue
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   parseFloat(v.Open),
			High:   parseFloat(v.High),
			Low:    parseFloat(v.Low),
			Close:  parseFloat(v.Close),
			Volume: int64(parseFloat(v.Volume)),
		})
	}

	bars = models.NormalizeBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s returned no bars for %s", common.ErrMalformedPayload, ProviderName, symbol)
	}

	return &models.MarketSeries{
		Symbol:    symbol,
		Source:    ProviderName,
		Period:    period,
		Bars:      bars,
		FetchedAt: c.now(),
	}, nil
}

type overviewResponse struct {
	Symbol                    string `json:"Symbol"`
	Name                      string `json:"Name"`
	Description               string `json:"Description"`
	Sector                    string `json:"Sector"`
	Industry                  string `json:"Industry"`
	MarketCapitalization      string `json:"MarketCapitalization"`
	PERatio                   string `json:"PERatio"`
	TrailingPE                string `json:"TrailingPE"`
	ForwardPE                 string `json:"ForwardPE"`
	PEGRatio                  string `json:"PEGRatio"`
	PriceToBookRatio          string `json:"PriceToBookRatio"`
	ProfitMargin              string `json:"ProfitMargin"`
	OperatingMarginTTM        string `json:"OperatingMarginTTM"`
	QuarterlyRevenueGrowthYOY string `json:"QuarterlyRevenueGrowthYOY"`
	DividendYield             string `json:"DividendYield"`
	Beta                      string `json:"Beta"`
}

// FetchFundamentals retrieves the company overview
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	params := url.Values{}
	params.Set("symbol", symbol)

	var resp overviewResponse
	if err := c.query(ctx, "OVERVIEW", params, &resp); err != nil {
		return nil, err
	}
	if resp.Symbol == "" && resp.Name == "" {
		return nil, fmt.Errorf("%w: %s overview for %s is empty", common.ErrMalformedPayload, ProviderName, symbol)
	}

	trailing := parseFloat(resp.TrailingPE)
	if trailing == 0 {
		trailing = parseFloat(resp.PERatio)
	}

	info := &models.FundamentalInfo{
		Symbol:          symbol,
		Source:          ProviderName,
		Name:            resp.Name,
		Sector:          titleCase(resp.Sector),
		Industry:        titleCase(resp.Industry),
		Description:     resp.Description,
		MarketCap:       parseFloat(resp.MarketCapitalization),
		TrailingPE:      trailing,
		ForwardPE:       parseFloat(resp.ForwardPE),
		PEGRatio:        parseFloat(resp.PEGRatio),
		PriceToBook:     parseFloat(resp.PriceToBookRatio),
		ProfitMargin:    parseFloat(resp.ProfitMargin) * 100,
		OperatingMargin: parseFloat(resp.OperatingMarginTTM) * 100,
		RevenueGrowth:   parseFloat(resp.QuarterlyRevenueGrowthYOY) * 100,
		DividendYield:   parseFloat(resp.DividendYield) * 100,
		Beta:            parseFloat(resp.Beta),
		FetchedAt:       c.now(),
	}
	info.ApplyDefaults()
	common.SanitizeValue(info)

	return info, nil
}

// parseFloat reads Alpha Vantage's string numbers; "None", "-" and blanks are 0
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return common.SanitizeFloat(v)
}

// titleCase turns "TECHNOLOGY" into "Technology"
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func unquote(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw)
	}
	return s
}
