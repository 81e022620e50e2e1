// Package yahoo provides a client for the Yahoo Finance chart and quote
// summary endpoints
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

const (
	ProviderName     = "yahoo"
	AltProviderName  = "yahoo_alt"
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	AltBaseURL       = "https://query2.finance.yahoo.com"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5
	userAgent        = "Mozilla/5.0 (compatible; sift/1.0)"
)

// summaryModules are the quoteSummary modules needed for FundamentalInfo
var summaryModules = []string{"price", "summaryProfile", "summaryDetail", "defaultKeyStatistics", "financialData"}

// Client implements interfaces.MarketDataProvider against Yahoo Finance
type Client struct {
	name       string
	baseURL    string
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

// WithName overrides the provider name reported in logs and stats
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
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

// WithClock overrides the time source stamped on results
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Yahoo Finance client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		name:    ProviderName,
		baseURL: DefaultBaseURL,
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

// NewAltClient creates a client for the secondary Yahoo host
func NewAltClient(opts ...ClientOption) *Client {
	base := []ClientOption{WithBaseURL(AltBaseURL), WithName(AltProviderName)}
	return NewClient(append(base, opts...)...)
}

// Name identifies the provider
func (c *Client) Name() string {
	return c.name
}

// yahooError is the error object embedded in chart and quoteSummary payloads
type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// get performs a rate-limited GET request and decodes the body into result.
// Error bodies are decoded too since Yahoo reports "Not Found" as JSON.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("provider", c.name).Str("path", path).Msg("Yahoo API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &common.ProviderError{Provider: c.name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.ProviderError{Provider: c.name, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return common.Permanent(&common.ProviderError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", common.ErrNoDataAvailable, path),
		})
	case resp.StatusCode != http.StatusOK:
		return &common.ProviderError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(truncate(string(body), 256))),
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %s: failed to decode response: %v", common.ErrMalformedPayload, c.name, err)
	}
	return nil
}

// chartResponse is the v8 chart payload. Bars with missing values come back
// as JSON null, hence the pointers.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

// FetchSeries retrieves daily bars for the period, oldest first
func (c *Client) FetchSeries(ctx context.Context, symbol string, period models.Period) (*models.MarketSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	params := url.Values{}
	params.Set("range", string(period))
	params.Set("interval", "1d")
	params.Set("includePrePost", "false")

	var resp chartResponse
	if err := c.get(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s chart error %s: %s", common.ErrMalformedPayload, c.name, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s returned no chart result for %s", common.ErrMalformedPayload, c.name, symbol)
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closeVal := at(quote.Close, i)
		if closeVal == nil {
			continue
		}
		closePrice := *closeVal
		bar := models.Bar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   valueOr(at(quote.Open, i), closePrice),
			High:   valueOr(at(quote.High, i), closePrice),
			Low:    valueOr(at(quote.Low, i), closePrice),
			Close:  closePrice,
			Volume: int64(valueOr(at(quote.Volume, i), 0)),
		}
		bars = append(bars, bar)
	}

	bars = models.NormalizeBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s returned no usable bars for %s", common.ErrMalformedPayload, c.name, symbol)
	}

	return &models.MarketSeries{
		Symbol:    symbol,
		Source:    c.name,
		Period:    period,
		Bars:      bars,
		FetchedAt: c.now(),
	}, nil
}

// rawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} wrapper
type rawValue struct {
	Raw float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				LongName  string   `json:"longName"`
				ShortName string   `json:"shortName"`
				MarketCap rawValue `json:"marketCap"`
			} `json:"price"`
			SummaryProfile struct {
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"summaryProfile"`
			SummaryDetail struct {
				TrailingPE    rawValue `json:"trailingPE"`
				ForwardPE     rawValue `json:"forwardPE"`
				DividendYield rawValue `json:"dividendYield"`
				Beta          rawValue `json:"beta"`
				MarketCap     rawValue `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				PEGRatio    rawValue `json:"pegRatio"`
				PriceToBook rawValue `json:"priceToBook"`
				ForwardPE   rawValue `json:"forwardPE"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				ProfitMargins    rawValue `json:"profitMargins"`
				OperatingMargins rawValue `json:"operatingMargins"`
				RevenueGrowth    rawValue `json:"revenueGrowth"`
				DebtToEquity     rawValue `json:"debtToEquity"`
				CurrentRatio     rawValue `json:"currentRatio"`
			} `json:"financialData"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals retrieves company attributes from quoteSummary
func (c *Client) FetchFundamentals(ctx context.Context, symbol string) (*models.FundamentalInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	params := url.Values{}
	params.Set("modules", strings.Join(summaryModules, ","))

	var resp quoteSummaryResponse
	if err := c.get(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}

	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s quoteSummary error %s: %s", common.ErrMalformedPayload, c.name, resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s returned no quoteSummary for %s", common.ErrMalformedPayload, c.name, symbol)
	}

	r := resp.QuoteSummary.Result[0]

	name := r.Price.LongName
	if name == "" {
		name = r.Price.ShortName
	}
	marketCap := r.Price.MarketCap.Raw
	if marketCap == 0 {
		marketCap = r.SummaryDetail.MarketCap.Raw
	}
	forwardPE := r.SummaryDetail.ForwardPE.Raw
	if forwardPE == 0 {
		forwardPE = r.DefaultKeyStatistics.ForwardPE.Raw
	}

	info := &models.FundamentalInfo{
		Symbol:          symbol,
		Source:          c.name,
		Name:            name,
		Sector:          r.SummaryProfile.Sector,
		Industry:        r.SummaryProfile.Industry,
		Description:     r.SummaryProfile.LongBusinessSummary,
		MarketCap:       marketCap,
		TrailingPE:      r.SummaryDetail.TrailingPE.Raw,
		ForwardPE:       forwardPE,
		PEGRatio:        r.DefaultKeyStatistics.PEGRatio.Raw,
		PriceToBook:     r.DefaultKeyStatistics.PriceToBook.Raw,
		ProfitMargin:    r.FinancialData.ProfitMargins.Raw * 100,
		OperatingMargin: r.FinancialData.OperatingMargins.Raw * 100,
		RevenueGrowth:   r.FinancialData.RevenueGrowth.Raw * 100,
		DividendYield:   r.SummaryDetail.DividendYield.Raw * 100,
		DebtToEquity:    r.FinancialData.DebtToEquity.Raw,
		CurrentRatio:    r.FinancialData.CurrentRatio.Raw,
		Beta:            r.SummaryDetail.Beta.Raw,
		FetchedAt:       c.now(),
	}
	common.SanitizeValue(info)

	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", common.ErrMalformedPayload, c.name, err)
	}
	info.ApplyDefaults()

	return info, nil
}

func at(values []*float64, i int) *float64 {
	if i < 0 || i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
