package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/models"
)

// --- fakes ---

type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	broken map[string]bool
}

func newFakeProvider(broken ...string) *fakeProvider {
	p := &fakeProvider{calls: map[string]int{}, broken: map[string]bool{}}
	for _, s := range broken {
		p.broken[s] = true
	}
	return p
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchSeries(_ context.Context, symbol string, period models.Period) (*models.MarketSeries, error) {
	p.mu.Lock()
	p.calls[symbol]++
	p.mu.Unlock()
	if p.broken[symbol] {
		return nil, common.Permanent(&common.ProviderError{Provider: "fake", StatusCode: 404, Err: common.ErrNoDataAvailable})
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &models.MarketSeries{Symbol: symbol, Source: "fake", Period: period}
	for i := 0; i < 60; i++ {
		c := 100 + float64(i)
		s.Bars = append(s.Bars, models.Bar{
			Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000 + int64(i*10),
		})
	}
	return s, nil
}

func (p *fakeProvider) FetchFundamentals(_ context.Context, symbol string) (*models.FundamentalInfo, error) {
	return &models.FundamentalInfo{
		Symbol:        symbol,
		Name:          symbol + " Corp",
		Sector:        "Technology",
		ForwardPE:     20,
		ProfitMargin:  25,
		RevenueGrowth: 25,
	}, nil
}

func (p *fakeProvider) seriesCalls(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[symbol]
}

// --- helpers ---

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	config := common.NewDefaultConfig()
	config.LLM.Provider = ""
	config.Retry.BaseDelay = "1ms"
	config.Retry.MaxDelay = "1ms"
	config.Storage.Cache.Path = filepath.Join(t.TempDir(), "cache")
	return config
}

func newTestApp(t *testing.T, opts ...Option) (*App, *fakeProvider) {
	t.Helper()
	provider := newFakeProvider("BAD")
	opts = append([]Option{WithProviders(provider)}, opts...)

	a, err := New(testConfig(t), common.NewSilentLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, provider
}

// newInProcessClient creates an mcp-go in-process client connected to the given
// MCP server. Handles initialization handshake.
func newInProcessClient(t *testing.T, mcpServer *server.MCPServer) *client.Client {
	t.Helper()

	c, err := client.NewInProcessClient(mcpServer)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}
	_, err = c.Initialize(ctx, initReq)
	require.NoError(t, err)

	t.Cleanup(func() { c.Close() })
	return c
}

func callTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	return result
}

func resultText(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

// --- tests ---

func TestNew_WiresServices(t *testing.T) {
	a, _ := newTestApp(t)

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Chain)
	assert.NotNil(t, a.Resolver)
	assert.NotNil(t, a.Events)
	assert.NotNil(t, a.Scoring)
	assert.NotNil(t, a.Screener)
	assert.NotNil(t, a.Analysis)
	assert.NotNil(t, a.Overview)
	assert.NotNil(t, a.MCPServer)
	assert.Nil(t, a.LLM)
	assert.False(t, a.Analysis.CommentaryEnabled())
	assert.Equal(t, []string{"fake"}, a.Chain.Providers())
	assert.False(t, a.StartupTime.IsZero())
}

func TestNew_NoProviders(t *testing.T) {
	config := testConfig(t)
	config.Providers.Order = []string{"unknown"}

	_, err := New(config, common.NewSilentLogger())
	assert.Error(t, err)
}

func TestBuildProviders_Order(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "")
	t.Setenv("SIFT_EODHD_API_KEY", "")
	t.Setenv("ALPHAVANTAGE_API_KEY", "demo")

	config := common.NewDefaultConfig()
	config.Providers.Order = []string{"alphavantage", "yahoo", "eodhd", "bogus", "yahoo_alt"}

	providers := buildProviders(config, common.NewSilentLogger())
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{"alphavantage", "yahoo", "yahoo_alt"}, names)
}

func TestBuildLanguageModel(t *testing.T) {
	logger := common.NewSilentLogger()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("SIFT_CLAUDE_API_KEY", "")

	assert.Nil(t, buildLanguageModel(context.Background(), common.LLMConfig{}, logger))
	assert.Nil(t, buildLanguageModel(context.Background(), common.LLMConfig{Provider: "claude"}, logger))
	assert.Nil(t, buildLanguageModel(context.Background(), common.LLMConfig{Provider: "other"}, logger))

	llm := buildLanguageModel(context.Background(), common.LLMConfig{Provider: "claude", APIKey: "sk-test"}, logger)
	require.NotNil(t, llm)
	assert.Equal(t, "claude", llm.Name())
}

func TestNewApp_FromConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "sift.toml")
	config := `
[storage.cache]
backend = "file"
path = "` + filepath.ToSlash(filepath.Join(dir, "cache")) + `"
ttl = "5m"

[providers]
order = ["yahoo"]

[llm]
provider = ""

[logging]
level = "error"
outputs = ["console"]
file_path = "` + filepath.ToSlash(filepath.Join(dir, "sift.log")) + `"
`
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	a, err := NewApp(configPath)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "file", a.Config.Storage.Cache.Backend)
	assert.Equal(t, 5*time.Minute, a.Cache.TTL())
	assert.Equal(t, []string{"yahoo"}, a.Chain.Providers())
}

func TestNewApp_InvalidConfigReturnsError(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("{{{{invalid toml"), 0644))

	_, err := NewApp(configPath)
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	a, _ := newTestApp(t)
	a.Close()
	a.Close()
	assert.Nil(t, a.Cache)
}

func TestRegistersAllTools(t *testing.T) {
	a, _ := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	tools, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"get_version",
		"resolve_symbol",
		"get_indicators",
		"get_chart",
		"screen_stocks",
		"analyze_stocks",
		"market_overview",
		"get_diagnostics",
	}, names)
}

func TestTools(t *testing.T) {
	a, _ := newTestApp(t)
	c := newInProcessClient(t, a.MCPServer)

	t.Run("get_version", func(t *testing.T) {
		result := callTool(t, c, "get_version", nil)
		assert.Contains(t, resultText(result), "Sift MCP Server")
	})

	t.Run("resolve_symbol", func(t *testing.T) {
		result := callTool(t, c, "resolve_symbol", map[string]any{"query": "Apple Inc."})
		assert.False(t, result.IsError)
		assert.Contains(t, resultText(result), "AAPL")

		result = callTool(t, c, "resolve_symbol", map[string]any{"query": "not a ticker at all"})
		assert.True(t, result.IsError)
	})

	t.Run("get_indicators", func(t *testing.T) {
		result := callTool(t, c, "get_indicators", map[string]any{"symbol": "msft", "period": "3mo"})
		assert.False(t, result.IsError)
		text := resultText(result)
		assert.Contains(t, text, "# MSFT Indicators (3mo)")
		assert.Contains(t, text, "| RSI |")
	})

	t.Run("get_indicators no data", func(t *testing.T) {
		result := callTool(t, c, "get_indicators", map[string]any{"symbol": "BAD"})
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(result), "no data available")
	})

	t.Run("get_chart", func(t *testing.T) {
		result := callTool(t, c, "get_chart", map[string]any{"symbol": "Apple"})
		assert.False(t, result.IsError)
		require.Len(t, result.Content, 2)
		assert.Contains(t, resultText(result), "AAPL price chart (6mo, 60 bars)")
		img, ok := result.Content[1].(mcp.ImageContent)
		require.True(t, ok)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.NotEmpty(t, img.Data)
	})

	t.Run("screen_stocks", func(t *testing.T) {
		result := callTool(t, c, "screen_stocks", map[string]any{
			"universe": []any{"AAPL", "MSFT", "BAD"},
			"top_k":    5,
		})
		assert.False(t, result.IsError)
		text := resultText(result)
		assert.Contains(t, text, "**Universe:** 3")
		assert.Contains(t, text, "**Failed:** 1")
		require.NotNil(t, a.Screener.Last())
		assert.Equal(t, 3, a.Screener.Last().Universe)
	})

	t.Run("analyze_stocks", func(t *testing.T) {
		result := callTool(t, c, "analyze_stocks", map[string]any{"queries": []any{"NVDA", "BAD"}})
		assert.False(t, result.IsError)
		text := resultText(result)
		assert.Contains(t, text, "# NVDA (NVDA Corp)")
		assert.Contains(t, text, "## Failed")
		assert.Contains(t, text, "**BAD:**")
	})

	t.Run("analyze_stocks invalid", func(t *testing.T) {
		result := callTool(t, c, "analyze_stocks", map[string]any{"queries": []any{"???"}})
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(result), "no valid symbols")
	})

	t.Run("market_overview", func(t *testing.T) {
		result := callTool(t, c, "market_overview", map[string]any{"include": []any{"sectors"}})
		assert.False(t, result.IsError)
		text := resultText(result)
		assert.Contains(t, text, "## Sectors")
		assert.NotContains(t, text, "## Indices")
	})

	t.Run("get_diagnostics", func(t *testing.T) {
		result := callTool(t, c, "get_diagnostics", nil)
		text := resultText(result)
		assert.Contains(t, text, "| fake |")
		assert.Contains(t, text, "**Cache TTL:** 10m0s")
	})
}

func TestWarmCache(t *testing.T) {
	a, provider := newTestApp(t)

	warmCache(context.Background(), a.Chain, []string{"AAPL", "MSFT", "BAD"}, models.Period6Months, 2, a.Logger)
	assert.Equal(t, 1, provider.seriesCalls("AAPL"))
	assert.Equal(t, 1, provider.seriesCalls("BAD"))

	// Second pass is served from cache
	warmCache(context.Background(), a.Chain, []string{"AAPL", "MSFT"}, models.Period6Months, 2, a.Logger)
	assert.Equal(t, 1, provider.seriesCalls("AAPL"))
	assert.Equal(t, 1, provider.seriesCalls("MSFT"))
}

func TestWarmCache_Disabled(t *testing.T) {
	t.Setenv("SIFT_WARM_CACHE", "off")
	a, provider := newTestApp(t)

	warmCache(context.Background(), a.Chain, []string{"AAPL"}, models.Period6Months, 1, a.Logger)
	assert.Equal(t, 0, provider.seriesCalls("AAPL"))
}

func TestWarmCache_Cancelled(t *testing.T) {
	a, provider := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	warmCache(ctx, a.Chain, []string{"AAPL", "MSFT"}, models.Period6Months, 1, a.Logger)
	assert.Equal(t, 0, provider.seriesCalls("AAPL")+provider.seriesCalls("MSFT"))
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(common.NewSilentLogger())

	require.NoError(t, s.Register("*/1 * * * * *", "tick", func(context.Context) {}))
	require.NoError(t, s.Register("", "unscheduled", func(context.Context) {}))
	assert.Error(t, s.Register("not a schedule", "broken", func(context.Context) {}))
	assert.Equal(t, 1, s.Jobs())
}

func TestScheduler_RunsAndStops(t *testing.T) {
	s := NewScheduler(common.NewSilentLogger())

	ran := make(chan struct{}, 10)
	require.NoError(t, s.Register("* * * * * *", "tick", func(ctx context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	}))
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	s.Stop()
}

func TestStartScheduler(t *testing.T) {
	a, _ := newTestApp(t)

	require.NoError(t, a.StartScheduler())
	assert.Nil(t, a.scheduler)

	a.Config.Scheduler.Enabled = true
	require.NoError(t, a.StartScheduler())
	require.NotNil(t, a.scheduler)
	assert.Equal(t, 2, a.scheduler.Jobs())
}

func TestStartScheduler_InvalidSpec(t *testing.T) {
	a, _ := newTestApp(t)
	a.Config.Scheduler.Enabled = true
	a.Config.Scheduler.Screen = "every hour"

	assert.Error(t, a.StartScheduler())
}

func TestRunScreen_StoresLast(t *testing.T) {
	a, _ := newTestApp(t)

	a.runScreen(context.Background())
	last := a.Screener.Last()
	require.NotNil(t, last)
	assert.Equal(t, len(a.Screener.Universe()), last.Universe)
}
