package app

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers all MCP tools on the App's MCPServer.
func (a *App) registerTools() {
	s := a.MCPServer
	logger := a.Logger

	s.AddTool(createGetVersionTool(), handleGetVersion())
	s.AddTool(createResolveSymbolTool(), handleResolveSymbol(a.Resolver))
	s.AddTool(createGetIndicatorsTool(), handleGetIndicators(a.Chain, a.Resolver, logger))
	s.AddTool(createGetChartTool(), handleGetChart(a.Chain, a.Resolver, logger))
	s.AddTool(createScreenStocksTool(), handleScreenStocks(a.Screener, logger))
	s.AddTool(createAnalyzeStocksTool(), handleAnalyzeStocks(a.Analysis, logger))
	s.AddTool(createMarketOverviewTool(), handleMarketOverview(a.Overview, logger))
	s.AddTool(createGetDiagnosticsTool(), handleGetDiagnostics(a.Chain, a.Cache, a.StartupTime))
}

// createGetVersionTool returns the get_version tool definition
func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Sift MCP server version and status. Use this to verify connectivity."),
	)
}

// createResolveSymbolTool returns the resolve_symbol tool definition
func createResolveSymbolTool() mcp.Tool {
	return mcp.NewTool("resolve_symbol",
		mcp.WithDescription("Resolve a company name or free-text query to its ticker symbol (e.g., 'Apple Inc.' -> AAPL)."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Company name or ticker"),
		),
	)
}

// createGetIndicatorsTool returns the get_indicators tool definition
func createGetIndicatorsTool() mcp.Tool {
	return mcp.NewTool("get_indicators",
		mcp.WithDescription("Get technical indicators (SMA, RSI, MACD, Bollinger bands, momentum) and the market condition for one symbol."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Ticker or company name (e.g., 'AAPL', 'Microsoft')"),
		),
		mcp.WithString("period",
			mcp.Description("History window: 1mo, 3mo, 6mo, 1y, 2y (default: 6mo)"),
		),
	)
}

// createGetChartTool returns the get_chart tool definition
func createGetChartTool() mcp.Tool {
	return mcp.NewTool("get_chart",
		mcp.WithDescription("Render a PNG price chart with 20/50 bar moving averages and Bollinger bands for one symbol."),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Ticker or company name"),
		),
		mcp.WithString("period",
			mcp.Description("History window: 1mo, 3mo, 6mo, 1y, 2y (default: 6mo)"),
		),
	)
}

// createScreenStocksTool returns the screen_stocks tool definition
func createScreenStocksTool() mcp.Tool {
	return mcp.NewTool("screen_stocks",
		mcp.WithDescription("Screen a universe of stocks, scoring each on technical, momentum and fundamental factors. Returns ranked candidates above the potential cutoff."),
		mcp.WithArray("universe",
			mcp.WithStringItems(),
			mcp.Description("Tickers or company names to screen (default: configured universe)"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum candidates to return (default: 10)"),
		),
		mcp.WithNumber("workers",
			mcp.Description("Concurrent evaluations (default: 5)"),
		),
		mcp.WithBoolean("commentary",
			mcp.Description("Add AI commentary to each candidate (default: false)"),
		),
	)
}

// createAnalyzeStocksTool returns the analyze_stocks tool definition
func createAnalyzeStocksTool() mcp.Tool {
	return mcp.NewTool("analyze_stocks",
		mcp.WithDescription("Produce a fundamental and technical analysis report for up to 5 stocks, with optional AI commentary."),
		mcp.WithArray("queries",
			mcp.Required(),
			mcp.WithStringItems(),
			mcp.Description("Tickers or company names (max 5)"),
		),
		mcp.WithBoolean("commentary",
			mcp.Description("Add AI commentary to each report (default: false)"),
		),
	)
}

// createMarketOverviewTool returns the market_overview tool definition
func createMarketOverviewTool() mcp.Tool {
	return mcp.NewTool("market_overview",
		mcp.WithDescription("Summarise benchmark indices (S&P 500, Dow, Nasdaq, Russell 2000, VIX) and sector ETF performance."),
		mcp.WithArray("include",
			mcp.WithStringItems(),
			mcp.Description("Sections to include: indices, sectors (default: both)"),
		),
	)
}

// createGetDiagnosticsTool returns the get_diagnostics tool definition
func createGetDiagnosticsTool() mcp.Tool {
	return mcp.NewTool("get_diagnostics",
		mcp.WithDescription("Show uptime, cache settings and per-provider attempt, success and failure counters."),
	)
}
