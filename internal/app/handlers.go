package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
	"github.com/bobmcallan/sift/internal/services/market"
	"github.com/bobmcallan/sift/internal/services/pricechart"
	"github.com/bobmcallan/sift/internal/signals"
)

// handleGetVersion implements the get_version tool
func handleGetVersion() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := fmt.Sprintf("Sift MCP Server\nVersion: %s\nBuild: %s\nCommit: %s\nStatus: OK",
			common.GetVersion(), common.GetBuild(), common.GetGitCommit())
		return textResult(result), nil
	}
}

// handleResolveSymbol implements the resolve_symbol tool
func handleResolveSymbol(resolver *common.SymbolResolver) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		symbol := resolver.Resolve(query)
		if !common.IsCanonicalSymbol(symbol) {
			return errorResult(fmt.Sprintf("No ticker found for %q", query)), nil
		}
		return textResult(fmt.Sprintf("%s -> %s", query, symbol)), nil
	}
}

// handleGetIndicators implements the get_indicators tool
func handleGetIndicators(marketService interfaces.MarketDataService, resolver *common.SymbolResolver, logger *common.Logger) server.ToolHandlerFunc {
	computer := signals.NewComputer()
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("symbol")
		if err != nil || query == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		symbol := resolver.Resolve(query)
		if !common.IsCanonicalSymbol(symbol) {
			return errorResult(fmt.Sprintf("No ticker found for %q", query)), nil
		}
		period := models.ParsePeriod(request.GetString("period", ""))

		series, err := marketService.FetchSeries(ctx, symbol, period)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("Indicator fetch failed")
			return errorResult(toolError("Market data error", err)), nil
		}

		ind := computer.Compute(series)
		common.SanitizeValue(ind)
		return textResult(formatIndicators(ind, signals.Classify(ind), period)), nil
	}
}

// handleGetChart implements the get_chart tool
func handleGetChart(marketService interfaces.MarketDataService, resolver *common.SymbolResolver, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("symbol")
		if err != nil || query == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		symbol := resolver.Resolve(query)
		if !common.IsCanonicalSymbol(symbol) {
			return errorResult(fmt.Sprintf("No ticker found for %q", query)), nil
		}
		period := models.ParsePeriod(request.GetString("period", ""))

		series, err := marketService.FetchSeries(ctx, symbol, period)
		if err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("Chart fetch failed")
			return errorResult(toolError("Market data error", err)), nil
		}

		png, err := pricechart.RenderPriceChart(series)
		if err != nil {
			return errorResult(fmt.Sprintf("Chart error: %v", err)), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(fmt.Sprintf("%s price chart (%s, %d bars)", symbol, period, series.Len())),
				mcp.NewImageContent(base64.StdEncoding.EncodeToString(png), "image/png"),
			},
		}, nil
	}
}

// handleScreenStocks implements the screen_stocks tool
func handleScreenStocks(screenerService ScreenRunner, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		universe := request.GetStringSlice("universe", nil)
		if len(universe) == 0 {
			universe = screenerService.Universe()
		}

		topK := request.GetInt("top_k", 0)
		if topK > 50 {
			topK = 50
		}

		result, err := screenerService.Screen(ctx, universe, interfaces.ScreenOptions{
			Workers:    request.GetInt("workers", 0),
			TopK:       topK,
			Commentary: request.GetBool("commentary", false),
		})
		if err != nil {
			logger.Error().Err(err).Msg("Screen failed")
			return errorResult(toolError("Screen error", err)), nil
		}

		return textResult(formatScreenResult(result)), nil
	}
}

// handleAnalyzeStocks implements the analyze_stocks tool
func handleAnalyzeStocks(analysisService interfaces.AnalysisService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queries := request.GetStringSlice("queries", nil)
		if len(queries) == 0 {
			return errorResult("Error: queries parameter is required"), nil
		}

		batch, err := analysisService.AnalyzeBatch(ctx, queries, request.GetBool("commentary", false))
		if err != nil && (batch == nil || len(batch.Reports) == 0) {
			logger.Error().Err(err).Strs("queries", queries).Msg("Analysis failed")
			return errorResult(toolError("Analysis error", err)), nil
		}

		return textResult(formatBatchAnalysis(batch)), nil
	}
}

// handleMarketOverview implements the market_overview tool
func handleMarketOverview(overview interfaces.OverviewService, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		include := request.GetStringSlice("include", []string{"indices", "sectors"})

		var sb strings.Builder
		sb.WriteString("# Market Overview\n\n")

		for _, section := range include {
			switch strings.ToLower(section) {
			case "indices":
				indices, err := overview.Indices(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("Index overview failed")
					sb.WriteString(fmt.Sprintf("_Indices unavailable: %v_\n\n", err))
					continue
				}
				sb.WriteString(formatIndices(indices))
			case "sectors":
				sectors, err := overview.Sectors(ctx)
				if err != nil {
					logger.Warn().Err(err).Msg("Sector overview failed")
					sb.WriteString(fmt.Sprintf("_Sectors unavailable: %v_\n\n", err))
					continue
				}
				sb.WriteString(formatSectors(sectors))
			}
		}

		return textResult(sb.String()), nil
	}
}

// handleGetDiagnostics implements the get_diagnostics tool
func handleGetDiagnostics(chain *market.ProviderChain, cache interfaces.CacheStore, startupTime time.Time) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sb strings.Builder
		sb.WriteString("# Diagnostics\n\n")
		sb.WriteString(fmt.Sprintf("**Version:** %s\n", common.GetVersion()))
		sb.WriteString(fmt.Sprintf("**Uptime:** %s\n", time.Since(startupTime).Round(time.Second)))
		if cache != nil {
			sb.WriteString(fmt.Sprintf("**Cache TTL:** %s\n", cache.TTL()))
		}
		sb.WriteString("\n## Providers\n\n")
		sb.WriteString("| Provider | Attempts | Successes | Failures |\n")
		sb.WriteString("|----------|----------|-----------|----------|\n")
		for _, s := range chain.Stats() {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d |\n", s.Provider, s.Attempts, s.Successes, s.Failures))
		}
		return textResult(sb.String()), nil
	}
}

// ScreenRunner is the screener surface the tools and routes need
type ScreenRunner interface {
	interfaces.ScreenerService
	Universe() []string
	Last() *models.ScreenResult
}

// toolError renders an error with a hint for the common failure kinds
func toolError(prefix string, err error) string {
	switch {
	case errors.Is(err, common.ErrNoValidSymbols):
		return fmt.Sprintf("%s: no valid symbols (%v)", prefix, err)
	case common.IsRateLimited(err):
		return fmt.Sprintf("%s: rate limited by data provider, retry later (%v)", prefix, err)
	case errors.Is(err, common.ErrNoDataAvailable):
		return fmt.Sprintf("%s: no data available (%v)", prefix, err)
	default:
		return fmt.Sprintf("%s: %v", prefix, err)
	}
}

// Helper functions

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
