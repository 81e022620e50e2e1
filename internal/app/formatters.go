package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bobmcallan/sift/internal/models"
)

// formatIndicators formats an indicator set as markdown
func formatIndicators(ind *models.IndicatorSet, cond models.MarketCondition, period models.Period) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s Indicators (%s)\n\n", ind.Symbol, period))
	sb.WriteString(fmt.Sprintf("**As of:** %s (%d bars)\n", ind.AsOf.Format("2006-01-02"), ind.Bars))
	sb.WriteString(fmt.Sprintf("**Close:** $%.2f (%s)\n", ind.Close, signedPct(ind.Change)))
	sb.WriteString(fmt.Sprintf("**Condition:** trend %s, volatility %s, strength %s, risk %s\n\n",
		cond.Trend, cond.Volatility, cond.Strength, cond.Risk))

	sb.WriteString("| Indicator | Value | Valid |\n")
	sb.WriteString("|-----------|-------|-------|\n")
	rows := []struct {
		name  string
		value float64
		valid bool
	}{
		{"SMA 20", ind.SMA20, ind.Valid.SMA20},
		{"SMA 50", ind.SMA50, ind.Valid.SMA50},
		{"MACD", ind.MACD, ind.Valid.MACD},
		{"MACD signal", ind.MACDSignal, ind.Valid.MACD},
		{"MACD histogram", ind.MACDHistogram, ind.Valid.MACD},
		{"ADX", ind.ADX, ind.Valid.ADX},
		{"RSI", ind.RSI, ind.Valid.RSI},
		{"Stochastic %K", ind.StochK, ind.Valid.Stochastic},
		{"ROC", ind.ROC, ind.Valid.ROC},
		{"Bollinger upper", ind.BollingerUpper, ind.Valid.Bollinger},
		{"Bollinger lower", ind.BollingerLower, ind.Valid.Bollinger},
		{"ATR", ind.ATR, ind.Valid.ATR},
		{"MFI", ind.MFI, ind.Valid.MFI},
		{"Price momentum %", ind.PriceMomentum, ind.Valid.PriceMomentum},
		{"Volume momentum %", ind.VolumeMomentum, ind.Valid.VolumeMomentum},
	}
	for _, r := range rows {
		valid := "yes"
		if !r.valid {
			valid = "no"
		}
		sb.WriteString(fmt.Sprintf("| %s | %.2f | %s |\n", r.name, r.value, valid))
	}

	return sb.String()
}

// formatScreenResult formats a screening pass as markdown
func formatScreenResult(result *models.ScreenResult) string {
	var sb strings.Builder

	sb.WriteString("# Screen Results\n\n")
	sb.WriteString(fmt.Sprintf("**Run:** %s\n", result.RunID))
	sb.WriteString(fmt.Sprintf("**Universe:** %d | **Evaluated:** %d | **Failed:** %d | **Below cutoff:** %d\n",
		result.Universe, result.Evaluated, result.Failed, result.BelowCut))
	sb.WriteString(fmt.Sprintf("**Elapsed:** %s", result.Elapsed))
	if result.TimedOut {
		sb.WriteString(" (deadline reached, partial results)")
	}
	sb.WriteString("\n\n")

	if len(result.Candidates) == 0 {
		sb.WriteString("No candidates scored above the cutoff.\n")
		return sb.String()
	}

	sb.WriteString("| # | Symbol | Name | Sector | Price | Total | Tech | Mom | Fund | Trend |\n")
	sb.WriteString("|---|--------|------|--------|-------|-------|------|-----|------|-------|\n")
	for i, c := range result.Candidates {
		trend := "-"
		if c.Condition != nil {
			trend = c.Condition.Trend
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | $%.2f | %.2f | %.0f | %.0f | %.0f | %s |\n",
			i+1, c.Symbol, c.Snapshot.Name, c.Snapshot.Sector, c.Snapshot.Price,
			c.Total, c.Scores.Technical, c.Scores.Momentum, c.Scores.Fundamental, trend))
	}

	for _, c := range result.Candidates {
		if c.Commentary != "" {
			sb.WriteString(fmt.Sprintf("\n### %s\n\n%s\n", c.Symbol, c.Commentary))
		}
	}

	return sb.String()
}

// formatBatchAnalysis formats analysis reports as markdown
func formatBatchAnalysis(batch *models.BatchAnalysis) string {
	var sb strings.Builder

	for _, r := range batch.Reports {
		sb.WriteString(formatAnalysisReport(r))
		sb.WriteString("\n---\n\n")
	}

	if len(batch.Failures) > 0 {
		symbols := make([]string, 0, len(batch.Failures))
		for s := range batch.Failures {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		sb.WriteString("## Failed\n\n")
		for _, s := range symbols {
			sb.WriteString(fmt.Sprintf("- **%s:** %s\n", s, batch.Failures[s]))
		}
	}

	return sb.String()
}

func formatAnalysisReport(r *models.AnalysisReport) string {
	var sb strings.Builder
	fa := r.Fundamentals

	sb.WriteString(fmt.Sprintf("# %s", r.Symbol))
	if fa != nil && fa.Name != "" && fa.Name != r.Symbol {
		sb.WriteString(fmt.Sprintf(" (%s)", fa.Name))
	}
	sb.WriteString("\n\n")

	if fa != nil {
		sb.WriteString(fmt.Sprintf("**Sector:** %s\n", fa.Sector))
		sb.WriteString(fmt.Sprintf("**Price:** $%.2f (%s over period)\n", fa.Basic.CurrentPrice, signedPct(fa.Basic.PriceChange)))
		sb.WriteString(fmt.Sprintf("**Volume:** avg %.0f, last %s vs avg\n\n", fa.Basic.AvgVolume, signedPct(fa.Basic.VolumeChange)))

		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Market cap | %.2fB |\n", fa.Valuation.MarketCap))
		sb.WriteString(fmt.Sprintf("| P/E | %.2f (%s) |\n", fa.Valuation.PERatio, fa.Valuation.ValuationStatus))
		sb.WriteString(fmt.Sprintf("| Forward P/E | %.2f |\n", fa.Valuation.ForwardPE))
		sb.WriteString(fmt.Sprintf("| PEG | %.2f |\n", fa.Valuation.PEGRatio))
		sb.WriteString(fmt.Sprintf("| Price/Book | %.2f |\n", fa.Valuation.PriceToBook))
		sb.WriteString(fmt.Sprintf("| Profit margin | %.2f%% |\n", fa.Profitability.ProfitMargin))
		sb.WriteString(fmt.Sprintf("| Operating margin | %.2f%% |\n", fa.Profitability.OperatingMargin))
		sb.WriteString(fmt.Sprintf("| Revenue growth | %.2f%% |\n", fa.Profitability.RevenueGrowth))
		sb.WriteString(fmt.Sprintf("| Dividend yield | %.2f%% |\n", fa.Profitability.DividendYield))
		sb.WriteString(fmt.Sprintf("| Beta | %.2f (%s risk) |\n\n", fa.Risk.Beta, fa.Risk.RiskLevel))
	}

	c := r.Condition
	sb.WriteString(fmt.Sprintf("**Condition:** trend %s, volatility %s, strength %s, risk %s\n",
		c.Trend, c.Volatility, c.Strength, c.Risk))
	if r.Score != nil {
		potential := ""
		if r.Score.Potential {
			potential = " (potential candidate)"
		}
		sb.WriteString(fmt.Sprintf("**Score:** %.2f/100%s\n", r.Score.Total, potential))
	}

	if r.Commentary != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", r.Commentary))
	}
	return sb.String()
}

// formatIndices formats index snapshots as markdown
func formatIndices(indices []*models.IndexSnapshot) string {
	var sb strings.Builder
	sb.WriteString("## Indices\n\n")
	sb.WriteString("| Index | Current | Day | Month | Volatility | vs SMA20 | vs SMA50 | RSI |\n")
	sb.WriteString("|-------|---------|-----|-------|------------|----------|----------|-----|\n")
	for _, ix := range indices {
		sb.WriteString(fmt.Sprintf("| %s | %.2f | %s | %s | %.2f | %s | %s | %.1f |\n",
			ix.Name, ix.Current, signedPct(ix.DailyChange), signedPct(ix.MonthlyChange),
			ix.Volatility, signedPct(ix.SMA20Diff), signedPct(ix.SMA50Diff), ix.RSI))
	}
	sb.WriteString("\n")
	return sb.String()
}

// formatSectors formats sector performance as markdown, best first
func formatSectors(sectors []*models.SectorPerformance) string {
	sorted := append([]*models.SectorPerformance(nil), sectors...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Change > sorted[j].Change })

	var sb strings.Builder
	sb.WriteString("## Sectors\n\n")
	sb.WriteString("| Sector | ETF | 1M Change | Volume Change |\n")
	sb.WriteString("|--------|-----|-----------|---------------|\n")
	for _, s := range sorted {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", s.Name, s.Symbol, signedPct(s.Change), signedPct(s.VolumeChange)))
	}
	sb.WriteString("\n")
	return sb.String()
}

func signedPct(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}
