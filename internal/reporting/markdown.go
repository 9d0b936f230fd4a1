package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders the cross-run overview as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Backtest Runs\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Runs: %d | Symbols: %d\n\n", r.RunCount, r.SymbolCount))

	// Run table
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Run | Symbol | Status | Bars | Trades | WinRate | PF | Net | Return% | MaxDD% | Sharpe |\n")
		sb.WriteString("|-----|--------|--------|------|--------|---------|----|-----|---------|--------|--------|\n")
		for _, row := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %d | %s | %s | %.2f | %s | %.2f | %s |\n",
				shortID(row.RunID), row.Symbol, row.Status,
				row.BarCount, row.TotalTrades,
				fmtRatio(row.WinRate), fmtRatio(row.ProfitFactor),
				row.NetProfit, fmtRatio(row.TotalReturnPct),
				row.MaxDrawdownPct, fmtRatio(row.SharpeRatio)))
		}
	} else {
		sb.WriteString("No runs available.\n")
	}
	sb.WriteString("\n")

	// Rejection reasons
	var rejected []RunRow
	for _, row := range r.Runs {
		if row.Reason != "" {
			rejected = append(rejected, row)
		}
	}
	if len(rejected) > 0 {
		sb.WriteString("## Non-OK Runs\n\n")
		for _, row := range rejected {
			sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", shortID(row.RunID), row.Status, row.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderRunMarkdown renders a single run's detail report as Markdown string.
func RenderRunMarkdown(r *RunReport) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString(fmt.Sprintf("# Run %s\n\n", s.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbol: %s | Status: %s\n\n", s.Symbol, s.Status))
	if s.Reason != "" {
		sb.WriteString(fmt.Sprintf("Reason: %s\n\n", s.Reason))
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Bars | %d |\n", s.BarCount))
	sb.WriteString(fmt.Sprintf("| First Bar (ms) | %d |\n", s.FirstBarMs))
	sb.WriteString(fmt.Sprintf("| Last Bar (ms) | %d |\n", s.LastBarMs))
	sb.WriteString(fmt.Sprintf("| Initial Balance | %.2f |\n", s.InitialBalance))
	sb.WriteString(fmt.Sprintf("| Final Equity | %.2f |\n", s.FinalEquity))
	sb.WriteString(fmt.Sprintf("| Net Profit | %.2f |\n", s.NetProfit))
	sb.WriteString(fmt.Sprintf("| Total Return %% | %s |\n", fmtRatio(s.TotalReturnPct)))
	sb.WriteString(fmt.Sprintf("| Trades (win/loss/open) | %d (%d/%d/%d) |\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.OpenAtEnd))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s |\n", fmtRatio(s.WinRate)))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", fmtRatio(s.ProfitFactor)))
	sb.WriteString(fmt.Sprintf("| Expectancy | %s |\n", fmtRatio(s.Expectancy)))
	sb.WriteString(fmt.Sprintf("| Sharpe | %s |\n", fmtRatio(s.SharpeRatio)))
	sb.WriteString(fmt.Sprintf("| Sortino | %s |\n", fmtRatio(s.SortinoRatio)))
	sb.WriteString(fmt.Sprintf("| Calmar | %s |\n", fmtRatio(s.CalmarRatio)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f (%.2f%%, %d samples) |\n",
		s.MaxDrawdownAbs, s.MaxDrawdownPct, s.MaxDrawdownBars))
	sb.WriteString(fmt.Sprintf("| Avg Win / Avg Loss | %s / %s |\n", fmtRatio(s.AvgWin), fmtRatio(s.AvgLoss)))
	sb.WriteString(fmt.Sprintf("| Largest Win / Loss | %.2f / %.2f |\n", s.LargestWin, s.LargestLoss))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.ConsecutiveLosses))
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) > 0 {
		sb.WriteString("| Trade | Side | Entry | Exit | EntryPx | ExitPx | Size | PnL | Exit Reason |\n")
		sb.WriteString("|-------|------|-------|------|---------|--------|------|-----|-------------|\n")
		for _, t := range r.Trades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %.5f | %.5f | %.4f | %.2f | %s |\n",
				shortID(t.TradeID), t.Side, t.EntryTime, t.ExitTime,
				t.EntryPrice, t.ExitPrice, t.Size, t.PnL, t.ExitReason))
		}
	} else {
		sb.WriteString("No trades recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// fmtRatio prints a ratio metric, or n/a where the metric is undefined.
func fmtRatio(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", v)
}

// shortID truncates hash identifiers for table display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
