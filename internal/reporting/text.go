package reporting

import (
	"fmt"
	"strings"
)

// RenderText renders a run detail report as a plain console block.
func RenderText(r *RunReport) string {
	var sb strings.Builder
	s := r.Summary

	sb.WriteString(fmt.Sprintf("run      %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("symbol   %s\n", s.Symbol))
	sb.WriteString(fmt.Sprintf("status   %s\n", s.Status))
	if s.Reason != "" {
		sb.WriteString(fmt.Sprintf("reason   %s\n", s.Reason))
	}
	sb.WriteString(fmt.Sprintf("bars     %d (%d .. %d)\n", s.BarCount, s.FirstBarMs, s.LastBarMs))
	sb.WriteString(fmt.Sprintf("balance  %.2f -> %.2f (net %+.2f, %s%%)\n",
		s.InitialBalance, s.FinalEquity, s.NetProfit, fmtRatio(s.TotalReturnPct)))
	sb.WriteString(fmt.Sprintf("trades   %d (win %d, loss %d, open %d)\n",
		s.TotalTrades, s.WinningTrades, s.LosingTrades, s.OpenAtEnd))
	sb.WriteString(fmt.Sprintf("ratios   winrate %s  pf %s  expectancy %s\n",
		fmtRatio(s.WinRate), fmtRatio(s.ProfitFactor), fmtRatio(s.Expectancy)))
	sb.WriteString(fmt.Sprintf("risk     sharpe %s  sortino %s  calmar %s\n",
		fmtRatio(s.SharpeRatio), fmtRatio(s.SortinoRatio), fmtRatio(s.CalmarRatio)))
	sb.WriteString(fmt.Sprintf("drawdown %.2f (%.2f%%) over %d samples, max consec losses %d\n",
		s.MaxDrawdownAbs, s.MaxDrawdownPct, s.MaxDrawdownBars, s.ConsecutiveLosses))

	return sb.String()
}
