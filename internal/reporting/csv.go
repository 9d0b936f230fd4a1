package reporting

import (
	"fmt"
	"strings"
)

// RenderRunsCSV renders the cross-run overview as CSV string.
func RenderRunsCSV(runs []RunRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,symbol,status,bar_count,total_trades,win_rate,profit_factor,")
	sb.WriteString("net_profit,total_return_pct,max_drawdown_pct,sharpe_ratio,reason\n")

	// Rows
	for _, r := range runs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%.6f,%s\n",
			r.RunID,
			r.Symbol,
			r.Status,
			r.BarCount,
			r.TotalTrades,
			r.WinRate,
			r.ProfitFactor,
			r.NetProfit,
			r.TotalReturnPct,
			r.MaxDrawdownPct,
			r.SharpeRatio,
			csvEscape(r.Reason),
		))
	}

	return sb.String()
}

// RenderTradesCSV renders a run's trade list as CSV string.
func RenderTradesCSV(trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,side,entry_time,exit_time,entry_price,exit_price,size,")
	sb.WriteString("fees,pnl,exit_reason,balance_after,reason\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%.6f,%.6f,%.6f,%.6f,%.6f,%s,%.6f,%s\n",
			t.TradeID,
			t.Side,
			t.EntryTime,
			t.ExitTime,
			t.EntryPrice,
			t.ExitPrice,
			t.Size,
			t.Fees,
			t.PnL,
			t.ExitReason,
			t.BalanceAfter,
			csvEscape(t.Reason),
		))
	}

	return sb.String()
}

// csvEscape quotes a field containing commas. Free-text reasons may carry them.
func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
