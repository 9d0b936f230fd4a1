package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// jsonSummary mirrors RunSummarySection with pointer ratio metrics so
// NaN and Inf serialize as null instead of failing encode.
type jsonSummary struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	BarCount   int   `json:"bar_count"`
	FirstBarMs int64 `json:"first_bar_ms"`
	LastBarMs  int64 `json:"last_bar_ms"`

	InitialBalance float64  `json:"initial_balance"`
	FinalEquity    float64  `json:"final_equity"`
	NetProfit      float64  `json:"net_profit"`
	TotalReturnPct *float64 `json:"total_return_pct"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`
	OpenAtEnd     int `json:"open_at_end"`

	WinRate      *float64 `json:"win_rate"`
	ProfitFactor *float64 `json:"profit_factor"`
	Expectancy   *float64 `json:"expectancy"`
	SharpeRatio  *float64 `json:"sharpe_ratio"`
	SortinoRatio *float64 `json:"sortino_ratio"`
	CalmarRatio  *float64 `json:"calmar_ratio"`

	MaxDrawdownAbs    float64  `json:"max_drawdown_abs"`
	MaxDrawdownPct    float64  `json:"max_drawdown_pct"`
	MaxDrawdownBars   int      `json:"max_drawdown_bars"`
	AvgWin            *float64 `json:"avg_win"`
	AvgLoss           *float64 `json:"avg_loss"`
	LargestWin        float64  `json:"largest_win"`
	LargestLoss       float64  `json:"largest_loss"`
	ConsecutiveLosses int      `json:"consecutive_losses"`
}

type jsonTrade struct {
	TradeID      string  `json:"trade_id"`
	Side         string  `json:"side"`
	EntryTime    int64   `json:"entry_time"`
	ExitTime     int64   `json:"exit_time"`
	EntryPrice   float64 `json:"entry_price"`
	ExitPrice    float64 `json:"exit_price"`
	Size         float64 `json:"size"`
	Fees         float64 `json:"fees"`
	PnL          float64 `json:"pnl"`
	ExitReason   string  `json:"exit_reason"`
	BalanceAfter float64 `json:"balance_after"`
	Reason       string  `json:"reason"`
}

type jsonRunReport struct {
	GeneratedAt time.Time   `json:"generated_at"`
	Summary     jsonSummary `json:"summary"`
	Trades      []jsonTrade `json:"trades"`
}

// RenderJSON renders a run detail report as indented JSON.
func RenderJSON(r *RunReport) (string, error) {
	trades := make([]jsonTrade, len(r.Trades))
	for i, t := range r.Trades {
		trades[i] = jsonTrade(t)
	}
	out, err := json.MarshalIndent(jsonRunReport{
		GeneratedAt: r.GeneratedAt,
		Summary:     toJSONSummary(r.Summary),
		Trades:      trades,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run report: %w", err)
	}
	return string(out) + "\n", nil
}

func toJSONSummary(s RunSummarySection) jsonSummary {
	return jsonSummary{
		RunID:             s.RunID,
		Symbol:            s.Symbol,
		Status:            s.Status,
		Reason:            s.Reason,
		BarCount:          s.BarCount,
		FirstBarMs:        s.FirstBarMs,
		LastBarMs:         s.LastBarMs,
		InitialBalance:    s.InitialBalance,
		FinalEquity:       s.FinalEquity,
		NetProfit:         s.NetProfit,
		TotalReturnPct:    finitePtr(s.TotalReturnPct),
		TotalTrades:       s.TotalTrades,
		WinningTrades:     s.WinningTrades,
		LosingTrades:      s.LosingTrades,
		OpenAtEnd:         s.OpenAtEnd,
		WinRate:           finitePtr(s.WinRate),
		ProfitFactor:      finitePtr(s.ProfitFactor),
		Expectancy:        finitePtr(s.Expectancy),
		SharpeRatio:       finitePtr(s.SharpeRatio),
		SortinoRatio:      finitePtr(s.SortinoRatio),
		CalmarRatio:       finitePtr(s.CalmarRatio),
		MaxDrawdownAbs:    s.MaxDrawdownAbs,
		MaxDrawdownPct:    s.MaxDrawdownPct,
		MaxDrawdownBars:   s.MaxDrawdownBars,
		AvgWin:            finitePtr(s.AvgWin),
		AvgLoss:           finitePtr(s.AvgLoss),
		LargestWin:        s.LargestWin,
		LargestLoss:       s.LargestLoss,
		ConsecutiveLosses: s.ConsecutiveLosses,
	}
}

// finitePtr drops NaN and Inf values, which encoding/json cannot emit.
func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
