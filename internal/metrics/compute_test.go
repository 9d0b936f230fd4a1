package metrics

import (
	"math"
	"testing"

	"smc-lab/internal/domain"
)

func tr(pnl float64) domain.TradeRecord {
	return domain.TradeRecord{PnL: pnl}
}

func eq(points ...float64) []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(points))
	for i, p := range points {
		out[i] = domain.EquityPoint{TimestampMs: int64(i * 1000), Equity: p, Balance: p}
	}
	return out
}

func TestCompute_ZeroTradesUsesNaNSentinels(t *testing.T) {
	sum := Compute(10000, nil, nil)

	if sum.TotalTrades != 0 || sum.FinalEquity != 10000 || sum.NetProfit != 0 {
		t.Errorf("totals = %+v, want flat zero-trade run", sum)
	}
	for name, v := range map[string]float64{
		"win_rate":      sum.WinRate,
		"profit_factor": sum.ProfitFactor,
		"expectancy":    sum.Expectancy,
		"avg_win":       sum.AvgWin,
		"avg_loss":      sum.AvgLoss,
		"sharpe":        sum.SharpeRatio,
		"sortino":       sum.SortinoRatio,
		"calmar":        sum.CalmarRatio,
	} {
		if !math.IsNaN(v) {
			t.Errorf("%s = %v, want NaN", name, v)
		}
	}
}

func TestCompute_TradeStatistics(t *testing.T) {
	trades := []domain.TradeRecord{tr(30), tr(-10), tr(-5), tr(15)}
	sum := Compute(10000, trades, nil)

	if sum.WinningTrades != 2 || sum.LosingTrades != 2 {
		t.Errorf("wins/losses = %d/%d, want 2/2", sum.WinningTrades, sum.LosingTrades)
	}
	if sum.WinRate != 0.5 {
		t.Errorf("win rate = %v, want 0.5", sum.WinRate)
	}
	if sum.ProfitFactor != 3 {
		t.Errorf("profit factor = %v, want 3 (45/15)", sum.ProfitFactor)
	}
	if sum.Expectancy != 7.5 {
		t.Errorf("expectancy = %v, want 7.5", sum.Expectancy)
	}
	if sum.AvgWin != 22.5 || sum.AvgLoss != -7.5 {
		t.Errorf("avg win/loss = %v/%v, want 22.5/-7.5", sum.AvgWin, sum.AvgLoss)
	}
	if sum.LargestWin != 30 || sum.LargestLoss != -10 {
		t.Errorf("largest win/loss = %v/%v, want 30/-10", sum.LargestWin, sum.LargestLoss)
	}
	if sum.ConsecutiveLosses != 2 {
		t.Errorf("consecutive losses = %d, want 2", sum.ConsecutiveLosses)
	}
}

func TestCompute_ProfitFactorInfiniteWithoutLosses(t *testing.T) {
	sum := Compute(10000, []domain.TradeRecord{tr(10), tr(20)}, nil)
	if !math.IsInf(sum.ProfitFactor, 1) {
		t.Errorf("profit factor = %v, want +Inf", sum.ProfitFactor)
	}
	if !math.IsNaN(sum.AvgLoss) {
		t.Errorf("avg loss = %v, want NaN with no losses", sum.AvgLoss)
	}
}

func TestCompute_MaxDrawdownDepthAndDuration(t *testing.T) {
	sum := Compute(10000, nil, eq(10000, 10500, 10200, 9800, 10600, 10100))

	if sum.MaxDrawdownAbs != 700 {
		t.Errorf("max drawdown = %v, want 700 (10500 -> 9800)", sum.MaxDrawdownAbs)
	}
	wantPct := 100 * 700.0 / 10500
	if math.Abs(sum.MaxDrawdownPct-wantPct) > 1e-9 {
		t.Errorf("max drawdown pct = %v, want %v", sum.MaxDrawdownPct, wantPct)
	}
	if sum.MaxDrawdownBars != 2 {
		t.Errorf("max drawdown bars = %d, want 2", sum.MaxDrawdownBars)
	}
}

func TestCompute_ReturnAndRatios(t *testing.T) {
	sum := Compute(10000, nil, eq(10000, 10400, 10200, 11000))

	if math.Abs(sum.TotalReturnPct-10) > 1e-9 {
		t.Errorf("total return = %v%%, want 10", sum.TotalReturnPct)
	}
	if !(sum.SharpeRatio > 0) {
		t.Errorf("sharpe = %v, want positive for a rising curve", sum.SharpeRatio)
	}
	if !(sum.CalmarRatio > 0) {
		t.Errorf("calmar = %v, want positive", sum.CalmarRatio)
	}
}

func TestCompute_SortinoInfiniteWithoutDownside(t *testing.T) {
	sum := Compute(10000, nil, eq(10000, 10100, 10300, 10350))
	if !math.IsInf(sum.SortinoRatio, 1) {
		t.Errorf("sortino = %v, want +Inf with no negative returns", sum.SortinoRatio)
	}
}

func TestCompute_FlatCurveHasNoVariance(t *testing.T) {
	sum := Compute(10000, nil, eq(10000, 10000, 10000))
	if !math.IsNaN(sum.SharpeRatio) {
		t.Errorf("sharpe = %v, want NaN for zero variance", sum.SharpeRatio)
	}
	if !math.IsNaN(sum.CalmarRatio) {
		t.Errorf("calmar = %v, want NaN with zero drawdown", sum.CalmarRatio)
	}
}
