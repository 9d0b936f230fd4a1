// Package metrics derives performance statistics from closed trades
// and the equity curve. Ratio metrics use NaN as the "undefined"
// sentinel so a zero-trade run is distinguishable from a break-even
// one.
package metrics

import (
	"math"

	"smc-lab/internal/domain"
)

// periodsPerYear annualizes per-bar return statistics. Daily bars are
// the reference timeframe.
const periodsPerYear = 252

// Compute fills the metric fields of a run summary from closed trades
// and the per-bar equity curve. Trades must be in exit order; equity
// must be in bar order. Identification and status fields are left for
// the caller.
func Compute(initialBalance float64, trades []domain.TradeRecord, equity []domain.EquityPoint) domain.RunSummary {
	sum := domain.RunSummary{
		InitialBalance: initialBalance,
		FinalEquity:    initialBalance,
		TotalTrades:    len(trades),
	}
	if n := len(equity); n > 0 {
		sum.FinalEquity = equity[n-1].Equity
	}
	sum.NetProfit = sum.FinalEquity - initialBalance
	sum.TotalReturnPct = 100 * sum.NetProfit / initialBalance

	fillTradeStats(&sum, trades)

	dd := computeDrawdown(initialBalance, equity)
	sum.MaxDrawdownAbs = dd.maxAbs
	sum.MaxDrawdownPct = dd.maxPct
	sum.MaxDrawdownBars = dd.maxBars

	returns := equityReturns(equity)
	sum.SharpeRatio = computeSharpe(returns)
	sum.SortinoRatio = computeSortino(returns)
	sum.CalmarRatio = computeCalmar(returns, dd.maxPct)

	return sum
}

// fillTradeStats sets the per-trade statistics. With no trades every
// ratio is NaN and the extremes stay zero.
func fillTradeStats(sum *domain.RunSummary, trades []domain.TradeRecord) {
	if len(trades) == 0 {
		sum.WinRate = math.NaN()
		sum.ProfitFactor = math.NaN()
		sum.Expectancy = math.NaN()
		sum.AvgWin = math.NaN()
		sum.AvgLoss = math.NaN()
		return
	}

	var grossProfit, grossLoss, total float64
	streak := 0
	for _, t := range trades {
		total += t.PnL
		if t.PnL > 0 {
			sum.WinningTrades++
			grossProfit += t.PnL
			if t.PnL > sum.LargestWin {
				sum.LargestWin = t.PnL
			}
			streak = 0
		} else {
			sum.LosingTrades++
			grossLoss += -t.PnL
			if t.PnL < sum.LargestLoss {
				sum.LargestLoss = t.PnL
			}
			streak++
			if streak > sum.ConsecutiveLosses {
				sum.ConsecutiveLosses = streak
			}
		}
	}

	n := float64(len(trades))
	sum.WinRate = float64(sum.WinningTrades) / n
	sum.Expectancy = total / n
	sum.ProfitFactor = ratioOrSentinel(grossProfit, grossLoss)
	sum.AvgWin = meanOrNaN(grossProfit, sum.WinningTrades)
	sum.AvgLoss = meanOrNaN(-grossLoss, sum.LosingTrades)
}

// ratioOrSentinel divides gross profit by gross loss: +Inf for a run
// with profits and no losses, NaN when both sides are zero.
func ratioOrSentinel(profit, loss float64) float64 {
	if loss == 0 {
		if profit == 0 {
			return math.NaN()
		}
		return math.Inf(1)
	}
	return profit / loss
}

func meanOrNaN(total float64, count int) float64 {
	if count == 0 {
		return math.NaN()
	}
	return total / float64(count)
}

// drawdown is the running peak-to-trough state of the equity curve.
type drawdown struct {
	maxAbs  float64
	maxPct  float64
	maxBars int
}

// computeDrawdown finds the deepest peak-to-trough fall and the
// longest stretch of bars spent below a peak. The starting balance
// counts as the first peak.
func computeDrawdown(initialBalance float64, equity []domain.EquityPoint) drawdown {
	var dd drawdown
	peak := initialBalance
	barsBelow := 0
	for _, p := range equity {
		if p.Equity >= peak {
			peak = p.Equity
			barsBelow = 0
			continue
		}
		barsBelow++
		if barsBelow > dd.maxBars {
			dd.maxBars = barsBelow
		}
		fall := peak - p.Equity
		if fall > dd.maxAbs {
			dd.maxAbs = fall
		}
		if peak > 0 {
			if pct := 100 * fall / peak; pct > dd.maxPct {
				dd.maxPct = pct
			}
		}
	}
	return dd
}

// equityReturns converts the equity curve into per-bar simple returns.
func equityReturns(equity []domain.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	return returns
}

// computeSharpe annualizes mean over sample stddev of per-bar returns.
// NaN when there are too few samples or no variance.
func computeSharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean := computeMean(returns)
	std := computeStddev(returns, mean)
	if std == 0 {
		return math.NaN()
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// computeSortino replaces the full deviation with downside deviation,
// using zero as the acceptable-return floor.
func computeSortino(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	mean := computeMean(returns)
	var sumSq float64
	for _, r := range returns {
		if r < 0 {
			sumSq += r * r
		}
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	if downside == 0 {
		if mean > 0 {
			return math.Inf(1)
		}
		return math.NaN()
	}
	return mean / downside * math.Sqrt(periodsPerYear)
}

// computeCalmar divides the annualized return by the maximum drawdown
// percentage.
func computeCalmar(returns []float64, maxDrawdownPct float64) float64 {
	if len(returns) == 0 || maxDrawdownPct == 0 {
		return math.NaN()
	}
	annualized := 100 * computeMean(returns) * periodsPerYear
	return annualized / maxDrawdownPct
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
