// Package backtest orchestrates one run end to end: bars in, summary
// out, trades and equity persisted along the way.
package backtest

import (
	"context"
	"fmt"
	"log"

	"smc-lab/internal/domain"
	"smc-lab/internal/idhash"
	"smc-lab/internal/metrics"
	"smc-lab/internal/simulation"
	"smc-lab/internal/smc"
	"smc-lab/internal/storage"
	"smc-lab/internal/strategy"
)

// Stores groups the persistence targets of a run.
type Stores struct {
	Trades    storage.TradeRecordStore
	Equity    storage.EquityPointStore
	Summaries storage.RunSummaryStore
}

// Options configures a Runner.
type Options struct {
	// Stores receives trades, equity points and the summary of every
	// run. Nil disables persistence; the optimizer runs thousands of
	// throwaway trials this way.
	Stores *Stores

	// NewStrategy overrides the strategy construction. Nil wires the
	// SMC detectors.
	NewStrategy func(cfg domain.RunConfig, balance strategy.BalanceFunc) (strategy.Strategy, error)

	Verbose bool
}

// Result holds the complete output of one run.
type Result struct {
	Summary domain.RunSummary
	Trades  []domain.TradeRecord
	Equity  []domain.EquityPoint
}

// Runner executes backtest runs.
type Runner struct {
	stores      *Stores
	newStrategy func(cfg domain.RunConfig, balance strategy.BalanceFunc) (strategy.Strategy, error)
	verbose     bool
}

// NewRunner creates a new backtest runner.
func NewRunner(opts Options) *Runner {
	newStrategy := opts.NewStrategy
	if newStrategy == nil {
		newStrategy = func(cfg domain.RunConfig, balance strategy.BalanceFunc) (strategy.Strategy, error) {
			return strategy.NewSMCStrategy(cfg.Strategy, cfg.Simulation, balance)
		}
	}
	return &Runner{
		stores:      opts.Stores,
		newStrategy: newStrategy,
		verbose:     opts.Verbose,
	}
}

// Run executes one backtest over the given bars. Bars must be in
// strictly increasing timestamp order. Cancellation is checked between
// bars; a cancelled run returns a CANCELLED summary with any open
// position counted in OpenAtEnd, and nothing is persisted.
func (r *Runner) Run(ctx context.Context, bars []domain.Bar, cfg domain.RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}

	runID := idhash.ComputeRunID(cfg.Symbol, Fingerprint(cfg),
		bars[0].TimestampMs, bars[len(bars)-1].TimestampMs)

	atr, err := smc.NewATR(cfg.Strategy.ATRPeriod)
	if err != nil {
		return nil, err
	}
	sim, err := simulation.NewSimulator(cfg.Simulation)
	if err != nil {
		return nil, err
	}
	strat, err := r.newStrategy(cfg, sim.Balance)
	if err != nil {
		return nil, err
	}

	r.log("run %s: %d bars of %s", runID[:12], len(bars), cfg.Symbol)

	cancelled := false
	for _, bar := range bars {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}

		a, ok := atr.Observe(bar)
		sig, err := strat.Observe(bar, a, ok)
		if err != nil {
			return nil, fmt.Errorf("strategy at bar %d: %w", bar.TimestampMs, err)
		}
		if err := sim.Step(bar, a, ok, sig); err != nil {
			return nil, fmt.Errorf("simulator at bar %d: %w", bar.TimestampMs, err)
		}
	}

	if cancelled {
		res := r.assemble(runID, cfg, bars, sim, sim.OpenPositions())
		res.Summary.Status = domain.RunStatusCancelled
		res.Summary.Reason = ctx.Err().Error()
		r.log("run %s: cancelled with %d position(s) open", runID[:12], res.Summary.OpenAtEnd)
		return res, nil
	}

	stillOpen := sim.Finish()
	res := r.assemble(runID, cfg, bars, sim, stillOpen)
	res.Summary.Status, res.Summary.Reason = verdict(cfg, res.Summary)

	if r.stores != nil {
		if err := r.persist(ctx, res); err != nil {
			return nil, err
		}
	}

	r.log("run %s: %s, %d trades, net %.2f",
		runID[:12], res.Summary.Status, res.Summary.TotalTrades, res.Summary.NetProfit)
	return res, nil
}

// assemble stamps identity onto every record and computes the summary.
func (r *Runner) assemble(runID string, cfg domain.RunConfig, bars []domain.Bar, sim *simulation.Simulator, openAtEnd int) *Result {
	trades := sim.Trades()
	for i := range trades {
		trades[i].RunID = runID
		trades[i].Symbol = cfg.Symbol
		trades[i].TradeID = idhash.ComputeTradeID(runID,
			trades[i].EntryTime, string(trades[i].Side), trades[i].EntryIndex)
	}
	equity := sim.Equity()
	for i := range equity {
		equity[i].RunID = runID
	}

	sum := metrics.Compute(cfg.Simulation.InitialBalance, trades, equity)
	sum.RunID = runID
	sum.Symbol = cfg.Symbol
	sum.BarCount = len(bars)
	sum.FirstBarMs = bars[0].TimestampMs
	sum.LastBarMs = bars[len(bars)-1].TimestampMs
	sum.OpenAtEnd = openAtEnd

	return &Result{Summary: sum, Trades: trades, Equity: equity}
}

// verdict applies the hard constraints of the run configuration.
func verdict(cfg domain.RunConfig, sum domain.RunSummary) (status, reason string) {
	if sum.TotalTrades == 0 {
		return domain.RunStatusInsufficientData, "no trades produced"
	}
	if cfg.MinTrades > 0 && sum.TotalTrades < cfg.MinTrades {
		return domain.RunStatusRejected,
			fmt.Sprintf("trade count %d below minimum %d", sum.TotalTrades, cfg.MinTrades)
	}
	if cfg.MaxDrawdownPct > 0 && sum.MaxDrawdownPct > cfg.MaxDrawdownPct {
		return domain.RunStatusRejected,
			fmt.Sprintf("max drawdown %.2f%% above cap %.2f%%", sum.MaxDrawdownPct, cfg.MaxDrawdownPct)
	}
	return domain.RunStatusOK, ""
}

func (r *Runner) persist(ctx context.Context, res *Result) error {
	if len(res.Trades) > 0 {
		trades := make([]*domain.TradeRecord, len(res.Trades))
		for i := range res.Trades {
			trades[i] = &res.Trades[i]
		}
		if err := r.stores.Trades.InsertBulk(ctx, trades); err != nil {
			return fmt.Errorf("persist trades: %w", err)
		}
	}
	if len(res.Equity) > 0 {
		points := make([]*domain.EquityPoint, len(res.Equity))
		for i := range res.Equity {
			points[i] = &res.Equity[i]
		}
		if err := r.stores.Equity.InsertBulk(ctx, points); err != nil {
			return fmt.Errorf("persist equity: %w", err)
		}
	}
	sum := res.Summary
	if err := r.stores.Summaries.Insert(ctx, &sum); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}
	return nil
}

// Fingerprint derives the configuration part of the run identity. Two
// runs over the same bars with the same fingerprint share a run_id.
func Fingerprint(cfg domain.RunConfig) string {
	return fmt.Sprintf("%+v|%+v|%d|%g",
		cfg.Strategy, cfg.Simulation, cfg.MinTrades, cfg.MaxDrawdownPct)
}

func (r *Runner) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[backtest] "+format, args...)
	}
}
