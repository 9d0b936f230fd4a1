package orders

import (
	"context"
	"fmt"
	"log"

	"smc-lab/internal/domain"
	"smc-lab/internal/smc"
	"smc-lab/internal/strategy"
)

// LiveRunner drives the signal composer in forward mode: bars arrive
// one at a time and every signal becomes a proposed order. No fills
// are tracked; sizing uses the configured balance throughout.
type LiveRunner struct {
	symbol  string
	strat   strategy.Strategy
	atr     *smc.ATR
	placer  Placer
	verbose bool
}

// NewLiveRunner wires the SMC composer for forward execution.
func NewLiveRunner(cfg domain.RunConfig, placer Placer, verbose bool) (*LiveRunner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if placer == nil {
		return nil, fmt.Errorf("nil placer")
	}

	atr, err := smc.NewATR(cfg.Strategy.ATRPeriod)
	if err != nil {
		return nil, err
	}
	balance := cfg.Simulation.InitialBalance
	strat, err := strategy.NewSMCStrategy(cfg.Strategy, cfg.Simulation, func() float64 { return balance })
	if err != nil {
		return nil, err
	}

	return &LiveRunner{
		symbol:  cfg.Symbol,
		strat:   strat,
		atr:     atr,
		placer:  placer,
		verbose: verbose,
	}, nil
}

// OnBar feeds one bar through the composer. The placement result is
// nil when the bar produced no signal.
func (r *LiveRunner) OnBar(ctx context.Context, bar domain.Bar) (*PlacementResult, error) {
	a, ok := r.atr.Observe(bar)
	sig, err := r.strat.Observe(bar, a, ok)
	if err != nil {
		return nil, err
	}
	if sig == nil {
		return nil, nil
	}

	order := ProposedOrder{
		Symbol:     r.symbol,
		Side:       sig.Side,
		Size:       sig.Size,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Price:      sig.EntryPrice,
		SignalTime: bar.TimestampMs,
		Reason:     sig.Reason,
	}
	res, err := r.placer.Place(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	if !res.Accepted {
		r.log("order not accepted: %s", res.Message)
	}
	return &res, nil
}

// Run consumes bars until the channel closes or the context is
// cancelled. Placement failures abort the loop.
func (r *LiveRunner) Run(ctx context.Context, bars <-chan domain.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, open := <-bars:
			if !open {
				return nil
			}
			if _, err := r.OnBar(ctx, bar); err != nil {
				return err
			}
		}
	}
}

func (r *LiveRunner) log(format string, args ...interface{}) {
	if r.verbose {
		log.Printf("[live] "+format, args...)
	}
}
