package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is the base error for configuration validation
// failures. Always fatal before any bar processing begins.
var ErrInvalidConfig = errors.New("invalid configuration")

// FVG detection methods.
const (
	FVGMethodImbalance = "imbalance"
	FVGMethodWick      = "wick"
)

// Order block band methods.
const (
	OBMethodStrict  = "strict"  // candle body
	OBMethodRelaxed = "relaxed" // full candle range
)

// StrategyConfig holds all detector and signal composer parameters.
// All *ATR fields are multipliers on the current volatility value.
type StrategyConfig struct {
	SwingLookback int // swing window half-width n
	ATRPeriod     int

	// Break of structure. When BOSMarginPct > 0 the fixed percentage
	// margin takes precedence over the ATR multiplier.
	BOSMarginATR float64
	BOSMarginPct float64

	// Order blocks
	UseOrderBlocks bool
	MinImpulseBars int     // K: minimum run length
	MinImpulseATR  float64 // M: minimum cumulative move
	OBExpansionATR float64 // E: symmetric band expansion
	OBMethod       string  // "strict" or "relaxed"
	OBMaxAgeBars   int     // zones older than this are expired

	// Fair value gaps
	UseFVG       bool
	FVGMethod    string  // "imbalance" or "wick"
	MinGapATR    float64 // G: minimum gap size
	FVGExpandATR float64

	// Liquidity grabs
	UseLiquidityGrabs bool
	GrabThresholdATR  float64
	GrabReclaimBars   int // R: reclaim deadline
	GrabScanBars      int // how far past a swing to look for a sweep

	// Signal composition
	StructureRecencyBars int     // structure event must be this fresh
	StopBufferATR        float64 // minimum stop distance from entry
	RiskReward           float64
	MinRiskReward        float64
	CoolOffBars          int // bars to wait after a signal
}

// SimulationConfig holds execution cost model and account parameters.
type SimulationConfig struct {
	InitialBalance float64
	CommissionPct  float64 // of position notional, charged at entry and exit
	SlippagePct    float64 // of current ATR, applied to fills
	SpreadPct      float64 // full spread as fraction of price
	RiskPerTrade   float64 // fraction of balance risked per trade, (0,1]
	MaxPositions   int     // concurrent open position cap
	MinLot         float64
	MaxLot         float64
	UnitValue      float64 // account currency per price unit per lot
}

// RunConfig is the complete configuration of one backtest run.
type RunConfig struct {
	Symbol     string
	Strategy   StrategyConfig
	Simulation SimulationConfig

	// Hard constraints for the optimization collaborator. A run whose
	// results violate them returns a rejected summary.
	MinTrades      int
	MaxDrawdownPct float64 // 0 disables the cap
}

func cfgErr(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}

// Validate checks all parameter bounds. Out-of-range values fail before
// any detection runs.
func (c StrategyConfig) Validate() error {
	if c.SwingLookback < 1 {
		return cfgErr("swing_lookback", "must be >= 1")
	}
	if c.ATRPeriod < 1 {
		return cfgErr("atr_period", "must be >= 1")
	}
	for _, m := range []struct {
		name string
		v    float64
	}{
		{"bos_margin_atr", c.BOSMarginATR},
		{"bos_margin_pct", c.BOSMarginPct},
		{"min_impulse_atr", c.MinImpulseATR},
		{"ob_expansion_atr", c.OBExpansionATR},
		{"min_gap_atr", c.MinGapATR},
		{"fvg_expand_atr", c.FVGExpandATR},
		{"grab_threshold_atr", c.GrabThresholdATR},
		{"stop_buffer_atr", c.StopBufferATR},
	} {
		if m.v < 0 {
			return cfgErr(m.name, "must be >= 0")
		}
	}
	if c.UseOrderBlocks {
		if c.MinImpulseBars < 1 {
			return cfgErr("min_impulse_bars", "must be >= 1")
		}
		if c.OBMethod != OBMethodStrict && c.OBMethod != OBMethodRelaxed {
			return cfgErr("ob_method", "must be strict or relaxed")
		}
		if c.OBMaxAgeBars < 1 {
			return cfgErr("ob_max_age_bars", "must be >= 1")
		}
	}
	if c.UseFVG && c.FVGMethod != FVGMethodImbalance && c.FVGMethod != FVGMethodWick {
		return cfgErr("fvg_method", "must be imbalance or wick")
	}
	if c.UseLiquidityGrabs {
		if c.GrabReclaimBars < 1 {
			return cfgErr("grab_reclaim_bars", "must be >= 1")
		}
		if c.GrabScanBars < 1 {
			return cfgErr("grab_scan_bars", "must be >= 1")
		}
	}
	if c.RiskReward <= 0 {
		return cfgErr("risk_reward", "must be > 0")
	}
	if c.MinRiskReward < 0 {
		return cfgErr("min_risk_reward", "must be >= 0")
	}
	if c.StructureRecencyBars < 1 {
		return cfgErr("structure_recency_bars", "must be >= 1")
	}
	if c.CoolOffBars < 0 {
		return cfgErr("cool_off_bars", "must be >= 0")
	}
	return nil
}

// Validate checks simulation parameter bounds.
func (c SimulationConfig) Validate() error {
	if c.InitialBalance <= 0 {
		return cfgErr("initial_balance", "must be > 0")
	}
	if c.CommissionPct < 0 {
		return cfgErr("commission_pct", "must be >= 0")
	}
	if c.SlippagePct < 0 {
		return cfgErr("slippage_pct", "must be >= 0")
	}
	if c.SpreadPct < 0 {
		return cfgErr("spread_pct", "must be >= 0")
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade > 1 {
		return cfgErr("risk_per_trade", "must be in (0, 1]")
	}
	if c.MaxPositions < 1 {
		return cfgErr("max_positions", "must be >= 1")
	}
	if c.MinLot < 0 || c.MaxLot < c.MinLot {
		return cfgErr("min_lot/max_lot", "must satisfy 0 <= min <= max")
	}
	if c.UnitValue <= 0 {
		return cfgErr("unit_value", "must be > 0")
	}
	return nil
}

// Validate checks the full run configuration.
func (c RunConfig) Validate() error {
	if c.Symbol == "" {
		return cfgErr("symbol", "must not be empty")
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if c.MinTrades < 0 {
		return cfgErr("min_trades", "must be >= 0")
	}
	if c.MaxDrawdownPct < 0 {
		return cfgErr("max_drawdown_pct", "must be >= 0")
	}
	return nil
}

// DefaultStrategyConfig returns a reasonable parameter set for
// hourly-to-daily bars.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		SwingLookback:        10,
		ATRPeriod:            14,
		BOSMarginATR:         0.5,
		UseOrderBlocks:       true,
		MinImpulseBars:       3,
		MinImpulseATR:        2.0,
		OBExpansionATR:       0.5,
		OBMethod:             OBMethodStrict,
		OBMaxAgeBars:         100,
		UseFVG:               true,
		FVGMethod:            FVGMethodImbalance,
		MinGapATR:            0.5,
		FVGExpandATR:         0.2,
		UseLiquidityGrabs:    true,
		GrabThresholdATR:     1.0,
		GrabReclaimBars:      3,
		GrabScanBars:         50,
		StructureRecencyBars: 20,
		StopBufferATR:        0.3,
		RiskReward:           2.0,
		MinRiskReward:        1.5,
		CoolOffBars:          5,
	}
}

// DefaultSimulationConfig returns a conservative cost model.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		InitialBalance: 10000,
		CommissionPct:  0.0001,
		SlippagePct:    0.05,
		SpreadPct:      0.0002,
		RiskPerTrade:   0.01,
		MaxPositions:   1,
		MinLot:         0.01,
		MaxLot:         100,
		UnitValue:      1,
	}
}
