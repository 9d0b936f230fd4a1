package strategy

import (
	"smc-lab/internal/domain"
)

// Sizer converts a stop distance into a position size using fixed
// fractional risk, clamped to the instrument's lot bounds.
type Sizer struct {
	RiskPerTrade float64
	MinLot       float64
	MaxLot       float64
	UnitValue    float64
}

// NewSizer builds a Sizer from the simulation configuration.
func NewSizer(cfg domain.SimulationConfig) Sizer {
	return Sizer{
		RiskPerTrade: cfg.RiskPerTrade,
		MinLot:       cfg.MinLot,
		MaxLot:       cfg.MaxLot,
		UnitValue:    cfg.UnitValue,
	}
}

// Size returns the position size for the given balance and stop
// distance. The risked amount is balance*RiskPerTrade; the raw size is
// that amount divided by the per-unit loss at the stop, then clamped
// to [MinLot, MaxLot]. Zero is returned for non-positive inputs.
func (s Sizer) Size(balance, stopDistance float64) float64 {
	if balance <= 0 || stopDistance <= 0 {
		return 0
	}
	size := balance * s.RiskPerTrade / (stopDistance * s.UnitValue)
	if size < s.MinLot {
		size = s.MinLot
	}
	if size > s.MaxLot {
		size = s.MaxLot
	}
	return size
}
