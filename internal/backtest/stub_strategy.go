package backtest

import (
	"smc-lab/internal/domain"
	"smc-lab/internal/strategy"
)

// ScriptedStrategy emits predefined signals at fixed bar indexes. It is
// used in tests to drive the simulator without real detection.
type ScriptedStrategy struct {
	signals map[int]*domain.Signal
	next    int
}

// NewScriptedStrategy creates a strategy that fires each signal at its
// Index bar.
func NewScriptedStrategy(signals ...*domain.Signal) *ScriptedStrategy {
	byIndex := make(map[int]*domain.Signal, len(signals))
	for _, sig := range signals {
		byIndex[sig.Index] = sig
	}
	return &ScriptedStrategy{signals: byIndex}
}

// Observe returns the scripted signal for the current bar, if any.
func (s *ScriptedStrategy) Observe(_ domain.Bar, _ float64, _ bool) (*domain.Signal, error) {
	sig := s.signals[s.next]
	s.next++
	return sig, nil
}

// Name returns the strategy identifier.
func (s *ScriptedStrategy) Name() string {
	return "scripted"
}

var _ strategy.Strategy = (*ScriptedStrategy)(nil)
