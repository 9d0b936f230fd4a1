// Package strategy turns detector output into trade signals. A
// strategy is fed one bar at a time and may answer with at most one
// signal per bar; entries derived from a bar are only actionable on
// the following bar.
package strategy

import (
	"smc-lab/internal/domain"
)

// Strategy consumes bars and produces trade signals.
type Strategy interface {
	// Observe feeds the next bar together with the current volatility
	// estimate. atrOK is false while the estimator is warming up.
	// A nil signal means no entry at this bar.
	Observe(bar domain.Bar, atr float64, atrOK bool) (*domain.Signal, error)

	// Name returns the strategy identifier including key parameters.
	Name() string
}

// BalanceFunc reports the current account balance at signal time. The
// simulator supplies it so position sizing tracks realized equity.
type BalanceFunc func() float64
