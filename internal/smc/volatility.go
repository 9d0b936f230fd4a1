// Package smc implements the Smart Money Concepts primitive detectors:
// volatility estimation, market structure (swings, BOS, ChoCH), zones
// (order blocks, fair value gaps) and liquidity grabs.
//
// All detectors are incremental: they consume one bar at a time through
// Observe and never read a bar past the one being observed. Outputs
// carry explicit confirmation indices so callers can verify the
// no-lookahead contract.
package smc

import (
	"fmt"
	"math"

	"smc-lab/internal/domain"
)

// ATR is a rolling mean of true range over the last N bars.
// The value is undefined for the first N-1 bars.
type ATR struct {
	period    int
	ring      []float64 // last N true ranges
	pos       int
	count     int
	sum       float64
	prevClose float64
}

// NewATR creates an ATR estimator. Fails fast on period < 1.
func NewATR(period int) (*ATR, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: atr_period must be >= 1", domain.ErrInvalidConfig)
	}
	return &ATR{
		period:    period,
		ring:      make([]float64, period),
		prevClose: math.NaN(),
	}, nil
}

// Observe consumes the next bar and returns the current ATR value.
// ok is false while fewer than N bars have been seen.
func (a *ATR) Observe(b domain.Bar) (value float64, ok bool) {
	tr := domain.TrueRange(b, a.prevClose)
	a.prevClose = b.Close

	if a.count == a.period {
		a.sum -= a.ring[a.pos]
	} else {
		a.count++
	}
	a.ring[a.pos] = tr
	a.sum += tr
	a.pos = (a.pos + 1) % a.period

	if a.count < a.period {
		return 0, false
	}
	return a.sum / float64(a.period), true
}

// Value returns the current ATR without consuming a bar.
// ok is false while fewer than N bars have been seen.
func (a *ATR) Value() (float64, bool) {
	if a.count < a.period {
		return 0, false
	}
	return a.sum / float64(a.period), true
}

// Period returns the configured averaging window.
func (a *ATR) Period() int {
	return a.period
}
