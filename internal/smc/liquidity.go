package smc

import (
	"smc-lab/internal/domain"
)

// grabCandidate is a pending wick extension awaiting reclaim. It lives
// at most reclaim-window bars before being discarded permanently.
type grabCandidate struct {
	swing     domain.SwingPoint
	wickIndex int
	wickPrice float64
	deadline  int // last bar index at which reclaim may happen
}

// watchedSwing is a swing level still eligible for a sweep.
type watchedSwing struct {
	swing    domain.SwingPoint
	expireAt int // stop watching past this bar index
}

// LiquidityGrabDetector finds wick-extension-then-reclaim events
// against known swing levels. Swings are registered by the caller as
// the structure detector confirms them.
type LiquidityGrabDetector struct {
	cfg        domain.StrategyConfig
	next       int
	watched    []watchedSwing
	candidates []grabCandidate
}

// NewLiquidityGrabDetector creates a liquidity grab detector from the
// strategy configuration. The configuration must already be validated.
func NewLiquidityGrabDetector(cfg domain.StrategyConfig) *LiquidityGrabDetector {
	return &LiquidityGrabDetector{cfg: cfg}
}

// AddSwing registers a confirmed swing level to watch for sweeps.
func (d *LiquidityGrabDetector) AddSwing(sp domain.SwingPoint) {
	d.watched = append(d.watched, watchedSwing{
		swing:    sp,
		expireAt: sp.Index + d.cfg.GrabScanBars,
	})
}

// Observe consumes the next bar. It prunes expired candidates and
// watches, opens new candidates on wick extensions, and emits events
// on close-reclaims within the deadline.
func (d *LiquidityGrabDetector) Observe(bar domain.Bar, atr float64, atrOK bool) []domain.LiquidityGrabEvent {
	i := d.next
	d.next++

	var events []domain.LiquidityGrabEvent

	// Reclaim checks run before pruning so a close on the deadline bar
	// still counts.
	kept := d.candidates[:0]
	for _, c := range d.candidates {
		if i > c.deadline {
			continue // discarded permanently, cannot fire later
		}
		if ev, ok := d.reclaim(i, bar, c); ok {
			events = append(events, ev)
			continue
		}
		kept = append(kept, c)
	}
	d.candidates = kept

	if atrOK {
		d.sweep(i, bar, atr)
	}

	// Drop watches that are past their scan window.
	liveWatches := d.watched[:0]
	for _, w := range d.watched {
		if i <= w.expireAt {
			liveWatches = append(liveWatches, w)
		}
	}
	d.watched = liveWatches

	return events
}

// sweep opens a candidate for each watched swing whose level this
// bar's wick extends beyond by the volatility-scaled threshold. A
// swept swing stops being watched: one grab per level.
func (d *LiquidityGrabDetector) sweep(i int, bar domain.Bar, atr float64) {
	thresh := d.cfg.GrabThresholdATR * atr
	kept := d.watched[:0]
	for _, w := range d.watched {
		if i <= w.swing.ConfirmedAt {
			kept = append(kept, w)
			continue
		}
		var wickPrice float64
		swept := false
		if w.swing.Kind == domain.SwingHigh && bar.High > w.swing.Price+thresh {
			swept, wickPrice = true, bar.High
		}
		if w.swing.Kind == domain.SwingLow && bar.Low < w.swing.Price-thresh {
			swept, wickPrice = true, bar.Low
		}
		if !swept {
			kept = append(kept, w)
			continue
		}
		d.candidates = append(d.candidates, grabCandidate{
			swing:     w.swing,
			wickIndex: i,
			wickPrice: wickPrice,
			deadline:  i + d.cfg.GrabReclaimBars,
		})
	}
	d.watched = kept
}

// reclaim checks whether this bar's close returns to the reversal side
// of the swept level. A sweep of a swing high reclaiming below it is a
// bearish grab; a swept swing low reclaiming above is bullish.
func (d *LiquidityGrabDetector) reclaim(i int, bar domain.Bar, c grabCandidate) (domain.LiquidityGrabEvent, bool) {
	if i <= c.wickIndex {
		return domain.LiquidityGrabEvent{}, false
	}
	if c.swing.Kind == domain.SwingHigh && bar.Close < c.swing.Price {
		return domain.LiquidityGrabEvent{
			Direction:    domain.DirectionBearish,
			SwingIndex:   c.swing.Index,
			WickIndex:    c.wickIndex,
			ReclaimIndex: i,
			SwingPrice:   c.swing.Price,
			WickPrice:    c.wickPrice,
			Extension:    c.wickPrice - c.swing.Price,
		}, true
	}
	if c.swing.Kind == domain.SwingLow && bar.Close > c.swing.Price {
		return domain.LiquidityGrabEvent{
			Direction:    domain.DirectionBullish,
			SwingIndex:   c.swing.Index,
			WickIndex:    c.wickIndex,
			ReclaimIndex: i,
			SwingPrice:   c.swing.Price,
			WickPrice:    c.wickPrice,
			Extension:    c.swing.Price - c.wickPrice,
		}, true
	}
	return domain.LiquidityGrabEvent{}, false
}

// Pending returns the number of open grab candidates.
func (d *LiquidityGrabDetector) Pending() int {
	return len(d.candidates)
}
