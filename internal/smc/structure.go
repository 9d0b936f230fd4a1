package smc

import (
	"smc-lab/internal/domain"
)

// swingHistoryCap bounds the retained swing history. Detection only
// ever needs the last few swings; the cap keeps memory constant for
// long backtests.
const swingHistoryCap = 64

// StructureUpdate is the output of one StructureDetector step.
type StructureUpdate struct {
	// ConfirmedSwings are swing points confirmed at this bar. A swing
	// at index i confirms at i+n, so these lag the current bar.
	ConfirmedSwings []domain.SwingPoint
	// Events are BOS/ChoCH events fired by this bar's close.
	Events []domain.StructureEvent
}

// StructureDetector finds swing highs/lows with a symmetric window and
// derives break-of-structure and change-of-character events from them.
type StructureDetector struct {
	lookback     int // window half-width n
	bosMarginATR float64
	bosMarginPct float64

	// window holds the last 2n+1 bars for swing confirmation.
	window []domain.Bar
	next   int // index of the next bar to be observed

	swings *swingRing

	// refHigh/refLow are the most recent confirmed swings that have not
	// fired a BOS yet. Each swing level fires at most once; after a
	// break the reference is cleared until a newer swing confirms.
	refHigh *domain.SwingPoint
	refLow  *domain.SwingPoint

	trend domain.TrendState
}

// NewStructureDetector creates a structure detector from the strategy
// configuration. The configuration must already be validated.
func NewStructureDetector(cfg domain.StrategyConfig) *StructureDetector {
	return &StructureDetector{
		lookback:     cfg.SwingLookback,
		bosMarginATR: cfg.BOSMarginATR,
		bosMarginPct: cfg.BOSMarginPct,
		window:       make([]domain.Bar, 0, 2*cfg.SwingLookback+1),
		swings:       newSwingRing(swingHistoryCap),
		trend:        domain.TrendUndetermined,
	}
}

// Observe consumes the next bar. Swing points confirm with a lag of n
// bars; BOS/ChoCH fire on the observed bar's close. When atrOK is
// false and no fixed percentage margin is configured, break detection
// is skipped for this bar (insufficient history means no event).
func (d *StructureDetector) Observe(bar domain.Bar, atr float64, atrOK bool) StructureUpdate {
	i := d.next
	d.next++

	n := d.lookback
	if len(d.window) == 2*n+1 {
		d.window = d.window[1:]
	}
	d.window = append(d.window, bar)

	var upd StructureUpdate

	// The candidate confirmable at this step is i-n; its window
	// [i-2n, i] must be fully observed.
	if i >= 2*n {
		c := n // candidate position inside the sliding window
		if sp, ok := d.confirmSwing(c, i); ok {
			d.swings.push(sp)
			d.onSwingConfirmed(sp)
			upd.ConfirmedSwings = append(upd.ConfirmedSwings, sp)
		}
	}

	upd.Events = d.checkBreaks(i, bar, atr, atrOK)
	return upd
}

// confirmSwing checks whether the bar at window position c is a swing
// high or low. Ties resolve to the earliest index: the candidate must
// be strictly greater (resp. smaller) than every earlier bar in the
// window and at least equal against every later one.
func (d *StructureDetector) confirmSwing(c, current int) (domain.SwingPoint, bool) {
	cand := d.window[c]

	isHigh, isLow := true, true
	for j := range d.window {
		if j == c {
			continue
		}
		h, l := d.window[j].High, d.window[j].Low
		if j < c {
			if h >= cand.High {
				isHigh = false
			}
			if l <= cand.Low {
				isLow = false
			}
		} else {
			if h > cand.High {
				isHigh = false
			}
			if l < cand.Low {
				isLow = false
			}
		}
		if !isHigh && !isLow {
			return domain.SwingPoint{}, false
		}
	}

	idx := current - d.lookback
	switch {
	case isHigh:
		return domain.SwingPoint{Index: idx, ConfirmedAt: current, Price: cand.High, Kind: domain.SwingHigh}, true
	case isLow:
		return domain.SwingPoint{Index: idx, ConfirmedAt: current, Price: cand.Low, Kind: domain.SwingLow}, true
	}
	return domain.SwingPoint{}, false
}

// onSwingConfirmed advances the break references and recomputes trend
// from the confirmed swing history.
func (d *StructureDetector) onSwingConfirmed(sp domain.SwingPoint) {
	s := sp
	if sp.Kind == domain.SwingHigh {
		d.refHigh = &s
	} else {
		d.refLow = &s
	}
	d.trend = d.recomputeTrend()
}

// recomputeTrend derives the trend from the last two confirmed highs
// and lows: higher-high + higher-low means up, lower-high + lower-low
// means down, anything else is undetermined.
func (d *StructureDetector) recomputeTrend() domain.TrendState {
	h1, h2, okH := d.swings.lastTwo(domain.SwingHigh)
	l1, l2, okL := d.swings.lastTwo(domain.SwingLow)
	if !okH || !okL {
		return domain.TrendUndetermined
	}
	if h1.Price > h2.Price && l1.Price > l2.Price {
		return domain.TrendUp
	}
	if h1.Price < h2.Price && l1.Price < l2.Price {
		return domain.TrendDown
	}
	return domain.TrendUndetermined
}

// margin computes the break margin for a swing level. A configured
// fixed percentage takes precedence over the ATR multiplier.
func (d *StructureDetector) margin(swingPrice, atr float64, atrOK bool) (float64, bool) {
	if d.bosMarginPct > 0 {
		return d.bosMarginPct * swingPrice, true
	}
	if !atrOK {
		return 0, false
	}
	return d.bosMarginATR * atr, true
}

// checkBreaks fires BOS/ChoCH against the unbroken swing references.
func (d *StructureDetector) checkBreaks(i int, bar domain.Bar, atr float64, atrOK bool) []domain.StructureEvent {
	var events []domain.StructureEvent

	if d.refHigh != nil {
		if m, ok := d.margin(d.refHigh.Price, atr, atrOK); ok && bar.Close > d.refHigh.Price+m {
			events = append(events, d.emit(i, domain.DirectionBullish, *d.refHigh))
			d.refHigh = nil
		}
	}
	if d.refLow != nil {
		if m, ok := d.margin(d.refLow.Price, atr, atrOK); ok && bar.Close < d.refLow.Price-m {
			events = append(events, d.emit(i, domain.DirectionBearish, *d.refLow))
			d.refLow = nil
		}
	}
	return events
}

// emit builds the structure event and flips the trend on ChoCH.
func (d *StructureDetector) emit(i int, dir domain.Direction, swing domain.SwingPoint) domain.StructureEvent {
	kind := domain.StructureBOS
	if (dir == domain.DirectionBullish && d.trend == domain.TrendDown) ||
		(dir == domain.DirectionBearish && d.trend == domain.TrendUp) {
		kind = domain.StructureChoCH
		if dir == domain.DirectionBullish {
			d.trend = domain.TrendUp
		} else {
			d.trend = domain.TrendDown
		}
	}
	return domain.StructureEvent{Index: i, Direction: dir, Kind: kind, Swing: swing}
}

// Trend returns the current trend state.
func (d *StructureDetector) Trend() domain.TrendState {
	return d.trend
}

// Swings returns the retained swing history, oldest first.
func (d *StructureDetector) Swings() []domain.SwingPoint {
	return d.swings.all()
}

// swingRing is a bounded, index-addressable swing history.
type swingRing struct {
	buf   []domain.SwingPoint
	start int
	size  int
}

func newSwingRing(cap int) *swingRing {
	return &swingRing{buf: make([]domain.SwingPoint, cap)}
}

func (r *swingRing) push(sp domain.SwingPoint) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = sp
		r.size++
		return
	}
	r.buf[r.start] = sp
	r.start = (r.start + 1) % len(r.buf)
}

func (r *swingRing) at(i int) domain.SwingPoint {
	return r.buf[(r.start+i)%len(r.buf)]
}

func (r *swingRing) all() []domain.SwingPoint {
	out := make([]domain.SwingPoint, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.at(i)
	}
	return out
}

// lastTwo returns the two most recent swings of a kind, newest first.
func (r *swingRing) lastTwo(kind domain.SwingKind) (latest, prev domain.SwingPoint, ok bool) {
	found := 0
	for i := r.size - 1; i >= 0; i-- {
		sp := r.at(i)
		if sp.Kind != kind {
			continue
		}
		if found == 0 {
			latest = sp
		} else {
			prev = sp
			return latest, prev, true
		}
		found++
	}
	return latest, prev, false
}
