package smc

import (
	"math"

	"smc-lab/internal/domain"
)

// ZoneDetector finds order blocks and fair value gaps. Zones are
// created once and then only their derived state (touch count, filled,
// consumed) evolves; expiry is a query-time policy, never a deletion.
type ZoneDetector struct {
	cfg domain.StrategyConfig

	// bars holds enough history to locate the opposite candle that
	// precedes an impulse run, bounded by the zone max age.
	bars  []domain.Bar
	base  int // bar index of bars[0]
	next  int // index of the next bar to be observed
	zones []*domain.Zone

	// impulse run state; direction is by close vs prior close.
	runDir     domain.Direction
	runStart   int     // index of the first candle in the current run
	runStartCl float64 // close of the run's first candle
	runLen     int
	runEmitted bool // one order block per maximal run
}

// NewZoneDetector creates a zone detector from the strategy
// configuration. The configuration must already be validated.
func NewZoneDetector(cfg domain.StrategyConfig) *ZoneDetector {
	return &ZoneDetector{cfg: cfg}
}

// Observe consumes the next bar and returns zones created at this bar.
// Touch counts and filled flags of existing zones are updated first,
// using only this bar's range.
func (d *ZoneDetector) Observe(bar domain.Bar, atr float64, atrOK bool) []*domain.Zone {
	i := d.next
	d.next++

	d.updateZones(i, bar)
	d.pushBar(bar)

	if !atrOK {
		// Still track the run so it is correct once ATR becomes
		// available, but create no zones.
		d.trackRun(i, bar)
		return nil
	}

	var created []*domain.Zone
	d.trackRun(i, bar)
	if d.cfg.UseOrderBlocks {
		if z := d.checkOrderBlock(i, atr); z != nil {
			created = append(created, z)
		}
	}
	if d.cfg.UseFVG {
		if z := d.checkFVG(i, atr); z != nil {
			created = append(created, z)
		}
	}
	d.zones = append(d.zones, created...)
	return created
}

// updateZones applies this bar's range to all prior zones: touch count
// on band intersection, filled once price trades through the full band.
func (d *ZoneDetector) updateZones(i int, bar domain.Bar) {
	for _, z := range d.zones {
		if z.CreatedAt >= i {
			continue
		}
		if z.Intersects(bar.Low, bar.High) {
			z.TouchCount++
		}
		if !z.Filled {
			if z.Direction == domain.DirectionBullish && bar.Low <= z.PriceLow {
				z.Filled = true
			}
			if z.Direction == domain.DirectionBearish && bar.High >= z.PriceHigh {
				z.Filled = true
			}
		}
	}
}

func (d *ZoneDetector) pushBar(bar domain.Bar) {
	// Keep max-age lookback plus the active triple/run window.
	keep := d.cfg.OBMaxAgeBars + d.cfg.MinImpulseBars + 3
	if keep < 4 {
		keep = 4
	}
	d.bars = append(d.bars, bar)
	if len(d.bars) > keep {
		drop := len(d.bars) - keep
		d.bars = d.bars[drop:]
		d.base += drop
	}
}

// barAt returns the bar at absolute index i, ok=false if evicted.
func (d *ZoneDetector) barAt(i int) (domain.Bar, bool) {
	j := i - d.base
	if j < 0 || j >= len(d.bars) {
		return domain.Bar{}, false
	}
	return d.bars[j], true
}

// trackRun maintains the current same-direction candle run, where
// direction is this close against the prior close.
func (d *ZoneDetector) trackRun(i int, bar domain.Bar) {
	prev, ok := d.barAt(i - 1)
	if !ok {
		d.runLen = 0
		return
	}
	var dir domain.Direction
	switch {
	case bar.Close > prev.Close:
		dir = domain.DirectionBullish
	case bar.Close < prev.Close:
		dir = domain.DirectionBearish
	default:
		d.runLen = 0
		return
	}
	if d.runLen > 0 && dir == d.runDir {
		d.runLen++
		return
	}
	d.runDir = dir
	d.runStart = i
	d.runStartCl = bar.Close
	d.runLen = 1
	d.runEmitted = false
}

// checkOrderBlock creates an order block when the active run reaches
// the minimum length and its cumulative close-to-close move clears the
// impulse threshold. One block per maximal run.
func (d *ZoneDetector) checkOrderBlock(i int, atr float64) *domain.Zone {
	if d.runEmitted || d.runLen < d.cfg.MinImpulseBars {
		return nil
	}
	endBar, _ := d.barAt(i)
	move := math.Abs(endBar.Close - d.runStartCl)
	if move < d.cfg.MinImpulseATR*atr {
		return nil
	}

	obIdx, obBar, ok := d.findOppositeCandle(d.runStart - 1)
	if !ok || d.runStart-obIdx > d.cfg.OBMaxAgeBars {
		return nil
	}
	d.runEmitted = true

	var lo, hi float64
	if d.cfg.OBMethod == domain.OBMethodStrict {
		lo = math.Min(obBar.Open, obBar.Close)
		hi = math.Max(obBar.Open, obBar.Close)
	} else {
		lo, hi = obBar.Low, obBar.High
	}
	exp := d.cfg.OBExpansionATR * atr
	return &domain.Zone{
		Kind:       domain.ZoneOrderBlock,
		Direction:  d.runDir,
		StartIndex: obIdx,
		EndIndex:   i,
		CreatedAt:  i,
		PriceLow:   lo - exp,
		PriceHigh:  hi + exp,
		Impulse:    move / atr,
	}
}

// findOppositeCandle walks back from index j for the last candle whose
// close-vs-prior-close direction opposes the current run.
func (d *ZoneDetector) findOppositeCandle(j int) (int, domain.Bar, bool) {
	want := d.runDir.Opposite()
	for ; j > d.base; j-- {
		bar, ok := d.barAt(j)
		if !ok {
			break
		}
		prev, ok := d.barAt(j - 1)
		if !ok {
			break
		}
		if want == domain.DirectionBullish && bar.Close > prev.Close {
			return j, bar, true
		}
		if want == domain.DirectionBearish && bar.Close < prev.Close {
			return j, bar, true
		}
	}
	return 0, domain.Bar{}, false
}

// checkFVG evaluates the 3-bar triple ending at the observed bar.
// The imbalance method compares the outer bars' high/low; the wick
// method uses the same comparison at half the threshold, producing a
// strict superset of imbalance gaps.
func (d *ZoneDetector) checkFVG(i int, atr float64) *domain.Zone {
	first, ok := d.barAt(i - 2)
	if !ok {
		return nil
	}
	last, _ := d.barAt(i)

	minGap := d.cfg.MinGapATR * atr
	if d.cfg.FVGMethod == domain.FVGMethodWick {
		minGap /= 2
	}
	exp := d.cfg.FVGExpandATR * atr

	if gap := last.Low - first.High; gap >= minGap && first.High < last.Low {
		return &domain.Zone{
			Kind:       domain.ZoneFairValueGap,
			Direction:  domain.DirectionBullish,
			StartIndex: i - 2,
			EndIndex:   i,
			CreatedAt:  i,
			PriceLow:   first.High - exp,
			PriceHigh:  last.Low + exp,
			Impulse:    gap / atr,
		}
	}
	if gap := first.Low - last.High; gap >= minGap && first.Low > last.High {
		return &domain.Zone{
			Kind:       domain.ZoneFairValueGap,
			Direction:  domain.DirectionBearish,
			StartIndex: i - 2,
			EndIndex:   i,
			CreatedAt:  i,
			PriceLow:   last.High - exp,
			PriceHigh:  first.Low + exp,
			Impulse:    gap / atr,
		}
	}
	return nil
}

// Zones returns every zone ever created, oldest first.
func (d *ZoneDetector) Zones() []*domain.Zone {
	return d.zones
}

// Eligible returns zones of the given direction that are still usable
// at the given bar index: not consumed, not filled, not past max age,
// and fully formed before the index. Newest first.
func (d *ZoneDetector) Eligible(dir domain.Direction, index int) []*domain.Zone {
	var out []*domain.Zone
	for j := len(d.zones) - 1; j >= 0; j-- {
		z := d.zones[j]
		if z.Direction != dir || z.Consumed || z.Filled {
			continue
		}
		if z.EndIndex >= index {
			continue
		}
		if index-z.CreatedAt > d.cfg.OBMaxAgeBars {
			continue
		}
		out = append(out, z)
	}
	return out
}
