package strategy

import (
	"errors"
	"fmt"

	"smc-lab/internal/domain"
	"smc-lab/internal/smc"
)

// Composer errors
var (
	ErrNilBalanceFunc = errors.New("smc strategy requires a balance func")
)

// SMCStrategy composes structure, zone, and liquidity grab detectors
// into entry signals. An entry requires a price bar touching an
// eligible zone while a same-direction structure event is still
// recent; a reclaimed liquidity grab in the same direction is added as
// confluence but never required.
type SMCStrategy struct {
	cfg     domain.StrategyConfig
	sizer   Sizer
	balance BalanceFunc

	structure *smc.StructureDetector
	zones     *smc.ZoneDetector
	grabs     *smc.LiquidityGrabDetector

	next         int
	recentEvents []domain.StructureEvent
	recentGrabs  []domain.LiquidityGrabEvent
	coolOff      int
}

// NewSMCStrategy creates the signal composer. The balance func is
// consulted at signal time so sizing follows realized equity.
func NewSMCStrategy(cfg domain.StrategyConfig, sim domain.SimulationConfig, balance BalanceFunc) (*SMCStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, ErrNilBalanceFunc
	}
	return &SMCStrategy{
		cfg:       cfg,
		sizer:     NewSizer(sim),
		balance:   balance,
		structure: smc.NewStructureDetector(cfg),
		zones:     smc.NewZoneDetector(cfg),
		grabs:     smc.NewLiquidityGrabDetector(cfg),
	}, nil
}

// Name returns the strategy identifier including key parameters.
func (s *SMCStrategy) Name() string {
	return fmt.Sprintf("SMC_n%d_atr%d_rr%.1f", s.cfg.SwingLookback, s.cfg.ATRPeriod, s.cfg.RiskReward)
}

// Observe feeds the next bar through every detector and composes at
// most one signal. Detectors are always fed, even during cool-off, so
// their state never skips bars.
func (s *SMCStrategy) Observe(bar domain.Bar, atr float64, atrOK bool) (*domain.Signal, error) {
	i := s.next
	s.next++

	upd := s.structure.Observe(bar, atr, atrOK)
	if s.cfg.UseLiquidityGrabs {
		for _, sp := range upd.ConfirmedSwings {
			s.grabs.AddSwing(sp)
		}
		s.recentGrabs = append(s.recentGrabs, s.grabs.Observe(bar, atr, atrOK)...)
	}
	s.zones.Observe(bar, atr, atrOK)

	s.recentEvents = append(s.recentEvents, upd.Events...)
	s.pruneRecent(i)

	if s.coolOff > 0 {
		s.coolOff--
		return nil, nil
	}
	if !atrOK {
		return nil, nil
	}
	return s.compose(i, bar, atr), nil
}

// pruneRecent drops structure events and grabs that fell out of the
// recency window at bar index i.
func (s *SMCStrategy) pruneRecent(i int) {
	cutoff := i - s.cfg.StructureRecencyBars
	events := s.recentEvents[:0]
	for _, ev := range s.recentEvents {
		if ev.Index >= cutoff {
			events = append(events, ev)
		}
	}
	s.recentEvents = events

	grabs := s.recentGrabs[:0]
	for _, g := range s.recentGrabs {
		if g.ReclaimIndex >= cutoff {
			grabs = append(grabs, g)
		}
	}
	s.recentGrabs = grabs
}

// compose pairs the newest matching structure event with the newest
// eligible zone touched by this bar. Both are consumed on success.
func (s *SMCStrategy) compose(i int, bar domain.Bar, atr float64) *domain.Signal {
	for e := len(s.recentEvents) - 1; e >= 0; e-- {
		ev := s.recentEvents[e]
		zone := s.touchedZone(ev.Direction, i, bar)
		if zone == nil {
			continue
		}
		sig := s.buildSignal(i, bar, atr, ev, zone)
		if sig == nil {
			continue
		}
		zone.Consumed = true
		s.recentEvents = append(s.recentEvents[:e], s.recentEvents[e+1:]...)
		s.coolOff = s.cfg.CoolOffBars
		return sig
	}
	return nil
}

// touchedZone returns the newest eligible zone of the given direction
// whose band contains this bar's retest extreme.
func (s *SMCStrategy) touchedZone(dir domain.Direction, i int, bar domain.Bar) *domain.Zone {
	probe := bar.Low
	if dir == domain.DirectionBearish {
		probe = bar.High
	}
	for _, z := range s.zones.Eligible(dir, i) {
		if z.Contains(probe) {
			return z
		}
	}
	return nil
}

// buildSignal prices the entry at this bar's close, anchors the stop
// at the far zone boundary pushed out to the minimum buffer, and
// projects the target from the configured risk multiple.
func (s *SMCStrategy) buildSignal(i int, bar domain.Bar, atr float64, ev domain.StructureEvent, zone *domain.Zone) *domain.Signal {
	entry := bar.Close
	buffer := s.cfg.StopBufferATR * atr

	var stop, target float64
	var side domain.Side
	if ev.Direction == domain.DirectionBullish {
		side = domain.SideBuy
		stop = zone.PriceLow
		if entry-stop < buffer {
			stop = entry - buffer
		}
		target = entry + (entry-stop)*s.cfg.RiskReward
	} else {
		side = domain.SideSell
		stop = zone.PriceHigh
		if stop-entry < buffer {
			stop = entry + buffer
		}
		target = entry - (stop-entry)*s.cfg.RiskReward
	}

	stopDistance := entry - stop
	if side == domain.SideSell {
		stopDistance = stop - entry
	}
	if stopDistance <= 0 || s.cfg.RiskReward < s.cfg.MinRiskReward {
		return nil
	}
	size := s.sizer.Size(s.balance(), stopDistance)
	if size <= 0 {
		return nil
	}

	reason := fmt.Sprintf("%s %s + %s", ev.Kind, ev.Direction, zone.Kind)
	if s.hasGrabConfluence(ev.Direction) {
		reason += " + liquidity_grab"
	}
	return &domain.Signal{
		Index:      i,
		Side:       side,
		EntryPrice: entry,
		StopLoss:   stop,
		TakeProfit: target,
		Size:       size,
		Reason:     reason,
	}
}

func (s *SMCStrategy) hasGrabConfluence(dir domain.Direction) bool {
	for _, g := range s.recentGrabs {
		if g.Direction == dir {
			return true
		}
	}
	return false
}

// Trend exposes the structure detector's current trend state.
func (s *SMCStrategy) Trend() domain.TrendState {
	return s.structure.Trend()
}

// Ensure SMCStrategy implements Strategy
var _ Strategy = (*SMCStrategy)(nil)
