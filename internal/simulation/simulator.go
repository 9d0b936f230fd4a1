// Package simulation executes signals against bars with explicit
// trading frictions. Fills never use the bar that produced the
// signal: an accepted signal becomes a pending order and fills at the
// next bar's open.
package simulation

import (
	"errors"
	"math"

	"smc-lab/internal/domain"
)

// Simulator errors
var (
	ErrSimFinished = errors.New("simulator already finished")
)

// pendingOrder is an accepted signal waiting for the next bar open.
type pendingOrder struct {
	signal     domain.Signal
	acceptedAt int
}

// Simulator is a single-account execution engine. It moves positions
// through pending, open, and closed states one bar at a time, charging
// slippage and half the spread on fills and commission on both sides.
type Simulator struct {
	cfg domain.SimulationConfig

	balance  float64
	pending  []pendingOrder
	open     []*domain.Position
	trades   []domain.TradeRecord
	equity   []domain.EquityPoint
	dropped  int
	next     int
	lastBar  domain.Bar
	lastATR  float64
	finished bool
}

// NewSimulator creates a simulator with the configured starting
// balance. The configuration must be valid.
func NewSimulator(cfg domain.SimulationConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{
		cfg:     cfg,
		balance: cfg.InitialBalance,
	}, nil
}

// Balance returns the realized account balance.
func (s *Simulator) Balance() float64 {
	return s.balance
}

// Step advances the simulator by one bar. Order of operations: fill
// pending entries at this bar's open, run exit checks against this
// bar's range, mark equity at the close, then accept or drop the new
// signal. A signal accepted here can only fill on the following bar.
func (s *Simulator) Step(bar domain.Bar, atr float64, atrOK bool, sig *domain.Signal) error {
	if s.finished {
		return ErrSimFinished
	}
	i := s.next
	s.next++
	s.lastBar = bar
	if atrOK {
		s.lastATR = atr
	}

	s.fillPending(i, bar, atr, atrOK)
	s.checkExits(i, bar)
	s.markEquity(bar)

	if sig != nil {
		if len(s.pending)+len(s.open) >= s.cfg.MaxPositions {
			s.dropped++
		} else {
			s.pending = append(s.pending, pendingOrder{signal: *sig, acceptedAt: i})
		}
	}
	return nil
}

// fillPending converts pending orders into open positions at this
// bar's open, adjusted for slippage and half the spread against the
// taker. The entry commission is charged immediately.
func (s *Simulator) fillPending(i int, bar domain.Bar, atr float64, atrOK bool) {
	if len(s.pending) == 0 {
		return
	}
	kept := s.pending[:0]
	for _, p := range s.pending {
		if p.acceptedAt >= i {
			kept = append(kept, p)
			continue
		}
		slip := 0.0
		if atrOK {
			slip = s.cfg.SlippagePct * atr
		}
		halfSpread := s.cfg.SpreadPct * bar.Open / 2

		fill := bar.Open + slip + halfSpread
		if p.signal.Side == domain.SideSell {
			fill = bar.Open - slip - halfSpread
		}
		fee := s.commission(fill, p.signal.Size)
		s.balance -= fee

		s.open = append(s.open, &domain.Position{
			Side:         p.signal.Side,
			EntryPrice:   fill,
			StopLoss:     p.signal.StopLoss,
			TakeProfit:   p.signal.TakeProfit,
			Size:         p.signal.Size,
			OpenIndex:    i,
			OpenTime:     bar.TimestampMs,
			EntryFees:    fee,
			SignalReason: p.signal.Reason,
		})
	}
	s.pending = kept
}

// checkExits closes positions whose stop or target was touched by
// this bar. When both are touched the stop wins. Exits fill at the
// level itself.
func (s *Simulator) checkExits(i int, bar domain.Bar) {
	remaining := s.open[:0]
	for _, pos := range s.open {
		price, reason, hit := exitTouch(pos, bar)
		if !hit {
			remaining = append(remaining, pos)
			continue
		}
		s.closePosition(pos, i, bar.TimestampMs, price, reason)
	}
	s.open = remaining
}

// exitTouch reports the exit fill for a position against one bar, with
// stop precedence on bars touching both levels.
func exitTouch(pos *domain.Position, bar domain.Bar) (float64, string, bool) {
	if pos.Side == domain.SideBuy {
		if bar.Low <= pos.StopLoss {
			return pos.StopLoss, domain.ExitReasonStopLoss, true
		}
		if bar.High >= pos.TakeProfit {
			return pos.TakeProfit, domain.ExitReasonTakeProfit, true
		}
		return 0, "", false
	}
	if bar.High >= pos.StopLoss {
		return pos.StopLoss, domain.ExitReasonStopLoss, true
	}
	if bar.Low <= pos.TakeProfit {
		return pos.TakeProfit, domain.ExitReasonTakeProfit, true
	}
	return 0, "", false
}

// closePosition realizes a position at the given price, charging the
// exit commission and appending the trade record.
func (s *Simulator) closePosition(pos *domain.Position, exitIndex int, exitTime int64, price float64, reason string) {
	gross := (price - pos.EntryPrice) * pos.Size * s.cfg.UnitValue
	if pos.Side == domain.SideSell {
		gross = (pos.EntryPrice - price) * pos.Size * s.cfg.UnitValue
	}
	exitFee := s.commission(price, pos.Size)
	s.balance += gross - exitFee

	s.trades = append(s.trades, domain.TradeRecord{
		Side:         pos.Side,
		EntryTime:    pos.OpenTime,
		ExitTime:     exitTime,
		EntryIndex:   pos.OpenIndex,
		ExitIndex:    exitIndex,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    price,
		Size:         pos.Size,
		Fees:         pos.EntryFees + exitFee,
		PnL:          gross - pos.EntryFees - exitFee,
		ExitReason:   reason,
		BalanceAfter: s.balance,
		Reason:       pos.SignalReason,
	})
}

// markEquity records balance plus unrealized value at this bar's close.
func (s *Simulator) markEquity(bar domain.Bar) {
	s.equity = append(s.equity, domain.EquityPoint{
		TimestampMs: bar.TimestampMs,
		Equity:      s.balance + s.unrealized(bar.Close),
		Balance:     s.balance,
	})
}

func (s *Simulator) unrealized(price float64) float64 {
	var u float64
	for _, pos := range s.open {
		if pos.Side == domain.SideBuy {
			u += (price - pos.EntryPrice) * pos.Size * s.cfg.UnitValue
		} else {
			u += (pos.EntryPrice - price) * pos.Size * s.cfg.UnitValue
		}
	}
	return u
}

func (s *Simulator) commission(price, size float64) float64 {
	return math.Abs(price * size * s.cfg.UnitValue * s.cfg.CommissionPct)
}

// Finish force-closes open positions at the last observed close,
// charged slippage and half the spread, and cancels pending orders.
// It returns the number of positions that were still open.
func (s *Simulator) Finish() int {
	if s.finished {
		return 0
	}
	s.finished = true
	s.pending = nil

	stillOpen := len(s.open)
	last := s.lastBar
	for _, pos := range s.open {
		slip := s.cfg.SlippagePct * s.lastATR
		halfSpread := s.cfg.SpreadPct * last.Close / 2
		price := last.Close - slip - halfSpread
		if pos.Side == domain.SideSell {
			price = last.Close + slip + halfSpread
		}
		s.closePosition(pos, s.next-1, last.TimestampMs, price, domain.ExitReasonEndOfData)
	}
	s.open = nil
	return stillOpen
}

// Trades returns closed trades in exit order.
func (s *Simulator) Trades() []domain.TradeRecord {
	return s.trades
}

// Equity returns the per-bar equity curve.
func (s *Simulator) Equity() []domain.EquityPoint {
	return s.equity
}

// OpenPositions returns the number of currently open positions.
func (s *Simulator) OpenPositions() int {
	return len(s.open)
}

// PendingOrders returns the number of orders awaiting their fill bar.
func (s *Simulator) PendingOrders() int {
	return len(s.pending)
}

// DroppedSignals returns signals rejected by the position cap.
func (s *Simulator) DroppedSignals() int {
	return s.dropped
}
