package simulation

import (
	"math"
	"testing"

	"smc-lab/internal/domain"
)

func bar(ts int64, o, h, l, c float64) domain.Bar {
	return domain.Bar{TimestampMs: ts, Open: o, High: h, Low: l, Close: c}
}

// frictionless keeps fill math exact for state machine tests.
func frictionless() domain.SimulationConfig {
	cfg := domain.DefaultSimulationConfig()
	cfg.CommissionPct = 0
	cfg.SlippagePct = 0
	cfg.SpreadPct = 0
	return cfg
}

func newSim(t *testing.T, cfg domain.SimulationConfig) *Simulator {
	t.Helper()
	s, err := NewSimulator(cfg)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return s
}

func buySignal(size float64) *domain.Signal {
	return &domain.Signal{Side: domain.SideBuy, EntryPrice: 100, StopLoss: 98, TakeProfit: 104, Size: size}
}

func TestSimulator_FillsAtNextBarOpen(t *testing.T) {
	s := newSim(t, frictionless())

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))
	if s.PendingOrders() != 1 || s.OpenPositions() != 0 {
		t.Fatalf("after signal bar: pending=%d open=%d, want 1/0", s.PendingOrders(), s.OpenPositions())
	}

	s.Step(bar(1000, 101, 101.5, 100.5, 101), 1, true, nil)
	if s.PendingOrders() != 0 || s.OpenPositions() != 1 {
		t.Fatalf("after fill bar: pending=%d open=%d, want 0/1", s.PendingOrders(), s.OpenPositions())
	}

	s.Finish()
	trades := s.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].EntryPrice != 101 || trades[0].EntryIndex != 1 {
		t.Errorf("entry fill %v at index %d, want 101 at 1", trades[0].EntryPrice, trades[0].EntryIndex)
	}
}

func TestSimulator_TakeProfitExit(t *testing.T) {
	s := newSim(t, frictionless())

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))
	s.Step(bar(1000, 101, 101.5, 100.5, 101), 1, true, nil)
	s.Step(bar(2000, 101, 104.5, 100.8, 104), 1, true, nil)

	trades := s.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.ExitReason != domain.ExitReasonTakeProfit || tr.ExitPrice != 104 {
		t.Errorf("exit %q at %v, want TAKE_PROFIT at 104", tr.ExitReason, tr.ExitPrice)
	}
	// (104 - 101) * 10, no costs.
	if tr.PnL != 30 || s.Balance() != 10030 {
		t.Errorf("pnl=%v balance=%v, want 30/10030", tr.PnL, s.Balance())
	}
	if tr.BalanceAfter != 10030 {
		t.Errorf("BalanceAfter = %v, want 10030", tr.BalanceAfter)
	}
}

func TestSimulator_StopWinsWhenBarTouchesBoth(t *testing.T) {
	s := newSim(t, frictionless())

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))
	s.Step(bar(1000, 101, 101.5, 100.5, 101), 1, true, nil)
	// Wide bar through both the stop (98) and the target (104).
	s.Step(bar(2000, 101, 105, 97, 100), 1, true, nil)

	trades := s.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if trades[0].ExitReason != domain.ExitReasonStopLoss || trades[0].ExitPrice != 98 {
		t.Errorf("exit %q at %v, want STOP_LOSS at 98", trades[0].ExitReason, trades[0].ExitPrice)
	}
}

func TestSimulator_ShortStopLoss(t *testing.T) {
	s := newSim(t, frictionless())
	sig := &domain.Signal{Side: domain.SideSell, EntryPrice: 100, StopLoss: 102, TakeProfit: 96, Size: 5}

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, sig)
	s.Step(bar(1000, 100, 100.5, 99.5, 100), 1, true, nil)
	s.Step(bar(2000, 100, 102.5, 99.8, 102), 1, true, nil)

	trades := s.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.ExitReason != domain.ExitReasonStopLoss || tr.ExitPrice != 102 {
		t.Errorf("exit %q at %v, want STOP_LOSS at 102", tr.ExitReason, tr.ExitPrice)
	}
	// (100 - 102) * 5.
	if tr.PnL != -10 || s.Balance() != 9990 {
		t.Errorf("pnl=%v balance=%v, want -10/9990", tr.PnL, s.Balance())
	}
}

func TestSimulator_CostsAppliedOnBothSides(t *testing.T) {
	cfg := domain.DefaultSimulationConfig()
	cfg.CommissionPct = 0.001
	cfg.SlippagePct = 0.05
	cfg.SpreadPct = 0.002
	s := newSim(t, cfg)

	s.Step(bar(0, 100, 100.5, 99.5, 100), 2, true, buySignal(10))
	// Fill: 100 + 0.05*2 slippage + 0.002*100/2 half spread = 100.2.
	s.Step(bar(1000, 100, 100.5, 99.5, 100), 2, true, nil)
	s.Step(bar(2000, 100, 104.5, 99.8, 104), 2, true, nil)

	trades := s.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if math.Abs(tr.EntryPrice-100.2) > 1e-9 {
		t.Errorf("entry fill = %v, want 100.2", tr.EntryPrice)
	}
	wantFees := 100.2*10*0.001 + 104*10*0.001
	if math.Abs(tr.Fees-wantFees) > 1e-9 {
		t.Errorf("fees = %v, want %v", tr.Fees, wantFees)
	}
	wantPnL := (104-100.2)*10 - wantFees
	if math.Abs(tr.PnL-wantPnL) > 1e-9 {
		t.Errorf("pnl = %v, want %v", tr.PnL, wantPnL)
	}
	if math.Abs(s.Balance()-(10000+wantPnL)) > 1e-9 {
		t.Errorf("balance = %v, want %v", s.Balance(), 10000+wantPnL)
	}
}

func TestSimulator_PositionCapDropsSignals(t *testing.T) {
	s := newSim(t, frictionless()) // MaxPositions 1

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))
	// Pending order counts toward the cap.
	s.Step(bar(1000, 101, 101.5, 100.5, 101), 1, true, buySignal(10))
	s.Step(bar(2000, 101, 101.5, 100.5, 101), 1, true, buySignal(10))

	if s.DroppedSignals() != 2 {
		t.Errorf("dropped = %d, want 2", s.DroppedSignals())
	}
	if s.OpenPositions() != 1 {
		t.Errorf("open = %d, want 1", s.OpenPositions())
	}
}

func TestSimulator_FinishClosesOpenAtLastClose(t *testing.T) {
	s := newSim(t, frictionless())

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))
	s.Step(bar(1000, 101, 101.8, 100.5, 101.5), 1, true, nil)

	stillOpen := s.Finish()
	if stillOpen != 1 {
		t.Fatalf("Finish reported %d open, want 1", stillOpen)
	}
	trades := s.Trades()
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.ExitReason != domain.ExitReasonEndOfData || tr.ExitPrice != 101.5 {
		t.Errorf("exit %q at %v, want END_OF_DATA at last close 101.5", tr.ExitReason, tr.ExitPrice)
	}
	if s.OpenPositions() != 0 {
		t.Errorf("open = %d after Finish, want 0", s.OpenPositions())
	}
	if err := s.Step(bar(2000, 101, 101.5, 100.5, 101), 1, true, nil); err != ErrSimFinished {
		t.Errorf("Step after Finish = %v, want ErrSimFinished", err)
	}
}

func TestSimulator_FinishCancelsPending(t *testing.T) {
	s := newSim(t, frictionless())
	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))

	if stillOpen := s.Finish(); stillOpen != 0 {
		t.Errorf("Finish reported %d open, want 0", stillOpen)
	}
	if len(s.Trades()) != 0 {
		t.Errorf("cancelled pending order must not produce a trade")
	}
}

func TestSimulator_EquityMarksUnrealized(t *testing.T) {
	s := newSim(t, frictionless())

	s.Step(bar(0, 100, 100.5, 99.5, 100), 1, true, buySignal(10))
	s.Step(bar(1000, 101, 103.5, 100.5, 103), 1, true, nil)

	eq := s.Equity()
	if len(eq) != 2 {
		t.Fatalf("expected 2 equity points, got %d", len(eq))
	}
	if eq[0].Equity != 10000 {
		t.Errorf("flat equity = %v, want 10000", eq[0].Equity)
	}
	// Open at 101, marked at close 103: +20 unrealized.
	if eq[1].Equity != 10020 || eq[1].Balance != 10000 {
		t.Errorf("equity=%v balance=%v, want 10020/10000", eq[1].Equity, eq[1].Balance)
	}
}
