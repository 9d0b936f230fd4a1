package orders

import (
	"context"
	"errors"
	"math"
	"testing"

	"smc-lab/internal/domain"
)

func bar(ts int64, o, h, l, c float64) domain.Bar {
	return domain.Bar{TimestampMs: ts, Open: o, High: h, Low: l, Close: c}
}

// signalBars drives the composer to one buy: the swing high at 12
// breaks at bar 3, which also retests the gap left at bar 2.
func signalBars() []domain.Bar {
	return []domain.Bar{
		bar(0, 10, 10.5, 9.8, 10.2),
		bar(1000, 10.2, 12, 10.1, 11.5),
		bar(2000, 11.5, 11.6, 10.9, 11),
		bar(3000, 11, 12.3, 10.9, 12.2),
		bar(4000, 12.2, 12.6, 12.0, 12.5),
		bar(5000, 13.5, 14.2, 13.4, 14),
		bar(6000, 14, 14.1, 13.0, 13.8),
	}
}

func liveConfig() domain.RunConfig {
	cfg := domain.DefaultStrategyConfig()
	cfg.SwingLookback = 1
	cfg.ATRPeriod = 1
	cfg.BOSMarginPct = 0.01
	cfg.UseOrderBlocks = false
	cfg.UseFVG = true
	cfg.FVGMethod = domain.FVGMethodImbalance
	cfg.MinGapATR = 0.5
	cfg.FVGExpandATR = 0
	cfg.UseLiquidityGrabs = false
	cfg.CoolOffBars = 2
	return domain.RunConfig{
		Symbol:     "EURUSD",
		Strategy:   cfg,
		Simulation: domain.DefaultSimulationConfig(),
	}
}

func TestDryRunPlacer_AcknowledgesAndRecords(t *testing.T) {
	p := NewDryRunPlacer()
	ctx := context.Background()

	order := ProposedOrder{Symbol: "EURUSD", Side: domain.SideBuy, Size: 1, Reason: "test"}
	res, err := p.Place(ctx, order)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !res.Accepted || res.Ticket != "dry-1" {
		t.Errorf("result = %+v", res)
	}

	res, err = p.Place(ctx, order)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if res.Ticket != "dry-2" {
		t.Errorf("second ticket = %q, want dry-2", res.Ticket)
	}

	if placed := p.Placed(); len(placed) != 2 || placed[0].Symbol != "EURUSD" {
		t.Errorf("placed = %+v", placed)
	}
}

func TestLiveRunner_PlacesOrderOnSignal(t *testing.T) {
	placer := NewDryRunPlacer()
	r, err := NewLiveRunner(liveConfig(), placer, false)
	if err != nil {
		t.Fatalf("NewLiveRunner: %v", err)
	}

	ctx := context.Background()
	var results []*PlacementResult
	for _, b := range signalBars() {
		res, err := r.OnBar(ctx, b)
		if err != nil {
			t.Fatalf("OnBar at %d: %v", b.TimestampMs, err)
		}
		if res != nil {
			results = append(results, res)
		}
	}

	if len(results) != 1 {
		t.Fatalf("placements = %d, want 1", len(results))
	}
	if !results[0].Accepted || results[0].Ticket != "dry-1" {
		t.Errorf("result = %+v", results[0])
	}

	placed := placer.Placed()
	if len(placed) != 1 {
		t.Fatalf("placed orders = %d, want 1", len(placed))
	}
	order := placed[0]
	if order.Symbol != "EURUSD" || order.Side != domain.SideBuy || order.SignalTime != 3000 {
		t.Errorf("order = %+v", order)
	}
	if order.Price != 12.2 || order.StopLoss != 10.5 {
		t.Errorf("levels = entry %v stop %v, want 12.2/10.5", order.Price, order.StopLoss)
	}
	if math.Abs(order.TakeProfit-15.6) > 1e-9 {
		t.Errorf("target = %v, want 15.6", order.TakeProfit)
	}
}

func TestLiveRunner_RunConsumesChannelUntilClose(t *testing.T) {
	placer := NewDryRunPlacer()
	r, err := NewLiveRunner(liveConfig(), placer, false)
	if err != nil {
		t.Fatalf("NewLiveRunner: %v", err)
	}

	bars := make(chan domain.Bar)
	go func() {
		for _, b := range signalBars() {
			bars <- b
		}
		close(bars)
	}()

	if err := r.Run(context.Background(), bars); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(placer.Placed()) != 1 {
		t.Errorf("placed orders = %d, want 1", len(placer.Placed()))
	}
}

func TestLiveRunner_RunStopsOnCancel(t *testing.T) {
	r, err := NewLiveRunner(liveConfig(), NewDryRunPlacer(), false)
	if err != nil {
		t.Fatalf("NewLiveRunner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Run(ctx, make(chan domain.Bar)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewLiveRunner_Validation(t *testing.T) {
	cfg := liveConfig()
	cfg.Symbol = ""
	if _, err := NewLiveRunner(cfg, NewDryRunPlacer(), false); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("invalid config err = %v", err)
	}

	if _, err := NewLiveRunner(liveConfig(), nil, false); err == nil {
		t.Error("nil placer accepted")
	}
}
