package metrics

import (
	"context"
	"errors"
	"testing"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
	"smc-lab/internal/storage/memory"
)

func seedRun(t *testing.T, tradeStore *memory.TradeRecordStore, equityStore *memory.EquityPointStore) {
	t.Helper()
	ctx := context.Background()

	trades := []*domain.TradeRecord{
		{TradeID: "t1", RunID: "run-1", Symbol: "BTCUSDT", Side: domain.SideBuy, ExitTime: 2000, PnL: 50, Fees: 1, BalanceAfter: 10050},
		{TradeID: "t2", RunID: "run-1", Symbol: "BTCUSDT", Side: domain.SideSell, ExitTime: 4000, PnL: -20, Fees: 1, BalanceAfter: 10030},
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("seed trades: %v", err)
	}

	points := []*domain.EquityPoint{
		{RunID: "run-1", TimestampMs: 1000, Equity: 10000, Balance: 10000},
		{RunID: "run-1", TimestampMs: 2000, Equity: 10050, Balance: 10050},
		{RunID: "run-1", TimestampMs: 3000, Equity: 10040, Balance: 10050},
		{RunID: "run-1", TimestampMs: 4000, Equity: 10030, Balance: 10030},
	}
	if err := equityStore.InsertBulk(ctx, points); err != nil {
		t.Fatalf("seed equity: %v", err)
	}
}

func TestAggregator_ComputeSummaryRebuildsFromStores(t *testing.T) {
	tradeStore := memory.NewTradeRecordStore()
	equityStore := memory.NewEquityPointStore()
	agg := NewAggregator(tradeStore, equityStore, memory.NewRunSummaryStore())
	seedRun(t, tradeStore, equityStore)

	sum, err := agg.ComputeSummary(context.Background(), "run-1", 10000)
	if err != nil {
		t.Fatalf("ComputeSummary: %v", err)
	}

	if sum.RunID != "run-1" || sum.Symbol != "BTCUSDT" {
		t.Errorf("identity = %q/%q, want run-1/BTCUSDT", sum.RunID, sum.Symbol)
	}
	if sum.BarCount != 4 || sum.FirstBarMs != 1000 || sum.LastBarMs != 4000 {
		t.Errorf("bar span = %d [%d, %d]", sum.BarCount, sum.FirstBarMs, sum.LastBarMs)
	}
	if sum.TotalTrades != 2 || sum.WinningTrades != 1 || sum.LosingTrades != 1 {
		t.Errorf("trade counts = %d/%d/%d", sum.TotalTrades, sum.WinningTrades, sum.LosingTrades)
	}
	if sum.FinalEquity != 10030 || sum.NetProfit != 30 {
		t.Errorf("equity = %v, net = %v", sum.FinalEquity, sum.NetProfit)
	}
	if sum.ProfitFactor != 2.5 {
		t.Errorf("profit factor = %v, want 2.5", sum.ProfitFactor)
	}
}

func TestAggregator_ComputeSummaryNoData(t *testing.T) {
	agg := NewAggregator(memory.NewTradeRecordStore(), memory.NewEquityPointStore(), memory.NewRunSummaryStore())

	_, err := agg.ComputeSummary(context.Background(), "missing", 10000)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestAggregator_ComputeAndStorePersistsOnce(t *testing.T) {
	tradeStore := memory.NewTradeRecordStore()
	equityStore := memory.NewEquityPointStore()
	summaryStore := memory.NewRunSummaryStore()
	agg := NewAggregator(tradeStore, equityStore, summaryStore)
	seedRun(t, tradeStore, equityStore)

	ctx := context.Background()
	sum, err := agg.ComputeAndStore(ctx, "run-1", 10000)
	if err != nil {
		t.Fatalf("ComputeAndStore: %v", err)
	}
	if sum.Status != domain.RunStatusOK {
		t.Errorf("status = %q, want %q", sum.Status, domain.RunStatusOK)
	}

	stored, err := summaryStore.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.NetProfit != 30 {
		t.Errorf("stored net profit = %v, want 30", stored.NetProfit)
	}

	if _, err := agg.ComputeAndStore(ctx, "run-1", 10000); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("second store err = %v, want ErrDuplicateKey", err)
	}
}
