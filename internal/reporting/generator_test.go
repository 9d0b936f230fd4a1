package reporting

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
	"smc-lab/internal/storage/memory"
)

var testClock = func() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func setupTestData(t *testing.T) (*memory.RunSummaryStore, *memory.TradeRecordStore) {
	t.Helper()
	ctx := context.Background()

	summaryStore := memory.NewRunSummaryStore()
	tradeStore := memory.NewTradeRecordStore()

	summaries := []*domain.RunSummary{
		{
			RunID: "run-eur-1", Symbol: "EURUSD", Status: domain.RunStatusOK,
			BarCount: 500, FirstBarMs: 1000, LastBarMs: 500000,
			InitialBalance: 10000, FinalEquity: 10030, NetProfit: 30, TotalReturnPct: 0.3,
			TotalTrades: 2, WinningTrades: 1, LosingTrades: 1,
			WinRate: 50, ProfitFactor: 2.5, Expectancy: 15,
			SharpeRatio: 1.2, SortinoRatio: 1.8, CalmarRatio: 0.9,
			MaxDrawdownAbs: 20, MaxDrawdownPct: 0.2, MaxDrawdownBars: 3,
			AvgWin: 50, AvgLoss: -20, LargestWin: 50, LargestLoss: -20,
			ConsecutiveLosses: 1,
		},
		{
			RunID: "run-btc-1", Symbol: "BTCUSDT", Status: domain.RunStatusInsufficientData,
			Reason:   "no trades produced",
			BarCount: 100, InitialBalance: 10000, FinalEquity: 10000,
			WinRate: math.NaN(), ProfitFactor: math.NaN(), Expectancy: math.NaN(),
			SharpeRatio: math.NaN(), SortinoRatio: math.NaN(), CalmarRatio: math.NaN(),
		},
	}
	for _, s := range summaries {
		if err := summaryStore.Insert(ctx, s); err != nil {
			t.Fatalf("Insert summary failed: %v", err)
		}
	}

	trades := []*domain.TradeRecord{
		{
			TradeID: "t1", RunID: "run-eur-1", Symbol: "EURUSD", Side: domain.SideBuy,
			EntryTime: 2000, ExitTime: 3000, EntryIndex: 2, ExitIndex: 3,
			EntryPrice: 100, ExitPrice: 104, Size: 10, Fees: 0.5, PnL: 39.5,
			ExitReason: domain.ExitReasonTakeProfit, BalanceAfter: 10039.5,
			Reason: "bullish break, zone retest",
		},
		{
			TradeID: "t2", RunID: "run-eur-1", Symbol: "EURUSD", Side: domain.SideSell,
			EntryTime: 4000, ExitTime: 5000, EntryIndex: 4, ExitIndex: 5,
			EntryPrice: 103, ExitPrice: 104, Size: 10, Fees: 0.5, PnL: -10.5,
			ExitReason: domain.ExitReasonStopLoss, BalanceAfter: 10029,
			Reason: "bearish break",
		},
	}
	for _, tr := range trades {
		if err := tradeStore.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert trade failed: %v", err)
		}
	}

	return summaryStore, tradeStore
}

func TestGenerator_GenerateSortsRunsBySymbol(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore).WithClock(testClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(testClock()) {
		t.Errorf("GeneratedAt = %v, want fixed clock", report.GeneratedAt)
	}
	if report.RunCount != 2 {
		t.Errorf("RunCount = %d, want 2", report.RunCount)
	}
	if report.SymbolCount != 2 {
		t.Errorf("SymbolCount = %d, want 2", report.SymbolCount)
	}
	if len(report.Runs) != 2 {
		t.Fatalf("len(Runs) = %d, want 2", len(report.Runs))
	}
	// BTCUSDT sorts before EURUSD
	if report.Runs[0].Symbol != "BTCUSDT" || report.Runs[1].Symbol != "EURUSD" {
		t.Errorf("run order = %s, %s, want BTCUSDT, EURUSD",
			report.Runs[0].Symbol, report.Runs[1].Symbol)
	}
	eur := report.Runs[1]
	if eur.TotalTrades != 2 || eur.NetProfit != 30 || eur.ProfitFactor != 2.5 {
		t.Errorf("EURUSD row = %+v", eur)
	}
	if !math.IsNaN(report.Runs[0].WinRate) {
		t.Errorf("BTCUSDT WinRate = %v, want NaN", report.Runs[0].WinRate)
	}
}

func TestGenerator_GenerateRunBuildsDetail(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore).WithClock(testClock)

	report, err := gen.GenerateRun(context.Background(), "run-eur-1")
	if err != nil {
		t.Fatalf("GenerateRun failed: %v", err)
	}

	s := report.Summary
	if s.RunID != "run-eur-1" || s.Symbol != "EURUSD" || s.Status != domain.RunStatusOK {
		t.Errorf("summary header = %s/%s/%s", s.RunID, s.Symbol, s.Status)
	}
	if s.NetProfit != 30 || s.MaxDrawdownBars != 3 || s.ConsecutiveLosses != 1 {
		t.Errorf("summary metrics = %+v", s)
	}
	if len(report.Trades) != 2 {
		t.Fatalf("len(Trades) = %d, want 2", len(report.Trades))
	}
	// Ordered by exit time
	if report.Trades[0].TradeID != "t1" || report.Trades[1].TradeID != "t2" {
		t.Errorf("trade order = %s, %s", report.Trades[0].TradeID, report.Trades[1].TradeID)
	}
	first := report.Trades[0]
	if first.Side != "buy" || first.PnL != 39.5 || first.ExitReason != domain.ExitReasonTakeProfit {
		t.Errorf("first trade = %+v", first)
	}
}

func TestGenerator_GenerateRunNotFound(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore)

	_, err := gen.GenerateRun(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRenderRunsCSV(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore).WithClock(testClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := RenderRunsCSV(report.Runs)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want 3 (header + 2 rows)", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,symbol,status,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "run-eur-1,EURUSD,OK,500,2,") {
		t.Errorf("EURUSD row = %q", lines[2])
	}
}

func TestRenderTradesCSV_QuotesReasons(t *testing.T) {
	trades := []TradeRow{
		{
			TradeID: "t1", Side: "buy", EntryTime: 2000, ExitTime: 3000,
			EntryPrice: 100, ExitPrice: 104, Size: 10, Fees: 0.5, PnL: 39.5,
			ExitReason: "TAKE_PROFIT", BalanceAfter: 10039.5,
			Reason: "bullish break, zone retest",
		},
	}

	out := RenderTradesCSV(trades)
	if !strings.Contains(out, `"bullish break, zone retest"`) {
		t.Errorf("comma-bearing reason not quoted: %q", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore).WithClock(testClock)

	report, err := gen.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := RenderMarkdown(report)
	if !strings.Contains(out, "Generated: 2024-06-01T12:00:00Z") {
		t.Errorf("missing fixed timestamp:\n%s", out)
	}
	if !strings.Contains(out, "Runs: 2 | Symbols: 2") {
		t.Errorf("missing counts:\n%s", out)
	}
	// NaN ratios render as n/a
	if !strings.Contains(out, "n/a") {
		t.Errorf("NaN ratio not rendered as n/a:\n%s", out)
	}
	if !strings.Contains(out, "## Non-OK Runs") || !strings.Contains(out, "no trades produced") {
		t.Errorf("missing non-OK section:\n%s", out)
	}
}

func TestRenderRunMarkdownAndText(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore).WithClock(testClock)

	report, err := gen.GenerateRun(context.Background(), "run-eur-1")
	if err != nil {
		t.Fatalf("GenerateRun failed: %v", err)
	}

	md := RenderRunMarkdown(report)
	if !strings.Contains(md, "# Run run-eur-1") {
		t.Errorf("markdown missing run header:\n%s", md)
	}
	if !strings.Contains(md, "| TAKE_PROFIT |") {
		t.Errorf("markdown missing trade row:\n%s", md)
	}

	text := RenderText(report)
	if !strings.Contains(text, "status   OK") {
		t.Errorf("text missing status line:\n%s", text)
	}
	if !strings.Contains(text, "trades   2 (win 1, loss 1, open 0)") {
		t.Errorf("text missing trades line:\n%s", text)
	}
}

func TestRenderJSON_NullsUndefinedRatios(t *testing.T) {
	summaryStore, tradeStore := setupTestData(t)
	gen := NewGenerator(summaryStore, tradeStore).WithClock(testClock)

	report, err := gen.GenerateRun(context.Background(), "run-btc-1")
	if err != nil {
		t.Fatalf("GenerateRun failed: %v", err)
	}

	out, err := RenderJSON(report)
	if err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	if !strings.Contains(out, `"sharpe_ratio": null`) {
		t.Errorf("NaN sharpe not rendered as null:\n%s", out)
	}
	if !strings.Contains(out, `"status": "INSUFFICIENT_DATA"`) {
		t.Errorf("missing status field:\n%s", out)
	}
}
