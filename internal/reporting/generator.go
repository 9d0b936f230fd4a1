package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	summaryStore storage.RunSummaryStore
	tradeStore   storage.TradeRecordStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(summaryStore storage.RunSummaryStore, tradeStore storage.TradeRecordStore) *Generator {
	return &Generator{
		summaryStore: summaryStore,
		tradeStore:   tradeStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the cross-run overview from all stored summaries.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	summaries, err := g.summaryStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load summaries: %w", err)
	}

	rows := make([]RunRow, len(summaries))
	symbolSet := make(map[string]struct{})
	for i, s := range summaries {
		rows[i] = RunRow{
			RunID:          s.RunID,
			Symbol:         s.Symbol,
			Status:         s.Status,
			Reason:         s.Reason,
			BarCount:       s.BarCount,
			TotalTrades:    s.TotalTrades,
			WinRate:        s.WinRate,
			ProfitFactor:   s.ProfitFactor,
			NetProfit:      s.NetProfit,
			TotalReturnPct: s.TotalReturnPct,
			MaxDrawdownPct: s.MaxDrawdownPct,
			SharpeRatio:    s.SharpeRatio,
		}
		symbolSet[s.Symbol] = struct{}{}
	}

	// Sort by (symbol, run_id) for stable output
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].RunID < rows[j].RunID
	})

	return &Report{
		GeneratedAt: g.now(),
		RunCount:    len(rows),
		SymbolCount: len(symbolSet),
		Runs:        rows,
	}, nil
}

// GenerateRun produces the detail report for one run: summary plus all trades.
// Returns storage.ErrNotFound if the run ID is unknown.
func (g *Generator) GenerateRun(ctx context.Context, runID string) (*RunReport, error) {
	summary, err := g.summaryStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load summary %s: %w", runID, err)
	}

	trades, err := g.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades %s: %w", runID, err)
	}

	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			TradeID:      t.TradeID,
			Side:         string(t.Side),
			EntryTime:    t.EntryTime,
			ExitTime:     t.ExitTime,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			Size:         t.Size,
			Fees:         t.Fees,
			PnL:          t.PnL,
			ExitReason:   t.ExitReason,
			BalanceAfter: t.BalanceAfter,
			Reason:       t.Reason,
		}
	}

	return &RunReport{
		GeneratedAt: g.now(),
		Summary:     summarySection(summary),
		Trades:      rows,
	}, nil
}

// NewRunReport builds a run detail report directly from in-memory results,
// bypassing storage. Used when a run has just finished and was not persisted.
func NewRunReport(summary *domain.RunSummary, trades []domain.TradeRecord, generatedAt time.Time) *RunReport {
	rows := make([]TradeRow, len(trades))
	for i, t := range trades {
		rows[i] = TradeRow{
			TradeID:      t.TradeID,
			Side:         string(t.Side),
			EntryTime:    t.EntryTime,
			ExitTime:     t.ExitTime,
			EntryPrice:   t.EntryPrice,
			ExitPrice:    t.ExitPrice,
			Size:         t.Size,
			Fees:         t.Fees,
			PnL:          t.PnL,
			ExitReason:   t.ExitReason,
			BalanceAfter: t.BalanceAfter,
			Reason:       t.Reason,
		}
	}
	return &RunReport{
		GeneratedAt: generatedAt,
		Summary:     summarySection(summary),
		Trades:      rows,
	}
}

func summarySection(s *domain.RunSummary) RunSummarySection {
	return RunSummarySection{
		RunID:             s.RunID,
		Symbol:            s.Symbol,
		Status:            s.Status,
		Reason:            s.Reason,
		BarCount:          s.BarCount,
		FirstBarMs:        s.FirstBarMs,
		LastBarMs:         s.LastBarMs,
		InitialBalance:    s.InitialBalance,
		FinalEquity:       s.FinalEquity,
		NetProfit:         s.NetProfit,
		TotalReturnPct:    s.TotalReturnPct,
		TotalTrades:       s.TotalTrades,
		WinningTrades:     s.WinningTrades,
		LosingTrades:      s.LosingTrades,
		OpenAtEnd:         s.OpenAtEnd,
		WinRate:           s.WinRate,
		ProfitFactor:      s.ProfitFactor,
		Expectancy:        s.Expectancy,
		SharpeRatio:       s.SharpeRatio,
		SortinoRatio:      s.SortinoRatio,
		CalmarRatio:       s.CalmarRatio,
		MaxDrawdownAbs:    s.MaxDrawdownAbs,
		MaxDrawdownPct:    s.MaxDrawdownPct,
		MaxDrawdownBars:   s.MaxDrawdownBars,
		AvgWin:            s.AvgWin,
		AvgLoss:           s.AvgLoss,
		LargestWin:        s.LargestWin,
		LargestLoss:       s.LargestLoss,
		ConsecutiveLosses: s.ConsecutiveLosses,
	}
}
