package metrics

import (
	"context"
	"errors"
	"fmt"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
)

// ErrNoData is returned when a run has neither trades nor equity points.
var ErrNoData = errors.New("no data available for aggregation")

// Aggregator recomputes run summaries from persisted trades and equity
// curves. It is the offline counterpart of the backtest runner: given a
// run that already landed in storage, it rebuilds the summary from raw
// records instead of trusting the one written at run time.
type Aggregator struct {
	tradeStore   storage.TradeRecordStore
	equityStore  storage.EquityPointStore
	summaryStore storage.RunSummaryStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tradeStore storage.TradeRecordStore, equityStore storage.EquityPointStore, summaryStore storage.RunSummaryStore) *Aggregator {
	return &Aggregator{
		tradeStore:   tradeStore,
		equityStore:  equityStore,
		summaryStore: summaryStore,
	}
}

// ComputeSummary loads the trades and equity curve of a run and computes
// a fresh summary. Identification fields are filled from the stored
// records; status fields are left at their zero values for the caller.
// Returns ErrNoData if the run left no records at all.
func (a *Aggregator) ComputeSummary(ctx context.Context, runID string, initialBalance float64) (*domain.RunSummary, error) {
	tradePtrs, err := a.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades for run %s: %w", runID, err)
	}
	pointPtrs, err := a.equityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load equity for run %s: %w", runID, err)
	}
	if len(tradePtrs) == 0 && len(pointPtrs) == 0 {
		return nil, ErrNoData
	}

	trades := make([]domain.TradeRecord, len(tradePtrs))
	for i, t := range tradePtrs {
		trades[i] = *t
	}
	equity := make([]domain.EquityPoint, len(pointPtrs))
	for i, p := range pointPtrs {
		equity[i] = *p
	}

	sum := Compute(initialBalance, trades, equity)
	sum.RunID = runID
	if len(trades) > 0 {
		sum.Symbol = trades[0].Symbol
	}
	sum.BarCount = len(equity)
	if len(equity) > 0 {
		sum.FirstBarMs = equity[0].TimestampMs
		sum.LastBarMs = equity[len(equity)-1].TimestampMs
	}

	return &sum, nil
}

// ComputeAndStore computes and persists a summary. The summary store is
// append-only, so recomputing an already summarized run returns
// storage.ErrDuplicateKey.
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID string, initialBalance float64) (*domain.RunSummary, error) {
	sum, err := a.ComputeSummary(ctx, runID, initialBalance)
	if err != nil {
		return nil, err
	}
	sum.Status = domain.RunStatusOK

	if err := a.summaryStore.Insert(ctx, sum); err != nil {
		return nil, err
	}

	return sum, nil
}
