package postgres_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
	"smc-lab/internal/storage/postgres"
)

func testSummary(runID, symbol string) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:           runID,
		Symbol:          symbol,
		Status:          domain.RunStatusOK,
		BarCount:        500,
		FirstBarMs:      1700000000000,
		LastBarMs:       1700030000000,
		InitialBalance:  10000,
		FinalEquity:     10250,
		NetProfit:       250,
		TotalReturnPct:  2.5,
		TotalTrades:     8,
		WinningTrades:   5,
		LosingTrades:    3,
		WinRate:         0.625,
		ProfitFactor:    2.1,
		Expectancy:      31.25,
		SharpeRatio:     1.4,
		SortinoRatio:    2.2,
		CalmarRatio:     0.9,
		MaxDrawdownAbs:  120,
		MaxDrawdownPct:  1.17,
		MaxDrawdownBars: 40,
		AvgWin:          80,
		AvgLoss:         -50,
		LargestWin:      150,
		LargestLoss:     -90,
	}
}

func TestRunSummaryStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunSummaryStore(pool)
	ctx := context.Background()

	want := testSummary("r1", "EURUSD")
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestRunSummaryStore_NaNSentinelsSurviveRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunSummaryStore(pool)
	ctx := context.Background()

	sum := testSummary("r1", "EURUSD")
	sum.Status = domain.RunStatusInsufficientData
	sum.TotalTrades = 0
	sum.WinRate = math.NaN()
	sum.ProfitFactor = math.Inf(1)
	sum.SharpeRatio = math.NaN()
	require.NoError(t, store.Insert(ctx, sum))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	require.True(t, math.IsNaN(got.WinRate), "win rate should round-trip as NaN")
	require.True(t, math.IsInf(got.ProfitFactor, 1), "profit factor should round-trip as +Inf")
	require.True(t, math.IsNaN(got.SharpeRatio), "sharpe should round-trip as NaN")
}

func TestRunSummaryStore_DuplicateRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunSummaryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSummary("r1", "EURUSD")))
	require.ErrorIs(t, store.Insert(ctx, testSummary("r1", "GBPUSD")), storage.ErrDuplicateKey)
}

func TestRunSummaryStore_GetBySymbolAndGetAll(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunSummaryStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testSummary("r2", "EURUSD")))
	require.NoError(t, store.Insert(ctx, testSummary("r1", "EURUSD")))
	require.NoError(t, store.Insert(ctx, testSummary("r3", "GBPUSD")))

	bySymbol, err := store.GetBySymbol(ctx, "EURUSD")
	require.NoError(t, err)
	require.Len(t, bySymbol, 2)
	require.Equal(t, "r1", bySymbol[0].RunID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestRunSummaryStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewRunSummaryStore(pool)
	_, err := store.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
