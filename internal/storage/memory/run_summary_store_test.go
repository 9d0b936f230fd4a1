package memory

import (
	"context"
	"errors"
	"testing"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
)

func testSummary(runID, symbol string) *domain.RunSummary {
	return &domain.RunSummary{
		RunID:       runID,
		Symbol:      symbol,
		Status:      domain.RunStatusOK,
		TotalTrades: 5,
	}
}

func TestRunSummaryStore_InsertAndGetByID(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testSummary("r1", "EURUSD")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := store.GetByID(ctx, "r1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Symbol != "EURUSD" || got.TotalTrades != 5 {
		t.Errorf("GetByID = %+v", got)
	}
}

func TestRunSummaryStore_DuplicateRunID(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	store.Insert(ctx, testSummary("r1", "EURUSD"))
	if err := store.Insert(ctx, testSummary("r1", "GBPUSD")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestRunSummaryStore_NotFound(t *testing.T) {
	store := NewRunSummaryStore()
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunSummaryStore_GetBySymbolAndGetAll(t *testing.T) {
	store := NewRunSummaryStore()
	ctx := context.Background()

	store.Insert(ctx, testSummary("r2", "EURUSD"))
	store.Insert(ctx, testSummary("r1", "EURUSD"))
	store.Insert(ctx, testSummary("r3", "GBPUSD"))

	bySymbol, err := store.GetBySymbol(ctx, "EURUSD")
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(bySymbol) != 2 || bySymbol[0].RunID != "r1" || bySymbol[1].RunID != "r2" {
		t.Errorf("GetBySymbol = %+v, want [r1, r2]", bySymbol)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetAll returned %d summaries, want 3", len(all))
	}
}
