package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
)

func testBars() []domain.Bar {
	return []domain.Bar{
		{TimestampMs: 1000, Open: 100, High: 102, Low: 99, Close: 101},
		{TimestampMs: 2000, Open: 101, High: 103, Low: 100, Close: 102},
		{TimestampMs: 3000, Open: 102, High: 104, Low: 101, Close: 103},
	}
}

func TestBarStore_InsertBulkAndGetBySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, "BTCUSDT", testBars())
	require.NoError(t, err)

	got, err := store.GetBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, 100.0, got[0].Open)
	assert.Equal(t, 103.0, got[2].Close)

	other, err := store.GetBySymbol(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestBarStore_InsertBulkRejectsDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", testBars()))

	// Overlapping timestamp fails the whole batch.
	err := store.InsertBulk(ctx, "BTCUSDT", []domain.Bar{
		{TimestampMs: 3000, Open: 103, High: 105, Low: 102, Close: 104},
		{TimestampMs: 4000, Open: 104, High: 106, Low: 103, Close: 105},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetBySymbol(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestBarStore_InsertBulkRejectsIntraBatchDuplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, "BTCUSDT", []domain.Bar{
		{TimestampMs: 1000, Open: 100, High: 102, Low: 99, Close: 101},
		{TimestampMs: 1000, Open: 101, High: 103, Low: 100, Close: 102},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestBarStore_SameTimestampDifferentSymbols(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	bar := []domain.Bar{{TimestampMs: 1000, Open: 1, High: 2, Low: 0.5, Close: 1.5}}
	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", bar))
	require.NoError(t, store.InsertBulk(ctx, "ETHUSDT", bar))
}

func TestBarStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, "BTCUSDT", testBars()))

	// Bounds are inclusive.
	got, err := store.GetByTimeRange(ctx, "BTCUSDT", 2000, 3000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2000), got[0].TimestampMs)
	assert.Equal(t, int64(3000), got[1].TimestampMs)

	empty, err := store.GetByTimeRange(ctx, "BTCUSDT", 5000, 6000)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBarStore_InsertBulkEmptySymbol(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBarStore(conn)
	err := store.InsertBulk(context.Background(), "", testBars())
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
