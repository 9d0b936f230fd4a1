package storage

import (
	"context"

	"smc-lab/internal/domain"
)

// BarStore provides access to bars storage.
type BarStore interface {
	// InsertBulk adds bars for a symbol. Fails entire batch on duplicate (symbol, timestamp_ms).
	InsertBulk(ctx context.Context, symbol string, bars []domain.Bar) error

	// GetBySymbol retrieves all bars for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]domain.Bar, error)

	// GetByTimeRange retrieves bars for a symbol within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]domain.Bar, error)
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by exit_time ASC, trade_id ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// EquityPointStore provides access to equity_points storage.
type EquityPointStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, timestamp_ms).
	InsertBulk(ctx context.Context, points []*domain.EquityPoint) error

	// GetByRunID retrieves the equity curve of a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.EquityPoint, error)
}

// RunSummaryStore provides access to run_summaries storage.
type RunSummaryStore interface {
	// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, s *domain.RunSummary) error

	// GetByID retrieves a summary by run ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSummary, error)

	// GetBySymbol retrieves all summaries for a symbol.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.RunSummary, error)

	// GetAll retrieves all summaries.
	GetAll(ctx context.Context) ([]*domain.RunSummary, error)
}
