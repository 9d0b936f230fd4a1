package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"smc-lab/internal/domain"
	"smc-lab/internal/storage"
)

// RunSummaryStore implements storage.RunSummaryStore using PostgreSQL.
// Ratio columns are DOUBLE PRECISION so NaN and Infinity sentinels
// survive the round trip.
type RunSummaryStore struct {
	pool *Pool
}

// NewRunSummaryStore creates a new RunSummaryStore.
func NewRunSummaryStore(pool *Pool) *RunSummaryStore {
	return &RunSummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunSummaryStore = (*RunSummaryStore)(nil)

const runSummaryColumns = `
	run_id, symbol, status, reason,
	bar_count, first_bar_ms, last_bar_ms,
	initial_balance, final_equity, net_profit, total_return_pct,
	total_trades, winning_trades, losing_trades, open_at_end,
	win_rate, profit_factor, expectancy,
	sharpe_ratio, sortino_ratio, calmar_ratio,
	max_drawdown_abs, max_drawdown_pct, max_drawdown_bars,
	avg_win, avg_loss, largest_win, largest_loss, consecutive_losses
`

// Insert adds a new summary. Returns ErrDuplicateKey if run_id exists.
func (s *RunSummaryStore) Insert(ctx context.Context, sum *domain.RunSummary) error {
	query := `
		INSERT INTO run_summaries (` + runSummaryColumns + `) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			$22, $23, $24,
			$25, $26, $27, $28, $29
		)
	`

	_, err := s.pool.Exec(ctx, query,
		sum.RunID, sum.Symbol, sum.Status, sum.Reason,
		sum.BarCount, sum.FirstBarMs, sum.LastBarMs,
		sum.InitialBalance, sum.FinalEquity, sum.NetProfit, sum.TotalReturnPct,
		sum.TotalTrades, sum.WinningTrades, sum.LosingTrades, sum.OpenAtEnd,
		sum.WinRate, sum.ProfitFactor, sum.Expectancy,
		sum.SharpeRatio, sum.SortinoRatio, sum.CalmarRatio,
		sum.MaxDrawdownAbs, sum.MaxDrawdownPct, sum.MaxDrawdownBars,
		sum.AvgWin, sum.AvgLoss, sum.LargestWin, sum.LargestLoss, sum.ConsecutiveLosses,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// GetByID retrieves a summary by run ID. Returns ErrNotFound if not exists.
func (s *RunSummaryStore) GetByID(ctx context.Context, runID string) (*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		WHERE run_id = $1
	`

	row := s.pool.QueryRow(ctx, query, runID)
	sum, err := scanRunSummary(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run summary by id: %w", err)
	}
	return sum, nil
}

// GetBySymbol retrieves all summaries for a symbol, ordered by run_id ASC.
func (s *RunSummaryStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		WHERE symbol = $1
		ORDER BY run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("get run summaries by symbol: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

// GetAll retrieves all summaries, ordered by run_id ASC.
func (s *RunSummaryStore) GetAll(ctx context.Context) ([]*domain.RunSummary, error) {
	query := `
		SELECT ` + runSummaryColumns + `
		FROM run_summaries
		ORDER BY run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all run summaries: %w", err)
	}
	defer rows.Close()

	return scanRunSummaries(rows)
}

// scanRunSummary scans a single row into a RunSummary.
func scanRunSummary(row pgx.Row) (*domain.RunSummary, error) {
	var sum domain.RunSummary

	err := row.Scan(
		&sum.RunID, &sum.Symbol, &sum.Status, &sum.Reason,
		&sum.BarCount, &sum.FirstBarMs, &sum.LastBarMs,
		&sum.InitialBalance, &sum.FinalEquity, &sum.NetProfit, &sum.TotalReturnPct,
		&sum.TotalTrades, &sum.WinningTrades, &sum.LosingTrades, &sum.OpenAtEnd,
		&sum.WinRate, &sum.ProfitFactor, &sum.Expectancy,
		&sum.SharpeRatio, &sum.SortinoRatio, &sum.CalmarRatio,
		&sum.MaxDrawdownAbs, &sum.MaxDrawdownPct, &sum.MaxDrawdownBars,
		&sum.AvgWin, &sum.AvgLoss, &sum.LargestWin, &sum.LargestLoss, &sum.ConsecutiveLosses,
	)
	if err != nil {
		return nil, err
	}

	return &sum, nil
}

// scanRunSummaries scans multiple rows into a slice of RunSummary.
func scanRunSummaries(rows pgx.Rows) ([]*domain.RunSummary, error) {
	var sums []*domain.RunSummary

	for rows.Next() {
		sum, err := scanRunSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run summary row: %w", err)
		}
		sums = append(sums, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run summary rows: %w", err)
	}

	return sums, nil
}
