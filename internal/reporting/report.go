package reporting

import "time"

// Report is the cross-run overview built from stored summaries.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunCount    int
	SymbolCount int

	// Run rows (sorted by symbol, run_id)
	Runs []RunRow
}

// RunRow is one run in the overview table.
type RunRow struct {
	RunID          string
	Symbol         string
	Status         string
	Reason         string
	BarCount       int
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	NetProfit      float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64
}

// RunReport is the detailed view of a single run: its summary plus
// every trade the run produced, in exit order.
type RunReport struct {
	GeneratedAt time.Time
	Summary     RunSummarySection
	Trades      []TradeRow
}

// RunSummarySection carries the summary fields shown in run detail output.
type RunSummarySection struct {
	RunID  string
	Symbol string
	Status string
	Reason string

	BarCount   int
	FirstBarMs int64
	LastBarMs  int64

	InitialBalance float64
	FinalEquity    float64
	NetProfit      float64
	TotalReturnPct float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	OpenAtEnd     int

	WinRate      float64
	ProfitFactor float64
	Expectancy   float64
	SharpeRatio  float64
	SortinoRatio float64
	CalmarRatio  float64

	MaxDrawdownAbs    float64
	MaxDrawdownPct    float64
	MaxDrawdownBars   int
	AvgWin            float64
	AvgLoss           float64
	LargestWin        float64
	LargestLoss       float64
	ConsecutiveLosses int
}

// TradeRow is one trade in the run detail table.
type TradeRow struct {
	TradeID      string
	Side         string
	EntryTime    int64
	ExitTime     int64
	EntryPrice   float64
	ExitPrice    float64
	Size         float64
	Fees         float64
	PnL          float64
	ExitReason   string
	BalanceAfter float64
	Reason       string
}
