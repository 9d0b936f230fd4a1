package domain

// Run status codes.
const (
	RunStatusOK               = "OK"
	RunStatusRejected         = "REJECTED"
	RunStatusInsufficientData = "INSUFFICIENT_DATA"
	RunStatusCancelled        = "CANCELLED"
)

// RunSummary is the single summary-metrics record emitted per run.
// This is the entire surface the optimization collaborator reads.
type RunSummary struct {
	RunID  string
	Symbol string
	Status string
	Reason string // rejection or warning detail, empty for OK runs

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
	OpenAtEnd     int // positions still open at cancellation

	// Ratio metrics are NaN when undefined (zero trades, zero variance).
	WinRate      float64
	ProfitFactor float64
	Expectancy   float64
	SharpeRatio  float64
	SortinoRatio float64
	CalmarRatio  float64

	MaxDrawdownAbs    float64
	MaxDrawdownPct    float64
	MaxDrawdownBars   int // drawdown duration in equity samples
	AvgWin            float64
	AvgLoss           float64
	LargestWin        float64
	LargestLoss       float64
	ConsecutiveLosses int
}
