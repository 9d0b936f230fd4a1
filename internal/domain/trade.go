package domain

// Side is the order side of a signal or position.
type Side string

// Side constants.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Signal is a directional entry proposal for one bar. Signals are
// ephemeral: produced by a strategy and consumed by the simulator
// within the same step, never retained.
type Signal struct {
	Index      int // bar index the signal was computed on
	Side       Side
	EntryPrice float64 // reference price (close of the signal bar)
	StopLoss   float64
	TakeProfit float64
	Size       float64 // lots
	Reason     string  // confluence description, e.g. "OB+ChoCH"
}

// Position is an open simulated position. Owned exclusively by the
// simulator; converted into a TradeRecord on close. StopLoss and
// TakeProfit are fixed at open time.
type Position struct {
	Side         Side
	EntryPrice   float64 // actual fill, costs applied
	StopLoss     float64
	TakeProfit   float64
	Size         float64
	OpenIndex    int   // bar index of the fill
	OpenTime     int64 // timestamp of the fill bar
	EntryFees    float64
	SignalReason string
}

// Exit reason codes.
const (
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonEndOfData  = "END_OF_DATA"
)

// TradeRecord is one closed trade. Immutable once written; appended to
// an external store by the backtest runner.
type TradeRecord struct {
	TradeID string // deterministic hash
	RunID   string // backtest run this trade belongs to
	Symbol  string

	Side       Side
	EntryTime  int64
	ExitTime   int64
	EntryIndex int
	ExitIndex  int
	EntryPrice float64 // fill price, slippage and spread applied
	ExitPrice  float64
	Size       float64

	Fees       float64 // entry + exit commission
	PnL        float64 // realized, fees deducted
	ExitReason string

	BalanceAfter float64
	Reason       string // signal confluence that opened the trade
}

// EquityPoint is one sample of the running account equity.
// Monotonic in time, append-only.
type EquityPoint struct {
	RunID       string
	TimestampMs int64
	Equity      float64
	Balance     float64
}
