package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"smc-lab/internal/backtest"
	"smc-lab/internal/domain"
	"smc-lab/internal/feed"
	"smc-lab/internal/observability"
	"smc-lab/internal/reporting"
	"smc-lab/internal/storage"
	chstore "smc-lab/internal/storage/clickhouse"
	"smc-lab/internal/storage/memory"
	pgstore "smc-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	csvPath := flag.String("csv", "", "OHLC bar data CSV file (reads bars from ClickHouse when empty)")

	// Strategy parameters
	swingLookback := flag.Int("swing-lookback", 10, "Swing detection window half-width")
	atrPeriod := flag.Int("atr-period", 14, "ATR smoothing period")
	bosMarginATR := flag.Float64("bos-margin-atr", 0.5, "Break of structure margin in ATR multiples")
	bosMarginPct := flag.Float64("bos-margin-pct", 0, "Break of structure margin as fixed percentage (overrides ATR margin when > 0)")
	obMethod := flag.String("ob-method", domain.OBMethodStrict, "Order block zone method: strict, relaxed")
	fvgMethod := flag.String("fvg-method", domain.FVGMethodImbalance, "Fair value gap method: imbalance, wick")
	riskReward := flag.Float64("risk-reward", 2.0, "Target risk-reward ratio")
	coolOffBars := flag.Int("cool-off-bars", 5, "Bars to wait after emitting a signal")
	noOrderBlocks := flag.Bool("no-order-blocks", false, "Disable order block detection")
	noFVG := flag.Bool("no-fvg", false, "Disable fair value gap detection")
	noGrabs := flag.Bool("no-grabs", false, "Disable liquidity grab detection")

	// Simulation parameters
	initialBalance := flag.Float64("initial-balance", 10000, "Starting account balance")
	commissionPct := flag.Float64("commission-pct", 0.0001, "Commission as fraction of notional per fill")
	slippagePct := flag.Float64("slippage-pct", 0.05, "Slippage as fraction of current ATR")
	spreadPct := flag.Float64("spread-pct", 0.0002, "Full spread as fraction of price")
	riskPerTrade := flag.Float64("risk-per-trade", 0.01, "Fraction of balance risked per trade")

	// Viability constraints
	minTrades := flag.Int("min-trades", 0, "Minimum trade count for an OK verdict")
	maxDrawdownPct := flag.Float64("max-drawdown-pct", 0, "Maximum drawdown percentage cap (0 disables)")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")
	outputMarkdown := flag.Bool("markdown", false, "Output as Markdown")
	persistResult := flag.Bool("persist", false, "Persist run results to storage")
	verbose := flag.Bool("verbose", false, "Log per-bar detection events")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	// Validate required flags
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *csvPath == "" && *clickhouseDSN == "" {
		logger.Fatal("either --csv or --clickhouse-dsn is required for bar data")
	}
	if *useMemory && *csvPath == "" {
		logger.Fatal("--use-memory requires --csv for bar data")
	}
	*obMethod = strings.ToLower(*obMethod)
	*fvgMethod = strings.ToLower(*fvgMethod)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var barStore storage.BarStore
	var stores *backtest.Stores

	if *useMemory {
		if *persistResult {
			stores = &backtest.Stores{
				Trades:    memory.NewTradeRecordStore(),
				Equity:    memory.NewEquityPointStore(),
				Summaries: memory.NewRunSummaryStore(),
			}
		}
	} else if *persistResult || *csvPath == "" {
		if *persistResult {
			if *postgresDSN == "" {
				logger.Fatal("--postgres-dsn is required with --persist (trade records and summaries)")
			}
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()

			if *clickhouseDSN == "" {
				logger.Fatal("--clickhouse-dsn is required with --persist (equity curve)")
			}
			conn, err := chstore.NewConn(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()

			stores = &backtest.Stores{
				Trades:    pgstore.NewTradeRecordStore(pool),
				Equity:    chstore.NewEquityPointStore(conn),
				Summaries: pgstore.NewRunSummaryStore(pool),
			}
			barStore = chstore.NewBarStore(conn)
		} else {
			conn, err := chstore.NewConn(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()
			barStore = chstore.NewBarStore(conn)
		}
	}

	// Load bars
	var bars []domain.Bar
	var err error
	if *csvPath != "" {
		bars, err = feed.LoadCSV(*csvPath)
		if err != nil {
			logger.Fatalf("load bars from %s: %v", *csvPath, err)
		}
	} else {
		bars, err = barStore.GetBySymbol(ctx, *symbol)
		if err != nil {
			logger.Fatalf("load bars for %s: %v", *symbol, err)
		}
	}
	logger.Printf("Loaded %d bars for %s", len(bars), *symbol)

	// Build run config
	cfg := buildRunConfig(
		*symbol,
		*swingLookback, *atrPeriod,
		*bosMarginATR, *bosMarginPct,
		*obMethod, *fvgMethod,
		*riskReward, *coolOffBars,
		!*noOrderBlocks, !*noFVG, !*noGrabs,
		*initialBalance, *commissionPct, *slippagePct, *spreadPct, *riskPerTrade,
		*minTrades, *maxDrawdownPct,
	)

	runner := backtest.NewRunner(backtest.Options{
		Stores:  stores,
		Verbose: *verbose,
	})

	// Run backtest
	logger.Printf("Running backtest: symbol=%s bars=%d rr=%.2f", *symbol, len(bars), *riskReward)

	started := time.Now()
	result, err := runner.Run(ctx, bars, cfg)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}
	observability.RecordRun(result.Summary.Status, time.Since(started).Seconds())
	observability.RecordBars(len(bars))
	for _, t := range result.Trades {
		observability.RecordTrade(t.ExitReason)
	}
	if result.Summary.Status == domain.RunStatusOK {
		observability.RecordRunSuccess(float64(time.Now().Unix()))
	}

	// Output result
	report := reporting.NewRunReport(&result.Summary, result.Trades, time.Now().UTC())
	switch {
	case *outputJSON:
		output, err := reporting.RenderJSON(report)
		if err != nil {
			logger.Fatalf("render json: %v", err)
		}
		fmt.Print(output)
	case *outputMarkdown:
		fmt.Print(reporting.RenderRunMarkdown(report))
	default:
		fmt.Print(reporting.RenderText(report))
	}
}

// buildRunConfig assembles a RunConfig from CLI flags over the defaults.
func buildRunConfig(
	symbol string,
	swingLookback, atrPeriod int,
	bosMarginATR, bosMarginPct float64,
	obMethod, fvgMethod string,
	riskReward float64, coolOffBars int,
	useOrderBlocks, useFVG, useGrabs bool,
	initialBalance, commissionPct, slippagePct, spreadPct, riskPerTrade float64,
	minTrades int, maxDrawdownPct float64,
) domain.RunConfig {
	strat := domain.DefaultStrategyConfig()
	strat.SwingLookback = swingLookback
	strat.ATRPeriod = atrPeriod
	strat.BOSMarginATR = bosMarginATR
	strat.BOSMarginPct = bosMarginPct
	strat.OBMethod = obMethod
	strat.FVGMethod = fvgMethod
	strat.RiskReward = riskReward
	strat.CoolOffBars = coolOffBars
	strat.UseOrderBlocks = useOrderBlocks
	strat.UseFVG = useFVG
	strat.UseLiquidityGrabs = useGrabs

	sim := domain.DefaultSimulationConfig()
	sim.InitialBalance = initialBalance
	sim.CommissionPct = commissionPct
	sim.SlippagePct = slippagePct
	sim.SpreadPct = spreadPct
	sim.RiskPerTrade = riskPerTrade

	return domain.RunConfig{
		Symbol:         symbol,
		Strategy:       strat,
		Simulation:     sim,
		MinTrades:      minTrades,
		MaxDrawdownPct: maxDrawdownPct,
	}
}
