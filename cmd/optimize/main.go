package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"smc-lab/internal/domain"
	"smc-lab/internal/feed"
	"smc-lab/internal/observability"
	"smc-lab/internal/optimize"
)

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	csvPath := flag.String("csv", "", "OHLC bar data CSV file (required)")
	mode := flag.String("mode", "grid", "Search mode: grid, random")
	trials := flag.Int("trials", 100, "Trial count for random search")
	seed := flag.Int64("seed", 1, "Random search seed")
	objective := flag.String("objective", optimize.ObjectiveSharpe, "Objective: sharpe, net_profit, calmar, profit_factor")
	topN := flag.Int("top", 10, "Number of best trials to print")

	// Search space bounds
	swingLow := flag.Int("swing-low", 5, "Swing lookback lower bound")
	swingHigh := flag.Int("swing-high", 15, "Swing lookback upper bound")
	rrLow := flag.Float64("rr-low", 1.5, "Risk-reward lower bound")
	rrHigh := flag.Float64("rr-high", 3.5, "Risk-reward upper bound")
	rrSteps := flag.Int("rr-steps", 5, "Risk-reward grid points")
	bosLow := flag.Float64("bos-low", 0.25, "BOS margin ATR lower bound")
	bosHigh := flag.Float64("bos-high", 1.0, "BOS margin ATR upper bound")
	bosSteps := flag.Int("bos-steps", 4, "BOS margin grid points")
	obMethods := flag.String("ob-methods", "strict,relaxed", "Comma-separated order block methods to try")

	// Viability constraints applied to every trial
	minTrades := flag.Int("min-trades", 10, "Minimum trade count per trial")
	maxDrawdownPct := flag.Float64("max-drawdown-pct", 30, "Maximum drawdown percentage cap (0 disables)")

	verbose := flag.Bool("verbose", false, "Log trial progress")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[optimize] ", log.LstdFlags)

	// Validate required flags
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *csvPath == "" {
		logger.Fatal("--csv is required")
	}
	if *mode != "grid" && *mode != "random" {
		logger.Fatalf("Invalid mode: %s. Must be grid or random", *mode)
	}

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

	// Load bars
	bars, err := feed.LoadCSV(*csvPath)
	if err != nil {
		logger.Fatalf("load bars from %s: %v", *csvPath, err)
	}
	logger.Printf("Loaded %d bars for %s", len(bars), *symbol)

	// Base config: defaults plus viability constraints
	base := domain.RunConfig{
		Symbol:         *symbol,
		Strategy:       domain.DefaultStrategyConfig(),
		Simulation:     domain.DefaultSimulationConfig(),
		MinTrades:      *minTrades,
		MaxDrawdownPct: *maxDrawdownPct,
	}

	space := buildSpace(
		*swingLow, *swingHigh,
		*rrLow, *rrHigh, *rrSteps,
		*bosLow, *bosHigh, *bosSteps,
		splitMethods(*obMethods),
	)

	opt, err := optimize.New(optimize.Options{
		Bars:      bars,
		Base:      base,
		Space:     space,
		Objective: *objective,
		Verbose:   *verbose,
	})
	if err != nil {
		logger.Fatalf("create optimizer: %v", err)
	}

	// Run search
	logger.Printf("Running %s search: symbol=%s objective=%s", *mode, *symbol, *objective)

	var result *optimize.Result
	if *mode == "grid" {
		result, err = opt.GridSearch(ctx)
	} else {
		result, err = opt.RandomSearch(ctx, *trials, *seed)
	}
	if err != nil {
		logger.Fatalf("search failed: %v", err)
	}
	observability.RecordTrial(*objective, result.Best.Score)

	printResult(result, *objective, *topN)
}

// buildSpace declares the searched dimensions from CLI bounds.
func buildSpace(
	swingLow, swingHigh int,
	rrLow, rrHigh float64, rrSteps int,
	bosLow, bosHigh float64, bosSteps int,
	obMethods []string,
) optimize.Space {
	space := optimize.Space{
		Ints: []optimize.IntParam{
			{
				Name: "swing_lookback", Low: swingLow, High: swingHigh,
				Apply: func(cfg *domain.StrategyConfig, v int) { cfg.SwingLookback = v },
			},
		},
		Floats: []optimize.FloatParam{
			{
				Name: "risk_reward", Low: rrLow, High: rrHigh, Steps: rrSteps,
				Apply: func(cfg *domain.StrategyConfig, v float64) { cfg.RiskReward = v },
			},
			{
				Name: "bos_margin_atr", Low: bosLow, High: bosHigh, Steps: bosSteps,
				Apply: func(cfg *domain.StrategyConfig, v float64) { cfg.BOSMarginATR = v },
			},
		},
	}
	if len(obMethods) > 0 {
		space.Choices = []optimize.ChoiceParam{
			{
				Name: "ob_method", Choices: obMethods,
				Apply: func(cfg *domain.StrategyConfig, v string) { cfg.OBMethod = v },
			},
		}
	}
	return space
}

func splitMethods(s string) []string {
	var out []string
	for _, m := range strings.Split(s, ",") {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

// printResult outputs the best trials as a table.
func printResult(result *optimize.Result, objective string, topN int) {
	fmt.Println()
	fmt.Println("=== Optimization Result ===")
	fmt.Printf("Trials:    %d\n", len(result.Trials))
	fmt.Printf("Objective: %s\n", objective)
	fmt.Println()

	top := result.TopN(topN)
	if len(top) == 0 {
		fmt.Println("No trials evaluated.")
		return
	}

	fmt.Printf("%-6s %-12s %-8s %-8s %-10s %s\n", "rank", "score", "status", "trades", "return%", "params")
	for i, trial := range top {
		score := "-inf"
		if !math.IsInf(trial.Score, -1) {
			score = fmt.Sprintf("%.4f", trial.Score)
		}
		fmt.Printf("%-6d %-12s %-8s %-8d %-10.2f %s\n",
			i+1, score, trial.Summary.Status, trial.Summary.TotalTrades,
			trial.Summary.TotalReturnPct, formatParams(trial.Params))
	}
}

// formatParams renders a parameter map in stable key order.
func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, params[k])
	}
	return strings.Join(parts, " ")
}
