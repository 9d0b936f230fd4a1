package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"smc-lab/internal/domain"
	"smc-lab/internal/feed"
	"smc-lab/internal/observability"
	"smc-lab/internal/orders"
)

// meteredPlacer counts proposed orders before delegating.
type meteredPlacer struct {
	inner orders.Placer
}

func (p *meteredPlacer) Place(ctx context.Context, order orders.ProposedOrder) (orders.PlacementResult, error) {
	observability.RecordOrderProposed(string(order.Side))
	return p.inner.Place(ctx, order)
}

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	wsURL := flag.String("ws-url", "", "Bar feed WebSocket endpoint (required)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	// Strategy parameters
	swingLookback := flag.Int("swing-lookback", 10, "Swing detection window half-width")
	atrPeriod := flag.Int("atr-period", 14, "ATR smoothing period")
	riskReward := flag.Float64("risk-reward", 2.0, "Target risk-reward ratio")
	balance := flag.Float64("balance", 10000, "Account balance used for position sizing")

	verbose := flag.Bool("verbose", false, "Log per-bar detection events")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[live] ", log.LstdFlags)

	// Validate required flags
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *wsURL == "" {
		logger.Fatal("--ws-url is required")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Metrics server listening on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("metrics server: %v", err)
			}
		}()
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

	// Build run config
	strat := domain.DefaultStrategyConfig()
	strat.SwingLookback = *swingLookback
	strat.ATRPeriod = *atrPeriod
	strat.RiskReward = *riskReward

	sim := domain.DefaultSimulationConfig()
	sim.InitialBalance = *balance

	cfg := domain.RunConfig{
		Symbol:     *symbol,
		Strategy:   strat,
		Simulation: sim,
	}

	// Dry-run placement only. There is no broker integration yet.
	placer := &meteredPlacer{inner: orders.NewDryRunPlacer()}

	runner, err := orders.NewLiveRunner(cfg, placer, *verbose)
	if err != nil {
		logger.Fatalf("create live runner: %v", err)
	}

	// Connect feed
	feedCfg := feed.DefaultWSConfig()
	feedCfg.OnReconnect = func() {
		observability.DefaultMetrics.FeedReconnects.Inc()
	}
	wsFeed, err := feed.NewWSFeed(ctx, *wsURL, &feedCfg)
	if err != nil {
		logger.Fatalf("connect feed %s: %v", *wsURL, err)
	}
	defer wsFeed.Close()

	bars, err := wsFeed.Subscribe(*symbol)
	if err != nil {
		logger.Fatalf("subscribe %s: %v", *symbol, err)
	}

	// Count bars on the way through
	metered := make(chan domain.Bar)
	go func() {
		defer close(metered)
		for b := range bars {
			observability.RecordLiveBar()
			metered <- b
		}
	}()

	logger.Printf("Streaming %s from %s (dry-run placement)", *symbol, *wsURL)

	if err := runner.Run(ctx, metered); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("live run failed: %v", err)
	}
	logger.Println("Stopped")
}
