package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"smc-lab/internal/domain"
	"smc-lab/internal/observability"
	"smc-lab/internal/storage"
	chstore "smc-lab/internal/storage/clickhouse"
	"smc-lab/internal/storage/memory"
	"smc-lab/internal/storage/migrations"
	pgstore "smc-lab/internal/storage/postgres"
)

// Server exposes stored backtest results over HTTP.
type Server struct {
	summaryStore storage.RunSummaryStore
	tradeStore   storage.TradeRecordStore
	equityStore  storage.EquityPointStore

	started time.Time
	logger  *log.Logger
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	migrate := flag.Bool("migrate", false, "Apply schema migrations on startup")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	server := &Server{started: time.Now(), logger: logger}
	if *useMemory {
		server.summaryStore = memory.NewRunSummaryStore()
		server.tradeStore = memory.NewTradeRecordStore()
		server.equityStore = memory.NewEquityPointStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if *migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				logger.Fatalf("migrate postgres: %v", err)
			}
		}

		var conn *chstore.Conn
		if *migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, *clickhouseDSN)
		}
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()

		server.summaryStore = pgstore.NewRunSummaryStore(pool)
		server.tradeStore = pgstore.NewTradeRecordStore(pool)
		server.equityStore = chstore.NewEquityPointStore(conn)
	}

	// Uptime counter
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.DefaultMetrics.UptimeSeconds.Inc()
			}
		}
	}()

	// HTTP server with graceful shutdown
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/trades", s.handleGetTrades)
	mux.HandleFunc("GET /api/runs/{id}/equity", s.handleGetEquity)
	return mux
}

// StatusResponse reports server liveness.
type StatusResponse struct {
	Status  string    `json:"status"`
	Started time.Time `json:"started"`
	Uptime  string    `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "running",
		Started: s.started,
		Uptime:  time.Since(s.started).String(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var (
		summaries []*domain.RunSummary
		err       error
	)
	started := time.Now()
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		summaries, err = s.summaryStore.GetBySymbol(r.Context(), symbol)
	} else {
		summaries, err = s.summaryStore.GetAll(r.Context())
	}
	observability.RecordDBQuery("postgres", "list_runs", time.Since(started).Seconds(), err)
	if err != nil {
		s.serverError(w, "list runs", err)
		return
	}

	resp := make([]runResponse, len(summaries))
	for i, summary := range summaries {
		resp[i] = toRunResponse(summary)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.summaryStore.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.serverError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(summary))
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.tradeStore.GetByRunID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serverError(w, "get trades", err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleGetEquity(w http.ResponseWriter, r *http.Request) {
	points, err := s.equityStore.GetByRunID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serverError(w, "get equity", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s: %v", op, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// runResponse is the JSON shape of a run summary. Ratio metrics are
// pointers so NaN and Inf serialize as null instead of failing encode.
type runResponse struct {
	RunID  string `json:"run_id"`
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`

	BarCount   int   `json:"bar_count"`
	FirstBarMs int64 `json:"first_bar_ms"`
	LastBarMs  int64 `json:"last_bar_ms"`

	InitialBalance float64  `json:"initial_balance"`
	FinalEquity    float64  `json:"final_equity"`
	NetProfit      float64  `json:"net_profit"`
	TotalReturnPct *float64 `json:"total_return_pct"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`
	OpenAtEnd     int `json:"open_at_end"`

	WinRate      *float64 `json:"win_rate"`
	ProfitFactor *float64 `json:"profit_factor"`
	Expectancy   *float64 `json:"expectancy"`
	SharpeRatio  *float64 `json:"sharpe_ratio"`
	SortinoRatio *float64 `json:"sortino_ratio"`
	CalmarRatio  *float64 `json:"calmar_ratio"`

	MaxDrawdownAbs    float64  `json:"max_drawdown_abs"`
	MaxDrawdownPct    float64  `json:"max_drawdown_pct"`
	MaxDrawdownBars   int      `json:"max_drawdown_bars"`
	AvgWin            *float64 `json:"avg_win"`
	AvgLoss           *float64 `json:"avg_loss"`
	LargestWin        float64  `json:"largest_win"`
	LargestLoss       float64  `json:"largest_loss"`
	ConsecutiveLosses int      `json:"consecutive_losses"`
}

func toRunResponse(s *domain.RunSummary) runResponse {
	return runResponse{
		RunID:             s.RunID,
		Symbol:            s.Symbol,
		Status:            s.Status,
		Reason:            s.Reason,
		BarCount:          s.BarCount,
		FirstBarMs:        s.FirstBarMs,
		LastBarMs:         s.LastBarMs,
		InitialBalance:    s.InitialBalance,
		FinalEquity:       s.FinalEquity,
		NetProfit:         s.NetProfit,
		TotalReturnPct:    finitePtr(s.TotalReturnPct),
		TotalTrades:       s.TotalTrades,
		WinningTrades:     s.WinningTrades,
		LosingTrades:      s.LosingTrades,
		OpenAtEnd:         s.OpenAtEnd,
		WinRate:           finitePtr(s.WinRate),
		ProfitFactor:      finitePtr(s.ProfitFactor),
		Expectancy:        finitePtr(s.Expectancy),
		SharpeRatio:       finitePtr(s.SharpeRatio),
		SortinoRatio:      finitePtr(s.SortinoRatio),
		CalmarRatio:       finitePtr(s.CalmarRatio),
		MaxDrawdownAbs:    s.MaxDrawdownAbs,
		MaxDrawdownPct:    s.MaxDrawdownPct,
		MaxDrawdownBars:   s.MaxDrawdownBars,
		AvgWin:            finitePtr(s.AvgWin),
		AvgLoss:           finitePtr(s.AvgLoss),
		LargestWin:        s.LargestWin,
		LargestLoss:       s.LargestLoss,
		ConsecutiveLosses: s.ConsecutiveLosses,
	}
}

// finitePtr drops NaN and Inf values, which encoding/json cannot emit.
func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// loadEnvFile reads a local .env file into the environment without
// overriding variables that are already set.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
