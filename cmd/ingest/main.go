package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smc-lab/internal/feed"
	"smc-lab/internal/observability"
	"smc-lab/internal/storage"
	chstore "smc-lab/internal/storage/clickhouse"
	"smc-lab/internal/storage/memory"
	"smc-lab/internal/storage/migrations"
)

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Instrument symbol (required)")
	csvPath := flag.String("csv", "", "OHLC bar data CSV file (required)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	migrate := flag.Bool("migrate", true, "Apply schema migrations before inserting")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	// Validate required flags
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *csvPath == "" {
		logger.Fatal("--csv is required")
	}
	if !*useMemory && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required when not using --use-memory")
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

	// Create store
	var barStore storage.BarStore
	if *useMemory {
		barStore = memory.NewBarStore()
	} else if *migrate {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("migrate clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
	} else {
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
	}

	// Load and validate bars
	bars, err := feed.LoadCSV(*csvPath)
	if err != nil {
		logger.Fatalf("load bars from %s: %v", *csvPath, err)
	}
	logger.Printf("Loaded %d bars for %s from %s", len(bars), *symbol, *csvPath)

	// Insert
	started := time.Now()
	err = barStore.InsertBulk(ctx, *symbol, bars)
	observability.RecordDBQuery("clickhouse", "insert_bars", time.Since(started).Seconds(), err)
	if err != nil {
		logger.Fatalf("insert bars: %v", err)
	}

	logger.Printf("Inserted %d bars for %s in %v", len(bars), *symbol, time.Since(started).Round(time.Millisecond))
}
