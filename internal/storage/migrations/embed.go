// Package migrations applies the embedded schema files on startup.
// Postgres holds trades and run summaries; ClickHouse holds bars and
// equity curves.
package migrations

import "embed"

// PostgresFS embeds the trade_records and run_summaries schema.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the bars and equity_points schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
