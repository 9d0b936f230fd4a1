// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BarsProcessed   prometheus.Counter
	SignalsEmitted  *prometheus.CounterVec
	SignalsDropped  prometheus.Counter
	TradesSimulated *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram

	// Optimization metrics
	TrialsEvaluated prometheus.Counter
	BestScore       *prometheus.GaugeVec

	// Live metrics
	LiveBarsReceived prometheus.Counter
	OrdersProposed   *prometheus.CounterVec
	FeedReconnects   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	UptimeSeconds     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "smc_lab"
	}

	return &Metrics{
		// Backtest metrics
		BarsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bars_processed_total",
			Help:      "Total number of bars fed through the engine",
		}),
		SignalsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "signals_emitted_total",
			Help:      "Total number of signals emitted by side",
		}, []string{"side"}),
		SignalsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "signals_dropped_total",
			Help:      "Total number of signals dropped by the position cap",
		}),
		TradesSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of trades simulated by exit reason",
		}, []string{"exit_reason"}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		// Optimization metrics
		TrialsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "trials_evaluated_total",
			Help:      "Total number of parameter trials evaluated",
		}),
		BestScore: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimize",
			Name:      "best_score",
			Help:      "Best objective score seen so far",
		}, []string{"objective"}),

		// Live metrics
		LiveBarsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "bars_received_total",
			Help:      "Total number of bars received from the feed",
		}),
		OrdersProposed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "orders_proposed_total",
			Help:      "Total number of orders proposed by side",
		}, []string{"side"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "feed_reconnects_total",
			Help:      "Total number of feed reconnections",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a completed backtest run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordBars adds to the processed bar counter.
func RecordBars(n int) {
	DefaultMetrics.BarsProcessed.Add(float64(n))
}

// RecordSignal increments the emitted signal counter.
func RecordSignal(side string) {
	DefaultMetrics.SignalsEmitted.WithLabelValues(side).Inc()
}

// RecordTrade increments the simulated trade counter.
func RecordTrade(exitReason string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(exitReason).Inc()
}

// RecordTrial records one optimization trial and the running best.
func RecordTrial(objective string, bestScore float64) {
	DefaultMetrics.TrialsEvaluated.Inc()
	DefaultMetrics.BestScore.WithLabelValues(objective).Set(bestScore)
}

// RecordOrderProposed increments the proposed order counter.
func RecordOrderProposed(side string) {
	DefaultMetrics.OrdersProposed.WithLabelValues(side).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordLiveBar increments the live feed bar counter.
func RecordLiveBar() {
	DefaultMetrics.LiveBarsReceived.Inc()
}

// RecordRunSuccess stamps the last successful run gauge.
func RecordRunSuccess(unixSeconds float64) {
	DefaultMetrics.LastSuccessfulRun.Set(unixSeconds)
}
