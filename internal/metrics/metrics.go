// Package metrics exposes Prometheus collectors for the reconciliation engine:
//   - journal_rebuilds_total{mode,status}        – rebuild attempts (full|incremental)
//   - journal_rebuild_duration_seconds{mode}     – wall time per rebuild
//   - journal_trades_built_total{status}         – trades produced (OPEN|CLOSED)
//   - journal_orders_skipped_total{reason}       – malformed orders skipped
//   - journal_trade_deletions_total{outcome}     – deletion attempts by outcome
//
// Collectors are registered in init() and served at /metrics in the Prometheus
// text exposition format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Rebuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_rebuilds_total",
			Help: "Trade rebuilds by mode and status",
		},
		[]string{"mode", "status"},
	)

	RebuildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "journal_rebuild_duration_seconds",
			Help:    "Rebuild wall time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	TradesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_trades_built_total",
			Help: "Trades produced by rebuilds, by status",
		},
		[]string{"status"},
	)

	OrdersSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_orders_skipped_total",
			Help: "Orders skipped during matching, by reason",
		},
		[]string{"reason"},
	)

	TradeDeletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_trade_deletions_total",
			Help: "Trade deletion attempts by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		Rebuilds,
		RebuildDuration,
		TradesBuilt,
		OrdersSkipped,
		TradeDeletions,
	)
}
