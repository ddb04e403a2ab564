package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassificationsTotal counts resource classifications by resulting type.
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_classifications_total",
			Help: "Total number of collectibles classified, by resource type",
		},
		[]string{"type"},
	)

	// SceneLoadsTotal counts stored scene reads by outcome: compact, full, absent, invalid or error.
	SceneLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_scene_loads_total",
			Help: "Total number of stored scene config loads, by outcome",
		},
		[]string{"outcome"},
	)

	// ReconcileTotal counts node lookups made while capturing or applying a scene.
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_reconcile_total",
			Help: "Scene node lookups, by operation and result",
		},
		[]string{"operation", "result"},
	)

	// ChainCallLatency observes JSON-RPC round trips in milliseconds.
	ChainCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_chain_call_latency_ms",
			Help:    "Latency of chain JSON-RPC calls in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"method", "status"},
	)

	// TransactionsBuilt counts unsigned transactions handed to clients.
	TransactionsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_transactions_built_total",
			Help: "Total number of unsigned transactions built, by kind",
		},
		[]string{"kind"},
	)

	// SnapshotBytes observes archived snapshot sizes after compression.
	SnapshotBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gallery_snapshot_archive_bytes",
			Help:    "Size of archived scene snapshots in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
	)

	// HoldingsCacheResults counts holdings cache lookups by result.
	HoldingsCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_holdings_cache_total",
			Help: "Holdings cache lookups, by result",
		},
		[]string{"result"},
	)

	// LiveSessions is the number of open live scene sessions.
	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gallery_live_sessions",
			Help: "Number of open live scene websocket sessions",
		},
	)
)
