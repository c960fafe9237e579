package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Block-tree metrics
	StatesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_states_total",
			Help: "Total number of state rows in the block tree",
		},
	)

	TipsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_tips_total",
			Help: "Total number of branch tips currently tracked",
		},
	)

	CursorHeight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_cursor_height",
			Help: "Height of the active chain cursor",
		},
	)

	ReorgDepth = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodedb_reorg_depth",
			Help:    "Depth (in blocks) of completed reorgs",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	OrphansTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_orphans_total",
			Help: "Total number of states awaiting a missing parent",
		},
	)

	// Transaction metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodedb_transactions_total",
			Help: "Total number of transactions by outcome",
		},
		[]string{"outcome"},
	)

	TransactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodedb_transaction_duration_seconds",
			Help:    "Transaction duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RowsChangedPerTx = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodedb_rows_changed_per_transaction",
			Help:    "Number of rows touched by a committed transaction",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	// Cache metrics
	CacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_cache_size_bytes",
			Help: "Current size of the content-addressed cache in bytes",
		},
	)

	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodedb_cache_hits_total",
			Help: "Total number of cache lookups that found an entry",
		},
	)

	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodedb_cache_misses_total",
			Help: "Total number of cache lookups that found nothing",
		},
	)

	CacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodedb_cache_evictions_total",
			Help: "Total number of cache entries evicted",
		},
	)

	// Asset registry metrics
	AssetsUsedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_assets_used_total",
			Help: "Total number of allocated asset slots in use",
		},
	)

	AssetsFreeTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_assets_free_total",
			Help: "Total number of free (reusable) asset slots",
		},
	)

	// BBS metrics
	BbsMessagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_bbs_messages_total",
			Help: "Total number of BBS messages stored",
		},
	)

	BbsBytesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_bbs_bytes_total",
			Help: "Total number of bytes stored across BBS messages",
		},
	)

	// Storage metrics
	VacuumDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodedb_vacuum_duration_seconds",
			Help:    "Time taken by a Vacuum compaction",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	IntegrityCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nodedb_integrity_check_duration_seconds",
			Help:    "Time taken by a CheckIntegrity pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	DbFileBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nodedb_file_size_bytes",
			Help: "Size of the on-disk database file",
		},
	)
)

func init() {
	prometheus.MustRegister(StatesTotal)
	prometheus.MustRegister(TipsTotal)
	prometheus.MustRegister(CursorHeight)
	prometheus.MustRegister(ReorgDepth)
	prometheus.MustRegister(OrphansTotal)

	prometheus.MustRegister(TransactionsTotal)
	prometheus.MustRegister(TransactionDuration)
	prometheus.MustRegister(RowsChangedPerTx)

	prometheus.MustRegister(CacheSizeBytes)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(CacheEvictionsTotal)

	prometheus.MustRegister(AssetsUsedTotal)
	prometheus.MustRegister(AssetsFreeTotal)

	prometheus.MustRegister(BbsMessagesTotal)
	prometheus.MustRegister(BbsBytesTotal)

	prometheus.MustRegister(VacuumDuration)
	prometheus.MustRegister(IntegrityCheckDuration)
	prometheus.MustRegister(DbFileBytes)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
