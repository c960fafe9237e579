/*
Package metrics defines and registers the Prometheus metrics for a node
database instance: block-tree size and shape, transaction throughput, cache
occupancy, asset-registry slot usage, BBS storage totals, and maintenance
operation durations. Metrics are exposed via an HTTP endpoint for scraping.

# Architecture

	┌──────────────────── METRICS SYSTEM ───────────────────────┐
	│                                                             │
	│  ┌─────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                 │          │
	│  │  - Default registry, MustRegister at init()  │          │
	│  └───────────────────┬───────────────────────────┘          │
	│                      │                                       │
	│  ┌───────────────────▼───────────────────────────┐          │
	│  │            Metric Categories                   │          │
	│  │  Block tree: states/tips/orphans, reorg depth  │          │
	│  │  Transactions: count by outcome, duration,     │          │
	│  │    rows changed                                 │          │
	│  │  Cache: size, hits, misses, evictions          │          │
	│  │  Assets: used/free slot counts                 │          │
	│  │  BBS: message and byte totals                  │          │
	│  │  Storage: vacuum/integrity-check duration,     │          │
	│  │    file size                                    │          │
	│  └───────────────────┬───────────────────────────┘          │
	│                      │                                       │
	│  ┌───────────────────▼───────────────────────────┐          │
	│  │          HTTP Metrics Endpoint                  │          │
	│  │  - metrics.Handler() -> promhttp.Handler()      │          │
	│  └─────────────────────────────────────────────┘           │
	└─────────────────────────────────────────────────────────────┘

# Collector

Collector (collector.go) periodically opens a read-only transaction against
a *db.DB and samples the tip count, cursor height, cache size and asset
slot gauges from the parameter store and the tips index, so a process that only reads a database file (cmd/nodedb serve-metrics)
can still expose live metrics without the writer that produced them.

# Usage

	import "github.com/cuemby/nodedb/pkg/metrics"

	timer := metrics.NewTimer()
	// ... run a transaction ...
	timer.ObserveDuration(metrics.TransactionDuration)

	collector := metrics.NewCollector(database)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())
	http.ListenAndServe(":9090", nil)

# Integration Points

  - cmd/nodedb: wires pkg/db's TxObserver/VacuumObserver/IntegrityObserver
    callbacks to these histograms/counters (pkg/db itself never imports
    this package, since Collector below imports pkg/db and the reverse
    import would cycle), and serve-metrics starts a Collector against a
    read-only database handle and serves Handler() over HTTP
*/
package metrics
