/*
Package db implements the persistent node database of a proof-of-work
blockchain node: the block tree (including competing branches), block
bodies, kernels, the UTXO set, BBS messages, the asset registry, contract
key/value data and logs, peer reputation, and a bounded content-addressed
cache.

# Architecture

The database is a single bbolt file, opened once per process. bbolt is this
package's embedded engine: a pure-Go, copy-on-write B+tree with ACID
transactions and no external server (see DESIGN.md for why bbolt plays the
role of the embedded transactional engine here).

	┌─────────────────────────── pkg/db ────────────────────────────┐
	│                                                                 │
	│  ┌───────────────────────────────────────────────────────┐   │
	│  │                    DB (*bolt.DB)                        │   │
	│  │   - File: <dataDir>/node.db                              │   │
	│  │   - Format: copy-on-write B+tree, mmap for reads         │   │
	│  └───────────────────────┬───────────────────────────────┘   │
	│                          │                                     │
	│  ┌───────────────────────▼───────────────────────────────┐   │
	│  │                  Transaction (*bolt.Tx)                  │   │
	│  │   - Exactly one in flight, owned by the caller           │   │
	│  │   - Rolls back on Rollback, commits only on Commit       │   │
	│  │   - bucket() caches *bolt.Bucket handles already         │   │
	│  │     fetched this transaction (the statement-cache        │   │
	│  │     analogue — see tx.go / DESIGN.md)                    │   │
	│  └───────────────────────┬───────────────────────────────┘   │
	│                          │                                     │
	│  ┌───────────────────────▼───────────────────────────────┐   │
	│  │                      Buckets                             │   │
	│  │  params · states (+height/hash, orphan, children,       │   │
	│  │  tip, reachable-tip indexes) · body blobs · txo ·        │   │
	│  │  kernels · events · dummies · peers · bbs · unique ·     │   │
	│  │  cache · assets(+events) · contract data/logs/krninfo ·  │   │
	│  │  streams                                                  │   │
	│  └───────────────────────────────────────────────────────┘   │
	└─────────────────────────────────────────────────────────────┘

# Concurrency

Single-threaded, cooperative, single-writer. A *DB is not
shared across goroutines; callers open one Transaction at a time, run
operations against it, then Commit or Rollback.

# Observability

pkg/db never imports pkg/metrics (pkg/metrics.Collector imports pkg/db to
sample it, and the reverse import would cycle). Instead *DB exposes plain
callback fields — TxObserver, VacuumObserver, IntegrityObserver — that a
caller wires to whatever instrumentation it wants; cmd/nodedb wires them
to Prometheus.

See also: pkg/storage, which established the bbolt-bucket, upsert-by-Put
style this package builds on for binary-keyed, binary-valued records
instead of JSON values.
*/
package db
