// Command nodedb is a small operator CLI around pkg/db: it opens a node
// database file directly (no running node process required) to inspect,
// vacuum, or integrity-check it, and can serve its Prometheus metrics for
// ad-hoc monitoring of a database directory.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cuemby/nodedb/pkg/db"
	"github.com/cuemby/nodedb/pkg/log"
	"github.com/cuemby/nodedb/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nodedb",
	Short:   "Inspect and maintain a node database file",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("nodedb version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().String("config", "", "YAML NodeConfig file (data dir, cache size, fossil/TXO thresholds, genesis checksum)")
	rootCmd.PersistentFlags().String("data-dir", "./nodedb-data", "Database directory")
	rootCmd.PersistentFlags().Uint64("cache-size-max", 0, "Content-cache size bound in bytes (0: use the config file or built-in default)")
	rootCmd.PersistentFlags().Uint64("genesis-checksum", 0, "Expected genesis configuration checksum (0: use the config file or skip the check)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(vacuumCmd)
	rootCmd.AddCommand(integrityCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}

// resolveOptions merges the NodeConfig loaded from --config with whichever
// flags the operator explicitly set, flags winning on conflict.
func resolveOptions(cmd *cobra.Command) (db.Options, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadNodeConfig(configPath)
	if err != nil {
		return db.Options{}, err
	}

	opts := db.Options{
		DataDir:      cfg.DataDir,
		CacheSizeMax: cfg.CacheSizeMax,
		CfgChecksum:  cfg.GenesisChecksum,
	}
	if opts.DataDir == "" || cmd.Flags().Changed("data-dir") {
		opts.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("cache-size-max") {
		opts.CacheSizeMax, _ = cmd.Flags().GetUint64("cache-size-max")
	}
	if cmd.Flags().Changed("genesis-checksum") {
		opts.CfgChecksum, _ = cmd.Flags().GetUint64("genesis-checksum")
	}
	return opts, nil
}

func openDB(cmd *cobra.Command, readOnly bool) (*db.DB, error) {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return nil, err
	}
	opts.ReadOnly = readOnly
	d, err := db.Open(opts)
	if err != nil {
		return nil, err
	}
	wireMetrics(d)
	return d, nil
}

// wireMetrics hooks pkg/db's observer callbacks to the Prometheus
// collectors in pkg/metrics. pkg/db never imports pkg/metrics directly
// (pkg/metrics.Collector imports pkg/db to sample it, so the reverse
// import would cycle); the CLI is what wires the two together.
func wireMetrics(d *db.DB) {
	d.TxObserver = func(outcome string, dur time.Duration, rowsChanged int) {
		metrics.TransactionsTotal.WithLabelValues(outcome).Inc()
		if outcome != "error" {
			metrics.TransactionDuration.Observe(dur.Seconds())
			metrics.RowsChangedPerTx.Observe(float64(rowsChanged))
		}
	}
	d.VacuumObserver = func(dur time.Duration) {
		metrics.VacuumDuration.Observe(dur.Seconds())
	}
	d.IntegrityObserver = func(dur time.Duration) {
		metrics.IntegrityCheckDuration.Observe(dur.Seconds())
	}
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Compact the database file in place",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd, false)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer d.Close()

		fmt.Printf("Vacuuming %s...\n", d.Path())
		if err := d.Vacuum(); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
		fmt.Println("✓ Vacuum complete")
		return nil
	},
}

var integrityCmd = &cobra.Command{
	Use:   "integrity-check",
	Short: "Run the engine page check plus block-tree consistency assertions",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd, true)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer d.Close()

		if err := d.CheckIntegrity(); err != nil {
			return fmt.Errorf("integrity check failed: %w", err)
		}
		fmt.Println("✓ Database is consistent")
		return nil
	},
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Dump the singleton parameter rows (cursor, fossil height, cache state, ...)",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd, true)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer d.Close()

		tx, err := d.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for name, id := range knownParams {
			intVal, blobVal, err := tx.ParamGet(id)
			if err != nil {
				return err
			}
			switch {
			case intVal != nil:
				fmt.Printf("%-20s %d\n", name, *intVal)
			case blobVal != nil:
				fmt.Printf("%-20s (%d bytes)\n", name, len(*blobVal))
			default:
				fmt.Printf("%-20s (unset)\n", name)
			}
		}
		return nil
	},
}

var knownParams = map[string]db.ParamID{
	"DbVer":           db.ParamDbVer,
	"CursorRow":       db.ParamCursorRow,
	"CursorHeight":    db.ParamCursorHeight,
	"FossilHeight":    db.ParamFossilHeight,
	"CfgChecksum":     db.ParamCfgChecksum,
	"MyID":            db.ParamMyID,
	"AssetsCount":     db.ParamAssetsCount,
	"AssetsCountUsed": db.ParamAssetsCountUsed,
	"Flags1":          db.ParamFlags1,
	"CacheState":      db.ParamCacheState,
	"BbsTotals":       db.ParamBbsTotals,
}

var serveCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Open the database read-only and serve its Prometheus metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDB(cmd, true)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer d.Close()

		addr, _ := cmd.Flags().GetString("addr")
		collector := metrics.NewCollector(d)
		collector.Start()
		defer collector.Stop()

		http.Handle("/metrics", metrics.Handler())
		fmt.Printf("Serving metrics on http://%s/metrics\n", addr)
		return http.ListenAndServe(addr, nil)
	},
}

func init() {
	serveCmd.Flags().String("addr", "127.0.0.1:9090", "Metrics listen address")
}
