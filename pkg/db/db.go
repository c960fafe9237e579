// See doc.go for the package overview.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/nodedb/pkg/dbtypes"
	"github.com/cuemby/nodedb/pkg/log"
)

// ParamID names a singleton row of the parameter store. The numbering
// matches the original NodeDB::ParamID enum.
type ParamID uint32

const (
	ParamDbVer ParamID = iota
	ParamCursorRow
	ParamCursorHeight
	ParamFossilHeight
	ParamCfgChecksum
	ParamMyID
	ParamEventsOwnerID
	ParamHeightTxoLo
	ParamHeightTxoHi
	ParamAssetsCount
	ParamAssetsCountUsed
	ParamForbiddenState
	ParamFlags1
	ParamCacheState
	// ParamDeprecated3 formerly held shielded-output bookkeeping. New
	// code must never write this id; it is recognized only so a
	// migration can carry a pre-existing value through unmodified.
	ParamDeprecated3
	ParamBbsTotals
)

// Flags1PendingRebuildNonStd marks that a two-stage migration left work
// for a higher layer to complete.
const Flags1PendingRebuildNonStd uint64 = 1

// schemaVersion is the current value stored under ParamDbVer. Bump it and
// add a case to migrate() whenever the bucket layout changes in a way that
// requires rewriting existing data.
const schemaVersion = 1

// Options configures Open.
type Options struct {
	// DataDir is the directory the database file lives in. Created if
	// missing.
	DataDir string
	// CfgChecksum pins the genesis configuration this database was
	// created for. Opening a database stamped with a different checksum
	// fails with a dedicated checksum fault (FaultCodeChecksum).
	CfgChecksum uint64
	// CacheSizeMax is the initial bound for the content-addressed cache.
	// Ignored if the database already has a CacheState row; use
	// CacheSetMaxSize to change it later.
	CacheSizeMax uint64
	// ReadOnly opens the underlying file read-only; Begin then returns
	// read-only transactions, whose writes fail.
	ReadOnly bool
}

// NotifyModifiedFunc is invoked after a Transaction commits successfully
// with at least one row changed.
type NotifyModifiedFunc func()

// TxObserverFunc is invoked after every transaction finishes, reporting its
// outcome ("commit"/"rollback"/"error"), wall-clock duration, and row count.
// Hooking observability in through a callback (rather than importing
// pkg/metrics directly) keeps this package free of any dependency on how
// its callers choose to report instrumentation; cmd/nodedb is the one that
// wires this to Prometheus histograms/counters.
type TxObserverFunc func(outcome string, dur time.Duration, rowsChanged int)

// VacuumObserverFunc and IntegrityObserverFunc report the wall-clock
// duration of a completed Vacuum/CheckIntegrity call, for the same reason.
type VacuumObserverFunc func(dur time.Duration)
type IntegrityObserverFunc func(dur time.Duration)

// DB is the node database handle. Exactly one Transaction may be open
// against it at a time; bbolt itself enforces the single-writer rule by
// blocking a second Begin(true) until the first completes.
type DB struct {
	bolt     *bolt.DB
	path     string
	readOnly bool

	logger zerolog.Logger

	// NotifyModified, if set, is invoked after every transaction that
	// commits with at least one changed row.
	NotifyModified NotifyModifiedFunc

	// TxObserver, VacuumObserver, IntegrityObserver, if set, report
	// instrumentation for their respective operations.
	TxObserver        TxObserverFunc
	VacuumObserver    VacuumObserverFunc
	IntegrityObserver IntegrityObserverFunc
}

// Open opens (creating if necessary) the node database at
// opts.DataDir/node.db, ensures every bucket exists, and checks the
// genesis checksum. A ReadOnly open skips the bucket creation, the schema
// version check and the checksum check.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("db: DataDir is required")
	}
	if err := os.MkdirAll(opts.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("db: create data dir: %w", err)
	}
	path := filepath.Join(opts.DataDir, "node.db")

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, newFault("open", FaultCodeIO, err)
	}

	d := &DB{
		bolt:     bdb,
		path:     path,
		readOnly: opts.ReadOnly,
		logger:   log.WithComponent("db"),
	}

	if opts.ReadOnly {
		return d, nil
	}

	if err := d.bolt.Update(func(btx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := btx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		bdb.Close()
		return nil, newFault("schema", FaultCodeSchema, err)
	}

	tx, err := d.Begin()
	if err != nil {
		bdb.Close()
		return nil, err
	}
	if err := tx.openInit(opts); err != nil {
		tx.Rollback()
		bdb.Close()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		bdb.Close()
		return nil, err
	}

	return d, nil
}

// openInit runs schema version checking/migration and the checksum guard.
// It runs inside the first transaction of Open so that a freshly created
// file and an existing one go through exactly the same path.
func (t *Transaction) openInit(opts Options) error {
	ver, _, err := t.ParamGet(ParamDbVer)
	if err != nil {
		return err
	}
	if ver == nil {
		// Fresh database: stamp the current version, the checksum, and
		// the initial cache bound. No legacy migration steps apply.
		if err := t.ParamIntSet(ParamDbVer, schemaVersion); err != nil {
			return err
		}
		if opts.CfgChecksum != 0 {
			if err := t.ParamIntSet(ParamCfgChecksum, opts.CfgChecksum); err != nil {
				return err
			}
		}
		max := opts.CacheSizeMax
		if max == 0 {
			max = defaultCacheSizeMax
		}
		return t.setCacheState(dbtypes.CacheState{HitCounter: 0, SizeMax: max, SizeCurrent: 0})
	}

	if *ver > schemaVersion {
		return newFault("open", FaultCodeUpgrade,
			fmt.Errorf("database schema version %d is newer than this build (%d)", *ver, schemaVersion))
	}
	if *ver < schemaVersion {
		if err := t.migrate(*ver); err != nil {
			return newFault("migrate", FaultCodeUpgrade, err)
		}
		if err := t.ParamIntSet(ParamDbVer, schemaVersion); err != nil {
			return err
		}
	}

	if opts.CfgChecksum != 0 {
		cur, _, err := t.ParamGet(ParamCfgChecksum)
		if err != nil {
			return err
		}
		if cur == nil {
			if err := t.ParamIntSet(ParamCfgChecksum, opts.CfgChecksum); err != nil {
				return err
			}
		} else if *cur != opts.CfgChecksum {
			return newFault("open", FaultCodeChecksum,
				fmt.Errorf("genesis checksum mismatch: database has %d, caller expects %d", *cur, opts.CfgChecksum))
		}
	}
	return nil
}

// Close finalizes the underlying bbolt file. Safe to call once.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Path returns the on-disk file path this DB was opened from.
func (d *DB) Path() string { return d.path }

// Vacuum compacts free space. bbolt has no in-place vacuum, so this copies
// live pages into a fresh file and atomically replaces the original
// (mirrors sqlite3 VACUUM's external effect: a smaller file, same
// logical content).
func (d *DB) Vacuum() error {
	start := time.Now()
	defer func() {
		if d.VacuumObserver != nil {
			d.VacuumObserver(time.Since(start))
		}
	}()

	// The uuid suffix keeps two overlapping vacuum attempts (or a stale
	// file left behind by one that crashed mid-copy) from colliding on the
	// same temp path.
	tmpPath := d.path + ".vacuum." + uuid.New().String() + ".tmp"
	tmp, err := bolt.Open(tmpPath, 0o600, nil)
	if err != nil {
		return newFault("vacuum", FaultCodeIO, err)
	}

	err = d.bolt.View(func(src *bolt.Tx) error {
		return tmp.Update(func(dst *bolt.Tx) error {
			return src.ForEach(func(name []byte, srcBucket *bolt.Bucket) error {
				dstBucket, err := dst.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return srcBucket.ForEach(func(k, v []byte) error {
					return dstBucket.Put(k, v)
				})
			})
		})
	})
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmpPath)
		return newFault("vacuum", FaultCodeIO, err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return newFault("vacuum", FaultCodeIO, closeErr)
	}

	if err := d.bolt.Close(); err != nil {
		return newFault("vacuum", FaultCodeIO, err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		return newFault("vacuum", FaultCodeIO, err)
	}
	reopened, err := bolt.Open(d.path, 0o600, &bolt.Options{ReadOnly: d.readOnly})
	if err != nil {
		return newFault("vacuum", FaultCodeIO, err)
	}
	d.bolt = reopened
	return nil
}

// CheckIntegrity runs the underlying engine's own consistency check
// (bbolt's page-level Check) plus this package's schema-level assertions
// (tip-set and reachability coherence, see assertValid in state.go).
func (d *DB) CheckIntegrity() error {
	start := time.Now()
	defer func() {
		if d.IntegrityObserver != nil {
			d.IntegrityObserver(time.Since(start))
		}
	}()

	if err := d.bolt.View(func(btx *bolt.Tx) error {
		for cerr := range btx.Check() {
			return cerr
		}
		return nil
	}); err != nil {
		return newFault("check-integrity", FaultCodeIO, err)
	}
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return tx.assertValid()
}
