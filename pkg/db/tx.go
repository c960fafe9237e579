package db

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

// Transaction is a scoped acquisition of the single outer write
// transaction. There is at most one in flight per DB; nothing done through
// it persists unless Commit is called, and Rollback releases it.
type Transaction struct {
	db    *DB
	bolt  *bolt.Tx
	done  bool
	start time.Time

	// rowsChanged is a best-effort counter of Put/Delete calls issued
	// through this transaction, the adaptation of NodeDB::get_RowsChanged.
	rowsChanged int

	// buckets caches already-fetched *bolt.Bucket handles for this
	// transaction only — the statement-cache analogue (see doc.go's
	// architecture diagram). Never reused across transactions.
	buckets map[string]*bolt.Bucket
}

// Begin starts a new write transaction, or a read-only one when the DB was
// opened with Options.ReadOnly. The caller must Commit or
// Rollback it; deferring Rollback immediately and calling Commit on the
// success path is the idiomatic pattern (Rollback after Commit is a
// harmless no-op).
func (d *DB) Begin() (*Transaction, error) {
	btx, err := d.bolt.Begin(!d.readOnly)
	if err != nil {
		return nil, newFault("begin", FaultCodeTransaction, err)
	}
	return &Transaction{
		db:      d,
		bolt:    btx,
		start:   time.Now(),
		buckets: make(map[string]*bolt.Bucket, len(allBuckets)),
	}, nil
}

// IsInProgress reports whether the transaction has neither committed nor
// rolled back yet.
func (t *Transaction) IsInProgress() bool { return !t.done }

// Commit commits the transaction. If at least one row changed, and the
// owning DB has a NotifyModified hook installed, it fires after a
// successful commit.
func (t *Transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.bolt.Commit(); err != nil {
		if t.db.TxObserver != nil {
			t.db.TxObserver("error", time.Since(t.start), t.rowsChanged)
		}
		return newFault("commit", FaultCodeTransaction, err)
	}
	if t.db.TxObserver != nil {
		t.db.TxObserver("commit", time.Since(t.start), t.rowsChanged)
	}
	if t.rowsChanged > 0 && t.db.NotifyModified != nil {
		t.db.NotifyModified()
	}
	return nil
}

// Rollback aborts the transaction, discarding every pending write. Calling
// it after Commit (or a prior Rollback) is a no-op, so `defer
// tx.Rollback()` is always safe.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.db.TxObserver != nil {
		t.db.TxObserver("rollback", time.Since(t.start), t.rowsChanged)
	}
	return t.bolt.Rollback()
}

// RowsChanged returns the number of Put/Delete operations issued through
// this transaction so far.
func (t *Transaction) RowsChanged() int { return t.rowsChanged }

// bucket returns the named top-level bucket, fetching and caching the
// handle on first use within this transaction.
func (t *Transaction) bucket(name []byte) *bolt.Bucket {
	if b, ok := t.buckets[string(name)]; ok {
		return b
	}
	b := t.bolt.Bucket(name)
	t.buckets[string(name)] = b
	return b
}

func (t *Transaction) put(name, k, v []byte) error {
	if err := t.bucket(name).Put(k, v); err != nil {
		return newFault("put", FaultCodeIO, err)
	}
	t.rowsChanged++
	return nil
}

// putModifySafe is the Go analogue of StepModifySafe: it distinguishes a
// bbolt key-too-large/value-too-large constraint violation (returned as
// false, no error raised) from any other fault (returned as an error).
func (t *Transaction) putModifySafe(name, k, v []byte) (bool, error) {
	err := t.bucket(name).Put(k, v)
	if err == nil {
		t.rowsChanged++
		return true, nil
	}
	if err == bolt.ErrKeyRequired || err == bolt.ErrKeyTooLarge || err == bolt.ErrValueTooLarge {
		return false, nil
	}
	return false, newFault("put", FaultCodeIO, err)
}

func (t *Transaction) delete(name, k []byte) error {
	if err := t.bucket(name).Delete(k); err != nil {
		return newFault("delete", FaultCodeIO, err)
	}
	t.rowsChanged++
	return nil
}

func (t *Transaction) get(name, k []byte) []byte {
	return t.bucket(name).Get(k)
}

func (t *Transaction) nextSequence(name []byte) (uint64, error) {
	seq, err := t.bucket(name).NextSequence()
	if err != nil {
		return 0, newFault("next-sequence", FaultCodeIO, err)
	}
	return seq, nil
}
