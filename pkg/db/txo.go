package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// txo.go implements the unspent-transaction-output index: a dense,
// monotonically-increasing run of TxoIDs, each carrying a value blob and
// an optional spend height.

func txoKey(id dbtypes.TxoID) []byte { return appendU64(nil, uint64(id)) }

func packTxoValue(value []byte, spendHeight *dbtypes.Height) []byte {
	buf := appendBlob(nil, value)
	if spendHeight != nil {
		buf = append(buf, 1)
		buf = appendU64(buf, uint64(*spendHeight))
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func unpackTxoValue(v []byte) (value []byte, spendHeight *dbtypes.Height, err error) {
	value, n, err := readBlob(v)
	if err != nil {
		return nil, nil, err
	}
	if v[n] != 0 {
		h := dbtypes.Height(getU64(v[n+1:]))
		spendHeight = &h
	}
	return value, spendHeight, nil
}

// TxoAdd inserts a new TXO at id with the given value blob (a commitment
// or full output, depending on how compacted it already is).
func (t *Transaction) TxoAdd(id dbtypes.TxoID, value []byte) error {
	return t.put(bucketTxo, txoKey(id), packTxoValue(value, nil))
}

// TxoSetSpent stamps id as spent at height h, leaving its value intact.
func (t *Transaction) TxoSetSpent(id dbtypes.TxoID, h dbtypes.Height) error {
	v := t.get(bucketTxo, txoKey(id))
	if v == nil {
		return errNotFound("txo")
	}
	value, _, err := unpackTxoValue(v)
	if err != nil {
		return err
	}
	return t.put(bucketTxo, txoKey(id), packTxoValue(value, &h))
}

// TxoSetValue replaces id's value blob in place (compaction to
// commitment-only data), leaving its spend height untouched.
func (t *Transaction) TxoSetValue(id dbtypes.TxoID, value []byte) error {
	v := t.get(bucketTxo, txoKey(id))
	if v == nil {
		return errNotFound("txo")
	}
	_, spendHeight, err := unpackTxoValue(v)
	if err != nil {
		return err
	}
	return t.put(bucketTxo, txoKey(id), packTxoValue(value, spendHeight))
}

// TxoGet returns the value blob and optional spend height for id.
func (t *Transaction) TxoGet(id dbtypes.TxoID) (value []byte, spendHeight *dbtypes.Height, err error) {
	v := t.get(bucketTxo, txoKey(id))
	if v == nil {
		return nil, nil, nil
	}
	return unpackTxoValue(v)
}

// TxoDelFrom deletes every TXO with id >= from.
func (t *Transaction) TxoDelFrom(from dbtypes.TxoID) error {
	c := t.bucket(bucketTxo).Cursor()
	var toDelete [][]byte
	for k, _ := c.Seek(txoKey(from)); k != nil; k, _ = c.Next() {
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := t.delete(bucketTxo, k); err != nil {
			return err
		}
	}
	return nil
}

// TxoEnum iterates TXOs starting at id0 in ascending order, invoking fn for
// each until it returns false or the bucket is exhausted.
func (t *Transaction) TxoEnum(id0 dbtypes.TxoID, fn func(id dbtypes.TxoID, value []byte, spendHeight *dbtypes.Height) bool) error {
	c := t.bucket(bucketTxo).Cursor()
	for k, v := c.Seek(txoKey(id0)); k != nil; k, v = c.Next() {
		value, spendHeight, err := unpackTxoValue(v)
		if err != nil {
			return err
		}
		if !fn(dbtypes.TxoID(getU64(k)), value, spendHeight) {
			return nil
		}
	}
	return nil
}
