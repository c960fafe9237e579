package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// contract.go implements contract key/value storage, the append-only
// contract log, and the kernel-info index: all keyed for lexicographic
// ordering so prev/next navigation and range enumeration are plain bbolt
// cursor walks.

// ContractDataSet upserts a contract key/value pair.
func (t *Transaction) ContractDataSet(key, value []byte) error {
	return t.put(bucketContractData, key, value)
}

// ContractDataGet returns the value for key, or found=false.
func (t *Transaction) ContractDataGet(key []byte) ([]byte, bool) {
	v := t.get(bucketContractData, key)
	if v == nil {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// ContractDataDelete removes key.
func (t *Transaction) ContractDataDelete(key []byte) error {
	return t.delete(bucketContractData, key)
}

// ContractDataFindNext returns the smallest key strictly greater than k.
func (t *Transaction) ContractDataFindNext(k []byte) (key, value []byte, found bool) {
	c := t.bucket(bucketContractData).Cursor()
	ck, cv := c.Seek(k)
	if ck != nil && string(ck) == string(k) {
		ck, cv = c.Next()
	}
	if ck == nil {
		return nil, nil, false
	}
	return append([]byte(nil), ck...), append([]byte(nil), cv...), true
}

// ContractDataFindPrev returns the largest key strictly less than k.
func (t *Transaction) ContractDataFindPrev(k []byte) (key, value []byte, found bool) {
	c := t.bucket(bucketContractData).Cursor()
	ck, _ := c.Seek(k)
	if ck == nil {
		ck, _ = c.Last()
	} else {
		ck, _ = c.Prev()
	}
	if ck == nil {
		return nil, nil, false
	}
	return append([]byte(nil), ck...), append([]byte(nil), t.get(bucketContractData, ck)...), true
}

// ContractDataEnum yields every (key, value) with kMin <= key <= kMax.
func (t *Transaction) ContractDataEnum(kMin, kMax []byte) ([][2][]byte, error) {
	var out [][2][]byte
	c := t.bucket(bucketContractData).Cursor()
	for k, v := c.Seek(kMin); k != nil && lessOrEqual(k, kMax); k, v = c.Next() {
		out = append(out, [2][]byte{append([]byte(nil), k...), append([]byte(nil), v...)})
	}
	return out, nil
}

func lessOrEqual(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) <= len(b)
}

// ContractLogAppend appends a log entry at (height, index).
func (t *Transaction) ContractLogAppend(pos dbtypes.HeightPos, key, val []byte) error {
	hp := heightPosKey(uint64(pos.Height), pos.Idx)
	buf := appendBlob(nil, key)
	buf = append(buf, val...)
	return t.put(bucketContractLogs, hp, buf)
}

// ContractLogEnumRange yields log entries with height in [from, to].
func (t *Transaction) ContractLogEnumRange(from, to dbtypes.Height) ([]dbtypes.ContractLogEntry, error) {
	var out []dbtypes.ContractLogEntry
	c := t.bucket(bucketContractLogs).Cursor()
	start := heightPosKey(uint64(from), 0)
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		h := dbtypes.Height(getU64(k))
		if h > to {
			break
		}
		key, n, err := readBlob(v)
		if err != nil {
			return nil, err
		}
		out = append(out, dbtypes.ContractLogEntry{
			Pos: dbtypes.HeightPos{Height: h, Idx: getU32(k[8:])},
			Key: append([]byte(nil), key...),
			Val: append([]byte(nil), v[n:]...),
		})
	}
	return out, nil
}

// ContractLogDeleteRange drops every entry with height in [from, to].
func (t *Transaction) ContractLogDeleteRange(from, to dbtypes.Height) error {
	c := t.bucket(bucketContractLogs).Cursor()
	start := heightPosKey(uint64(from), 0)
	var toDelete [][]byte
	for k, _ := c.Seek(start); k != nil; k, _ = c.Next() {
		if dbtypes.Height(getU64(k)) > to {
			break
		}
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	for _, k := range toDelete {
		if err := t.delete(bucketContractLogs, k); err != nil {
			return err
		}
	}
	return nil
}

func krnInfoByCidKey(cid dbtypes.Hash, height dbtypes.Height, idx uint32) []byte {
	buf := append([]byte(nil), cid[:]...)
	return append(buf, heightPosKey(uint64(height), idx)...)
}

// KrnInfoAppend appends a kernel-info entry at (height, index), additionally
// indexed by cid.
func (t *Transaction) KrnInfoAppend(pos dbtypes.HeightPos, cid dbtypes.Hash, val []byte) error {
	hp := heightPosKey(uint64(pos.Height), pos.Idx)
	buf := append([]byte(nil), cid[:]...)
	buf = append(buf, val...)
	if err := t.put(bucketKrnInfo, hp, buf); err != nil {
		return err
	}
	return t.put(bucketKrnInfoByCid, krnInfoByCidKey(cid, pos.Height, pos.Idx), val)
}

// KrnInfoEnumByCid returns cid's entries with height <= maxHeight.
func (t *Transaction) KrnInfoEnumByCid(cid dbtypes.Hash, maxHeight dbtypes.Height) ([]dbtypes.KrnInfoEntry, error) {
	var out []dbtypes.KrnInfoEntry
	prefix := append([]byte(nil), cid[:]...)
	c := t.bucket(bucketKrnInfoByCid).Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		height := dbtypes.Height(getU64(k[32:40]))
		if height > maxHeight {
			break
		}
		out = append(out, dbtypes.KrnInfoEntry{
			Pos: dbtypes.HeightPos{Height: height, Idx: getU32(k[40:44])},
			Cid: cid,
			Val: append([]byte(nil), v...),
		})
	}
	return out, nil
}
