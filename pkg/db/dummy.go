package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// dummy.go implements the scheduled-dummy-output index: decoy output keys
// planted at a future height, unique by key-ID. The dummy set is expected
// to stay small (bounded by the node's decoy-output policy), so
// GetLowestDummy scans the whole bucket rather than maintaining a second
// by-height index.

// DummyAdd schedules keyID to be planted at height. Overwrites any
// existing schedule for the same keyID.
func (t *Transaction) DummyAdd(keyID []byte, height dbtypes.Height) error {
	return t.put(bucketDummies, keyID, appendU64(nil, uint64(height)))
}

// DummyDel removes keyID's schedule, if any.
func (t *Transaction) DummyDel(keyID []byte) error {
	return t.delete(bucketDummies, keyID)
}

// GetLowestDummy returns the key-ID with the earliest scheduled height,
// and whether any dummy is scheduled at all.
func (t *Transaction) GetLowestDummy() (keyID []byte, height dbtypes.Height, found bool, err error) {
	c := t.bucket(bucketDummies).Cursor()
	var bestKey []byte
	var bestHeight uint64
	for k, v := c.First(); k != nil; k, v = c.Next() {
		h := getU64(v)
		if bestKey == nil || h < bestHeight {
			bestKey = append([]byte(nil), k...)
			bestHeight = h
		}
	}
	if bestKey == nil {
		return nil, 0, false, nil
	}
	return bestKey, dbtypes.Height(bestHeight), true, nil
}
