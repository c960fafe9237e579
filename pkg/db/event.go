package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// event.go implements the append-only event log: entries are
// (height, index, key, body) tuples, duplicate keys allowed. FindEvents
// returns matches most-recently-added first, which the by-key index
// achieves by storing (height, index) bit-inverted so that bbolt's natural
// ascending byte order walks them newest-first.

func invertU64(v uint64) uint64 { return ^v }

func eventByHeightKey(height dbtypes.Height, idx uint32) []byte {
	return heightPosKey(uint64(height), idx)
}

func eventByKeyKey(key []byte, height dbtypes.Height, idx uint32) []byte {
	buf := append([]byte(nil), key...)
	buf = append(buf, 0) // separator: no event key may itself end in a raw 0x00 byte sequence matching this boundary, since prefix matching below reads up to this separator
	buf = appendU64(buf, invertU64(uint64(height)))
	return appendU32(buf, ^idx)
}

// AddEvent appends an event. body must begin with the encoded index per
// the on-disk convention; this package does not itself interpret body.
func (t *Transaction) AddEvent(height dbtypes.Height, idx uint32, key, body []byte) error {
	heightVal := appendBlob(nil, key)
	heightVal = append(heightVal, body...)
	if err := t.put(bucketEventsByHeight, eventByHeightKey(height, idx), heightVal); err != nil {
		return err
	}
	return t.put(bucketEventsByKey, eventByKeyKey(key, height, idx), body)
}

// FindEvents returns every event body stored under key, most-recently
// added first.
func (t *Transaction) FindEvents(key []byte) ([][]byte, error) {
	var out [][]byte
	prefix := append(append([]byte(nil), key...), 0)
	c := t.bucket(bucketEventsByKey).Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		out = append(out, append([]byte(nil), v...))
	}
	return out, nil
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// DeleteEventsFrom drops every event at height >= h, from both indexes.
func (t *Transaction) DeleteEventsFrom(h dbtypes.Height) error {
	c := t.bucket(bucketEventsByHeight).Cursor()
	prefix := appendU64(nil, uint64(h))
	type row struct {
		k, key, body []byte
		height       dbtypes.Height
		idx          uint32
	}
	var toDelete []row
	for k, v := c.Seek(prefix); k != nil; k, v = c.Next() {
		key, n, err := readBlob(v)
		if err != nil {
			return err
		}
		body := v[n:]
		toDelete = append(toDelete, row{
			k:      append([]byte(nil), k...),
			key:    append([]byte(nil), key...),
			body:   append([]byte(nil), body...),
			height: dbtypes.Height(getU64(k)),
			idx:    getU32(k[8:]),
		})
	}
	for _, r := range toDelete {
		if err := t.delete(bucketEventsByHeight, r.k); err != nil {
			return err
		}
		if err := t.delete(bucketEventsByKey, eventByKeyKey(r.key, r.height, r.idx)); err != nil {
			return err
		}
	}
	return nil
}
