package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// bbs.go implements the broadcast-bus message store: messages unique by
// key-hash, indexed by (channel, time) for cursor-style fetch and by
// monotonic row-id for replication streaming, with running {count, size}
// totals maintained incrementally so recovery never requires a full scan.

func bbsKeyKey(key dbtypes.Hash) []byte { return append([]byte(nil), key[:]...) }

func bbsChannelKey(channel uint32, t int64, id uint64) []byte {
	buf := appendU32(nil, channel)
	buf = appendU64(buf, uint64(t))
	return appendU64(buf, id)
}

func bbsIDKey(id uint64) []byte { return appendU64(nil, id) }

func packBbsMessage(m dbtypes.BbsMessage) []byte {
	buf := appendU64(nil, m.ID)
	buf = appendU32(buf, m.Channel)
	buf = appendU64(buf, uint64(m.Time))
	buf = appendU32(buf, m.Nonce)
	buf = appendBlob(buf, m.Message)
	return buf
}

func unpackBbsMessage(key dbtypes.Hash, v []byte) (dbtypes.BbsMessage, error) {
	id := getU64(v[0:8])
	channel := getU32(v[8:12])
	tm := int64(getU64(v[12:20]))
	nonce := getU32(v[20:24])
	msg, _, err := readBlob(v[24:])
	if err != nil {
		return dbtypes.BbsMessage{}, err
	}
	return dbtypes.BbsMessage{ID: id, Key: key, Channel: channel, Time: tm, Message: msg, Nonce: nonce}, nil
}

func (t *Transaction) getBbsTotals() (dbtypes.BbsTotals, error) {
	_, blob, err := t.ParamGet(ParamBbsTotals)
	if err != nil {
		return dbtypes.BbsTotals{}, err
	}
	if blob == nil || len(*blob) < 12 {
		return dbtypes.BbsTotals{}, nil
	}
	v := *blob
	return dbtypes.BbsTotals{Count: getU32(v[0:4]), Size: getU64(v[4:12])}, nil
}

func (t *Transaction) setBbsTotals(tot dbtypes.BbsTotals) error {
	buf := appendU32(nil, tot.Count)
	buf = appendU64(buf, tot.Size)
	return t.ParamBlobSet(ParamBbsTotals, buf)
}

// BbsIns inserts a message, assigning it the next monotonic row-id, and
// bumps the running totals. Returns errNotFound-style failure semantics
// are not applicable here: a duplicate key is rejected outright since
// key is unique.
func (t *Transaction) BbsIns(key dbtypes.Hash, channel uint32, tm int64, message []byte, nonce uint32) (uint64, error) {
	if t.get(bucketBbsByKey, bbsKeyKey(key)) != nil {
		return 0, errInconsistent("bbs: key already present")
	}
	id, err := t.nextSequence(bucketBbsByID)
	if err != nil {
		return 0, err
	}
	m := dbtypes.BbsMessage{ID: id, Key: key, Channel: channel, Time: tm, Message: message, Nonce: nonce}
	packed := packBbsMessage(m)
	if err := t.put(bucketBbsByKey, bbsKeyKey(key), packed); err != nil {
		return 0, err
	}
	if err := t.put(bucketBbsByID, bbsIDKey(id), packed); err != nil {
		return 0, err
	}
	if err := t.put(bucketBbsByChannel, bbsChannelKey(channel, tm, id), bbsKeyKey(key)); err != nil {
		return 0, err
	}
	tot, err := t.getBbsTotals()
	if err != nil {
		return 0, err
	}
	tot.Count++
	tot.Size += uint64(len(message))
	if err := t.setBbsTotals(tot); err != nil {
		return 0, err
	}
	return id, nil
}

// BbsFind looks up a message by its key hash.
func (t *Transaction) BbsFind(key dbtypes.Hash) (dbtypes.BbsMessage, bool, error) {
	v := t.get(bucketBbsByKey, bbsKeyKey(key))
	if v == nil {
		return dbtypes.BbsMessage{}, false, nil
	}
	m, err := unpackBbsMessage(key, v)
	return m, err == nil, err
}

// BbsDel removes a message by key, decrementing the running totals.
func (t *Transaction) BbsDel(key dbtypes.Hash) error {
	v := t.get(bucketBbsByKey, bbsKeyKey(key))
	if v == nil {
		return errNotFound("bbs message")
	}
	m, err := unpackBbsMessage(key, v)
	if err != nil {
		return err
	}
	if err := t.delete(bucketBbsByKey, bbsKeyKey(key)); err != nil {
		return err
	}
	if err := t.delete(bucketBbsByID, bbsIDKey(m.ID)); err != nil {
		return err
	}
	if err := t.delete(bucketBbsByChannel, bbsChannelKey(m.Channel, m.Time, m.ID)); err != nil {
		return err
	}
	tot, err := t.getBbsTotals()
	if err != nil {
		return err
	}
	if tot.Count > 0 {
		tot.Count--
	}
	if tot.Size >= uint64(len(m.Message)) {
		tot.Size -= uint64(len(m.Message))
	}
	return t.setBbsTotals(tot)
}

// BbsMaxTime returns the timestamp of the most recently inserted message
// across all channels, or found=false if the store is empty.
func (t *Transaction) BbsMaxTime() (tm int64, found bool, err error) {
	c := t.bucket(bucketBbsByID).Cursor()
	k, v := c.Last()
	if k == nil {
		return 0, false, nil
	}
	channel := getU32(v[8:12])
	_ = channel
	return int64(getU64(v[12:20])), true, nil
}

// EnumBbsByChannel returns every message in channel with time in
// [from, to], ascending.
func (t *Transaction) EnumBbsByChannel(channel uint32, from, to int64) ([]dbtypes.BbsMessage, error) {
	var out []dbtypes.BbsMessage
	c := t.bucket(bucketBbsByChannel).Cursor()
	start := bbsChannelKey(channel, from, 0)
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		if getU32(k[0:4]) != channel {
			break
		}
		tm := int64(getU64(k[4:12]))
		if tm > to {
			break
		}
		var key dbtypes.Hash
		copy(key[:], v)
		msgVal := t.get(bucketBbsByKey, v)
		if msgVal == nil {
			continue
		}
		m, err := unpackBbsMessage(key, msgVal)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// BbsHistogram returns the per-channel message count, the adaptation of
// EnumBbs(IBbsHistogram).
func (t *Transaction) BbsHistogram() (map[uint32]uint64, error) {
	hist := make(map[uint32]uint64)
	c := t.bucket(bucketBbsByChannel).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		hist[getU32(k[0:4])]++
	}
	return hist, nil
}
