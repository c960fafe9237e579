package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// asset.go implements the fungible-asset registry: densely packed IDs
// allocated from 1, a lowest-free-slot allocator, and an append-only
// per-asset event log. AssetsCount tracks the highest ever-used ID (the
// top slot is always occupied); AssetsCountUsed tracks how many slots are
// currently in use, which can be strictly less than AssetsCount once
// AssetDelete frees interior slots.

func assetKey(id dbtypes.AssetID) []byte { return appendU32(nil, id) }

func packAsset(a dbtypes.Asset) []byte {
	buf := append([]byte(nil), a.Owner[:]...)
	buf = appendU64(buf, uint64(a.LockHeight))
	if a.Used {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendBlob(buf, a.Value)
	buf = appendBlob(buf, a.Metadata)
	return buf
}

func unpackAsset(id dbtypes.AssetID, v []byte) (dbtypes.Asset, error) {
	var owner dbtypes.PeerID
	copy(owner[:], v[0:32])
	lockHeight := getU64(v[32:40])
	used := v[40] != 0
	value, n, err := readBlob(v[41:])
	if err != nil {
		return dbtypes.Asset{}, err
	}
	metadata, _, err := readBlob(v[41+n:])
	if err != nil {
		return dbtypes.Asset{}, err
	}
	return dbtypes.Asset{ID: id, Owner: owner, Value: value, LockHeight: dbtypes.Height(lockHeight), Metadata: metadata, Used: used}, nil
}

// AssetAdd allocates id (or, if id == 0, the lowest free slot) and stores
// the asset row as used. Returns the allocated id.
func (t *Transaction) AssetAdd(id dbtypes.AssetID, owner dbtypes.PeerID, value, metadata []byte, lockHeight dbtypes.Height) (dbtypes.AssetID, error) {
	count, err := t.ParamIntGetDef(ParamAssetsCount, 0)
	if err != nil {
		return 0, err
	}
	countUsed, err := t.ParamIntGetDef(ParamAssetsCountUsed, 0)
	if err != nil {
		return 0, err
	}

	if id == 0 {
		id, err = t.findLowestFreeSlot(dbtypes.AssetID(count))
		if err != nil {
			return 0, err
		}
	} else {
		existing := t.get(bucketAssets, assetKey(id))
		if existing != nil {
			a, err := unpackAsset(id, existing)
			if err != nil {
				return 0, err
			}
			if a.Used {
				return 0, errInconsistent("asset %d is already in use", id)
			}
		}
	}

	a := dbtypes.Asset{ID: id, Owner: owner, Value: value, LockHeight: lockHeight, Metadata: metadata, Used: true}
	if err := t.put(bucketAssets, assetKey(id), packAsset(a)); err != nil {
		return 0, err
	}
	if uint64(id) > count {
		count = uint64(id)
		if err := t.ParamIntSet(ParamAssetsCount, count); err != nil {
			return 0, err
		}
	}
	if err := t.ParamIntSet(ParamAssetsCountUsed, countUsed+1); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *Transaction) findLowestFreeSlot(count dbtypes.AssetID) (dbtypes.AssetID, error) {
	for id := dbtypes.AssetID(1); id <= count; id++ {
		v := t.get(bucketAssets, assetKey(id))
		if v == nil {
			return id, nil
		}
		a, err := unpackAsset(id, v)
		if err != nil {
			return 0, err
		}
		if !a.Used {
			return id, nil
		}
	}
	return count + 1, nil
}

// AssetGet returns the asset row for id, or found=false if never allocated.
func (t *Transaction) AssetGet(id dbtypes.AssetID) (dbtypes.Asset, bool, error) {
	v := t.get(bucketAssets, assetKey(id))
	if v == nil {
		return dbtypes.Asset{}, false, nil
	}
	a, err := unpackAsset(id, v)
	return a, err == nil, err
}

// AssetDelete marks id's slot unused, zeroing its metadata while the row
// itself remains (so a future AssetAdd can reclaim the slot). If id was
// the current AssetsCount, the count cascades down to the new highest
// used id.
func (t *Transaction) AssetDelete(id dbtypes.AssetID) error {
	v := t.get(bucketAssets, assetKey(id))
	if v == nil {
		return errNotFound("asset")
	}
	a, err := unpackAsset(id, v)
	if err != nil {
		return err
	}
	if !a.Used {
		return nil
	}
	a.Used = false
	a.Metadata = nil
	if err := t.put(bucketAssets, assetKey(id), packAsset(a)); err != nil {
		return err
	}
	countUsed, err := t.ParamIntGetDef(ParamAssetsCountUsed, 0)
	if err != nil {
		return err
	}
	if countUsed > 0 {
		if err := t.ParamIntSet(ParamAssetsCountUsed, countUsed-1); err != nil {
			return err
		}
	}

	count, err := t.ParamIntGetDef(ParamAssetsCount, 0)
	if err != nil {
		return err
	}
	if uint64(id) == count {
		newCount := count
		for newCount > 0 {
			v := t.get(bucketAssets, assetKey(dbtypes.AssetID(newCount)))
			if v != nil {
				a, err := unpackAsset(dbtypes.AssetID(newCount), v)
				if err != nil {
					return err
				}
				if a.Used {
					break
				}
			}
			newCount--
		}
		if newCount != count {
			if err := t.ParamIntSet(ParamAssetsCount, newCount); err != nil {
				return err
			}
		}
	}
	return nil
}

func assetEvtKey(assetID dbtypes.AssetID, height dbtypes.Height, index uint64) []byte {
	buf := appendU32(nil, assetID)
	buf = appendU64(buf, invertU64(uint64(height)))
	return appendU64(buf, invertU64(index))
}

// AssetEvtAdd appends an event to asset's log.
func (t *Transaction) AssetEvtAdd(assetID dbtypes.AssetID, height dbtypes.Height, index uint64, body []byte) error {
	return t.put(bucketAssetEvts, assetEvtKey(assetID, height, index), body)
}

// AssetEvtEnumBackward returns asset's events ordered backward (most
// recent height/index first).
func (t *Transaction) AssetEvtEnumBackward(assetID dbtypes.AssetID) ([]dbtypes.AssetEvent, error) {
	var out []dbtypes.AssetEvent
	prefix := appendU32(nil, assetID)
	c := t.bucket(bucketAssetEvts).Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		height := dbtypes.Height(invertU64(getU64(k[4:12])))
		index := invertU64(getU64(k[12:20]))
		out = append(out, dbtypes.AssetEvent{AssetID: assetID, Height: height, Index: index, Body: append([]byte(nil), v...)})
	}
	return out, nil
}

// AssetEvtsDeleteFrom truncates assetID's event log, dropping every entry
// at height >= h.
func (t *Transaction) AssetEvtsDeleteFrom(assetID dbtypes.AssetID, h dbtypes.Height) error {
	prefix := appendU32(nil, assetID)
	c := t.bucket(bucketAssetEvts).Cursor()
	var toDelete [][]byte
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		height := dbtypes.Height(invertU64(getU64(k[4:12])))
		if height >= h {
			toDelete = append(toDelete, append([]byte(nil), k...))
		}
	}
	for _, k := range toDelete {
		if err := t.delete(bucketAssetEvts, k); err != nil {
			return err
		}
	}
	return nil
}
