package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// cache.go implements the bounded content-addressed cache:
// entries are keyed by content hash, each carries the hit-stamp it was last
// touched at, and eviction removes the globally-oldest-touched entries
// (ascending hit-stamp order) until SizeCurrent fits under SizeMax.

// defaultCacheSizeMax is used when Options.CacheSizeMax is left zero on a
// fresh database.
const defaultCacheSizeMax = 64 << 20 // 64 MiB

func cacheByHitKey(hit uint64, hash [32]byte) []byte {
	buf := appendU64(nil, hit)
	return append(buf, hash[:]...)
}

func packCacheState(s dbtypes.CacheState) []byte {
	buf := appendU64(nil, s.HitCounter)
	buf = appendU64(buf, s.SizeMax)
	buf = appendU64(buf, s.SizeCurrent)
	return buf
}

func unpackCacheState(v []byte) dbtypes.CacheState {
	return dbtypes.CacheState{
		HitCounter:  getU64(v[0:8]),
		SizeMax:     getU64(v[8:16]),
		SizeCurrent: getU64(v[16:24]),
	}
}

func (t *Transaction) getCacheState() (dbtypes.CacheState, error) {
	_, blob, err := t.ParamGet(ParamCacheState)
	if err != nil {
		return dbtypes.CacheState{}, err
	}
	if blob == nil || len(*blob) < 24 {
		return dbtypes.CacheState{SizeMax: defaultCacheSizeMax}, nil
	}
	return unpackCacheState(*blob), nil
}

func (t *Transaction) setCacheState(s dbtypes.CacheState) error {
	return t.ParamBlobSet(ParamCacheState, packCacheState(s))
}

// CacheSetMaxSize changes the eviction bound, evicting immediately if the
// new bound is smaller than what is currently stored.
func (t *Transaction) CacheSetMaxSize(max uint64) error {
	st, err := t.getCacheState()
	if err != nil {
		return err
	}
	st.SizeMax = max
	if err := t.setCacheState(st); err != nil {
		return err
	}
	return t.cacheEvictToFit()
}

func cacheEntryKey(hash [32]byte) []byte { return hash[:] }

func packCacheEntry(hit uint64, data []byte) []byte {
	buf := appendU64(nil, hit)
	return append(buf, data...)
}

func unpackCacheEntry(v []byte) (hit uint64, data []byte) {
	return getU64(v[0:8]), v[8:]
}

// CacheFind looks up a cached blob by content hash. On a hit it bumps the
// entry's hit-stamp to the current (post-increment) HitCounter, the
// adaptation of the original's "touch moves to the back of the LRU list"
// without needing a doubly linked list: the by-hit index naturally keeps
// the least-recently-touched entries first.
func (t *Transaction) CacheFind(hash dbtypes.Hash) ([]byte, bool, error) {
	v := t.get(bucketCache, cacheEntryKey(hash))
	if v == nil {
		return nil, false, nil
	}
	oldHit, data := unpackCacheEntry(v)

	st, err := t.getCacheState()
	if err != nil {
		return nil, false, err
	}
	st.HitCounter++
	newHit := st.HitCounter

	if err := t.delete(bucketCacheByHit, cacheByHitKey(oldHit, hash)); err != nil {
		return nil, false, err
	}
	if err := t.put(bucketCacheByHit, cacheByHitKey(newHit, hash), nil); err != nil {
		return nil, false, err
	}
	if err := t.put(bucketCache, cacheEntryKey(hash), packCacheEntry(newHit, data)); err != nil {
		return nil, false, err
	}
	if err := t.setCacheState(st); err != nil {
		return nil, false, err
	}
	return append([]byte(nil), data...), true, nil
}

// CacheInsert adds or replaces a cached blob, then evicts oldest-touched
// entries until SizeCurrent fits within SizeMax.
func (t *Transaction) CacheInsert(hash dbtypes.Hash, data []byte) error {
	st, err := t.getCacheState()
	if err != nil {
		return err
	}

	if old := t.get(bucketCache, cacheEntryKey(hash)); old != nil {
		oldHit, oldData := unpackCacheEntry(old)
		if err := t.delete(bucketCacheByHit, cacheByHitKey(oldHit, hash)); err != nil {
			return err
		}
		st.SizeCurrent -= uint64(len(oldData))
	}

	st.HitCounter++
	hit := st.HitCounter
	if err := t.put(bucketCache, cacheEntryKey(hash), packCacheEntry(hit, data)); err != nil {
		return err
	}
	if err := t.put(bucketCacheByHit, cacheByHitKey(hit, hash), nil); err != nil {
		return err
	}
	st.SizeCurrent += uint64(len(data))
	if err := t.setCacheState(st); err != nil {
		return err
	}
	return t.cacheEvictToFit()
}

// cacheEvictToFit removes entries in ascending hit-stamp order (oldest
// touched first) until SizeCurrent <= SizeMax.
func (t *Transaction) cacheEvictToFit() error {
	st, err := t.getCacheState()
	if err != nil {
		return err
	}
	c := t.bucket(bucketCacheByHit).Cursor()
	for st.SizeCurrent > st.SizeMax {
		k, _ := c.First()
		if k == nil {
			break
		}
		var hash dbtypes.Hash
		copy(hash[:], k[8:40])
		entry := t.get(bucketCache, cacheEntryKey(hash))
		if entry != nil {
			_, data := unpackCacheEntry(entry)
			st.SizeCurrent -= uint64(len(data))
			if err := t.delete(bucketCache, cacheEntryKey(hash)); err != nil {
				return err
			}
		}
		if err := t.delete(bucketCacheByHit, append([]byte(nil), k...)); err != nil {
			return err
		}
		c = t.bucket(bucketCacheByHit).Cursor()
	}
	return t.setCacheState(st)
}
