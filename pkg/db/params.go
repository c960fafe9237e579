package db

// params.go implements the singleton parameter store: a flat id-to-value
// table used for schema bookkeeping (ParamDbVer), chain cursor position
// (ParamCursorRow/Height), the genesis checksum, and small aggregate
// counters (ParamAssetsCount, ParamCacheState's encoding, ...). Values are
// stored either as a raw 8-byte big-endian integer or as an arbitrary blob;
// callers pick the accessor that matches how a given ParamID is defined.

func paramKey(id ParamID) []byte {
	return appendU32(nil, uint32(id))
}

// ParamGet returns the raw value stored under id. Exactly one of the two
// return values is non-nil: an 8-byte value decodes as intVal, anything
// else is returned as blobVal. Both are nil if the param has never been
// set.
func (t *Transaction) ParamGet(id ParamID) (intVal *uint64, blobVal *[]byte, err error) {
	v := t.get(bucketParams, paramKey(id))
	if v == nil {
		return nil, nil, nil
	}
	if len(v) == 8 {
		n := getU64(v)
		return &n, nil, nil
	}
	cp := append([]byte(nil), v...)
	return nil, &cp, nil
}

// ParamIntGetDef returns the integer stored under id, or def if unset.
func (t *Transaction) ParamIntGetDef(id ParamID, def uint64) (uint64, error) {
	v, _, err := t.ParamGet(id)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return def, nil
	}
	return *v, nil
}

// ParamIntSet stores val as an 8-byte big-endian integer under id.
func (t *Transaction) ParamIntSet(id ParamID, val uint64) error {
	return t.put(bucketParams, paramKey(id), appendU64(nil, val))
}

// ParamBlobSet stores an arbitrary byte slice under id.
func (t *Transaction) ParamBlobSet(id ParamID, val []byte) error {
	return t.put(bucketParams, paramKey(id), val)
}

// ParamDelSafe removes id if present; it is not an error for id to be
// absent already.
func (t *Transaction) ParamDelSafe(id ParamID) error {
	return t.delete(bucketParams, paramKey(id))
}
