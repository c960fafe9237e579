package db

// unique.go implements the unique store: a small key/value table where
// insertion fails softly (no error, false return) if the key already
// exists, rather than overwriting it.

// UniqueInsertSafe inserts (key, value) and returns true, or returns false
// without modifying anything if key is already present.
func (t *Transaction) UniqueInsertSafe(key, value []byte) (bool, error) {
	if t.get(bucketUnique, key) != nil {
		return false, nil
	}
	if err := t.put(bucketUnique, key, value); err != nil {
		return false, err
	}
	return true, nil
}

// UniqueFind returns the value stored under key, or found=false.
func (t *Transaction) UniqueFind(key []byte) (value []byte, found bool) {
	v := t.get(bucketUnique, key)
	if v == nil {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// UniqueDeleteStrict removes key, treating its absence as a database
// inconsistency: callers are expected to already know the key exists.
func (t *Transaction) UniqueDeleteStrict(key []byte) error {
	if t.get(bucketUnique, key) == nil {
		return errInconsistent("unique: key not present for strict delete")
	}
	return t.delete(bucketUnique, key)
}
