package db

import (
	"encoding/binary"
	"fmt"
)

// codec.go is the Go analogue of NodeDB::Recordset: a typed binder/extractor
// layer. Where the original bound columns of a prepared SQL statement, this
// binds fields of a bucket key or value. Composite keys that must sort
// lexicographically (HeightPosPacked, StateInput, chainwork-ordered tips)
// are always big-endian by contract — bbolt sorts keys by raw byte value,
// so big-endian is what makes numeric order and byte order agree.

func putU32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func putU64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func getU32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func getU64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	putU32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	putU64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// appendBlob appends a length-prefixed blob: a uint32 big-endian length
// followed by the raw bytes. Used for variable-length fields embedded in a
// fixed binary record (e.g. a state's opaque header Raw bytes).
func appendBlob(buf []byte, v []byte) []byte {
	buf = appendU32(buf, uint32(len(v)))
	return append(buf, v...)
}

// readBlob reads a length-prefixed blob written by appendBlob, returning the
// blob and the number of bytes consumed from buf.
func readBlob(buf []byte) ([]byte, int, error) {
	if len(buf) < 4 {
		return nil, 0, fmt.Errorf("db: truncated blob length")
	}
	n := int(getU32(buf))
	if len(buf) < 4+n {
		return nil, 0, fmt.Errorf("db: truncated blob body")
	}
	return buf[4 : 4+n], 4 + n, nil
}

// stateRowKey packs a bucket key for the primary "states" bucket.
func stateRowKey(row uint64) []byte {
	return appendU64(nil, row)
}

// heightHashKey packs the (height, hash) lookup key used by the
// states-by-height-hash index and by orphan resolution.
func heightHashKey(height uint64, hash [32]byte) []byte {
	buf := appendU64(nil, height)
	return append(buf, hash[:]...)
}

// heightPosKey packs a sortable HeightPosPacked composite key.
func heightPosKey(height uint64, idx uint32) []byte {
	buf := appendU64(nil, height)
	return appendU32(buf, idx)
}

// tipKey packs the (height, row) key the Tip set is ordered by.
func tipKey(height, row uint64) []byte {
	buf := appendU64(nil, height)
	return appendU64(buf, row)
}

// chainWorkKey packs the (chainwork, row) key TipReachable is ordered by.
func chainWorkKey(cw [32]byte, row uint64) []byte {
	buf := append([]byte(nil), cw[:]...)
	return appendU64(buf, row)
}
