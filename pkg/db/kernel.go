package db

import (
	"bytes"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

// kernel.go implements the kernel index: (hash, height) pairs, duplicates
// allowed since different blocks may carry an identical kernel in corner
// cases. FindKernel always resolves to the maximal height recorded.

func kernelKey(hash dbtypes.Hash, height dbtypes.Height) []byte {
	buf := append([]byte(nil), hash[:]...)
	return appendU64(buf, uint64(height))
}

// KernelAdd records that hash appeared in the block at height.
func (t *Transaction) KernelAdd(hash dbtypes.Hash, height dbtypes.Height) error {
	return t.put(bucketKernels, kernelKey(hash, height), nil)
}

// FindKernel returns the maximal height at which hash was recorded, and
// whether it was found at all.
func (t *Transaction) FindKernel(hash dbtypes.Hash) (dbtypes.Height, bool, error) {
	c := t.bucket(bucketKernels).Cursor()
	seek := append(append([]byte(nil), hash[:]...), bytesFF(8)...)
	k, _ := c.Seek(seek)
	if k == nil {
		k, _ = c.Last()
	} else {
		k, _ = c.Prev()
	}
	if k == nil || !bytes.Equal(k[:32], hash[:]) {
		return 0, false, nil
	}
	return dbtypes.Height(getU64(k[32:])), true, nil
}

func bytesFF(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

// FindBlock looks up the state row at (height, hash) — the supplemented
// counterpart to FindKernel for resolving a block by its identity rather
// than a kernel it contains.
func (t *Transaction) FindBlock(height dbtypes.Height, hash dbtypes.Hash) (uint64, error) {
	return t.FindStateByHash(height, hash)
}
