package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindKernelResolvesMaximalHeight(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.KernelAdd(hashOf(1), 5))
	require.NoError(t, tx.KernelAdd(hashOf(1), 20))
	require.NoError(t, tx.KernelAdd(hashOf(1), 12))

	h, found, err := tx.FindKernel(hashOf(1))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(20), h)
}

func TestFindKernelMissing(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	_, found, err := tx.FindKernel(hashOf(99))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindBlockResolvesStateRow(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)

	row, err := tx.FindBlock(0, hashOf(1))
	require.NoError(t, err)
	assert.Equal(t, genesis, row)

	row, err = tx.FindBlock(0, hashOf(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), row)
}
