package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

func TestContractDataSetGetDeleteAndNavigate(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.ContractDataSet([]byte("a"), []byte("1")))
	require.NoError(t, tx.ContractDataSet([]byte("c"), []byte("3")))
	require.NoError(t, tx.ContractDataSet([]byte("e"), []byte("5")))

	v, found := tx.ContractDataGet([]byte("c"))
	require.True(t, found)
	assert.Equal(t, []byte("3"), v)

	key, val, found := tx.ContractDataFindNext([]byte("a"))
	require.True(t, found)
	assert.Equal(t, []byte("c"), key)
	assert.Equal(t, []byte("3"), val)

	key, val, found = tx.ContractDataFindPrev([]byte("e"))
	require.True(t, found)
	assert.Equal(t, []byte("c"), key)
	assert.Equal(t, []byte("3"), val)

	require.NoError(t, tx.ContractDataDelete([]byte("c")))
	_, found = tx.ContractDataGet([]byte("c"))
	assert.False(t, found)

	entries, err := tx.ContractDataEnum([]byte("a"), []byte("z"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("a"), entries[0][0])
	assert.Equal(t, []byte("e"), entries[1][0])
}

func TestContractLogAppendEnumAndDeleteRange(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.ContractLogAppend(dbtypes.HeightPos{Height: 1, Idx: 0}, []byte("k1"), []byte("v1")))
	require.NoError(t, tx.ContractLogAppend(dbtypes.HeightPos{Height: 5, Idx: 0}, []byte("k2"), []byte("v2")))
	require.NoError(t, tx.ContractLogAppend(dbtypes.HeightPos{Height: 10, Idx: 0}, []byte("k3"), []byte("v3")))

	entries, err := tx.ContractLogEnumRange(1, 5)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("k1"), entries[0].Key)
	assert.Equal(t, []byte("k2"), entries[1].Key)

	require.NoError(t, tx.ContractLogDeleteRange(1, 5))
	entries, err = tx.ContractLogEnumRange(0, 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("k3"), entries[0].Key)
}

func TestKrnInfoAppendAndEnumByCid(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	cid := hashOf(7)
	require.NoError(t, tx.KrnInfoAppend(dbtypes.HeightPos{Height: 1, Idx: 0}, cid, []byte("info-1")))
	require.NoError(t, tx.KrnInfoAppend(dbtypes.HeightPos{Height: 9, Idx: 0}, cid, []byte("info-2")))
	require.NoError(t, tx.KrnInfoAppend(dbtypes.HeightPos{Height: 1, Idx: 0}, hashOf(8), []byte("other-cid")))

	entries, err := tx.KrnInfoEnumByCid(cid, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []byte("info-1"), entries[0].Val)

	entries, err = tx.KrnInfoEnumByCid(cid, 100)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
