package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

func TestTxoAddGetSetSpentAndValue(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	require.NoError(t, tx.TxoAdd(1, []byte("output-1")))

	value, spendHeight, err := tx.TxoGet(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("output-1"), value)
	assert.Nil(t, spendHeight)

	require.NoError(t, tx.TxoSetSpent(1, 100))
	value, spendHeight, err = tx.TxoGet(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("output-1"), value)
	require.NotNil(t, spendHeight)
	assert.Equal(t, dbtypes.Height(100), *spendHeight)

	require.NoError(t, tx.TxoSetValue(1, []byte("compacted")))
	value, spendHeight, err = tx.TxoGet(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("compacted"), value)
	require.NotNil(t, spendHeight, "setting value must not clear the spend height")
	assert.Equal(t, dbtypes.Height(100), *spendHeight)
}

func TestTxoDelFromAndEnum(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	for i := dbtypes.TxoID(1); i <= 5; i++ {
		require.NoError(t, tx.TxoAdd(i, []byte{byte(i)}))
	}

	var seen []dbtypes.TxoID
	require.NoError(t, tx.TxoEnum(1, func(id dbtypes.TxoID, value []byte, spendHeight *dbtypes.Height) bool {
		seen = append(seen, id)
		return true
	}))
	assert.Equal(t, []dbtypes.TxoID{1, 2, 3, 4, 5}, seen)

	require.NoError(t, tx.TxoDelFrom(3))

	seen = nil
	require.NoError(t, tx.TxoEnum(1, func(id dbtypes.TxoID, value []byte, spendHeight *dbtypes.Height) bool {
		seen = append(seen, id)
		return true
	}))
	assert.Equal(t, []dbtypes.TxoID{1, 2}, seen)
}

func TestTxoEnumStopsEarly(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	for i := dbtypes.TxoID(1); i <= 5; i++ {
		require.NoError(t, tx.TxoAdd(i, nil))
	}

	var seen []dbtypes.TxoID
	require.NoError(t, tx.TxoEnum(1, func(id dbtypes.TxoID, value []byte, spendHeight *dbtypes.Height) bool {
		seen = append(seen, id)
		return id < 3
	}))
	assert.Equal(t, []dbtypes.TxoID{1, 2, 3}, seen)
}
