package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetStateBlock(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	peer := peerOf(3)

	require.NoError(t, tx.SetStateBlock(genesis, []byte("perishable"), []byte("eternal"), &peer))
	require.NoError(t, tx.SetStateRollback(genesis, []byte("undo")))

	perishable, eternal, rollback, gotPeer, err := tx.GetStateBlock(genesis)
	require.NoError(t, err)
	assert.Equal(t, []byte("perishable"), perishable)
	assert.Equal(t, []byte("eternal"), eternal)
	assert.Equal(t, []byte("undo"), rollback)
	require.NotNil(t, gotPeer)
	assert.Equal(t, peer, *gotPeer)
}

// TestFossilizationStagesDropDataInOrder models the three body-fossilization
// depths: PP drops the perishable body and delivering peer, PPR additionally
// drops the rollback blob, and All drops everything including the eternal
// body.
func TestFossilizationStagesDropDataInOrder(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	peer := peerOf(1)
	require.NoError(t, tx.SetStateBlock(genesis, []byte("perishable"), []byte("eternal"), &peer))
	require.NoError(t, tx.SetStateRollback(genesis, []byte("undo")))

	require.NoError(t, tx.DelStateBlockPP(genesis))
	perishable, eternal, rollback, gotPeer, err := tx.GetStateBlock(genesis)
	require.NoError(t, err)
	assert.Nil(t, perishable)
	assert.Equal(t, []byte("eternal"), eternal)
	assert.Equal(t, []byte("undo"), rollback)
	assert.Nil(t, gotPeer)

	require.NoError(t, tx.DelStateBlockPPR(genesis))
	_, eternal, rollback, _, err = tx.GetStateBlock(genesis)
	require.NoError(t, err)
	assert.Equal(t, []byte("eternal"), eternal)
	assert.Nil(t, rollback)

	require.NoError(t, tx.DelStateBlockAll(genesis))
	_, eternal, _, _, err = tx.GetStateBlock(genesis)
	require.NoError(t, err)
	assert.Nil(t, eternal)
}

func TestGetStateBlockOnUnsetRow(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	perishable, eternal, rollback, peer, err := tx.GetStateBlock(genesis)
	require.NoError(t, err)
	assert.Nil(t, perishable)
	assert.Nil(t, eternal)
	assert.Nil(t, rollback)
	assert.Nil(t, peer)
}
