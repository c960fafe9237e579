package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

func peerOf(b byte) dbtypes.PeerID {
	var p dbtypes.PeerID
	p[0] = b
	return p
}

// TestAssetSlotReuse models S4: deleting an interior asset frees its slot
// for the next auto-allocated AssetAdd, and AssetsCount cascades down when
// the deleted asset held the top slot.
func TestAssetSlotReuse(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	id1, err := tx.AssetAdd(0, peerOf(1), []byte("v1"), nil, 0)
	require.NoError(t, err)
	id2, err := tx.AssetAdd(0, peerOf(2), []byte("v2"), nil, 0)
	require.NoError(t, err)
	id3, err := tx.AssetAdd(0, peerOf(3), []byte("v3"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []dbtypes.AssetID{1, 2, 3}, []dbtypes.AssetID{id1, id2, id3})

	count, err := tx.ParamIntGetDef(ParamAssetsCount, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
	countUsed, err := tx.ParamIntGetDef(ParamAssetsCountUsed, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), countUsed)

	require.NoError(t, tx.AssetDelete(id2))

	countUsed, err = tx.ParamIntGetDef(ParamAssetsCountUsed, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), countUsed)
	count, err = tx.ParamIntGetDef(ParamAssetsCount, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count, "count only cascades when the top slot is freed")

	reused, err := tx.AssetAdd(0, peerOf(4), []byte("v4"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, id2, reused, "the lowest free slot must be reused before growing past the top")

	a, found, err := tx.AssetGet(reused)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, a.Used)
	assert.Equal(t, peerOf(4), a.Owner)
}

func TestAssetDeleteTopSlotCascadesCount(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	id1, err := tx.AssetAdd(0, peerOf(1), nil, nil, 0)
	require.NoError(t, err)
	id2, err := tx.AssetAdd(0, peerOf(2), nil, nil, 0)
	require.NoError(t, err)
	_ = id1

	require.NoError(t, tx.AssetDelete(id2))

	count, err := tx.ParamIntGetDef(ParamAssetsCount, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestAssetDeleteIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	id, err := tx.AssetAdd(0, peerOf(1), nil, nil, 0)
	require.NoError(t, err)
	require.NoError(t, tx.AssetDelete(id))
	assert.NoError(t, tx.AssetDelete(id))
}

func TestAssetAddExplicitIDRejectsInUse(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.AssetAdd(5, peerOf(1), nil, nil, 0)
	require.NoError(t, err)

	_, err = tx.AssetAdd(5, peerOf(2), nil, nil, 0)
	assert.Error(t, err)
}

func TestAssetEventLogEnumeratesBackwardAndTruncates(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	id, err := tx.AssetAdd(0, peerOf(1), nil, nil, 0)
	require.NoError(t, err)

	require.NoError(t, tx.AssetEvtAdd(id, 1, 0, []byte("mint")))
	require.NoError(t, tx.AssetEvtAdd(id, 2, 0, []byte("transfer-a")))
	require.NoError(t, tx.AssetEvtAdd(id, 2, 1, []byte("transfer-b")))

	evts, err := tx.AssetEvtEnumBackward(id)
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, []byte("transfer-b"), evts[0].Body)
	assert.Equal(t, []byte("transfer-a"), evts[1].Body)
	assert.Equal(t, []byte("mint"), evts[2].Body)

	require.NoError(t, tx.AssetEvtsDeleteFrom(id, 2))
	evts, err = tx.AssetEvtEnumBackward(id)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, []byte("mint"), evts[0].Body)
}
