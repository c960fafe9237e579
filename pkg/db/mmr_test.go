package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

// TestMmrAppendAndShrink models S5: appending four leaves produces a
// specific peak-merge sequence, and Shrink back to the two-leaf point
// reproduces exactly the root that existed right after the second append.
func TestMmrAppendAndShrink(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	m := tx.NewStreamMmr('T')

	leaves := []dbtypes.Hash{hashOf(1), hashOf(2), hashOf(3), hashOf(4)}

	root1, err := m.Append(leaves[0], m)
	require.NoError(t, err)
	assert.Equal(t, leaves[0], root1, "a single leaf is its own root")

	count, err := m.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	root2, err := m.Append(leaves[1], m)
	require.NoError(t, err)
	assert.Equal(t, mergeHash(leaves[0], leaves[1]), root2, "two leaves of equal height merge into one peak")

	root3, err := m.Append(leaves[2], m)
	require.NoError(t, err)
	assert.Equal(t, mergeHash(root2, leaves[2]), root3, "a lone new leaf bags behind the existing two-leaf peak")

	root4, err := m.Append(leaves[3], m)
	require.NoError(t, err)
	wantRoot4 := mergeHash(root2, mergeHash(leaves[2], leaves[3]))
	assert.Equal(t, wantRoot4, root4, "the third and fourth leaves carry into a second two-leaf peak")

	count, err = m.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)

	liveRoot, err := m.Root()
	require.NoError(t, err)
	assert.Equal(t, root4, liveRoot)

	require.NoError(t, m.Shrink(2, m))

	count, err = m.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	shrunkRoot, err := m.Root()
	require.NoError(t, err)
	assert.Equal(t, root2, shrunkRoot, "shrinking back to 2 leaves must reproduce the root from right after the second append")

	leaf, ok, err := m.Load(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, leaves[0], leaf)

	_, ok, err = m.Load(3)
	require.NoError(t, err)
	assert.False(t, ok, "a shrunk-away leaf must no longer be reachable")
}

func TestMmrShrinkRejectsMissingLeaf(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	m := tx.NewStreamMmr('T')
	require.NoError(t, err)

	err = m.Shrink(3, m)
	assert.True(t, IsInconsistent(err))
}

// TestStatesMmrLoadReadsActiveChain models the StatesMmr specialization:
// its leaves come from the active state tree, indexed by height, rather
// than from its own stream.
func TestStatesMmrLoadReadsActiveChain(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	require.NoError(t, tx.MoveFwd(genesis))

	sm := tx.NewStatesMmr()
	h, ok, err := sm.Load(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, hashOf(1), h)

	_, ok, err = sm.Load(1)
	require.NoError(t, err)
	assert.False(t, ok, "no active state exists yet at height 1")
}
