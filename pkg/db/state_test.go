package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

func hashOf(b byte) dbtypes.Hash {
	var h dbtypes.Hash
	h[0] = b
	return h
}

func insertGenesis(t *testing.T, tx *Transaction) uint64 {
	t.Helper()
	row, err := tx.InsertState(dbtypes.Header{Height: 0, Hash: hashOf(1)}, dbtypes.Hash{}, dbtypes.StateFunctional|dbtypes.StateReachable, nil, 0, nil)
	require.NoError(t, err)
	return row
}

func TestInsertStateLinksChildImmediately(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	child, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), dbtypes.StateFunctional|dbtypes.StateReachable, nil, 0, nil)
	require.NoError(t, err)

	parent, err := tx.GetStateStrict(genesis)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), parent.NextCount)

	childState, err := tx.GetStateStrict(child)
	require.NoError(t, err)
	assert.Equal(t, genesis, childState.PrevRow)
}

func TestInsertStateOrphanThenResolve(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)

	// Height-2 arrives before height-1: it is recorded orphaned, keyed by
	// its declared (height, hash) parent.
	orphan, err := tx.InsertState(dbtypes.Header{Height: 2, Hash: hashOf(3)}, hashOf(2), 0, nil, 0, nil)
	require.NoError(t, err)
	orphanState, err := tx.GetStateStrict(orphan)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), orphanState.PrevRow)

	// Its parent arrives: resolveOrphansOf must patch PrevRow and propagate
	// NextCount to the missing link.
	middle, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), dbtypes.StateFunctional, nil, 0, nil)
	require.NoError(t, err)

	orphanState, err = tx.GetStateStrict(orphan)
	require.NoError(t, err)
	assert.Equal(t, middle, orphanState.PrevRow)

	middleState, err := tx.GetStateStrict(middle)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), middleState.NextCount)

	genesisState, err := tx.GetStateStrict(genesis)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), genesisState.NextCount)
}

// TestForkAndReorg models S1: two competing branches off the same parent,
// with the chain cursor moving from the losing branch to the winning one.
func TestForkAndReorg(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	require.NoError(t, tx.MoveFwd(genesis))

	branchA, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), dbtypes.StateFunctional|dbtypes.StateReachable, nil, 0, nil)
	require.NoError(t, err)
	branchB, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(3)}, hashOf(1), dbtypes.StateFunctional|dbtypes.StateReachable, nil, 0, nil)
	require.NoError(t, err)

	tips, err := tx.EnumTips()
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{branchA, branchB}, tips)

	require.NoError(t, tx.MoveFwd(branchA))
	cursorRow, err := tx.ParamIntGetDef(ParamCursorRow, 0)
	require.NoError(t, err)
	assert.Equal(t, branchA, cursorRow)

	// Reorg onto branchB: unwind then replay forward.
	require.NoError(t, tx.MoveBack())
	require.NoError(t, tx.MoveFwd(branchB))

	cursorRow, err = tx.ParamIntGetDef(ParamCursorRow, 0)
	require.NoError(t, err)
	assert.Equal(t, branchB, cursorRow)

	aState, err := tx.GetStateStrict(branchA)
	require.NoError(t, err)
	assert.False(t, aState.Flags.Active())

	bState, err := tx.GetStateStrict(branchB)
	require.NoError(t, err)
	assert.True(t, bState.Flags.Active())
}

func TestMoveFwdRejectsNonChild(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	require.NoError(t, tx.MoveFwd(genesis))

	unrelated, err := tx.InsertState(dbtypes.Header{Height: 5, Hash: hashOf(9)}, hashOf(8), 0, nil, 0, nil)
	require.NoError(t, err)

	err = tx.MoveFwd(unrelated)
	assert.True(t, IsInconsistent(err))
}

func TestAssertValidCatchesCorruptTip(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	_, err = tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), dbtypes.StateFunctional, nil, 0, nil)
	require.NoError(t, err)

	// genesis now has a child, so it must have left the Tips set; forcing it
	// back in directly (bypassing linkChild) is exactly the kind of
	// corruption assertValid exists to catch.
	require.NoError(t, tx.put(bucketTips, tipKey(0, genesis), nil))

	err = tx.assertValid()
	assert.True(t, IsInconsistent(err))
}

func TestDeleteStateRejectsRowWithChildren(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	_, err = tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), dbtypes.StateFunctional, nil, 0, nil)
	require.NoError(t, err)

	_, err = tx.DeleteState(genesis)
	assert.True(t, IsInconsistent(err))
}

// TestDeleteStatePrunesLosingFork models the tail end of S1: once a reorg
// has unwound past a losing branch, its rows are pruned leaf-first and the
// parent's NextCount drops by one.
func TestDeleteStatePrunesLosingFork(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesis := insertGenesis(t, tx)
	branchA, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), dbtypes.StateFunctional, nil, 0, nil)
	require.NoError(t, err)
	_, err = tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(3)}, hashOf(1), dbtypes.StateFunctional, nil, 0, nil)
	require.NoError(t, err)

	genesisState, err := tx.GetStateStrict(genesis)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), genesisState.NextCount)

	parent, err := tx.DeleteState(branchA)
	require.NoError(t, err)
	assert.Equal(t, genesis, parent)

	genesisState, err = tx.GetStateStrict(genesis)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), genesisState.NextCount)

	s, err := tx.GetState(branchA)
	require.NoError(t, err)
	assert.Nil(t, s)
}

// TestSetStateFunctionalDerivesReachability covers the OnStateReachable
// forward pass: a state inherits Reachable purely from its parent already
// being reachable (or genesis) once it turns Functional, without the caller
// pre-setting the flag, and that derivation carries depth-first into
// children that turned Functional first.
func TestSetStateFunctionalDerivesReachability(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesisRow, err := tx.InsertState(dbtypes.Header{Height: 0, Hash: hashOf(1)}, dbtypes.Hash{}, 0, nil, 0, nil)
	require.NoError(t, err)
	childRow, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), 0, nil, 0, nil)
	require.NoError(t, err)
	grandchildRow, err := tx.InsertState(dbtypes.Header{Height: 2, Hash: hashOf(3)}, hashOf(2), 0, nil, 0, nil)
	require.NoError(t, err)

	// The grandchild turns functional before its ancestors: it cannot be
	// reachable yet since its chain back to genesis is still broken.
	require.NoError(t, tx.SetStateFunctional(grandchildRow))
	grandchild, err := tx.GetStateStrict(grandchildRow)
	require.NoError(t, err)
	assert.False(t, grandchild.Flags.Reachable())

	require.NoError(t, tx.SetStateFunctional(childRow))
	child, err := tx.GetStateStrict(childRow)
	require.NoError(t, err)
	assert.False(t, child.Flags.Reachable())

	// Genesis has no parent, so turning functional makes it reachable
	// immediately, and that should now cascade down through child into
	// grandchild since both are already functional.
	require.NoError(t, tx.SetStateFunctional(genesisRow))

	genesis, err := tx.GetStateStrict(genesisRow)
	require.NoError(t, err)
	assert.True(t, genesis.Flags.Reachable())
	child, err = tx.GetStateStrict(childRow)
	require.NoError(t, err)
	assert.True(t, child.Flags.Reachable())
	grandchild, err = tx.GetStateStrict(grandchildRow)
	require.NoError(t, err)
	assert.True(t, grandchild.Flags.Reachable())

	tips, err := tx.EnumFunctionalTips()
	require.NoError(t, err)
	assert.Equal(t, []uint64{grandchildRow}, tips)
}

// TestSetStateNotFunctionalClearsReachabilityForward covers the inverse:
// losing functionality at an ancestor must break reachability for every
// descendant that had derived it, since Reachable is never anything but a
// consequence of an unbroken Functional chain.
func TestSetStateNotFunctionalClearsReachabilityForward(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	genesisRow, err := tx.InsertState(dbtypes.Header{Height: 0, Hash: hashOf(1)}, dbtypes.Hash{}, 0, nil, 0, nil)
	require.NoError(t, err)
	childRow, err := tx.InsertState(dbtypes.Header{Height: 1, Hash: hashOf(2)}, hashOf(1), 0, nil, 0, nil)
	require.NoError(t, err)
	grandchildRow, err := tx.InsertState(dbtypes.Header{Height: 2, Hash: hashOf(3)}, hashOf(2), 0, nil, 0, nil)
	require.NoError(t, err)

	require.NoError(t, tx.SetStateFunctional(grandchildRow))
	require.NoError(t, tx.SetStateFunctional(childRow))
	require.NoError(t, tx.SetStateFunctional(genesisRow))

	grandchild, err := tx.GetStateStrict(grandchildRow)
	require.NoError(t, err)
	require.True(t, grandchild.Flags.Reachable())

	require.NoError(t, tx.SetStateNotFunctional(childRow))

	child, err := tx.GetStateStrict(childRow)
	require.NoError(t, err)
	assert.False(t, child.Flags.Functional())
	assert.False(t, child.Flags.Reachable())

	grandchild, err = tx.GetStateStrict(grandchildRow)
	require.NoError(t, err)
	assert.False(t, grandchild.Flags.Reachable())
	assert.True(t, grandchild.Flags.Functional())

	genesis, err := tx.GetStateStrict(genesisRow)
	require.NoError(t, err)
	assert.True(t, genesis.Flags.Reachable())
	assert.Equal(t, uint32(0), genesis.NextFunctionalCount)
}

func TestFindStateWorkGreater(t *testing.T) {
	d := openTestDB(t)
	tx, err := d.Begin()
	require.NoError(t, err)
	defer tx.Rollback()

	lowWork := dbtypes.ChainWork{}
	lowWork[31] = 5
	highWork := dbtypes.ChainWork{}
	highWork[31] = 10

	lowHeader := dbtypes.Header{Height: 0, Hash: hashOf(1), ChainWork: lowWork}
	_, err = tx.InsertState(lowHeader, dbtypes.Hash{}, dbtypes.StateFunctional|dbtypes.StateReachable, nil, 0, nil)
	require.NoError(t, err)

	highHeader := dbtypes.Header{Height: 0, Hash: hashOf(2), ChainWork: highWork}
	highRow, err := tx.InsertState(highHeader, dbtypes.Hash{}, dbtypes.StateFunctional|dbtypes.StateReachable, nil, 0, nil)
	require.NoError(t, err)

	midWork := dbtypes.ChainWork{}
	midWork[31] = 7
	row, err := tx.FindStateWorkGreater(midWork)
	require.NoError(t, err)
	assert.Equal(t, highRow, row)

	row, err = tx.FindStateWorkGreater(highWork)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), row)
}
