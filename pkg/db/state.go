package db

import (
	"github.com/cuemby/nodedb/pkg/dbtypes"
)

// state.go implements the block tree: the State rows, their Functional ⊇
// Reachable ⊇ Active flag nesting, the Tip and TipReachable indexes, orphan
// adoption, and chain-cursor movement (MoveFwd/MoveBack) used to reorg
// between competing branches.

func stateEncode(s *dbtypes.State) []byte {
	buf := make([]byte, 0, 200+len(s.Header.Raw)+len(s.Extra))
	buf = appendU64(buf, uint64(s.Header.Height))
	buf = append(buf, s.Header.Hash[:]...)
	buf = append(buf, s.Header.Prev[:]...)
	buf = append(buf, s.Header.ChainWork[:]...)
	buf = appendU64(buf, s.Header.Timestamp)
	buf = appendU64(buf, s.PrevRow)
	buf = appendU32(buf, uint32(s.Flags))
	buf = appendU32(buf, s.NextCount)
	buf = appendU32(buf, s.NextFunctionalCount)
	buf = appendU64(buf, uint64(s.TxoHi))
	if s.Peer != nil {
		buf = append(buf, 1)
		buf = append(buf, s.Peer[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = appendBlob(buf, s.Header.Raw)
	buf = appendBlob(buf, s.Extra)
	return buf
}

func stateDecode(row uint64, v []byte) (*dbtypes.State, error) {
	if len(v) < 8+32+32+32+8+8+4+4+4+8+1 {
		return nil, errInconsistent("state row %d: truncated record", row)
	}
	off := 0
	height := getU64(v[off:])
	off += 8
	var hash, prev, cw dbtypes.Hash
	copy(hash[:], v[off:off+32])
	off += 32
	copy(prev[:], v[off:off+32])
	off += 32
	copy(cw[:], v[off:off+32])
	off += 32
	ts := getU64(v[off:])
	off += 8
	prevRow := getU64(v[off:])
	off += 8
	flags := getU32(v[off:])
	off += 4
	nextCount := getU32(v[off:])
	off += 4
	nextFuncCount := getU32(v[off:])
	off += 4
	txoHi := getU64(v[off:])
	off += 8
	hasPeer := v[off]
	off++
	var peer *dbtypes.PeerID
	if hasPeer != 0 {
		var p dbtypes.PeerID
		copy(p[:], v[off:off+32])
		peer = &p
		off += 32
	}
	raw, n, err := readBlob(v[off:])
	if err != nil {
		return nil, errInconsistent("state row %d: %v", row, err)
	}
	off += n
	extra, n, err := readBlob(v[off:])
	if err != nil {
		return nil, errInconsistent("state row %d: %v", row, err)
	}
	off += n

	return &dbtypes.State{
		Row: row,
		Header: dbtypes.Header{
			Height:    dbtypes.Height(height),
			Hash:      hash,
			Prev:      prev,
			ChainWork: cw,
			Timestamp: ts,
			Raw:       append([]byte(nil), raw...),
		},
		PrevRow:             prevRow,
		Flags:               dbtypes.StateFlags(flags),
		NextCount:           nextCount,
		NextFunctionalCount: nextFuncCount,
		Peer:                peer,
		TxoHi:               dbtypes.TxoID(txoHi),
		Extra:               append([]byte(nil), extra...),
	}, nil
}

func childKey(prevRow, row uint64) []byte {
	buf := appendU64(nil, prevRow)
	return appendU64(buf, row)
}

func orphanKey(parentHeight dbtypes.Height, parentHash dbtypes.Hash) []byte {
	return heightHashKey(uint64(parentHeight), parentHash)
}

// enumChildren returns every row directly linked as a child of prevRow,
// via the same bucketChildren index linkChild/resolveOrphansOf populate.
func (t *Transaction) enumChildren(prevRow uint64) ([]uint64, error) {
	var rows []uint64
	prefix := appendU64(nil, prevRow)
	c := t.bucket(bucketChildren).Cursor()
	for k, _ := c.Seek(prefix); k != nil && len(k) >= 16 && getU64(k) == prevRow; k, _ = c.Next() {
		rows = append(rows, getU64(k[8:16]))
	}
	return rows, nil
}

// GetState loads a state row by row id. Returns nil if absent.
func (t *Transaction) GetState(row uint64) (*dbtypes.State, error) {
	v := t.get(bucketStates, stateRowKey(row))
	if v == nil {
		return nil, nil
	}
	return stateDecode(row, v)
}

// GetStateStrict is the raising counterpart to GetState: it treats a
// missing row as a database inconsistency rather than a normal "not
// found".
func (t *Transaction) GetStateStrict(row uint64) (*dbtypes.State, error) {
	s, err := t.GetState(row)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errInconsistent("state row %d: expected to exist", row)
	}
	return s, nil
}

// FindStateByHash looks up the row at (height, hash), returning 0 if none.
func (t *Transaction) FindStateByHash(height dbtypes.Height, hash dbtypes.Hash) (uint64, error) {
	v := t.get(bucketStatesByHeight, heightHashKey(uint64(height), hash))
	if v == nil {
		return 0, nil
	}
	return getU64(v), nil
}

func (t *Transaction) putState(s *dbtypes.State) error {
	if err := t.put(bucketStates, stateRowKey(s.Row), stateEncode(s)); err != nil {
		return err
	}
	return t.put(bucketStatesByHeight, heightHashKey(uint64(s.Header.Height), s.Header.Hash), appendU64(nil, s.Row))
}

func (t *Transaction) updateTipIndex(s *dbtypes.State, wasTip, isTip bool) error {
	key := tipKey(uint64(s.Header.Height), s.Row)
	if wasTip && !isTip {
		return t.delete(bucketTips, key)
	}
	if !wasTip && isTip {
		return t.put(bucketTips, key, nil)
	}
	return nil
}

func (t *Transaction) updateReachableTipIndex(s *dbtypes.State, was, is bool) error {
	key := chainWorkKey(s.Header.ChainWork, s.Row)
	if was && !is {
		return t.delete(bucketTipsReachable, key)
	}
	if !was && is {
		return t.put(bucketTipsReachable, key, nil)
	}
	return nil
}

// InsertState adds a new header to the tree. If prevHash at height
// header.Height-1 resolves to a known row, the state is linked immediately
// as a child and the parent's NextCount/NextFunctionalCount are updated. If
// the parent isn't known yet, the state is recorded with PrevRow == 0 and
// indexed as an orphan keyed by (header.Height-1, prevHash); resolveOrphansOf
// patches it in once the true parent is inserted.
func (t *Transaction) InsertState(header dbtypes.Header, prevHash dbtypes.Hash, flags dbtypes.StateFlags, peer *dbtypes.PeerID, txoHi dbtypes.TxoID, extra []byte) (uint64, error) {
	row, err := t.nextSequence(bucketStates)
	if err != nil {
		return 0, err
	}

	var prevRow uint64
	if header.Height > 0 {
		prevRow, err = t.FindStateByHash(header.Height-1, prevHash)
		if err != nil {
			return 0, err
		}
	}

	s := &dbtypes.State{
		Row:     row,
		Header:  header,
		PrevRow: prevRow,
		Flags:   flags,
		Peer:    peer,
		TxoHi:   txoHi,
		Extra:   extra,
	}
	if err := t.putState(s); err != nil {
		return 0, err
	}
	// A freshly inserted state starts life with no children: it is always
	// a tip, and a reachable tip iff it is itself reachable.
	if err := t.updateTipIndex(s, false, true); err != nil {
		return 0, err
	}
	if s.Flags.Reachable() {
		if err := t.updateReachableTipIndex(s, false, true); err != nil {
			return 0, err
		}
	}

	if prevRow != 0 {
		if err := t.linkChild(prevRow, row); err != nil {
			return 0, err
		}
	} else if header.Height > 0 {
		if err := t.put(bucketOrphans, orphanKey(header.Height-1, prevHash), appendU64(nil, row)); err != nil {
			return 0, err
		}
	}

	if err := t.resolveOrphansOf(s); err != nil {
		return 0, err
	}
	return row, nil
}

// linkChild records row as a child of prevRow and bumps prevRow's
// NextCount (and NextFunctionalCount, if row is functional), clearing
// prevRow's own tip-ness.
func (t *Transaction) linkChild(prevRow, row uint64) error {
	if err := t.put(bucketChildren, childKey(prevRow, row), nil); err != nil {
		return err
	}
	parent, err := t.GetStateStrict(prevRow)
	if err != nil {
		return err
	}
	child, err := t.GetStateStrict(row)
	if err != nil {
		return err
	}

	wasTip := parent.NextCount == 0
	parent.NextCount++
	if child.Flags.Functional() {
		parent.NextFunctionalCount++
	}
	if err := t.putState(parent); err != nil {
		return err
	}
	if err := t.updateTipIndex(parent, wasTip, parent.NextCount == 0); err != nil {
		return err
	}
	wasReachTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 1 && child.Flags.Functional()
	isReachTip := false
	if err := t.updateReachableTipIndex(parent, wasReachTip, isReachTip); err != nil {
		return err
	}
	return nil
}

// resolveOrphansOf adopts any previously-inserted state whose declared
// parent is s, patching their PrevRow and propagating NextCount exactly as
// linkChild would have done at insertion time.
func (t *Transaction) resolveOrphansOf(s *dbtypes.State) error {
	key := orphanKey(s.Header.Height, s.Header.Hash)
	v := t.get(bucketOrphans, key)
	if v == nil {
		return nil
	}
	childRow := getU64(v)
	if err := t.delete(bucketOrphans, key); err != nil {
		return err
	}
	child, err := t.GetStateStrict(childRow)
	if err != nil {
		return err
	}
	child.PrevRow = s.Row
	if err := t.putState(child); err != nil {
		return err
	}
	return t.linkChild(s.Row, childRow)
}

// DeleteState removes a childless state row, decrementing its parent's
// NextCount (and NextFunctionalCount, if row was itself functional) and
// re-entering the parent into Tip/TipReachable if that decrement brings it
// back to zero children. It is the inverse of linkChild, used to prune a
// losing fork's rows once a reorg has fully unwound past them. Returns the
// parent row (0 if row was genesis), or an inconsistency error if row still
// has children.
func (t *Transaction) DeleteState(row uint64) (uint64, error) {
	s, err := t.GetStateStrict(row)
	if err != nil {
		return 0, err
	}
	if s.NextCount != 0 {
		return 0, errInconsistent("DeleteState: row %d still has %d children", row, s.NextCount)
	}

	// A childless row is always a tip; it must leave Tip (and
	// TipReachable, if reachable) before its record disappears.
	if err := t.updateTipIndex(s, true, false); err != nil {
		return 0, err
	}
	if s.Flags.Reachable() {
		if err := t.updateReachableTipIndex(s, true, false); err != nil {
			return 0, err
		}
	}

	if err := t.delete(bucketStates, stateRowKey(row)); err != nil {
		return 0, err
	}
	if err := t.delete(bucketStatesByHeight, heightHashKey(uint64(s.Header.Height), s.Header.Hash)); err != nil {
		return 0, err
	}

	if s.PrevRow == 0 {
		return 0, nil
	}
	if err := t.delete(bucketChildren, childKey(s.PrevRow, row)); err != nil {
		return 0, err
	}

	parent, err := t.GetStateStrict(s.PrevRow)
	if err != nil {
		return 0, err
	}
	wasTip := parent.NextCount == 0
	wasReachTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 0
	parent.NextCount--
	if s.Flags.Functional() {
		parent.NextFunctionalCount--
	}
	if err := t.putState(parent); err != nil {
		return 0, err
	}
	if err := t.updateTipIndex(parent, wasTip, parent.NextCount == 0); err != nil {
		return 0, err
	}
	isReachTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 0
	if err := t.updateReachableTipIndex(parent, wasReachTip, isReachTip); err != nil {
		return 0, err
	}
	return parent.Row, nil
}

// SetStateFunctional marks row functional, the terminal step of body
// validation. Flags grow more permissive as data becomes available
// (SetStateNotFunctional and MoveBack are the paths that clear them):
// Functional implied by body presence, Reachable implied
// by an unbroken Functional ancestor chain back to a reachable state or
// genesis, Active implied by Reachable plus having been selected onto the
// current best chain.
//
// A genesis state (height 0, PrevRow == 0) or a state whose parent is
// already Reachable becomes Reachable itself the moment it turns
// Functional; an orphan (PrevRow == 0 above height 0) does not. SetStateReachable
// then carries that forward depth-first into row's own functional children
// (OnStateReachable's forward pass), so a caller never has to chase
// reachability through a branch by hand.
func (t *Transaction) SetStateFunctional(row uint64) error {
	s, err := t.GetStateStrict(row)
	if err != nil {
		return err
	}
	if s.Flags.Functional() {
		return nil
	}
	s.Flags |= dbtypes.StateFunctional
	if err := t.putState(s); err != nil {
		return err
	}

	parentReachable := s.PrevRow == 0 && s.Header.Height == 0
	if s.PrevRow != 0 {
		parent, err := t.GetStateStrict(s.PrevRow)
		if err != nil {
			return err
		}
		wasTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 0
		parent.NextFunctionalCount++
		if err := t.putState(parent); err != nil {
			return err
		}
		isTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 0
		if err := t.updateReachableTipIndex(parent, wasTip, isTip); err != nil {
			return err
		}
		parentReachable = parent.Flags.Reachable()
	}

	if parentReachable {
		return t.SetStateReachable(row)
	}
	return nil
}

// SetStateReachable marks row reachable once its parent chain is known
// fully functional, registers it as a reachable tip if it currently has no
// functional children, and then recurses depth-first into any children that
// are already functional but still waiting on row's own reachability.
func (t *Transaction) SetStateReachable(row uint64) error {
	s, err := t.GetStateStrict(row)
	if err != nil {
		return err
	}
	if s.Flags.Reachable() {
		return nil
	}
	s.Flags |= dbtypes.StateReachable
	if err := t.putState(s); err != nil {
		return err
	}
	if s.NextFunctionalCount == 0 {
		if err := t.updateReachableTipIndex(s, false, true); err != nil {
			return err
		}
	}

	children, err := t.enumChildren(row)
	if err != nil {
		return err
	}
	for _, childRow := range children {
		child, err := t.GetStateStrict(childRow)
		if err != nil {
			return err
		}
		if !child.Flags.Functional() || child.Flags.Reachable() {
			continue
		}
		if err := t.SetStateReachable(childRow); err != nil {
			return err
		}
	}
	return nil
}

// SetStateNotFunctional clears Functional on row, the inverse of
// SetStateFunctional: used when a body already marked valid turns out to be
// orphaned by a fork that never reconnects, or is discarded during
// fossilization. It decrements the parent's NextFunctionalCount and, since
// Reachable is only ever derived from an unbroken Functional ancestor chain,
// clears Reachable transitively forward from row through every descendant
// that had inherited it.
func (t *Transaction) SetStateNotFunctional(row uint64) error {
	s, err := t.GetStateStrict(row)
	if err != nil {
		return err
	}
	if !s.Flags.Functional() {
		return nil
	}
	wasReachable := s.Flags.Reachable()

	if wasReachable && s.NextFunctionalCount == 0 {
		if err := t.updateReachableTipIndex(s, true, false); err != nil {
			return err
		}
	}
	s.Flags &^= dbtypes.StateFunctional
	s.Flags &^= dbtypes.StateReachable
	if err := t.putState(s); err != nil {
		return err
	}

	if s.PrevRow != 0 {
		parent, err := t.GetStateStrict(s.PrevRow)
		if err != nil {
			return err
		}
		wasTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 0
		parent.NextFunctionalCount--
		if err := t.putState(parent); err != nil {
			return err
		}
		isTip := parent.Flags.Reachable() && parent.NextFunctionalCount == 0
		if err := t.updateReachableTipIndex(parent, wasTip, isTip); err != nil {
			return err
		}
	}

	if wasReachable {
		return t.clearReachableForward(row)
	}
	return nil
}

// clearReachableForward walks the direct children of row, clearing Reachable
// depth-first on every descendant that had it. row's own Reachable bit must
// already be cleared by the caller before this runs. A child that was never
// reachable is skipped without recursing into it: nothing below it could
// have inherited reachability while it itself lacked it.
func (t *Transaction) clearReachableForward(row uint64) error {
	children, err := t.enumChildren(row)
	if err != nil {
		return err
	}
	for _, childRow := range children {
		child, err := t.GetStateStrict(childRow)
		if err != nil {
			return err
		}
		if !child.Flags.Reachable() {
			continue
		}
		if child.NextFunctionalCount == 0 {
			if err := t.updateReachableTipIndex(child, true, false); err != nil {
				return err
			}
		}
		child.Flags &^= dbtypes.StateReachable
		if err := t.putState(child); err != nil {
			return err
		}
		if err := t.clearReachableForward(childRow); err != nil {
			return err
		}
	}
	return nil
}

// FindStateWorkGreater returns the row of the reachable tip with the
// smallest chainwork strictly greater than w, or 0 if none. Used to decide
// whether a newly-functional branch overtakes the current best chain
// without enumerating every tip.
func (t *Transaction) FindStateWorkGreater(w dbtypes.ChainWork) (uint64, error) {
	c := t.bucket(bucketTipsReachable).Cursor()
	seekKey := chainWorkKey(w, ^uint64(0))
	k, _ := c.Seek(seekKey)
	if k == nil {
		return 0, nil
	}
	var kcw dbtypes.ChainWork
	copy(kcw[:], k[:32])
	if !w.Less(kcw) {
		k, _ = c.Next()
		if k == nil {
			return 0, nil
		}
	}
	return getU64(k[32:]), nil
}

// EnumTips returns every row currently at NextCount == 0, regardless of
// reachability.
func (t *Transaction) EnumTips() ([]uint64, error) {
	var rows []uint64
	c := t.bucket(bucketTips).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		rows = append(rows, getU64(k[8:16]))
	}
	return rows, nil
}

// EnumFunctionalTips returns reachable tips ordered by ascending chainwork
// (the TipReachable set).
func (t *Transaction) EnumFunctionalTips() ([]uint64, error) {
	var rows []uint64
	c := t.bucket(bucketTipsReachable).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		rows = append(rows, getU64(k[32:]))
	}
	return rows, nil
}

// EnumStatesAt returns every row recorded at the given height, across all
// competing branches.
func (t *Transaction) EnumStatesAt(height dbtypes.Height) ([]uint64, error) {
	var rows []uint64
	prefix := appendU64(nil, uint64(height))
	c := t.bucket(bucketStatesByHeight).Cursor()
	for k, v := c.Seek(prefix); k != nil && len(k) >= 8 && getU64(k) == uint64(height); k, v = c.Next() {
		rows = append(rows, getU64(v))
	}
	return rows, nil
}

// EnumAncestors walks up to count ancestors of row, starting with row
// itself, stopping early at the genesis state (PrevRow == 0).
func (t *Transaction) EnumAncestors(row uint64, count int) ([]*dbtypes.State, error) {
	var out []*dbtypes.State
	cur := row
	for cur != 0 && len(out) < count {
		s, err := t.GetStateStrict(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		cur = s.PrevRow
	}
	return out, nil
}

// GetHeightBelow returns the active-chain row at exactly height, found by
// walking ancestors from the current cursor position. Returns 0 if height
// exceeds the cursor's height or the chain doesn't reach that far back.
func (t *Transaction) GetHeightBelow(height dbtypes.Height) (uint64, error) {
	cursorRow, err := t.ParamIntGetDef(ParamCursorRow, 0)
	if err != nil {
		return 0, err
	}
	if cursorRow == 0 {
		return 0, nil
	}
	cur := cursorRow
	for cur != 0 {
		s, err := t.GetStateStrict(cur)
		if err != nil {
			return 0, err
		}
		if s.Header.Height == height {
			return cur, nil
		}
		if s.Header.Height < height {
			return 0, nil
		}
		cur = s.PrevRow
	}
	return 0, nil
}

// EnumActiveBackward returns up to limit Active-flagged rows at or below
// the cursor, walking from the tip backward.
func (t *Transaction) EnumActiveBackward(limit int) ([]uint64, error) {
	cursorRow, err := t.ParamIntGetDef(ParamCursorRow, 0)
	if err != nil {
		return nil, err
	}
	var rows []uint64
	cur := cursorRow
	for cur != 0 && len(rows) < limit {
		s, err := t.GetStateStrict(cur)
		if err != nil {
			return nil, err
		}
		if !s.Flags.Active() {
			break
		}
		rows = append(rows, cur)
		cur = s.PrevRow
	}
	return rows, nil
}

// MoveFwd advances the chain cursor onto row, which must be a direct
// functional child of the current cursor position (or the very first state
// if the cursor is unset), marking row Active.
func (t *Transaction) MoveFwd(row uint64) error {
	s, err := t.GetStateStrict(row)
	if err != nil {
		return err
	}
	cursorRow, err := t.ParamIntGetDef(ParamCursorRow, 0)
	if err != nil {
		return err
	}
	if cursorRow != 0 && s.PrevRow != cursorRow {
		return errInconsistent("MoveFwd: row %d is not a child of the current cursor %d", row, cursorRow)
	}
	if !s.Flags.Functional() {
		return errInconsistent("MoveFwd: row %d is not functional", row)
	}
	s.Flags |= dbtypes.StateActive
	if err := t.putState(s); err != nil {
		return err
	}
	if err := t.ParamIntSet(ParamCursorRow, row); err != nil {
		return err
	}
	return t.ParamIntSet(ParamCursorHeight, uint64(s.Header.Height))
}

// MoveBack retreats the chain cursor from its current row to that row's
// parent, clearing Active on the row being left behind. It is the inverse
// of MoveFwd and is how a reorg unwinds the losing branch before replaying
// MoveFwd down the winning one.
func (t *Transaction) MoveBack() error {
	cursorRow, err := t.ParamIntGetDef(ParamCursorRow, 0)
	if err != nil {
		return err
	}
	if cursorRow == 0 {
		return errInconsistent("MoveBack: cursor is already at genesis")
	}
	s, err := t.GetStateStrict(cursorRow)
	if err != nil {
		return err
	}
	s.Flags &^= dbtypes.StateActive
	if err := t.putState(s); err != nil {
		return err
	}
	if err := t.ParamIntSet(ParamCursorRow, s.PrevRow); err != nil {
		return err
	}
	if s.PrevRow == 0 {
		return t.ParamDelSafe(ParamCursorHeight)
	}
	parent, err := t.GetStateStrict(s.PrevRow)
	if err != nil {
		return err
	}
	return t.ParamIntSet(ParamCursorHeight, uint64(parent.Header.Height))
}

// assertValid runs the schema-level consistency checks CheckIntegrity
// layers on top of bbolt's own page check: every row in the Tips bucket
// really has NextCount == 0, and every row in TipsReachable really is
// reachable with NextFunctionalCount == 0.
func (t *Transaction) assertValid() error {
	c := t.bucket(bucketTips).Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		row := getU64(k[8:16])
		s, err := t.GetStateStrict(row)
		if err != nil {
			return err
		}
		if s.NextCount != 0 {
			return errInconsistent("tip row %d has NextCount %d", row, s.NextCount)
		}
	}
	rc := t.bucket(bucketTipsReachable).Cursor()
	for k, _ := rc.First(); k != nil; k, _ = rc.Next() {
		row := getU64(k[32:])
		s, err := t.GetStateStrict(row)
		if err != nil {
			return err
		}
		if !s.Flags.Reachable() || s.NextFunctionalCount != 0 {
			return errInconsistent("reachable-tip row %d fails invariant (reachable=%v nextFunctional=%d)",
				row, s.Flags.Reachable(), s.NextFunctionalCount)
		}
	}
	return nil
}
