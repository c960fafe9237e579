package db

import "github.com/cuemby/nodedb/pkg/dbtypes"

// body.go implements the block-body store: the perishable body (raw
// transaction data, pruned once buried deep enough), the eternal body
// (kept forever, e.g. a compact commitment), the rollback blob (undo data
// for unwinding a reorg), and the peer that delivered the state. The three
// blobs are stored in their own buckets keyed by the state row rather than
// embedded in the State record, since they fossilize independently; the
// peer is kept in the State record itself (State.Peer).

// SetStateBlock attaches a perishable body, an eternal body, and the peer
// that delivered them to row. Either body may be nil.
func (t *Transaction) SetStateBlock(row uint64, perishable, eternal []byte, peer *dbtypes.PeerID) error {
	if perishable != nil {
		if err := t.put(bucketBodyPerishable, stateRowKey(row), perishable); err != nil {
			return err
		}
	}
	if eternal != nil {
		if err := t.put(bucketBodyEternal, stateRowKey(row), eternal); err != nil {
			return err
		}
	}
	if peer != nil {
		s, err := t.GetStateStrict(row)
		if err != nil {
			return err
		}
		s.Peer = peer
		if err := t.putState(s); err != nil {
			return err
		}
	}
	return nil
}

// SetStateRollback attaches undo data for unwinding row if a reorg later
// removes it from the active chain.
func (t *Transaction) SetStateRollback(row uint64, rollback []byte) error {
	return t.put(bucketBodyRollback, stateRowKey(row), rollback)
}

// GetStateBlock returns whatever body data is currently attached to row.
// Any of the returned slices may be nil if that piece was never set or has
// since been fossilized away.
func (t *Transaction) GetStateBlock(row uint64) (perishable, eternal, rollback []byte, peer *dbtypes.PeerID, err error) {
	perishable = t.get(bucketBodyPerishable, stateRowKey(row))
	eternal = t.get(bucketBodyEternal, stateRowKey(row))
	rollback = t.get(bucketBodyRollback, stateRowKey(row))
	s, err := t.GetStateStrict(row)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return perishable, eternal, rollback, s.Peer, nil
}

// DelStateBlockPP drops the perishable body and the delivering peer,
// keeping the eternal body and rollback blob. This is the shallowest
// fossilization level.
func (t *Transaction) DelStateBlockPP(row uint64) error {
	if err := t.delete(bucketBodyPerishable, stateRowKey(row)); err != nil {
		return err
	}
	s, err := t.GetStateStrict(row)
	if err != nil {
		return err
	}
	if s.Peer != nil {
		s.Peer = nil
		if err := t.putState(s); err != nil {
			return err
		}
	}
	return nil
}

// DelStateBlockPPR additionally drops the rollback blob, once a state is
// buried deep enough that a reorg past it is no longer contemplated.
func (t *Transaction) DelStateBlockPPR(row uint64) error {
	if err := t.DelStateBlockPP(row); err != nil {
		return err
	}
	return t.delete(bucketBodyRollback, stateRowKey(row))
}

// DelStateBlockAll drops every body-related blob, leaving only the bare
// State row (height, hash, flags, chainwork) behind.
func (t *Transaction) DelStateBlockAll(row uint64) error {
	if err := t.DelStateBlockPPR(row); err != nil {
		return err
	}
	return t.delete(bucketBodyEternal, stateRowKey(row))
}
