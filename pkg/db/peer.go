package db

import (
	"sort"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

// peer.go implements the peer-reputation table: one row per PeerID,
// carrying a rating, a packed network address, and a last-seen timestamp.
// Like the dummy set, the peer table is expected to stay small (bounded by
// the node's peer-discovery policy), so rating-descending enumeration
// sorts in memory rather than maintaining a standing rating index.

func peerKey(id dbtypes.PeerID) []byte { return append([]byte(nil), id[:]...) }

func packPeer(p dbtypes.Peer) []byte {
	buf := make([]byte, 0, 32+4+8+8)
	buf = appendU32(buf, uint32(p.Rating))
	buf = appendU64(buf, p.Address)
	buf = appendU64(buf, uint64(p.LastSeen))
	return buf
}

func unpackPeer(id dbtypes.PeerID, v []byte) dbtypes.Peer {
	return dbtypes.Peer{
		ID:       id,
		Rating:   int32(getU32(v[0:4])),
		Address:  getU64(v[4:12]),
		LastSeen: int64(getU64(v[12:20])),
	}
}

// PeerUpsert inserts or replaces a peer row.
func (t *Transaction) PeerUpsert(p dbtypes.Peer) error {
	return t.put(bucketPeers, peerKey(p.ID), packPeer(p))
}

// PeerGet returns the peer row for id, or found=false if absent.
func (t *Transaction) PeerGet(id dbtypes.PeerID) (p dbtypes.Peer, found bool, err error) {
	v := t.get(bucketPeers, peerKey(id))
	if v == nil {
		return dbtypes.Peer{}, false, nil
	}
	return unpackPeer(id, v), true, nil
}

// PeerDelete removes a peer row.
func (t *Transaction) PeerDelete(id dbtypes.PeerID) error {
	return t.delete(bucketPeers, peerKey(id))
}

// EnumPeersByRating returns every peer ordered by rating descending.
func (t *Transaction) EnumPeersByRating() ([]dbtypes.Peer, error) {
	var peers []dbtypes.Peer
	c := t.bucket(bucketPeers).Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var id dbtypes.PeerID
		copy(id[:], k)
		peers = append(peers, unpackPeer(id, v))
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].Rating > peers[j].Rating })
	return peers, nil
}
