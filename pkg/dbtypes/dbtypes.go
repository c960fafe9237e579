// Package dbtypes defines the domain types shared by the node database
// engine in pkg/db. It mirrors the role of a plain value-types package: no
// bbolt import, no encoding logic, just the shapes the database persists.
package dbtypes

// Height is a block height. Height 0 is genesis.
type Height = uint64

// TxoID is a monotonically increasing transaction-output identifier.
type TxoID = uint64

// AssetID is a densely packed fungible-asset identifier, allocated from 1.
type AssetID = uint32

// Hash is a 32-byte cryptographic digest (block hash, kernel hash, BBS key,
// contract id). The node database treats it as an opaque, fixed-width key.
type Hash [32]byte

// PeerID is a 32-byte peer identifier.
type PeerID [32]byte

// ChainWork is a big-endian encoded cumulative-difficulty accumulator.
// Lexicographic byte comparison of two ChainWork values matches numeric
// comparison of the underlying big integer.
type ChainWork [32]byte

// Less reports whether w is strictly less than other.
func (w ChainWork) Less(other ChainWork) bool {
	for i := 0; i < len(w); i++ {
		if w[i] != other[i] {
			return w[i] < other[i]
		}
	}
	return false
}

// StateFlags holds the three nested bits of a state's validation progress:
// Active ⊆ Reachable ⊆ Functional.
type StateFlags uint32

const (
	// StateFunctional means the state has a block body attached.
	StateFunctional StateFlags = 1 << iota
	// StateReachable means every ancestor up to genesis is Functional.
	StateReachable
	// StateActive means the state lies on the current main branch.
	StateActive
)

func (f StateFlags) Functional() bool { return f&StateFunctional != 0 }
func (f StateFlags) Reachable() bool  { return f&StateReachable != 0 }
func (f StateFlags) Active() bool     { return f&StateActive != 0 }

// Header is the portion of a block header the database understands. The
// remainder of the real consensus header (kernel/definition roots, PoW
// solution) is out of scope — block validation is an external collaborator
// — and is carried as an opaque Raw blob.
type Header struct {
	Height    Height
	Hash      Hash
	Prev      Hash
	ChainWork ChainWork
	Timestamp uint64
	Raw       []byte
}

// State is one row of the block tree.
type State struct {
	Row                 uint64
	Header              Header
	PrevRow             uint64 // 0 if the parent isn't in the database yet
	Flags               StateFlags
	NextCount           uint32
	NextFunctionalCount uint32
	Peer                *PeerID
	TxoHi               TxoID // TXO id upper bound as of this state
	Extra               []byte
}

// StateID names a state by both its row and its height, matching the
// original NodeDB::StateID pair used throughout tip/cursor navigation.
type StateID struct {
	Row    uint64
	Height Height
}

// IsNull reports whether the StateID names no state.
func (s StateID) IsNull() bool { return s.Row == 0 }

// StateInput is the packed on-disk form of a spent TXO reference inside a
// state's input list.
type StateInput struct {
	CommX   [32]byte
	Txo     TxoID
	YParity uint8
}

// IsLess compares first by CommX, then by the packed Txo/Y field, matching
// the sort order StateInput must have on disk.
func (a StateInput) IsLess(b StateInput) bool {
	for i := 0; i < len(a.CommX); i++ {
		if a.CommX[i] != b.CommX[i] {
			return a.CommX[i] < b.CommX[i]
		}
	}
	// The packed field carries the y-parity in its high bit above the
	// 63-bit TXO ID, so parity orders before the ID.
	pa := uint64(a.YParity&1)<<63 | uint64(a.Txo)
	pb := uint64(b.YParity&1)<<63 | uint64(b.Txo)
	return pa < pb
}

// HeightPos is a sortable (height, index) composite key used by contract
// logs and kernel-info.
type HeightPos struct {
	Height Height
	Idx    uint32
}

// Less reports whether p sorts before other under HeightPosPacked order.
func (p HeightPos) Less(other HeightPos) bool {
	if p.Height != other.Height {
		return p.Height < other.Height
	}
	return p.Idx < other.Idx
}

// Txo is one unspent-or-spent transaction output index entry.
type Txo struct {
	ID          TxoID
	Value       []byte
	SpendHeight *Height
}

// Event is an append-only, (height,index)-ordered, key-addressable log
// entry.
type Event struct {
	Height Height
	Index  uint32
	Key    []byte
	Body   []byte
}

// Dummy is a scheduled decoy-output key, planted at a future height.
type Dummy struct {
	KeyID  []byte
	Height Height
}

// Peer is one row of the peer-reputation table.
type Peer struct {
	ID       PeerID
	Rating   int32
	Address  uint64
	LastSeen int64
}

// BbsMessage is one broadcast-bus message.
type BbsMessage struct {
	ID      uint64
	Key     Hash
	Channel uint32
	Time    int64
	Message []byte
	Nonce   uint32
}

// BbsTotals tracks the aggregate message count and byte size.
type BbsTotals struct {
	Count uint32
	Size  uint64
}

// Asset is one row of the fungible-asset registry.
type Asset struct {
	ID         AssetID
	Owner      PeerID
	Value      []byte
	LockHeight Height
	Metadata   []byte
	Used       bool
}

// AssetEvent is one entry in an asset's per-height event log.
type AssetEvent struct {
	AssetID AssetID
	Height  Height
	Index   uint64
	Body    []byte
}

// ContractLogEntry is one append-only contract-log row.
type ContractLogEntry struct {
	Pos HeightPos
	Key []byte
	Val []byte
}

// KrnInfoEntry is one kernel-info row, additionally indexed by Cid.
type KrnInfoEntry struct {
	Pos HeightPos
	Cid Hash
	Val []byte
}

// CacheState is the persisted aggregate state of the content-addressed
// cache.
type CacheState struct {
	HitCounter  uint64
	SizeMax     uint64
	SizeCurrent uint64
}
