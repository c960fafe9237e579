package db

import (
	"crypto/sha256"

	"github.com/cuemby/nodedb/pkg/dbtypes"
)

// mmr.go implements a Flat Merkle Mountain Range over a stream of hashes.
// Append maintains a list of "peaks" — roots of perfect binary subtrees,
// one per set bit of the current leaf count — merging adjacent equal-height
// peaks as they form, the same invariant a binary counter maintains on
// carry. The root is the bagged (folded) hash of every current peak,
// highest first. Each leaf is additionally persisted through a
// LeafProvider so LoadElement can be specialized (StatesMmr reads leaves
// from the state tree instead of the stream).

const streamPeaksMarker = ^uint64(0) - 1

// LeafProvider is the load/save abstraction an MMR's leaves go through.
// StreamMmr backs both ends with the fixed-record stream; StatesMmr
// overrides Load to pull leaves from the state tree directly.
type LeafProvider interface {
	Load(pos uint64) (dbtypes.Hash, bool, error)
	Save(pos uint64, h dbtypes.Hash) error
}

// BulkLeafProvider is an optional optimization a LeafProvider may implement:
// LoadRange returns leaves [0, n) in a single pass. Shrink uses it when
// available instead of calling Load once per leaf — worthwhile for a
// provider like StatesMmr, whose Load resolves each position by walking the
// active chain from the cursor, which would otherwise turn an n-leaf Shrink
// into an O(n * chain height) operation.
type BulkLeafProvider interface {
	LoadRange(n uint64) ([]dbtypes.Hash, error)
}

// StreamMmr is a Flat MMR whose leaves and peak-state live in a Stream.
type StreamMmr struct {
	tx     *Transaction
	stream *Stream
}

// NewStreamMmr opens the MMR backed by streamType.
func (t *Transaction) NewStreamMmr(streamType byte) *StreamMmr {
	return &StreamMmr{tx: t, stream: t.OpenStream(streamType, 32)}
}

// Load implements LeafProvider by reading leaf pos from the stream.
func (m *StreamMmr) Load(pos uint64) (dbtypes.Hash, bool, error) {
	n, err := m.stream.Len()
	if err != nil {
		return dbtypes.Hash{}, false, err
	}
	if pos >= n {
		return dbtypes.Hash{}, false, nil
	}
	v, err := m.stream.Get(pos)
	if err != nil {
		return dbtypes.Hash{}, false, err
	}
	var h dbtypes.Hash
	copy(h[:], v)
	return h, true, nil
}

// Save implements LeafProvider by writing leaf pos to the stream. Set
// itself handles the implicit grow-by-one case when pos == current length.
func (m *StreamMmr) Save(pos uint64, h dbtypes.Hash) error {
	return m.stream.Set(pos, h[:])
}

type mmrPeak struct {
	height uint8
	hash   dbtypes.Hash
}

func (m *StreamMmr) peaksKey() []byte {
	return streamRecordKey(m.stream.streamType, streamPeaksMarker)
}

func (m *StreamMmr) loadPeaks() ([]mmrPeak, uint64, error) {
	v := m.tx.get(bucketStreams, m.peaksKey())
	if v == nil {
		return nil, 0, nil
	}
	numLeaves := getU64(v[0:8])
	count := getU32(v[8:12])
	peaks := make([]mmrPeak, count)
	off := 12
	for i := range peaks {
		peaks[i].height = v[off]
		copy(peaks[i].hash[:], v[off+1:off+33])
		off += 33
	}
	return peaks, numLeaves, nil
}

func (m *StreamMmr) savePeaks(peaks []mmrPeak, numLeaves uint64) error {
	buf := appendU64(nil, numLeaves)
	buf = appendU32(buf, uint32(len(peaks)))
	for _, p := range peaks {
		buf = append(buf, p.height)
		buf = append(buf, p.hash[:]...)
	}
	return m.tx.put(bucketStreams, m.peaksKey(), buf)
}

func mergeHash(left, right dbtypes.Hash) dbtypes.Hash {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out dbtypes.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Append adds a new leaf, persisting it through the leaf provider and
// merging peaks as carries occur, and returns the new root.
func (m *StreamMmr) Append(leaf dbtypes.Hash, leaves LeafProvider) (dbtypes.Hash, error) {
	peaks, numLeaves, err := m.loadPeaks()
	if err != nil {
		return dbtypes.Hash{}, err
	}
	if err := leaves.Save(numLeaves, leaf); err != nil {
		return dbtypes.Hash{}, err
	}

	newPeak := mmrPeak{height: 0, hash: leaf}
	peaks = append(peaks, newPeak)
	for len(peaks) >= 2 && peaks[len(peaks)-1].height == peaks[len(peaks)-2].height {
		right := peaks[len(peaks)-1]
		left := peaks[len(peaks)-2]
		peaks = peaks[:len(peaks)-2]
		peaks = append(peaks, mmrPeak{height: left.height + 1, hash: mergeHash(left.hash, right.hash)})
	}

	numLeaves++
	if err := m.savePeaks(peaks, numLeaves); err != nil {
		return dbtypes.Hash{}, err
	}
	return bagPeaks(peaks), nil
}

func bagPeaks(peaks []mmrPeak) dbtypes.Hash {
	if len(peaks) == 0 {
		return dbtypes.Hash{}
	}
	root := peaks[len(peaks)-1].hash
	for i := len(peaks) - 2; i >= 0; i-- {
		root = mergeHash(peaks[i].hash, root)
	}
	return root
}

// Root returns the current root without appending.
func (m *StreamMmr) Root() (dbtypes.Hash, error) {
	peaks, _, err := m.loadPeaks()
	if err != nil {
		return dbtypes.Hash{}, err
	}
	return bagPeaks(peaks), nil
}

// Count returns the number of leaves appended so far.
func (m *StreamMmr) Count() (uint64, error) {
	_, n, err := m.loadPeaks()
	return n, err
}

// Shrink truncates the MMR back to n leaves, rebuilding peaks from the
// retained leaves. Used when a reorg removes states past a fork point.
func (m *StreamMmr) Shrink(n uint64, leaves LeafProvider) error {
	hashes := make([]dbtypes.Hash, n)
	if bulk, ok := leaves.(BulkLeafProvider); ok {
		h, err := bulk.LoadRange(n)
		if err != nil {
			return err
		}
		hashes = h
	} else {
		for i := uint64(0); i < n; i++ {
			h, ok, err := leaves.Load(i)
			if err != nil {
				return err
			}
			if !ok {
				return errInconsistent("mmr shrink: missing leaf %d", i)
			}
			hashes[i] = h
		}
	}

	var peaks []mmrPeak
	for _, h := range hashes {
		peaks = append(peaks, mmrPeak{height: 0, hash: h})
		for len(peaks) >= 2 && peaks[len(peaks)-1].height == peaks[len(peaks)-2].height {
			right := peaks[len(peaks)-1]
			left := peaks[len(peaks)-2]
			peaks = peaks[:len(peaks)-2]
			peaks = append(peaks, mmrPeak{height: left.height + 1, hash: mergeHash(left.hash, right.hash)})
		}
	}
	if err := m.stream.Resize(n); err != nil {
		return err
	}
	return m.savePeaks(peaks, n)
}

// StatesMmr is the specialization whose leaves are the hashes of
// consecutive active states, indexed by height: Load consults the
// state tree directly (always consistent with the active chain) instead
// of the stream, while Save still forwards to the stream so the MMR's
// internal peak bookkeeping stays intact.
type StatesMmr struct {
	*StreamMmr
}

// NewStatesMmr opens the states MMR.
func (t *Transaction) NewStatesMmr() *StatesMmr {
	return &StatesMmr{StreamMmr: t.NewStreamMmr(byte('S'))}
}

// Load returns the hash of the active state at height pos, instead of
// reading the stream.
func (m *StatesMmr) Load(pos uint64) (dbtypes.Hash, bool, error) {
	row, err := m.tx.GetHeightBelow(dbtypes.Height(pos))
	if err != nil {
		return dbtypes.Hash{}, false, err
	}
	if row == 0 {
		return dbtypes.Hash{}, false, nil
	}
	s, err := m.tx.GetStateStrict(row)
	if err != nil {
		return dbtypes.Hash{}, false, err
	}
	return s.Header.Hash, true, nil
}

// LoadRange implements BulkLeafProvider by walking the active chain once,
// from the cursor down to genesis, collecting every height below n along
// the way. Load resolves a single height by walking from the cursor every
// time; calling it once per leaf during a Shrink would re-walk the same
// chain n times, so Shrink prefers this single-pass form instead.
func (m *StatesMmr) LoadRange(n uint64) ([]dbtypes.Hash, error) {
	out := make([]dbtypes.Hash, n)
	filled := make([]bool, n)

	cursorRow, err := m.tx.ParamIntGetDef(ParamCursorRow, 0)
	if err != nil {
		return nil, err
	}
	cur := cursorRow
	for cur != 0 {
		s, err := m.tx.GetStateStrict(cur)
		if err != nil {
			return nil, err
		}
		if uint64(s.Header.Height) < n {
			out[s.Header.Height] = s.Header.Hash
			filled[s.Header.Height] = true
		}
		cur = s.PrevRow
	}
	for i, ok := range filled {
		if !ok {
			return nil, errInconsistent("mmr shrink: missing leaf %d", i)
		}
	}
	return out, nil
}
