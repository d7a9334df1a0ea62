package ledger

import (
	"sync"

	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// WitnessMap holds gossiped NewState witnesses keyed by block hash. A
// witness is only ever a hint: the processor installs it for display/
// diagnostics, but state for the next block is always re-derived locally
// via StateIndex.Derive, never read back out of a witness.
type WitnessMap struct {
	mu        sync.Mutex
	witnesses map[types.Hash]Snapshot
}

// NewWitnessMap creates an empty witness map.
func NewWitnessMap() *WitnessMap {
	return &WitnessMap{witnesses: make(map[types.Hash]Snapshot)}
}

// Record stores a witness snapshot advertised for hash, overwriting any
// prior witness for the same hash.
func (w *WitnessMap) Record(hash types.Hash, snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.witnesses[hash] = snap
}

// Get returns the witness recorded for hash, if any.
func (w *WitnessMap) Get(hash types.Hash) (Snapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.witnesses[hash]
	return s, ok
}

// Delete discards the witness recorded for hash, if any — called once a
// block has been locally derived and the hint is no longer needed.
func (w *WitnessMap) Delete(hash types.Hash) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.witnesses, hash)
}
