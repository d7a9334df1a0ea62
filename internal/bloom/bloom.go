// Package bloom wires a real Bloom filter implementation behind the
// pkg/tx.FastPath interface, so the transaction-validation fast-path
// described by the ledger's design is exercised by an actual probabilistic
// filter rather than stubbed out.
package bloom

import (
	"hash"
	"hash/fnv"

	"github.com/holiman/bloomfilter/v2"
)

// FastPath is a process-local Bloom filter recording (address, pre-nonce,
// self-balance) triples the node has observed. It satisfies
// pkg/tx.FastPath.
type FastPath struct {
	filter *bloomfilter.Filter
}

// NewFastPath constructs a filter sized for expected elements at the given
// false-positive rate. The original reference node's defaults are
// NewFastPath(1000, 0.03).
func NewFastPath(expected int, falsePositiveRate float64) (*FastPath, error) {
	f, err := bloomfilter.NewOptimal(uint64(expected), falsePositiveRate)
	if err != nil {
		return nil, err
	}
	return &FastPath{filter: f}, nil
}

// MaybePresent reports whether key may have been observed before. A false
// result is exact; a true result may be a false positive.
func (fp *FastPath) MaybePresent(key []byte) bool {
	return fp.filter.Contains(keyHash(key))
}

// Observe records key as seen.
func (fp *FastPath) Observe(key []byte) {
	fp.filter.Add(keyHash(key))
}

// keyHash turns a variable-length key into the hash.Hash64 bloomfilter.Filter
// expects, using FNV-1a (already written, ready for Sum64()).
func keyHash(key []byte) hash.Hash64 {
	h := fnv.New64a()
	h.Write(key)
	return h
}
