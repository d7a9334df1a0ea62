package block

import (
	"github.com/Klingon-tech/ledgercore/pkg/crypto"
	"github.com/Klingon-tech/ledgercore/pkg/types"
)

// ComputeMerkleRoot calculates the merkle root of transaction hashes.
//
// Algorithm:
//   - 0 hashes: returns zero hash
//   - 1 hash: returns that hash
//   - Otherwise: pairwise hash, duplicating the last element if odd count,
//     then recurse on the resulting layer until one hash remains.
func ComputeMerkleRoot(txHashes []types.Hash) types.Hash {
	levels := merkleLevels(txHashes)
	if levels == nil {
		return types.Hash{}
	}
	return levels[len(levels)-1][0]
}

// ProofStep is one sibling hash on a merkle audit path, with a flag
// recording whether the sibling sits on the left or the right of the node
// being proved at that level.
type ProofStep struct {
	Sibling types.Hash
	Left    bool // true if Sibling is the left-hand operand of HashConcat
}

// Proof is the ordered sequence of sibling hashes needed to recompute the
// merkle root from a single leaf hash.
type Proof []ProofStep

// BuildProof returns the merkle proof for the leaf at index i among
// txHashes. The caller verifies it with VerifyProof.
func BuildProof(txHashes []types.Hash, i int) (Proof, error) {
	if i < 0 || i >= len(txHashes) {
		return nil, errIndexOutOfRange
	}

	levels := merkleLevels(txHashes)
	var proof Proof
	idx := i
	for level := 0; level < len(levels)-1; level++ {
		cur := levels[level]
		siblingIdx := idx ^ 1
		if siblingIdx >= len(cur) {
			siblingIdx = idx // odd tail duplicated itself
		}
		proof = append(proof, ProofStep{
			Sibling: cur[siblingIdx],
			Left:    siblingIdx < idx,
		})
		idx /= 2
	}
	return proof, nil
}

// VerifyProof recomputes the merkle root from leaf using proof and reports
// whether it matches root.
func VerifyProof(leaf types.Hash, proof Proof, root types.Hash) bool {
	cur := leaf
	for _, step := range proof {
		if step.Left {
			cur = crypto.HashConcat(step.Sibling, cur)
		} else {
			cur = crypto.HashConcat(cur, step.Sibling)
		}
	}
	return cur == root
}

// merkleLevels builds every level of the tree, leaves first, root last.
// Returns nil for an empty input.
func merkleLevels(txHashes []types.Hash) [][]types.Hash {
	if len(txHashes) == 0 {
		return nil
	}

	level := make([]types.Hash, len(txHashes))
	copy(level, txHashes)
	levels := [][]types.Hash{level}

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
			levels[len(levels)-1] = level
		}

		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = crypto.HashConcat(level[i], level[i+1])
		}
		level = next
		levels = append(levels, level)
	}

	return levels
}

type merkleError string

func (e merkleError) Error() string { return string(e) }

const errIndexOutOfRange = merkleError("merkle: leaf index out of range")
