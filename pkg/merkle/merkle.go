// Package merkle builds SHA-256 merkle trees over stored items and produces and
// checks inclusion proofs for them.
//
// Leaves are ordered by FileID so that the same set of items always yields the same
// top hash. When the leaf count is odd the last leaf is duplicated. Higher layers
// pair nodes 2i and 2i+1, and an unpaired node becomes the only child of its parent,
// whose digest is SHA-256 of that child's digest.
package merkle

import (
	"fmt"
	"slices"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// Build creates a tree from leaf digests keyed by the id of the item they belong to.
func Build(leaves map[types.FileID]types.Digest) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyLeafSet
	}

	ids := SortFileIDs(leaves)

	leafCount := len(ids)
	if leafCount%2 == 1 {
		leafCount++
	}

	t := &Tree{
		nodes:     make([]Node, 0, 2*leafCount),
		leafCount: leafCount,
	}

	layer := make([]int, 0, leafCount)
	for _, id := range ids {
		layer = append(layer, t.addLeaf(leaves[id]))
	}
	if len(ids)%2 == 1 {
		layer = append(layer, t.addLeaf(leaves[ids[len(ids)-1]]))
	}

	for len(layer) > 1 {
		next := make([]int, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			right := NoChild
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, t.addInner(layer[i], right))
		}
		layer = next
	}

	t.root = layer[0]
	return t, nil
}

// SortFileIDs returns the keys of leaves in ascending unsigned byte order
func SortFileIDs(leaves map[types.FileID]types.Digest) []types.FileID {
	ids := make([]types.FileID, 0, len(leaves))
	for id := range leaves {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b types.FileID) int {
		return a.Compare(b)
	})
	return ids
}

func (t *Tree) addLeaf(value types.Digest) int {
	t.nodes = append(t.nodes, Node{
		Kind:   KindLeaf,
		Digest: value,
		Left:   NoChild,
		Right:  NoChild,
	})
	return len(t.nodes) - 1
}

func (t *Tree) addInner(left, right int) int {
	var rightDigest *types.Digest
	if right != NoChild {
		d := t.nodes[right].Digest
		rightDigest = &d
	}
	t.nodes = append(t.nodes, Node{
		Kind:   KindInner,
		Digest: crypto.HashPair(t.nodes[left].Digest, rightDigest),
		Left:   left,
		Right:  right,
	})
	return len(t.nodes) - 1
}

// TopHash returns the root digest
func (t *Tree) TopHash() types.Digest {
	return t.nodes[t.root].Digest
}

// LeafCount returns the number of leaves including the padding duplicate
func (t *Tree) LeafCount() int {
	return t.leafCount
}

// Depth returns the number of levels above the leaves, which is also the length
// of every proof the tree produces.
func (t *Tree) Depth() int {
	depth := 0
	for i := t.root; t.nodes[i].Kind == KindInner; i = t.nodes[i].Left {
		depth++
	}
	return depth
}

// ProofFor returns the inclusion proof of the leftmost leaf whose digest is leaf.
// All leaves sit at the same depth, so leftmost is also the first match in
// breadth-first order.
func (t *Tree) ProofFor(leaf types.Digest) (Proof, error) {
	proof, found := t.search(t.root, leaf)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, leaf.Hex())
	}
	return proof, nil
}

// search walks down from node i and returns the proof steps from the matching
// leaf up to, but not including, node i.
func (t *Tree) search(i int, target types.Digest) (Proof, bool) {
	n := t.nodes[i]
	if n.Kind == KindLeaf {
		return Proof{}, n.Digest == target
	}

	if steps, ok := t.search(n.Left, target); ok {
		var sibling *types.Digest
		if n.Right != NoChild {
			d := t.nodes[n.Right].Digest
			sibling = &d
		}
		return append(steps, ProofStep{SiblingIsLeft: false, Sibling: sibling}), true
	}

	if n.Right != NoChild {
		if steps, ok := t.search(n.Right, target); ok {
			d := t.nodes[n.Left].Digest
			return append(steps, ProofStep{SiblingIsLeft: true, Sibling: &d}), true
		}
	}
	return nil, false
}

// Reconstruct folds the proof from leaf to root and returns the resulting top hash.
// It is how an uploader learns the new root without holding the rest of the tree.
func Reconstruct(leaf types.Digest, proof Proof) (types.Digest, error) {
	current := leaf
	for i, step := range proof {
		if step.SiblingIsLeft {
			if step.Sibling == nil {
				return types.Digest{}, fmt.Errorf("%w: step %d has a left sibling without a digest", ErrMalformedProof, i)
			}
			current = crypto.HashPair(*step.Sibling, &current)
			continue
		}
		current = crypto.HashPair(current, step.Sibling)
	}
	return current, nil
}

// Verify reports whether folding proof from leaf yields trustedRoot
func Verify(leaf, trustedRoot types.Digest, proof Proof) bool {
	root, err := Reconstruct(leaf, proof)
	if err != nil {
		return false
	}
	return root == trustedRoot
}
