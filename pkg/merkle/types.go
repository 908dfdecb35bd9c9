package merkle

import (
	"errors"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

var (
	// ErrEmptyLeafSet is returned by Build when there is nothing to build a tree from
	ErrEmptyLeafSet = errors.New("cannot build merkle tree from empty leaf set")

	// ErrNotFound is returned when no leaf in the tree carries the requested digest
	ErrNotFound = errors.New("leaf not found in merkle tree")

	// ErrMalformedProof is returned for proofs that cannot be decoded or folded
	ErrMalformedProof = errors.New("malformed merkle proof")
)

// NodeKind tags the variant held by a Node
type NodeKind uint8

const (
	KindLeaf NodeKind = iota
	KindInner
)

// NoChild marks an absent right child of an inner node
const NoChild = -1

// Node is one entry in a tree's arena. Leaves carry their value in Digest. Inner
// nodes reference children by arena index and have Digest computed once at build time.
type Node struct {
	Kind   NodeKind
	Digest types.Digest
	Left   int
	Right  int
}

// Tree is an immutable binary merkle tree. Nodes live in a flat arena and the
// root is the last node appended.
type Tree struct {
	nodes     []Node
	root      int
	leafCount int
}

// ProofStep is one level of an inclusion proof, ordered from the leaf upward.
// A nil Sibling means the node had no sibling at that level and the parent digest
// is SHA-256 of the node digest alone.
type ProofStep struct {
	SiblingIsLeft bool
	Sibling       *types.Digest
}

// Proof is an inclusion proof from a leaf to the root
type Proof []ProofStep
