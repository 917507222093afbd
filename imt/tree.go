/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package imt implements an incremental Merkle tree of arbitrary arity and
// fixed depth. Absent children are replaced by a per level zero value, so
// only the populated prefix of every level is stored and a mutation only
// recomputes the nodes on the path from the touched leaf to the root.
package imt

import (
	"bytes"
	"fmt"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
)

// HashFunction combines exactly arity children into their parent node.
type HashFunction func(children []hashing.Digest) hashing.Digest

// Tree is an incremental Merkle tree. It is not safe for concurrent use:
// callers sharing a tree must serialize access to it.
type Tree struct {
	// nodes[0] are the leaves and nodes[depth] holds the root.
	nodes  [][]hashing.Digest
	zeroes []hashing.Digest
	hash   HashFunction
	depth  int
	arity  int
}

// New builds a tree of the given depth and arity holding the given leaves.
// The leaves are copied.
func New(hash HashFunction, depth int, zeroValue hashing.Digest, arity int, leaves []hashing.Digest) (*Tree, error) {
	if hash == nil || depth < 1 || arity < 2 {
		return nil, fmt.Errorf("%w: depth=%d arity=%d", ErrInvalidParameters, depth, arity)
	}
	if len(leaves) > capacity(depth, arity) {
		return nil, fmt.Errorf("%w: %d leaves", ErrCapacityExceeded, len(leaves))
	}

	t := &Tree{
		nodes:  make([][]hashing.Digest, depth+1),
		zeroes: make([]hashing.Digest, depth),
		hash:   hash,
		depth:  depth,
		arity:  arity,
	}

	zero := clone(zeroValue)
	for level := 0; level < depth; level++ {
		t.zeroes[level] = zero
		zero = hash(repeat(zero, arity))
	}

	t.nodes[0] = make([]hashing.Digest, len(leaves))
	for i, leaf := range leaves {
		t.nodes[0][i] = clone(leaf)
	}

	for level := 0; level < depth; level++ {
		current := t.nodes[level]
		parents := make([]hashing.Digest, 0, (len(current)+arity-1)/arity)
		for start := 0; start < len(current); start += arity {
			parents = append(parents, hash(t.children(level, start, -1, nil)))
		}
		t.nodes[level+1] = parents
	}

	log.Debugf("imt: built tree depth=%d arity=%d leaves=%d", depth, arity, len(leaves))
	return t, nil
}

// Root returns the root of the tree. A tree without leaves has no root.
func (t *Tree) Root() (hashing.Digest, bool) {
	if len(t.nodes[t.depth]) == 0 {
		return nil, false
	}
	return clone(t.nodes[t.depth][0]), true
}

// EmptyRoot returns the root the tree would have if every leaf were the
// zero value.
func (t *Tree) EmptyRoot() hashing.Digest {
	return t.hash(repeat(t.zeroes[t.depth-1], t.arity))
}

// Insert appends a leaf at the next free index and returns that index.
func (t *Tree) Insert(leaf hashing.Digest) (int, error) {
	index := len(t.nodes[0])
	if index >= t.Capacity() {
		return -1, ErrTreeFull
	}
	t.update(index, leaf)
	metrics.TreeInserts.Inc()
	return index, nil
}

// Update replaces the leaf at index and recomputes its path to the root.
func (t *Tree) Update(index int, leaf hashing.Digest) error {
	if index < 0 || index >= len(t.nodes[0]) {
		return fmt.Errorf("%w: index %d", ErrLeafDoesNotExist, index)
	}
	t.update(index, leaf)
	metrics.TreeUpdates.Inc()
	return nil
}

// Delete overwrites the leaf at index with the zero value. The slot stays
// allocated, so the indices of the other leaves never move.
func (t *Tree) Delete(index int) error {
	if index < 0 || index >= len(t.nodes[0]) {
		return fmt.Errorf("%w: index %d", ErrLeafDoesNotExist, index)
	}
	t.update(index, t.zeroes[0])
	metrics.TreeDeletes.Inc()
	return nil
}

// update hashes the new path into a scratch slice and only then writes it
// into the tree. index may be len(leaves) to append.
func (t *Tree) update(index int, leaf hashing.Digest) {
	path := make([]hashing.Digest, t.depth+1)
	node := clone(leaf)
	path[0] = node

	current := index
	for level := 0; level < t.depth; level++ {
		position := current % t.arity
		node = t.hash(t.children(level, current-position, position, node))
		path[level+1] = node
		current /= t.arity
	}

	current = index
	for level := 0; level <= t.depth; level++ {
		if current < len(t.nodes[level]) {
			t.nodes[level][current] = path[level]
		} else {
			t.nodes[level] = append(t.nodes[level], path[level])
		}
		current /= t.arity
	}
	log.Debugf("imt: updated path of leaf %d", index)
}

// children returns the arity nodes of level starting at start, padded with
// the level zero value. When position is not negative the child at that
// position is replaced by node.
func (t *Tree) children(level, start, position int, node hashing.Digest) []hashing.Digest {
	children := make([]hashing.Digest, t.arity)
	current := t.nodes[level]
	for i := range children {
		switch {
		case i == position:
			children[i] = node
		case start+i < len(current):
			children[i] = current[start+i]
		default:
			children[i] = t.zeroes[level]
		}
	}
	return children
}

// CreateProof returns a membership proof for the leaf at index. The proof
// is a snapshot: later mutations of the tree do not change it.
func (t *Tree) CreateProof(index int) (*MerkleProof, error) {
	if index < 0 || index >= len(t.nodes[0]) {
		return nil, fmt.Errorf("%w: index %d", ErrLeafDoesNotExist, index)
	}

	proof := &MerkleProof{
		Root:        clone(t.nodes[t.depth][0]),
		Leaf:        clone(t.nodes[0][index]),
		PathIndices: make([]int, t.depth),
		Siblings:    make([][]hashing.Digest, t.depth),
	}

	current := index
	for level := 0; level < t.depth; level++ {
		position := current % t.arity
		start := current - position
		siblings := make([]hashing.Digest, 0, t.arity-1)
		for i, child := range t.children(level, start, -1, nil) {
			if i != position {
				siblings = append(siblings, clone(child))
			}
		}
		proof.PathIndices[level] = position
		proof.Siblings[level] = siblings
		current /= t.arity
	}

	metrics.TreeProofs.Inc()
	return proof, nil
}

// VerifyProof checks a proof with the tree hash function and arity. The
// proof must also have one sibling group per tree level.
func (t *Tree) VerifyProof(proof *MerkleProof) (bool, error) {
	if proof != nil && len(proof.Siblings) != t.depth {
		return false, fmt.Errorf("%w: %d levels, tree depth is %d", ErrMalformedProof, len(proof.Siblings), t.depth)
	}
	return VerifyProof(t.hash, t.arity, proof)
}

// Depth returns the number of levels above the leaves.
func (t *Tree) Depth() int { return t.depth }

// Arity returns the number of children per node.
func (t *Tree) Arity() int { return t.arity }

// Size returns the number of leaf slots in use, zeroed ones included.
func (t *Tree) Size() int { return len(t.nodes[0]) }

// Capacity returns arity^depth, saturated at the largest int on overflow.
func (t *Tree) Capacity() int { return capacity(t.depth, t.arity) }

// Leaves returns a copy of the leaves.
func (t *Tree) Leaves() []hashing.Digest { return cloneAll(t.nodes[0]) }

// Zeroes returns a copy of the per level zero values.
func (t *Tree) Zeroes() []hashing.Digest { return cloneAll(t.zeroes) }

// Leaf returns the leaf at index.
func (t *Tree) Leaf(index int) (hashing.Digest, error) {
	if index < 0 || index >= len(t.nodes[0]) {
		return nil, fmt.Errorf("%w: index %d", ErrLeafDoesNotExist, index)
	}
	return clone(t.nodes[0][index]), nil
}

// IndexOf returns the first index holding leaf, or -1.
func (t *Tree) IndexOf(leaf hashing.Digest) int {
	for i, l := range t.nodes[0] {
		if bytes.Equal(l, leaf) {
			return i
		}
	}
	return -1
}

// Nodes returns a deep copy of every level, leaves first.
func (t *Tree) Nodes() [][]hashing.Digest {
	nodes := make([][]hashing.Digest, len(t.nodes))
	for i, level := range t.nodes {
		nodes[i] = cloneAll(level)
	}
	return nodes
}

const maxInt = int(^uint(0) >> 1)

func capacity(depth, arity int) int {
	c := 1
	for i := 0; i < depth; i++ {
		if c > maxInt/arity {
			return maxInt
		}
		c *= arity
	}
	return c
}

func repeat(d hashing.Digest, n int) []hashing.Digest {
	r := make([]hashing.Digest, n)
	for i := range r {
		r[i] = d
	}
	return r
}

func clone(d hashing.Digest) hashing.Digest {
	if d == nil {
		return nil
	}
	c := make(hashing.Digest, len(d))
	copy(c, d)
	return c
}

func cloneAll(ds []hashing.Digest) []hashing.Digest {
	c := make([]hashing.Digest, len(ds))
	for i, d := range ds {
		c[i] = clone(d)
	}
	return c
}
