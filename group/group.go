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

// Package group implements group-membership accumulators on top of
// incremental Merkle trees, and a registry of administered groups.
package group

import (
	"bytes"
	"fmt"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/imt"
)

// Group is a set of commitments accumulated in an incremental Merkle tree.
// A removed commitment leaves a zero leaf behind: its index is never reused
// and re-adding the commitment appends it at a new index.
type Group struct {
	id      uint64
	params  Params
	tree    *imt.Tree
	members map[string]int
}

// NewGroup returns an empty group.
func NewGroup(id uint64, params Params) (*Group, error) {
	return newGroup(id, params, nil)
}

// newGroup rebuilds a group from its leaves, zeroed ones included.
func newGroup(id uint64, params Params, leaves []hashing.Digest) (*Group, error) {
	hash, err := params.Validate()
	if err != nil {
		return nil, err
	}
	tree, err := imt.New(hash, params.Depth, params.ZeroValue, params.Arity, leaves)
	if err != nil {
		return nil, err
	}
	g := &Group{
		id:      id,
		params:  params,
		tree:    tree,
		members: make(map[string]int, len(leaves)),
	}
	for i, leaf := range leaves {
		if g.isZero(leaf) {
			continue
		}
		if _, ok := g.members[string(leaf)]; ok {
			return nil, fmt.Errorf("%w: duplicated leaf at index %d", ErrLeafAlreadyExists, i)
		}
		g.members[string(leaf)] = i
	}
	return g, nil
}

func (g *Group) ID() uint64 { return g.id }

func (g *Group) Params() Params { return g.params }

func (g *Group) Depth() int { return g.tree.Depth() }

func (g *Group) Arity() int { return g.tree.Arity() }

// Size returns the number of leaves, removed members included.
func (g *Group) Size() int { return g.tree.Size() }

// Root returns the current tree root. An empty group reports the root of an
// all-zero tree.
func (g *Group) Root() hashing.Digest {
	if root, ok := g.tree.Root(); ok {
		return root
	}
	return g.tree.EmptyRoot()
}

// HasMember tells whether commitment is a current member of the group.
func (g *Group) HasMember(commitment hashing.Digest) bool {
	_, ok := g.members[string(commitment)]
	return ok
}

// IndexOf returns the leaf index of a current member.
func (g *Group) IndexOf(commitment hashing.Digest) (int, error) {
	index, ok := g.members[string(commitment)]
	if !ok {
		return -1, ErrLeafDoesNotExist
	}
	return index, nil
}

// Members returns the current members in index order.
func (g *Group) Members() []hashing.Digest {
	members := make([]hashing.Digest, 0, len(g.members))
	for _, leaf := range g.tree.Leaves() {
		if !g.isZero(leaf) {
			members = append(members, leaf)
		}
	}
	return members
}

// Leaves returns every leaf, zeroed ones included.
func (g *Group) Leaves() []hashing.Digest { return g.tree.Leaves() }

// Zeroes returns the zero value of every tree level.
func (g *Group) Zeroes() []hashing.Digest { return g.tree.Zeroes() }

// AddMember appends commitment to the tree. It returns the leaf index and
// the new root.
func (g *Group) AddMember(commitment hashing.Digest) (int, hashing.Digest, error) {
	if err := g.checkNew(commitment); err != nil {
		return -1, nil, err
	}
	index, err := g.tree.Insert(commitment)
	if err != nil {
		return -1, nil, err
	}
	g.members[string(commitment)] = index
	return index, g.Root(), nil
}

// AddMembers appends every commitment or none of them. It returns the index
// of the first one and the new root.
func (g *Group) AddMembers(commitments []hashing.Digest) (int, hashing.Digest, error) {
	if len(commitments) == 0 {
		return -1, nil, ErrNoMembers
	}
	seen := make(map[string]bool, len(commitments))
	for _, c := range commitments {
		if err := g.checkNew(c); err != nil {
			return -1, nil, err
		}
		if seen[string(c)] {
			return -1, nil, fmt.Errorf("%w: %x repeated in batch", ErrLeafAlreadyExists, c)
		}
		seen[string(c)] = true
	}
	if g.tree.Size()+len(commitments) > g.tree.Capacity() {
		return -1, nil, imt.ErrTreeFull
	}

	start := g.tree.Size()
	for _, c := range commitments {
		index, err := g.tree.Insert(c)
		if err != nil {
			// unreachable after the capacity check
			return -1, nil, err
		}
		g.members[string(c)] = index
	}
	return start, g.Root(), nil
}

// UpdateMember replaces a member. siblings must be the current sibling path
// of the member leaf.
func (g *Group) UpdateMember(old, updated hashing.Digest, siblings [][]hashing.Digest) (int, hashing.Digest, error) {
	index, err := g.IndexOf(old)
	if err != nil {
		return -1, nil, err
	}
	if err := g.checkNew(updated); err != nil {
		return -1, nil, err
	}
	if err := g.checkSiblings(index, old, siblings); err != nil {
		return -1, nil, err
	}
	if err := g.tree.Update(index, updated); err != nil {
		return -1, nil, err
	}
	delete(g.members, string(old))
	g.members[string(updated)] = index
	return index, g.Root(), nil
}

// RemoveMember zeroes the leaf of a member. siblings must be the current
// sibling path of the member leaf.
func (g *Group) RemoveMember(commitment hashing.Digest, siblings [][]hashing.Digest) (int, hashing.Digest, error) {
	index, err := g.IndexOf(commitment)
	if err != nil {
		return -1, nil, err
	}
	if err := g.checkSiblings(index, commitment, siblings); err != nil {
		return -1, nil, err
	}
	if err := g.tree.Delete(index); err != nil {
		return -1, nil, err
	}
	delete(g.members, string(commitment))
	return index, g.Root(), nil
}

// GenerateProof returns a membership proof of a current member.
func (g *Group) GenerateProof(commitment hashing.Digest) (*imt.MerkleProof, error) {
	index, err := g.IndexOf(commitment)
	if err != nil {
		return nil, err
	}
	return g.tree.CreateProof(index)
}

// VerifyProof checks a proof against the group hash function and arity.
// The proof root is not compared with the current root.
func (g *Group) VerifyProof(proof *imt.MerkleProof) (bool, error) {
	return g.tree.VerifyProof(proof)
}

func (g *Group) isZero(leaf hashing.Digest) bool {
	return bytes.Equal(leaf, g.params.ZeroValue)
}

func (g *Group) checkNew(commitment hashing.Digest) error {
	if len(commitment) == 0 || g.isZero(commitment) {
		return ErrLeafCannotBeZero
	}
	if g.params.HexText() && !isHexText(commitment) {
		return ErrLeafNotHexText
	}
	if g.HasMember(commitment) {
		return ErrLeafAlreadyExists
	}
	return nil
}

// checkSiblings requires siblings to rebuild the current root from leaf.
func (g *Group) checkSiblings(index int, leaf hashing.Digest, siblings [][]hashing.Digest) error {
	pathIndices := make([]int, g.tree.Depth())
	for level, current := 0, index; level < len(pathIndices); level, current = level+1, current/g.tree.Arity() {
		pathIndices[level] = current % g.tree.Arity()
	}
	root, _ := g.tree.Root()
	proof := &imt.MerkleProof{
		Root:        root,
		Leaf:        leaf,
		PathIndices: pathIndices,
		Siblings:    siblings,
	}
	ok, err := g.tree.VerifyProof(proof)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrongSiblingNodes, err)
	}
	if !ok {
		return ErrWrongSiblingNodes
	}
	return nil
}
