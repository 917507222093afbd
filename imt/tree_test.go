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

package imt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/stretchr/testify/require"
)

func digests(values ...string) []hashing.Digest {
	ds := make([]hashing.Digest, len(values))
	for i, v := range values {
		ds[i] = hashing.Digest(v)
	}
	return ds
}

func newJoinTree(t *testing.T, depth, arity int, leaves ...string) *Tree {
	tree, err := New(Join(","), depth, hashing.Digest("zero"), arity, digests(leaves...))
	require.NoError(t, err)
	return tree
}

func TestNew(t *testing.T) {

	testCases := []struct {
		depth, arity int
		leaves       []string
		expectedErr  error
	}{
		{3, 2, nil, nil},
		{2, 2, []string{"leaf1", "leaf2", "leaf3", "leaf4"}, nil},
		{2, 2, []string{"leaf1", "leaf2", "leaf3", "leaf4", "leaf5"}, ErrCapacityExceeded},
		{1, 3, []string{"a", "b", "c"}, nil},
		{0, 2, nil, ErrInvalidParameters},
		{2, 1, nil, ErrInvalidParameters},
	}

	for i, c := range testCases {
		tree, err := New(Join(","), c.depth, hashing.Digest("zero"), c.arity, digests(c.leaves...))
		if c.expectedErr != nil {
			require.Truef(t, errors.Is(err, c.expectedErr), "Wrong error in test case %d: %v", i, err)
			require.Nilf(t, tree, "Tree should be nil in test case %d", i)
			continue
		}
		require.NoErrorf(t, err, "Unexpected error in test case %d", i)
		require.Equalf(t, c.depth, tree.Depth(), "Wrong depth in test case %d", i)
		require.Equalf(t, c.arity, tree.Arity(), "Wrong arity in test case %d", i)
		require.Equalf(t, len(c.leaves), tree.Size(), "Wrong size in test case %d", i)
	}

	_, err := New(nil, 2, hashing.Digest("zero"), 2, nil)
	require.True(t, errors.Is(err, ErrInvalidParameters))
}

func TestZeroes(t *testing.T) {
	tree := newJoinTree(t, 3, 2)
	require.Equal(t, digests("zero", "zero,zero", "zero,zero,zero,zero"), tree.Zeroes())
	require.Equal(t, hashing.Digest("zero,zero,zero,zero,zero,zero,zero,zero"), tree.EmptyRoot())
}

func TestRoot(t *testing.T) {
	tree := newJoinTree(t, 2, 2)
	_, ok := tree.Root()
	require.False(t, ok, "An empty tree must not have a root")

	tree = newJoinTree(t, 2, 2, "leaf1", "leaf2")
	root, ok := tree.Root()
	require.True(t, ok)
	require.Equal(t, hashing.Digest("leaf1,leaf2,zero,zero"), root)
	require.Equal(t, digests("leaf1", "leaf2"), tree.Leaves())
}

func TestInsert(t *testing.T) {
	tree := newJoinTree(t, 2, 2)

	index, err := tree.Insert(hashing.Digest("leaf1"))
	require.NoError(t, err)
	require.Equal(t, 0, index)
	root, _ := tree.Root()
	require.Equal(t, hashing.Digest("leaf1,zero,zero,zero"), root)

	index, err = tree.Insert(hashing.Digest("leaf2"))
	require.NoError(t, err)
	require.Equal(t, 1, index)
	root, _ = tree.Root()
	require.Equal(t, hashing.Digest("leaf1,leaf2,zero,zero"), root)

	index, err = tree.Insert(hashing.Digest("leaf3"))
	require.NoError(t, err)
	require.Equal(t, 2, index)
	root, _ = tree.Root()
	require.Equal(t, hashing.Digest("leaf1,leaf2,leaf3,zero"), root)
}

func TestInsertMatchesBuild(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		leaves := make([]string, 0)
		incremental := newJoinTree(t, 3, arity)
		for i := 0; i < 20 && i < incremental.Capacity(); i++ {
			leaf := fmt.Sprintf("l%d", i)
			leaves = append(leaves, leaf)
			_, err := incremental.Insert(hashing.Digest(leaf))
			require.NoError(t, err)

			built := newJoinTree(t, 3, arity, leaves...)
			require.Equalf(t, built.Nodes(), incremental.Nodes(), "Diverging nodes with arity %d after %d inserts", arity, i+1)
		}
	}
}

func TestBuildInvariant(t *testing.T) {
	tree := newJoinTree(t, 3, 3, "a", "b", "c", "d", "e", "f", "g")
	nodes := tree.Nodes()
	zeroes := tree.Zeroes()
	hash := Join(",")

	for level := 0; level < tree.Depth(); level++ {
		require.Equalf(t, (len(nodes[level])+2)/3, len(nodes[level+1]), "Wrong width at level %d", level+1)
		for i, parent := range nodes[level+1] {
			children := make([]hashing.Digest, 3)
			for j := range children {
				if 3*i+j < len(nodes[level]) {
					children[j] = nodes[level][3*i+j]
				} else {
					children[j] = zeroes[level]
				}
			}
			require.Equalf(t, hash(children), parent, "Wrong node %d at level %d", i, level+1)
		}
	}
}

func TestTreeFull(t *testing.T) {
	tree := newJoinTree(t, 1, 2, "leaf1", "leaf2")
	_, err := tree.Insert(hashing.Digest("leaf3"))
	require.True(t, errors.Is(err, ErrTreeFull))
	require.Equal(t, 2, tree.Size())

	tree = newJoinTree(t, 2, 3)
	for i := 0; i < tree.Capacity(); i++ {
		_, err := tree.Insert(hashing.Digest(fmt.Sprintf("l%d", i)))
		require.NoErrorf(t, err, "Insert %d should fit", i)
	}
	_, err = tree.Insert(hashing.Digest("overflow"))
	require.True(t, errors.Is(err, ErrTreeFull))
}

func TestCapacitySaturates(t *testing.T) {
	tree, err := New(Concat(hashing.NewXorHasher()), 200, hashing.Digest{0}, 2, nil)
	require.NoError(t, err)
	require.Equal(t, maxInt, tree.Capacity())
}

func TestUpdate(t *testing.T) {
	tree := newJoinTree(t, 3, 2, "leaf1")
	require.NoError(t, tree.Update(0, hashing.Digest("new_leaf")))
	root, _ := tree.Root()
	require.Equal(t, hashing.Digest("new_leaf,zero,zero,zero,zero,zero,zero,zero"), root)

	err := tree.Update(1, hashing.Digest("x"))
	require.True(t, errors.Is(err, ErrLeafDoesNotExist))
	err = tree.Update(-1, hashing.Digest("x"))
	require.True(t, errors.Is(err, ErrLeafDoesNotExist))
}

func TestUpdateLocality(t *testing.T) {
	tree := newJoinTree(t, 3, 2, "a", "b", "c", "d", "e", "f")
	before := tree.Nodes()

	require.NoError(t, tree.Update(4, hashing.Digest("E")))
	after := tree.Nodes()

	onPath := map[[2]int]bool{}
	for level, index := 0, 4; level <= tree.Depth(); level, index = level+1, index/2 {
		onPath[[2]int{level, index}] = true
	}

	for level := range before {
		require.Equalf(t, len(before[level]), len(after[level]), "Level %d changed width", level)
		for i := range before[level] {
			if onPath[[2]int{level, i}] {
				require.NotEqualf(t, before[level][i], after[level][i], "Node %d at level %d should change", i, level)
			} else {
				require.Equalf(t, before[level][i], after[level][i], "Node %d at level %d should not change", i, level)
			}
		}
	}
}

func TestDelete(t *testing.T) {
	tree := newJoinTree(t, 2, 2, "leaf1", "leaf2")

	require.NoError(t, tree.Delete(0))
	first, _ := tree.Root()
	require.Equal(t, hashing.Digest("zero,leaf2,zero,zero"), first)
	require.Equal(t, 2, tree.Size())

	require.NoError(t, tree.Delete(0))
	second, _ := tree.Root()
	require.Equal(t, first, second, "Deleting twice must be idempotent")

	require.Equal(t, 1, tree.IndexOf(hashing.Digest("leaf2")))
}

func TestDeleteMissingLeaf(t *testing.T) {
	tree := newJoinTree(t, 3, 2, "leaf1")
	before := tree.Nodes()

	err := tree.Delete(1)
	require.True(t, errors.Is(err, ErrLeafDoesNotExist))
	require.Equal(t, before, tree.Nodes())
}

func TestLeafAndIndexOf(t *testing.T) {
	tree := newJoinTree(t, 2, 2, "a", "b", "a")

	leaf, err := tree.Leaf(1)
	require.NoError(t, err)
	require.Equal(t, hashing.Digest("b"), leaf)

	_, err = tree.Leaf(3)
	require.True(t, errors.Is(err, ErrLeafDoesNotExist))

	require.Equal(t, 0, tree.IndexOf(hashing.Digest("a")))
	require.Equal(t, -1, tree.IndexOf(hashing.Digest("c")))
}

func TestNoAliasing(t *testing.T) {
	leaf := hashing.Digest("leaf1")
	tree, err := New(Join(","), 1, hashing.Digest("zero"), 2, []hashing.Digest{leaf})
	require.NoError(t, err)

	leaf[0] = 'X'
	leaves := tree.Leaves()
	leaves[0][0] = 'Y'

	stored, _ := tree.Leaf(0)
	require.Equal(t, hashing.Digest("leaf1"), stored)
}

func TestKeccakHexTree(t *testing.T) {
	hash := HexConcat(hashing.NewKeccak256Hasher())
	tree, err := New(hash, 20, hashing.Digest("0"), 2, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := tree.Insert(hashing.Digest(fmt.Sprintf("%064x", i+1)))
		require.NoError(t, err)
	}

	root, ok := tree.Root()
	require.True(t, ok)
	require.Len(t, root, 64)

	for i := 0; i < 10; i++ {
		proof, err := tree.CreateProof(i)
		require.NoError(t, err)
		valid, err := tree.VerifyProof(proof)
		require.NoError(t, err)
		require.Truef(t, valid, "Proof %d should verify", i)
	}
}
