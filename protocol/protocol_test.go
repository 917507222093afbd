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

package protocol

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/imt"
)

func TestDecodeDigest(t *testing.T) {

	testCases := []struct {
		input    string
		expected hashing.Digest
		valid    bool
	}{
		{"00ff", hashing.Digest{0x00, 0xff}, true},
		{"ABCD", hashing.Digest{0xab, 0xcd}, true},
		{"", hashing.Digest{}, true},
		{"abc", nil, false},
		{"zz", nil, false},
	}

	for i, c := range testCases {
		d, err := DecodeDigest(c.input)
		if !c.valid {
			require.Errorf(t, err, "Expected error in test case %d", i)
			continue
		}
		require.NoErrorf(t, err, "Unexpected error in test case %d", i)
		require.Equalf(t, c.expected, d, "Wrong digest in test case %d", i)
		require.Equalf(t, strings.ToLower(c.input), EncodeDigest(d), "Wrong encoding in test case %d", i)
	}
}

func TestMerkleProofTranslation(t *testing.T) {

	testCases := []*imt.MerkleProof{
		{
			Root:        hashing.Digest("leaf1,leaf2,zero,zero"),
			Leaf:        hashing.Digest("leaf1"),
			PathIndices: []int{0, 0},
			Siblings:    [][]hashing.Digest{{hashing.Digest("leaf2")}, {hashing.Digest("zero,zero")}},
		},
		{
			Root:        hashing.Digest{0x01, 0x02},
			Leaf:        hashing.Digest{0x03},
			PathIndices: []int{2},
			Siblings:    [][]hashing.Digest{{hashing.Digest{0x04}, hashing.Digest{0x05}}},
		},
	}

	for i, c := range testCases {
		public := ToMerkleProof(c)
		require.Equalf(t, EncodeDigest(c.Root), public.Root, "Wrong root in test case %d", i)
		require.Lenf(t, public.Siblings, len(c.Siblings), "Wrong siblings in test case %d", i)

		proof, err := public.ToImt()
		require.NoErrorf(t, err, "Unexpected error in test case %d", i)
		require.Equalf(t, c, proof, "Wrong proof in test case %d", i)

		// the translation copies the path indices
		public.PathIndices[0] = 99
		require.NotEqualf(t, 99, proof.PathIndices[0], "Path indices shared in test case %d", i)
	}
}

func TestMalformedMerkleProof(t *testing.T) {

	valid := ToMerkleProof(&imt.MerkleProof{
		Root:        hashing.Digest("root"),
		Leaf:        hashing.Digest("leaf"),
		PathIndices: []int{1},
		Siblings:    [][]hashing.Digest{{hashing.Digest("sibling")}},
	})

	badRoot, badLeaf, badSiblings := *valid, *valid, *valid
	badRoot.Root = "xx"
	badLeaf.Leaf = "x"
	badSiblings.Siblings = [][]string{{"00"}, {"0g"}}

	testCases := []struct {
		proof MerkleProof
		field string
	}{
		{badRoot, "root"},
		{badLeaf, "leaf"},
		{badSiblings, "siblings of level 1"},
	}

	for i, c := range testCases {
		_, err := c.proof.ToImt()
		require.Errorf(t, err, "Expected error in test case %d", i)
		require.Containsf(t, err.Error(), c.field, "Wrong error in test case %d", i)
	}
}

func TestCreateGroupParams(t *testing.T) {

	testCases := []struct {
		req      CreateGroup
		expected group.Params
		valid    bool
	}{
		{CreateGroup{GroupID: 1}, group.DefaultParams(), true},
		{
			CreateGroup{Depth: 3, Arity: 4, ZeroValue: EncodeDigest([]byte("zero")), Hash: "join"},
			group.Params{Depth: 3, Arity: 4, ZeroValue: []byte("zero"), Hash: "join"},
			true,
		},
		{
			CreateGroup{Hash: "keccak256-hex"},
			group.Params{Depth: group.DefaultDepth, Arity: group.DefaultArity, ZeroValue: group.DefaultHexZeroValue, Hash: "keccak256-hex"},
			true,
		},
		{CreateGroup{ZeroValue: "not hex"}, group.Params{}, false},
	}

	for i, c := range testCases {
		params, err := c.req.Params()
		if !c.valid {
			require.Errorf(t, err, "Expected error in test case %d", i)
			continue
		}
		require.NoErrorf(t, err, "Unexpected error in test case %d", i)
		require.Equalf(t, c.expected, params, "Wrong params in test case %d", i)
	}
}

func TestToGroupInfo(t *testing.T) {
	info := ToGroupInfo(&group.Info{
		ID:           3,
		Admin:        "alice",
		PendingAdmin: "bob",
		Params:       group.Params{Depth: 2, Arity: 2, ZeroValue: []byte("zero"), Hash: "join"},
		Size:         2,
		Members:      1,
		Root:         hashing.Digest("a,zero,zero,zero"),
	})

	require.Equal(t, &GroupInfo{
		GroupID:      3,
		Admin:        "alice",
		PendingAdmin: "bob",
		Depth:        2,
		Arity:        2,
		ZeroValue:    EncodeDigest([]byte("zero")),
		Hash:         "join",
		Size:         2,
		Members:      1,
		Root:         EncodeDigest([]byte("a,zero,zero,zero")),
	}, info)
}

func TestToEvent(t *testing.T) {
	e := ToEvent(&group.Event{
		ID:       "id",
		Type:     group.MemberAdded,
		GroupID:  1,
		Index:    4,
		NewValue: hashing.Digest{0xab},
		Root:     hashing.Digest{0xcd},
	})
	require.Equal(t, "MemberAdded", e.Type)
	require.Equal(t, "ab", e.NewValue)
	require.Equal(t, "", e.OldValue)
	require.Equal(t, "cd", e.Root)
	require.Nil(t, e.Values)

	e = ToEvent(&group.Event{Type: group.MembersAdded, Values: []hashing.Digest{{0x01}, {0x02}}})
	require.Equal(t, []string{"01", "02"}, e.Values)
}

func TestDecodeSiblingsKeepsShape(t *testing.T) {
	siblings, err := DecodeSiblings([][]string{{"01", "02"}, {}, {"03"}})
	require.NoError(t, err)
	require.Equal(t, [][]hashing.Digest{{{0x01}, {0x02}}, {}, {{0x03}}}, siblings)

	_, err = DecodeSiblings([][]string{{"0"}})
	require.True(t, errors.Is(err, hex.ErrLength), "Wrong error: %v", err)
}
