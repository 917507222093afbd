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
	"bytes"
	"fmt"

	"github.com/bbva/imtree/crypto/hashing"
)

// MerkleProof proves that Leaf is part of the tree committed to by Root.
// Siblings[l] holds the arity-1 nodes that share a parent with the path node
// at level l, and PathIndices[l] is the position of the path node among them.
type MerkleProof struct {
	Root        hashing.Digest
	Leaf        hashing.Digest
	PathIndices []int
	Siblings    [][]hashing.Digest
}

// VerifyProof recomputes the root from the proof leaf and siblings and
// compares it with the proof root. It does not need the tree the proof was
// generated from.
func VerifyProof(hash HashFunction, arity int, proof *MerkleProof) (bool, error) {
	if hash == nil || arity < 2 {
		return false, fmt.Errorf("%w: arity=%d", ErrInvalidParameters, arity)
	}
	if proof == nil {
		return false, fmt.Errorf("%w: nil proof", ErrMalformedProof)
	}
	if len(proof.Siblings) != len(proof.PathIndices) {
		return false, fmt.Errorf("%w: %d sibling groups for %d path indices",
			ErrMalformedProof, len(proof.Siblings), len(proof.PathIndices))
	}

	node := proof.Leaf
	for level, siblings := range proof.Siblings {
		if len(siblings) != arity-1 {
			return false, fmt.Errorf("%w: level %d has %d siblings", ErrMalformedProof, level, len(siblings))
		}
		position := proof.PathIndices[level]
		if position < 0 || position >= arity {
			return false, fmt.Errorf("%w: level %d path index %d", ErrMalformedProof, level, position)
		}

		children := make([]hashing.Digest, 0, arity)
		children = append(children, siblings[:position]...)
		children = append(children, node)
		children = append(children, siblings[position:]...)
		node = hash(children)
	}

	return bytes.Equal(node, proof.Root), nil
}
