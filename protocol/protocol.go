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

// Package protocol defines the information types required and expected when
// interacting with the imtree HTTP API. Digests travel hex encoded.
package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/imt"
)

// CreateGroup is the body of POST /groups. An empty Admin makes the caller
// the admin of the group. Zero valued parameters take their defaults.
type CreateGroup struct {
	GroupID   uint64 `json:"groupId"`
	Admin     string `json:"admin,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Arity     int    `json:"arity,omitempty"`
	ZeroValue string `json:"zeroValue,omitempty"`
	Hash      string `json:"hash,omitempty"`
}

// Params translates the request into group parameters.
func (c *CreateGroup) Params() (group.Params, error) {
	p := group.Params{Depth: c.Depth, Arity: c.Arity, Hash: c.Hash}
	if c.ZeroValue != "" {
		zero, err := DecodeDigest(c.ZeroValue)
		if err != nil {
			return p, err
		}
		p.ZeroValue = zero
	}
	return p.WithDefaults(), nil
}

// UpdateGroupAdmin is the body of POST /groups/admin.
type UpdateGroupAdmin struct {
	GroupID  uint64 `json:"groupId"`
	NewAdmin string `json:"newAdmin"`
}

// GroupQuery is the body of the requests addressing a group only:
// POST /groups/admin/accept and POST /groups/info.
type GroupQuery struct {
	GroupID uint64 `json:"groupId"`
}

// Member is the body of POST /members and POST /proofs/membership.
type Member struct {
	GroupID    uint64 `json:"groupId"`
	Commitment string `json:"commitment"`
}

// Members is the body of POST /members/batch.
type Members struct {
	GroupID     uint64   `json:"groupId"`
	Commitments []string `json:"commitments"`
}

// UpdateMember is the body of POST /members/update.
type UpdateMember struct {
	GroupID       uint64     `json:"groupId"`
	Commitment    string     `json:"commitment"`
	NewCommitment string     `json:"newCommitment"`
	Siblings      [][]string `json:"siblings"`
}

// RemoveMember is the body of POST /members/remove.
type RemoveMember struct {
	GroupID    uint64     `json:"groupId"`
	Commitment string     `json:"commitment"`
	Siblings   [][]string `json:"siblings"`
}

// MerkleProof is the public form of imt.MerkleProof.
type MerkleProof struct {
	Root        string     `json:"root"`
	Leaf        string     `json:"leaf"`
	PathIndices []int      `json:"pathIndices"`
	Siblings    [][]string `json:"siblings"`
}

// ToMerkleProof translates an imt.MerkleProof to its public form.
func ToMerkleProof(p *imt.MerkleProof) *MerkleProof {
	return &MerkleProof{
		Root:        EncodeDigest(p.Root),
		Leaf:        EncodeDigest(p.Leaf),
		PathIndices: append([]int{}, p.PathIndices...),
		Siblings:    EncodeSiblings(p.Siblings),
	}
}

// ToImt reverses ToMerkleProof.
func (p *MerkleProof) ToImt() (*imt.MerkleProof, error) {
	root, err := DecodeDigest(p.Root)
	if err != nil {
		return nil, fmt.Errorf("root: %w", err)
	}
	leaf, err := DecodeDigest(p.Leaf)
	if err != nil {
		return nil, fmt.Errorf("leaf: %w", err)
	}
	siblings, err := DecodeSiblings(p.Siblings)
	if err != nil {
		return nil, err
	}
	return &imt.MerkleProof{
		Root:        root,
		Leaf:        leaf,
		PathIndices: append([]int{}, p.PathIndices...),
		Siblings:    siblings,
	}, nil
}

// VerifyProof is the body of POST /proofs/verify.
type VerifyProof struct {
	GroupID uint64       `json:"groupId"`
	Proof   *MerkleProof `json:"proof"`
}

// VerifyResult is returned by POST /proofs/verify. Current tells whether
// the proof root is the current root of the group.
type VerifyResult struct {
	Valid   bool `json:"valid"`
	Current bool `json:"current"`
}

// GroupInfo is returned by POST /groups/info.
type GroupInfo struct {
	GroupID      uint64 `json:"groupId"`
	Admin        string `json:"admin"`
	PendingAdmin string `json:"pendingAdmin,omitempty"`
	Depth        int    `json:"depth"`
	Arity        int    `json:"arity"`
	ZeroValue    string `json:"zeroValue"`
	Hash         string `json:"hash"`
	Size         int    `json:"size"`
	Members      int    `json:"members"`
	Root         string `json:"root"`
}

// ToGroupInfo translates a group.Info to its public form.
func ToGroupInfo(i *group.Info) *GroupInfo {
	return &GroupInfo{
		GroupID:      i.ID,
		Admin:        i.Admin,
		PendingAdmin: i.PendingAdmin,
		Depth:        i.Params.Depth,
		Arity:        i.Params.Arity,
		ZeroValue:    EncodeDigest(i.Params.ZeroValue),
		Hash:         i.Params.Hash,
		Size:         i.Size,
		Members:      i.Members,
		Root:         EncodeDigest(i.Root),
	}
}

// EncodeDigest returns the hex form of a digest.
func EncodeDigest(d []byte) string {
	return hex.EncodeToString(d)
}

// DecodeDigest parses a hex digest.
func DecodeDigest(s string) (hashing.Digest, error) {
	d, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return d, nil
}

// EncodeDigests returns the hex form of a list of digests.
func EncodeDigests(ds []hashing.Digest) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = EncodeDigest(d)
	}
	return out
}

// DecodeDigests parses a list of hex digests.
func DecodeDigests(ss []string) ([]hashing.Digest, error) {
	out := make([]hashing.Digest, len(ss))
	for i, s := range ss {
		d, err := DecodeDigest(s)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

// EncodeSiblings returns the hex form of a sibling path.
func EncodeSiblings(siblings [][]hashing.Digest) [][]string {
	out := make([][]string, len(siblings))
	for i, level := range siblings {
		out[i] = EncodeDigests(level)
	}
	return out
}

// DecodeSiblings parses a hex sibling path.
func DecodeSiblings(siblings [][]string) ([][]hashing.Digest, error) {
	out := make([][]hashing.Digest, len(siblings))
	for i, level := range siblings {
		ds, err := DecodeDigests(level)
		if err != nil {
			return nil, fmt.Errorf("siblings of level %d: %w", i, err)
		}
		out[i] = ds
	}
	return out, nil
}
