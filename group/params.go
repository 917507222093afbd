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

package group

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bbva/imtree/imt"
)

const (
	DefaultDepth = 20
	DefaultArity = 2
	DefaultHash  = "keccak256"

	MinDepth = 1
	MaxDepth = 32
)

var (
	// DefaultZeroValue is the empty leaf of raw byte trees: 32 zero bytes.
	DefaultZeroValue = make([]byte, 32)

	// DefaultHexZeroValue is the empty leaf of hex text trees, the hex
	// text of DefaultZeroValue.
	DefaultHexZeroValue = []byte(hex.EncodeToString(DefaultZeroValue))
)

var ErrInvalidParams = errors.New("invalid group parameters")

// Params fixes the shape of a group tree. They cannot change after the group
// has been created.
type Params struct {
	Depth     int    `msgpack:"depth" json:"depth"`
	Arity     int    `msgpack:"arity" json:"arity"`
	ZeroValue []byte `msgpack:"zero" json:"zeroValue"`
	Hash      string `msgpack:"hash" json:"hash"`
}

// DefaultParams returns the parameters of a depth 20 binary keccak256 tree
// over raw 32 byte nodes.
func DefaultParams() Params {
	return Params{
		Depth:     DefaultDepth,
		Arity:     DefaultArity,
		ZeroValue: append([]byte(nil), DefaultZeroValue...),
		Hash:      DefaultHash,
	}
}

// WithDefaults fills the zero fields of p with the default ones.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.Depth == 0 {
		p.Depth = d.Depth
	}
	if p.Arity == 0 {
		p.Arity = d.Arity
	}
	if p.Hash == "" {
		p.Hash = d.Hash
	}
	if len(p.ZeroValue) == 0 {
		if p.HexText() {
			p.ZeroValue = append([]byte(nil), DefaultHexZeroValue...)
		} else {
			p.ZeroValue = d.ZeroValue
		}
	}
	return p
}

// HexText tells whether the nodes of the tree are hex text instead of raw
// bytes, as selected by the "-hex" suffixed hashes.
func (p Params) HexText() bool {
	return strings.HasSuffix(p.Hash, "-hex")
}

// Validate checks the parameters and returns the tree hash function they
// select.
func (p Params) Validate() (imt.HashFunction, error) {
	if p.Depth < MinDepth || p.Depth > MaxDepth {
		return nil, fmt.Errorf("%w: depth %d out of [%d, %d]", ErrInvalidParams, p.Depth, MinDepth, MaxDepth)
	}
	if p.Arity < 2 {
		return nil, fmt.Errorf("%w: arity %d", ErrInvalidParams, p.Arity)
	}
	if len(p.ZeroValue) == 0 {
		return nil, fmt.Errorf("%w: empty zero value", ErrInvalidParams)
	}
	if p.HexText() && !isHexText(p.ZeroValue) {
		return nil, fmt.Errorf("%w: zero value %q is not hex text", ErrInvalidParams, p.ZeroValue)
	}
	hash, err := imt.HashByName(p.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return hash, nil
}

// isHexText accepts the lowercase hex text HexConcat produces.
func isHexText(b []byte) bool {
	if len(b) == 0 || len(b)%2 != 0 {
		return false
	}
	for _, c := range b {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
