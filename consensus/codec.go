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

package consensus

import (
	"github.com/hashicorp/go-msgpack/codec"

	"github.com/bbva/imtree/imt"
)

var handler = new(codec.MsgpackHandle)

func decodeMsgPack(buf []byte, out interface{}) error {
	return codec.NewDecoderBytes(buf, handler).Decode(out)
}

func encodeMsgPack(in interface{}) ([]byte, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, handler).Encode(in); err != nil {
		return nil, err
	}
	return buf, nil
}

// proofs are cached in their msgpack form.
func encodeProof(p *imt.MerkleProof) ([]byte, error) {
	return encodeMsgPack(p)
}

func decodeProof(buf []byte) (*imt.MerkleProof, error) {
	var p imt.MerkleProof
	if err := decodeMsgPack(buf, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
