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
	"encoding/hex"
	"strings"

	"github.com/bbva/imtree/crypto/hashing"
)

// Concat hashes the concatenation of the children bytes.
func Concat(h hashing.Hasher) HashFunction {
	return func(children []hashing.Digest) hashing.Digest {
		data := make([][]byte, len(children))
		for i, c := range children {
			data[i] = c
		}
		return h.Do(data...)
	}
}

// HexConcat treats nodes as hex text: the text of the children is hashed and
// the resulting digest is hex encoded again, so parents stay hex text.
func HexConcat(h hashing.Hasher) HashFunction {
	hashText := Concat(h)
	return func(children []hashing.Digest) hashing.Digest {
		sum := hashText(children)
		out := make(hashing.Digest, hex.EncodedLen(len(sum)))
		hex.Encode(out, sum)
		return out
	}
}

// Join concatenates the children with sep. It is not a hash function, but it
// makes tree shapes readable in tests and debug sessions.
func Join(sep string) HashFunction {
	return func(children []hashing.Digest) hashing.Digest {
		parts := make([]string, len(children))
		for i, c := range children {
			parts[i] = string(c)
		}
		return hashing.Digest(strings.Join(parts, sep))
	}
}

// HashByName returns the node hash function for a configuration name:
// "join" or a hasher name understood by hashing.NewHasherByName, optionally
// suffixed with "-hex" to use HexConcat instead of Concat.
func HashByName(name string) (HashFunction, error) {
	if name == "join" {
		return Join(","), nil
	}
	hexed := strings.HasSuffix(name, "-hex")
	h, err := hashing.NewHasherByName(strings.TrimSuffix(name, "-hex"))
	if err != nil {
		return nil, err
	}
	if hexed {
		return HexConcat(h), nil
	}
	return Concat(h), nil
}
