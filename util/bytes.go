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

// Package util implements small helpers shared all across the code.
package util

import "encoding/binary"

// Uint64AsBytes encodes n big endian, so byte order matches numeric order
// when used as a storage key.
func Uint64AsBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// BytesAsUint64 decodes a big endian uint64. Shorter inputs are treated as
// left padded with zeroes.
func BytesAsUint64(b []byte) uint64 {
	var out uint64
	for _, x := range b {
		out = out<<8 | uint64(x)
	}
	return out
}

// Uint32AsBytes encodes n big endian.
func Uint32AsBytes(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

// BytesAsUint32 decodes a big endian uint32.
func BytesAsUint32(b []byte) uint32 {
	return uint32(BytesAsUint64(b))
}
