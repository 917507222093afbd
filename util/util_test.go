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

package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUint64RoundTripKeepsOrder(t *testing.T) {

	testCases := []uint64{0, 1, 255, 256, 1 << 32, 1<<64 - 1}

	var previous []byte
	for i, n := range testCases {
		b := Uint64AsBytes(n)
		require.Lenf(t, b, 8, "Wrong length in test case %d", i)
		require.Equalf(t, n, BytesAsUint64(b), "Wrong decoding in test case %d", i)
		if previous != nil {
			require.Truef(t, string(previous) < string(b), "Order not preserved in test case %d", i)
		}
		previous = b
	}
}

func TestUint32(t *testing.T) {
	require.Equal(t, []byte{0, 0, 1, 0}, Uint32AsBytes(256))
	require.Equal(t, uint32(256), BytesAsUint32([]byte{0, 0, 1, 0}))
}
