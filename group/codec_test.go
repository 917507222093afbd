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
	"testing"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/storage"
	"github.com/bbva/imtree/storage/bplus"
	"github.com/stretchr/testify/require"
)

// persister writes the mutations of every event it receives.
type persister struct {
	t     *testing.T
	store storage.Store
}

func (p *persister) Notify(e *Event) {
	mutations, err := e.Mutations()
	require.NoError(p.t, err)
	require.NoError(p.t, p.store.Mutate(mutations))
}

func populate(t *testing.T, r *Registry) {
	_, err := r.CreateGroup(1, "alice", joinParams(3))
	require.NoError(t, err)
	_, err = r.CreateGroup(2, "bob", DefaultParams())
	require.NoError(t, err)

	_, err = r.AddMembers(1, "alice", []hashing.Digest{hashing.Digest("a"), hashing.Digest("b"), hashing.Digest("c")})
	require.NoError(t, err)
	proof, err := r.Proof(1, hashing.Digest("b"))
	require.NoError(t, err)
	_, err = r.RemoveMember(1, "alice", hashing.Digest("b"), proof.Siblings)
	require.NoError(t, err)
	proof, err = r.Proof(1, hashing.Digest("c"))
	require.NoError(t, err)
	_, err = r.UpdateMember(1, "alice", hashing.Digest("c"), hashing.Digest("C"), proof.Siblings)
	require.NoError(t, err)
	_, err = r.AddMember(1, "alice", hashing.Digest("d"))
	require.NoError(t, err)

	_, err = r.AddMember(2, "bob", hashing.Digest("0000000000000000000000000000000000000000000000000000000000000001"))
	require.NoError(t, err)
	_, err = r.UpdateGroupAdmin(2, "bob", "carol")
	require.NoError(t, err)
	_, err = r.UpdateGroupAdmin(1, "alice", "dave")
	require.NoError(t, err)
	_, err = r.AcceptGroupAdmin(1, "dave")
	require.NoError(t, err)
}

func requireSameRegistry(t *testing.T, expected, actual *Registry) {
	require.Equal(t, expected.Groups(), actual.Groups())
	for _, id := range expected.Groups() {
		expectedInfo, err := expected.Info(id)
		require.NoError(t, err)
		actualInfo, err := actual.Info(id)
		require.NoError(t, err)
		require.Equalf(t, expectedInfo, actualInfo, "Group %d differs", id)
		require.Equalf(t, expected.groups[id].Leaves(), actual.groups[id].Leaves(), "Leaves of group %d differ", id)
	}
}

func TestLoad(t *testing.T) {
	store := bplus.NewBPlusTreeStore()
	defer store.Close()

	r := NewRegistry(&persister{t, store})
	populate(t, r)

	loaded, err := Load(store, nil)
	require.NoError(t, err)
	requireSameRegistry(t, r, loaded)

	ok, err := loaded.HasMember(1, hashing.Digest("b"))
	require.NoError(t, err)
	require.False(t, ok, "A removed member stays removed after a reload")

	_, err = loaded.AcceptGroupAdmin(2, "carol")
	require.NoError(t, err, "Pending admins survive a reload")
}

func TestSnapshotRestore(t *testing.T) {
	r := NewRegistry(nil)
	populate(t, r)

	buf, err := r.Snapshot()
	require.NoError(t, err)

	restored := NewRegistry(nil)
	_, err = restored.CreateGroup(99, "stale", joinParams(1))
	require.NoError(t, err)

	mutations, err := restored.Restore(buf)
	require.NoError(t, err)
	requireSameRegistry(t, r, restored)

	store := bplus.NewBPlusTreeStore()
	defer store.Close()
	require.NoError(t, store.Mutate(mutations))
	loaded, err := Load(store, nil)
	require.NoError(t, err)
	requireSameRegistry(t, r, loaded)
}

func TestEventEncoding(t *testing.T) {
	r := NewRegistry(nil)
	e, err := r.CreateGroup(1, "alice", joinParams(2))
	require.NoError(t, err)

	buf, err := e.Encode()
	require.NoError(t, err)
	decoded, err := DecodeEvent(buf)
	require.NoError(t, err)
	require.Equal(t, e.ID, decoded.ID)
	require.Equal(t, e.Type, decoded.Type)
	require.Equal(t, e.NewAdmin, decoded.NewAdmin)
	require.Equal(t, e.Params.Depth, decoded.Params.Depth)

	e, err = r.AddMembers(1, "alice", []hashing.Digest{hashing.Digest("a"), hashing.Digest("b")})
	require.NoError(t, err)
	buf, err = e.Encode()
	require.NoError(t, err)
	decoded, err = DecodeEvent(buf)
	require.NoError(t, err)
	require.Equal(t, e.Values, decoded.Values)
	require.Equal(t, e.Root, decoded.Root)
}

func TestLeafKeysAreOrdered(t *testing.T) {
	require.True(t, string(LeafKey(1, 255)) < string(LeafKey(1, 256)))
	require.True(t, string(LeafKey(1, 1<<20)) < string(LeafKey(2, 0)))
	require.Len(t, LeafKey(1, 0), 16)
}
