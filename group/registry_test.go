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
	"errors"
	"sync"
	"testing"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	sync.Mutex
	events []*Event
}

func (r *recorder) Notify(e *Event) {
	r.Lock()
	defer r.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.Lock()
	defer r.Unlock()
	types := make([]EventType, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

func TestCreateGroup(t *testing.T) {
	rec := new(recorder)
	r := NewRegistry(rec)

	e, err := r.CreateGroup(1, "alice", joinParams(2))
	require.NoError(t, err)
	require.Equal(t, GroupCreated, e.Type)
	require.Equal(t, "alice", e.NewAdmin)
	require.NotEmpty(t, e.ID)

	_, err = r.CreateGroup(1, "bob", joinParams(2))
	require.True(t, errors.Is(err, ErrGroupAlreadyExists))

	_, err = r.CreateGroup(2, "", joinParams(2))
	require.True(t, errors.Is(err, ErrInvalidAdmin))

	_, err = r.CreateGroup(3, "bob", Params{Depth: 64})
	require.True(t, errors.Is(err, ErrInvalidParams))

	e, err = r.CreateGroup(4, "bob", Params{})
	require.NoError(t, err)
	require.Equal(t, DefaultDepth, e.Params.Depth)

	require.Equal(t, []uint64{1, 4}, r.Groups())
	require.Equal(t, []EventType{GroupCreated, GroupCreated}, rec.types())

	admin, err := r.GroupAdmin(1)
	require.NoError(t, err)
	require.Equal(t, "alice", admin)

	_, err = r.GroupAdmin(2)
	require.True(t, errors.Is(err, ErrGroupDoesNotExist))
}

func TestGroupAdminTransfer(t *testing.T) {
	rec := new(recorder)
	r := NewRegistry(rec)
	_, err := r.CreateGroup(1, "alice", joinParams(2))
	require.NoError(t, err)

	_, err = r.UpdateGroupAdmin(1, "bob", "bob")
	require.True(t, errors.Is(err, ErrCallerIsNotTheGroupAdmin))

	_, err = r.UpdateGroupAdmin(2, "alice", "bob")
	require.True(t, errors.Is(err, ErrGroupDoesNotExist))

	e, err := r.UpdateGroupAdmin(1, "alice", "bob")
	require.NoError(t, err)
	require.Equal(t, GroupAdminPending, e.Type)

	admin, _ := r.GroupAdmin(1)
	require.Equal(t, "alice", admin, "The admin changes only once accepted")
	info, err := r.Info(1)
	require.NoError(t, err)
	require.Equal(t, "bob", info.PendingAdmin)

	_, err = r.AcceptGroupAdmin(1, "carol")
	require.True(t, errors.Is(err, ErrCallerIsNotThePendingGroupAdmin))

	e, err = r.AcceptGroupAdmin(1, "bob")
	require.NoError(t, err)
	require.Equal(t, GroupAdminUpdated, e.Type)
	require.Equal(t, "alice", e.OldAdmin)
	require.Equal(t, "bob", e.NewAdmin)

	admin, _ = r.GroupAdmin(1)
	require.Equal(t, "bob", admin)

	_, err = r.AcceptGroupAdmin(1, "bob")
	require.True(t, errors.Is(err, ErrCallerIsNotThePendingGroupAdmin), "A pending transfer is consumed once accepted")

	_, err = r.AddMember(1, "alice", hashing.Digest("a"))
	require.True(t, errors.Is(err, ErrCallerIsNotTheGroupAdmin))

	require.Equal(t, []EventType{GroupCreated, GroupAdminPending, GroupAdminUpdated}, rec.types())
}

func TestRegistryMembers(t *testing.T) {
	rec := new(recorder)
	r := NewRegistry(rec)
	_, err := r.CreateGroup(1, "alice", joinParams(3))
	require.NoError(t, err)

	e, err := r.AddMember(1, "alice", hashing.Digest("a"))
	require.NoError(t, err)
	require.Equal(t, 0, e.Index)
	require.Equal(t, hashing.Digest("a"), e.NewValue)

	e, err = r.AddMembers(1, "alice", []hashing.Digest{hashing.Digest("b"), hashing.Digest("c")})
	require.NoError(t, err)
	require.Equal(t, MembersAdded, e.Type)
	require.Equal(t, 1, e.Index)

	ok, err := r.HasMember(1, hashing.Digest("c"))
	require.NoError(t, err)
	require.True(t, ok)

	index, err := r.IndexOf(1, hashing.Digest("c"))
	require.NoError(t, err)
	require.Equal(t, 2, index)

	proof, err := r.Proof(1, hashing.Digest("b"))
	require.NoError(t, err)
	valid, current, err := r.VerifyProof(1, proof)
	require.NoError(t, err)
	require.True(t, valid)
	require.True(t, current)

	e, err = r.UpdateMember(1, "alice", hashing.Digest("b"), hashing.Digest("B"), proof.Siblings)
	require.NoError(t, err)
	require.Equal(t, MemberUpdated, e.Type)
	require.Equal(t, hashing.Digest("b"), e.OldValue)

	valid, current, err = r.VerifyProof(1, proof)
	require.NoError(t, err)
	require.True(t, valid, "The old proof is still consistent with its own root")
	require.False(t, current, "But its root is no longer the group root")

	proof, err = r.Proof(1, hashing.Digest("c"))
	require.NoError(t, err)
	e, err = r.RemoveMember(1, "alice", hashing.Digest("c"), proof.Siblings)
	require.NoError(t, err)
	require.Equal(t, MemberRemoved, e.Type)
	require.Equal(t, hashing.Digest("zero"), e.NewValue)

	root, err := r.Root(1)
	require.NoError(t, err)
	require.Equal(t, e.Root, root)

	depth, err := r.Depth(1)
	require.NoError(t, err)
	require.Equal(t, 3, depth)

	size, err := r.Size(1)
	require.NoError(t, err)
	require.Equal(t, 3, size)

	info, err := r.Info(1)
	require.NoError(t, err)
	require.Equal(t, 2, info.Members)

	_, err = r.HasMember(9, hashing.Digest("a"))
	require.True(t, errors.Is(err, ErrGroupDoesNotExist))

	require.Equal(t, []EventType{GroupCreated, MemberAdded, MembersAdded, MemberUpdated, MemberRemoved}, rec.types())
}

func TestConcurrentReads(t *testing.T) {
	r := NewRegistry(nil)
	_, err := r.CreateGroup(1, "alice", DefaultParams())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = r.Root(1)
				_, _ = r.Size(1)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_, err := r.AddMember(1, "alice", hashing.Digest{byte(i + 1)})
		require.NoError(t, err)
	}
	wg.Wait()

	size, err := r.Size(1)
	require.NoError(t, err)
	require.Equal(t, 50, size)
}
