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
	"bytes"
	"errors"
	"io/ioutil"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/storage"
	utilstorage "github.com/bbva/imtree/testutils/storage"
)

type recorder struct {
	events []*group.Event
}

func (r *recorder) Notify(e *group.Event) {
	r.events = append(r.events, e)
}

func testParams() group.Params {
	return group.Params{Depth: 3, Arity: 2, ZeroValue: []byte("zero"), Hash: "join"}
}

func applyCommand(t *testing.T, fsm *GroupsFSM, index uint64, ct CommandType, cmd interface{}) *fsmResponse {
	c := newCommand(ct)
	require.NoError(t, c.encode(cmd))
	return fsm.Apply(&raft.Log{Index: index, Term: 1, Data: c.data}).(*fsmResponse)
}

func TestCommandEncoding(t *testing.T) {
	c := newCommand(addMembersCommandType)
	cmd := &addMembersCommand{GroupID: 4, Caller: "alice", Commitments: []hashing.Digest{[]byte("a"), []byte("b")}}
	require.NoError(t, c.encode(cmd))
	require.Equal(t, byte(addMembersCommandType), c.data[0])

	decoded := newCommandFromRaft(c.data)
	require.Equal(t, addMembersCommandType, decoded.id)
	var out addMembersCommand
	require.NoError(t, decoded.decode(&out))
	require.Equal(t, *cmd, out)

	require.Error(t, newCommandFromRaft(nil).decode(&out))
}

func TestApply(t *testing.T) {
	store, closeF := utilstorage.OpenBPlusTreeStore()
	defer closeF()

	fsm, err := NewGroupsFSM(store, nil)
	require.NoError(t, err)

	resp := applyCommand(t, fsm, 1, createGroupCommandType, &createGroupCommand{GroupID: 1, Admin: "alice", Params: testParams()})
	require.NoError(t, resp.err)
	require.Equal(t, group.GroupCreated, resp.event.Type)

	resp = applyCommand(t, fsm, 2, addMemberCommandType, &addMemberCommand{GroupID: 1, Caller: "alice", Commitment: []byte("a")})
	require.NoError(t, resp.err)
	require.Equal(t, 0, resp.event.Index)

	ok, err := fsm.Registry().HasMember(1, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)

	leaf, err := store.Get(storage.LeafTable, group.LeafKey(1, 0))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), leaf.Value)

	state, err := loadState(store)
	require.NoError(t, err)
	require.Equal(t, &fsmState{Index: 2, Term: 1}, state)
}

func TestApplyIsIdempotent(t *testing.T) {
	store, closeF := utilstorage.OpenBPlusTreeStore()
	defer closeF()

	fsm, err := NewGroupsFSM(store, nil)
	require.NoError(t, err)

	cmd := &createGroupCommand{GroupID: 1, Admin: "alice", Params: testParams()}
	require.NoError(t, applyCommand(t, fsm, 1, createGroupCommandType, cmd).err)
	require.Error(t, applyCommand(t, fsm, 1, createGroupCommandType, cmd).err, "Replayed entries must be skipped")

	resp := fsm.Apply(&raft.Log{Index: 1, Term: 2, Data: []byte{0xff}}).(*fsmResponse)
	require.Error(t, resp.err, "Unknown commands must fail")
}

func TestApplyRejectedCommand(t *testing.T) {
	store, closeF := utilstorage.OpenBPlusTreeStore()
	defer closeF()

	fsm, err := NewGroupsFSM(store, nil)
	require.NoError(t, err)

	require.NoError(t, applyCommand(t, fsm, 1, createGroupCommandType, &createGroupCommand{GroupID: 1, Admin: "alice", Params: testParams()}).err)

	resp := applyCommand(t, fsm, 2, addMemberCommandType, &addMemberCommand{GroupID: 1, Caller: "bob", Commitment: []byte("a")})
	require.True(t, errors.Is(resp.err, group.ErrCallerIsNotTheGroupAdmin))
	require.Nil(t, resp.event)

	state, err := loadState(store)
	require.NoError(t, err)
	require.Equal(t, uint64(2), state.Index, "Rejected entries are consumed")
}

func TestApplyNotifiesOnlyOnLeader(t *testing.T) {
	store, closeF := utilstorage.OpenBPlusTreeStore()
	defer closeF()

	events := new(recorder)
	fsm, err := NewGroupsFSM(store, events)
	require.NoError(t, err)

	require.NoError(t, applyCommand(t, fsm, 1, createGroupCommandType, &createGroupCommand{GroupID: 1, Admin: "alice", Params: testParams()}).err)
	require.Empty(t, events.events)

	fsm.setLeader(true)
	require.NoError(t, applyCommand(t, fsm, 2, addMemberCommandType, &addMemberCommand{GroupID: 1, Caller: "alice", Commitment: []byte("a")}).err)
	require.Len(t, events.events, 1)
	require.Equal(t, group.MemberAdded, events.events[0].Type)
}

func TestReloadFromStore(t *testing.T) {
	stores := map[string]func() (storage.Store, func()){
		"bplus": func() (storage.Store, func()) {
			return utilstorage.OpenBPlusTreeStore()
		},
		"badger": func() (storage.Store, func()) {
			return utilstorage.OpenBadgerStore(t)
		},
		"bolt": func() (storage.Store, func()) {
			return utilstorage.OpenBoltStore(t)
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store, closeF := open()
			defer closeF()

			fsm, err := NewGroupsFSM(store, nil)
			require.NoError(t, err)
			require.NoError(t, applyCommand(t, fsm, 1, createGroupCommandType, &createGroupCommand{GroupID: 1, Admin: "alice", Params: testParams()}).err)
			require.NoError(t, applyCommand(t, fsm, 2, addMembersCommandType, &addMembersCommand{GroupID: 1, Caller: "alice", Commitments: []hashing.Digest{[]byte("a"), []byte("b")}}).err)

			reloaded, err := NewGroupsFSM(store, nil)
			require.NoError(t, err)
			require.Equal(t, fsm.state, reloaded.state)

			root, err := fsm.Registry().Root(1)
			require.NoError(t, err)
			reloadedRoot, err := reloaded.Registry().Root(1)
			require.NoError(t, err)
			require.Equal(t, root, reloadedRoot)
		})
	}
}

type mockSnapshotSink struct {
	bytes.Buffer
	cancelled bool
}

func (m *mockSnapshotSink) ID() string    { return "1" }
func (m *mockSnapshotSink) Close() error  { return nil }
func (m *mockSnapshotSink) Cancel() error { m.cancelled = true; return nil }

func TestSnapshotRestore(t *testing.T) {
	store, closeF := utilstorage.OpenBPlusTreeStore()
	defer closeF()

	fsm, err := NewGroupsFSM(store, nil)
	require.NoError(t, err)
	require.NoError(t, applyCommand(t, fsm, 1, createGroupCommandType, &createGroupCommand{GroupID: 1, Admin: "alice", Params: testParams()}).err)
	require.NoError(t, applyCommand(t, fsm, 2, addMembersCommandType, &addMembersCommand{GroupID: 1, Caller: "alice", Commitments: []hashing.Digest{[]byte("a"), []byte("b")}}).err)
	require.NoError(t, applyCommand(t, fsm, 3, updateGroupAdminCommandType, &updateGroupAdminCommand{GroupID: 1, Caller: "alice", NewAdmin: "bob"}).err)

	snapshot, err := fsm.Snapshot()
	require.NoError(t, err)
	sink := new(mockSnapshotSink)
	require.NoError(t, snapshot.Persist(sink))
	snapshot.Release()
	require.False(t, sink.cancelled)

	// a node with diverging content
	otherStore, closeOther := utilstorage.OpenBPlusTreeStore()
	defer closeOther()
	other, err := NewGroupsFSM(otherStore, nil)
	require.NoError(t, err)
	require.NoError(t, applyCommand(t, other, 1, createGroupCommandType, &createGroupCommand{GroupID: 2, Admin: "carol", Params: testParams()}).err)

	require.NoError(t, other.Restore(ioutil.NopCloser(&sink.Buffer)))
	require.Equal(t, []uint64{1}, other.Registry().Groups())
	require.Equal(t, &fsmState{Index: 3, Term: 1}, other.state)

	// the store holds the restored registry only
	reloaded, err := group.Load(otherStore, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, reloaded.Groups())

	root, err := fsm.Registry().Root(1)
	require.NoError(t, err)
	restoredRoot, err := reloaded.Root(1)
	require.NoError(t, err)
	require.Equal(t, root, restoredRoot)

	admin, err := reloaded.GroupAdmin(1)
	require.NoError(t, err)
	require.Equal(t, "alice", admin)

	// entries after the snapshot keep applying
	resp := applyCommand(t, other, 4, acceptGroupAdminCommandType, &acceptGroupAdminCommand{GroupID: 1, Caller: "bob"})
	require.NoError(t, resp.err)
}
