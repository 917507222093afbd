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
	"fmt"
	"io"
	"io/ioutil"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/raft"

	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/storage"
)

var fsmStateKey = []byte{0xab}

type fsmResponse struct {
	event *group.Event
	err   error
}

type fsmState struct {
	Index, Term uint64
}

func (s *fsmState) encode() ([]byte, error) {
	return encodeMsgPack(s)
}

func (s *fsmState) shouldApply(f *fsmState) bool {
	if f.Term < s.Term {
		return false
	}
	if f.Term == s.Term && f.Index <= s.Index {
		return false
	}
	return true
}

func loadState(store storage.Store) (*fsmState, error) {
	kv, err := store.Get(storage.FSMStateTable, fsmStateKey)
	if err == storage.ErrKeyNotFound {
		log.Infof("Unable to find previous state: assuming a clean instance")
		return new(fsmState), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading state failed: %w", err)
	}
	var state fsmState
	if err := decodeMsgPack(kv.Value, &state); err != nil {
		return nil, fmt.Errorf("unable to decode state: %w", err)
	}
	return &state, nil
}

// GroupsFSM applies the raft log to a group registry and persists every
// change in the store. Events are forwarded to the notifier only while the
// node is the leader, so each event is published once per cluster.
type GroupsFSM struct {
	store    storage.Store
	registry *group.Registry
	state    *fsmState
	notifier group.Notifier
	leader   int32

	restoreMu sync.RWMutex // Restore needs exclusive access to the registry.
}

// NewGroupsFSM loads the registry and the last applied log position from
// store.
func NewGroupsFSM(store storage.Store, notifier group.Notifier) (*GroupsFSM, error) {
	registry, err := group.Load(store, nil)
	if err != nil {
		return nil, err
	}
	state, err := loadState(store)
	if err != nil {
		log.Infof("There was an error recovering the FSM state: %v", err)
		return nil, err
	}
	return &GroupsFSM{
		store:    store,
		registry: registry,
		state:    state,
		notifier: notifier,
	}, nil
}

func (fsm *GroupsFSM) setLeader(leader bool) {
	var v int32
	if leader {
		v = 1
	}
	atomic.StoreInt32(&fsm.leader, v)
}

func (fsm *GroupsFSM) isLeader() bool {
	return atomic.LoadInt32(&fsm.leader) == 1
}

// Registry returns the registry the FSM applies commands to. It must be used
// for reads only.
func (fsm *GroupsFSM) Registry() *group.Registry {
	return fsm.registry
}

// Apply applies a Raft log entry to the registry.
func (fsm *GroupsFSM) Apply(l *raft.Log) interface{} {
	fsm.restoreMu.RLock()
	defer fsm.restoreMu.RUnlock()

	newState := &fsmState{l.Index, l.Term}
	if !fsm.state.shouldApply(newState) {
		return &fsmResponse{err: fmt.Errorf("state already applied!: %+v -> %+v", fsm.state, newState)}
	}

	event, err := fsm.execute(newCommandFromRaft(l.Data))
	if err != nil {
		log.Debugf("Command at index %d rejected: %v", l.Index, err)
		// the entry is consumed even when the registry rejects it
		if perr := fsm.persist(nil, newState); perr != nil {
			return &fsmResponse{err: perr}
		}
		return &fsmResponse{err: err}
	}

	mutations, err := event.Mutations()
	if err != nil {
		return &fsmResponse{err: err}
	}
	if err := fsm.persist(mutations, newState); err != nil {
		return &fsmResponse{err: err}
	}

	if fsm.notifier != nil && fsm.isLeader() {
		fsm.notifier.Notify(event)
	}
	return &fsmResponse{event: event}
}

func (fsm *GroupsFSM) execute(cmd *Command) (*group.Event, error) {
	r := fsm.registry
	switch cmd.id {
	case createGroupCommandType:
		var c createGroupCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.CreateGroup(c.GroupID, c.Admin, c.Params)
	case updateGroupAdminCommandType:
		var c updateGroupAdminCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.UpdateGroupAdmin(c.GroupID, c.Caller, c.NewAdmin)
	case acceptGroupAdminCommandType:
		var c acceptGroupAdminCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.AcceptGroupAdmin(c.GroupID, c.Caller)
	case addMemberCommandType:
		var c addMemberCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.AddMember(c.GroupID, c.Caller, c.Commitment)
	case addMembersCommandType:
		var c addMembersCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.AddMembers(c.GroupID, c.Caller, c.Commitments)
	case updateMemberCommandType:
		var c updateMemberCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.UpdateMember(c.GroupID, c.Caller, c.Old, c.Updated, c.Siblings)
	case removeMemberCommandType:
		var c removeMemberCommand
		if err := cmd.decode(&c); err != nil {
			return nil, err
		}
		return r.RemoveMember(c.GroupID, c.Caller, c.Commitment, c.Siblings)
	}
	return nil, fmt.Errorf("unknown command: %v", cmd.id)
}

func (fsm *GroupsFSM) persist(mutations []*storage.Mutation, state *fsmState) error {
	buf, err := state.encode()
	if err != nil {
		return err
	}
	mutations = append(mutations, storage.NewMutation(storage.FSMStateTable, fsmStateKey, buf))
	if err := fsm.store.Mutate(mutations); err != nil {
		return err
	}
	fsm.state = state
	return nil
}

// Snapshot returns a snapshot of the registry. Hashicorp Raft guarantees
// that this function will not be called concurrently with Apply.
func (fsm *GroupsFSM) Snapshot() (raft.FSMSnapshot, error) {
	fsm.restoreMu.RLock()
	defer fsm.restoreMu.RUnlock()

	registry, err := fsm.registry.Snapshot()
	if err != nil {
		return nil, err
	}
	log.Debugf("Generating snapshot until index %d", fsm.state.Index)
	return &fsmSnapshot{
		Index:    fsm.state.Index,
		Term:     fsm.state.Term,
		Registry: registry,
	}, nil
}

// Restore replaces the registry and the stored records with the content of
// a snapshot.
func (fsm *GroupsFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	log.Debug("Restoring registry...")

	buf, err := ioutil.ReadAll(rc)
	if err != nil {
		return err
	}
	var snap fsmSnapshot
	if err := snap.decode(buf); err != nil {
		return err
	}

	fsm.restoreMu.Lock()
	defer fsm.restoreMu.Unlock()

	if err := fsm.clear(); err != nil {
		return err
	}
	mutations, err := fsm.registry.Restore(snap.Registry)
	if err != nil {
		return err
	}
	if err := fsm.persist(mutations, &fsmState{snap.Index, snap.Term}); err != nil {
		return err
	}
	log.Infof("Registry restored up to index %d", snap.Index)
	return nil
}

// clear deletes every group record from the store.
func (fsm *GroupsFSM) clear() error {
	var deletions []*storage.Mutation
	for _, table := range []storage.Table{storage.GroupTable, storage.AdminTable, storage.PendingAdminTable, storage.LeafTable} {
		kvs, err := storage.ReadAll(fsm.store.GetAll(table), 256)
		if err != nil {
			return err
		}
		for _, kv := range kvs {
			deletions = append(deletions, storage.NewDeletion(table, kv.Key))
		}
	}
	if len(deletions) == 0 {
		return nil
	}
	return fsm.store.Mutate(deletions)
}
