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
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
	"github.com/bbva/imtree/storage"
	"github.com/bbva/imtree/util"
)

const readBatchSize = 256

// GroupKey is the storage key of the group records.
func GroupKey(id uint64) []byte {
	return util.Uint64AsBytes(id)
}

// LeafKey is the storage key of a leaf: the group id followed by the leaf
// index, both big endian, so a range read returns the leaves in order.
func LeafKey(id uint64, index int) []byte {
	return append(util.Uint64AsBytes(id), util.Uint64AsBytes(uint64(index))...)
}

// Mutations returns the storage writes that persist the change described by
// the event.
func (e *Event) Mutations() ([]*storage.Mutation, error) {
	key := GroupKey(e.GroupID)
	switch e.Type {
	case GroupCreated:
		if e.Params == nil {
			return nil, fmt.Errorf("event %s of group %d has no params", e.Type, e.GroupID)
		}
		params, err := msgpack.Marshal(e.Params)
		if err != nil {
			return nil, err
		}
		return []*storage.Mutation{
			storage.NewMutation(storage.GroupTable, key, params),
			storage.NewMutation(storage.AdminTable, key, []byte(e.NewAdmin)),
		}, nil
	case GroupAdminPending:
		return []*storage.Mutation{
			storage.NewMutation(storage.PendingAdminTable, key, []byte(e.NewAdmin)),
		}, nil
	case GroupAdminUpdated:
		return []*storage.Mutation{
			storage.NewMutation(storage.AdminTable, key, []byte(e.NewAdmin)),
			storage.NewDeletion(storage.PendingAdminTable, key),
		}, nil
	case MemberAdded, MemberUpdated, MemberRemoved:
		return []*storage.Mutation{
			storage.NewMutation(storage.LeafTable, LeafKey(e.GroupID, e.Index), e.NewValue),
		}, nil
	case MembersAdded:
		mutations := make([]*storage.Mutation, len(e.Values))
		for i, v := range e.Values {
			mutations[i] = storage.NewMutation(storage.LeafTable, LeafKey(e.GroupID, e.Index+i), v)
		}
		return mutations, nil
	}
	return nil, fmt.Errorf("unknown event type %s", e.Type)
}

// Load rebuilds a registry from the records persisted in store.
func Load(store storage.Store, notifier Notifier) (*Registry, error) {
	r := NewRegistry(notifier)

	groups, err := storage.ReadAll(store.GetAll(storage.GroupTable), readBatchSize)
	if err != nil {
		return nil, err
	}

	for _, kv := range groups {
		id := util.BytesAsUint64(kv.Key)

		var params Params
		if err := msgpack.Unmarshal(kv.Value, &params); err != nil {
			return nil, fmt.Errorf("decoding params of group %d: %w", id, err)
		}

		admin, err := store.Get(storage.AdminTable, kv.Key)
		if err != nil {
			return nil, fmt.Errorf("loading admin of group %d: %w", id, err)
		}
		r.admins[id] = string(admin.Value)

		pending, err := store.Get(storage.PendingAdminTable, kv.Key)
		switch err {
		case nil:
			r.pending[id] = string(pending.Value)
		case storage.ErrKeyNotFound:
		default:
			return nil, fmt.Errorf("loading pending admin of group %d: %w", id, err)
		}

		leaves, err := store.GetRange(storage.LeafTable, LeafKey(id, 0), LeafKey(id, -1))
		if err != nil {
			return nil, fmt.Errorf("loading leaves of group %d: %w", id, err)
		}
		values := make([]hashing.Digest, len(leaves))
		for i, leaf := range leaves {
			if !bytes.Equal(leaf.Key, LeafKey(id, i)) {
				return nil, fmt.Errorf("group %d: missing leaf %d", id, i)
			}
			values[i] = leaf.Value
		}

		g, err := newGroup(id, params, values)
		if err != nil {
			return nil, fmt.Errorf("rebuilding group %d: %w", id, err)
		}
		r.groups[id] = g
	}

	metrics.GroupsCount.Set(float64(len(r.groups)))
	log.Infof("Loaded %d groups from storage", len(r.groups))
	return r, nil
}

type groupRecord struct {
	ID           uint64   `msgpack:"id"`
	Params       Params   `msgpack:"params"`
	Admin        string   `msgpack:"admin"`
	PendingAdmin string   `msgpack:"pending,omitempty"`
	Leaves       [][]byte `msgpack:"leaves"`
}

// Snapshot serializes the whole registry.
func (r *Registry) Snapshot() ([]byte, error) {
	r.RLock()
	defer r.RUnlock()

	records := make([]groupRecord, 0, len(r.groups))
	for id, g := range r.groups {
		leaves := g.Leaves()
		record := groupRecord{
			ID:           id,
			Params:       g.Params(),
			Admin:        r.admins[id],
			PendingAdmin: r.pending[id],
			Leaves:       make([][]byte, len(leaves)),
		}
		for i, leaf := range leaves {
			record.Leaves[i] = leaf
		}
		records = append(records, record)
	}
	return msgpack.Marshal(records)
}

// Restore replaces the registry content with a snapshot and returns the
// storage writes that persist it.
func (r *Registry) Restore(buf []byte) ([]*storage.Mutation, error) {
	var records []groupRecord
	if err := msgpack.Unmarshal(buf, &records); err != nil {
		return nil, err
	}

	groups := make(map[uint64]*Group, len(records))
	admins := make(map[uint64]string, len(records))
	pending := make(map[uint64]string)
	mutations := make([]*storage.Mutation, 0)

	for _, record := range records {
		leaves := make([]hashing.Digest, len(record.Leaves))
		for i, leaf := range record.Leaves {
			leaves[i] = leaf
		}
		g, err := newGroup(record.ID, record.Params, leaves)
		if err != nil {
			return nil, fmt.Errorf("restoring group %d: %w", record.ID, err)
		}
		groups[record.ID] = g
		admins[record.ID] = record.Admin

		params, err := msgpack.Marshal(record.Params)
		if err != nil {
			return nil, err
		}
		key := GroupKey(record.ID)
		mutations = append(mutations,
			storage.NewMutation(storage.GroupTable, key, params),
			storage.NewMutation(storage.AdminTable, key, []byte(record.Admin)),
		)
		if record.PendingAdmin != "" {
			pending[record.ID] = record.PendingAdmin
			mutations = append(mutations, storage.NewMutation(storage.PendingAdminTable, key, []byte(record.PendingAdmin)))
		}
		for i, leaf := range record.Leaves {
			mutations = append(mutations, storage.NewMutation(storage.LeafTable, LeafKey(record.ID, i), leaf))
		}
	}

	r.Lock()
	r.groups, r.admins, r.pending = groups, admins, pending
	r.Unlock()
	metrics.GroupsCount.Set(float64(len(groups)))

	return mutations, nil
}
