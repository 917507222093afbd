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
	"fmt"
	"sort"
	"sync"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/imt"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
)

// Registry holds every group with its admin. Mutations are serialized and
// queries may run concurrently. Each mutation returns the Event describing
// it, which is also handed to the registry notifier.
type Registry struct {
	sync.RWMutex
	groups   map[uint64]*Group
	admins   map[uint64]string
	pending  map[uint64]string
	notifier Notifier
}

// NewRegistry returns an empty registry. A nil notifier discards events.
func NewRegistry(notifier Notifier) *Registry {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Registry{
		groups:   make(map[uint64]*Group),
		admins:   make(map[uint64]string),
		pending:  make(map[uint64]string),
		notifier: notifier,
	}
}

// Info summarizes a group.
type Info struct {
	ID           uint64         `json:"id"`
	Admin        string         `json:"admin"`
	PendingAdmin string         `json:"pendingAdmin,omitempty"`
	Params       Params         `json:"params"`
	Size         int            `json:"size"`
	Members      int            `json:"members"`
	Root         hashing.Digest `json:"root"`
}

// CreateGroup creates an empty group administered by admin.
func (r *Registry) CreateGroup(id uint64, admin string, params Params) (*Event, error) {
	if admin == "" {
		return nil, ErrInvalidAdmin
	}
	params = params.WithDefaults()

	r.Lock()
	defer r.Unlock()

	if _, ok := r.groups[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrGroupAlreadyExists, id)
	}
	g, err := NewGroup(id, params)
	if err != nil {
		return nil, err
	}
	r.groups[id] = g
	r.admins[id] = admin
	metrics.GroupsCount.Set(float64(len(r.groups)))

	e := newEvent(GroupCreated, id)
	e.NewAdmin = admin
	e.Params = &params
	e.Root = g.Root()
	return r.emit(e), nil
}

// UpdateGroupAdmin proposes newAdmin as admin of the group. The change is
// effective once newAdmin accepts it.
func (r *Registry) UpdateGroupAdmin(id uint64, caller, newAdmin string) (*Event, error) {
	if newAdmin == "" {
		return nil, ErrInvalidAdmin
	}

	r.Lock()
	defer r.Unlock()

	if err := r.onlyGroupAdmin(id, caller); err != nil {
		return nil, err
	}
	r.pending[id] = newAdmin

	e := newEvent(GroupAdminPending, id)
	e.OldAdmin = caller
	e.NewAdmin = newAdmin
	return r.emit(e), nil
}

// AcceptGroupAdmin makes the pending admin of the group its admin.
func (r *Registry) AcceptGroupAdmin(id uint64, caller string) (*Event, error) {
	r.Lock()
	defer r.Unlock()

	if _, err := r.group(id); err != nil {
		return nil, err
	}
	if pending, ok := r.pending[id]; !ok || pending != caller {
		return nil, ErrCallerIsNotThePendingGroupAdmin
	}

	e := newEvent(GroupAdminUpdated, id)
	e.OldAdmin = r.admins[id]
	e.NewAdmin = caller

	r.admins[id] = caller
	delete(r.pending, id)
	return r.emit(e), nil
}

// AddMember adds a commitment to the group.
func (r *Registry) AddMember(id uint64, caller string, commitment hashing.Digest) (*Event, error) {
	r.Lock()
	defer r.Unlock()

	if err := r.onlyGroupAdmin(id, caller); err != nil {
		return nil, err
	}
	index, root, err := r.groups[id].AddMember(commitment)
	if err != nil {
		return nil, err
	}

	e := newEvent(MemberAdded, id)
	e.Index = index
	e.NewValue = commitment
	e.Root = root
	return r.emit(e), nil
}

// AddMembers adds every commitment to the group, or none of them.
func (r *Registry) AddMembers(id uint64, caller string, commitments []hashing.Digest) (*Event, error) {
	r.Lock()
	defer r.Unlock()

	if err := r.onlyGroupAdmin(id, caller); err != nil {
		return nil, err
	}
	start, root, err := r.groups[id].AddMembers(commitments)
	if err != nil {
		return nil, err
	}

	e := newEvent(MembersAdded, id)
	e.Index = start
	e.Values = commitments
	e.Root = root
	return r.emit(e), nil
}

// UpdateMember replaces a member of the group.
func (r *Registry) UpdateMember(id uint64, caller string, old, updated hashing.Digest, siblings [][]hashing.Digest) (*Event, error) {
	r.Lock()
	defer r.Unlock()

	if err := r.onlyGroupAdmin(id, caller); err != nil {
		return nil, err
	}
	index, root, err := r.groups[id].UpdateMember(old, updated, siblings)
	if err != nil {
		return nil, err
	}

	e := newEvent(MemberUpdated, id)
	e.Index = index
	e.OldValue = old
	e.NewValue = updated
	e.Root = root
	return r.emit(e), nil
}

// RemoveMember zeroes the leaf of a member of the group.
func (r *Registry) RemoveMember(id uint64, caller string, commitment hashing.Digest, siblings [][]hashing.Digest) (*Event, error) {
	r.Lock()
	defer r.Unlock()

	if err := r.onlyGroupAdmin(id, caller); err != nil {
		return nil, err
	}
	g := r.groups[id]
	index, root, err := g.RemoveMember(commitment, siblings)
	if err != nil {
		return nil, err
	}

	e := newEvent(MemberRemoved, id)
	e.Index = index
	e.OldValue = commitment
	e.NewValue = g.Params().ZeroValue
	e.Root = root
	return r.emit(e), nil
}

// GroupAdmin returns the admin of the group.
func (r *Registry) GroupAdmin(id uint64) (string, error) {
	r.RLock()
	defer r.RUnlock()
	if _, err := r.group(id); err != nil {
		return "", err
	}
	return r.admins[id], nil
}

// HasMember tells whether commitment is a current member of the group.
func (r *Registry) HasMember(id uint64, commitment hashing.Digest) (bool, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return false, err
	}
	return g.HasMember(commitment), nil
}

// IndexOf returns the leaf index of a member of the group.
func (r *Registry) IndexOf(id uint64, commitment hashing.Digest) (int, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return -1, err
	}
	return g.IndexOf(commitment)
}

// Root returns the current root of the group tree.
func (r *Registry) Root(id uint64) (hashing.Digest, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return nil, err
	}
	return g.Root(), nil
}

// Depth returns the depth of the group tree.
func (r *Registry) Depth(id uint64) (int, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return 0, err
	}
	return g.Depth(), nil
}

// Size returns the number of leaves of the group tree.
func (r *Registry) Size(id uint64) (int, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return 0, err
	}
	return g.Size(), nil
}

// Proof returns a membership proof of a member of the group.
func (r *Registry) Proof(id uint64, commitment hashing.Digest) (*imt.MerkleProof, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return nil, err
	}
	return g.GenerateProof(commitment)
}

// VerifyProof checks a proof with the group hash function and arity, and
// tells whether its root is the current group root.
func (r *Registry) VerifyProof(id uint64, proof *imt.MerkleProof) (valid bool, current bool, err error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return false, false, err
	}
	valid, err = g.VerifyProof(proof)
	if err != nil {
		return false, false, err
	}
	return valid, valid && string(proof.Root) == string(g.Root()), nil
}

// Info summarizes the group.
func (r *Registry) Info(id uint64) (*Info, error) {
	r.RLock()
	defer r.RUnlock()
	g, err := r.group(id)
	if err != nil {
		return nil, err
	}
	return &Info{
		ID:           id,
		Admin:        r.admins[id],
		PendingAdmin: r.pending[id],
		Params:       g.Params(),
		Size:         g.Size(),
		Members:      len(g.members),
		Root:         g.Root(),
	}, nil
}

// Groups returns the ids of every group, sorted.
func (r *Registry) Groups() []uint64 {
	r.RLock()
	defer r.RUnlock()
	ids := make([]uint64, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) group(id uint64) (*Group, error) {
	g, ok := r.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGroupDoesNotExist, id)
	}
	return g, nil
}

func (r *Registry) onlyGroupAdmin(id uint64, caller string) error {
	if _, err := r.group(id); err != nil {
		return err
	}
	if r.admins[id] != caller {
		return ErrCallerIsNotTheGroupAdmin
	}
	return nil
}

func (r *Registry) emit(e *Event) *Event {
	log.Debugf("group %d: %s index=%d root=%x", e.GroupID, e.Type, e.Index, e.Root)
	r.notifier.Notify(e)
	return e
}
