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

// Package consensus replicates the group registry with Raft. Every mutation
// is a log entry applied in the same order on every node, and queries are
// served from the local copy of the registry.
package consensus

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	raftbadger "github.com/bbva/raft-badger"
	"github.com/hashicorp/raft"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bbva/imtree/cache"
	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/imt"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
	"github.com/bbva/imtree/protocol"
	"github.com/bbva/imtree/storage"
	"github.com/bbva/imtree/util"
)

const (
	retainSnapshotCount = 2
	leaderWaitDelay     = 100 * time.Millisecond
)

var (
	// ErrRaftGroupsInvalidState is returned when the node is in an invalid
	// state for the requested operation.
	ErrRaftGroupsInvalidState = errors.New("raft groups not in valid state")

	// ErrNotLeader is returned when a node attempts to execute a leader-only
	// operation.
	ErrNotLeader = errors.New("not leader")
)

// RaftGroups is a group registry replicated through Raft consensus.
type RaftGroups struct {
	path string // Base path for the node
	addr string // Node addr
	id   string // Node ID

	raft struct {
		api          *raft.Raft             // The consensus mechanism
		transport    *raft.NetworkTransport // Raft network transport
		config       *raft.Config           // Config provides any necessary configuration for the Raft server.
		nodes        *raft.Configuration    // Configuration tracks which servers are in the cluster, and whether they have votes.
		applyTimeout time.Duration
	}

	store struct {
		db        storage.Store           // Persistent database
		log       *raftbadger.BadgerStore // Persistent log store
		stable    *raftbadger.BadgerStore // Persistent k-v store
		snapshots *raft.FileSnapshotStore // Persistent snapshot store
	}

	sync.Mutex
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}

	fsm   *GroupsFSM
	cache cache.Cache
}

// NewRaftGroups returns a new RaftGroups. Events are handed to notifier by
// the leader once their entry is applied. Served proofs are kept in c,
// which may be nil.
func NewRaftGroups(path, addr, id string, store storage.Store, notifier group.Notifier, c cache.Cache) (*RaftGroups, error) {

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}

	// Create the log store and stable store
	logStore, err := raftbadger.NewBadgerStore(filepath.Join(path, "logs"))
	if err != nil {
		return nil, fmt.Errorf("new badger store: %w", err)
	}
	stableStore, err := raftbadger.NewBadgerStore(filepath.Join(path, "config"))
	if err != nil {
		logStore.Close()
		return nil, fmt.Errorf("new badger store: %w", err)
	}

	fsm, err := NewGroupsFSM(store, notifier)
	if err != nil {
		logStore.Close()
		stableStore.Close()
		return nil, fmt.Errorf("new groups fsm: %w", err)
	}

	rg := &RaftGroups{
		path:  path,
		addr:  addr,
		id:    id,
		done:  make(chan struct{}),
		fsm:   fsm,
		cache: c,
	}

	rg.store.db = store
	rg.store.log = logStore
	rg.store.stable = stableStore

	return rg, nil
}

// Open starts the Raft node. When bootstrap is true this node becomes the
// first node and therefore the leader of a new cluster.
func (rg *RaftGroups) Open(bootstrap bool) error {
	rg.Lock()
	defer rg.Unlock()

	if rg.closed {
		return ErrRaftGroupsInvalidState
	}

	log.Infof("opening raft groups with node ID %s", rg.id)

	leaderCh := make(chan bool, 1)

	// Setup Raft configuration
	rg.raft.config = raft.DefaultConfig()
	rg.raft.config.LocalID = raft.ServerID(rg.id)
	rg.raft.config.Logger = log.GetLogger()
	rg.raft.config.NotifyCh = leaderCh
	rg.raft.applyTimeout = 10 * time.Second

	// Setup Raft communication
	raddr, err := net.ResolveTCPAddr("tcp", rg.addr)
	if err != nil {
		return err
	}

	rg.raft.transport, err = raft.NewTCPTransportWithLogger(rg.addr, raddr, 3, 10*time.Second, log.GetLogger())
	if err != nil {
		return err
	}

	// Create the snapshot store. This allows the Raft to truncate the log.
	rg.store.snapshots, err = raft.NewFileSnapshotStoreWithLogger(rg.path, retainSnapshotCount, log.GetLogger())
	if err != nil {
		return fmt.Errorf("file snapshot store: %w", err)
	}

	// Instantiate the Raft system
	rg.raft.api, err = raft.NewRaft(rg.raft.config, rg.fsm, rg.store.log, rg.store.stable, rg.store.snapshots, rg.raft.transport)
	if err != nil {
		return fmt.Errorf("new raft: %w", err)
	}

	rg.wg.Add(1)
	go rg.monitorLeadership(leaderCh)

	if bootstrap {
		log.Info("bootstrap needed")
		rg.raft.nodes = &raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      rg.raft.config.LocalID,
					Address: rg.raft.transport.LocalAddr(),
				},
			},
		}
		rg.raft.api.BootstrapCluster(*rg.raft.nodes)
	} else {
		log.Info("no bootstrap needed")
	}

	return nil
}

func (rg *RaftGroups) monitorLeadership(leaderCh <-chan bool) {
	defer rg.wg.Done()
	for {
		select {
		case leader := <-leaderCh:
			log.Infof("node %s leadership changed: leader=%v", rg.id, leader)
			rg.fsm.setLeader(leader)
		case <-rg.done:
			return
		}
	}
}

// Close closes the node. If wait is true, waits for a graceful shutdown.
// Once closed, a RaftGroups may not be re-opened.
func (rg *RaftGroups) Close(wait bool) error {
	rg.Lock()
	defer rg.Unlock()
	if rg.closed {
		return nil
	}
	defer func() {
		rg.closed = true
	}()

	close(rg.done)
	rg.wg.Wait()

	// shutdown raft
	if rg.raft.api != nil {
		f := rg.raft.api.Shutdown()
		if wait {
			if err := f.Error(); err != nil {
				return err
			}
		}
		rg.raft.api = nil
	}

	if rg.raft.transport != nil {
		rg.raft.transport.Close()
	}

	// close raft store
	if err := rg.store.log.Close(); err != nil {
		return err
	}
	if err := rg.store.stable.Close(); err != nil {
		return err
	}
	rg.store.log = nil
	rg.store.stable = nil

	// close database
	if err := rg.store.db.Close(); err != nil {
		return err
	}
	rg.store.db = nil

	return nil
}

// WaitForLeader waits until the cluster has a leader or the timeout
// expires, and returns the leader address.
func (rg *RaftGroups) WaitForLeader(timeout time.Duration) (string, error) {
	tck := time.NewTicker(leaderWaitDelay)
	defer tck.Stop()
	tmr := time.NewTimer(timeout)
	defer tmr.Stop()

	for {
		select {
		case <-tck.C:
			l := string(rg.raft.api.Leader())
			if l != "" {
				return l, nil
			}
		case <-tmr.C:
			return "", fmt.Errorf("timeout expired")
		}
	}
}

// IsLeader returns whether current node is leader or not.
func (rg *RaftGroups) IsLeader() bool {
	return rg.raft.api.State() == raft.Leader
}

// Addr returns the Raft address of the node.
func (rg *RaftGroups) Addr() string {
	return string(rg.raft.transport.LocalAddr())
}

// LeaderAddr returns the Raft address of the current leader. Returns a
// blank string if there is no leader.
func (rg *RaftGroups) LeaderAddr() string {
	return string(rg.raft.api.Leader())
}

// ID returns the Raft ID of the node.
func (rg *RaftGroups) ID() string {
	return rg.id
}

// LeaderID returns the node ID of the Raft leader. Returns a
// blank string if there is no leader, or an error.
func (rg *RaftGroups) LeaderID() (string, error) {
	addr := rg.LeaderAddr()
	configFuture := rg.raft.api.GetConfiguration()
	if err := configFuture.Error(); err != nil {
		log.Infof("failed to get raft configuration: %v", err)
		return "", err
	}

	for _, srv := range configFuture.Configuration().Servers {
		if srv.Address == raft.ServerAddress(addr) {
			return string(srv.ID), nil
		}
	}
	return "", nil
}

// Nodes returns the slice of nodes in the cluster.
func (rg *RaftGroups) Nodes() ([]raft.Server, error) {
	f := rg.raft.api.GetConfiguration()
	if f.Error() != nil {
		return nil, f.Error()
	}
	return f.Configuration().Servers, nil
}

// Join joins a node, identified by id and located at addr, to this cluster.
// The node must be ready to respond to Raft communications at that address.
// This must be called from the Leader or it will fail.
func (rg *RaftGroups) Join(nodeID, addr string) error {

	log.Infof("received join request for remote node %s at %s", nodeID, addr)

	configFuture := rg.raft.api.GetConfiguration()
	if err := configFuture.Error(); err != nil {
		log.Errorf("failed to get raft servers configuration: %v", err)
		return err
	}

	for _, srv := range configFuture.Configuration().Servers {
		// A node with either the same ID or address has to be removed first,
		// unless both match and there is nothing to do.
		if srv.ID == raft.ServerID(nodeID) || srv.Address == raft.ServerAddress(addr) {
			if srv.Address == raft.ServerAddress(addr) && srv.ID == raft.ServerID(nodeID) {
				log.Infof("node %s at %s already member of cluster, ignoring join request", nodeID, addr)
				return nil
			}

			future := rg.raft.api.RemoveServer(srv.ID, 0, 0)
			if err := future.Error(); err != nil {
				return fmt.Errorf("error removing existing node %s at %s: %w", nodeID, addr, err)
			}
		}
	}

	f := rg.raft.api.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0)
	if err := f.Error(); err != nil {
		if err == raft.ErrNotLeader {
			return ErrNotLeader
		}
		return err
	}

	log.Infof("node %s at %s joined successfully", nodeID, addr)
	return nil
}

// Remove removes a node from the cluster, specified by ID.
func (rg *RaftGroups) Remove(id string) error {
	log.Infof("received request to remove node %s", id)
	if rg.raft.api.State() != raft.Leader {
		return ErrNotLeader
	}

	f := rg.raft.api.RemoveServer(raft.ServerID(id), 0, 0)
	if err := f.Error(); err != nil {
		log.Infof("failed to remove node %s: %v", id, err)
		if err == raft.ErrNotLeader {
			return ErrNotLeader
		}
		return err
	}

	log.Infof("node %s removed successfully", id)
	return nil
}

// Info returns the node and cluster information served in /info/shards.
func (rg *RaftGroups) Info() *protocol.ClusterInfo {
	info := &protocol.ClusterInfo{
		NodeId:     rg.ID(),
		LeaderAddr: rg.LeaderAddr(),
		IsLeader:   rg.IsLeader(),
		Groups:     len(rg.fsm.Registry().Groups()),
		Nodes:      make(map[string]protocol.NodeDetail),
	}
	info.LeaderId, _ = rg.LeaderID()
	if nodes, err := rg.Nodes(); err == nil {
		for _, n := range nodes {
			info.Nodes[string(n.ID)] = protocol.NodeDetail{NodeId: string(n.ID), RaftAddr: string(n.Address)}
		}
	}
	return info
}

// applies a command into the Raft log and waits until it is applied.
func (rg *RaftGroups) raftApply(t CommandType, cmd interface{}) (*group.Event, error) {
	timer := prometheus.NewTimer(metrics.GroupMutationDurationSeconds)
	defer timer.ObserveDuration()

	c := newCommand(t)
	if err := c.encode(cmd); err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", t, err)
	}
	future := rg.raft.api.Apply(c.data, rg.raft.applyTimeout)
	if err := future.Error(); err != nil {
		if err == raft.ErrNotLeader {
			return nil, ErrNotLeader
		}
		return nil, err
	}
	resp := future.Response().(*fsmResponse)
	return resp.event, resp.err
}

// CreateGroup creates an empty group administered by admin.
func (rg *RaftGroups) CreateGroup(id uint64, admin string, params group.Params) (*group.Event, error) {
	return rg.raftApply(createGroupCommandType, &createGroupCommand{GroupID: id, Admin: admin, Params: params})
}

// UpdateGroupAdmin proposes newAdmin as the admin of the group.
func (rg *RaftGroups) UpdateGroupAdmin(id uint64, caller, newAdmin string) (*group.Event, error) {
	return rg.raftApply(updateGroupAdminCommandType, &updateGroupAdminCommand{GroupID: id, Caller: caller, NewAdmin: newAdmin})
}

// AcceptGroupAdmin completes a pending admin transfer.
func (rg *RaftGroups) AcceptGroupAdmin(id uint64, caller string) (*group.Event, error) {
	return rg.raftApply(acceptGroupAdminCommandType, &acceptGroupAdminCommand{GroupID: id, Caller: caller})
}

// AddMember appends a commitment to the group.
func (rg *RaftGroups) AddMember(id uint64, caller string, commitment hashing.Digest) (*group.Event, error) {
	return rg.raftApply(addMemberCommandType, &addMemberCommand{GroupID: id, Caller: caller, Commitment: commitment})
}

// AddMembers appends every commitment to the group, or none of them.
func (rg *RaftGroups) AddMembers(id uint64, caller string, commitments []hashing.Digest) (*group.Event, error) {
	return rg.raftApply(addMembersCommandType, &addMembersCommand{GroupID: id, Caller: caller, Commitments: commitments})
}

// UpdateMember replaces a commitment of the group.
func (rg *RaftGroups) UpdateMember(id uint64, caller string, old, updated hashing.Digest, siblings [][]hashing.Digest) (*group.Event, error) {
	return rg.raftApply(updateMemberCommandType, &updateMemberCommand{
		GroupID:  id,
		Caller:   caller,
		Old:      old,
		Updated:  updated,
		Siblings: siblings,
	})
}

// RemoveMember zeroes a commitment of the group.
func (rg *RaftGroups) RemoveMember(id uint64, caller string, commitment hashing.Digest, siblings [][]hashing.Digest) (*group.Event, error) {
	return rg.raftApply(removeMemberCommandType, &removeMemberCommand{
		GroupID:    id,
		Caller:     caller,
		Commitment: commitment,
		Siblings:   siblings,
	})
}

// GroupAdmin returns the admin of the group.
func (rg *RaftGroups) GroupAdmin(id uint64) (string, error) {
	return rg.fsm.Registry().GroupAdmin(id)
}

// HasMember reports whether commitment is a member of the group.
func (rg *RaftGroups) HasMember(id uint64, commitment hashing.Digest) (bool, error) {
	return rg.fsm.Registry().HasMember(id, commitment)
}

// IndexOf returns the leaf index of a member.
func (rg *RaftGroups) IndexOf(id uint64, commitment hashing.Digest) (int, error) {
	return rg.fsm.Registry().IndexOf(id, commitment)
}

// Root returns the current root of the group.
func (rg *RaftGroups) Root(id uint64) (hashing.Digest, error) {
	return rg.fsm.Registry().Root(id)
}

// GroupInfo returns a summary of the group.
func (rg *RaftGroups) GroupInfo(id uint64) (*group.Info, error) {
	return rg.fsm.Registry().Info(id)
}

// Groups returns the ids of every group.
func (rg *RaftGroups) Groups() []uint64 {
	return rg.fsm.Registry().Groups()
}

// VerifyProof checks a proof against the group parameters. current reports
// whether the proof root is the current root of the group.
func (rg *RaftGroups) VerifyProof(id uint64, proof *imt.MerkleProof) (valid bool, current bool, err error) {
	return rg.fsm.Registry().VerifyProof(id, proof)
}

// Proof returns the membership proof of a commitment against the current
// root of the group. Proofs are cached by group, root and leaf index.
func (rg *RaftGroups) Proof(id uint64, commitment hashing.Digest) (*imt.MerkleProof, error) {
	timer := prometheus.NewTimer(metrics.GroupProofDurationSeconds)
	defer timer.ObserveDuration()

	registry := rg.fsm.Registry()
	if rg.cache == nil {
		return registry.Proof(id, commitment)
	}

	index, err := registry.IndexOf(id, commitment)
	if err != nil {
		return nil, err
	}
	root, err := registry.Root(id)
	if err != nil {
		return nil, err
	}

	key := proofKey(id, root, index)
	if buf, ok := rg.cache.Get(key); ok {
		if proof, err := decodeProof(buf); err == nil {
			metrics.ProofCacheHits.Inc()
			return proof, nil
		}
	}
	metrics.ProofCacheMisses.Inc()

	proof, err := registry.Proof(id, commitment)
	if err != nil {
		return nil, err
	}
	// a concurrent mutation may have moved the root in between
	if bytes.Equal(proof.Root, root) {
		if buf, err := encodeProof(proof); err == nil {
			rg.cache.Put(key, buf)
		}
	}
	return proof, nil
}

func proofKey(id uint64, root hashing.Digest, index int) []byte {
	key := make([]byte, 0, 16+len(root))
	key = append(key, util.Uint64AsBytes(id)...)
	key = append(key, root...)
	return append(key, util.Uint64AsBytes(uint64(index))...)
}
