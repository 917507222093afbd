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

// Package storage defines the key-value store abstraction used to persist
// the group registry.
package storage

import (
	"bytes"
	"errors"
	"sort"
)

// Table groups the keys of one kind of record. Every backend keeps the
// tables apart by prefixing keys with Table.Prefix.
type Table uint32

const (
	DefaultTable Table = iota
	GroupTable
	LeafTable
	AdminTable
	PendingAdminTable
	FSMStateTable
)

// String returns a string representation of the table.
func (t Table) String() string {
	var s string
	switch t {
	case DefaultTable:
		s = "default"
	case GroupTable:
		s = "groups"
	case LeafTable:
		s = "leaves"
	case AdminTable:
		s = "admins"
	case PendingAdminTable:
		s = "pending_admins"
	case FSMStateTable:
		s = "fsm_state"
	}
	return s
}

// Prefix returns the byte prepended to every key of the table.
func (t Table) Prefix() byte {
	return byte(t)
}

// Tables lists every table known by the store.
var Tables = []Table{DefaultTable, GroupTable, LeafTable, AdminTable, PendingAdminTable, FSMStateTable}

var (
	ErrKeyNotFound = errors.New("key not found")
)

type Store interface {
	Mutate(mutations []*Mutation) error
	GetRange(table Table, start, end []byte) (KVRange, error)
	Get(table Table, key []byte) (*KVPair, error)
	GetAll(table Table) KVPairReader
	Delete(table Table, key []byte) error
	Close() error
}

// Mutation is a pending write. A mutation with Remove set deletes the key
// instead.
type Mutation struct {
	Table      Table
	Key, Value []byte
	Remove     bool
}

func NewMutation(table Table, key, value []byte) *Mutation {
	return &Mutation{Table: table, Key: key, Value: value}
}

func NewDeletion(table Table, key []byte) *Mutation {
	return &Mutation{Table: table, Key: key, Remove: true}
}

type KVPair struct {
	Key, Value []byte
}

func NewKVPair(key, value []byte) KVPair {
	return KVPair{Key: key, Value: value}
}

type KVPairReader interface {
	Read([]*KVPair) (n int, err error)
	Close()
}

// ReadAll drains a reader in batches of batchSize pairs.
func ReadAll(r KVPairReader, batchSize int) ([]*KVPair, error) {
	defer r.Close()
	result := make([]*KVPair, 0)
	buffer := make([]*KVPair, batchSize)
	for {
		n, err := r.Read(buffer)
		if err != nil {
			return nil, err
		}
		result = append(result, buffer[:n]...)
		if n < batchSize {
			return result, nil
		}
	}
}

type KVRange []KVPair

func NewKVRange() KVRange {
	return make(KVRange, 0)
}

func (r KVRange) InsertSorted(p KVPair) KVRange {

	if len(r) == 0 {
		r = append(r, p)
		return r
	}

	index := sort.Search(len(r), func(i int) bool {
		return bytes.Compare(r[i].Key, p.Key) > 0
	})

	if index > 0 && bytes.Equal(r[index-1].Key, p.Key) {
		return r
	}

	r = append(r, p)
	copy(r[index+1:], r[index:])
	r[index] = p
	return r
}

func (r KVRange) Split(key []byte) (left, right KVRange) {
	// the smallest index i where r[i] >= index
	index := sort.Search(len(r), func(i int) bool {
		return bytes.Compare(r[i].Key, key) >= 0
	})
	return r[:index], r[index:]
}

func (r KVRange) Get(key []byte) (KVPair, bool) {
	index := sort.Search(len(r), func(i int) bool {
		return bytes.Compare(r[i].Key, key) >= 0
	})
	if index < len(r) && bytes.Equal(r[index].Key, key) {
		return r[index], true
	}
	return KVPair{}, false
}
