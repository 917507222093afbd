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
	"time"

	"github.com/hashicorp/go-msgpack/codec"
	"github.com/pborman/uuid"

	"github.com/bbva/imtree/crypto/hashing"
)

// EventType identifies the registry change an Event describes.
type EventType uint8

const (
	GroupCreated EventType = iota
	GroupAdminUpdated
	GroupAdminPending
	MemberAdded
	MembersAdded
	MemberUpdated
	MemberRemoved
)

func (t EventType) String() string {
	switch t {
	case GroupCreated:
		return "GroupCreated"
	case GroupAdminUpdated:
		return "GroupAdminUpdated"
	case GroupAdminPending:
		return "GroupAdminPending"
	case MemberAdded:
		return "MemberAdded"
	case MembersAdded:
		return "MembersAdded"
	case MemberUpdated:
		return "MemberUpdated"
	case MemberRemoved:
		return "MemberRemoved"
	}
	return fmt.Sprintf("EventType(%d)", uint8(t))
}

// Event describes a change of the registry. Index is the leaf index of a
// member event, or the first index for MembersAdded. Root is the group root
// after the change.
type Event struct {
	ID        string
	Type      EventType
	GroupID   uint64
	Timestamp int64

	OldAdmin string `codec:",omitempty"`
	NewAdmin string `codec:",omitempty"`
	Params   *Params `codec:",omitempty"`

	Index    int              `codec:",omitempty"`
	OldValue hashing.Digest   `codec:",omitempty"`
	NewValue hashing.Digest   `codec:",omitempty"`
	Values   []hashing.Digest `codec:",omitempty"`
	Root     hashing.Digest   `codec:",omitempty"`
}

func newEvent(t EventType, groupID uint64) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      t,
		GroupID:   groupID,
		Timestamp: time.Now().UnixNano(),
	}
}

// Notifier receives every event produced by a Registry.
type Notifier interface {
	Notify(*Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(*Event) {}

var eventHandle = new(codec.MsgpackHandle)

// Encode returns the msgpack representation of the event.
func (e *Event) Encode() ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, eventHandle)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeEvent reverses Encode.
func DecodeEvent(buf []byte) (*Event, error) {
	var e Event
	dec := codec.NewDecoderBytes(buf, eventHandle)
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}
