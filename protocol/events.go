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

package protocol

import (
	"github.com/bbva/imtree/group"
)

// Event is the public form of a group.Event, returned by every mutation of
// the API.
type Event struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	GroupID   uint64   `json:"groupId"`
	Timestamp int64    `json:"timestamp"`
	OldAdmin  string   `json:"oldAdmin,omitempty"`
	NewAdmin  string   `json:"newAdmin,omitempty"`
	Index     int      `json:"index"`
	OldValue  string   `json:"oldValue,omitempty"`
	NewValue  string   `json:"newValue,omitempty"`
	Values    []string `json:"values,omitempty"`
	Root      string   `json:"root,omitempty"`
}

// ToEvent translates a group.Event to its public form.
func ToEvent(e *group.Event) *Event {
	out := &Event{
		ID:        e.ID,
		Type:      e.Type.String(),
		GroupID:   e.GroupID,
		Timestamp: e.Timestamp,
		OldAdmin:  e.OldAdmin,
		NewAdmin:  e.NewAdmin,
		Index:     e.Index,
		OldValue:  EncodeDigest(e.OldValue),
		NewValue:  EncodeDigest(e.NewValue),
		Root:      EncodeDigest(e.Root),
	}
	if len(e.Values) > 0 {
		out.Values = EncodeDigests(e.Values)
	}
	return out
}
