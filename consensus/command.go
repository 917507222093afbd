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
	"fmt"

	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
)

// CommandType are commands that affect the state of the registry,
// and must go through raft.
type CommandType uint8

const (
	createGroupCommandType CommandType = iota
	updateGroupAdminCommandType
	acceptGroupAdminCommandType
	addMemberCommandType
	addMembersCommandType
	updateMemberCommandType
	removeMemberCommandType
)

func (t CommandType) String() string {
	switch t {
	case createGroupCommandType:
		return "create-group"
	case updateGroupAdminCommandType:
		return "update-group-admin"
	case acceptGroupAdminCommandType:
		return "accept-group-admin"
	case addMemberCommandType:
		return "add-member"
	case addMembersCommandType:
		return "add-members"
	case updateMemberCommandType:
		return "update-member"
	case removeMemberCommandType:
		return "remove-member"
	}
	return fmt.Sprintf("command(%d)", uint8(t))
}

type createGroupCommand struct {
	GroupID uint64
	Admin   string
	Params  group.Params
}

type updateGroupAdminCommand struct {
	GroupID  uint64
	Caller   string
	NewAdmin string
}

type acceptGroupAdminCommand struct {
	GroupID uint64
	Caller  string
}

type addMemberCommand struct {
	GroupID    uint64
	Caller     string
	Commitment hashing.Digest
}

type addMembersCommand struct {
	GroupID     uint64
	Caller      string
	Commitments []hashing.Digest
}

type updateMemberCommand struct {
	GroupID  uint64
	Caller   string
	Old      hashing.Digest
	Updated  hashing.Digest
	Siblings [][]hashing.Digest
}

type removeMemberCommand struct {
	GroupID    uint64
	Caller     string
	Commitment hashing.Digest
	Siblings   [][]hashing.Digest
}

// Command is a raft log entry: a type byte followed by the msgpack
// encoded command.
type Command struct {
	id   CommandType
	data []byte
}

func (c *Command) encode(cmd interface{}) error {
	var buf bytes.Buffer
	buf.WriteByte(uint8(c.id))
	data, err := encodeMsgPack(cmd)
	if err != nil {
		return err
	}
	buf.Write(data)
	c.data = buf.Bytes()
	return nil
}

func (c *Command) decode(out interface{}) error {
	if len(c.data) == 0 {
		return fmt.Errorf("command is empty")
	}
	if c.id != CommandType(c.data[0]) {
		return fmt.Errorf("command type %v is not %v", c.id, CommandType(c.data[0]))
	}
	return decodeMsgPack(c.data[1:], out)
}

func newCommand(t CommandType) *Command {
	return &Command{id: t}
}

func newCommandFromRaft(data []byte) *Command {
	c := &Command{data: data}
	if len(data) > 0 {
		c.id = CommandType(data[0])
	}
	return c
}
