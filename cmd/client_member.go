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

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bbva/imtree/protocol"
)

func newAddCommand(ctx *clientContext) *cobra.Command {
	var id uint64

	cmd := &cobra.Command{
		Use:   "add <commitment>...",
		Short: "Add members to a group",
		Long:  `Add hex encoded commitments to a group. Several commitments are added in one batch.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commitments, err := decodeArgs(args)
			if err != nil {
				return err
			}
			var event *protocol.Event
			if len(commitments) == 1 {
				event, err = ctx.client.AddMember(id, commitments[0])
			} else {
				event, err = ctx.client.AddMembers(id, commitments)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, event)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.MarkFlagRequired("group")

	return cmd
}

func newUpdateCommand(ctx *clientContext) *cobra.Command {
	var id uint64

	cmd := &cobra.Command{
		Use:   "update <commitment> <new-commitment>",
		Short: "Replace a member of a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			commitments, err := decodeArgs(args)
			if err != nil {
				return err
			}
			proof, err := ctx.client.MembershipProof(id, commitments[0])
			if err != nil {
				return err
			}
			event, err := ctx.client.UpdateMember(id, commitments[0], commitments[1], proof.Siblings)
			if err != nil {
				return err
			}
			return printJSON(cmd, event)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.MarkFlagRequired("group")

	return cmd
}

func newRemoveCommand(ctx *clientContext) *cobra.Command {
	var id uint64

	cmd := &cobra.Command{
		Use:   "remove <commitment>",
		Short: "Remove a member from a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commitments, err := decodeArgs(args)
			if err != nil {
				return err
			}
			proof, err := ctx.client.MembershipProof(id, commitments[0])
			if err != nil {
				return err
			}
			event, err := ctx.client.RemoveMember(id, commitments[0], proof.Siblings)
			if err != nil {
				return err
			}
			return printJSON(cmd, event)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.MarkFlagRequired("group")

	return cmd
}
