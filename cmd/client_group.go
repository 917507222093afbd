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

	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/protocol"
)

func newCreateCommand(ctx *clientContext) *cobra.Command {
	var id uint64
	var admin, zero string
	params := group.DefaultParams()

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		Long:  `Create an empty group. Without --admin the caller administers it.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params.ZeroValue = nil
			if zero != "" {
				z, err := protocol.DecodeDigest(zero)
				if err != nil {
					return err
				}
				params.ZeroValue = z
			}
			event, err := ctx.client.CreateGroup(id, admin, params)
			if err != nil {
				return err
			}
			return printJSON(cmd, event)
		},
	}

	f := cmd.Flags()
	f.Uint64Var(&id, "group", 0, "Group id")
	f.StringVar(&admin, "admin", "", "Group admin")
	f.IntVar(&params.Depth, "depth", params.Depth, "Tree depth")
	f.IntVar(&params.Arity, "arity", params.Arity, "Children per node")
	f.StringVar(&zero, "zero", "", "Hex encoded empty leaf value")
	f.StringVar(&params.Hash, "hash", params.Hash, "Node hash: join, keccak256, sha256, blake2b, with an optional -hex suffix")
	cmd.MarkFlagRequired("group")

	return cmd
}

func newAdminCommand(ctx *clientContext) *cobra.Command {
	var id uint64
	var newAdmin string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Propose a new group admin",
		Long:  `Propose a new admin. It takes over once it accepts with the accept command.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := ctx.client.UpdateGroupAdmin(id, newAdmin)
			if err != nil {
				return err
			}
			return printJSON(cmd, event)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.Flags().StringVar(&newAdmin, "new-admin", "", "Proposed admin")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("new-admin")

	return cmd
}

func newAcceptCommand(ctx *clientContext) *cobra.Command {
	var id uint64

	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Accept the admin role of a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := ctx.client.AcceptGroupAdmin(id)
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

func newInfoCommand(ctx *clientContext) *cobra.Command {
	var id uint64

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the parameters, admin and root of a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := ctx.client.GroupInfo(id)
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.MarkFlagRequired("group")

	return cmd
}
