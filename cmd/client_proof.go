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
	"encoding/json"
	"io/ioutil"

	"github.com/spf13/cobra"

	"github.com/bbva/imtree/protocol"
)

func newProofCommand(ctx *clientContext) *cobra.Command {
	var id uint64
	var out string

	cmd := &cobra.Command{
		Use:   "proof <commitment>",
		Short: "Ask for the membership proof of a commitment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			commitment, err := protocol.DecodeDigest(args[0])
			if err != nil {
				return err
			}
			proof, err := ctx.client.MembershipProof(id, commitment)
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd, protocol.ToMerkleProof(proof))
			}
			data, err := json.Marshal(protocol.ToMerkleProof(proof))
			if err != nil {
				return err
			}
			return ioutil.WriteFile(out, data, 0644)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the proof to this file instead of the standard output")
	cmd.MarkFlagRequired("group")

	return cmd
}

func newClientVerifyCommand(ctx *clientContext) *cobra.Command {
	var id uint64
	var path string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Ask the server to verify a proof",
		Long: `Verify a proof with the group parameters and tell whether it is against the
current group root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readProof(path)
			if err != nil {
				return err
			}
			proof, err := p.ToImt()
			if err != nil {
				return err
			}
			result, err := ctx.client.VerifyProof(id, proof)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().Uint64Var(&id, "group", 0, "Group id")
	cmd.Flags().StringVarP(&path, "proof", "p", "", "Proof file, as written by the proof command")
	cmd.MarkFlagRequired("group")
	cmd.MarkFlagRequired("proof")

	return cmd
}
