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
	"errors"

	"github.com/spf13/cobra"

	"github.com/bbva/imtree/client"
	"github.com/bbva/imtree/group"
)

var errInvalidProof = errors.New("invalid proof")

func newVerifyCommand(ctx *cmdContext) *cobra.Command {
	var path, hash string
	var arity int

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a membership proof offline",
		Long: `Verify a membership proof file without contacting any server, given the hash
function and the arity of its group.`,
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
			valid, err := client.Verify(proof, hash, arity)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, map[string]bool{"valid": valid}); err != nil {
				return err
			}
			if !valid {
				return errInvalidProof
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&path, "proof", "p", "", "Proof file, as written by the client proof command")
	f.StringVar(&hash, "hash", group.DefaultHash, "Node hash of the group")
	f.IntVar(&arity, "arity", group.DefaultArity, "Children per node of the group")
	cmd.MarkFlagRequired("proof")

	return cmd
}
