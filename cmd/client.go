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
	v "github.com/spf13/viper"

	"github.com/bbva/imtree/client"
	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/protocol"
)

func newClientCommand(ctx *cmdContext) *cobra.Command {
	clientCtx := &clientContext{config: client.DefaultConfig()}

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Client mode for imtree",
		Long:  `Client to manage groups and their members and to ask for membership proofs`,
		// WARN: PersistentPreRun can't be nested, so the root configuration
		// is loaded here too.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.load(); err != nil {
				return err
			}

			conf := clientCtx.config
			conf.Endpoint = v.GetString("client.endpoint")
			conf.Caller = v.GetString("client.caller")
			conf.Insecure = v.GetBool("client.insecure")
			conf.Timeout = v.GetDuration("client.timeout")
			conf.MaxRetries = v.GetInt("client.max-retries")
			conf.APIKey = ctx.apiKey
			if err := urlParse(conf.Endpoint); err != nil {
				return err
			}

			clientCtx.client = client.NewHTTPClient(conf)
			return nil
		},
		TraverseChildren: true,
	}

	conf := clientCtx.config
	f := cmd.PersistentFlags()
	f.StringVarP(&conf.Endpoint, "endpoint", "e", conf.Endpoint, "Endpoint for REST requests on (http://host:port)")
	f.StringVar(&conf.Caller, "caller", conf.Caller, "Identity sent with every mutation")
	f.BoolVar(&conf.Insecure, "insecure", conf.Insecure, "Allow self signed certificates")
	f.DurationVar(&conf.Timeout, "timeout", conf.Timeout, "Time to wait for a request")
	f.IntVar(&conf.MaxRetries, "max-retries", conf.MaxRetries, "Retries of a failed request. Mutations are not idempotent")

	// Lookups
	for _, name := range []string{"endpoint", "caller", "insecure", "timeout", "max-retries"} {
		v.BindPFlag("client."+name, f.Lookup(name))
	}

	cmd.AddCommand(
		newCreateCommand(clientCtx),
		newAdminCommand(clientCtx),
		newAcceptCommand(clientCtx),
		newInfoCommand(clientCtx),
		newAddCommand(clientCtx),
		newUpdateCommand(clientCtx),
		newRemoveCommand(clientCtx),
		newProofCommand(clientCtx),
		newClientVerifyCommand(clientCtx),
	)

	return cmd
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(out, '\n'))
	return err
}

func decodeArgs(args []string) ([]hashing.Digest, error) {
	return protocol.DecodeDigests(args)
}

func readProof(path string) (*protocol.MerkleProof, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var proof protocol.MerkleProof
	if err := json.Unmarshal(data, &proof); err != nil {
		return nil, err
	}
	return &proof, nil
}
