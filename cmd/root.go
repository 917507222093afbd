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

// Package cmd implements the imtree command line: the server node, the API
// client and the offline proof verifier.
package cmd

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	v "github.com/spf13/viper"

	"github.com/bbva/imtree/log"
)

const defaultConfigFile = "~/.imtree/config.yml"

// NewRootCommand builds the imtree command tree.
func NewRootCommand() *cobra.Command {
	ctx := &cmdContext{}

	cmd := &cobra.Command{
		Use:   "imtree",
		Short: "Incremental Merkle tree group registry",
		Long: `imtree keeps groups of commitments in incremental Merkle trees, replicated
with raft, and serves membership proofs over a REST API.`,
		// SilenceUsage is set to true -> https://github.com/spf13/cobra/issues/340
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&ctx.configFile, "config-file", "c", defaultConfigFile, "Path to the yaml configuration file")
	f.BoolVarP(&ctx.disableConfig, "no-conf", "n", false, "Ignore the configuration file")
	f.StringVarP(&ctx.logLevel, "log", "l", log.ERROR, "Choose between log levels: silent, error, info and debug")
	f.StringVarP(&ctx.apiKey, "api-key", "k", "my-key", "Key sent to the imtree API")

	// Lookups
	v.BindPFlag("log", f.Lookup("log"))
	v.BindPFlag("api_key", f.Lookup("api-key"))

	cmd.AddCommand(
		newStartCommand(ctx),
		newClientCommand(ctx),
		newVerifyCommand(ctx),
		newVersionCommand(),
	)

	return cmd
}

// load merges the configuration file and the IMTREE_ environment
// variables under the command line flags.
func (ctx *cmdContext) load() error {
	v.SetEnvPrefix("IMTREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if !ctx.disableConfig {
		path, err := homedir.Expand(ctx.configFile)
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file %s: %w", path, err)
			}
		} else if ctx.configFile != defaultConfigFile {
			return fmt.Errorf("config file %s: %w", path, err)
		}
	}

	ctx.logLevel = v.GetString("log")
	ctx.apiKey = v.GetString("api_key")
	log.SetLogger("imtree", ctx.logLevel)
	return nil
}
