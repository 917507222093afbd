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
	"os"

	"github.com/spf13/cobra"
	v "github.com/spf13/viper"

	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/server"
	"github.com/bbva/imtree/util"
)

func newStartCommand(ctx *cmdContext) *cobra.Command {
	conf := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an imtree server node",
		Long: `Start a node of the replicated group registry. The first node of a cluster
bootstraps it; the rest join through the management address of a member.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			loadServerConfig(conf)
			conf.Log = ctx.logLevel
			return urlParseNoSchemaRequired(conf.HTTPAddr, conf.RaftAddr, conf.MgmtAddr, conf.MetricsAddr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if conf.SSLCertificate != "" && conf.SSLCertificateKey != "" {
				if _, err := os.Stat(conf.SSLCertificate); os.IsNotExist(err) {
					log.Infof("Can't find certificate .crt file: %v", err)
				} else if _, err := os.Stat(conf.SSLCertificateKey); os.IsNotExist(err) {
					log.Infof("Can't find certificate .key file: %v", err)
				} else {
					log.Info("EnabledTLS")
					conf.EnableTLS = true
				}
			}

			srv, err := server.NewServer(conf)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				_ = srv.Stop()
				return err
			}

			util.AwaitTermSignal(srv.Stop)
			log.Debug("Stopping server, about to exit...")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&conf.NodeID, "node-id", conf.NodeID, "Unique name for node. If not set, fallback to hostname")
	f.StringVar(&conf.HTTPAddr, "http-addr", conf.HTTPAddr, "Endpoint for REST requests on (host:port)")
	f.StringVar(&conf.RaftAddr, "raft-addr", conf.RaftAddr, "Raft bind address (host:port)")
	f.StringVar(&conf.MgmtAddr, "mgmt-addr", conf.MgmtAddr, "Management endpoint bind address (host:port)")
	f.StringVar(&conf.MetricsAddr, "metrics-addr", conf.MetricsAddr, "Metrics export bind address (host:port)")
	f.StringSliceVar(&conf.RaftJoinAddr, "join-addr", conf.RaftJoinAddr, "Comma-delimited list of management addresses ([host]:port) through which a cluster can be joined")
	f.StringVar(&conf.DBPath, "db-path", conf.DBPath, "Set default storage path")
	f.StringVar(&conf.RaftPath, "raft-path", conf.RaftPath, "Set raft storage path")
	f.StringVar(&conf.Storage, "storage", conf.Storage, "Choose between different storage backends: badger, bolt or memory")
	f.StringVar(&conf.CacheKind, "cache", conf.CacheKind, "Proof cache: freecache, fastcache or lru")
	f.IntVar(&conf.CacheBytes, "cache-bytes", conf.CacheBytes, "Memory reserved by the freecache and fastcache proof caches")
	f.IntVar(&conf.CacheEntries, "cache-entries", conf.CacheEntries, "Entries kept by the lru proof cache")
	f.IntVar(&conf.EventsQueueSize, "events-queue", conf.EventsQueueSize, "Events waiting for publication before new ones are dropped")
	f.IntVar(&conf.EventsWorkers, "events-workers", conf.EventsWorkers, "Number of event publishing workers")
	f.StringVar(&conf.RedisAddr, "redis-addr", conf.RedisAddr, "Redis server (host:port) to publish events to")
	f.StringVar(&conf.RedisPassword, "redis-password", conf.RedisPassword, "Redis password")
	f.IntVar(&conf.RedisDB, "redis-db", conf.RedisDB, "Redis database")
	f.StringVar(&conf.RedisChannel, "redis-channel", conf.RedisChannel, "Redis channel the events are published on")
	f.StringSliceVar(&conf.EventsEndpoints, "events-endpoints", conf.EventsEndpoints, "Comma-delimited list of URLs whose /events endpoint receive the events")
	f.StringVar(&conf.SSLCertificate, "certificate", conf.SSLCertificate, "Server certificate file")
	f.StringVar(&conf.SSLCertificateKey, "certificate-key", conf.SSLCertificateKey, "Server certificate key file")
	f.BoolVarP(&conf.EnableProfiling, "profiling", "f", conf.EnableProfiling, "Allow a pprof url for profiling purposes")
	f.StringVar(&conf.ProfilingAddr, "profiling-addr", conf.ProfilingAddr, "Profiling endpoint bind address (host:port)")

	// Lookups
	for _, name := range serverFlags {
		v.BindPFlag("server."+name, f.Lookup(name))
	}

	return cmd
}

var serverFlags = []string{
	"node-id", "http-addr", "raft-addr", "mgmt-addr", "metrics-addr", "join-addr",
	"db-path", "raft-path", "storage", "cache", "cache-bytes", "cache-entries",
	"events-queue", "events-workers", "redis-addr", "redis-password", "redis-db",
	"redis-channel", "events-endpoints", "certificate", "certificate-key",
	"profiling", "profiling-addr",
}

func loadServerConfig(conf *server.Config) {
	conf.NodeID = v.GetString("server.node-id")
	conf.HTTPAddr = v.GetString("server.http-addr")
	conf.RaftAddr = v.GetString("server.raft-addr")
	conf.MgmtAddr = v.GetString("server.mgmt-addr")
	conf.MetricsAddr = v.GetString("server.metrics-addr")
	conf.RaftJoinAddr = v.GetStringSlice("server.join-addr")
	conf.DBPath = v.GetString("server.db-path")
	conf.RaftPath = v.GetString("server.raft-path")
	conf.Storage = v.GetString("server.storage")
	conf.CacheKind = v.GetString("server.cache")
	conf.CacheBytes = v.GetInt("server.cache-bytes")
	conf.CacheEntries = v.GetInt("server.cache-entries")
	conf.EventsQueueSize = v.GetInt("server.events-queue")
	conf.EventsWorkers = v.GetInt("server.events-workers")
	conf.RedisAddr = v.GetString("server.redis-addr")
	conf.RedisPassword = v.GetString("server.redis-password")
	conf.RedisDB = v.GetInt("server.redis-db")
	conf.RedisChannel = v.GetString("server.redis-channel")
	conf.EventsEndpoints = v.GetStringSlice("server.events-endpoints")
	conf.SSLCertificate = v.GetString("server.certificate")
	conf.SSLCertificateKey = v.GetString("server.certificate-key")
	conf.EnableProfiling = v.GetBool("server.profiling")
	conf.ProfilingAddr = v.GetString("server.profiling-addr")
}
