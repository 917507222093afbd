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

package server

import (
	"os"
	"path/filepath"

	"github.com/bbva/imtree/cache"
	"github.com/bbva/imtree/publish"
)

// Storage backends.
const (
	BadgerStorage = "badger"
	BoltStorage   = "bolt"
	MemoryStorage = "memory"
)

type Config struct {
	// Log level: silent, error, info or debug.
	Log string

	// Unique name for this node. It identifies itself both in raft and
	// in the events it publishes.
	NodeID string

	// TLS server bind address/port.
	HTTPAddr string

	// Raft bind address/port.
	RaftAddr string

	// Raft management server bind address/port. Useful to join the cluster
	// and get cluster information.
	MgmtAddr string

	// Metrics bind address/port.
	MetricsAddr string

	// List of raft nodes, through which a cluster can be joined
	// (protocol://host:port).
	RaftJoinAddr []string

	// Path to storage directory.
	DBPath string

	// Path to Raft storage directory.
	RaftPath string

	// Storage backend: badger, bolt or memory.
	Storage string

	// Proof cache kind: freecache, fastcache or lru.
	CacheKind string

	// Memory bound of the freecache and fastcache proof caches.
	CacheBytes int

	// Entries bound of the lru proof cache.
	CacheEntries int

	// Size of the queue of events pending publication. Events notified
	// while it is full are dropped.
	EventsQueueSize int

	// Number of workers publishing events.
	EventsWorkers int

	// Redis server to publish events to. Empty disables it.
	RedisAddr string

	// Redis password.
	RedisPassword string

	// Redis database.
	RedisDB int

	// Redis channel the events are published on.
	RedisChannel string

	// Base URLs whose /events endpoint receive every event.
	EventsEndpoints []string

	// Enables TLS service
	EnableTLS bool

	// TLS certificate and key of the API server.
	SSLCertificate    string
	SSLCertificateKey string

	// Enables profiling endpoint.
	EnableProfiling bool

	// Profiling server address.
	ProfilingAddr string
}

func DefaultConfig() *Config {
	hostname, _ := os.Hostname()
	currentDir := getCurrentDir()

	return &Config{
		Log:             "info",
		NodeID:          hostname,
		HTTPAddr:        "127.0.0.1:8800",
		RaftAddr:        "127.0.0.1:8500",
		MgmtAddr:        "127.0.0.1:8700",
		MetricsAddr:     "127.0.0.1:8600",
		RaftJoinAddr:    []string{},
		DBPath:          currentDir + "/db",
		RaftPath:        currentDir + "/raft",
		Storage:         BadgerStorage,
		CacheKind:       cache.Lru,
		CacheBytes:      1 << 26,
		CacheEntries:    1 << 16,
		EventsQueueSize: 1 << 12,
		EventsWorkers:   2,
		RedisAddr:       "",
		RedisChannel:    publish.DefaultRedisConfig().Channel,
		EventsEndpoints: []string{},
		EnableTLS:       false,
		EnableProfiling: false,
		ProfilingAddr:   "127.0.0.1:6060",
	}
}

func getCurrentDir() string {
	ex, err := os.Executable()
	if err != nil {
		panic(err)
	}
	exPath := filepath.Dir(ex)
	return exPath
}
