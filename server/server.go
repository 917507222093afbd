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

// Package server wires a replicated group registry node: the storage, the
// raft node, the event publishers and the HTTP servers.
package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"github.com/bbva/imtree/api/apihttp"
	"github.com/bbva/imtree/api/metricshttp"
	"github.com/bbva/imtree/api/mgmthttp"
	"github.com/bbva/imtree/cache"
	"github.com/bbva/imtree/consensus"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
	"github.com/bbva/imtree/protocol"
	"github.com/bbva/imtree/publish"
	"github.com/bbva/imtree/storage"
	"github.com/bbva/imtree/storage/badger"
	"github.com/bbva/imtree/storage/bolt"
	"github.com/bbva/imtree/storage/bplus"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	conf      *Config
	bootstrap bool // Set bootstrap to true when bringing up the first node as a master

	httpServer         *http.Server
	mgmtServer         *http.Server
	metricsServer      *http.Server
	profilingServer    *http.Server
	raftGroups         *consensus.RaftGroups
	notifier           *publish.Notifier
	closers            []io.Closer
	prometheusRegistry *prometheus.Registry
}

func serverInfo(conf *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.Header().Set("Allow", "GET")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		out, err := json.Marshal(conf)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}

// NewServer prepares a node from conf. Nothing listens until Start.
func NewServer(conf *Config) (*Server, error) {
	log.SetLogger("server", conf.Log)

	server := &Server{
		conf:      conf,
		bootstrap: len(conf.RaftJoinAddr) == 0,
	}

	log.Infof("ensuring directory at %s exists", conf.RaftPath)
	if err := os.MkdirAll(conf.RaftPath, 0755); err != nil {
		return nil, err
	}

	store, err := openStore(conf)
	if err != nil {
		return nil, err
	}

	proofCache, ok := cache.NewByName(conf.CacheKind, conf.CacheBytes, conf.CacheEntries)
	if !ok {
		store.Close()
		return nil, fmt.Errorf("unknown cache kind %q", conf.CacheKind)
	}

	publishers := server.newPublishers()
	server.notifier = publish.NewNotifier(conf.EventsQueueSize, conf.EventsWorkers, publishers...)

	server.raftGroups, err = consensus.NewRaftGroups(conf.RaftPath, conf.RaftAddr, conf.NodeID, store, server.notifier, proofCache)
	if err != nil {
		store.Close()
		return nil, err
	}

	httpMux := apihttp.NewApiHttp(server.raftGroups)
	httpMux.HandleFunc("/info", serverInfo(conf))
	if conf.EnableTLS {
		server.httpServer = newTLSServer(conf.HTTPAddr, httpMux)
	} else {
		server.httpServer = newHTTPServer(conf.HTTPAddr, httpMux)
	}

	server.mgmtServer = newHTTPServer(conf.MgmtAddr, mgmthttp.NewMgmtHttp(server.raftGroups))

	server.prometheusRegistry = prometheus.NewRegistry()
	server.metricsServer = newHTTPServer(conf.MetricsAddr, metricshttp.NewMetricsHTTP(server.prometheusRegistry))

	if conf.EnableProfiling {
		server.profilingServer = newHTTPServer(conf.ProfilingAddr, profilingMux())
	}

	return server, nil
}

func openStore(conf *Config) (storage.Store, error) {
	switch conf.Storage {
	case BadgerStorage, BoltStorage:
		log.Infof("ensuring directory at %s exists", conf.DBPath)
		if err := os.MkdirAll(conf.DBPath, 0755); err != nil {
			return nil, err
		}
		if conf.Storage == BoltStorage {
			return bolt.NewBoltStore(filepath.Join(conf.DBPath, "imtree.db"))
		}
		return badger.NewBadgerStore(conf.DBPath)
	case MemoryStorage:
		return bplus.NewBPlusTreeStore(), nil
	}
	return nil, fmt.Errorf("unknown storage %q", conf.Storage)
}

func (s *Server) newPublishers() []publish.Publisher {
	var publishers []publish.Publisher

	if s.conf.RedisAddr != "" {
		redisConf := publish.DefaultRedisConfig()
		redisConf.Addr = s.conf.RedisAddr
		redisConf.Password = s.conf.RedisPassword
		redisConf.DB = s.conf.RedisDB
		if s.conf.RedisChannel != "" {
			redisConf.Channel = s.conf.RedisChannel
		}
		p := publish.NewRedisPublisher(redisConf)
		publishers = append(publishers, p)
		s.closers = append(s.closers, p)
	}

	if len(s.conf.EventsEndpoints) > 0 {
		httpConf := publish.NewHTTPConfig(&fasthttp.Client{Name: "imtree-" + s.conf.NodeID}, s.conf.EventsEndpoints)
		publishers = append(publishers, publish.NewHTTPPublisher(httpConf))
	}

	return publishers
}

func profilingMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func join(joinAddr, raftAddr, nodeID string) error {
	b, err := json.Marshal(&protocol.JoinRequest{ID: nodeID, Addr: raftAddr})
	if err != nil {
		return err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/join", joinAddr), "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := ioutil.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("join through %s: %d %s", joinAddr, resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Start opens the raft node and starts serving. When the node is not the
// first of the cluster, it joins through the configured management
// addresses.
func (s *Server) Start() error {
	metrics.ImtreeInstancesCount.Inc()
	log.Infof("Starting imtree server %s", s.conf.NodeID)

	s.notifier.Start()

	if err := s.raftGroups.Open(s.bootstrap); err != nil {
		return err
	}

	go func() {
		log.Debugf("	* Starting metrics HTTP server in addr: %s", s.conf.MetricsAddr)
		if err := s.metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("Can't start metrics HTTP server: %s", err)
		}
	}()

	if s.profilingServer != nil {
		go func() {
			log.Debugf("	* Starting profiling HTTP server in addr: %s", s.conf.ProfilingAddr)
			if err := s.profilingServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("Can't start profiling HTTP server: %s", err)
			}
		}()
	}

	if s.conf.EnableTLS {
		go func() {
			log.Debugf("	* Starting imtree API HTTPS server in addr: %s", s.conf.HTTPAddr)
			err := s.httpServer.ListenAndServeTLS(
				s.conf.SSLCertificate,
				s.conf.SSLCertificateKey,
			)
			if err != http.ErrServerClosed {
				log.Errorf("Can't start imtree API HTTP Server: %s", err)
			}
		}()
	} else {
		go func() {
			log.Debugf("	* Starting imtree API HTTP server in addr: %s", s.conf.HTTPAddr)
			if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("Can't start imtree API HTTP Server: %s", err)
			}
		}()
	}

	go func() {
		log.Debugf("	* Starting imtree MGMT HTTP server in addr: %s", s.conf.MgmtAddr)
		if err := s.mgmtServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("Can't start imtree MGMT HTTP Server: %s", err)
		}
	}()

	log.Debugf(" ready on %s and %s", s.conf.HTTPAddr, s.conf.MgmtAddr)

	if !s.bootstrap {
		for _, addr := range s.conf.RaftJoinAddr {
			log.Debugf("	* Joining existent cluster through MGMT HTTP server in addr: %s", addr)
			if err := join(addr, s.conf.RaftAddr, s.conf.NodeID); err != nil {
				return fmt.Errorf("failed to join node at %s: %w", addr, err)
			}
		}
	}

	return nil
}

// Stop shuts the servers down, then closes the raft node, the store and
// the publishers.
func (s *Server) Stop() error {
	metrics.ImtreeInstancesCount.Dec()

	servers := []struct {
		name   string
		server *http.Server
	}{
		{"metrics", s.metricsServer},
		{"profiling", s.profilingServer},
		{"MGMT", s.mgmtServer},
		{"API HTTP", s.httpServer},
	}
	for _, srv := range servers {
		if srv.server == nil {
			continue
		}
		log.Debugf("Stopping %s server...", srv.name)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := srv.server.Shutdown(ctx)
		cancel()
		if err != nil {
			log.Error(err)
			return err
		}
	}

	log.Debugf("Stopping RAFT server...")
	if err := s.raftGroups.Close(true); err != nil {
		log.Error(err)
		return err
	}

	log.Debugf("Stopping event notifier...")
	s.notifier.Stop()
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			log.Errorf("Error closing publisher: %v", err)
		}
	}

	log.Debugf("Done. Exiting...")
	return nil
}

// WaitForLeader blocks until the cluster has a leader or timeout expires.
func (s *Server) WaitForLeader(timeout time.Duration) error {
	_, err := s.raftGroups.WaitForLeader(timeout)
	return err
}

func newTLSServer(addr string, mux *http.ServeMux) *http.Server {

	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.CurveP521,
			tls.CurveP384,
			tls.CurveP256,
		},
		PreferServerCipherSuites: true,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
			tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_RSA_WITH_AES_256_CBC_SHA,
		},
	}

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		TLSConfig:    cfg,
		TLSNextProto: make(map[string]func(*http.Server, *tls.Conn, http.Handler), 0),
	}
}

func newHTTPServer(addr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: mux,
	}
}
