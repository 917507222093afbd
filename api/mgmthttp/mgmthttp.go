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

// Package mgmthttp implements the Raft management HTTP API public interface.
package mgmthttp

import (
	"encoding/json"
	"net/http"

	"github.com/bbva/imtree/api/apihttp"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/protocol"
)

// ClusterApi is the set of cluster operations served by the management API.
type ClusterApi interface {
	Join(nodeID, addr string) error
	Info() *protocol.ClusterInfo
}

// NewMgmtHttp will return a mux server with endpoints to manage the raft
// membership of the cluster.
func NewMgmtHttp(api ClusterApi) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/join", joinHandle(api))
	mux.HandleFunc("/info/shards", apihttp.AuthHandlerMiddleware(infoShardsHandle(api)))
	return mux
}

// joinHandle adds a node to the cluster:
//   POST /join
//   {"id": "node1", "addr": "127.0.0.1:8500"}
//
// The following statuses are expected:
// If everything is alright, the HTTP status is 200 with an empty body.
func joinHandle(api ClusterApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		// Make sure we can only be called with an HTTP POST request.
		w, r, err = apihttp.PostReqSanitizer(w, r)
		if err != nil {
			return
		}

		var body protocol.JoinRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body.ID == "" || body.Addr == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := api.Join(body.ID, body.Addr); err != nil {
			log.Infof("Join of node %s at %s failed: %v", body.ID, body.Addr, err)
			http.Error(w, err.Error(), apihttp.StatusOf(err))
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// infoShardsHandle returns the cluster information:
//   GET /info/shards
//
// If everything is alright, the HTTP status is 200 and the body contains a
// protocol.ClusterInfo.
func infoShardsHandle(api ClusterApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		w, _, err = apihttp.GetReqSanitizer(w, r)
		if err != nil {
			return
		}

		out, err := json.Marshal(api.Info())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
	}
}
