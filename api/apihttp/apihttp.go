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

// Package apihttp implements the HTTP API public interface.
package apihttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bbva/imtree/consensus"
	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/imt"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/metrics"
	"github.com/bbva/imtree/protocol"
)

// CallerHeader carries the identity of the caller of a mutation.
const CallerHeader = "Caller"

// GroupsApi is the set of operations served by the API.
type GroupsApi interface {
	CreateGroup(id uint64, admin string, params group.Params) (*group.Event, error)
	UpdateGroupAdmin(id uint64, caller, newAdmin string) (*group.Event, error)
	AcceptGroupAdmin(id uint64, caller string) (*group.Event, error)
	AddMember(id uint64, caller string, commitment hashing.Digest) (*group.Event, error)
	AddMembers(id uint64, caller string, commitments []hashing.Digest) (*group.Event, error)
	UpdateMember(id uint64, caller string, old, updated hashing.Digest, siblings [][]hashing.Digest) (*group.Event, error)
	RemoveMember(id uint64, caller string, commitment hashing.Digest, siblings [][]hashing.Digest) (*group.Event, error)
	Proof(id uint64, commitment hashing.Digest) (*imt.MerkleProof, error)
	VerifyProof(id uint64, proof *imt.MerkleProof) (valid bool, current bool, err error)
	GroupInfo(id uint64) (*group.Info, error)
}

// HealthCheckResponse is the body returned by the health check.
type HealthCheckResponse struct {
	Version int    `json:"version"`
	Status  string `json:"status"`
}

// HealthCheckHandler checks the system status and returns it accordinly.
// The http call it answer is:
//	GET /health-check
//
// If everything is allright, the HTTP status is 200 and the body contains:
//	 {"version": "0", "status":"ok"}
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	metrics.APIHealthcheckRequestsTotal.Inc()

	result := HealthCheckResponse{
		Version: 0,
		Status:  "ok",
	}

	resultJson, err := json.Marshal(result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := new(bytes.Buffer)
	_ = json.Compact(out, resultJson)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Bytes())
}

// CreateGroup creates a group:
//  POST /groups
//
// The body is a protocol.CreateGroup and the response a protocol.Event
// with status 201.
func CreateGroup(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.CreateGroup
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		params, err := req.Params()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		admin := req.Admin
		if admin == "" {
			admin = caller
		}
		writeEvent(w)(api.CreateGroup(req.GroupID, admin, params))
	}
}

// UpdateGroupAdmin proposes a new admin for a group. The transfer completes
// when the proposed admin accepts it. Both steps identify the admin by the
// unauthenticated Caller header (see AuthHandlerMiddleware):
//  POST /groups/admin
func UpdateGroupAdmin(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.UpdateGroupAdmin
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		writeEvent(w)(api.UpdateGroupAdmin(req.GroupID, caller, req.NewAdmin))
	}
}

// AcceptGroupAdmin makes the caller the admin of a group it was proposed
// for:
//  POST /groups/admin/accept
func AcceptGroupAdmin(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.GroupQuery
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		writeEvent(w)(api.AcceptGroupAdmin(req.GroupID, caller))
	}
}

// AddMember adds a commitment to a group:
//  POST /members
func AddMember(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Member
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		commitment, err := protocol.DecodeDigest(req.Commitment)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeEvent(w)(api.AddMember(req.GroupID, caller, commitment))
	}
}

// AddMembers adds a batch of commitments to a group. Either all of them are
// added or none:
//  POST /members/batch
func AddMembers(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Members
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		commitments, err := protocol.DecodeDigests(req.Commitments)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeEvent(w)(api.AddMembers(req.GroupID, caller, commitments))
	}
}

// UpdateMember replaces a commitment of a group. The siblings must prove the
// old commitment against the current root:
//  POST /members/update
func UpdateMember(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.UpdateMember
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		old, err := protocol.DecodeDigest(req.Commitment)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		updated, err := protocol.DecodeDigest(req.NewCommitment)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		siblings, err := protocol.DecodeSiblings(req.Siblings)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeEvent(w)(api.UpdateMember(req.GroupID, caller, old, updated, siblings))
	}
}

// RemoveMember removes a commitment from a group:
//  POST /members/remove
func RemoveMember(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.RemoveMember
		caller, ok := decodeMutation(w, r, &req)
		if !ok {
			return
		}
		commitment, err := protocol.DecodeDigest(req.Commitment)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		siblings, err := protocol.DecodeSiblings(req.Siblings)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeEvent(w)(api.RemoveMember(req.GroupID, caller, commitment, siblings))
	}
}

// Membership returns the membership proof of a commitment:
//  POST /proofs/membership
//
// The body is a protocol.Member and the response a protocol.MerkleProof.
func Membership(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Member
		if !decodeQuery(w, r, &req) {
			return
		}
		commitment, err := protocol.DecodeDigest(req.Commitment)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		proof, err := api.Proof(req.GroupID, commitment)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.ToMerkleProof(proof))
	}
}

// Verify checks a membership proof with the group parameters:
//  POST /proofs/verify
//
// A malformed proof is answered with 400, a well formed one with 200 and a
// protocol.VerifyResult.
func Verify(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.VerifyProof
		if !decodeQuery(w, r, &req) {
			return
		}
		if req.Proof == nil {
			http.Error(w, "Missing proof", http.StatusBadRequest)
			return
		}
		proof, err := req.Proof.ToImt()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		valid, current, err := api.VerifyProof(req.GroupID, proof)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, &protocol.VerifyResult{Valid: valid, Current: current})
	}
}

// GroupInfo returns the parameters, admin and root of a group:
//  POST /groups/info
func GroupInfo(api GroupsApi) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.GroupQuery
		if !decodeQuery(w, r, &req) {
			return
		}
		info, err := api.GroupInfo(req.GroupID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, protocol.ToGroupInfo(info))
	}
}

// AuthHandlerMiddleware function is an HTTP handler wrapper that validates our requests.
// It only requires the Api-Key header to be present. The Caller header,
// which decides group admin rights, is trusted as sent: callers must be
// authenticated upstream, e.g. by a proxy that sets it.
func AuthHandlerMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Check if Api-Key header is empty
		if r.Header.Get("Api-Key") == "" {
			http.Error(w, "Missing Api-Key header", http.StatusUnauthorized)
			return
		}

		handler.ServeHTTP(w, r)
	})
}

// NewApiHttp returns a new *http.ServeMux containing all the API handlers
// already configured.
func NewApiHttp(api GroupsApi) *http.ServeMux {
	mux := http.NewServeMux()
	handle := func(path string, h http.HandlerFunc) {
		mux.Handle(path, instrument(path, AuthHandlerMiddleware(h)))
	}
	handle("/health-check", HealthCheckHandler)
	handle("/groups", CreateGroup(api))
	handle("/groups/admin", UpdateGroupAdmin(api))
	handle("/groups/admin/accept", AcceptGroupAdmin(api))
	handle("/groups/info", GroupInfo(api))
	handle("/members", AddMember(api))
	handle("/members/batch", AddMembers(api))
	handle("/members/update", UpdateMember(api))
	handle("/members/remove", RemoveMember(api))
	handle("/proofs/membership", Membership(api))
	handle("/proofs/verify", Verify(api))
	return mux
}

// PostReqSanitizer ensures the request is a POST with a body.
func PostReqSanitizer(w http.ResponseWriter, r *http.Request) (http.ResponseWriter, *http.Request, error) {
	if r.Method != "POST" {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return w, r, errors.New("method not allowed")
	}
	if r.Body == nil {
		err := errors.New("please send a request body")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return w, r, err
	}
	return w, r, nil
}

// GetReqSanitizer ensures the request is a GET.
func GetReqSanitizer(w http.ResponseWriter, r *http.Request) (http.ResponseWriter, *http.Request, error) {
	if r.Method != "GET" {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return w, r, errors.New("method not allowed")
	}
	return w, r, nil
}

func decodeQuery(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	w, r, err := PostReqSanitizer(w, r)
	if err != nil {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func decodeMutation(w http.ResponseWriter, r *http.Request, out interface{}) (string, bool) {
	if !decodeQuery(w, r, out) {
		return "", false
	}
	caller := r.Header.Get(CallerHeader)
	if caller == "" {
		http.Error(w, "Missing Caller header", http.StatusBadRequest)
		return "", false
	}
	return caller, true
}

func writeEvent(w http.ResponseWriter) func(*group.Event, error) {
	return func(e *group.Event, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, protocol.ToEvent(e))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	out, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Errorf("API error: %v", err)
	} else {
		log.Debugf("API request rejected: %v", err)
	}
	http.Error(w, err.Error(), status)
}

// StatusOf maps an error of the groups API to an HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, group.ErrGroupDoesNotExist),
		errors.Is(err, group.ErrLeafDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, group.ErrCallerIsNotTheGroupAdmin),
		errors.Is(err, group.ErrCallerIsNotThePendingGroupAdmin):
		return http.StatusForbidden
	case errors.Is(err, group.ErrGroupAlreadyExists),
		errors.Is(err, group.ErrLeafAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, group.ErrLeafCannotBeZero),
		errors.Is(err, group.ErrLeafNotHexText),
		errors.Is(err, group.ErrWrongSiblingNodes),
		errors.Is(err, group.ErrNoMembers),
		errors.Is(err, group.ErrInvalidAdmin),
		errors.Is(err, group.ErrInvalidParams),
		errors.Is(err, imt.ErrTreeFull),
		errors.Is(err, imt.ErrMalformedProof),
		errors.Is(err, imt.ErrInvalidParameters):
		return http.StatusBadRequest
	case errors.Is(err, consensus.ErrNotLeader):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func instrument(endpoint string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(rec, r)
		metrics.APIRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(rec.status)).Inc()
		log.Debugf("%s %s %d", r.Method, endpoint, rec.status)
	})
}
