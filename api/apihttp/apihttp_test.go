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

package apihttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbva/imtree/consensus"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/imt"
	"github.com/bbva/imtree/protocol"
)

type registryApi struct {
	*group.Registry
}

func (r registryApi) GroupInfo(id uint64) (*group.Info, error) {
	return r.Info(id)
}

func newTestApi() *http.ServeMux {
	return NewApiHttp(registryApi{group.NewRegistry(nil)})
}

func hexOf(s string) string {
	return protocol.EncodeDigest([]byte(s))
}

func doRequest(t *testing.T, mux http.Handler, path, caller string, body interface{}) *httptest.ResponseRecorder {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest("POST", path, bytes.NewBuffer(data))
	require.NoError(t, err)
	req.Header.Set("Api-Key", "my-key")
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
}

func TestHealthCheckHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/health-check", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	http.HandlerFunc(HealthCheckHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, "handler returned wrong status code")
	require.Equal(t, `{"version":0,"status":"ok"}`, rr.Body.String(), "handler returned unexpected body")
}

func TestAuthHandlerMiddleware(t *testing.T) {
	req, err := http.NewRequest("GET", "/health-check", nil)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newTestApi().ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req.Header.Set("Api-Key", "my-key")
	rr = httptest.NewRecorder()
	newTestApi().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCallerHeaderIsTrusted(t *testing.T) {
	mux := newTestApi()

	rr := doRequest(t, mux, "/groups", "alice", &protocol.CreateGroup{GroupID: 1, Hash: "join", ZeroValue: hexOf("zero")})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// any key is accepted and the caller identity is taken from the header
	rr = doRequest(t, mux, "/groups/admin", "mallory", &protocol.UpdateGroupAdmin{GroupID: 1, NewAdmin: "mallory"})
	require.Equal(t, http.StatusForbidden, rr.Code, rr.Body.String())
	rr = doRequest(t, mux, "/groups/admin", "alice", &protocol.UpdateGroupAdmin{GroupID: 1, NewAdmin: "mallory"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = doRequest(t, mux, "/groups/admin/accept", "mallory", &protocol.GroupQuery{GroupID: 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(t, mux, "/groups/info", "", &protocol.GroupQuery{GroupID: 1})
	var info protocol.GroupInfo
	decodeBody(t, rr, &info)
	require.Equal(t, "mallory", info.Admin)
}

func TestRequestSanitizing(t *testing.T) {
	mux := newTestApi()

	req, err := http.NewRequest("GET", "/members", nil)
	require.NoError(t, err)
	req.Header.Set("Api-Key", "my-key")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	require.Equal(t, "POST", rr.Header().Get("Allow"))

	rr = doRequest(t, mux, "/groups", "", &protocol.CreateGroup{GroupID: 1})
	require.Equal(t, http.StatusBadRequest, rr.Code, "Mutations need a caller")

	req, err = http.NewRequest("POST", "/groups", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Api-Key", "my-key")
	req.Header.Set(CallerHeader, "alice")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, mux, "/members", "alice", &protocol.Member{GroupID: 1, Commitment: "not hex"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGroupLifecycle(t *testing.T) {
	mux := newTestApi()

	rr := doRequest(t, mux, "/groups", "alice", &protocol.CreateGroup{
		GroupID:   1,
		Depth:     2,
		Arity:     2,
		ZeroValue: hexOf("zero"),
		Hash:      "join",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var event protocol.Event
	decodeBody(t, rr, &event)
	require.Equal(t, "GroupCreated", event.Type)
	require.Equal(t, "alice", event.NewAdmin)

	rr = doRequest(t, mux, "/groups", "alice", &protocol.CreateGroup{GroupID: 1})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(t, mux, "/members", "bob", &protocol.Member{GroupID: 1, Commitment: hexOf("a")})
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(t, mux, "/members", "alice", &protocol.Member{GroupID: 1, Commitment: hexOf("a")})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(t, mux, "/members/batch", "alice", &protocol.Members{GroupID: 1, Commitments: []string{hexOf("b"), hexOf("c")}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	decodeBody(t, rr, &event)
	require.Equal(t, 1, event.Index)
	require.Equal(t, hexOf("a,b,c,zero"), event.Root)

	rr = doRequest(t, mux, "/members", "alice", &protocol.Member{GroupID: 1, Commitment: hexOf("zero")})
	require.Equal(t, http.StatusBadRequest, rr.Code, "The zero value is not a commitment")

	rr = doRequest(t, mux, "/proofs/membership", "", &protocol.Member{GroupID: 1, Commitment: hexOf("b")})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var proof protocol.MerkleProof
	decodeBody(t, rr, &proof)
	require.Equal(t, []int{1, 0}, proof.PathIndices)
	require.Equal(t, [][]string{{hexOf("a")}, {hexOf("c,zero")}}, proof.Siblings)

	rr = doRequest(t, mux, "/proofs/membership", "", &protocol.Member{GroupID: 1, Commitment: hexOf("x")})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, mux, "/proofs/verify", "", &protocol.VerifyProof{GroupID: 1, Proof: &proof})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var result protocol.VerifyResult
	decodeBody(t, rr, &result)
	require.Equal(t, protocol.VerifyResult{Valid: true, Current: true}, result)

	rr = doRequest(t, mux, "/members/update", "alice", &protocol.UpdateMember{
		GroupID:       1,
		Commitment:    hexOf("b"),
		NewCommitment: hexOf("d"),
		Siblings:      proof.Siblings,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	decodeBody(t, rr, &event)
	require.Equal(t, hexOf("a,d,c,zero"), event.Root)

	rr = doRequest(t, mux, "/proofs/verify", "", &protocol.VerifyProof{GroupID: 1, Proof: &proof})
	require.Equal(t, http.StatusOK, rr.Code)
	decodeBody(t, rr, &result)
	require.Equal(t, protocol.VerifyResult{Valid: true, Current: false}, result)

	tampered := proof
	tampered.PathIndices = []int{1}
	rr = doRequest(t, mux, "/proofs/verify", "", &protocol.VerifyProof{GroupID: 1, Proof: &tampered})
	require.Equal(t, http.StatusBadRequest, rr.Code, "Malformed proofs are rejected")

	rr = doRequest(t, mux, "/members/remove", "alice", &protocol.RemoveMember{
		GroupID:    1,
		Commitment: hexOf("a"),
		Siblings:   [][]string{{hexOf("x")}, {hexOf("c,zero")}},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code, "Wrong siblings are rejected")

	rr = doRequest(t, mux, "/members/remove", "alice", &protocol.RemoveMember{
		GroupID:    1,
		Commitment: hexOf("a"),
		Siblings:   [][]string{{hexOf("d")}, {hexOf("c,zero")}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	decodeBody(t, rr, &event)
	require.Equal(t, "MemberRemoved", event.Type)
	require.Equal(t, hexOf("zero,d,c,zero"), event.Root)

	rr = doRequest(t, mux, "/groups/admin", "alice", &protocol.UpdateGroupAdmin{GroupID: 1, NewAdmin: "bob"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = doRequest(t, mux, "/groups/admin/accept", "carol", &protocol.GroupQuery{GroupID: 1})
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = doRequest(t, mux, "/groups/admin/accept", "bob", &protocol.GroupQuery{GroupID: 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(t, mux, "/groups/info", "", &protocol.GroupQuery{GroupID: 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var info protocol.GroupInfo
	decodeBody(t, rr, &info)
	require.Equal(t, protocol.GroupInfo{
		GroupID:   1,
		Admin:     "bob",
		Depth:     2,
		Arity:     2,
		ZeroValue: hexOf("zero"),
		Hash:      "join",
		Size:      3,
		Members:   2,
		Root:      hexOf("zero,d,c,zero"),
	}, info)

	rr = doRequest(t, mux, "/groups/info", "", &protocol.GroupQuery{GroupID: 2})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDefaultGroupRoot(t *testing.T) {
	mux := newTestApi()

	rr := doRequest(t, mux, "/groups", "alice", &protocol.CreateGroup{GroupID: 1, Depth: 1})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	commitment := strings.Repeat("ab", 32)
	rr = doRequest(t, mux, "/members", "alice", &protocol.Member{GroupID: 1, Commitment: commitment})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var event protocol.Event
	decodeBody(t, rr, &event)
	require.Equal(t, commitment, event.NewValue)
	// keccak256(0xab{32} ++ 0x00{32})
	require.Equal(t, "4a30775ea7178cc56bd0bb1bbdc15d034116b42aae88420307da67b718e91e38", event.Root)

	rr = doRequest(t, mux, "/groups/info", "", &protocol.GroupQuery{GroupID: 1})
	var info protocol.GroupInfo
	decodeBody(t, rr, &info)
	require.Equal(t, strings.Repeat("00", 32), info.ZeroValue)
	require.Equal(t, group.DefaultHash, info.Hash)
	require.Equal(t, event.Root, info.Root)
}

func TestStatusOf(t *testing.T) {
	testCases := []struct {
		err    error
		status int
	}{
		{group.ErrGroupDoesNotExist, http.StatusNotFound},
		{group.ErrLeafDoesNotExist, http.StatusNotFound},
		{group.ErrCallerIsNotTheGroupAdmin, http.StatusForbidden},
		{group.ErrCallerIsNotThePendingGroupAdmin, http.StatusForbidden},
		{group.ErrGroupAlreadyExists, http.StatusConflict},
		{group.ErrLeafAlreadyExists, http.StatusConflict},
		{group.ErrWrongSiblingNodes, http.StatusBadRequest},
		{fmt.Errorf("adding: %w", imt.ErrTreeFull), http.StatusBadRequest},
		{consensus.ErrNotLeader, http.StatusServiceUnavailable},
		{errors.New("disk failure"), http.StatusInternalServerError},
	}

	for i, c := range testCases {
		require.Equalf(t, c.status, StatusOf(c.err), "Wrong status for test case %d: %v", i, c.err)
	}
}
