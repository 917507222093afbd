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

// Package client implements the client of the imtree HTTP API.
package client

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"time"

	"github.com/bbva/imtree/api/apihttp"
	"github.com/bbva/imtree/crypto/hashing"
	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/imt"
	"github.com/bbva/imtree/log"
	"github.com/bbva/imtree/protocol"
)

// HTTPClient talks to an imtree server.
type HTTPClient struct {
	conf    *Config
	retrier RequestRetrier
}

// NewHTTPClient creates a client from the given configuration.
func NewHTTPClient(conf *Config) *HTTPClient {
	httpClient := &http.Client{
		Timeout: conf.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: conf.Insecure,
			},
			DialContext: (&net.Dialer{
				Timeout:   conf.DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: conf.HandshakeTimeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var retrier RequestRetrier
	if conf.MaxRetries > 0 {
		retrier = NewBackoffRequestRetrier(httpClient, conf.MaxRetries,
			NewExponentialBackoff(100*time.Millisecond, conf.Timeout))
	} else {
		retrier = NewNoRequestRetrier(httpClient)
	}

	return NewHTTPClientWithRetrier(conf, retrier)
}

// NewHTTPClientWithRetrier creates a client that sends its requests
// through retrier.
func NewHTTPClientWithRetrier(conf *Config, retrier RequestRetrier) *HTTPClient {
	return &HTTPClient{conf: conf, retrier: retrier}
}

func (c *HTTPClient) doReq(method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}

	req, err := NewRetriableRequest(method, c.conf.Endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.conf.APIKey)
	if c.conf.Caller != "" {
		req.Header.Set(apihttp.CallerHeader, c.conf.Caller)
	}

	resp, err := c.retrier.DoReq(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
	}
	log.Debugf("%s %s: %d", method, path, resp.StatusCode)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) mutate(path string, in interface{}) (*protocol.Event, error) {
	var event protocol.Event
	if err := c.doReq("POST", path, in, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// HealthCheck checks the server is up.
func (c *HTTPClient) HealthCheck() error {
	var resp apihttp.HealthCheckResponse
	if err := c.doReq("GET", "/health-check", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("server status is %q", resp.Status)
	}
	return nil
}

// CreateGroup creates a group. An empty admin makes the caller the admin.
func (c *HTTPClient) CreateGroup(id uint64, admin string, params group.Params) (*protocol.Event, error) {
	req := &protocol.CreateGroup{
		GroupID: id,
		Admin:   admin,
		Depth:   params.Depth,
		Arity:   params.Arity,
		Hash:    params.Hash,
	}
	if len(params.ZeroValue) > 0 {
		req.ZeroValue = protocol.EncodeDigest(params.ZeroValue)
	}
	return c.mutate("/groups", req)
}

// UpdateGroupAdmin proposes newAdmin as the admin of the group.
func (c *HTTPClient) UpdateGroupAdmin(id uint64, newAdmin string) (*protocol.Event, error) {
	return c.mutate("/groups/admin", &protocol.UpdateGroupAdmin{GroupID: id, NewAdmin: newAdmin})
}

// AcceptGroupAdmin accepts a pending admin transfer to the caller.
func (c *HTTPClient) AcceptGroupAdmin(id uint64) (*protocol.Event, error) {
	return c.mutate("/groups/admin/accept", &protocol.GroupQuery{GroupID: id})
}

// AddMember adds a commitment to the group.
func (c *HTTPClient) AddMember(id uint64, commitment hashing.Digest) (*protocol.Event, error) {
	return c.mutate("/members", &protocol.Member{GroupID: id, Commitment: protocol.EncodeDigest(commitment)})
}

// AddMembers adds a batch of commitments to the group.
func (c *HTTPClient) AddMembers(id uint64, commitments []hashing.Digest) (*protocol.Event, error) {
	return c.mutate("/members/batch", &protocol.Members{GroupID: id, Commitments: protocol.EncodeDigests(commitments)})
}

// UpdateMember replaces a commitment. siblings must prove old against the
// current root; use the siblings of a fresh MembershipProof.
func (c *HTTPClient) UpdateMember(id uint64, old, updated hashing.Digest, siblings [][]hashing.Digest) (*protocol.Event, error) {
	return c.mutate("/members/update", &protocol.UpdateMember{
		GroupID:       id,
		Commitment:    protocol.EncodeDigest(old),
		NewCommitment: protocol.EncodeDigest(updated),
		Siblings:      protocol.EncodeSiblings(siblings),
	})
}

// RemoveMember removes a commitment from the group.
func (c *HTTPClient) RemoveMember(id uint64, commitment hashing.Digest, siblings [][]hashing.Digest) (*protocol.Event, error) {
	return c.mutate("/members/remove", &protocol.RemoveMember{
		GroupID:    id,
		Commitment: protocol.EncodeDigest(commitment),
		Siblings:   protocol.EncodeSiblings(siblings),
	})
}

// MembershipProof asks for the membership proof of a commitment.
func (c *HTTPClient) MembershipProof(id uint64, commitment hashing.Digest) (*imt.MerkleProof, error) {
	var proof protocol.MerkleProof
	if err := c.doReq("POST", "/proofs/membership", &protocol.Member{GroupID: id, Commitment: protocol.EncodeDigest(commitment)}, &proof); err != nil {
		return nil, err
	}
	return proof.ToImt()
}

// VerifyProof asks the server to verify a proof with the group parameters.
func (c *HTTPClient) VerifyProof(id uint64, proof *imt.MerkleProof) (*protocol.VerifyResult, error) {
	var result protocol.VerifyResult
	if err := c.doReq("POST", "/proofs/verify", &protocol.VerifyProof{GroupID: id, Proof: protocol.ToMerkleProof(proof)}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GroupInfo returns the parameters, admin and root of the group.
func (c *HTTPClient) GroupInfo(id uint64) (*protocol.GroupInfo, error) {
	var info protocol.GroupInfo
	if err := c.doReq("POST", "/groups/info", &protocol.GroupQuery{GroupID: id}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Verify checks a proof locally, without contacting the server, with the
// named hash function and the given arity.
func (c *HTTPClient) Verify(proof *imt.MerkleProof, hashName string, arity int) (bool, error) {
	return Verify(proof, hashName, arity)
}

// Verify checks a proof with the named hash function and the given arity.
func Verify(proof *imt.MerkleProof, hashName string, arity int) (bool, error) {
	hash, err := imt.HashByName(hashName)
	if err != nil {
		return false, err
	}
	return imt.VerifyProof(hash, arity, proof)
}
