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

package client

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestRetrierReplaysBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := ioutil.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if len(bodies) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	retrier := NewBackoffRequestRetrier(&http.Client{}, 5, NewConstantBackoff(time.Millisecond))
	req, err := NewRetriableRequest("POST", server.URL, []byte("payload"))
	require.NoError(t, err)

	resp, err := retrier.DoReq(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"payload", "payload", "payload"}, bodies)
}

func TestRetrierReturnsClientErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	retrier := NewBackoffRequestRetrier(&http.Client{}, 5, NewConstantBackoff(time.Millisecond))
	req, err := NewRetriableRequest("GET", server.URL, nil)
	require.NoError(t, err)

	resp, err := retrier.DoReq(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 1, calls, "4xx answers are not retried")
}

func TestRetrierGivesUp(t *testing.T) {
	calls := 0
	httpClient := &http.Client{
		Transport: roundTripperFunc(func(*http.Request) (*http.Response, error) {
			calls++
			return nil, errors.New("connection refused")
		}),
	}

	retrier := NewBackoffRequestRetrier(httpClient, 2, NewConstantBackoff(time.Millisecond))
	req, err := NewRetriableRequest("GET", "http://imtree.invalid/health-check", nil)
	require.NoError(t, err)

	_, err = retrier.DoReq(req)
	require.True(t, errors.Is(err, ErrRetry))
	require.True(t, strings.Contains(err.Error(), "connection refused"))
	require.Equal(t, 3, calls)
}

func TestNoRequestRetrierReturnsLastServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "not the leader", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	req, err := NewRetriableRequest("GET", server.URL, nil)
	require.NoError(t, err)

	resp, err := NewNoRequestRetrier(&http.Client{}).DoReq(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, 1, calls)
}
