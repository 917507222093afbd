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
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/bbva/imtree/log"
)

// We need to consume response bodies to maintain http connections, but
// limit the size we consume to respReadLimit.
const respReadLimit = int64(4096)

// RequestRetrier executes a request and decides whether to retry it when
// it fails.
type RequestRetrier interface {
	DoReq(req *RetriableRequest) (*http.Response, error)
}

// BackoffRequestRetrier retries failed requests following a backoff
// strategy. Connection errors and 5xx responses are retried; any other
// response is returned to the caller.
type BackoffRequestRetrier struct {
	*http.Client
	maxRetries int
	backoff    Backoff
}

// NewBackoffRequestRetrier returns a retrier that uses the given backoff strategy.
func NewBackoffRequestRetrier(httpClient *http.Client, maxRetries int, backoff Backoff) *BackoffRequestRetrier {
	return &BackoffRequestRetrier{
		Client:     httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// NewNoRequestRetrier returns a retrier that does no retries.
func NewNoRequestRetrier(httpClient *http.Client) *BackoffRequestRetrier {
	return NewBackoffRequestRetrier(httpClient, 0, NewStopBackoff())
}

// DoReq implements RequestRetrier.
func (r *BackoffRequestRetrier) DoReq(req *RetriableRequest) (*http.Response, error) {
	var resp *http.Response
	var err error

	for i := 0; ; i++ {
		var code int

		req.rewind()
		resp, err = r.Do(req.Request)
		if resp != nil {
			code = resp.StatusCode
		}
		if err != nil {
			log.Infof("%s %s request failed: %v", req.Method, req.URL, err)
		}

		if err == nil && code > 0 && code < 500 {
			return resp, nil
		}

		remain := r.maxRetries - i
		if remain <= 0 {
			break
		}

		// consume the response to reuse the connection
		if resp != nil {
			_, _ = io.Copy(ioutil.Discard, io.LimitReader(resp.Body, respReadLimit))
			resp.Body.Close()
			resp = nil
		}

		wait, goahead := r.backoff.Next(i)
		if !goahead {
			break
		}

		desc := fmt.Sprintf("%s %s", req.Method, req.URL)
		if code > 0 {
			desc = fmt.Sprintf("%s (status: %d)", desc, code)
		}
		log.Infof("%s: retrying in %s (%d left)", desc, wait, remain)
		time.Sleep(wait)
	}

	if resp != nil {
		// the last 5xx answer carries the server error
		return resp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %v", req.Method, req.URL, ErrRetry, err)
	}
	return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, ErrRetry)
}
