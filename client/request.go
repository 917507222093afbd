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
	"bytes"
	"io/ioutil"
	"net/http"
)

// RetriableRequest is an HTTP request whose body can be replayed between
// attempts.
type RetriableRequest struct {
	body []byte

	*http.Request
}

// NewRetriableRequest creates a new retriable request.
func NewRetriableRequest(method, url string, body []byte) (*RetriableRequest, error) {
	httpReq, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	httpReq.ContentLength = int64(len(body))
	return &RetriableRequest{body: body, Request: httpReq}, nil
}

func (r *RetriableRequest) rewind() {
	if r.body != nil {
		r.Request.Body = ioutil.NopCloser(bytes.NewReader(r.body))
	}
}
