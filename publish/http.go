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

package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/bbva/imtree/group"
	"github.com/bbva/imtree/log"
)

const EventsEndpoint = "/events"

type HTTPConfig struct {
	Client  *fasthttp.Client
	SendTo  []string
	Timeout time.Duration
}

func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Client:  &fasthttp.Client{},
		Timeout: 5 * time.Second,
	}
}

func NewHTTPConfig(c *fasthttp.Client, to []string) *HTTPConfig {
	cfg := DefaultHTTPConfig()
	cfg.Client = c
	cfg.SendTo = to
	return cfg
}

// HTTPPublisher posts msgpack encoded events to the /events endpoint of
// every configured URL.
type HTTPPublisher struct {
	Config *HTTPConfig
}

func NewHTTPPublisher(conf *HTTPConfig) *HTTPPublisher {
	return &HTTPPublisher{Config: conf}
}

func (p *HTTPPublisher) Publish(e *group.Event) error {
	buf, err := e.Encode()
	if err != nil {
		return err
	}

	var failed []string
	for _, url := range p.Config.SendTo {
		if err := p.post(url+EventsEndpoint, buf); err != nil {
			log.Debugf("Publisher: error sending event %s to %s: %v", e.ID, url, err)
			failed = append(failed, url)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("event %s not delivered to %s", e.ID, strings.Join(failed, ", "))
	}
	return nil
}

func (p *HTTPPublisher) post(url string, body []byte) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod("POST")
	req.Header.SetContentType("application/x-msgpack")
	req.SetBody(body)

	if err := p.Config.Client.DoTimeout(req, resp, p.Config.Timeout); err != nil {
		return err
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return fmt.Errorf("unexpected status code %d", code)
	}
	return nil
}
