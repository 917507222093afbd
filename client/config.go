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
	"time"
)

const (
	// DefaultTimeout is the default time to wait for a request.
	DefaultTimeout = 10 * time.Second

	// DefaultDialTimeout is the default time to wait for the connection to
	// be established.
	DefaultDialTimeout = 5 * time.Second

	// DefaultHandshakeTimeout is the default time to wait for a TLS
	// handshake.
	DefaultHandshakeTimeout = 5 * time.Second

	// DefaultMaxRetries is the default number of retries of a failed
	// request. Mutations are not idempotent, so it is zero.
	DefaultMaxRetries = 0
)

// Config sets the HTTP client configuration
type Config struct {
	// Endpoint of the imtree API, as http://host:port.
	Endpoint string `desc:"REST imtree service endpoint http://ip:port"`

	// APIKey to query the server endpoint.
	APIKey string `desc:"Set API Key to talk to the imtree service"`

	// Caller is the identity sent along with every mutation.
	Caller string `desc:"Identity of the caller, checked against the group admin"`

	// Insecure disables the verification of the server's certificate chain
	// and host name.
	Insecure bool `desc:"Set it to true to disable the verification of the server's certificate chain"`

	// Timeout is the time to wait for a request.
	Timeout time.Duration `desc:"Time to wait for a request"`

	// DialTimeout is the time to wait for the connection to be established.
	DialTimeout time.Duration `desc:"Time to wait for the connection to be established"`

	// HandshakeTimeout is the time to wait for a handshake negotiation.
	HandshakeTimeout time.Duration `desc:"Time to wait for a handshake negotiation"`

	// MaxRetries sets the maximum number of retries before giving up.
	MaxRetries int `desc:"Sets the maximum number of retries before giving up"`
}

// DefaultConfig creates a Config structures with default values.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:         "http://127.0.0.1:8800",
		APIKey:           "my-key",
		Timeout:          DefaultTimeout,
		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		MaxRetries:       DefaultMaxRetries,
	}
}
