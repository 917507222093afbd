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

package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	errMalformedURL     = errors.New("malformed URL")
	errMissingURLScheme = errors.New("missing URL Scheme")
	errMissingURLHost   = errors.New("missing URL Host")
	errMissingURLPort   = errors.New("missing URL Port")
	errUnexpectedScheme = errors.New("unexpected URL Scheme")
)

// urlParse checks that the given endpoints are valid URLs for REST
// requests: scheme + hostname [ + port ]
func urlParse(endpoints ...string) error {
	for _, endpoint := range endpoints {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("%w in %s", errMalformedURL, endpoint)
		}
		if u.Scheme == "" {
			return fmt.Errorf("%w in %s", errMissingURLScheme, endpoint)
		}
		if u.Hostname() == "" {
			return fmt.Errorf("%w in %s", errMissingURLHost, endpoint)
		}
	}
	return nil
}

// urlParseNoSchemaRequired checks that the given addresses are valid to
// bind services: hostname + port, without scheme.
func urlParseNoSchemaRequired(addrs ...string) error {
	for _, addr := range addrs {
		if strings.Contains(addr, "://") {
			return fmt.Errorf("%w in %s", errUnexpectedScheme, addr)
		}

		// Add fake scheme to get an expected result from url.Parse
		u, err := url.Parse("http://" + addr)
		if err != nil {
			return fmt.Errorf("%w in %s", errMalformedURL, addr)
		}
		if u.Hostname() == "" {
			return fmt.Errorf("%w in %s", errMissingURLHost, addr)
		}
		if u.Port() == "" {
			return fmt.Errorf("%w in %s", errMissingURLPort, addr)
		}
	}
	return nil
}
