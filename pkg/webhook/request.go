// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/fisherhq/fisher/pkg/providers"
)

// translateRequest converts an inbound HTTP request into Fisher's
// neutral WebRequest, resolving the source address per behindProxies
// trusted reverse proxies in front of the server.
func translateRequest(r *http.Request, behindProxies uint8) (*providers.WebRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	return &providers.WebRequest{
		Source:  sourceAddress(r, behindProxies),
		Headers: r.Header,
		Params:  r.URL.Query(),
		Body:    body,
	}, nil
}

// sourceAddress resolves the caller's address. If behindProxies is
// zero, it is the TCP peer. Otherwise it is the (behindProxies+1)-th
// entry from the right of X-Forwarded-For, falling back to the TCP
// peer when the header is absent or too short.
func sourceAddress(r *http.Request, behindProxies uint8) net.IP {
	if behindProxies > 0 {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			entries := strings.Split(fwd, ",")
			for i := range entries {
				entries[i] = strings.TrimSpace(entries[i])
			}

			idx := len(entries) - 1 - int(behindProxies)
			if idx >= 0 && idx < len(entries) {
				if ip := net.ParseIP(entries[idx]); ip != nil {
					return ip
				}
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
