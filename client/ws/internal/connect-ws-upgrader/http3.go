// SPDX-License-Identifier: ice License 1.0

package connectwsupgrader

import (
	"context"
	"net/http"
	"net/url"
)

// NewConnectRequest turns an upgrade target into the extended CONNECT request carrying :protocol websocket.
func NewConnectRequest(ctx context.Context, target *url.URL, host string, header http.Header) *http.Request {
	uri := *target
	uri.Scheme = "https"
	connectHeader := make(http.Header, len(header))
	for name, values := range header {
		if _, stripped := strippedHeaders[http.CanonicalHeaderKey(name)]; stripped {
			continue
		}
		connectHeader[name] = append([]string(nil), values...)
	}
	req := &http.Request{
		Method: http.MethodConnect,
		Proto:  websocketProtocol,
		Host:   host,
		URL:    &uri,
		Header: connectHeader,
	}

	return req.WithContext(ctx)
}
