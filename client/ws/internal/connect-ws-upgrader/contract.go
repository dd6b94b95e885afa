// SPDX-License-Identifier: ice License 1.0

package connectwsupgrader

import (
	"net/http"
)

// Implements the RFC 9220 request shape on the client side.

const websocketProtocol = "websocket"

// Connection specific fields are forbidden in HTTP/3, the nonce has no meaning for extended CONNECT.
//
//nolint:gochecknoglobals // Read-only lookup.
var strippedHeaders = map[string]struct{}{
	http.CanonicalHeaderKey("Upgrade"):           {},
	http.CanonicalHeaderKey("Connection"):        {},
	http.CanonicalHeaderKey("Keep-Alive"):        {},
	http.CanonicalHeaderKey("Proxy-Connection"):  {},
	http.CanonicalHeaderKey("Transfer-Encoding"): {},
	http.CanonicalHeaderKey("Host"):              {},
	http.CanonicalHeaderKey("Sec-WebSocket-Key"): {},
}
