// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// Public API.

type (
	// UpgradeRequest is the caller supplied, transport independent description of an upgrade.
	// It is never modified by this package.
	UpgradeRequest struct {
		Headers      http.Header
		Method       string
		HTTPVersion  string
		Cookies      []*http.Cookie
		SubProtocols []string
		Extensions   []ExtensionConfig
	}
	ExtensionConfig struct {
		Name       string
		Parameters []ExtensionParameter
	}
	// ExtensionParameter with an empty Value is a flag, e.g. `client_no_context_takeover`.
	ExtensionParameter struct {
		Key   string
		Value string
	}
	// Endpoint describes the transport a handshake runs over. It is known only once the transport is open.
	Endpoint struct {
		LocalAddr  net.Addr
		RemoteAddr net.Addr
		Encrypted  bool
	}
	HTTPVersion uint8
	// Transport opens the connection a WireRequest is sent over.
	Transport interface {
		Open(ctx context.Context, wire *WireRequest) (Conn, error)
	}
	// Conn carries exactly one upgrade exchange.
	Conn interface {
		LocalAddr() net.Addr
		RemoteAddr() net.Addr
		Encrypted() bool
		RoundTrip(ctx context.Context, wire *WireRequest) (*http.Response, error)
		// Stream is the upgraded byte stream, usable only after a successful RoundTrip.
		Stream() net.Conn
		Close() error
	}
	// WireRequest is the request actually sent. It is owned by a single handshake attempt:
	// it may be mutated until Freeze is called and is read-only afterwards.
	WireRequest struct {
		uri       *url.URL
		header    http.Header
		endpoint  atomic.Pointer[Endpoint]
		session   any
		method    string
		key       string
		sessionMx sync.RWMutex
		version   HTTPVersion
		frozen    atomic.Bool
	}
	Builder struct {
		// OfferExtensions copies UpgradeRequest.Extensions into the outgoing Sec-WebSocket-Extensions header.
		OfferExtensions bool
	}
	// RequestProjection is a view over a WireRequest. It never caches derived values.
	RequestProjection struct {
		headerView
		wire *WireRequest
	}
	// ResponseProjection is a read-only view over the negotiated upgrade response.
	ResponseProjection struct {
		headerView
		resp *http.Response
	}
)

const (
	HTTP10 HTTPVersion = iota + 1
	HTTP11
	HTTP2
	HTTP3
)

const (
	HeaderUpgrade       = "Upgrade"
	HeaderConnection    = "Connection"
	HeaderHost          = "Host"
	HeaderOrigin        = "Origin"
	HeaderCookie        = "Cookie"
	HeaderUserAgent     = "User-Agent"
	HeaderSecKey        = "Sec-WebSocket-Key"
	HeaderSecAccept     = "Sec-WebSocket-Accept"
	HeaderSecVersion    = "Sec-WebSocket-Version"
	HeaderSecProtocol   = "Sec-WebSocket-Protocol"
	HeaderSecExtensions = "Sec-WebSocket-Extensions"

	ProtocolVersion = "13"
	UpgradeToken    = "websocket"
)

var (
	ErrMalformedRequest     = errors.New("malformed upgrade request")
	ErrTransportFailure     = errors.New("transport failure")
	ErrHandshakeRejected    = errors.New("upgrade handshake rejected")
	ErrSessionSetupFailure  = errors.New("session setup failed")
	ErrNotAnInteger         = errors.New("header value is not an integer")
	ErrUnsupported          = errors.New("unsupported operation")
	ErrEndpointAlreadyBound = errors.New("endpoint already bound")
)

// Private API.

type (
	headerView struct {
		h http.Header
	}
)

const defaultMethod = http.MethodGet

//nolint:gochecknoglobals // Read-only lookup.
var (
	versionNames = map[HTTPVersion]string{
		HTTP10: "HTTP/1.0",
		HTTP11: "HTTP/1.1",
		HTTP2:  "HTTP/2",
		HTTP3:  "HTTP/3",
	}
	versionAliases = map[string]HTTPVersion{
		"HTTP/1.0": HTTP10,
		"HTTP/1.1": HTTP11,
		"HTTP/2":   HTTP2,
		"HTTP/2.0": HTTP2,
		"HTTP/3":   HTTP3,
		"HTTP/3.0": HTTP3,
	}
)
