// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// NewWireRequest prepares a GET HTTP/1.1 upgrade request for target with the mandatory handshake headers.
func NewWireRequest(target string) (*WireRequest, error) {
	uri, err := url.Parse(target)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to parse target uri `%v`", target), ErrMalformedRequest)
	}
	switch strings.ToLower(uri.Scheme) {
	case "ws", "http":
		uri.Scheme = "ws"
	case "wss", "https":
		uri.Scheme = "wss"
	default:
		return nil, errors.Wrapf(ErrMalformedRequest, "unsupported scheme `%v` in `%v`", uri.Scheme, target)
	}
	if uri.Host == "" {
		return nil, errors.Wrapf(ErrMalformedRequest, "no host in `%v`", target)
	}
	uri.Fragment, uri.RawFragment = "", ""
	req := &WireRequest{
		uri:     uri,
		header:  make(http.Header),
		method:  defaultMethod,
		version: HTTP11,
		key:     newNonce(),
	}
	req.header.Set(HeaderUpgrade, UpgradeToken)
	req.header.Set(HeaderConnection, "Upgrade")
	req.header.Set(HeaderSecKey, req.key)
	req.header.Set(HeaderSecVersion, ProtocolVersion)

	return req, nil
}

// Sec-WebSocket-Key is a base64 encoded random 16 byte value, a v4 uuid is exactly that.
func newNonce() string {
	nonce := uuid.New()

	return base64.StdEncoding.EncodeToString(nonce[:])
}

func (r *WireRequest) URI() *url.URL {
	uri := *r.uri

	return &uri
}

func (r *WireRequest) Secure() bool {
	return r.uri.Scheme == "wss"
}

func (r *WireRequest) Host() string {
	return r.uri.Host
}

func (r *WireRequest) RequestURI() string {
	return r.uri.RequestURI()
}

func (r *WireRequest) Method() string {
	return r.method
}

func (r *WireRequest) Version() HTTPVersion {
	return r.version
}

func (r *WireRequest) Key() string {
	return r.key
}

// Header returns the live header set. Callers must not mutate it after Freeze.
func (r *WireRequest) Header() http.Header {
	return r.header
}

func (r *WireRequest) SetMethod(method string) error {
	if err := r.checkMutable(); err != nil {
		return err
	}
	r.method = method

	return nil
}

func (r *WireRequest) SetVersion(version HTTPVersion) error {
	if err := r.checkMutable(); err != nil {
		return err
	}
	r.version = version

	return nil
}

func (r *WireRequest) Session() any {
	r.sessionMx.RLock()
	defer r.sessionMx.RUnlock()

	return r.session
}

func (r *WireRequest) SetSession(session any) {
	r.sessionMx.Lock()
	r.session = session
	r.sessionMx.Unlock()
}

// Freeze marks the request as sent, it is read-only from now on.
func (r *WireRequest) Freeze() {
	r.frozen.Store(true)
}

func (r *WireRequest) Frozen() bool {
	return r.frozen.Load()
}

// BindEndpoint sets the transport endpoint. Only the first call succeeds.
func (r *WireRequest) BindEndpoint(endpoint Endpoint) error {
	if !r.endpoint.CompareAndSwap(nil, &endpoint) {
		return errors.Wrapf(ErrEndpointAlreadyBound, "endpoint %v -> %v", r.endpoint.Load().LocalAddr, r.endpoint.Load().RemoteAddr)
	}

	return nil
}

func (r *WireRequest) Endpoint() (Endpoint, bool) {
	if e := r.endpoint.Load(); e != nil {
		return *e, true
	}

	return Endpoint{}, false
}

func (r *WireRequest) checkMutable() error {
	if r.Frozen() {
		return errors.Wrapf(ErrUnsupported, "upgrade request to %v has already been sent", r.uri)
	}

	return nil
}
