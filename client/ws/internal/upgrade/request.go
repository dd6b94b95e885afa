// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/http/httpguts"
)

func NewRequestProjection(wire *WireRequest) *RequestProjection {
	return &RequestProjection{headerView: headerView{h: wire.Header()}, wire: wire}
}

func (p *RequestProjection) Method() string {
	return p.wire.Method()
}

func (p *RequestProjection) HTTPVersion() string {
	return p.wire.Version().String()
}

// ProtocolVersion is the Sec-WebSocket-Version being requested.
func (p *RequestProjection) ProtocolVersion() string {
	v, _ := p.Header(HeaderSecVersion)

	return v
}

func (p *RequestProjection) RequestURI() *url.URL {
	return p.wire.URI()
}

func (p *RequestProjection) Host() string {
	return p.wire.Host()
}

func (p *RequestProjection) QueryString() string {
	return p.wire.uri.RawQuery
}

// QueryParameters decodes the query string on every call, empty when there is none.
func (p *RequestProjection) QueryParameters() map[string][]string {
	params, _ := url.ParseQuery(p.wire.uri.RawQuery) //nolint:errcheck // Keeps whatever could be decoded.
	if params == nil {
		return make(map[string][]string)
	}

	return params
}

func (p *RequestProjection) Origin() (string, bool) {
	return p.Header(HeaderOrigin)
}

func (p *RequestProjection) Cookies() []*http.Cookie {
	return (&http.Request{Header: http.Header{HeaderCookie: p.h.Values(HeaderCookie)}}).Cookies()
}

func (p *RequestProjection) SubProtocols() []string {
	return p.Tokens(HeaderSecProtocol)
}

// HasSubProtocol matches case-insensitively.
func (p *RequestProjection) HasSubProtocol(protocol string) bool {
	return p.containsToken(HeaderSecProtocol, protocol)
}

func (p *RequestProjection) Endpoint() (Endpoint, bool) {
	return p.wire.Endpoint()
}

// IsSecure reports whether the bound transport is encrypted, false until a transport is bound.
func (p *RequestProjection) IsSecure() bool {
	e, bound := p.wire.Endpoint()

	return bound && e.Encrypted
}

func (p *RequestProjection) Session() any {
	return p.wire.Session()
}

func (p *RequestProjection) SetSession(session any) {
	p.wire.SetSession(session)
}

func (p *RequestProjection) SetHeader(name string, values ...string) error {
	if err := p.checkHeader(name, values...); err != nil {
		return err
	}
	setValues(p.h, name, values...)

	return nil
}

// SetHeaders replaces the whole header set. The mandatory handshake headers are the caller's responsibility from there on.
func (p *RequestProjection) SetHeaders(headers http.Header) error {
	for name, values := range headers {
		if err := p.checkHeader(name, values...); err != nil {
			return err
		}
	}
	for name := range p.h {
		delete(p.h, name)
	}
	for name, values := range headers {
		for _, value := range values {
			p.h.Add(name, value)
		}
	}

	return nil
}

// SetCookies replaces any Cookie header value.
func (p *RequestProjection) SetCookies(cookies []*http.Cookie) error {
	if err := p.wire.checkMutable(); err != nil {
		return err
	}
	serialized := make([]string, 0, len(cookies))
	for i, cookie := range cookies {
		if err := checkCookie(cookie); err != nil {
			return errors.Wrapf(err, "cookie #%v", i)
		}
		serialized = append(serialized, serializeCookie(cookie))
	}
	setValues(p.h, HeaderCookie, serialized...)

	return nil
}

func (p *RequestProjection) SetSubProtocols(protocols ...string) error {
	if err := p.wire.checkMutable(); err != nil {
		return err
	}
	for _, protocol := range protocols {
		if !isToken(protocol) {
			return errors.Wrapf(ErrMalformedRequest, "invalid sub-protocol `%v`", protocol)
		}
	}
	setValues(p.h, HeaderSecProtocol, protocols...)

	return nil
}

func (p *RequestProjection) SetExtensions(configs ...ExtensionConfig) error {
	if err := p.wire.checkMutable(); err != nil {
		return err
	}
	p.h.Del(HeaderSecExtensions)

	return p.AddExtensions(configs...)
}

func (p *RequestProjection) AddExtensions(configs ...ExtensionConfig) error {
	if err := p.wire.checkMutable(); err != nil {
		return err
	}
	for i := range configs {
		if err := configs[i].validate(); err != nil {
			return err
		}
	}
	for i := range configs {
		p.h.Add(HeaderSecExtensions, configs[i].String())
	}

	return nil
}

func (p *RequestProjection) checkHeader(name string, values ...string) error {
	if err := p.wire.checkMutable(); err != nil {
		return err
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return errors.Wrapf(ErrMalformedRequest, "invalid header name `%v`", name)
	}
	for _, value := range values {
		if !httpguts.ValidHeaderFieldValue(value) {
			return errors.Wrapf(ErrMalformedRequest, "invalid value for header `%v`", name)
		}
	}

	return nil
}
