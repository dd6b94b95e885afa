// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"net/http"
)

func NewResponseProjection(resp *http.Response) *ResponseProjection {
	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}

	return &ResponseProjection{headerView: headerView{h: header}, resp: resp}
}

func (p *ResponseProjection) StatusCode() int {
	return p.resp.StatusCode
}

func (p *ResponseProjection) Status() string {
	return p.resp.Status
}

func (p *ResponseProjection) HTTPVersion() string {
	return p.resp.Proto
}

// AcceptedSubProtocol is empty when the server did not pick any.
func (p *ResponseProjection) AcceptedSubProtocol() string {
	if tokens := p.Tokens(HeaderSecProtocol); len(tokens) > 0 {
		return tokens[0]
	}

	return ""
}

// AcceptedExtensions is Extensions under the name the negotiation uses.
func (p *ResponseProjection) AcceptedExtensions() ([]ExtensionConfig, error) {
	return p.Extensions()
}

// SetCookies are the cookies the server asked to store, if any.
func (p *ResponseProjection) SetCookies() []*http.Cookie {
	return (&http.Response{Header: p.h}).Cookies()
}
