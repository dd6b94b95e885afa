// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/http/httpguts"
)

// Build copies generic into target with the default Builder.
func Build(generic *UpgradeRequest, target *WireRequest) error {
	return new(Builder).Build(generic, target)
}

// Build copies generic into target. A nil generic leaves target untouched.
// Everything is validated before target is touched, so a failed build leaves no partial state behind.
// Cookies are appended as new Cookie values, pre-existing Cookie values are neither merged nor deduplicated.
func (b *Builder) Build(generic *UpgradeRequest, target *WireRequest) error {
	if generic == nil {
		return nil
	}
	if err := target.checkMutable(); err != nil {
		return err
	}
	version, err := b.validate(generic)
	if err != nil {
		return err
	}
	header := target.Header()
	for name, values := range generic.Headers {
		for _, value := range values {
			header.Add(name, value)
		}
	}
	for _, cookie := range generic.Cookies {
		header.Add(HeaderCookie, serializeCookie(cookie))
	}
	if len(generic.SubProtocols) > 0 {
		setValues(header, HeaderSecProtocol, generic.SubProtocols...)
	}
	if b.OfferExtensions {
		for i := range generic.Extensions {
			header.Add(HeaderSecExtensions, generic.Extensions[i].String())
		}
	}
	if generic.Method != "" {
		target.method = generic.Method
	}
	if version != 0 {
		target.version = version
	}

	return nil
}

func (b *Builder) validate(generic *UpgradeRequest) (version HTTPVersion, err error) {
	if generic.HTTPVersion != "" {
		if version, err = ParseHTTPVersion(generic.HTTPVersion); err != nil {
			return 0, err
		}
	}
	if generic.Method != "" && !isToken(generic.Method) {
		return 0, errors.Wrapf(ErrMalformedRequest, "invalid method `%v`", generic.Method)
	}
	for name, values := range generic.Headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return 0, errors.Wrapf(ErrMalformedRequest, "invalid header name `%v`", name)
		}
		for _, value := range values {
			if !httpguts.ValidHeaderFieldValue(value) {
				return 0, errors.Wrapf(ErrMalformedRequest, "invalid value for header `%v`", name)
			}
		}
	}
	for i, cookie := range generic.Cookies {
		if err = checkCookie(cookie); err != nil {
			return 0, errors.Wrapf(err, "cookie #%v", i)
		}
	}
	for _, protocol := range generic.SubProtocols {
		if !isToken(protocol) {
			return 0, errors.Wrapf(ErrMalformedRequest, "invalid sub-protocol `%v`", protocol)
		}
	}
	if b.OfferExtensions {
		for i := range generic.Extensions {
			if err = generic.Extensions[i].validate(); err != nil {
				return 0, err
			}
		}
	}

	return version, nil
}

// Request cookies carry only name and value, attributes belong to Set-Cookie.
func serializeCookie(cookie *http.Cookie) string {
	return (&http.Cookie{Name: cookie.Name, Value: cookie.Value}).String()
}

// checkCookie refuses anything http.Cookie.String would silently drop bytes from.
func checkCookie(cookie *http.Cookie) error {
	if cookie == nil {
		return errors.Wrap(ErrMalformedRequest, "nil cookie")
	}
	if err := (&http.Cookie{Name: cookie.Name, Value: cookie.Value}).Valid(); err != nil {
		return errors.Wrapf(ErrMalformedRequest, "invalid cookie `%v`: %v", cookie.Name, err)
	}
	serialized := strings.TrimPrefix(serializeCookie(cookie), cookie.Name+"=")
	if unquoted := strings.TrimSuffix(strings.TrimPrefix(serialized, `"`), `"`); unquoted != cookie.Value {
		return errors.Wrapf(ErrMalformedRequest, "cookie `%v` value would be sent as `%v`", cookie.Name, serialized)
	}

	return nil
}

func setValues(header http.Header, name string, values ...string) {
	header.Del(name)
	for _, value := range values {
		header.Add(name, value)
	}
}
