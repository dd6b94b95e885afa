// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rand"
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func helperRandomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}

	return string(b)
}

func helperNewWireRequest(t *testing.T, target string) *WireRequest {
	t.Helper()
	wire, err := NewWireRequest(target)
	require.NoError(t, err)

	return wire
}

func TestBuildNilIsNoop(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "wss://example.test/ws")
	before := wire.Header().Clone()

	require.NoError(t, Build(nil, wire))
	require.Equal(t, before, wire.Header())
	require.Equal(t, http.MethodGet, wire.Method())
	require.Equal(t, HTTP11, wire.Version())
	require.Len(t, wire.Header(), 4)
	require.Equal(t, UpgradeToken, wire.Header().Get(HeaderUpgrade))
	require.Equal(t, ProtocolVersion, wire.Header().Get(HeaderSecVersion))
	require.NotEmpty(t, wire.Key())
}

func TestBuildScenario(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "wss://example.test/ws")
	generic := &UpgradeRequest{
		SubProtocols: []string{"chat", "v2"},
		Headers:      http.Header{"X-Foo": {"bar"}},
	}

	require.NoError(t, Build(generic, wire))
	require.Equal(t, http.MethodGet, wire.Method())
	require.Equal(t, []string{"bar"}, wire.Header().Values("X-Foo"))
	require.Equal(t, []string{"chat", "v2"}, wire.Header().Values(HeaderSecProtocol))
	require.Equal(t, http.Header{"X-Foo": {"bar"}}, generic.Headers, "caller copy must not change")
}

func TestBuildAppendsHeaders(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")
	wire.Header().Add("X-Multi", "first")

	require.NoError(t, Build(&UpgradeRequest{Headers: http.Header{"X-Multi": {"second", "third"}}}, wire))
	require.Equal(t, []string{"first", "second", "third"}, wire.Header().Values("X-Multi"))
}

func TestBuildPreservesEveryHeader(t *testing.T) {
	t.Parallel()
	for range 100 {
		generic := &UpgradeRequest{Headers: make(http.Header)}
		for range rand.Intn(10) + 1 {
			name := http.CanonicalHeaderKey("X-" + helperRandomString(rand.Intn(10)+1))
			for range rand.Intn(5) + 1 {
				generic.Headers[name] = append(generic.Headers[name], helperRandomString(rand.Intn(20)))
			}
		}
		wire := helperNewWireRequest(t, "ws://example.test/")

		require.NoError(t, Build(generic, wire))
		for name, values := range generic.Headers {
			require.Equal(t, values, wire.Header().Values(name))
		}
	}
}

func TestBuildCookies(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")
	wire.Header().Add(HeaderCookie, "pre=existing")
	cookies := []*http.Cookie{
		{Name: "session", Value: "abc", Path: "/", HttpOnly: true},
		{Name: "theme", Value: "dark"},
	}

	require.NoError(t, Build(&UpgradeRequest{Cookies: cookies}, wire))
	require.Equal(t, []string{"pre=existing", "session=abc", "theme=dark"}, wire.Header().Values(HeaderCookie))
	parsed := NewRequestProjection(wire).Cookies()
	require.Len(t, parsed, 3)
	for i, cookie := range cookies {
		assert.Equal(t, cookie.Name, parsed[i+1].Name)
		assert.Equal(t, cookie.Value, parsed[i+1].Value)
	}
}

func TestBuildCookiesRoundTrip(t *testing.T) {
	t.Parallel()
	for range 50 {
		wire := helperNewWireRequest(t, "ws://example.test/")
		var cookies []*http.Cookie
		for i := range rand.Intn(8) {
			cookies = append(cookies, &http.Cookie{Name: helperRandomString(1) + helperRandomString(i+1), Value: helperRandomString(rand.Intn(16))})
		}

		require.NoError(t, Build(&UpgradeRequest{Cookies: cookies}, wire))
		parsed := NewRequestProjection(wire).Cookies()
		require.Len(t, parsed, len(cookies))
		for i := range cookies {
			require.Equal(t, cookies[i].Name, parsed[i].Name)
			require.Equal(t, cookies[i].Value, parsed[i].Value)
		}
	}
}

func TestBuildSubProtocolsReplace(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")
	wire.Header().Set(HeaderSecProtocol, "old")

	require.NoError(t, Build(&UpgradeRequest{SubProtocols: []string{"new1", "new2"}}, wire))
	require.Equal(t, []string{"new1", "new2"}, wire.Header().Values(HeaderSecProtocol))

	require.NoError(t, Build(&UpgradeRequest{}, wire))
	require.Equal(t, []string{"new1", "new2"}, wire.Header().Values(HeaderSecProtocol), "nil list keeps the header")
}

func TestBuildEmptySubProtocolsKeepHeader(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")
	wire.Header().Set(HeaderSecProtocol, "preset")

	require.NoError(t, Build(&UpgradeRequest{SubProtocols: []string{}}, wire))
	require.Equal(t, []string{"preset"}, wire.Header().Values(HeaderSecProtocol))
}

func TestBuildCookieValuesSentVerbatim(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")
	cookies := []*http.Cookie{{Name: "spaced", Value: "a b"}, {Name: "comma", Value: "x,y"}, {Name: "empty"}}

	require.NoError(t, Build(&UpgradeRequest{Cookies: cookies}, wire))
	parsed := NewRequestProjection(wire).Cookies()
	require.Len(t, parsed, len(cookies))
	for i := range cookies {
		require.Equal(t, cookies[i].Value, parsed[i].Value, cookies[i].Name)
	}
}

func TestBuildMethodAndVersion(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")

	require.NoError(t, Build(&UpgradeRequest{Method: "OPTIONS", HTTPVersion: "http/3"}, wire))
	require.Equal(t, "OPTIONS", wire.Method())
	require.Equal(t, HTTP3, wire.Version())

	require.NoError(t, Build(&UpgradeRequest{}, wire))
	require.Equal(t, "OPTIONS", wire.Method())
	require.Equal(t, HTTP3, wire.Version())
}

func TestBuildMalformed(t *testing.T) {
	t.Parallel()
	for name, generic := range map[string]*UpgradeRequest{
		"version":     {HTTPVersion: "HTTP/4.2", Headers: http.Header{"X-Foo": {"bar"}}},
		"method":      {Method: "GE T"},
		"header name": {Headers: http.Header{"X Foo": {"bar"}}},
		"header val":  {Headers: http.Header{"X-Foo": {"bar\r\nInjected: yes"}}},
		"cookie":      {Cookies: []*http.Cookie{{Name: "bad name", Value: "x"}}},
		"nil cookie":  {Cookies: []*http.Cookie{nil}},
		"semicolon":   {Cookies: []*http.Cookie{{Name: "n", Value: "a;b"}}},
		"non ascii":   {Cookies: []*http.Cookie{{Name: "n", Value: "héllo"}}},
		"quote":       {Cookies: []*http.Cookie{{Name: "n", Value: `a"b`}}},
		"subprotocol": {SubProtocols: []string{"chat v2"}},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			wire := helperNewWireRequest(t, "ws://example.test/")
			before := wire.Header().Clone()

			err := Build(generic, wire)
			require.ErrorIs(t, err, ErrMalformedRequest)
			require.Equal(t, before, wire.Header())
			require.Equal(t, HTTP11, wire.Version())
			require.Equal(t, http.MethodGet, wire.Method())
		})
	}
}

func TestBuildExtensions(t *testing.T) {
	t.Parallel()
	generic := &UpgradeRequest{Extensions: []ExtensionConfig{
		{Name: "permessage-deflate", Parameters: []ExtensionParameter{{Key: "client_max_window_bits"}, {Key: "server_max_window_bits", Value: "10"}}},
	}}
	t.Run("not offered by default", func(t *testing.T) {
		t.Parallel()
		wire := helperNewWireRequest(t, "ws://example.test/")
		require.NoError(t, Build(generic, wire))
		require.False(t, NewRequestProjection(wire).HasHeader(HeaderSecExtensions))
		exts, err := NewRequestProjection(wire).Extensions()
		require.NoError(t, err)
		require.Empty(t, exts)
	})
	t.Run("offered", func(t *testing.T) {
		t.Parallel()
		wire := helperNewWireRequest(t, "ws://example.test/")
		require.NoError(t, (&Builder{OfferExtensions: true}).Build(generic, wire))
		require.Equal(t, []string{"permessage-deflate; client_max_window_bits; server_max_window_bits=10"}, wire.Header().Values(HeaderSecExtensions))
		exts, err := NewRequestProjection(wire).Extensions()
		require.NoError(t, err)
		require.Equal(t, generic.Extensions, exts)
	})
	t.Run("offered invalid", func(t *testing.T) {
		t.Parallel()
		wire := helperNewWireRequest(t, "ws://example.test/")
		err := (&Builder{OfferExtensions: true}).Build(&UpgradeRequest{Extensions: []ExtensionConfig{{Name: "bad name"}}}, wire)
		require.True(t, errors.Is(err, ErrMalformedRequest))
	})
}

func TestBuildAfterFreeze(t *testing.T) {
	t.Parallel()
	wire := helperNewWireRequest(t, "ws://example.test/")
	wire.Freeze()

	require.ErrorIs(t, Build(&UpgradeRequest{Method: "GET"}, wire), ErrUnsupported)
	require.NoError(t, Build(nil, wire))
}
