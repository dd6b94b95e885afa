// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/jamiealquiza/tachymeter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ice-blockchain/wsconnect/client/ws/fixture"
)

const testDeadline = 10 * stdlibtime.Second

type (
	echoListener struct {
		messages chan string
		closed   chan error
	}
	discardListener struct{}
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func (l *echoListener) OnMessage(_ context.Context, _ *Session, _ ws.OpCode, data []byte) {
	l.messages <- string(data)
}

func (l *echoListener) OnClose(_ *Session, err error) {
	l.closed <- err
}

func (discardListener) OnMessage(context.Context, *Session, ws.OpCode, []byte) {}

func (discardListener) OnClose(*Session, error) {}

func newEchoListener() *echoListener {
	return &echoListener{messages: make(chan string, 16), closed: make(chan error, 1)}
}

func helperConfig() *Config {
	return &Config{
		Origin:           "https://origin.test",
		UserAgent:        "wsconnect-test",
		DialTimeout:      testDeadline,
		HandshakeTimeout: testDeadline,
		WriteTimeout:     testDeadline,
		MaxMessageSize:   1 << 20,
	}
}

func helperClient(t testing.TB, srv *fixture.Server, listener Listener) *Client {
	t.Helper()
	builder := SessionBuilderFunc(func(*SessionContext) (Listener, error) { return listener, nil })
	var client *Client
	if srv.TLS != nil {
		client = NewWithTLSConfig(helperConfig(), builder, srv.ClientTLSConfig())
	} else {
		client = New(helperConfig(), builder)
	}
	t.Cleanup(func() { require.NoError(t, client.Close()) })

	return client
}

func helperClose(t testing.TB, session *Session) {
	t.Helper()
	require.NoError(t, session.Close())
	select {
	case <-session.Done():
	case <-stdlibtime.After(testDeadline):
		require.FailNow(t, "session did not stop")
	}
}

func TestDialScenario(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTestServer(fixture.Options{Protocols: []string{"chat"}})
	defer srv.Close()
	listener := newEchoListener()
	client := helperClient(t, srv, listener)
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	session, err := client.Dial(ctx, &UpgradeRequest{
		SubProtocols: []string{"chat", "v2"},
		Headers:      http.Header{"X-Foo": {"bar"}},
	}, srv.URL(fixture.Path))
	require.NoError(t, err)
	require.Equal(t, "chat", session.SubProtocol())
	require.Equal(t, http.StatusSwitchingProtocols, session.UpgradeResponse().StatusCode())
	require.False(t, session.IsSecure())
	require.Equal(t, srv.Listener.Addr().String(), session.RemoteAddr().String())

	requests := srv.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "bar", requests[0].Header.Get("X-Foo"))
	assert.Equal(t, []string{"chat", "v2"}, requests[0].Header.Values("Sec-Websocket-Protocol"))
	assert.Equal(t, "https://origin.test", requests[0].Header.Get("Origin"))
	assert.Equal(t, "wsconnect-test", requests[0].Header.Get("User-Agent"))
	assert.Equal(t, session.UpgradeRequest().Host(), requests[0].Host)

	require.NoError(t, session.WriteText("hello"))
	require.Equal(t, "hello", <-listener.messages)
	helperClose(t, session)
	require.NoError(t, <-listener.closed)
}

func TestDialSecure(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTLSTestServer(fixture.Options{})
	defer srv.Close()
	listener := newEchoListener()
	client := helperClient(t, srv, listener)
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	session, err := client.Dial(ctx, nil, srv.URL(fixture.Path))
	require.NoError(t, err)
	require.True(t, session.IsSecure())
	require.True(t, session.UpgradeRequest().IsSecure())
	require.Empty(t, session.SubProtocol())

	require.NoError(t, session.WriteBinary([]byte{1, 2, 3}))
	require.Equal(t, string([]byte{1, 2, 3}), <-listener.messages)
	helperClose(t, session)
}

func TestDialCookies(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTestServer(fixture.Options{ResponseHeader: http.Header{"Set-Cookie": {"sid=42; Path=/"}}})
	defer srv.Close()
	client := helperClient(t, srv, newEchoListener())
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	session, err := client.Dial(ctx, &UpgradeRequest{
		Cookies: []*http.Cookie{{Name: "theme", Value: "dark"}},
		Headers: http.Header{"Origin": {"https://caller.test"}},
	}, srv.URL(fixture.Path))
	require.NoError(t, err)
	requests := srv.Requests()
	require.Len(t, requests, 1)
	cookie, err := requests[0].Cookie("theme")
	require.NoError(t, err)
	require.Equal(t, "dark", cookie.Value)
	require.Equal(t, "https://caller.test", requests[0].Header.Get("Origin"))
	cookies := session.UpgradeResponse().SetCookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "42", cookies[0].Value)
	helperClose(t, session)
}

func TestDialCompressed(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTestServer(fixture.Options{Compress: true})
	defer srv.Close()
	listener := newEchoListener()
	builder := SessionBuilderFunc(func(*SessionContext) (Listener, error) { return listener, nil })
	conf := helperConfig()
	conf.OfferExtensions = true
	client := New(conf, builder)
	t.Cleanup(func() { require.NoError(t, client.Close()) })
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	session, err := client.Dial(ctx, &UpgradeRequest{Extensions: []ExtensionConfig{{
		Name:       "permessage-deflate",
		Parameters: []ExtensionParameter{{Key: "server_no_context_takeover"}, {Key: "client_no_context_takeover"}},
	}}}, srv.URL(fixture.Path))
	require.NoError(t, err)
	accepted, err := session.UpgradeResponse().AcceptedExtensions()
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	require.Equal(t, "permessage-deflate", accepted[0].Name)
	_, takeover := accepted[0].Parameter("server_no_context_takeover")
	require.True(t, takeover)

	for _, msg := range []string{"hello", strings.Repeat("compress me ", 100)} {
		require.NoError(t, session.WriteText(msg))
		require.Equal(t, msg, <-listener.messages)
	}
	require.EqualValues(t, 2, srv.CompressedReceived.Load())
	helperClose(t, session)
	require.NoError(t, <-listener.closed)
}

func TestDialRejected(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTestServer(fixture.Options{RejectStatus: http.StatusForbidden})
	defer srv.Close()
	client := helperClient(t, srv, newEchoListener())
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	session, err := client.Dial(ctx, nil, srv.URL(fixture.Path))
	require.Nil(t, session)
	require.ErrorIs(t, err, ErrHandshakeRejected)
	var rejected *HandshakeRejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, http.StatusForbidden, rejected.StatusCode)
}

func TestDialMalformed(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTestServer(fixture.Options{})
	defer srv.Close()
	client := helperClient(t, srv, newEchoListener())

	fut := client.Initiate(context.Background(), nil, "ftp://example.test/")
	select {
	case <-fut.Done():
	default:
		require.FailNow(t, "malformed target must fail immediately")
	}
	_, err := fut.Result()
	require.True(t, errors.Is(err, ErrMalformedRequest))

	fut = client.Initiate(context.Background(), &UpgradeRequest{Headers: http.Header{"Bad Name": {"x"}}}, srv.URL(fixture.Path))
	_, err = fut.Result()
	require.True(t, errors.Is(err, ErrMalformedRequest))
	require.Empty(t, srv.Requests())
}

func TestDialTransportFailure(t *testing.T) {
	t.Parallel()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	srv := fixture.NewTestServer(fixture.Options{})
	defer srv.Close()
	client := helperClient(t, srv, newEchoListener())
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	_, err = client.Dial(ctx, nil, "ws://"+addr+fixture.Path)
	require.True(t, errors.Is(err, ErrTransportFailure))
}

func TestServerClose(t *testing.T) {
	t.Parallel()
	srv := fixture.NewTestServer(fixture.Options{})
	defer srv.Close()
	listener := newEchoListener()
	client := helperClient(t, srv, listener)
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()

	session, err := client.Dial(ctx, nil, srv.URL(fixture.Path))
	require.NoError(t, err)
	require.NoError(t, session.WriteText(fixture.CloseCommand))
	select {
	case err = <-listener.closed:
		require.NoError(t, err)
	case <-stdlibtime.After(testDeadline):
		require.FailNow(t, "server close was not observed")
	}
	<-session.Done()
	require.Error(t, session.WriteText("after close"))
}

func TestSimpleEcho(t *testing.T) {
	t.Parallel()
	const conns, messages = 10, 20
	srv := fixture.NewTestServer(fixture.Options{})
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), testDeadline)
	defer cancel()
	var wg sync.WaitGroup
	for range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener := newEchoListener()
			client := helperClient(t, srv, listener)
			session, err := client.Dial(ctx, nil, srv.URL(fixture.Path))
			if !assert.NoError(t, err) {
				return
			}
			for i := range messages {
				msg := "msg" + string(rune('a'+i))
				assert.NoError(t, session.WriteText(msg))
				assert.Equal(t, msg, <-listener.messages)
			}
			helperClose(t, session)
		}()
	}
	wg.Wait()
	require.EqualValues(t, conns, len(srv.Requests()))
}

func BenchmarkDial(b *testing.B) {
	if os.Getenv("CI") != "" {
		b.Skip()
	}
	srv := fixture.NewTestServer(fixture.Options{})
	defer srv.Close()
	client := helperClient(b, srv, discardListener{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*stdlibtime.Minute)
	defer cancel()
	meter := tachymeter.New(&tachymeter.Config{Size: b.N})
	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		start := stdlibtime.Now()
		session, err := client.Dial(ctx, nil, srv.URL(fixture.Path))
		require.NoError(b, err)
		meter.AddTime(stdlibtime.Since(start))
		helperClose(b, session)
	}
	helperBenchReportMetrics(b, meter)
}

func helperBenchReportMetrics(
	t interface {
		Helper()
		ReportMetric(float64, string)
	},
	meter *tachymeter.Tachymeter,
) {
	t.Helper()

	metric := meter.Calc()
	t.ReportMetric(float64(metric.Time.Avg.Milliseconds()), "avg-ms/op")
	t.ReportMetric(float64(metric.Time.StdDev.Milliseconds()), "stddev-ms/op")
	t.ReportMetric(float64(metric.Time.P50.Milliseconds()), "p50-ms/op")
	t.ReportMetric(float64(metric.Time.P95.Milliseconds()), "p95-ms/op")
}
