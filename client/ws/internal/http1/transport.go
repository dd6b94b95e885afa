// SPDX-License-Identifier: ice License 1.0

package http1

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

// New creates the transport. tlsConfig is optional, it is cloned for every connection.
func New(cfg *config.Config, tlsConfig *tls.Config) *Transport {
	return &Transport{cfg: cfg, tlsConfig: tlsConfig}
}

func (t *Transport) Open(ctx context.Context, wire *upgrade.WireRequest) (upgrade.Conn, error) {
	uri := wire.URI()
	addr := hostPort(uri, wire.Secure())
	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %v", addr)
	}
	if !wire.Secure() {
		return &conn{Conn: raw, reader: bufio.NewReaderSize(raw, readBufferSize)}, nil
	}
	tlsConn := tls.Client(raw, t.clientTLSConfig(uri.Hostname()))
	if err = tlsConn.HandshakeContext(ctx); err != nil {
		_ = raw.Close() //nolint:errcheck // Already failing.

		return nil, errors.Wrapf(err, "tls handshake with %v failed", addr)
	}

	return &conn{Conn: tlsConn, reader: bufio.NewReaderSize(tlsConn, readBufferSize), encrypted: true}, nil
}

func (t *Transport) clientTLSConfig(serverName string) *tls.Config {
	var tlsConfig *tls.Config
	if t.tlsConfig != nil {
		tlsConfig = t.tlsConfig.Clone()
	} else {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12} //nolint:gosec // Callers decide via InsecureSkipVerify.
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = serverName
	}
	if t.cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}
	tlsConfig.NextProtos = []string{"http/1.1"}

	return tlsConfig
}

func hostPort(uri *url.URL, secure bool) string {
	port := uri.Port()
	if port == "" {
		port = defaultPort
		if secure {
			port = defaultSecurePort
		}
	}

	return net.JoinHostPort(uri.Hostname(), port)
}

func (c *conn) Encrypted() bool {
	return c.encrypted
}

// RoundTrip writes the request line and headers and reads the response head.
// Cancelling ctx moves the connection deadline to the past, which aborts any pending I/O.
func (c *conn) RoundTrip(ctx context.Context, wire *upgrade.WireRequest) (*http.Response, error) {
	defer upgrade.AbortOnDone(ctx, c.Conn)()
	writer := bufio.NewWriter(c.Conn)
	if err := writeRequest(writer, wire); err != nil {
		return nil, errors.Wrap(firstErr(ctx.Err(), err), "failed to send upgrade request")
	}
	resp, err := http.ReadResponse(c.reader, &http.Request{Method: wire.Method(), URL: wire.URI()})
	if err != nil {
		return nil, errors.Wrap(firstErr(ctx.Err(), err), "failed to read upgrade response")
	}

	return resp, nil
}

func writeRequest(writer *bufio.Writer, wire *upgrade.WireRequest) error {
	header := wire.Header()
	host := header.Get(upgrade.HeaderHost)
	if host == "" {
		host = wire.Host()
	}
	if _, err := writer.WriteString(wire.Method() + " " + wire.RequestURI() + " " + wire.Version().String() + "\r\n"); err != nil {
		return errors.Wrap(err, "request line")
	}
	if _, err := writer.WriteString(upgrade.HeaderHost + ": " + host + "\r\n"); err != nil {
		return errors.Wrap(err, "host header")
	}
	if err := header.WriteSubset(writer, map[string]bool{upgrade.HeaderHost: true}); err != nil {
		return errors.Wrap(err, "headers")
	}
	if _, err := writer.WriteString("\r\n"); err != nil {
		return errors.Wrap(err, "end of headers")
	}

	return errors.Wrap(writer.Flush(), "flush")
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// Stream keeps the bytes the server sent right after the response head.
func (c *conn) Stream() net.Conn {
	return &bufferedConn{Conn: c.Conn, reader: c.reader}
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	return b.reader.Read(p) //nolint:wrapcheck // Proxy.
}
