// SPDX-License-Identifier: ice License 1.0

package http3

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	cws "github.com/ice-blockchain/wsconnect/client/ws/internal/connect-ws-upgrader"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

func New(cfg *config.Config, tlsConfig *tls.Config) *Transport {
	return &Transport{cfg: cfg, tlsConfig: tlsConfig}
}

func (t *Transport) Open(ctx context.Context, wire *upgrade.WireRequest) (upgrade.Conn, error) {
	uri := wire.URI()
	port := uri.Port()
	if port == "" {
		port = defaultPort
	}
	addr := net.JoinHostPort(uri.Hostname(), port)
	quicConfig := &quic.Config{
		KeepAlivePeriod: keepAlivePeriod,
		MaxIdleTimeout:  maxIdleTimeout,
	}
	if t.cfg.DialTimeout > 0 {
		quicConfig.HandshakeIdleTimeout = t.cfg.DialTimeout
	}
	connection, err := quic.DialAddr(ctx, addr, t.clientTLSConfig(uri.Hostname()), quicConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial quic %v", addr)
	}

	return &conn{connection: connection, client: new(http3.Transport).NewClientConn(connection)}, nil
}

func (t *Transport) clientTLSConfig(serverName string) *tls.Config {
	var tlsConfig *tls.Config
	if t.tlsConfig != nil {
		tlsConfig = t.tlsConfig.Clone()
	} else {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = serverName
	}
	if t.cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}
	tlsConfig.NextProtos = []string{http3.NextProtoH3}

	return tlsConfig
}

func (c *conn) LocalAddr() net.Addr {
	return c.connection.LocalAddr()
}

func (c *conn) RemoteAddr() net.Addr {
	return c.connection.RemoteAddr()
}

// Encrypted is always true, QUIC has no plaintext mode.
func (*conn) Encrypted() bool {
	return true
}

func (c *conn) RoundTrip(ctx context.Context, wire *upgrade.WireRequest) (*http.Response, error) {
	select {
	case <-c.client.ReceivedSettings():
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "no http3 settings received")
	}
	if !c.client.Settings().EnableExtendedConnect {
		return nil, errors.Wrapf(ErrExtendedConnectDisabled, "server %v", c.RemoteAddr())
	}
	stream, err := c.client.OpenRequestStream(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open request stream")
	}
	defer upgrade.AbortOnDone(ctx, stream)()
	if err = stream.SendRequestHeader(cws.NewConnectRequest(ctx, wire.URI(), wire.Host(), wire.Header())); err != nil {
		stream.CancelRead(quic.StreamErrorCode(http3.ErrCodeRequestCanceled))
		stream.CancelWrite(quic.StreamErrorCode(http3.ErrCodeRequestCanceled))

		return nil, errors.Wrap(err, "failed to send extended CONNECT")
	}
	resp, err := stream.ReadResponse()
	if err != nil {
		stream.CancelRead(quic.StreamErrorCode(http3.ErrCodeRequestCanceled))
		stream.CancelWrite(quic.StreamErrorCode(http3.ErrCodeRequestCanceled))
		if ctx.Err() != nil {
			err = ctx.Err()
		}

		return nil, errors.Wrap(err, "failed to read extended CONNECT response")
	}
	c.stream = &streamConn{Stream: stream, local: c.connection.LocalAddr(), remote: c.connection.RemoteAddr()}

	return resp, nil
}

func (c *conn) Stream() net.Conn {
	return c.stream
}

func (c *conn) Close() error {
	var result *multierror.Error
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "failed to close http3 stream"))
		}
	}
	if err := c.connection.CloseWithError(quic.ApplicationErrorCode(http3.ErrCodeNoError), ""); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "failed to close quic connection"))
	}

	return result.ErrorOrNil() //nolint:wrapcheck // Already wrapped.
}

// Close stops both directions, a stream the peer already cancelled counts as closed.
func (s *streamConn) Close() error {
	s.Stream.CancelRead(quic.StreamErrorCode(http3.ErrCodeNoError))
	if err := s.Stream.Close(); err != nil && !strings.Contains(err.Error(), "close called for canceled stream") {
		return errors.Wrap(err, "failed to close stream")
	}

	return nil
}

func (s *streamConn) LocalAddr() net.Addr {
	return s.local
}

func (s *streamConn) RemoteAddr() net.Addr {
	return s.remote
}
