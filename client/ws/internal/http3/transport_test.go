// SPDX-License-Identifier: ice License 1.0

package http3

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/stretchr/testify/require"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

type fakeStream struct {
	quic.Stream
	closeErr     error
	readCanceled quic.StreamErrorCode
	closed       bool
}

func (s *fakeStream) CancelRead(code quic.StreamErrorCode) {
	s.readCanceled = code
}

func (s *fakeStream) Close() error {
	s.closed = true

	return s.closeErr
}

func TestStreamConn(t *testing.T) {
	t.Parallel()
	local, remote := &net.UDPAddr{Port: 1}, &net.UDPAddr{Port: 443}
	stream := new(fakeStream)
	var upgraded net.Conn = &streamConn{Stream: stream, local: local, remote: remote}
	require.Equal(t, local, upgraded.LocalAddr())
	require.Equal(t, remote, upgraded.RemoteAddr())

	require.NoError(t, upgraded.Close())
	require.True(t, stream.closed)
	require.Equal(t, quic.StreamErrorCode(http3.ErrCodeNoError), stream.readCanceled)

	stream.closeErr = errors.New("close called for canceled stream 4")
	require.NoError(t, upgraded.Close())
	stream.closeErr = errors.New("boom")
	require.Error(t, upgraded.Close())
}

func TestClientTLSConfig(t *testing.T) {
	t.Parallel()
	base := &tls.Config{MinVersion: tls.VersionTLS13, NextProtos: []string{"h2"}}
	tlsConfig := New(&config.Config{InsecureSkipVerify: true}, base).clientTLSConfig("example.test")
	require.Equal(t, []string{http3.NextProtoH3}, tlsConfig.NextProtos)
	require.Equal(t, "example.test", tlsConfig.ServerName)
	require.True(t, tlsConfig.InsecureSkipVerify)
	require.Equal(t, []string{"h2"}, base.NextProtos)
	require.False(t, base.InsecureSkipVerify)

	tlsConfig = New(&config.Config{}, nil).clientTLSConfig("example.test")
	require.False(t, tlsConfig.InsecureSkipVerify)
	require.Equal(t, []string{http3.NextProtoH3}, tlsConfig.NextProtos)
}

func TestOpenNoServer(t *testing.T) {
	t.Parallel()
	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer udp.Close()
	wire, err := upgrade.NewWireRequest("wss://" + udp.LocalAddr().String() + "/")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 200*stdlibtime.Millisecond)
	defer cancel()

	_, err = New(&config.Config{DialTimeout: 100 * stdlibtime.Millisecond}, nil).Open(ctx, wire)
	require.Error(t, err)
}
