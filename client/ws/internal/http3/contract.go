// SPDX-License-Identifier: ice License 1.0

package http3

import (
	"crypto/tls"
	"net"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
)

type (
	// Transport runs the upgrade as an extended CONNECT over a fresh QUIC connection.
	Transport struct {
		cfg       *config.Config
		tlsConfig *tls.Config
	}
)

var ErrExtendedConnectDisabled = errors.New("server did not enable extended CONNECT")

type (
	conn struct {
		connection quic.Connection
		client     *http3.ClientConn
		stream     net.Conn
	}
	// streamConn exposes the CONNECT request stream as the upgraded net.Conn.
	// Reads and writes go through the http3 stream, so they are carried in DATA frames.
	streamConn struct {
		quic.Stream
		local  net.Addr
		remote net.Addr
	}
)

const (
	defaultPort     = "443"
	keepAlivePeriod = 15 * stdlibtime.Second
	maxIdleTimeout  = 60 * stdlibtime.Second
)
