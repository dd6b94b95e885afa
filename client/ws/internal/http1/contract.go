// SPDX-License-Identifier: ice License 1.0

package http1

import (
	"bufio"
	"crypto/tls"
	"net"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
)

type (
	// Transport dials plain TCP for ws:// and TLS for wss:// targets.
	Transport struct {
		cfg       *config.Config
		tlsConfig *tls.Config
	}
)

type (
	conn struct {
		net.Conn
		reader    *bufio.Reader
		encrypted bool
	}
	bufferedConn struct {
		net.Conn
		reader *bufio.Reader
	}
)

const (
	defaultPort       = "80"
	defaultSecurePort = "443"
	readBufferSize    = 4096
)
