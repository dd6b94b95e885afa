// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

type (
	// Options drive how the echo server negotiates.
	Options struct {
		// ResponseHeader is added to every 101 response, e.g. Set-Cookie.
		ResponseHeader http.Header
		// Protocols are the sub-protocols the server supports, the first offered one wins.
		Protocols []string
		// Extensions are the extension names the server accepts, parameters are dropped.
		Extensions []string
		// RejectStatus answers every upgrade with this status when set.
		RejectStatus int
		// Compress accepts permessage-deflate without context takeover and echoes compressed.
		Compress bool
	}
	// Server echoes every data message back. The text message `close` makes it close the session normally.
	Server struct {
		*httptest.Server
		conns        map[net.Conn]struct{}
		requests     []*http.Request
		opts         Options
		wg           sync.WaitGroup
		connsMx      sync.Mutex
		requestsMx   sync.Mutex
		ReaderExited atomic.Uint64
		// CompressedReceived counts data messages that arrived compressed.
		CompressedReceived atomic.Uint64
	}
)

const (
	Path         = "/ws"
	CloseCommand = "close"
	CloseReason  = "bye"
)
