// SPDX-License-Identifier: ice License 1.0

package adapters

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"
)

type (
	WSReader interface {
		ReadMessage() (opCode ws.OpCode, data []byte, err error)
		io.Closer
	}
	WSWriter interface {
		WriteMessage(opCode ws.OpCode, data []byte) error
		io.Closer
	}
	WS interface {
		WSWriter
		WSReader
		CloseWithStatus(code ws.StatusCode, reason string) error
		Ping(payload []byte) error
		Closed() bool
		LocalAddr() net.Addr
		RemoteAddr() net.Addr
	}
	Options struct {
		// Compression enables permessage-deflate with the negotiated parameters, nil means none.
		Compression    *wsflate.Parameters
		WriteTimeout   stdlibtime.Duration
		ReadTimeout    stdlibtime.Duration
		MaxMessageSize int64
	}
	// WebsocketAdapter is the client end of an upgraded connection: it masks everything it writes
	// and answers pings and closes coming from the server.
	WebsocketAdapter struct {
		conn         net.Conn
		reader       *wsutil.Reader
		inflater     *wsflate.Reader
		received     wsflate.MessageState
		closeChannel chan struct{}
		wrErr        error
		opts         Options
		wrErrMx      sync.Mutex
		writeMx      sync.Mutex
		closeMx      sync.Mutex
		closed       bool
		closeSent    atomic.Bool
	}
)

var (
	ErrClosed          = errors.New("websocket is closed")
	ErrMessageTooLarge = errors.New("message too large")
)

type (
	customCancelContext struct {
		context.Context //nolint:containedctx // Custom implementation.
		ch              <-chan struct{}
	}
	controlWriter struct {
		w *WebsocketAdapter
	}
)
