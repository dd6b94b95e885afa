// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"net/http"
	"sync/atomic"
	stdlibtime "time"

	"github.com/gobwas/ws"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/adapters"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/future"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/statistics"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

type (
	// SessionBuilder creates the application side of a session once the upgrade is negotiated.
	// Returning an error fails the handshake even though the server already accepted it.
	SessionBuilder interface {
		Build(sctx *SessionContext) (Listener, error)
	}
	SessionBuilderFunc func(sctx *SessionContext) (Listener, error)
	Listener interface {
		OnMessage(ctx context.Context, session *Session, opCode ws.OpCode, data []byte)
		// OnClose is called once, err is nil for a normal closure.
		OnClose(session *Session, err error)
	}
	SessionContext struct {
		Request  *upgrade.RequestProjection
		Response *upgrade.ResponseProjection
		Endpoint upgrade.Endpoint
	}
	Session struct {
		ctx      context.Context //nolint:containedctx // Session lifetime.
		ws       *adapters.WebsocketAdapter
		conn     upgrade.Conn
		listener Listener
		request  *upgrade.RequestProjection
		response *upgrade.ResponseProjection
		stats    statistics.Statistics
		done     chan struct{}
		endpoint upgrade.Endpoint
	}
	SessionFuture = future.Future[*Session]
	// FrameHandler owns the read side of one session.
	FrameHandler struct {
		session *Session
	}
	FrameHandlerFactory struct {
		builder SessionBuilder
		cfg     *config.Config
		stats   statistics.Statistics
	}
	Handshaker struct {
		transports map[int]upgrade.Transport
		factory    *FrameHandlerFactory
		cfg        *config.Config
		stats      statistics.Statistics
	}
	// HandshakeRejectedError carries what the server answered, it matches upgrade.ErrHandshakeRejected.
	HandshakeRejectedError struct {
		Header     http.Header
		Status     string
		Reason     string
		StatusCode int
	}
	State int32
)

const (
	StateBuilding State = iota
	StateSent
	StateEndpointBound
	StateNegotiated
	StateSessionReady
	StateFailed
)

const (
	websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	// compress/flate always deflates with a 32KiB window.
	maxWindowBits = 15
)

type (
	attempt struct {
		wire    *upgrade.WireRequest
		fut     *SessionFuture
		started stdlibtime.Time
		state   atomic.Int32
	}
	noopListener struct{}
)

//nolint:gochecknoglobals // Read-only lookup.
var stateNames = map[State]string{
	StateBuilding:      "BUILDING",
	StateSent:          "SENT",
	StateEndpointBound: "ENDPOINT_BOUND",
	StateNegotiated:    "NEGOTIATED",
	StateSessionReady:  "SESSION_READY",
	StateFailed:        "FAILED",
}
