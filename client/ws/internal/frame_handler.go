// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/adapters"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/statistics"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
	"github.com/ice-blockchain/wsconnect/log"
)

func (f SessionBuilderFunc) Build(sctx *SessionContext) (Listener, error) {
	return f(sctx)
}

// NewFrameHandlerFactory uses builder for every session, a nil builder discards inbound messages.
func NewFrameHandlerFactory(cfg *config.Config, builder SessionBuilder, stats statistics.Statistics) *FrameHandlerFactory {
	return &FrameHandlerFactory{cfg: cfg, builder: builder, stats: stats}
}

// CreateSession binds the negotiated connection to an application session and resolves fut with it.
// Inbound messages are delivered only after fut is resolved.
func (f *FrameHandlerFactory) CreateSession(
	ctx context.Context, resp *http.Response, conn upgrade.Conn, request *upgrade.RequestProjection, fut *SessionFuture,
) (*FrameHandler, error) {
	endpoint, _ := request.Endpoint()
	compression, err := negotiatedCompression(resp.Header)
	if err != nil {
		err = errors.Mark(errors.Wrap(err, "unusable extension negotiation"), upgrade.ErrHandshakeRejected)
		if clErr := conn.Close(); clErr != nil {
			log.Debug("failed to close transport", log.String("error", clErr.Error()))
		}
		fut.Fail(err)

		return nil, err
	}
	wsocket, sessionCtx := adapters.NewWebSocketAdapter(ctx, conn.Stream(), adapters.Options{
		Compression:    compression,
		WriteTimeout:   f.cfg.WriteTimeout,
		ReadTimeout:    f.cfg.ReadTimeout,
		MaxMessageSize: f.cfg.MaxMessageSize,
	})
	session := &Session{
		ctx:      sessionCtx,
		ws:       wsocket,
		conn:     conn,
		request:  request,
		response: upgrade.NewResponseProjection(resp),
		stats:    f.stats,
		endpoint: endpoint,
		done:     make(chan struct{}),
		listener: noopListener{},
	}
	if f.builder != nil {
		var listener Listener
		listener, err = f.builder.Build(&SessionContext{Request: session.request, Response: session.response, Endpoint: endpoint})
		if err == nil && listener == nil {
			err = errors.New("session builder returned no listener")
		}
		if err != nil {
			err = errors.Mark(errors.Wrap(err, "application session setup failed"), upgrade.ErrSessionSetupFailure)
			log.Error(errors.Wrap(session.shutdown(ws.StatusInternalServerError, "session setup failed"), "failed to close rejected session"))
			close(session.done)
			fut.Fail(err)

			return nil, err
		}
		session.listener = listener
	}
	if !fut.Resolve(session) {
		log.Error(errors.Wrap(session.shutdown(ws.StatusGoingAway, ""), "failed to close orphaned session"))
		close(session.done)

		return nil, errors.AssertionFailedf("session future completed twice")
	}
	handler := &FrameHandler{session: session}
	go handler.serve()

	return handler, nil
}

func (h *FrameHandler) Session() *Session {
	return h.session
}

func (h *FrameHandler) serve() {
	s := h.session
	defer close(s.done)
	var err error
	for {
		opCode, data, rErr := s.ws.ReadMessage()
		if rErr != nil {
			err = rErr

			break
		}
		s.stats.MessageReceived(len(data))
		s.listener.OnMessage(s.ctx, s, opCode, data)
	}
	closedLocally := s.ws.Closed()
	if clErr := s.shutdown(ws.StatusNormalClosure, ""); clErr != nil {
		log.Debug("failed to close session", log.String("error", clErr.Error()))
	}
	if closedLocally || adapters.IsNormalClosure(err) {
		err = nil
	} else {
		log.Error(errors.Wrapf(err, "websocket session with %v ended", s.RemoteAddr()))
	}
	s.listener.OnClose(s, err)
}

func (noopListener) OnMessage(context.Context, *Session, ws.OpCode, []byte) {}

func (noopListener) OnClose(*Session, error) {}
