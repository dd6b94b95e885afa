// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	stdlibtime "time"

	"github.com/cockroachdb/errors"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/future"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/statistics"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
	"github.com/ice-blockchain/wsconnect/log"
)

// NewHandshaker wires transports by the major http version they serve.
func NewHandshaker(cfg *config.Config, transports map[int]upgrade.Transport, factory *FrameHandlerFactory, stats statistics.Statistics) *Handshaker {
	return &Handshaker{cfg: cfg, transports: transports, factory: factory, stats: stats}
}

// Initiate runs one upgrade attempt in the background, the returned future completes exactly once.
// ctx bounds the handshake only, the session outlives it.
func (h *Handshaker) Initiate(ctx context.Context, wire *upgrade.WireRequest) *SessionFuture {
	a := &attempt{wire: wire, fut: future.New[*Session](), started: stdlibtime.Now()}
	h.stats.HandshakeStarted()
	if wire.Frozen() {
		h.fail(a, errors.Wrap(upgrade.ErrMalformedRequest, "wire request was already sent"))

		return a.fut
	}
	go h.run(ctx, a)

	return a.fut
}

//nolint:funlen // Linear state machine.
func (h *Handshaker) run(ctx context.Context, a *attempt) {
	transport, found := h.transports[a.wire.Version().Major()]
	if !found {
		h.fail(a, errors.Wrapf(upgrade.ErrTransportFailure, "no transport for %v", a.wire.Version()))

		return
	}
	hsCtx, cancel := ctx, context.CancelFunc(func() {})
	if h.cfg.HandshakeTimeout > 0 {
		hsCtx, cancel = context.WithTimeout(ctx, h.cfg.HandshakeTimeout)
	}
	defer cancel()
	h.applyDefaults(a.wire)
	conn, err := transport.Open(hsCtx, a.wire)
	if err != nil {
		h.fail(a, errors.Mark(errors.Wrapf(err, "failed to open %v transport to %v", a.wire.Version(), a.wire.Host()), upgrade.ErrTransportFailure))

		return
	}
	a.wire.Freeze()
	a.transition(StateBuilding, StateSent)
	endpoint := upgrade.Endpoint{LocalAddr: conn.LocalAddr(), RemoteAddr: conn.RemoteAddr(), Encrypted: conn.Encrypted()}
	if err = a.wire.BindEndpoint(endpoint); err != nil {
		h.failAndClose(a, conn, errors.Mark(err, upgrade.ErrTransportFailure))

		return
	}
	a.transition(StateSent, StateEndpointBound)
	resp, err := conn.RoundTrip(hsCtx, a.wire)
	if err != nil {
		h.failAndClose(a, conn, errors.Mark(errors.Wrapf(err, "upgrade exchange with %v failed", endpoint.RemoteAddr), upgrade.ErrTransportFailure))

		return
	}
	if err = validateResponse(a.wire, resp); err != nil {
		h.failAndClose(a, conn, err)

		return
	}
	a.transition(StateEndpointBound, StateNegotiated)
	if _, err = h.factory.CreateSession(context.WithoutCancel(ctx), resp, conn, upgrade.NewRequestProjection(a.wire), a.fut); err != nil {
		h.fail(a, err)

		return
	}
	a.transition(StateNegotiated, StateSessionReady)
	latency := stdlibtime.Since(a.started)
	h.stats.HandshakeSucceeded(a.wire.Version().String(), latency)
	log.Debug("websocket handshake succeeded",
		log.String("target", a.wire.URI().String()),
		log.String("remote", endpoint.RemoteAddr.String()),
		log.Any("latency", latency))
}

// applyDefaults fills the configured Origin and User-Agent unless the caller set them.
func (h *Handshaker) applyDefaults(wire *upgrade.WireRequest) {
	header := wire.Header()
	if h.cfg.Origin != "" && header.Get(upgrade.HeaderOrigin) == "" {
		header.Set(upgrade.HeaderOrigin, h.cfg.Origin)
	}
	if h.cfg.UserAgent != "" && header.Get(upgrade.HeaderUserAgent) == "" {
		header.Set(upgrade.HeaderUserAgent, h.cfg.UserAgent)
	}
}

func (h *Handshaker) failAndClose(a *attempt, conn upgrade.Conn, err error) {
	if clErr := conn.Close(); clErr != nil {
		log.Debug("failed to close transport after handshake failure", log.String("error", clErr.Error()))
	}
	h.fail(a, err)
}

func (h *Handshaker) fail(a *attempt, err error) {
	state := a.State()
	a.state.Store(int32(StateFailed))
	a.fut.Fail(err)
	h.stats.HandshakeFailed(errorKind(err), stdlibtime.Since(a.started))
	log.Error(errors.Wrapf(err, "websocket handshake with %v failed in state %v", a.wire.Host(), state))
}

func (a *attempt) transition(from, to State) {
	if !a.state.CompareAndSwap(int32(from), int32(to)) {
		log.Panic(errors.AssertionFailedf("invalid handshake transition %v -> %v, current %v", from, to, a.State()))
	}
}

func (a *attempt) State() State {
	return State(a.state.Load())
}

func (s State) String() string {
	if name, found := stateNames[s]; found {
		return name
	}

	return "UNKNOWN"
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, upgrade.ErrMalformedRequest):
		return "malformed_request"
	case errors.Is(err, upgrade.ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, upgrade.ErrHandshakeRejected):
		return "handshake_rejected"
	case errors.Is(err, upgrade.ErrSessionSetupFailure):
		return "session_setup_failure"
	default:
		return "unknown"
	}
}
