// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/hashicorp/go-multierror"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

func (s *Session) WriteMessage(opCode ws.OpCode, data []byte) error {
	if err := s.ws.WriteMessage(opCode, data); err != nil {
		return errors.Wrapf(err, "failed to write to %v", s.RemoteAddr())
	}
	s.stats.MessageSent(len(data))

	return nil
}

func (s *Session) WriteText(text string) error {
	return s.WriteMessage(ws.OpText, []byte(text))
}

func (s *Session) WriteBinary(data []byte) error {
	return s.WriteMessage(ws.OpBinary, data)
}

func (s *Session) Ping(payload []byte) error {
	return errors.Wrap(s.ws.Ping(payload), "failed to ping")
}

func (s *Session) Close() error {
	return s.CloseWithStatus(ws.StatusNormalClosure, "")
}

func (s *Session) CloseWithStatus(code ws.StatusCode, reason string) error {
	return s.shutdown(code, reason)
}

func (s *Session) shutdown(code ws.StatusCode, reason string) error {
	var result *multierror.Error
	if err := s.ws.CloseWithStatus(code, reason); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		result = multierror.Append(result, errors.Wrap(err, "failed to close transport"))
	}

	return result.ErrorOrNil() //nolint:wrapcheck // Already wrapped.
}

// Done is closed once the session ended and the listener was notified.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) UpgradeRequest() *upgrade.RequestProjection {
	return s.request
}

func (s *Session) UpgradeResponse() *upgrade.ResponseProjection {
	return s.response
}

func (s *Session) SubProtocol() string {
	return s.response.AcceptedSubProtocol()
}

func (s *Session) LocalAddr() net.Addr {
	return s.endpoint.LocalAddr
}

func (s *Session) RemoteAddr() net.Addr {
	return s.endpoint.RemoteAddr
}

func (s *Session) IsSecure() bool {
	return s.endpoint.Encrypted
}
