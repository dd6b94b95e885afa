// SPDX-License-Identifier: ice License 1.0

package fixture

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gobwas/httphead"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"

	"github.com/ice-blockchain/wsconnect/log"
)

//nolint:gochecknoinits // Quiet router for tests.
func init() {
	gin.SetMode(gin.TestMode)
}

func NewTestServer(opts Options) *Server {
	s := newServer(opts)
	s.Server.Start()

	return s
}

func NewTLSTestServer(opts Options) *Server {
	s := newServer(opts)
	s.Server.StartTLS()

	return s
}

func newServer(opts Options) *Server {
	s := &Server{opts: opts, conns: make(map[net.Conn]struct{})}
	router := gin.New()
	router.GET(Path, s.handleUpgrade)
	s.Server = httptest.NewUnstartedServer(router)

	return s
}

// URL is the websocket url of path on this server.
func (s *Server) URL(path string) string {
	if s.Server.TLS != nil {
		return strings.Replace(s.Server.URL, "https://", "wss://", 1) + path
	}

	return strings.Replace(s.Server.URL, "http://", "ws://", 1) + path
}

// ClientTLSConfig trusts the test certificate.
func (s *Server) ClientTLSConfig() *tls.Config {
	return s.Server.Client().Transport.(*http.Transport).TLSClientConfig.Clone() //nolint:forcetypeassert // Set by httptest.
}

// Requests returns copies of every upgrade request received so far.
func (s *Server) Requests() []*http.Request {
	s.requestsMx.Lock()
	defer s.requestsMx.Unlock()

	return slices.Clone(s.requests)
}

func (s *Server) handleUpgrade(c *gin.Context) {
	s.requestsMx.Lock()
	s.requests = append(s.requests, c.Request.Clone(context.Background()))
	s.requestsMx.Unlock()
	if s.opts.RejectStatus != 0 {
		c.String(s.opts.RejectStatus, "upgrade rejected")

		return
	}
	deflate := &wsflate.Extension{Parameters: wsflate.DefaultParameters}
	upgrader := ws.HTTPUpgrader{
		Header: s.opts.ResponseHeader,
		Protocol: func(protocol string) bool {
			return slices.Contains(s.opts.Protocols, protocol)
		},
		Negotiate: func(option httphead.Option) (httphead.Option, error) {
			if s.opts.Compress && string(option.Name) == wsflate.ExtensionName {
				return deflate.Negotiate(option) //nolint:wrapcheck // Reported by the upgrader.
			}
			if slices.Contains(s.opts.Extensions, string(option.Name)) {
				return httphead.Option{Name: option.Name}, nil
			}

			return httphead.Option{}, nil
		},
	}
	conn, rw, _, err := upgrader.Upgrade(c.Request, c.Writer)
	if err != nil {
		log.Error(errors.Wrap(err, "fixture upgrade failed"))
		if conn != nil {
			_ = conn.Close() //nolint:errcheck // .
		}

		return
	}
	s.connsMx.Lock()
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.connsMx.Unlock()
	_, compressed := deflate.Accepted()
	go s.echo(conn, rw.Reader, compressed)
}

func (s *Server) echo(conn net.Conn, reader io.Reader, compressed bool) {
	defer func() {
		_ = conn.Close() //nolint:errcheck // .
		s.connsMx.Lock()
		delete(s.conns, conn)
		s.connsMx.Unlock()
		s.ReaderExited.Add(1)
		s.wg.Done()
	}()
	if compressed {
		s.echoCompressed(conn, reader)

		return
	}
	rw := struct {
		io.Reader
		io.Writer
	}{reader, conn}
	for {
		data, opCode, err := wsutil.ReadClientData(rw)
		if err != nil {
			return
		}
		if opCode == ws.OpText && string(data) == CloseCommand {
			frame := ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, CloseReason))
			_ = ws.WriteFrame(conn, frame) //nolint:errcheck // Peer may be gone.
			_, _, _ = wsutil.ReadClientData(rw) //nolint:dogsled // Waits for the close reply.

			return
		}
		if err = wsutil.WriteServerMessage(conn, opCode, data); err != nil {
			return
		}
	}
}

// echoCompressed expects every client message in a single frame.
func (s *Server) echoCompressed(conn net.Conn, reader io.Reader) {
	for {
		frame, err := ws.ReadFrame(reader)
		if err != nil {
			return
		}
		frame = ws.UnmaskFrameInPlace(frame)
		switch op := frame.Header.OpCode; {
		case op == ws.OpClose:
			_ = ws.WriteFrame(conn, ws.NewCloseFrame(frame.Payload)) //nolint:errcheck // Peer may be gone.

			return
		case op == ws.OpPing:
			if err = ws.WriteFrame(conn, ws.NewPongFrame(frame.Payload)); err != nil {
				return
			}

			continue
		case op.IsControl():
			continue
		}
		if ok, cErr := wsflate.IsCompressed(frame.Header); cErr != nil {
			return
		} else if ok {
			s.CompressedReceived.Add(1)
			if frame, err = wsflate.DecompressFrame(frame); err != nil {
				log.Error(errors.Wrap(err, "fixture failed to inflate"))

				return
			}
		}
		if frame.Header.OpCode == ws.OpText && string(frame.Payload) == CloseCommand {
			_ = ws.WriteFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, CloseReason))) //nolint:errcheck // .
			_, _ = ws.ReadFrame(reader) //nolint:errcheck // Waits for the close reply.

			return
		}
		if frame, err = wsflate.CompressFrame(ws.NewFrame(frame.Header.OpCode, true, frame.Payload)); err != nil {
			return
		}
		if err = ws.WriteFrame(conn, frame); err != nil {
			return
		}
	}
}

// Close also drops every upgraded connection and waits for the echo loops to exit.
func (s *Server) Close() {
	s.Server.Close()
	s.connsMx.Lock()
	for conn := range s.conns {
		_ = conn.Close() //nolint:errcheck // .
	}
	s.connsMx.Unlock()
	s.wg.Wait()
}
