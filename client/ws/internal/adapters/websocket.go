// SPDX-License-Identifier: ice License 1.0

package adapters

import (
	"compress/flate"
	"context"
	"io"
	"net"
	"strings"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsflate"
	"github.com/gobwas/ws/wsutil"
	"github.com/hashicorp/go-multierror"
)

// NewWebSocketAdapter wraps an already upgraded connection.
// The returned context is cancelled once the adapter is closed.
func NewWebSocketAdapter(ctx context.Context, conn net.Conn, opts Options) (*WebsocketAdapter, context.Context) {
	wsocket := &WebsocketAdapter{
		conn:         conn,
		opts:         opts,
		closeChannel: make(chan struct{}),
	}
	wsocket.reader = &wsutil.Reader{
		Source:         conn,
		State:          ws.StateClientSide,
		CheckUTF8:      opts.Compression == nil,
		MaxFrameSize:   opts.MaxMessageSize,
		OnIntermediate: wsocket.handleControl,
	}
	if opts.Compression != nil {
		wsocket.reader.Extensions = []wsutil.RecvExtension{&wsocket.received}
		wsocket.inflater = wsflate.NewReader(nil, func(r io.Reader) wsflate.Decompressor {
			return flate.NewReader(r)
		})
	}

	return wsocket, NewCustomCancelContext(ctx, wsocket.closeChannel)
}

func (w *WebsocketAdapter) WriteMessage(opCode ws.OpCode, data []byte) error {
	if w.Closed() {
		return ErrClosed
	}
	if err := w.writeError(); isConnClosedErr(err) {
		return errors.CombineErrors(ErrClosed, w.Close())
	}

	if w.opts.Compression == nil || !opCode.IsData() {
		return errors.Wrapf(w.write(func(conn net.Conn) error {
			return wsutil.WriteClientMessage(conn, opCode, data)
		}), "failed to write %v message", opCode)
	}
	frame, err := wsflate.CompressFrame(ws.NewFrame(opCode, true, data))
	if err != nil {
		return errors.Wrapf(err, "failed to compress %v message", opCode)
	}
	frame = ws.MaskFrameInPlace(frame)

	return errors.Wrapf(w.write(func(conn net.Conn) error {
		return ws.WriteFrame(conn, frame)
	}), "failed to write compressed %v message", opCode)
}

func (w *WebsocketAdapter) Ping(payload []byte) error {
	return w.WriteMessage(ws.OpPing, payload)
}

func (w *WebsocketAdapter) write(do func(conn net.Conn) error) error {
	w.writeMx.Lock()
	defer w.writeMx.Unlock()
	if w.opts.WriteTimeout > 0 {
		_ = w.conn.SetWriteDeadline(stdlibtime.Now().Add(w.opts.WriteTimeout)) //nolint:errcheck // .
	}
	err := do(w.conn)
	if err != nil {
		w.wrErrMx.Lock()
		w.wrErr = err
		w.wrErrMx.Unlock()
	}

	return err //nolint:wrapcheck // Callers wrap it.
}

func (w *WebsocketAdapter) writeError() error {
	w.wrErrMx.Lock()
	defer w.wrErrMx.Unlock()

	return w.wrErr
}

// ReadMessage returns the next data message, answering control frames on the way.
// Compressed messages are inflated before the size limit and the UTF-8 check apply,
// so with compression on text is validated here rather than by the frame reader.
// A close from the server is reported as wsutil.ClosedError.
func (w *WebsocketAdapter) ReadMessage() (opCode ws.OpCode, data []byte, err error) {
	for {
		if w.opts.ReadTimeout > 0 {
			_ = w.conn.SetReadDeadline(stdlibtime.Now().Add(w.opts.ReadTimeout)) //nolint:errcheck // .
		}
		hdr, nErr := w.reader.NextFrame()
		if nErr != nil {
			return 0, nil, errors.Wrap(nErr, "failed to read next frame")
		}
		if hdr.OpCode.IsControl() {
			if cErr := w.handleControl(hdr, w.reader); cErr != nil {
				return 0, nil, cErr
			}

			continue
		}
		var source io.Reader = w.reader
		compressed := w.inflater != nil && w.received.IsCompressed()
		if compressed {
			w.inflater.Reset(w.reader)
			source = w.inflater
		}
		if w.opts.MaxMessageSize > 0 {
			source = io.LimitReader(source, w.opts.MaxMessageSize+1)
		}
		var text *wsutil.UTF8Reader
		if w.opts.Compression != nil && hdr.OpCode == ws.OpText {
			text = &wsutil.UTF8Reader{Source: source}
			source = text
		}
		if data, err = io.ReadAll(source); err != nil {
			return 0, nil, errors.Wrapf(err, "failed to read %v message", hdr.OpCode)
		}
		if w.opts.MaxMessageSize > 0 && int64(len(data)) > w.opts.MaxMessageSize {
			return 0, nil, errors.Wrapf(ErrMessageTooLarge, "message exceeds %v bytes", w.opts.MaxMessageSize)
		}
		if text != nil && !text.Valid() {
			return 0, nil, errors.Wrap(wsutil.ErrInvalidUTF8, "text message")
		}

		return hdr.OpCode, data, nil
	}
}

func (w *WebsocketAdapter) handleControl(hdr ws.Header, payload io.Reader) error {
	var dst io.Writer = controlWriter{w: w}
	if hdr.OpCode == ws.OpClose && w.closeSent.Load() {
		dst = io.Discard
	}
	err := wsutil.ControlFrameHandler(dst, ws.StateClientSide)(hdr, payload)
	if hdr.OpCode == ws.OpClose {
		w.closeSent.Store(true)
	}
	var closedErr wsutil.ClosedError
	if errors.As(err, &closedErr) {
		return closedErr
	}

	return errors.Wrapf(err, "failed to handle %v frame", hdr.OpCode)
}

// Write sends exactly one control frame reply per call.
func (c controlWriter) Write(p []byte) (int, error) {
	var n int
	err := c.w.write(func(conn net.Conn) (wErr error) {
		n, wErr = conn.Write(p)

		return wErr
	})

	return n, err
}

func (w *WebsocketAdapter) Closed() bool {
	w.closeMx.Lock()
	closed := w.closed
	w.closeMx.Unlock()

	return closed
}

func (w *WebsocketAdapter) Close() error {
	return w.CloseWithStatus(ws.StatusNormalClosure, "")
}

// CloseWithStatus sends a close frame unless the server closed first, then drops the connection.
func (w *WebsocketAdapter) CloseWithStatus(code ws.StatusCode, reason string) error {
	w.closeMx.Lock()
	if w.closed {
		w.closeMx.Unlock()

		return nil
	}
	w.closed = true
	close(w.closeChannel)
	w.closeMx.Unlock()
	var result *multierror.Error
	if !w.closeSent.Swap(true) && !isConnClosedErr(w.writeError()) {
		frame := ws.MaskFrameInPlace(ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason)))
		if err := w.write(func(conn net.Conn) error { return ws.WriteFrame(conn, frame) }); err != nil && !isConnClosedErr(err) {
			result = multierror.Append(result, errors.Wrapf(err, "failed to send close frame %v", code))
		}
	}
	if err := w.conn.Close(); err != nil && !isConnClosedErr(err) {
		result = multierror.Append(result, errors.Wrap(err, "failed to close connection"))
	}

	return result.ErrorOrNil() //nolint:wrapcheck // Already wrapped.
}

func (w *WebsocketAdapter) LocalAddr() net.Addr {
	return w.conn.LocalAddr()
}

func (w *WebsocketAdapter) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}

func isConnClosedErr(err error) bool {
	return err != nil &&
		(errors.Is(err, net.ErrClosed) ||
			errors.Is(err, io.EOF) ||
			errors.Is(err, io.ErrClosedPipe) ||
			strings.Contains(err.Error(), "use of closed network connection") ||
			strings.Contains(err.Error(), "broken pipe") ||
			strings.Contains(err.Error(), "connection reset by peer"))
}

// IsNormalClosure reports whether err only means the peer or we closed the session on purpose.
func IsNormalClosure(err error) bool {
	var closedErr wsutil.ClosedError
	if errors.As(err, &closedErr) {
		return closedErr.Code == ws.StatusNormalClosure || closedErr.Code == ws.StatusGoingAway || closedErr.Code == ws.StatusNoStatusRcvd
	}

	return isConnClosedErr(err)
}
