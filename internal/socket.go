package internal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
)

// Opcode matches the RFC 6455 frame opcodes.
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// CloseCode is a WebSocket close-status value carried in a close frame.
type CloseCode uint16

const (
	CloseNormalClosure   CloseCode = 1000
	CloseGoingAway       CloseCode = 1001
	CloseProtocolError   CloseCode = 1002
	CloseUnsupportedData CloseCode = 1003
	CloseNoStatus        CloseCode = 1005
	CloseMessageTooBig   CloseCode = 1009
	CloseInternalError   CloseCode = 1011
)

// openSockets counts sockets that have been created but not yet closed. Go
// has no destructor to assert the close-before-discard contract in, so tests
// use this registry as the leak check instead.
var openSockets atomic.Int64

// OpenSockets reports how many sockets are currently open process-wide.
func OpenSockets() int { return int(openSockets.Load()) }

// Socket is the handle for one established WebSocket connection. Sends may be
// issued from any goroutine; inbound callbacks are delivered one at a time on
// the connection's event loop. Callback setters replace the previous handler
// (last writer wins) and are meant to be called before traffic starts or from
// the delivery loop itself.
//
// A socket must be closed before it is discarded. Sends on a closed socket
// are silent no-ops.
type Socket struct {
	conn net.Conn
	br   *bufio.Reader
	loop *eventLoop

	writeMu sync.Mutex
	bw      *bufio.Writer

	maxFrameSize int

	// Fragment reassembly state, touched only by readLoop. fragOp is zero
	// when no message is in progress.
	fragOp  ws.OpCode
	fragBuf []byte

	cbMu        sync.RWMutex
	onText      func(string)
	onBinary    func([]byte)
	onError     func(error)
	onCloseCode func(CloseCode)

	closed     atomic.Bool
	closeOnce  sync.Once
	done       chan struct{}
	deregister func()
}

func newSocket(conn net.Conn, br *bufio.Reader, bw *bufio.Writer, maxFrameSize int, loop *eventLoop) *Socket {
	openSockets.Add(1)
	return &Socket{
		conn:         conn,
		br:           br,
		bw:           bw,
		loop:         loop,
		maxFrameSize: maxFrameSize,
		onText:       func(string) {},
		onBinary:     func([]byte) {},
		onError:      func(error) {},
		onCloseCode:  func(CloseCode) {},
		done:         make(chan struct{}),
	}
}

// OnText registers the handler for inbound text frames.
func (s *Socket) OnText(fn func(string)) {
	s.cbMu.Lock()
	s.onText = fn
	s.cbMu.Unlock()
}

// OnBinary registers the handler for inbound binary frames.
func (s *Socket) OnBinary(fn func([]byte)) {
	s.cbMu.Lock()
	s.onBinary = fn
	s.cbMu.Unlock()
}

// OnError registers the handler for decode and transport errors encountered
// after the upgrade.
func (s *Socket) OnError(fn func(error)) {
	s.cbMu.Lock()
	s.onError = fn
	s.cbMu.Unlock()
}

// OnCloseCode registers the handler invoked once with the peer's close code
// when a close frame arrives.
func (s *Socket) OnCloseCode(fn func(CloseCode)) {
	s.cbMu.Lock()
	s.onCloseCode = fn
	s.cbMu.Unlock()
}

// SendText writes text as a single final text frame.
func (s *Socket) SendText(text string) error {
	return s.Send([]byte(text), OpText, true)
}

// SendBinary writes data as a single final binary frame.
func (s *Socket) SendBinary(data []byte) error {
	return s.Send(data, OpBinary, true)
}

// Send is the lowest-level outbound primitive. Fragmented messages are built
// by sending fin=false on all fragments but the last and OpContinuation on
// every fragment after the first. The payload is masked with a fresh random
// key, as required for client-to-server frames; the caller's slice is not
// modified. Sending on a closed socket is a silent no-op.
func (s *Socket) Send(payload []byte, op Opcode, fin bool) error {
	if s.closed.Load() {
		return nil
	}
	return s.writeFrame(ws.OpCode(op), fin, payload)
}

func (s *Socket) writeFrame(op ws.OpCode, fin bool, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	// Re-checked under the mutex: a close racing with this send flips the
	// flag while holding writeMu, so nothing follows the close frame.
	if s.closed.Load() {
		return nil
	}
	return s.writeFrameLocked(op, fin, payload)
}

func (s *Socket) writeFrameLocked(op ws.OpCode, fin bool, payload []byte) error {
	mask := frameMask()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	ws.Cipher(buf, mask, 0)
	h := ws.Header{
		Fin:    fin,
		OpCode: op,
		Masked: true,
		Mask:   mask,
		Length: int64(len(buf)),
	}

	if err := ws.WriteHeader(s.bw, h); err != nil {
		return err
	}
	if _, err := s.bw.Write(buf); err != nil {
		return err
	}
	if err := s.bw.Flush(); err != nil {
		return err
	}
	observeFrame("out", len(buf))
	return nil
}

// IsClosed reports whether the underlying connection is no longer active.
func (s *Socket) IsClosed() bool { return s.closed.Load() }

// Done returns a channel that is closed when the connection has fully closed,
// for callers that want to await teardown.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Close shuts the connection down in both directions without sending a close
// frame. Closing an already-closed socket is a no-op that reports success.
func (s *Socket) Close() error {
	return s.shutdown(false, nil)
}

// CloseWithCode sends a close frame carrying code (two bytes, big-endian, no
// reason text) and then closes the connection in both directions. Like Close
// it is idempotent.
func (s *Socket) CloseWithCode(code CloseCode) error {
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, uint16(code))
	return s.shutdown(true, payload)
}

// shutdown is the one-shot teardown. When sendClose is set, a close frame
// carrying payload (possibly empty) goes out first; closed is flipped under
// the write mutex so no data frame can follow the close frame on the wire.
func (s *Socket) shutdown(sendClose bool, payload []byte) error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed.Store(true)
		if sendClose {
			err = s.writeFrameLocked(ws.OpClose, true, payload)
		}
		s.writeMu.Unlock()
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
		if s.deregister != nil {
			s.deregister()
		}
		openSockets.Add(-1)
		close(s.done)
	})
	return err
}

// readLoop decodes inbound frames until the connection goes away or decoding
// fails. It runs on its own goroutine; callback invocations are posted to the
// connection's event loop so they are delivered serially and in order.
// Fragmented messages are reassembled, bounded by the frame-size limit, and
// delivered as a single callback once the final fragment arrives.
func (s *Socket) readLoop() {
	for {
		h, err := ws.ReadHeader(s.br)
		if err != nil {
			s.readFailed(err)
			return
		}
		if s.maxFrameSize > 0 && h.Length > int64(s.maxFrameSize) {
			s.emitError(ErrFrameTooLarge)
			return
		}
		payload := make([]byte, int(h.Length))
		if _, err := io.ReadFull(s.br, payload); err != nil {
			s.readFailed(err)
			return
		}
		if h.Masked {
			// Servers do not normally mask, but unmask if one does.
			ws.Cipher(payload, h.Mask, 0)
		}
		observeFrame("in", len(payload))

		switch h.OpCode {
		case ws.OpText, ws.OpBinary:
			if !h.Fin {
				// First fragment of a message; the rest arrives as
				// continuations.
				s.fragOp = h.OpCode
				s.fragBuf = append([]byte(nil), payload...)
				continue
			}
			s.fragOp, s.fragBuf = 0, nil
			if h.OpCode == ws.OpText {
				s.emitText(string(payload))
			} else {
				s.emitBinary(payload)
			}
		case ws.OpContinuation:
			if s.fragOp == 0 {
				// Stray continuation with no message in progress.
				continue
			}
			if s.maxFrameSize > 0 && len(s.fragBuf)+len(payload) > s.maxFrameSize {
				s.emitError(ErrFrameTooLarge)
				return
			}
			s.fragBuf = append(s.fragBuf, payload...)
			if h.Fin {
				msg := s.fragBuf
				if s.fragOp == ws.OpText {
					s.emitText(string(msg))
				} else {
					s.emitBinary(msg)
				}
				s.fragOp, s.fragBuf = 0, nil
			}
		case ws.OpPing:
			// RFC 6455 5.5.3: answer with a pong carrying the same payload.
			_ = s.writeFrame(ws.OpPong, true, payload)
		case ws.OpClose:
			code := CloseNoStatus
			var echo []byte
			if len(payload) >= 2 {
				parsed, _ := ws.ParseCloseFrameData(payload)
				code = CloseCode(parsed)
				echo = make([]byte, 2)
				binary.BigEndian.PutUint16(echo, uint16(code))
			}
			s.emitCloseCode(code)
			// Echo the close, then tear down. 1005 is a local-only signal
			// (RFC 6455 7.4.1): an empty close gets an empty echo.
			_ = s.shutdown(true, echo)
			return
		}
	}
}

// readFailed maps a failed header or payload read onto the socket contract:
// a vanished transport completes the close future, anything else is reported
// through OnError and left for the caller to act on.
func (s *Socket) readFailed(err error) {
	if s.closed.Load() {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		_ = s.shutdown(false, nil)
		return
	}
	s.emitError(err)
}

func (s *Socket) emitText(text string) {
	s.loop.post(func() {
		s.cbMu.RLock()
		fn := s.onText
		s.cbMu.RUnlock()
		fn(text)
	})
}

func (s *Socket) emitBinary(data []byte) {
	s.loop.post(func() {
		s.cbMu.RLock()
		fn := s.onBinary
		s.cbMu.RUnlock()
		fn(data)
	})
}

func (s *Socket) emitError(err error) {
	s.loop.post(func() {
		s.cbMu.RLock()
		fn := s.onError
		s.cbMu.RUnlock()
		fn(err)
	})
}

func (s *Socket) emitCloseCode(code CloseCode) {
	s.loop.post(func() {
		s.cbMu.RLock()
		fn := s.onCloseCode
		s.cbMu.RUnlock()
		fn(code)
	})
}
