package ipc

import (
	"io"
	"net"
	"os"

	"github.com/pkg/errors"
)

// ListenConfig selects the endpoints the server binds. SocketPath is always
// honored when non-empty; TCPAddr is additionally bound when non-nil
// (spec.md §6.3 "Optional alternative: IPv4 TCP listener").
type ListenConfig struct {
	SocketPath string
	TCPAddr    *net.TCPAddr
}

// Server accepts connections concurrently at the transport level and hands
// each one to a Queue as a one-shot request/response exchange.
type Server struct {
	queue     *Queue
	listeners []net.Listener
}

// NewServer binds the configured endpoints and returns a Server ready to
// Serve. Any stale Unix socket file at SocketPath is removed first.
func NewServer(cfg ListenConfig, queue *Queue) (*Server, error) {
	s := &Server{queue: queue}
	if cfg.SocketPath != "" {
		_ = os.Remove(cfg.SocketPath)
		l, err := net.Listen("unix", cfg.SocketPath)
		if err != nil {
			s.Close()
			return nil, errors.WithMessage(err, "binding unix socket")
		}
		s.listeners = append(s.listeners, l)
	}
	if cfg.TCPAddr != nil {
		l, err := net.ListenTCP("tcp4", cfg.TCPAddr)
		if err != nil {
			s.Close()
			return nil, errors.WithMessage(err, "binding tcp listener")
		}
		s.listeners = append(s.listeners, l)
	}
	return s, nil
}

// Serve accepts connections on every bound listener until Close is called.
// It returns once all accept loops have exited.
func (s *Server) Serve() {
	done := make(chan struct{}, len(s.listeners))
	for _, l := range s.listeners {
		l := l
		go func() {
			acceptLoop(l, s.queue)
			done <- struct{}{}
		}()
	}
	for range s.listeners {
		<-done
	}
}

// Close shuts down every listener, unblocking Serve.
func (s *Server) Close() {
	for _, l := range s.listeners {
		l.Close()
	}
}

func acceptLoop(l net.Listener, queue *Queue) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		go handleConn(conn, queue)
	}
}

// handleConn reads exactly one request frame, enqueues it, waits for the
// reply, writes it back, and closes the connection. A declared length
// beyond the 4096-byte cap drops the connection without enqueuing anything.
func handleConn(conn net.Conn, queue *Queue) {
	defer conn.Close()

	var lenBuf [4]byte
	if err := fullRead(conn, lenBuf[:]); err != nil {
		return
	}
	length := leUint32(lenBuf[:])
	if length < headerSize || length > maxFrame {
		return
	}
	frame := make([]byte, length)
	copy(frame, lenBuf[:])
	if err := fullRead(conn, frame[4:]); err != nil {
		return
	}
	hdr, err := ParseHeader(frame)
	if err != nil {
		return
	}

	req := &Request{Frame: frame, Header: hdr, reply: make(chan []byte, 1)}
	queue.Enqueue(req)
	rsp := <-req.reply
	conn.Write(rsp)
	if tc, ok := conn.(interface{ CloseWrite() error }); ok {
		tc.CloseWrite()
	}
}

// fullRead reads exactly len(buf) bytes, failing on short read, EOF, or
// transport error.
func fullRead(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
